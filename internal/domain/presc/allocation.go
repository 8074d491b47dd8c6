package presc

import (
	"math"
	"sort"
	"strconv"

	"github.com/google/uuid"
)

const (
	earthRadiusKm   = 6371.0
	maxAllocations  = 10
	allocationMsg   = "Prescription allocated to nearby pharmacies"
	locationMissing = "Patient location not set"
	noPharmacies    = "No pharmacies available for allocation"
)

// Location is the patient's saved position and search radius.
type Location struct {
	Latitude      *float64
	Longitude     *float64
	MaxDistanceKm *float64
}

func (l *Location) set() bool {
	return l != nil && l.Latitude != nil && l.Longitude != nil
}

type Pharmacy struct {
	PharmacyID uuid.UUID
	Name       string
	Latitude   float64
	Longitude  float64
}

// Candidate is a pharmacy chosen for allocation.
type Candidate struct {
	Pharmacy
	DistanceKm float64
}

// Haversine returns the great-circle distance in kilometres.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Nearest sorts pharmacies by distance from loc, drops those beyond the
// patient's radius and keeps at most limit.
func Nearest(loc *Location, pharmacies []Pharmacy, limit int) []Candidate {
	out := make([]Candidate, 0, len(pharmacies))
	for _, p := range pharmacies {
		d := Haversine(*loc.Latitude, *loc.Longitude, p.Latitude, p.Longitude)
		if loc.MaxDistanceKm != nil && d > *loc.MaxDistanceKm {
			continue
		}
		out = append(out, Candidate{Pharmacy: p, DistanceKm: d})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func formatKm(d float64) string {
	return strconv.FormatFloat(d, 'f', 1, 64)
}

type allocatedPharmacy struct {
	Name       string `json:"name"`
	DistanceKm string `json:"distance_km"`
}

type allocationResponse struct {
	Message         string              `json:"message"`
	PharmaciesCount int                 `json:"pharmacies_count"`
	Pharmacies      []allocatedPharmacy `json:"pharmacies"`
}

// AllocatedEvent is published on prescription.allocated.
type AllocatedEvent struct {
	PrescriptionID uuid.UUID          `json:"prescription_id"`
	UserID         uuid.UUID          `json:"user_id"`
	Pharmacies     []AllocatedPartner `json:"pharmacies"`
}

type AllocatedPartner struct {
	PharmacyID uuid.UUID `json:"pharmacy_id"`
	QueueID    uuid.UUID `json:"queue_id"`
	DistanceKm float64   `json:"distance_km"`
}

// QuoteAcceptedEvent is published on prescription.quote_accepted.
type QuoteAcceptedEvent struct {
	PrescriptionID uuid.UUID `json:"prescription_id"`
	UserID         uuid.UUID `json:"user_id"`
	PharmacyID     uuid.UUID `json:"pharmacy_id"`
	QueueID        uuid.UUID `json:"queue_id"`
	QuoteTotal     string    `json:"quote_total"`
}
