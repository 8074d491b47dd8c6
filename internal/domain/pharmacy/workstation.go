package pharmacy

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// Confidence colours.
const (
	ColorGreen = "green"
	ColorAmber = "amber"
	ColorRed   = "red"
)

const (
	StockIn  = "in_stock"
	StockLow = "low_stock"
	StockOut = "out_of_stock"
)

func confidenceColor(c float64) string {
	switch {
	case c >= 90:
		return ColorGreen
	case c >= 70:
		return ColorAmber
	}
	return ColorRed
}

type Workstation struct {
	WorkflowID     uuid.UUID        `json:"workflow_id"`
	PrescriptionID uuid.UUID        `json:"prescription_id"`
	Patient        PatientView      `json:"patient"`
	Prescriber     PrescriberView   `json:"prescriber"`
	Prescription   PrescriptionView `json:"prescription"`
	Medications    []Medication     `json:"medications"`
	AISentry       Sentry           `json:"ai_sentry"`
	WorkflowStatus string           `json:"workflow_status"`
	CreatedAt      time.Time        `json:"created_at"`
}

type PatientView struct {
	Name              string   `json:"name"`
	Surname           string   `json:"surname"`
	IDNumber          string   `json:"id_number"`
	MedicalAid        string   `json:"medical_aid"`
	MedicalAidNumber  string   `json:"medical_aid_number"`
	Allergies         []string `json:"allergies"`
	ChronicConditions []string `json:"chronic_conditions"`
	Age               *int     `json:"age"`
	Gender            string   `json:"gender"`
}

type PrescriberView struct {
	Name           string `json:"name"`
	PracticeNumber string `json:"practice_number"`
}

type PrescriptionView struct {
	Date              string  `json:"date"`
	Diagnosis         string  `json:"diagnosis,omitempty"`
	ImageURL          string  `json:"image_url"`
	AIConfidence      float64 `json:"ai_confidence"`
	AIConfidenceColor string  `json:"ai_confidence_color"`
	ScanQuality       float64 `json:"scan_quality"`
}

type Medication struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Strength         string   `json:"strength"`
	DosageForm       string   `json:"dosage_form"`
	Quantity         int      `json:"quantity"`
	DaysSupply       int      `json:"days_supply"`
	Instructions     string   `json:"instructions"`
	GenericAvailable bool     `json:"generic_available"`
	StockStatus      string   `json:"stock_status"`
	Confidence       float64  `json:"confidence"`
	ConfidenceColor  string   `json:"confidence_color"`
	Warnings         []string `json:"warnings"`
	Notes            string   `json:"notes,omitempty"`
}

var leadingInt = regexp.MustCompile(`^\s*(\d+)`)

// daysSupply reads "30 days" or "2 weeks" style durations.
func daysSupply(duration string) int {
	m := leadingInt.FindStringSubmatch(duration)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	d := strings.ToLower(duration)
	switch {
	case strings.Contains(d, "week"):
		return n * 7
	case strings.Contains(d, "month"):
		return n * 30
	case strings.Contains(d, "day"):
		return n
	}
	return 0
}

// age in whole years at now, or nil when dob is not an ISO date.
func age(dob *string, now time.Time) *int {
	if dob == nil || len(*dob) < 10 {
		return nil
	}
	born, err := time.Parse("2006-01-02", (*dob)[:10])
	if err != nil {
		return nil
	}
	years := now.Year() - born.Year()
	if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
		years--
	}
	return &years
}

// medications reads the analysed lines and applies the pharmacist's saved
// edits by id. Edits with unknown ids are lines the pharmacist added.
func medications(analysis json.RawMessage, edits []ValidatedMedication, overall float64) []Medication {
	var out []Medication
	gjson.GetBytes(analysis, "medications").ForEach(func(i, m gjson.Result) bool {
		conf := overall
		if c := m.Get("confidence"); c.Exists() {
			conf = c.Float()
		}
		qty := int(m.Get("quantity").Int())
		med := Medication{
			ID:               "med-" + strconv.Itoa(int(i.Int())+1),
			Name:             m.Get("name").String(),
			Strength:         m.Get("dosage").String(),
			DosageForm:       m.Get("dosageForm").String(),
			Quantity:         qty,
			DaysSupply:       daysSupply(m.Get("duration").String()),
			Instructions:     firstNonEmpty(m.Get("instructions").String(), m.Get("frequency").String()),
			GenericAvailable: m.Get("genericAvailable").Bool(),
			StockStatus:      StockIn,
			Confidence:       conf,
			Warnings:         []string{},
		}
		m.Get("warnings").ForEach(func(_, w gjson.Result) bool {
			med.Warnings = append(med.Warnings, w.String())
			return true
		})
		out = append(out, med)
		return true
	})

	for _, e := range edits {
		idx := -1
		for i := range out {
			if out[i].ID == e.ID {
				idx = i
				break
			}
		}
		if idx < 0 {
			out = append(out, Medication{ID: e.ID, StockStatus: StockIn, Confidence: 100, Warnings: []string{}})
			idx = len(out) - 1
		}
		applyEdit(&out[idx], e)
	}

	for i := range out {
		out[i].ConfidenceColor = confidenceColor(out[i].Confidence)
	}
	if out == nil {
		out = []Medication{}
	}
	return out
}

func applyEdit(m *Medication, e ValidatedMedication) {
	if e.Name != "" {
		m.Name = e.Name
	}
	if e.Strength != "" {
		m.Strength = e.Strength
	}
	if e.Quantity > 0 {
		m.Quantity = e.Quantity
	}
	if e.DaysSupply > 0 {
		m.DaysSupply = e.DaysSupply
	}
	if e.Instructions != "" {
		m.Instructions = e.Instructions
	}
	if e.StockStatus != "" {
		m.StockStatus = e.StockStatus
	}
	m.Notes = e.Notes
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func derefFloat(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// savedEdits decodes the pharmacist's stored edits. An unreadable column is
// logged and shown as no edits so the workstation still opens.
func savedEdits(ctx context.Context, rec *WorkflowRecord) []ValidatedMedication {
	if len(rec.ValidatedMedications) == 0 {
		return nil
	}
	var edits []ValidatedMedication
	if err := json.Unmarshal(rec.ValidatedMedications, &edits); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("queue_id", rec.QueueID.String()).
			Int("bytes", len(rec.ValidatedMedications)).Msg("validated medications unreadable, edits not shown")
		return nil
	}
	return edits
}

// BuildWorkstation assembles the workstation view. imageURL is the signed
// link to the prescription image, or empty.
func BuildWorkstation(ctx context.Context, rec *WorkflowRecord, imageURL string, now time.Time) *Workstation {
	overall := derefFloat(rec.AIConfidence)
	if rec.AIConfidence == nil {
		overall = gjson.GetBytes(rec.AnalysisData, "overallConfidence").Float()
	}
	meds := medications(rec.AnalysisData, savedEdits(ctx, rec), overall)

	p := rec.Patient
	allergies := nonNil(p.Allergies)
	ws := &Workstation{
		WorkflowID:     rec.QueueID,
		PrescriptionID: rec.PrescriptionID,
		Patient: PatientView{
			Name:              p.FirstName,
			Surname:           p.LastName,
			IDNumber:          deref(p.IDNumber),
			MedicalAid:        deref(p.MedicalAid),
			MedicalAidNumber:  deref(p.MedicalAidNumber),
			Allergies:         allergies,
			ChronicConditions: nonNil(p.ChronicConditions),
			Age:               age(p.DateOfBirth, now),
			Gender:            deref(p.Gender),
		},
		Prescriber: PrescriberView{
			Name:           deref(rec.DoctorName),
			PracticeNumber: deref(rec.PracticeNumber),
		},
		Prescription: PrescriptionView{
			Date:              deref(rec.PrescriptionDate),
			Diagnosis:         deref(rec.Diagnosis),
			ImageURL:          imageURL,
			AIConfidence:      overall,
			AIConfidenceColor: confidenceColor(overall),
			ScanQuality:       derefFloat(rec.ScanQuality),
		},
		Medications:    meds,
		WorkflowStatus: rec.Status,
		CreatedAt:      rec.CreatedAt,
	}
	ws.AISentry = buildSentry(meds, allergies, gjson.GetBytes(rec.AnalysisData, "aiWarnings"))
	return ws
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
