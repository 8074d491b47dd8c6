package vitality

import "github.com/scrypto/portal/internal/platform/crud"

// Status grades a reading. Higher values are more severe.
type Status int

const (
	StatusNormal Status = iota
	StatusElevated
	StatusHigh
	StatusCritical
)

func (s Status) String() string {
	switch s {
	case StatusElevated:
		return "elevated"
	case StatusHigh:
		return "high"
	case StatusCritical:
		return "critical"
	}
	return "normal"
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Severity maps the status onto the list colour scale.
func (s Status) Severity() crud.Severity {
	switch s {
	case StatusCritical:
		return crud.SeverityCritical
	case StatusHigh:
		return crud.SeveritySevere
	case StatusElevated:
		return crud.SeverityModerate
	}
	return crud.SeverityNormal
}

// BloodPressure grades a systolic/diastolic pair. Here and in the graders
// below a missing or zero reading is normal.
func BloodPressure(systolic, diastolic float64) Status {
	if systolic == 0 || diastolic == 0 {
		return StatusNormal
	}
	switch {
	case systolic >= 180 || diastolic >= 120:
		return StatusCritical
	case systolic >= 140 || diastolic >= 90:
		return StatusHigh
	case systolic >= 120 || diastolic >= 80:
		return StatusElevated
	}
	return StatusNormal
}

func HeartRate(bpm float64) Status {
	if bpm == 0 {
		return StatusNormal
	}
	switch {
	case bpm < 40 || bpm > 150:
		return StatusCritical
	case bpm < 50 || bpm > 120:
		return StatusHigh
	case bpm < 60 || bpm > 100:
		return StatusElevated
	}
	return StatusNormal
}

func Temperature(celsius float64) Status {
	if celsius == 0 {
		return StatusNormal
	}
	switch {
	case celsius < 35 || celsius > 40:
		return StatusCritical
	case celsius < 36 || celsius > 38.5:
		return StatusHigh
	case celsius > 37.5:
		return StatusElevated
	}
	return StatusNormal
}

func OxygenSaturation(pct float64) Status {
	if pct == 0 {
		return StatusNormal
	}
	switch {
	case pct < 85:
		return StatusCritical
	case pct < 90:
		return StatusHigh
	case pct < 95:
		return StatusElevated
	}
	return StatusNormal
}

func val(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// OverallStatus is the most severe status across the graded readings.
func OverallStatus(v *VitalSign) Status {
	worst := StatusNormal
	for _, s := range []Status{
		BloodPressure(val(v.SystolicBP), val(v.DiastolicBP)),
		HeartRate(val(v.HeartRate)),
		Temperature(val(v.Temperature)),
		OxygenSaturation(val(v.OxygenSaturation)),
	} {
		if s > worst {
			worst = s
		}
	}
	return worst
}
