package vitality

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scrypto/portal/internal/platform/crud"
)

var measurementContexts = []string{
	"routine", "pre_medication", "post_medication", "pre_exercise", "post_exercise", "emergency", "other",
}

type VitalSign struct {
	VitalSignID        uuid.UUID `json:"vital_sign_id" db:"vital_sign_id"`
	UserID             uuid.UUID `json:"user_id" db:"user_id"`
	MeasurementDate    *string   `json:"measurement_date" db:"measurement_date"`
	SystolicBP         *float64  `json:"systolic_bp" db:"systolic_bp"`
	DiastolicBP        *float64  `json:"diastolic_bp" db:"diastolic_bp"`
	HeartRate          *float64  `json:"heart_rate" db:"heart_rate"`
	Temperature        *float64  `json:"temperature" db:"temperature"`
	OxygenSaturation   *float64  `json:"oxygen_saturation" db:"oxygen_saturation"`
	RespiratoryRate    *float64  `json:"respiratory_rate" db:"respiratory_rate"`
	BloodGlucose       *float64  `json:"blood_glucose" db:"blood_glucose"`
	CholesterolTotal   *float64  `json:"cholesterol_total" db:"cholesterol_total"`
	HDLCholesterol     *float64  `json:"hdl_cholesterol" db:"hdl_cholesterol"`
	LDLCholesterol     *float64  `json:"ldl_cholesterol" db:"ldl_cholesterol"`
	Triglycerides      *float64  `json:"triglycerides" db:"triglycerides"`
	MeasurementDevice  *string   `json:"measurement_device" db:"measurement_device"`
	MeasurementContext *string   `json:"measurement_context" db:"measurement_context"`
	Notes              *string   `json:"notes" db:"notes"`
	IsActive           bool      `json:"is_active" db:"is_active"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// VitalSignInput is used for both create and update; every reading is
// optional.
type VitalSignInput struct {
	MeasurementDate    *string  `json:"measurement_date" validate:"omitempty,isodate"`
	SystolicBP         *float64 `json:"systolic_bp" validate:"omitempty,gt=0,lte=300"`
	DiastolicBP        *float64 `json:"diastolic_bp" validate:"omitempty,gt=0,lte=200"`
	HeartRate          *float64 `json:"heart_rate" validate:"omitempty,gt=0,lte=300"`
	Temperature        *float64 `json:"temperature" validate:"omitempty,gte=30,lte=50"`
	OxygenSaturation   *float64 `json:"oxygen_saturation" validate:"omitempty,gte=0,lte=100"`
	RespiratoryRate    *float64 `json:"respiratory_rate" validate:"omitempty,gt=0,lte=60"`
	BloodGlucose       *float64 `json:"blood_glucose" validate:"omitempty,gt=0,lte=1000"`
	CholesterolTotal   *float64 `json:"cholesterol_total" validate:"omitempty,gt=0,lte=1000"`
	HDLCholesterol     *float64 `json:"hdl_cholesterol" validate:"omitempty,gt=0,lte=200"`
	LDLCholesterol     *float64 `json:"ldl_cholesterol" validate:"omitempty,gt=0,lte=500"`
	Triglycerides      *float64 `json:"triglycerides" validate:"omitempty,gt=0,lte=2000"`
	MeasurementDevice  *string  `json:"measurement_device" validate:"omitempty,max=200"`
	MeasurementContext *string  `json:"measurement_context" validate:"omitempty,oneof=routine pre_medication post_medication pre_exercise post_exercise emergency other"`
	Notes              *string  `json:"notes" validate:"omitempty,max=1000"`
}

var VitalSignTable = crud.Table{
	Name:          "patient__vitality__vital_signs",
	IDColumn:      "vital_sign_id",
	SearchColumns: []string{"measurement_device", "notes"},
	Filters: []crud.Filter{
		{Param: "measurement_context", Column: "measurement_context", Values: measurementContexts},
		{Param: "date_from", Column: "measurement_date", Op: crud.OpGte},
		{Param: "date_to", Column: "measurement_date", Op: crud.OpLte},
	},
	Sorts:       []string{"measurement_date", "created_at"},
	DefaultSort: []crud.Sort{{Column: "measurement_date", Desc: true}},
	SoftDelete:  true,
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func present(p *float64) bool {
	return p != nil && *p != 0
}

func vitalTitle(v *VitalSign) string {
	var parts []string
	if present(v.SystolicBP) && present(v.DiastolicBP) {
		parts = append(parts, "BP: "+num(*v.SystolicBP)+"/"+num(*v.DiastolicBP))
	}
	if present(v.HeartRate) {
		parts = append(parts, "HR: "+num(*v.HeartRate))
	}
	if present(v.Temperature) {
		parts = append(parts, "Temp: "+num(*v.Temperature)+"°C")
	}
	if present(v.OxygenSaturation) {
		parts = append(parts, "O2: "+num(*v.OxygenSaturation)+"%")
	}
	if present(v.RespiratoryRate) {
		parts = append(parts, "RR: "+num(*v.RespiratoryRate))
	}
	if present(v.BloodGlucose) {
		parts = append(parts, "Glucose: "+num(*v.BloodGlucose))
	}
	if len(parts) == 0 {
		return "Vital Signs Reading"
	}
	return strings.Join(parts, " | ")
}

func vitalSignItem(v *VitalSign) crud.ListItem {
	return crud.ListItem{
		ID:          v.VitalSignID.String(),
		Title:       vitalTitle(v),
		Letter:      "VS",
		Severity:    OverallStatus(v).Severity(),
		ThirdColumn: crud.Deref(v.MeasurementDate),
	}
}

func NewVitalSignResource(repo crud.Repository[VitalSign]) *crud.Resource[VitalSign, VitalSignInput, VitalSignInput] {
	return &crud.Resource[VitalSign, VitalSignInput, VitalSignInput]{
		Table: VitalSignTable,
		Repo:  repo,
		List: crud.ListFeature[VitalSign]{
			EntityName: "Vital sign",
			BasePath:   "/patient/vitality/vital-signs",
			Transform:  vitalSignItem,
			Filters: []crud.FilterField{
				{Key: "measurement_context", Label: "Context", Type: "select", Options: crud.Options(measurementContexts...)},
				{Key: "date_from", Label: "From", Type: "date"},
				{Key: "date_to", Label: "To", Type: "date"},
			},
		},
		Detail: crud.DetailFeature[VitalSign]{FormFields: vitalFormFields()},
	}
}

func vitalFormFields() []crud.FormField {
	field := func(key, label string, min, max float64) crud.FormField {
		lo, hi := crud.Range(min, max)
		return crud.FormField{Key: key, Label: label, Type: "number", Min: lo, Max: hi}
	}
	return []crud.FormField{
		{Key: "measurement_date", Label: "Measurement Date", Type: "date"},
		field("systolic_bp", "Systolic BP (mmHg)", 0, 300),
		field("diastolic_bp", "Diastolic BP (mmHg)", 0, 200),
		field("heart_rate", "Heart Rate (bpm)", 0, 300),
		field("temperature", "Temperature (°C)", 30, 50),
		field("oxygen_saturation", "Oxygen Saturation (%)", 0, 100),
		field("respiratory_rate", "Respiratory Rate", 0, 60),
		field("blood_glucose", "Blood Glucose (mg/dL)", 0, 1000),
		field("cholesterol_total", "Total Cholesterol (mg/dL)", 0, 1000),
		field("hdl_cholesterol", "HDL (mg/dL)", 0, 200),
		field("ldl_cholesterol", "LDL (mg/dL)", 0, 500),
		field("triglycerides", "Triglycerides (mg/dL)", 0, 2000),
		{Key: "measurement_device", Label: "Device", Type: "text", MaxLength: 200},
		{Key: "measurement_context", Label: "Context", Type: "select", Options: crud.Options(measurementContexts...)},
		{Key: "notes", Label: "Notes", Type: "textarea", MaxLength: 1000},
	}
}
