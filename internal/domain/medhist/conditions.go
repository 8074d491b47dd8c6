package medhist

import (
	"time"

	"github.com/google/uuid"

	"github.com/scrypto/portal/internal/platform/crud"
)

var (
	conditionSeverities = []string{"mild", "moderate", "severe", "critical"}
	conditionStatuses   = []string{"active", "resolved", "chronic", "remission"}
)

type Condition struct {
	ConditionID            uuid.UUID  `json:"condition_id" db:"condition_id"`
	UserID                 uuid.UUID  `json:"user_id" db:"user_id"`
	ConditionName          string     `json:"condition_name" db:"condition_name"`
	ICD10Code              *string    `json:"icd10_code" db:"icd10_code"`
	OtherStandardCodes     *string    `json:"other_standard_codes" db:"other_standard_codes"`
	DiagnosisDate          *string    `json:"diagnosis_date" db:"diagnosis_date"`
	DiagnosisDoctorName    *string    `json:"diagnosis_doctor_name" db:"diagnosis_doctor_name"`
	DiagnosisDoctorSurname *string    `json:"diagnosis_doctor_surname" db:"diagnosis_doctor_surname"`
	PracticeNumber         *string    `json:"practice_number" db:"practice_number"`
	Severity               *string    `json:"severity" db:"severity"`
	Treatment              *string    `json:"treatment" db:"treatment"`
	CurrentStatus          *string    `json:"current_status" db:"current_status"`
	RelatedAllergiesID     *uuid.UUID `json:"related_allergies_id" db:"related_allergies_id"`
	Notes                  *string    `json:"notes" db:"notes"`
	IsActive               bool       `json:"is_active" db:"is_active"`
	CreatedAt              time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at" db:"updated_at"`
}

type ConditionCreate struct {
	ConditionName          string  `json:"condition_name" validate:"required,min=1,max=500"`
	ICD10Code              *string `json:"icd10_code"`
	OtherStandardCodes     *string `json:"other_standard_codes"`
	DiagnosisDate          *string `json:"diagnosis_date" validate:"omitempty,isodate"`
	DiagnosisDoctorName    *string `json:"diagnosis_doctor_name"`
	DiagnosisDoctorSurname *string `json:"diagnosis_doctor_surname"`
	PracticeNumber         *string `json:"practice_number"`
	Severity               *string `json:"severity" validate:"omitempty,oneof=mild moderate severe critical"`
	Treatment              *string `json:"treatment"`
	CurrentStatus          *string `json:"current_status" validate:"omitempty,oneof=active resolved chronic remission"`
	RelatedAllergiesID     *string `json:"related_allergies_id" validate:"omitempty,uuid"`
	Notes                  *string `json:"notes"`
}

type ConditionUpdate struct {
	ConditionName          *string `json:"condition_name" validate:"omitempty,min=1,max=500"`
	ICD10Code              *string `json:"icd10_code"`
	OtherStandardCodes     *string `json:"other_standard_codes"`
	DiagnosisDate          *string `json:"diagnosis_date" validate:"omitempty,isodate"`
	DiagnosisDoctorName    *string `json:"diagnosis_doctor_name"`
	DiagnosisDoctorSurname *string `json:"diagnosis_doctor_surname"`
	PracticeNumber         *string `json:"practice_number"`
	Severity               *string `json:"severity" validate:"omitempty,oneof=mild moderate severe critical"`
	Treatment              *string `json:"treatment"`
	CurrentStatus          *string `json:"current_status" validate:"omitempty,oneof=active resolved chronic remission"`
	RelatedAllergiesID     *string `json:"related_allergies_id" validate:"omitempty,uuid"`
	Notes                  *string `json:"notes"`
}

var ConditionTable = crud.Table{
	Name:          "patient__medhist__conditions",
	IDColumn:      "condition_id",
	SearchColumns: []string{"condition_name", "icd10_code"},
	Filters: []crud.Filter{
		{Param: "severity", Column: "severity", Values: conditionSeverities},
		{Param: "current_status", Column: "current_status", Values: conditionStatuses},
	},
	Sorts:      []string{"created_at", "condition_name", "diagnosis_date", "severity"},
	SoftDelete: true,
}

func conditionItem(c *Condition) crud.ListItem {
	sev := crud.SeverityNormal
	switch crud.Deref(c.Severity) {
	case "critical":
		sev = crud.SeverityCritical
	case "severe":
		sev = crud.SeveritySevere
	case "moderate":
		sev = crud.SeverityModerate
	case "mild":
		sev = crud.SeverityMild
	}
	return crud.ListItem{
		ID:          c.ConditionID.String(),
		Title:       c.ConditionName,
		Letter:      crud.Initials(c.ConditionName, "??"),
		Severity:    sev,
		ThirdColumn: crud.OrDefault(c.DiagnosisDate, c.CreatedAt.Format("2006-01-02")),
	}
}

func NewConditionResource(repo crud.Repository[Condition]) *crud.Resource[Condition, ConditionCreate, ConditionUpdate] {
	return &crud.Resource[Condition, ConditionCreate, ConditionUpdate]{
		Table: ConditionTable,
		Repo:  repo,
		List: crud.ListFeature[Condition]{
			EntityName: "Condition",
			BasePath:   "/patient/medhist/conditions",
			Transform:  conditionItem,
			Filters: []crud.FilterField{
				{Key: "severity", Label: "Severity", Type: "select", Options: crud.Options(conditionSeverities...)},
				{Key: "current_status", Label: "Status", Type: "select", Options: crud.Options(conditionStatuses...)},
			},
		},
		Detail: crud.DetailFeature[Condition]{
			FormFields: []crud.FormField{
				{Key: "condition_name", Label: "Condition", Type: "text", Required: true, MaxLength: 500},
				{Key: "icd10_code", Label: "ICD-10 Code", Type: "text"},
				{Key: "other_standard_codes", Label: "Other Codes", Type: "text"},
				{Key: "diagnosis_date", Label: "Diagnosis Date", Type: "date"},
				{Key: "diagnosis_doctor_name", Label: "Doctor Name", Type: "text"},
				{Key: "diagnosis_doctor_surname", Label: "Doctor Surname", Type: "text"},
				{Key: "practice_number", Label: "Practice Number", Type: "text"},
				{Key: "severity", Label: "Severity", Type: "select", Options: crud.Options(conditionSeverities...)},
				{Key: "current_status", Label: "Current Status", Type: "select", Options: crud.Options(conditionStatuses...)},
				{Key: "treatment", Label: "Treatment", Type: "textarea"},
				{Key: "notes", Label: "Notes", Type: "textarea"},
			},
		},
	}
}
