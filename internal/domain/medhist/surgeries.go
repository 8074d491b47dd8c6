package medhist

import (
	"time"

	"github.com/google/uuid"

	"github.com/scrypto/portal/internal/platform/crud"
)

var (
	surgeryTypes    = []string{"elective", "emergency", "diagnostic", "cosmetic", "reconstructive"}
	surgeryOutcomes = []string{"successful", "complications", "partial_success", "failed"}
)

type Surgery struct {
	SurgeryID             uuid.UUID  `json:"surgery_id" db:"surgery_id"`
	UserID                uuid.UUID  `json:"user_id" db:"user_id"`
	SurgeryName           string     `json:"surgery_name" db:"surgery_name"`
	SurgeryType           *string    `json:"surgery_type" db:"surgery_type"`
	SurgeryDate           *string    `json:"surgery_date" db:"surgery_date"`
	HospitalName          *string    `json:"hospital_name" db:"hospital_name"`
	SurgeonName           *string    `json:"surgeon_name" db:"surgeon_name"`
	SurgeonPracticeNumber *string    `json:"surgeon_practice_number" db:"surgeon_practice_number"`
	AnesthetistName       *string    `json:"anesthetist_name" db:"anesthetist_name"`
	ProcedureCode         *string    `json:"procedure_code" db:"procedure_code"`
	Complications         *string    `json:"complications" db:"complications"`
	RecoveryNotes         *string    `json:"recovery_notes" db:"recovery_notes"`
	Outcome               *string    `json:"outcome" db:"outcome"`
	RelatedConditionID    *uuid.UUID `json:"related_condition_id" db:"related_condition_id"`
	IsActive              bool       `json:"is_active" db:"is_active"`
	CreatedAt             time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at" db:"updated_at"`
}

type SurgeryCreate struct {
	SurgeryName           string  `json:"surgery_name" validate:"required,min=1,max=500"`
	SurgeryType           *string `json:"surgery_type" validate:"omitempty,oneof=elective emergency diagnostic cosmetic reconstructive"`
	SurgeryDate           *string `json:"surgery_date" validate:"omitempty,isodate"`
	HospitalName          *string `json:"hospital_name"`
	SurgeonName           *string `json:"surgeon_name"`
	SurgeonPracticeNumber *string `json:"surgeon_practice_number"`
	AnesthetistName       *string `json:"anesthetist_name"`
	ProcedureCode         *string `json:"procedure_code"`
	Complications         *string `json:"complications"`
	RecoveryNotes         *string `json:"recovery_notes"`
	Outcome               *string `json:"outcome" validate:"omitempty,oneof=successful complications partial_success failed"`
	RelatedConditionID    *string `json:"related_condition_id" validate:"omitempty,uuid"`
}

type SurgeryUpdate struct {
	SurgeryName           *string `json:"surgery_name" validate:"omitempty,min=1,max=500"`
	SurgeryType           *string `json:"surgery_type" validate:"omitempty,oneof=elective emergency diagnostic cosmetic reconstructive"`
	SurgeryDate           *string `json:"surgery_date" validate:"omitempty,isodate"`
	HospitalName          *string `json:"hospital_name"`
	SurgeonName           *string `json:"surgeon_name"`
	SurgeonPracticeNumber *string `json:"surgeon_practice_number"`
	AnesthetistName       *string `json:"anesthetist_name"`
	ProcedureCode         *string `json:"procedure_code"`
	Complications         *string `json:"complications"`
	RecoveryNotes         *string `json:"recovery_notes"`
	Outcome               *string `json:"outcome" validate:"omitempty,oneof=successful complications partial_success failed"`
	RelatedConditionID    *string `json:"related_condition_id" validate:"omitempty,uuid"`
}

var SurgeryTable = crud.Table{
	Name:          "patient__medhist__surgeries",
	IDColumn:      "surgery_id",
	SearchColumns: []string{"surgery_name", "hospital_name", "surgeon_name"},
	Filters: []crud.Filter{
		{Param: "surgery_type", Column: "surgery_type", Values: surgeryTypes},
		{Param: "outcome", Column: "outcome", Values: surgeryOutcomes},
	},
	Sorts:      []string{"created_at", "surgery_date", "surgery_name"},
	SoftDelete: true,
}

func outcomeSeverity(outcome string) crud.Severity {
	switch outcome {
	case "failed":
		return crud.SeverityCritical
	case "complications":
		return crud.SeveritySevere
	case "partial_success":
		return crud.SeverityModerate
	case "successful":
		return crud.SeverityMild
	}
	return crud.SeverityNormal
}

func surgeryItem(s *Surgery) crud.ListItem {
	return crud.ListItem{
		ID:          s.SurgeryID.String(),
		Title:       s.SurgeryName,
		Letter:      crud.Initials(s.SurgeryName, "??"),
		Severity:    outcomeSeverity(crud.Deref(s.Outcome)),
		ThirdColumn: crud.OrDefault(s.SurgeryDate, "Unknown"),
	}
}

func NewSurgeryResource(repo crud.Repository[Surgery]) *crud.Resource[Surgery, SurgeryCreate, SurgeryUpdate] {
	return &crud.Resource[Surgery, SurgeryCreate, SurgeryUpdate]{
		Table: SurgeryTable,
		Repo:  repo,
		List: crud.ListFeature[Surgery]{
			EntityName: "Surgery",
			BasePath:   "/patient/medhist/surgeries",
			Transform:  surgeryItem,
			Filters: []crud.FilterField{
				{Key: "surgery_type", Label: "Type", Type: "select", Options: crud.Options(surgeryTypes...)},
				{Key: "outcome", Label: "Outcome", Type: "select", Options: crud.Options(surgeryOutcomes...)},
			},
		},
		Detail: crud.DetailFeature[Surgery]{
			FormFields: []crud.FormField{
				{Key: "surgery_name", Label: "Surgery", Type: "text", Required: true, MaxLength: 500},
				{Key: "surgery_type", Label: "Type", Type: "select", Options: crud.Options(surgeryTypes...)},
				{Key: "surgery_date", Label: "Date", Type: "date"},
				{Key: "hospital_name", Label: "Hospital", Type: "text"},
				{Key: "surgeon_name", Label: "Surgeon", Type: "text"},
				{Key: "surgeon_practice_number", Label: "Surgeon Practice Number", Type: "text"},
				{Key: "anesthetist_name", Label: "Anesthetist", Type: "text"},
				{Key: "procedure_code", Label: "Procedure Code", Type: "text"},
				{Key: "outcome", Label: "Outcome", Type: "select", Options: crud.Options(surgeryOutcomes...)},
				{Key: "complications", Label: "Complications", Type: "textarea"},
				{Key: "recovery_notes", Label: "Recovery Notes", Type: "textarea"},
			},
		},
	}
}
