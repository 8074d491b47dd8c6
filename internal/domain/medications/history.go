package medications

import (
	"time"

	"github.com/google/uuid"

	"github.com/scrypto/portal/internal/platform/crud"
)

var effectivenessLevels = []string{"very_effective", "effective", "somewhat_effective", "not_effective", "adverse_reaction"}

type MedicationHistory struct {
	HistoryID      uuid.UUID `json:"history_id" db:"history_id"`
	UserID         uuid.UUID `json:"user_id" db:"user_id"`
	MedicationName string    `json:"medication_name" db:"medication_name"`
	TakenPeriod    *string   `json:"taken_period" db:"taken_period"`
	Reason         *string   `json:"reason" db:"reason"`
	Effectiveness  *string   `json:"effectiveness" db:"effectiveness"`
	SideEffects    *string   `json:"side_effects" db:"side_effects"`
	Notes          *string   `json:"notes" db:"notes"`
	IsActive       bool      `json:"is_active" db:"is_active"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

type MedicationHistoryCreate struct {
	MedicationName string  `json:"medication_name" validate:"required,min=1,max=200"`
	TakenPeriod    *string `json:"taken_period" validate:"omitempty,max=100"`
	Reason         *string `json:"reason" validate:"omitempty,max=500"`
	Effectiveness  *string `json:"effectiveness" validate:"omitempty,oneof=very_effective effective somewhat_effective not_effective adverse_reaction"`
	SideEffects    *string `json:"side_effects"`
	Notes          *string `json:"notes"`
}

type MedicationHistoryUpdate struct {
	MedicationName *string `json:"medication_name" validate:"omitempty,min=1,max=200"`
	TakenPeriod    *string `json:"taken_period" validate:"omitempty,max=100"`
	Reason         *string `json:"reason" validate:"omitempty,max=500"`
	Effectiveness  *string `json:"effectiveness" validate:"omitempty,oneof=very_effective effective somewhat_effective not_effective adverse_reaction"`
	SideEffects    *string `json:"side_effects"`
	Notes          *string `json:"notes"`
}

var HistoryTable = crud.Table{
	Name:          "patient__medications__history",
	IDColumn:      "history_id",
	SearchColumns: []string{"medication_name", "reason"},
	Filters: []crud.Filter{
		{Param: "effectiveness", Column: "effectiveness", Values: effectivenessLevels},
	},
	Sorts:      []string{"created_at", "medication_name", "effectiveness"},
	SoftDelete: true,
}

func effectivenessSeverity(e string) crud.Severity {
	switch e {
	case "effective":
		return crud.SeverityMild
	case "somewhat_effective":
		return crud.SeverityModerate
	case "not_effective":
		return crud.SeveritySevere
	case "adverse_reaction":
		return crud.SeverityCritical
	}
	return crud.SeverityNormal
}

func historyItem(h *MedicationHistory) crud.ListItem {
	return crud.ListItem{
		ID:          h.HistoryID.String(),
		Title:       h.MedicationName,
		Letter:      crud.Initials(h.MedicationName, "MH"),
		Severity:    effectivenessSeverity(crud.Deref(h.Effectiveness)),
		ThirdColumn: crud.OrDefault(h.TakenPeriod, "Unknown period"),
	}
}

func NewHistoryResource(repo crud.Repository[MedicationHistory]) *crud.Resource[MedicationHistory, MedicationHistoryCreate, MedicationHistoryUpdate] {
	return &crud.Resource[MedicationHistory, MedicationHistoryCreate, MedicationHistoryUpdate]{
		Table: HistoryTable,
		Repo:  repo,
		List: crud.ListFeature[MedicationHistory]{
			EntityName: "Medication history",
			BasePath:   "/patient/medications/history",
			Transform:  historyItem,
			Filters: []crud.FilterField{
				{Key: "effectiveness", Label: "Effectiveness", Type: "select", Options: crud.Options(effectivenessLevels...)},
			},
		},
		Detail: crud.DetailFeature[MedicationHistory]{
			FormFields: []crud.FormField{
				{Key: "medication_name", Label: "Medication Name", Type: "text", Required: true, MaxLength: 200},
				{Key: "taken_period", Label: "Taken Period", Type: "text", MaxLength: 100},
				{Key: "reason", Label: "Reason", Type: "textarea", MaxLength: 500},
				{Key: "effectiveness", Label: "Effectiveness", Type: "select", Options: crud.Options(effectivenessLevels...)},
				{Key: "side_effects", Label: "Side Effects", Type: "textarea"},
				{Key: "notes", Label: "Notes", Type: "textarea"},
			},
		},
	}
}
