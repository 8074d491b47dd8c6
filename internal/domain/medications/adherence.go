package medications

import (
	"time"

	"github.com/google/uuid"

	"github.com/scrypto/portal/internal/platform/crud"
)

var adherenceStatuses = []string{"taken", "taken_late", "taken_early", "missed", "skipped"}

type Adherence struct {
	AdherenceID    uuid.UUID  `json:"adherence_id" db:"adherence_id"`
	UserID         uuid.UUID  `json:"user_id" db:"user_id"`
	MedicationID   *uuid.UUID `json:"medication_id" db:"medication_id"`
	MedicationName string     `json:"medication_name" db:"medication_name"`
	ScheduledTime  *string    `json:"scheduled_time" db:"scheduled_time"`
	ActualTime     *string    `json:"actual_time" db:"actual_time"`
	Status         string     `json:"status" db:"status"`
	Notes          *string    `json:"notes" db:"notes"`
	IsActive       bool       `json:"is_active" db:"is_active"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

type AdherenceCreate struct {
	MedicationID   *string `json:"medication_id" validate:"omitempty,uuid"`
	MedicationName string  `json:"medication_name" validate:"required,min=1,max=200"`
	ScheduledTime  *string `json:"scheduled_time" validate:"omitempty,isodate"`
	ActualTime     *string `json:"actual_time" validate:"omitempty,isodate"`
	Status         string  `json:"status" validate:"required,oneof=taken taken_late taken_early missed skipped"`
	Notes          *string `json:"notes"`
}

type AdherenceUpdate struct {
	MedicationID   *string `json:"medication_id" validate:"omitempty,uuid"`
	MedicationName *string `json:"medication_name" validate:"omitempty,min=1,max=200"`
	ScheduledTime  *string `json:"scheduled_time" validate:"omitempty,isodate"`
	ActualTime     *string `json:"actual_time" validate:"omitempty,isodate"`
	Status         *string `json:"status" validate:"omitempty,oneof=taken taken_late taken_early missed skipped"`
	Notes          *string `json:"notes"`
}

var AdherenceTable = crud.Table{
	Name:          "patient__medications__adherence",
	IDColumn:      "adherence_id",
	SearchColumns: []string{"medication_name", "notes"},
	Filters: []crud.Filter{
		{Param: "status", Column: "status", Values: adherenceStatuses},
		{Param: "medication_id", Column: "medication_id"},
	},
	Sorts:       []string{"created_at", "scheduled_time", "medication_name", "status"},
	DefaultSort: []crud.Sort{{Column: "scheduled_time", Desc: true}},
	SoftDelete:  true,
}

func adherenceSeverity(status string) crud.Severity {
	switch status {
	case "taken_late", "taken_early":
		return crud.SeverityMild
	case "skipped":
		return crud.SeverityModerate
	case "missed":
		return crud.SeveritySevere
	}
	return crud.SeverityNormal
}

func adherenceItem(a *Adherence) crud.ListItem {
	when := "Unscheduled"
	if s := crud.Deref(a.ScheduledTime); len(s) >= 10 {
		when = s[:10]
	}
	return crud.ListItem{
		ID:          a.AdherenceID.String(),
		Title:       a.MedicationName + " - " + crud.Label(a.Status),
		Letter:      crud.Initials(a.MedicationName, "AD"),
		Severity:    adherenceSeverity(a.Status),
		ThirdColumn: when,
	}
}

func NewAdherenceResource(repo crud.Repository[Adherence]) *crud.Resource[Adherence, AdherenceCreate, AdherenceUpdate] {
	return &crud.Resource[Adherence, AdherenceCreate, AdherenceUpdate]{
		Table: AdherenceTable,
		Repo:  repo,
		List: crud.ListFeature[Adherence]{
			EntityName: "Adherence record",
			BasePath:   "/patient/medications/adherence",
			Transform:  adherenceItem,
			Filters: []crud.FilterField{
				{Key: "status", Label: "Status", Type: "select", Options: crud.Options(adherenceStatuses...)},
			},
		},
		Detail: crud.DetailFeature[Adherence]{
			FormFields: []crud.FormField{
				{Key: "medication_name", Label: "Medication Name", Type: "text", Required: true, MaxLength: 200},
				{Key: "scheduled_time", Label: "Scheduled Time", Type: "datetime-local"},
				{Key: "actual_time", Label: "Actual Time", Type: "datetime-local"},
				{Key: "status", Label: "Status", Type: "select", Required: true, Options: crud.Options(adherenceStatuses...)},
				{Key: "notes", Label: "Notes", Type: "textarea"},
			},
		},
	}
}
