package medications

import (
	"time"

	"github.com/google/uuid"

	"github.com/scrypto/portal/internal/platform/crud"
)

var (
	medicationStatuses = []string{"active", "paused", "completed", "discontinued"}
	medicationRoutes   = []string{"oral", "topical", "injection", "inhaled", "sublingual", "rectal", "transdermal"}
)

type ActiveMedication struct {
	MedicationID   uuid.UUID `json:"medication_id" db:"medication_id"`
	UserID         uuid.UUID `json:"user_id" db:"user_id"`
	MedicationName string    `json:"medication_name" db:"medication_name"`
	Dosage         *string   `json:"dosage" db:"dosage"`
	Frequency      *string   `json:"frequency" db:"frequency"`
	Route          *string   `json:"route" db:"route"`
	StartDate      *string   `json:"start_date" db:"start_date"`
	EndDate        *string   `json:"end_date" db:"end_date"`
	Prescriber     *string   `json:"prescriber" db:"prescriber"`
	Status         string    `json:"status" db:"status"`
	Notes          *string   `json:"notes" db:"notes"`
	IsActive       bool      `json:"is_active" db:"is_active"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

type ActiveMedicationCreate struct {
	MedicationName string  `json:"medication_name" validate:"required,min=1,max=200"`
	Dosage         *string `json:"dosage" validate:"omitempty,max=100"`
	Frequency      *string `json:"frequency" validate:"omitempty,max=100"`
	Route          *string `json:"route" validate:"omitempty,oneof=oral topical injection inhaled sublingual rectal transdermal"`
	StartDate      *string `json:"start_date" validate:"omitempty,isodate"`
	EndDate        *string `json:"end_date" validate:"omitempty,isodate"`
	Prescriber     *string `json:"prescriber" validate:"omitempty,max=200"`
	Status         *string `json:"status" validate:"omitempty,oneof=active paused completed discontinued"`
	Notes          *string `json:"notes"`
}

type ActiveMedicationUpdate struct {
	MedicationName *string `json:"medication_name" validate:"omitempty,min=1,max=200"`
	Dosage         *string `json:"dosage" validate:"omitempty,max=100"`
	Frequency      *string `json:"frequency" validate:"omitempty,max=100"`
	Route          *string `json:"route" validate:"omitempty,oneof=oral topical injection inhaled sublingual rectal transdermal"`
	StartDate      *string `json:"start_date" validate:"omitempty,isodate"`
	EndDate        *string `json:"end_date" validate:"omitempty,isodate"`
	Prescriber     *string `json:"prescriber" validate:"omitempty,max=200"`
	Status         *string `json:"status" validate:"omitempty,oneof=active paused completed discontinued"`
	Notes          *string `json:"notes"`
}

var ActiveTable = crud.Table{
	Name:          "patient__medications__active",
	IDColumn:      "medication_id",
	SearchColumns: []string{"medication_name", "prescriber"},
	Filters: []crud.Filter{
		{Param: "status", Column: "status", Values: medicationStatuses},
		{Param: "route", Column: "route", Values: medicationRoutes},
	},
	Sorts:      []string{"created_at", "medication_name", "status", "frequency", "start_date"},
	SoftDelete: true,
}

func defaultStatus(in *ActiveMedicationCreate) error {
	if in.Status == nil {
		s := "active"
		in.Status = &s
	}
	return nil
}

func statusSeverity(status string) crud.Severity {
	switch status {
	case "paused":
		return crud.SeverityMild
	case "completed":
		return crud.SeverityModerate
	case "discontinued":
		return crud.SeveritySevere
	}
	return crud.SeverityNormal
}

func activeItem(m *ActiveMedication) crud.ListItem {
	title := m.MedicationName
	if d := crud.Deref(m.Dosage); d != "" {
		title += " " + d
	}
	return crud.ListItem{
		ID:          m.MedicationID.String(),
		Title:       title,
		Letter:      crud.Initials(m.MedicationName, "MD"),
		Severity:    statusSeverity(m.Status),
		ThirdColumn: crud.OrDefault(m.Frequency, "As needed"),
	}
}

func NewActiveResource(repo crud.Repository[ActiveMedication]) *crud.Resource[ActiveMedication, ActiveMedicationCreate, ActiveMedicationUpdate] {
	return &crud.Resource[ActiveMedication, ActiveMedicationCreate, ActiveMedicationUpdate]{
		Table: ActiveTable,
		Repo:  repo,
		List: crud.ListFeature[ActiveMedication]{
			EntityName: "Medication",
			BasePath:   "/patient/medications/active",
			Transform:  activeItem,
			Filters: []crud.FilterField{
				{Key: "status", Label: "Status", Type: "select", Options: crud.Options(medicationStatuses...)},
				{Key: "route", Label: "Route", Type: "select", Options: crud.Options(medicationRoutes...)},
			},
		},
		Detail: crud.DetailFeature[ActiveMedication]{
			FormFields: []crud.FormField{
				{Key: "medication_name", Label: "Medication Name", Type: "text", Required: true, MaxLength: 200},
				{Key: "dosage", Label: "Dosage", Type: "text", MaxLength: 100},
				{Key: "frequency", Label: "Frequency", Type: "text", MaxLength: 100},
				{Key: "route", Label: "Route", Type: "select", Options: crud.Options(medicationRoutes...)},
				{Key: "start_date", Label: "Start Date", Type: "date"},
				{Key: "end_date", Label: "End Date", Type: "date"},
				{Key: "prescriber", Label: "Prescriber", Type: "text", MaxLength: 200},
				{Key: "status", Label: "Status", Type: "select", Options: crud.Options(medicationStatuses...)},
				{Key: "notes", Label: "Notes", Type: "textarea"},
			},
		},
		CheckCreate: defaultStatus,
	}
}
