package medhist

import (
	"time"

	"github.com/google/uuid"

	"github.com/scrypto/portal/internal/platform/crud"
)

var (
	injectionSites = []string{"left_arm", "right_arm", "left_thigh", "right_thigh", "oral", "nasal"}
	adminRoutes    = []string{"intramuscular", "subcutaneous", "oral", "intranasal", "intradermal"}
)

// now is replaced in tests.
var now = time.Now

type Immunization struct {
	ImmunizationID uuid.UUID `json:"immunization_id" db:"immunization_id"`
	UserID         uuid.UUID `json:"user_id" db:"user_id"`
	VaccineName    string    `json:"vaccine_name" db:"vaccine_name"`
	VaccineCode    *string   `json:"vaccine_code" db:"vaccine_code"`
	DateGiven      *string   `json:"date_given" db:"date_given"`
	ProviderName   *string   `json:"provider_name" db:"provider_name"`
	BatchNumber    *string   `json:"batch_number" db:"batch_number"`
	Site           *string   `json:"site" db:"site"`
	Route          *string   `json:"route" db:"route"`
	Notes          *string   `json:"notes" db:"notes"`
	IsActive       bool      `json:"is_active" db:"is_active"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

type ImmunizationCreate struct {
	VaccineName  string  `json:"vaccine_name" validate:"required,min=1,max=200"`
	VaccineCode  *string `json:"vaccine_code" validate:"omitempty,max=50"`
	DateGiven    *string `json:"date_given" validate:"omitempty,isodate"`
	ProviderName *string `json:"provider_name" validate:"omitempty,max=200"`
	BatchNumber  *string `json:"batch_number" validate:"omitempty,max=50"`
	Site         *string `json:"site" validate:"omitempty,oneof=left_arm right_arm left_thigh right_thigh oral nasal"`
	Route        *string `json:"route" validate:"omitempty,oneof=intramuscular subcutaneous oral intranasal intradermal"`
	Notes        *string `json:"notes"`
}

type ImmunizationUpdate struct {
	VaccineName  *string `json:"vaccine_name" validate:"omitempty,min=1,max=200"`
	VaccineCode  *string `json:"vaccine_code" validate:"omitempty,max=50"`
	DateGiven    *string `json:"date_given" validate:"omitempty,isodate"`
	ProviderName *string `json:"provider_name" validate:"omitempty,max=200"`
	BatchNumber  *string `json:"batch_number" validate:"omitempty,max=50"`
	Site         *string `json:"site" validate:"omitempty,oneof=left_arm right_arm left_thigh right_thigh oral nasal"`
	Route        *string `json:"route" validate:"omitempty,oneof=intramuscular subcutaneous oral intranasal intradermal"`
	Notes        *string `json:"notes"`
}

var ImmunizationTable = crud.Table{
	Name:          "patient__medhist__immunizations",
	IDColumn:      "immunization_id",
	SearchColumns: []string{"vaccine_name", "provider_name"},
	Filters: []crud.Filter{
		{Param: "site", Column: "site", Values: injectionSites},
		{Param: "route", Column: "route", Values: adminRoutes},
		{Param: "start_date", Column: "date_given", Op: crud.OpGte},
		{Param: "end_date", Column: "date_given", Op: crud.OpLte},
	},
	Sorts:       []string{"created_at", "date_given", "vaccine_name"},
	DefaultSort: []crud.Sort{{Column: "date_given", Desc: true}},
	SoftDelete:  true,
}

// recencySeverity grades how recently a vaccine was given: within a month
// is critical, six months moderate and a year mild.
func recencySeverity(dateGiven string, at time.Time) crud.Severity {
	if len(dateGiven) < 10 {
		return crud.SeverityNormal
	}
	given, err := time.Parse("2006-01-02", dateGiven[:10])
	if err != nil {
		return crud.SeverityNormal
	}
	at = time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)
	switch {
	case !given.Before(at.AddDate(0, -1, 0)):
		return crud.SeverityCritical
	case !given.Before(at.AddDate(0, -6, 0)):
		return crud.SeverityModerate
	case !given.Before(at.AddDate(-1, 0, 0)):
		return crud.SeverityMild
	}
	return crud.SeverityNormal
}

func immunizationItem(i *Immunization) crud.ListItem {
	return crud.ListItem{
		ID:          i.ImmunizationID.String(),
		Title:       i.VaccineName,
		Letter:      crud.Initials(i.VaccineName, "??"),
		Severity:    recencySeverity(crud.Deref(i.DateGiven), now()),
		ThirdColumn: crud.OrDefault(i.DateGiven, "Unknown"),
	}
}

func NewImmunizationResource(repo crud.Repository[Immunization]) *crud.Resource[Immunization, ImmunizationCreate, ImmunizationUpdate] {
	return &crud.Resource[Immunization, ImmunizationCreate, ImmunizationUpdate]{
		Table: ImmunizationTable,
		Repo:  repo,
		List: crud.ListFeature[Immunization]{
			EntityName: "Immunization",
			BasePath:   "/patient/medhist/immunizations",
			Transform:  immunizationItem,
			Filters: []crud.FilterField{
				{Key: "site", Label: "Site", Type: "select", Options: crud.Options(injectionSites...)},
				{Key: "route", Label: "Route", Type: "select", Options: crud.Options(adminRoutes...)},
				{Key: "start_date", Label: "From", Type: "date"},
				{Key: "end_date", Label: "To", Type: "date"},
			},
		},
		Detail: crud.DetailFeature[Immunization]{
			FormFields: []crud.FormField{
				{Key: "vaccine_name", Label: "Vaccine", Type: "text", Required: true, MaxLength: 200},
				{Key: "vaccine_code", Label: "Vaccine Code", Type: "text", MaxLength: 50},
				{Key: "date_given", Label: "Date Given", Type: "date"},
				{Key: "provider_name", Label: "Provider", Type: "text", MaxLength: 200},
				{Key: "batch_number", Label: "Batch Number", Type: "text", MaxLength: 50},
				{Key: "site", Label: "Injection Site", Type: "select", Options: crud.Options(injectionSites...)},
				{Key: "route", Label: "Route", Type: "select", Options: crud.Options(adminRoutes...)},
				{Key: "notes", Label: "Notes", Type: "textarea"},
			},
		},
	}
}
