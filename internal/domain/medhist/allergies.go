package medhist

import (
	"time"

	"github.com/google/uuid"

	"github.com/scrypto/portal/internal/platform/crud"
)

var (
	allergenTypes     = []string{"food", "medication", "environmental", "other"}
	allergySeverities = []string{"mild", "moderate", "severe", "life_threatening"}
)

type Allergy struct {
	AllergyID           uuid.UUID `json:"allergy_id" db:"allergy_id"`
	UserID              uuid.UUID `json:"user_id" db:"user_id"`
	Allergen            string    `json:"allergen" db:"allergen"`
	AllergenType        *string   `json:"allergen_type" db:"allergen_type"`
	Severity            *string   `json:"severity" db:"severity"`
	Reaction            *string   `json:"reaction" db:"reaction"`
	FirstObserved       *string   `json:"first_observed" db:"first_observed"`
	Notes               *string   `json:"notes" db:"notes"`
	TriggerFactors      *string   `json:"trigger_factors" db:"trigger_factors"`
	EmergencyActionPlan *string   `json:"emergency_action_plan" db:"emergency_action_plan"`
	IsActive            bool      `json:"is_active" db:"is_active"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}

type AllergyCreate struct {
	Allergen            string  `json:"allergen" validate:"required,min=1,max=200"`
	AllergenType        string  `json:"allergen_type" validate:"required,oneof=food medication environmental other"`
	Severity            string  `json:"severity" validate:"required,oneof=mild moderate severe life_threatening"`
	Reaction            *string `json:"reaction" validate:"omitempty,max=1000"`
	FirstObserved       *string `json:"first_observed" validate:"omitempty,isodate"`
	Notes               *string `json:"notes"`
	TriggerFactors      *string `json:"trigger_factors"`
	EmergencyActionPlan *string `json:"emergency_action_plan"`
}

type AllergyUpdate struct {
	Allergen            *string `json:"allergen" validate:"omitempty,min=1,max=200"`
	AllergenType        *string `json:"allergen_type" validate:"omitempty,oneof=food medication environmental other"`
	Severity            *string `json:"severity" validate:"omitempty,oneof=mild moderate severe life_threatening"`
	Reaction            *string `json:"reaction" validate:"omitempty,max=1000"`
	FirstObserved       *string `json:"first_observed" validate:"omitempty,isodate"`
	Notes               *string `json:"notes"`
	TriggerFactors      *string `json:"trigger_factors"`
	EmergencyActionPlan *string `json:"emergency_action_plan"`
}

var AllergyTable = crud.Table{
	Name:          "patient__medhist__allergies",
	IDColumn:      "allergy_id",
	SearchColumns: []string{"allergen", "reaction"},
	Filters: []crud.Filter{
		{Param: "severity", Column: "severity", Values: allergySeverities},
		{Param: "allergen_type", Column: "allergen_type", Values: allergenTypes},
	},
	Sorts:      []string{"created_at", "allergen", "severity", "allergen_type"},
	SoftDelete: true,
}

func allergySeverity(s string) crud.Severity {
	switch s {
	case "life_threatening":
		return crud.SeverityCritical
	case "severe":
		return crud.SeveritySevere
	case "moderate":
		return crud.SeverityModerate
	case "mild":
		return crud.SeverityMild
	}
	return crud.SeverityNormal
}

func allergyItem(a *Allergy) crud.ListItem {
	return crud.ListItem{
		ID:          a.AllergyID.String(),
		Title:       a.Allergen,
		Letter:      crud.Initials(a.Allergen, "??"),
		Severity:    allergySeverity(crud.Deref(a.Severity)),
		ThirdColumn: a.CreatedAt.Format("2006-01-02"),
	}
}

func NewAllergyResource(repo crud.Repository[Allergy]) *crud.Resource[Allergy, AllergyCreate, AllergyUpdate] {
	return &crud.Resource[Allergy, AllergyCreate, AllergyUpdate]{
		Table: AllergyTable,
		Repo:  repo,
		List: crud.ListFeature[Allergy]{
			EntityName: "Allergy",
			BasePath:   "/patient/medhist/allergies",
			Transform:  allergyItem,
			Filters: []crud.FilterField{
				{Key: "severity", Label: "Severity", Type: "select", Options: crud.Options(allergySeverities...)},
				{Key: "allergen_type", Label: "Type", Type: "select", Options: crud.Options(allergenTypes...)},
			},
		},
		Detail: crud.DetailFeature[Allergy]{
			FormFields: []crud.FormField{
				{Key: "allergen", Label: "Allergen", Type: "text", Required: true, MaxLength: 200},
				{Key: "allergen_type", Label: "Allergen Type", Type: "select", Required: true, Options: crud.Options(allergenTypes...)},
				{Key: "severity", Label: "Severity", Type: "select", Required: true, Options: crud.Options(allergySeverities...)},
				{Key: "reaction", Label: "Reaction", Type: "textarea", MaxLength: 1000},
				{Key: "first_observed", Label: "First Observed", Type: "date"},
				{Key: "trigger_factors", Label: "Trigger Factors", Type: "textarea"},
				{Key: "emergency_action_plan", Label: "Emergency Action Plan", Type: "textarea"},
				{Key: "notes", Label: "Notes", Type: "textarea"},
			},
		},
	}
}
