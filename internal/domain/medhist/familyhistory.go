package medhist

import (
	"time"

	"github.com/google/uuid"

	"github.com/scrypto/portal/internal/platform/crud"
)

var familyRelationships = []string{"parent", "sibling", "grandparent", "child", "aunt", "uncle", "cousin"}

type FamilyHistory struct {
	FamilyHistoryID uuid.UUID `json:"family_history_id" db:"family_history_id"`
	UserID          uuid.UUID `json:"user_id" db:"user_id"`
	Relative        string    `json:"relative" db:"relative"`
	Condition       string    `json:"condition" db:"condition"`
	Relationship    string    `json:"relationship" db:"relationship"`
	AgeAtOnset      *int      `json:"age_at_onset" db:"age_at_onset"`
	Notes           *string   `json:"notes" db:"notes"`
	IsActive        bool      `json:"is_active" db:"is_active"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

type FamilyHistoryCreate struct {
	Relative     string  `json:"relative" validate:"required,min=1,max=200"`
	Condition    string  `json:"condition" validate:"required,min=1,max=200"`
	Relationship string  `json:"relationship" validate:"required,oneof=parent sibling grandparent child aunt uncle cousin"`
	AgeAtOnset   *int    `json:"age_at_onset" validate:"omitempty,min=0,max=150"`
	Notes        *string `json:"notes"`
}

type FamilyHistoryUpdate struct {
	Relative     *string `json:"relative" validate:"omitempty,min=1,max=200"`
	Condition    *string `json:"condition" validate:"omitempty,min=1,max=200"`
	Relationship *string `json:"relationship" validate:"omitempty,oneof=parent sibling grandparent child aunt uncle cousin"`
	AgeAtOnset   *int    `json:"age_at_onset" validate:"omitempty,min=0,max=150"`
	Notes        *string `json:"notes"`
}

var FamilyHistoryTable = crud.Table{
	Name:          "patient__medhist__family_hist",
	IDColumn:      "family_history_id",
	SearchColumns: []string{"relative", "condition"},
	Filters: []crud.Filter{
		{Param: "relationship", Column: "relationship", Values: familyRelationships},
	},
	Sorts:       []string{"relationship", "relative", "condition", "created_at"},
	DefaultSort: []crud.Sort{{Column: "relationship"}, {Column: "relative"}},
	SoftDelete:  true,
}

// geneticRisk estimates hereditary risk from how close the relative is and
// whether the condition appeared before 50.
func geneticRisk(relationship string, ageAtOnset *int) crud.Severity {
	early := ageAtOnset != nil && *ageAtOnset < 50
	switch relationship {
	case "parent", "sibling", "child":
		if early {
			return crud.SeverityCritical
		}
		return crud.SeveritySevere
	case "grandparent", "aunt", "uncle":
		if early {
			return crud.SeverityModerate
		}
		return crud.SeverityMild
	}
	return crud.SeverityNormal
}

func familyHistoryItem(f *FamilyHistory) crud.ListItem {
	return crud.ListItem{
		ID:          f.FamilyHistoryID.String(),
		Title:       f.Relative + " - " + f.Condition,
		Letter:      crud.Initials(f.Relative, "??"),
		Severity:    geneticRisk(f.Relationship, f.AgeAtOnset),
		ThirdColumn: crud.Label(f.Relationship),
	}
}

func NewFamilyHistoryResource(repo crud.Repository[FamilyHistory]) *crud.Resource[FamilyHistory, FamilyHistoryCreate, FamilyHistoryUpdate] {
	onset0, onset150 := crud.Range(0, 150)
	return &crud.Resource[FamilyHistory, FamilyHistoryCreate, FamilyHistoryUpdate]{
		Table: FamilyHistoryTable,
		Repo:  repo,
		List: crud.ListFeature[FamilyHistory]{
			EntityName: "Family history",
			BasePath:   "/patient/medhist/family-history",
			Transform:  familyHistoryItem,
			Filters: []crud.FilterField{
				{Key: "relationship", Label: "Relationship", Type: "select", Options: crud.Options(familyRelationships...)},
			},
		},
		Detail: crud.DetailFeature[FamilyHistory]{
			FormFields: []crud.FormField{
				{Key: "relative", Label: "Relative", Type: "text", Required: true, MaxLength: 200},
				{Key: "condition", Label: "Condition", Type: "text", Required: true, MaxLength: 200},
				{Key: "relationship", Label: "Relationship", Type: "select", Required: true, Options: crud.Options(familyRelationships...)},
				{Key: "age_at_onset", Label: "Age at Onset", Type: "number", Min: onset0, Max: onset150},
				{Key: "notes", Label: "Notes", Type: "textarea"},
			},
		},
	}
}
