package persinfo

import (
	"time"

	"github.com/google/uuid"

	"github.com/scrypto/portal/internal/platform/crud"
)

var (
	dependentRelationships = []string{"spouse", "child", "parent", "sibling", "partner", "guardian", "other"}
	titles                 = []string{"Mr", "Mrs", "Ms", "Dr", "Prof", "Master", "Miss"}
)

type Dependent struct {
	DependentID      uuid.UUID `json:"dependent_id" db:"dependent_id"`
	UserID           uuid.UUID `json:"user_id" db:"user_id"`
	FullName         string    `json:"full_name" db:"full_name"`
	Relationship     *string   `json:"relationship" db:"relationship"`
	DateOfBirth      *string   `json:"date_of_birth" db:"date_of_birth"`
	IDNumber         *string   `json:"id_number" db:"id_number"`
	MedicalAidNumber *string   `json:"medical_aid_number" db:"medical_aid_number"`
	Title            *string   `json:"title" db:"title"`
	FirstName        *string   `json:"first_name" db:"first_name"`
	MiddleName       *string   `json:"middle_name" db:"middle_name"`
	LastName         *string   `json:"last_name" db:"last_name"`
	PassportNumber   *string   `json:"passport_number" db:"passport_number"`
	Citizenship      *string   `json:"citizenship" db:"citizenship"`
	UseProfileInfo   bool      `json:"use_profile_info" db:"use_profile_info"`
	IsActive         bool      `json:"is_active" db:"is_active"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

type DependentCreate struct {
	FullName         string  `json:"full_name" validate:"required,min=1,max=200"`
	Relationship     *string `json:"relationship" validate:"omitempty,oneof=spouse child parent sibling partner guardian other"`
	DateOfBirth      *string `json:"date_of_birth" validate:"omitempty,isodate"`
	IDNumber         *string `json:"id_number" validate:"omitempty,max=20"`
	MedicalAidNumber *string `json:"medical_aid_number" validate:"omitempty,max=50"`
	Title            *string `json:"title" validate:"omitempty,oneof=Mr Mrs Ms Dr Prof Master Miss"`
	FirstName        *string `json:"first_name" validate:"omitempty,max=100"`
	MiddleName       *string `json:"middle_name" validate:"omitempty,max=100"`
	LastName         *string `json:"last_name" validate:"omitempty,max=100"`
	PassportNumber   *string `json:"passport_number" validate:"omitempty,max=20"`
	Citizenship      *string `json:"citizenship" validate:"omitempty,max=100"`
	UseProfileInfo   bool    `json:"use_profile_info"`
}

type DependentUpdate struct {
	FullName         *string `json:"full_name" validate:"omitempty,min=1,max=200"`
	Relationship     *string `json:"relationship" validate:"omitempty,oneof=spouse child parent sibling partner guardian other"`
	DateOfBirth      *string `json:"date_of_birth" validate:"omitempty,isodate"`
	IDNumber         *string `json:"id_number" validate:"omitempty,max=20"`
	MedicalAidNumber *string `json:"medical_aid_number" validate:"omitempty,max=50"`
	Title            *string `json:"title" validate:"omitempty,oneof=Mr Mrs Ms Dr Prof Master Miss"`
	FirstName        *string `json:"first_name" validate:"omitempty,max=100"`
	MiddleName       *string `json:"middle_name" validate:"omitempty,max=100"`
	LastName         *string `json:"last_name" validate:"omitempty,max=100"`
	PassportNumber   *string `json:"passport_number" validate:"omitempty,max=20"`
	Citizenship      *string `json:"citizenship" validate:"omitempty,max=100"`
	UseProfileInfo   *bool   `json:"use_profile_info"`
}

var DependentTable = crud.Table{
	Name:          "patient__persinfo__dependents",
	IDColumn:      "dependent_id",
	SearchColumns: []string{"full_name", "id_number"},
	Filters: []crud.Filter{
		{Param: "relationship", Column: "relationship", Values: dependentRelationships},
	},
	Sorts:      []string{"created_at", "full_name", "date_of_birth", "relationship"},
	SoftDelete: true,
}

func dependentSeverity(relationship string) crud.Severity {
	switch relationship {
	case "spouse", "child":
		return crud.SeverityCritical
	case "parent", "guardian":
		return crud.SeveritySevere
	case "partner":
		return crud.SeverityModerate
	case "sibling":
		return crud.SeverityMild
	}
	return crud.SeverityNormal
}

func dependentItem(d *Dependent) crud.ListItem {
	third := "Not specified"
	if r := crud.Deref(d.Relationship); r != "" {
		third = crud.Label(r)
	}
	return crud.ListItem{
		ID:          d.DependentID.String(),
		Title:       d.FullName,
		Letter:      crud.Initials(d.FullName, "??"),
		Severity:    dependentSeverity(crud.Deref(d.Relationship)),
		ThirdColumn: third,
	}
}

func NewDependentResource(repo crud.Repository[Dependent]) *crud.Resource[Dependent, DependentCreate, DependentUpdate] {
	return &crud.Resource[Dependent, DependentCreate, DependentUpdate]{
		Table: DependentTable,
		Repo:  repo,
		List: crud.ListFeature[Dependent]{
			EntityName: "Dependent",
			BasePath:   "/patient/persinfo/dependents",
			Transform:  dependentItem,
			Filters: []crud.FilterField{
				{Key: "relationship", Label: "Relationship", Type: "select", Options: crud.Options(dependentRelationships...)},
			},
		},
		Detail: crud.DetailFeature[Dependent]{
			FormFields: []crud.FormField{
				{Key: "title", Label: "Title", Type: "select", Options: crud.Options(titles...)},
				{Key: "full_name", Label: "Full Name", Type: "text", Required: true, MaxLength: 200},
				{Key: "first_name", Label: "First Name", Type: "text", MaxLength: 100},
				{Key: "middle_name", Label: "Middle Name", Type: "text", MaxLength: 100},
				{Key: "last_name", Label: "Last Name", Type: "text", MaxLength: 100},
				{Key: "relationship", Label: "Relationship", Type: "select", Options: crud.Options(dependentRelationships...)},
				{Key: "date_of_birth", Label: "Date of Birth", Type: "date"},
				{Key: "id_number", Label: "ID Number", Type: "text", MaxLength: 20},
				{Key: "passport_number", Label: "Passport Number", Type: "text", MaxLength: 20},
				{Key: "citizenship", Label: "Citizenship", Type: "text", MaxLength: 100},
				{Key: "medical_aid_number", Label: "Medical Aid Number", Type: "text", MaxLength: 50},
				{Key: "use_profile_info", Label: "Use My Profile Info", Type: "checkbox"},
			},
		},
	}
}
