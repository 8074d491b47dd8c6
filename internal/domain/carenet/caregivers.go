// Package carenet serves the patient's care network.
package carenet

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/scrypto/portal/internal/platform/crud"
	"github.com/scrypto/portal/internal/platform/validation"
)

var (
	relationships = []string{
		"spouse", "parent", "child", "sibling", "partner", "friend", "relative", "guardian", "professional", "other",
	}
	emergencyContactLevels = []string{"primary", "secondary", "tertiary", "none"}
	accessLevels           = []string{"full", "medical_info_only", "emergency_only", "limited", "none"}
)

type Caregiver struct {
	CaregiverID      uuid.UUID       `json:"caregiver_id" db:"caregiver_id"`
	UserID           uuid.UUID       `json:"user_id" db:"user_id"`
	Title            *string         `json:"title" db:"title"`
	FirstName        string          `json:"first_name" db:"first_name"`
	MiddleName       *string         `json:"middle_name" db:"middle_name"`
	LastName         string          `json:"last_name" db:"last_name"`
	IDNumber         *string         `json:"id_number" db:"id_number"`
	PassportNumber   *string         `json:"passport_number" db:"passport_number"`
	Citizenship      *string         `json:"citizenship" db:"citizenship"`
	Relationship     *string         `json:"relationship" db:"relationship"`
	Phone            string          `json:"phone" db:"phone"`
	Email            *string         `json:"email" db:"email"`
	EmergencyContact *string         `json:"emergency_contact" db:"emergency_contact"`
	AccessLevel      *string         `json:"access_level" db:"access_level"`
	Permissions      map[string]bool `json:"permissions" db:"permissions"`
	UseProfileInfo   bool            `json:"use_profile_info" db:"use_profile_info"`
	IsActive         bool            `json:"is_active" db:"is_active"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

type CaregiverCreate struct {
	Title            *string         `json:"title"`
	FirstName        string          `json:"first_name" validate:"required,min=1,max=50"`
	MiddleName       *string         `json:"middle_name" validate:"omitempty,max=50"`
	LastName         string          `json:"last_name" validate:"required,min=1,max=50"`
	IDNumber         *string         `json:"id_number"`
	PassportNumber   *string         `json:"passport_number"`
	Citizenship      *string         `json:"citizenship"`
	Relationship     string          `json:"relationship" validate:"required,oneof=spouse parent child sibling partner friend relative guardian professional other"`
	Phone            string          `json:"phone" validate:"required,phone"`
	Email            *string         `json:"email" validate:"omitempty,email"`
	EmergencyContact string          `json:"emergency_contact" validate:"required,oneof=primary secondary tertiary none"`
	AccessLevel      string          `json:"access_level" validate:"required,oneof=full medical_info_only emergency_only limited none"`
	Permissions      map[string]bool `json:"permissions"`
	UseProfileInfo   *bool           `json:"use_profile_info"`
}

type CaregiverUpdate struct {
	Title            *string         `json:"title"`
	FirstName        *string         `json:"first_name" validate:"omitempty,min=1,max=50"`
	MiddleName       *string         `json:"middle_name" validate:"omitempty,max=50"`
	LastName         *string         `json:"last_name" validate:"omitempty,min=1,max=50"`
	IDNumber         *string         `json:"id_number"`
	PassportNumber   *string         `json:"passport_number"`
	Citizenship      *string         `json:"citizenship"`
	Relationship     *string         `json:"relationship" validate:"omitempty,oneof=spouse parent child sibling partner friend relative guardian professional other"`
	Phone            *string         `json:"phone" validate:"omitempty,phone"`
	Email            *string         `json:"email" validate:"omitempty,email"`
	EmergencyContact *string         `json:"emergency_contact" validate:"omitempty,oneof=primary secondary tertiary none"`
	AccessLevel      *string         `json:"access_level" validate:"omitempty,oneof=full medical_info_only emergency_only limited none"`
	Permissions      map[string]bool `json:"permissions"`
	UseProfileInfo   *bool           `json:"use_profile_info"`
}

var CaregiverTable = crud.Table{
	Name:          "patient__carenet__caregivers",
	IDColumn:      "caregiver_id",
	SearchColumns: []string{"first_name", "last_name", "phone", "email"},
	Filters: []crud.Filter{
		{Param: "relationship", Column: "relationship", Values: relationships},
		{Param: "access_level", Column: "access_level", Values: accessLevels},
		{Param: "emergency_contact", Column: "emergency_contact", Values: emergencyContactLevels},
	},
	Sorts:      []string{"created_at", "first_name", "last_name", "access_level"},
	SoftDelete: true,
}

func checkIdentity(in *CaregiverCreate) error {
	if in.IDNumber == nil && in.PassportNumber == nil {
		return validation.Fail("id_number", "Either ID number or passport number is required")
	}
	return nil
}

func accessSeverity(level string) crud.Severity {
	switch level {
	case "full":
		return crud.SeverityCritical
	case "medical_info_only":
		return crud.SeveritySevere
	case "emergency_only":
		return crud.SeverityModerate
	case "limited":
		return crud.SeverityMild
	}
	return crud.SeverityNormal
}

// priority orders caregivers by emergency contact rank.
func priority(emergencyContact string) int {
	switch emergencyContact {
	case "primary":
		return 1
	case "secondary":
		return 2
	case "tertiary":
		return 3
	}
	return 4
}

func caregiverItem(c *Caregiver) crud.ListItem {
	third := "Not specified"
	if r := crud.Deref(c.Relationship); r != "" {
		third = crud.Label(r)
	}
	return crud.ListItem{
		ID:          c.CaregiverID.String(),
		Title:       c.FirstName + " " + c.LastName,
		Letter:      crud.FirstInitials("??", c.FirstName, c.LastName),
		Severity:    accessSeverity(crud.Deref(c.AccessLevel)),
		ThirdColumn: third,
	}
}

func NewCaregiverResource(repo crud.Repository[Caregiver]) *crud.Resource[Caregiver, CaregiverCreate, CaregiverUpdate] {
	return &crud.Resource[Caregiver, CaregiverCreate, CaregiverUpdate]{
		Table: CaregiverTable,
		Repo:  repo,
		List: crud.ListFeature[Caregiver]{
			EntityName: "Caregiver",
			BasePath:   "/patient/carenet/caregivers",
			Transform:  caregiverItem,
			Less: func(a, b *Caregiver) bool {
				return priority(crud.Deref(a.EmergencyContact)) < priority(crud.Deref(b.EmergencyContact))
			},
			Filters: []crud.FilterField{
				{Key: "relationship", Label: "Relationship", Type: "select", Options: crud.Options(relationships...)},
				{Key: "access_level", Label: "Access Level", Type: "select", Options: crud.Options(accessLevels...)},
				{Key: "emergency_contact", Label: "Emergency Contact", Type: "select", Options: crud.Options(emergencyContactLevels...)},
			},
		},
		Detail: crud.DetailFeature[Caregiver]{
			FormFields: []crud.FormField{
				{Key: "title", Label: "Title", Type: "text"},
				{Key: "first_name", Label: "First Name", Type: "text", Required: true, MaxLength: 50},
				{Key: "middle_name", Label: "Middle Name", Type: "text", MaxLength: 50},
				{Key: "last_name", Label: "Last Name", Type: "text", Required: true, MaxLength: 50},
				{Key: "id_number", Label: "ID Number", Type: "text"},
				{Key: "passport_number", Label: "Passport Number", Type: "text"},
				{Key: "citizenship", Label: "Citizenship", Type: "text"},
				{Key: "relationship", Label: "Relationship", Type: "select", Required: true, Options: crud.Options(relationships...)},
				{Key: "phone", Label: "Phone", Type: "tel", Required: true},
				{Key: "email", Label: "Email", Type: "email"},
				{Key: "emergency_contact", Label: "Emergency Contact", Type: "select", Required: true, Options: crud.Options(emergencyContactLevels...)},
				{Key: "access_level", Label: "Access Level", Type: "select", Required: true, Options: crud.Options(accessLevels...)},
				{Key: "use_profile_info", Label: "Use Profile Info", Type: "checkbox"},
			},
		},
		CheckCreate: checkIdentity,
	}
}

type Repos struct {
	Caregivers crud.Repository[Caregiver]
}

func NewPGRepos(pool *pgxpool.Pool) Repos {
	return Repos{Caregivers: crud.NewPGRepository[Caregiver](pool, CaregiverTable)}
}

func RegisterRoutes(g *echo.Group, r Repos) {
	NewCaregiverResource(r.Caregivers).RegisterRoutes(g.Group("/carenet/caregivers"))
}
