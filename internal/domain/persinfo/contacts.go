package persinfo

import (
	"time"

	"github.com/google/uuid"

	"github.com/scrypto/portal/internal/platform/crud"
	"github.com/scrypto/portal/internal/platform/validation"
)

var contactRelationships = []string{
	"spouse", "parent", "child", "sibling", "partner", "friend", "relative", "guardian", "caregiver", "other",
}

type EmergencyContact struct {
	ContactID        uuid.UUID `json:"contact_id" db:"contact_id"`
	UserID           uuid.UUID `json:"user_id" db:"user_id"`
	Name             string    `json:"name" db:"name"`
	Relationship     *string   `json:"relationship" db:"relationship"`
	Phone            *string   `json:"phone" db:"phone"`
	Email            *string   `json:"email" db:"email"`
	IsPrimary        bool      `json:"is_primary" db:"is_primary"`
	Address          *string   `json:"address" db:"address"`
	AlternativePhone *string   `json:"alternative_phone" db:"alternative_phone"`
	IsActive         bool      `json:"is_active" db:"is_active"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

type EmergencyContactCreate struct {
	Name             string  `json:"name" validate:"required,min=1,max=200"`
	Relationship     *string `json:"relationship" validate:"omitempty,oneof=spouse parent child sibling partner friend relative guardian caregiver other"`
	Phone            *string `json:"phone" validate:"omitempty,phone"`
	Email            *string `json:"email" validate:"omitempty,email"`
	IsPrimary        bool    `json:"is_primary"`
	Address          *string `json:"address"`
	AlternativePhone *string `json:"alternative_phone" validate:"omitempty,phone"`
}

type EmergencyContactUpdate struct {
	Name             *string `json:"name" validate:"omitempty,min=1,max=200"`
	Relationship     *string `json:"relationship" validate:"omitempty,oneof=spouse parent child sibling partner friend relative guardian caregiver other"`
	Phone            *string `json:"phone" validate:"omitempty,phone"`
	Email            *string `json:"email" validate:"omitempty,email"`
	IsPrimary        *bool   `json:"is_primary"`
	Address          *string `json:"address"`
	AlternativePhone *string `json:"alternative_phone" validate:"omitempty,phone"`
}

var EmergencyContactTable = crud.Table{
	Name:          "patient__persinfo__emergency_contacts",
	IDColumn:      "contact_id",
	SearchColumns: []string{"name", "phone", "email"},
	Filters: []crud.Filter{
		{Param: "relationship", Column: "relationship", Values: contactRelationships},
	},
	Sorts:       []string{"created_at", "name", "is_primary"},
	DefaultSort: []crud.Sort{{Column: "is_primary", Desc: true}, {Column: "name"}},
	SoftDelete:  true,
}

func checkContactMethod(in *EmergencyContactCreate) error {
	if in.Phone == nil && in.Email == nil {
		return validation.Fail("phone", "At least one contact method (phone or email) is required")
	}
	return nil
}

func emergencyContactItem(ec *EmergencyContact) crud.ListItem {
	sev := crud.SeverityNormal
	if ec.IsPrimary {
		sev = crud.SeverityCritical
	}
	return crud.ListItem{
		ID:          ec.ContactID.String(),
		Title:       ec.Name,
		Letter:      crud.Initials(ec.Name, "??"),
		Severity:    sev,
		ThirdColumn: crud.OrDefault(ec.Phone, crud.OrDefault(ec.Email, "")),
	}
}

func NewEmergencyContactResource(repo crud.Repository[EmergencyContact]) *crud.Resource[EmergencyContact, EmergencyContactCreate, EmergencyContactUpdate] {
	return &crud.Resource[EmergencyContact, EmergencyContactCreate, EmergencyContactUpdate]{
		Table: EmergencyContactTable,
		Repo:  repo,
		List: crud.ListFeature[EmergencyContact]{
			EntityName: "Emergency contact",
			BasePath:   "/patient/persinfo/emergency-contacts",
			Transform:  emergencyContactItem,
			Filters: []crud.FilterField{
				{Key: "relationship", Label: "Relationship", Type: "select", Options: crud.Options(contactRelationships...)},
			},
		},
		Detail: crud.DetailFeature[EmergencyContact]{
			FormFields: []crud.FormField{
				{Key: "name", Label: "Name", Type: "text", Required: true, MaxLength: 200},
				{Key: "relationship", Label: "Relationship", Type: "select", Options: crud.Options(contactRelationships...)},
				{Key: "phone", Label: "Phone", Type: "tel"},
				{Key: "alternative_phone", Label: "Alternative Phone", Type: "tel"},
				{Key: "email", Label: "Email", Type: "email"},
				{Key: "address", Label: "Address", Type: "textarea"},
				{Key: "is_primary", Label: "Primary Contact", Type: "checkbox"},
			},
		},
		CheckCreate: checkContactMethod,
	}
}
