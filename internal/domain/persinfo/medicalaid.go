package persinfo

import (
	"time"

	"github.com/google/uuid"

	"github.com/scrypto/portal/internal/platform/crud"
)

type MedicalAid struct {
	MedicalAidID          uuid.UUID `json:"medical_aid_id" db:"medical_aid_id"`
	UserID                uuid.UUID `json:"user_id" db:"user_id"`
	MedicalAidName        string    `json:"medical_aid_name" db:"medical_aid_name"`
	PlanType              *string   `json:"plan_type" db:"plan_type"`
	MemberNumber          string    `json:"member_number" db:"member_number"`
	PolicyHolderID        *string   `json:"policy_holder_id" db:"policy_holder_id"`
	DependentCode         *string   `json:"dependent_code" db:"dependent_code"`
	IsPrimaryMember       *bool     `json:"is_primary_member" db:"is_primary_member"`
	PolicyHolderFirstName *string   `json:"policy_holder_first_name" db:"policy_holder_first_name"`
	PolicyHolderLastName  *string   `json:"policy_holder_last_name" db:"policy_holder_last_name"`
	PolicyHolderEmail     *string   `json:"policy_holder_email" db:"policy_holder_email"`
	PolicyHolderPhone     *string   `json:"policy_holder_phone" db:"policy_holder_phone"`
	NumberOfDependents    *int      `json:"number_of_dependents" db:"number_of_dependents"`
	IsActive              bool      `json:"is_active" db:"is_active"`
	CreatedAt             time.Time `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time `json:"updated_at" db:"updated_at"`
}

type MedicalAidInput struct {
	MedicalAidName        string  `json:"medical_aid_name" validate:"required,min=1"`
	MemberNumber          string  `json:"member_number" validate:"required,min=1"`
	PlanType              *string `json:"plan_type"`
	PolicyHolderID        *string `json:"policy_holder_id"`
	DependentCode         *string `json:"dependent_code"`
	IsPrimaryMember       *bool   `json:"is_primary_member"`
	PolicyHolderFirstName *string `json:"policy_holder_first_name"`
	PolicyHolderLastName  *string `json:"policy_holder_last_name"`
	PolicyHolderEmail     *string `json:"policy_holder_email" validate:"omitempty,email"`
	PolicyHolderPhone     *string `json:"policy_holder_phone" validate:"omitempty,phone"`
	NumberOfDependents    *int    `json:"number_of_dependents" validate:"omitempty,min=0"`
}

var MedicalAidTable = crud.Table{
	Name:       "patient__persinfo__medical_aid",
	IDColumn:   "medical_aid_id",
	SoftDelete: true,
}

func NewMedicalAidResource(repo crud.SingleRepository[MedicalAid]) *crud.Single[MedicalAid, MedicalAidInput] {
	return &crud.Single[MedicalAid, MedicalAidInput]{Repo: repo}
}
