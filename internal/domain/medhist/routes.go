// Package medhist serves the patient's medical history: allergies,
// conditions, immunizations, surgeries and family history.
package medhist

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/scrypto/portal/internal/platform/crud"
)

// Repos holds one repository per record type.
type Repos struct {
	Allergies     crud.Repository[Allergy]
	Conditions    crud.Repository[Condition]
	Immunizations crud.Repository[Immunization]
	Surgeries     crud.Repository[Surgery]
	FamilyHistory crud.Repository[FamilyHistory]
}

func NewPGRepos(pool *pgxpool.Pool) Repos {
	return Repos{
		Allergies:     crud.NewPGRepository[Allergy](pool, AllergyTable),
		Conditions:    crud.NewPGRepository[Condition](pool, ConditionTable),
		Immunizations: crud.NewPGRepository[Immunization](pool, ImmunizationTable),
		Surgeries:     crud.NewPGRepository[Surgery](pool, SurgeryTable),
		FamilyHistory: crud.NewPGRepository[FamilyHistory](pool, FamilyHistoryTable),
	}
}

// RegisterRoutes mounts every record type under g, which is the patient
// group.
func RegisterRoutes(g *echo.Group, r Repos) {
	mh := g.Group("/medhist")
	NewAllergyResource(r.Allergies).RegisterRoutes(mh.Group("/allergies"))
	NewConditionResource(r.Conditions).RegisterRoutes(mh.Group("/conditions"))
	NewImmunizationResource(r.Immunizations).RegisterRoutes(mh.Group("/immunizations"))
	NewSurgeryResource(r.Surgeries).RegisterRoutes(mh.Group("/surgeries"))
	NewFamilyHistoryResource(r.FamilyHistory).RegisterRoutes(mh.Group("/family-history"))
}
