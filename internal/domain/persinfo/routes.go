// Package persinfo serves the patient's personal information: profile,
// address, medical aid, dependents, emergency contacts and documents.
package persinfo

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/scrypto/portal/internal/platform/crud"
	"github.com/scrypto/portal/internal/platform/storage"
)

type Repos struct {
	Dependents        crud.Repository[Dependent]
	EmergencyContacts crud.Repository[EmergencyContact]
	Documents         crud.Repository[Document]
	Address           crud.SingleRepository[Address]
	Profile           crud.SingleRepository[Profile]
	MedicalAid        crud.SingleRepository[MedicalAid]
}

func NewPGRepos(pool *pgxpool.Pool) Repos {
	return Repos{
		Dependents:        crud.NewPGRepository[Dependent](pool, DependentTable),
		EmergencyContacts: crud.NewPGRepository[EmergencyContact](pool, EmergencyContactTable),
		Documents:         crud.NewPGRepository[Document](pool, DocumentTable),
		Address:           crud.NewPGSingleRepository[Address](pool, AddressTable),
		Profile:           crud.NewPGSingleRepository[Profile](pool, ProfileTable),
		MedicalAid:        crud.NewPGSingleRepository[MedicalAid](pool, MedicalAidTable),
	}
}

func RegisterRoutes(g *echo.Group, r Repos, store storage.ObjectStore) {
	p := g.Group("/persinfo")
	NewDependentResource(r.Dependents).RegisterRoutes(p.Group("/dependents"))
	NewEmergencyContactResource(r.EmergencyContacts).RegisterRoutes(p.Group("/emergency-contacts"))
	NewDocuments(r.Documents, store).RegisterRoutes(p.Group("/documents"))
	NewAddressResource(r.Address).RegisterRoutes(p.Group("/address"))
	NewProfileHandler(r.Profile, store).RegisterRoutes(p.Group("/profile"))
	NewMedicalAidResource(r.MedicalAid).RegisterRoutes(p.Group("/medical-aid"))
}
