// Package medications tracks what the patient takes now, what they took
// before, and whether doses were taken on schedule.
package medications

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/scrypto/portal/internal/platform/crud"
)

type Repos struct {
	Active    crud.Repository[ActiveMedication]
	History   crud.Repository[MedicationHistory]
	Adherence crud.Repository[Adherence]
}

func NewPGRepos(pool *pgxpool.Pool) Repos {
	return Repos{
		Active:    crud.NewPGRepository[ActiveMedication](pool, ActiveTable),
		History:   crud.NewPGRepository[MedicationHistory](pool, HistoryTable),
		Adherence: crud.NewPGRepository[Adherence](pool, AdherenceTable),
	}
}

func RegisterRoutes(g *echo.Group, r Repos) {
	m := g.Group("/medications")
	NewActiveResource(r.Active).RegisterRoutes(m.Group("/active"))
	NewHistoryResource(r.History).RegisterRoutes(m.Group("/history"))
	NewAdherenceResource(r.Adherence).RegisterRoutes(m.Group("/adherence"))
}
