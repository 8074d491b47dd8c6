// Package vitality records vital sign readings and sleep.
package vitality

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/scrypto/portal/internal/platform/crud"
)

type Repos struct {
	VitalSigns crud.Repository[VitalSign]
	Sleep      crud.Repository[Sleep]
}

func NewPGRepos(pool *pgxpool.Pool) Repos {
	return Repos{
		VitalSigns: crud.NewPGRepository[VitalSign](pool, VitalSignTable),
		Sleep:      crud.NewPGRepository[Sleep](pool, SleepTable),
	}
}

func RegisterRoutes(g *echo.Group, r Repos) {
	v := g.Group("/vitality")
	NewVitalSignResource(r.VitalSigns).RegisterRoutes(v.Group("/vital-signs"))
	NewSleepResource(r.Sleep).RegisterRoutes(v.Group("/sleep"))
}
