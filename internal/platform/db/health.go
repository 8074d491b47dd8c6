package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

const checkTimeout = 3 * time.Second

// PoolStats is the slice of pgxpool.Stat reported by /health/db.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
}

func statsOf(pool *pgxpool.Pool) PoolStats {
	s := pool.Stat()
	return PoolStats{
		TotalConns:      s.TotalConns(),
		IdleConns:       s.IdleConns(),
		AcquiredConns:   s.AcquiredConns(),
		MaxConns:        s.MaxConns(),
		AcquireCount:    s.AcquireCount(),
		AcquireDuration: s.AcquireDuration().String(),
	}
}

// Check is a dependency pinged by the health endpoint.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// HealthReport is the /health/db body. Checks maps each dependency to "ok"
// or its error.
type HealthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
	Pool   *PoolStats        `json:"pool,omitempty"`
}

// Healthy reports whether every check passed.
func (r HealthReport) Healthy() bool { return r.Status == "healthy" }

// RunChecks pings each dependency with its own timeout.
func RunChecks(ctx context.Context, checks []Check) HealthReport {
	report := HealthReport{Status: "healthy", Checks: make(map[string]string, len(checks))}
	for _, chk := range checks {
		cctx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := chk.Ping(cctx)
		cancel()
		if err != nil {
			report.Status = "unhealthy"
			report.Checks[chk.Name] = err.Error()
			continue
		}
		report.Checks[chk.Name] = "ok"
	}
	return report
}

// HealthHandler pings Postgres followed by checks and answers 503 if any
// fail.
func HealthHandler(pool *pgxpool.Pool, checks ...Check) echo.HandlerFunc {
	all := append([]Check{{Name: "postgres", Ping: pool.Ping}}, checks...)
	return func(c echo.Context) error {
		report := RunChecks(c.Request().Context(), all)
		stats := statsOf(pool)
		report.Pool = &stats
		if !report.Healthy() {
			return c.JSON(http.StatusServiceUnavailable, report)
		}
		return c.JSON(http.StatusOK, report)
	}
}
