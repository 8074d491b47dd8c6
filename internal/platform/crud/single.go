package crud

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/scrypto/portal/internal/platform/httperr"
)

// SingleRepository stores at most one row per user, keyed by user_id.
type SingleRepository[T any] interface {
	// Get returns ErrNotFound when the user has no row yet.
	Get(ctx context.Context, userID uuid.UUID) (*T, error)
	Upsert(ctx context.Context, userID uuid.UUID, values Values) (*T, error)
}

type PGSingleRepository[T any] struct {
	pool  *pgxpool.Pool
	table Table
	cols  []string
}

func NewPGSingleRepository[T any](pool *pgxpool.Pool, table Table) *PGSingleRepository[T] {
	return &PGSingleRepository[T]{pool: pool, table: table, cols: Columns[T]()}
}

func (r *PGSingleRepository[T]) conn(ctx context.Context) queryable {
	return connFor(ctx, r.pool)
}

func (r *PGSingleRepository[T]) Get(ctx context.Context, userID uuid.UUID) (*T, error) {
	sql := fmt.Sprintf(`SELECT %s FROM %s WHERE user_id = $1%s LIMIT 1`,
		strings.Join(r.cols, ", "), r.table.view(), activeClause(r.table))
	rows, err := r.conn(ctx).Query(ctx, sql, userID)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", r.table.Name, err)
	}
	item, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByNameLax[T])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", r.table.Name, err)
	}
	return item, nil
}

func (r *PGSingleRepository[T]) Upsert(ctx context.Context, userID uuid.UUID, values Values) (*T, error) {
	sql, args := buildUpsertSQL(r.table, userID, values)
	if _, err := r.conn(ctx).Exec(ctx, sql, args...); err != nil {
		return nil, fmt.Errorf("upsert %s: %w", r.table.Name, err)
	}
	return r.Get(ctx, userID)
}

func buildUpsertSQL(t Table, userID uuid.UUID, values Values) (string, []interface{}) {
	insert, args := buildInsertSQL(t, userID, values)
	insert = insert[:strings.LastIndex(insert, " RETURNING ")]

	sets := make([]string, 0, len(values)+1)
	for _, k := range sortedKeys(values) {
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", k, k))
	}
	sets = append(sets, "updated_at = NOW()")
	target := "(user_id)"
	if t.SoftDelete {
		// The unique index on soft-delete tables is partial, so the conflict
		// target has to repeat its predicate for Postgres to infer it.
		target = "(user_id) WHERE is_active"
		sets = append(sets, "is_active = true")
	}
	return insert + " ON CONFLICT " + target + " DO UPDATE SET " + strings.Join(sets, ", "), args
}

// Single serves GET and PUT for a one-row-per-user record. GET answers
// {"data": row} with a null row when none exists; PUT validates U and
// upserts it.
type Single[T any, U any] struct {
	Repo SingleRepository[T]
	// Values maps the validated input to columns. Defaults to ValuesOf.
	Values func(*U) (Values, error)
}

func (s *Single[T, U]) RegisterRoutes(g *echo.Group) {
	g.GET("", s.handleGet)
	g.PUT("", s.handlePut)
}

func (s *Single[T, U]) handleGet(c echo.Context) error {
	userID, err := UserID(c)
	if err != nil {
		return err
	}
	row, err := s.Repo.Get(c.Request().Context(), userID)
	if errors.Is(err, ErrNotFound) {
		return c.JSON(http.StatusOK, map[string]interface{}{"data": nil})
	}
	if err != nil {
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": row})
}

func (s *Single[T, U]) handlePut(c echo.Context) error {
	userID, err := UserID(c)
	if err != nil {
		return err
	}
	var in U
	if err := BindAndValidate(c, &in); err != nil {
		return err
	}
	var values Values
	if s.Values != nil {
		if values, err = s.Values(&in); err != nil {
			return checkErr(err)
		}
	} else {
		values = ValuesOf(&in)
	}

	row, err := s.Repo.Upsert(c.Request().Context(), userID, values)
	if err != nil {
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusOK, row)
}
