package db

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/scrypto/portal/internal/platform/auth"
)

type contextKey string

const (
	DBConnKey contextKey = "db_conn"
	DBTxKey   contextKey = "db_tx"
)

// claimSetting is the Postgres setting the v_* views filter on.
const claimSetting = "request.jwt.claim.sub"

var errNoConn = errors.New("no database connection in context")

// UserScope acquires a connection for each authenticated request, opens a
// transaction and sets the caller's id as a transaction-local setting so the
// row-level-security views only return that caller's rows. The transaction
// commits when the handler succeeds and rolls back otherwise. Callbacks
// registered with AfterCommit run only after a successful commit.
func UserScope(pool *pgxpool.Pool) echo.MiddlewareFunc {
	return UserScopeWithConfig(pool, ScopeConfig{})
}

// ScopeConfig configures UserScopeWithConfig.
type ScopeConfig struct {
	// Skipper selects requests that run without a scoped transaction. Their
	// stores fall back to the pool and must filter by user explicitly.
	Skipper func(c echo.Context) bool
}

func UserScopeWithConfig(pool *pgxpool.Pool, cfg ScopeConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}
			ctx := c.Request().Context()
			userID := auth.UserIDFromContext(ctx)
			if userID == "" {
				return next(c)
			}
			if _, err := uuid.Parse(userID); err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
			}

			conn, err := pool.Acquire(ctx)
			if err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable")
			}
			defer conn.Release()

			tx, err := conn.Begin(ctx)
			if err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable")
			}
			defer tx.Rollback(ctx)

			if _, err := tx.Exec(ctx, "SELECT set_config($1, $2, true)", claimSetting, userID); err != nil {
				return fmt.Errorf("set user scope: %w", err)
			}

			base := ctx
			ctx, hooks := WithCommitHooks(ctx)
			ctx = context.WithValue(ctx, DBConnKey, conn)
			ctx = context.WithValue(ctx, DBTxKey, tx)
			c.SetRequest(c.Request().WithContext(ctx))

			if err := next(c); err != nil {
				return err
			}
			if c.Response().Status >= http.StatusBadRequest {
				return nil
			}
			if err := tx.Commit(ctx); err != nil {
				return fmt.Errorf("commit request transaction: %w", err)
			}
			hooks.Run(base)
			return nil
		}
	}
}

// ConnFromContext retrieves the request-scoped database connection from context.
func ConnFromContext(ctx context.Context) *pgxpool.Conn {
	conn, _ := ctx.Value(DBConnKey).(*pgxpool.Conn)
	return conn
}

// TxFromContext retrieves the request-scoped transaction from context.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(DBTxKey).(pgx.Tx)
	return tx
}

// WithTx begins a transaction on the request connection. When the request
// already runs inside a transaction a savepoint is used instead.
func WithTx(ctx context.Context) (context.Context, pgx.Tx, error) {
	var (
		tx  pgx.Tx
		err error
	)
	if outer := TxFromContext(ctx); outer != nil {
		tx, err = outer.Begin(ctx)
	} else if conn := ConnFromContext(ctx); conn != nil {
		tx, err = conn.Begin(ctx)
	} else {
		return ctx, nil, errNoConn
	}
	if err != nil {
		return ctx, nil, fmt.Errorf("begin transaction: %w", err)
	}
	return context.WithValue(ctx, DBTxKey, tx), tx, nil
}

// InTx runs fn inside a transaction. It reuses the request scope when there
// is one and otherwise begins a transaction on the pool.
func InTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context) error) error {
	txCtx, tx, err := WithTx(ctx)
	if errors.Is(err, errNoConn) {
		if pool == nil {
			return err
		}
		tx, err = pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		txCtx = context.WithValue(ctx, DBTxKey, tx)
	} else if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(txCtx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
