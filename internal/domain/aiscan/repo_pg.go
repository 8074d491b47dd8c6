package aiscan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/scrypto/portal/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const settingsCols = `setup_id, user_id, ai_type, ai_model_provider, ai_model, ai_api_key,
	ai_temperature, ai_max_tokens, ai_system_instructions, is_active, created_at, updated_at`

func scanSettings(row pgx.Row) (*Settings, error) {
	var s Settings
	err := row.Scan(&s.SetupID, &s.UserID, &s.AIType, &s.AIModelProvider, &s.AIModel, &s.AIAPIKey,
		&s.AITemperature, &s.AIMaxTokens, &s.AISystemInstructions, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSettingsNotFound
	}
	return &s, err
}

func (r *repoPG) GetSettings(ctx context.Context, userID uuid.UUID, aiType string) (*Settings, error) {
	return scanSettings(r.conn(ctx).QueryRow(ctx, `SELECT `+settingsCols+` FROM ai_setup
		WHERE user_id = $1 AND ai_type = $2 AND is_active`, userID, aiType))
}

func (r *repoPG) APIKey(ctx context.Context, userID uuid.UUID, aiType string) (string, error) {
	var key string
	err := r.conn(ctx).QueryRow(ctx, `SELECT ai_api_key FROM ai_setup
		WHERE user_id = $1 AND ai_type = $2 AND is_active`, userID, aiType).Scan(&key)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrSettingsNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get ai api key: %w", err)
	}
	return key, nil
}

func (r *repoPG) UpsertSettings(ctx context.Context, userID uuid.UUID, in *SettingsInput) (*Settings, error) {
	return scanSettings(r.conn(ctx).QueryRow(ctx, `
		INSERT INTO ai_setup (user_id, ai_type, ai_model_provider, ai_model, ai_api_key,
			ai_temperature, ai_system_instructions)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, ai_type) DO UPDATE SET
			ai_model_provider = EXCLUDED.ai_model_provider,
			ai_model = EXCLUDED.ai_model,
			ai_api_key = EXCLUDED.ai_api_key,
			ai_temperature = EXCLUDED.ai_temperature,
			ai_system_instructions = EXCLUDED.ai_system_instructions,
			is_active = true,
			updated_at = NOW()
		RETURNING `+settingsCols,
		userID, in.AIType, in.AIModelProvider, in.AIModel, in.AIAPIKey,
		in.AITemperature, in.AISystemInstructions))
}

// InsertAudit writes on the pool, outside the request transaction, so that
// rows for failed calls survive the rollback.
func (r *repoPG) InsertAudit(ctx context.Context, e *AuditEntry) error {
	e.LogID = uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO ai_audit_log (log_id, user_id, session_id, operation, success, cost_incurred,
			processing_time_ms, request_data, response_data, error_message)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9, NULLIF($10, ''))`,
		e.LogID, e.UserID, e.SessionID, e.Operation, e.Success, e.CostIncurred.String(),
		e.ProcessingTimeMS, e.RequestData, e.ResponseData, e.ErrorMessage)
	if err != nil {
		return fmt.Errorf("insert ai audit: %w", err)
	}
	return nil
}

func (r *repoPG) SuccessfulSince(ctx context.Context, userID uuid.UUID, t time.Time) (int64, decimal.Decimal, error) {
	var (
		n   int64
		sum string
	)
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(cost_incurred), 0)::text FROM ai_audit_log
		WHERE user_id = $1 AND operation = $2 AND success AND created_at >= $3`,
		userID, OperationPrescriptionAnalysis, t).Scan(&n, &sum)
	if err != nil {
		return 0, decimal.Zero, fmt.Errorf("sum ai usage: %w", err)
	}
	cost, err := decimal.NewFromString(sum)
	if err != nil {
		return 0, decimal.Zero, fmt.Errorf("parse ai usage cost %q: %w", sum, err)
	}
	return n, cost, nil
}

func (r *repoPG) ListAudit(ctx context.Context, userID uuid.UUID, since time.Time, limit int) ([]*AuditEntry, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT log_id, user_id, COALESCE(session_id, ''), operation, success, cost_incurred::text,
			COALESCE(processing_time_ms, 0), request_data, response_data, COALESCE(error_message, ''), created_at
		FROM ai_audit_log
		WHERE user_id = $1 AND operation = $2 AND created_at >= $3
		ORDER BY created_at DESC
		LIMIT $4`, userID, OperationPrescriptionAnalysis, since, limit)
	if err != nil {
		return nil, fmt.Errorf("list ai audit: %w", err)
	}
	defer rows.Close()

	var out []*AuditEntry
	for rows.Next() {
		var (
			e    AuditEntry
			cost string
		)
		if err := rows.Scan(&e.LogID, &e.UserID, &e.SessionID, &e.Operation, &e.Success, &cost,
			&e.ProcessingTimeMS, &e.RequestData, &e.ResponseData, &e.ErrorMessage, &e.CreatedAt); err != nil {
			return nil, err
		}
		if e.CostIncurred, err = decimal.NewFromString(cost); err != nil {
			return nil, fmt.Errorf("parse ai cost %q: %w", cost, err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
