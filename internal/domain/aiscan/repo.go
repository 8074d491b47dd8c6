package aiscan

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrSettingsNotFound = errors.New("ai settings not found")

type Repository interface {
	// GetSettings returns the active row for aiType or ErrSettingsNotFound.
	GetSettings(ctx context.Context, userID uuid.UUID, aiType string) (*Settings, error)
	// APIKey returns only the stored key of the active row for aiType.
	APIKey(ctx context.Context, userID uuid.UUID, aiType string) (string, error)
	UpsertSettings(ctx context.Context, userID uuid.UUID, in *SettingsInput) (*Settings, error)
	InsertAudit(ctx context.Context, e *AuditEntry) error
	// SuccessfulSince counts and sums the successful calls made since t.
	SuccessfulSince(ctx context.Context, userID uuid.UUID, t time.Time) (int64, decimal.Decimal, error)
	ListAudit(ctx context.Context, userID uuid.UUID, since time.Time, limit int) ([]*AuditEntry, error)
}
