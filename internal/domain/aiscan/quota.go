package aiscan

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/scrypto/portal/internal/platform/cache"
)

const counterTTL = 24 * time.Hour

// QuotaError reports why a user may not run another analysis today.
type QuotaError struct {
	Reason string
}

func (e *QuotaError) Error() string { return "ai quota exceeded: " + e.Reason }

// Limits are the per-user daily allowances.
type Limits struct {
	Requests int64
	Cost     decimal.Decimal
}

// Quota enforces Limits. Counters live in Redis when a Counter is set and
// are otherwise derived from today's successful audit rows.
type Quota struct {
	limits  Limits
	counter cache.Counter
	repo    Repository
	now     func() time.Time
}

func NewQuota(limits Limits, counter cache.Counter, repo Repository) *Quota {
	return &Quota{limits: limits, counter: counter, repo: repo, now: time.Now}
}

func quotaKeys(userID uuid.UUID, day time.Time) (req, cost string) {
	d := day.UTC().Format("20060102")
	return "ai:req:" + userID.String() + ":" + d, "ai:cost:" + userID.String() + ":" + d
}

func (q *Quota) used(ctx context.Context, userID uuid.UUID) (int64, decimal.Decimal, error) {
	now := q.now().UTC()
	if q.counter == nil {
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		return q.repo.SuccessfulSince(ctx, userID, midnight)
	}
	reqKey, costKey := quotaKeys(userID, now)
	n, err := q.counter.GetInt(ctx, reqKey)
	if err != nil {
		return 0, decimal.Zero, fmt.Errorf("read request counter: %w", err)
	}
	c, err := q.counter.GetFloat(ctx, costKey)
	if err != nil {
		return 0, decimal.Zero, fmt.Errorf("read cost counter: %w", err)
	}
	return n, decimal.NewFromFloat(c), nil
}

// Check returns a *QuotaError when either daily limit is reached.
func (q *Quota) Check(ctx context.Context, userID uuid.UUID) error {
	n, cost, err := q.used(ctx, userID)
	if err != nil {
		return err
	}
	if n >= q.limits.Requests {
		return &QuotaError{Reason: fmt.Sprintf("Daily request limit reached (%d requests)", q.limits.Requests)}
	}
	if cost.GreaterThanOrEqual(q.limits.Cost) {
		return &QuotaError{Reason: fmt.Sprintf("Daily cost limit reached ($%s)", q.limits.Cost.StringFixed(2))}
	}
	return nil
}

// Record counts one successful call. Without Redis the audit row is the
// record and nothing else is stored.
func (q *Quota) Record(ctx context.Context, userID uuid.UUID, cost decimal.Decimal) error {
	if q.counter == nil {
		return nil
	}
	reqKey, costKey := quotaKeys(userID, q.now())
	if _, err := q.counter.IncrBy(ctx, reqKey, 1, counterTTL); err != nil {
		return err
	}
	_, err := q.counter.IncrByFloat(ctx, costKey, cost.InexactFloat64(), counterTTL)
	return err
}
