package presc

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// QueueEntry is a prescription_pharmacy_queue row as the patient sees it.
type QueueEntry struct {
	QueueID      uuid.UUID        `json:"queue_id"`
	PharmacyID   uuid.UUID        `json:"pharmacy_id"`
	PharmacyName string           `json:"pharmacy_name"`
	Status       string           `json:"status"`
	DistanceKm   float64          `json:"distance_km"`
	QuoteTotal   *decimal.Decimal `json:"quote_total"`
	QuoteNotes   *string          `json:"quote_notes"`
	QuotedAt     *time.Time       `json:"quoted_at"`
}

// Store holds the allocation side of prescriptions, which spans the
// profile, pharmacy and queue tables.
type Store interface {
	// PatientLocation returns nil when the user has no profile.
	PatientLocation(ctx context.Context, userID uuid.UUID) (*Location, error)
	ActivePharmacies(ctx context.Context) ([]Pharmacy, error)
	// Allocate inserts a pending queue row per candidate and marks the
	// prescription allocated, atomically. It returns ErrInvalidTransition
	// if the prescription is no longer allocatable.
	Allocate(ctx context.Context, userID, prescriptionID uuid.UUID, candidates []Candidate) ([]QueueEntry, error)
	Quotes(ctx context.Context, userID, prescriptionID uuid.UUID) ([]QueueEntry, error)
	// AcceptQuote accepts one quoted row, declines the others and marks the
	// prescription quote-accepted. It returns ErrQuoteNotFound or
	// ErrInvalidTransition.
	AcceptQuote(ctx context.Context, userID, prescriptionID, queueID uuid.UUID) (*QueueEntry, error)
}
