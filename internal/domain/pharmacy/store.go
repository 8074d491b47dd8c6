package pharmacy

import (
	"context"

	"github.com/google/uuid"

	"github.com/scrypto/portal/pkg/pagination"
)

// Store reads and moves queue rows for one pharmacy. Queue and patient
// tables are read directly because the patient views are scoped to the
// patient, not the pharmacist.
type Store interface {
	// PharmacyForOwner returns ErrNoPharmacy when ownerID has no active
	// pharmacy.
	PharmacyForOwner(ctx context.Context, ownerID uuid.UUID) (*Pharmacy, error)
	Inbox(ctx context.Context, pharmacyID uuid.UUID, status string, p pagination.Params) ([]InboxItem, int, error)
	Workflow(ctx context.Context, pharmacyID, queueID uuid.UUID) (*WorkflowRecord, error)
	// Transition moves the row to status `to` if it is currently in one of
	// `from`, writing values alongside. It returns ErrNotFound or
	// ErrInvalidTransition.
	Transition(ctx context.Context, pharmacyID, queueID uuid.UUID, from []string, to string, values map[string]interface{}) error
	// MarkNotified stamps notified_at on rows not yet notified and returns
	// how many changed.
	MarkNotified(ctx context.Context, queueIDs []uuid.UUID) (int64, error)
}
