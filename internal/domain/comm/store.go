package comm

import (
	"context"

	"github.com/google/uuid"

	"github.com/scrypto/portal/pkg/pagination"
)

type Store interface {
	// Send inserts c and fills in its id and timestamps.
	Send(ctx context.Context, c *Communication) error
	// Inbox lists what userID received, newest first. commType may be empty.
	Inbox(ctx context.Context, userID uuid.UUID, commType string, p pagination.Params) ([]Communication, int, error)
	// MarkRead returns ErrNotFound unless userID is the recipient.
	MarkRead(ctx context.Context, userID, commID uuid.UUID) (*ReadReceipt, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
	// Conversation returns the messages exchanged between two users, newest
	// first, at most limit rows.
	Conversation(ctx context.Context, userID, otherID uuid.UUID, limit int) ([]Communication, error)
	// UserByEmail returns ErrRecipientNotFound when no active profile has the
	// address.
	UserByEmail(ctx context.Context, email string) (uuid.UUID, error)
	SearchRecipients(ctx context.Context, userID uuid.UUID, q string, limit int) ([]Recipient, error)
}
