package comm

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Communication types.
const (
	TypeMessage      = "message"
	TypeAlert        = "alert"
	TypeNotification = "notification"
)

// Statuses.
const (
	StatusSent = "sent"
	StatusRead = "read"
)

const (
	// ContextPrescription links a communication to a prescription.
	ContextPrescription = "prescription"

	conversationLimit = 200
	recipientLimit    = 10
	minRecipientQuery = 2
)

var (
	ErrNotFound          = errors.New("communication not found")
	ErrRecipientNotFound = errors.New("recipient not found")
)

// Communication maps to the comm__communications table.
type Communication struct {
	CommID    uuid.UUID       `json:"comm_id"`
	CommType  string          `json:"comm_type"`
	UserFrom  uuid.UUID       `json:"user_from"`
	UserTo    uuid.UUID       `json:"user_to"`
	Subject   *string         `json:"subject"`
	Body      *string         `json:"body"`
	Meta      json.RawMessage `json:"meta"`
	Status    string          `json:"status"`
	ReadAt    *time.Time      `json:"read_at"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Meta is stored when a communication is sent about a prescription.
type Meta struct {
	ContextType string `json:"context_type"`
	ContextID   string `json:"context_id"`
}

// SendInput is the body of POST /comm/send. To is a user id or an email.
type SendInput struct {
	To          string  `json:"to" validate:"required"`
	Type        string  `json:"type" validate:"omitempty,oneof=message alert notification"`
	Subject     *string `json:"subject" validate:"omitempty,max=200"`
	Body        *string `json:"body" validate:"omitempty,max=5000"`
	ContextType string  `json:"context_type" validate:"omitempty,oneof=prescription"`
	ContextID   string  `json:"context_id" validate:"omitempty,uuid"`
}

// ReadReceipt is returned when a communication is marked read.
type ReadReceipt struct {
	CommID uuid.UUID  `json:"comm_id"`
	Status string     `json:"status"`
	ReadAt *time.Time `json:"read_at"`
}

// Recipient is one entry of the address book search.
type Recipient struct {
	UserID    uuid.UUID `json:"user_id"`
	Email     *string   `json:"email"`
	FirstName *string   `json:"first_name"`
	LastName  *string   `json:"last_name"`
	Nickname  *string   `json:"nickname"`
	Kind      string    `json:"kind"`
}
