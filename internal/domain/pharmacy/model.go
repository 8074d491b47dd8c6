// Package pharmacy serves the pharmacist's validation workstation: the
// queue of prescriptions allocated to their pharmacy, the assembled
// workstation view and the review, quote and decline transitions.
package pharmacy

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/scrypto/portal/internal/domain/presc"
)

var (
	ErrNoPharmacy        = errors.New("user owns no pharmacy")
	ErrNotFound          = errors.New("workflow not found")
	ErrInvalidTransition = presc.ErrInvalidTransition
)

var queueStatuses = []string{presc.QueuePending, presc.QueueReviewing, presc.QueueQuoted, presc.QueueAccepted, presc.QueueDeclined}

type Pharmacy struct {
	PharmacyID  uuid.UUID `json:"pharmacy_id"`
	OwnerUserID uuid.UUID `json:"owner_user_id"`
	Name        string    `json:"name"`
}

// InboxItem is one queue row joined with its prescription.
type InboxItem struct {
	QueueID            uuid.UUID        `json:"queue_id"`
	PrescriptionID     uuid.UUID        `json:"prescription_id"`
	Status             string           `json:"status"`
	DistanceKm         float64          `json:"distance_km"`
	NotifiedAt         *time.Time       `json:"notified_at"`
	QuoteTotal         *decimal.Decimal `json:"quote_total"`
	PrescriptionDate   *string          `json:"prescription_date"`
	DoctorName         *string          `json:"doctor_name"`
	Diagnosis          *string          `json:"diagnosis"`
	PrescriptionStatus string           `json:"prescription_status"`
	CreatedAt          time.Time        `json:"created_at"`
}

// WorkflowRecord is everything the store loads for one queue row.
type WorkflowRecord struct {
	QueueID              uuid.UUID
	PrescriptionID       uuid.UUID
	Status               string
	CreatedAt            time.Time
	ValidatedMedications json.RawMessage
	AnalysisData         json.RawMessage
	ImageKey             *string
	DoctorName           *string
	PracticeNumber       *string
	PrescriptionDate     *string
	Diagnosis            *string
	AIConfidence         *float64
	ScanQuality          *float64
	Patient              PatientRecord
}

type PatientRecord struct {
	FirstName         string
	LastName          string
	IDNumber          *string
	DateOfBirth       *string
	Gender            *string
	MedicalAid        *string
	MedicalAidNumber  *string
	Allergies         []string
	ChronicConditions []string
}

// ValidatedMedication is a pharmacist's edit of one medication line.
type ValidatedMedication struct {
	ID           string `json:"id" validate:"required,max=50"`
	Name         string `json:"name" validate:"required,max=200"`
	Strength     string `json:"strength,omitempty" validate:"max=100"`
	Quantity     int    `json:"quantity,omitempty" validate:"gte=0,lte=10000"`
	DaysSupply   int    `json:"days_supply,omitempty" validate:"gte=0,lte=365"`
	Instructions string `json:"instructions,omitempty" validate:"max=500"`
	StockStatus  string `json:"stock_status,omitempty" validate:"omitempty,oneof=in_stock low_stock out_of_stock"`
	Notes        string `json:"notes,omitempty" validate:"max=1000"`
}

type ValidationInput struct {
	Medications []ValidatedMedication `json:"medications" validate:"required,dive"`
}

type QuoteItem struct {
	MedicationID string          `json:"medication_id" validate:"required"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     int             `json:"quantity" validate:"required,gte=1,lte=10000"`
}

type QuoteInput struct {
	Items []QuoteItem `json:"items" validate:"required,min=1,dive"`
	Notes *string     `json:"notes" validate:"omitempty,max=1000"`
}

// Total is the sum of unit price times quantity, rounded to cents.
func (q *QuoteInput) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range q.Items {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total.Round(2)
}

type DeclineInput struct {
	Reason string `json:"reason" validate:"required,min=1,max=500"`
}
