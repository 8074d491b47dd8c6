package aiscan

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OperationPrescriptionAnalysis is both the ai_setup type and the audit
// operation name of a prescription scan.
const OperationPrescriptionAnalysis = "prescription_analysis"

// Analysis is the structured result the model must return.
type Analysis struct {
	IsPrescription    bool             `json:"isPrescription"`
	PatientName       string           `json:"patientName,omitempty"`
	PatientSurname    string           `json:"patientSurname,omitempty"`
	DoctorName        string           `json:"doctorName,omitempty"`
	DoctorSurname     string           `json:"doctorSurname,omitempty"`
	PracticeNumber    string           `json:"practiceNumber,omitempty"`
	IssueDate         string           `json:"issueDate,omitempty"`
	Diagnosis         string           `json:"diagnosis,omitempty"`
	Medications       []MedicationLine `json:"medications,omitempty" validate:"dive"`
	OverallConfidence float64          `json:"overallConfidence" validate:"gte=0,lte=100"`
	ScanQuality       float64          `json:"scanQuality" validate:"gte=0,lte=100"`
	AIWarnings        []string         `json:"aiWarnings,omitempty"`
}

type MedicationLine struct {
	Name         string `json:"name" validate:"required"`
	Dosage       string `json:"dosage,omitempty"`
	Frequency    string `json:"frequency,omitempty"`
	Duration     string `json:"duration,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

// AnalyzeRequest is a validated image ready for analysis.
type AnalyzeRequest struct {
	UserID    uuid.UUID
	SessionID string
	FileName  string
	FileType  string
	// ImageDataURL is the original data: URL sent to the model.
	ImageDataURL string
	Image        []byte
}

type AnalyzeResult struct {
	Success        bool      `json:"success"`
	IsPrescription bool      `json:"isPrescription"`
	Data           *Analysis `json:"data,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	UploadedPath   string    `json:"uploadedPath"`
	SessionID      string    `json:"sessionId"`
	Cost           float64   `json:"cost"`
	ProcessingTime int64     `json:"processing_time"`
}

// Settings is a user's row in ai_setup.
type Settings struct {
	SetupID              uuid.UUID `json:"setup_id"`
	UserID               uuid.UUID `json:"user_id"`
	AIType               string    `json:"ai_type"`
	AIModelProvider      string    `json:"ai_model_provider"`
	AIModel              string    `json:"ai_model"`
	AIAPIKey             string    `json:"ai_api_key"`
	AITemperature        *float64  `json:"ai_temperature"`
	AIMaxTokens          *int      `json:"ai_max_tokens"`
	AISystemInstructions *string   `json:"ai_system_instructions"`
	IsActive             bool      `json:"is_active"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Masked returns a copy safe to send to clients.
func (s Settings) Masked() Settings {
	s.AIAPIKey = MaskKey(s.AIAPIKey)
	return s
}

// MaskKey keeps the "sk-" prefix and the last four characters.
func MaskKey(key string) string {
	if len(key) <= 7 {
		return "sk-****"
	}
	return key[:3] + "****" + key[len(key)-4:]
}

type SettingsInput struct {
	AIType               string   `json:"ai_type"`
	AIModelProvider      string   `json:"ai_model_provider" validate:"required,oneof=openai anthropic"`
	AIModel              string   `json:"ai_model" validate:"required,min=1"`
	AIAPIKey             string   `json:"ai_api_key" validate:"required"`
	AITemperature        *float64 `json:"ai_temperature" validate:"omitempty,gte=0,lte=2"`
	AISystemInstructions *string  `json:"ai_system_instructions" validate:"omitempty,max=2000"`
}

// AuditEntry is one row of ai_audit_log.
type AuditEntry struct {
	LogID            uuid.UUID       `json:"log_id"`
	UserID           uuid.UUID       `json:"user_id"`
	SessionID        string          `json:"session_id"`
	Operation        string          `json:"operation"`
	Success          bool            `json:"success"`
	CostIncurred     decimal.Decimal `json:"cost_incurred"`
	ProcessingTimeMS int64           `json:"processing_time_ms"`
	RequestData      json.RawMessage `json:"request_data,omitempty"`
	ResponseData     json.RawMessage `json:"response_data,omitempty"`
	ErrorMessage     string          `json:"error_message,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

type UsageStats struct {
	Days                    int     `json:"days"`
	TotalRequests           int     `json:"total_requests"`
	SuccessfulRequests      int     `json:"successful_requests"`
	FailedRequests          int     `json:"failed_requests"`
	TotalCost               float64 `json:"total_cost"`
	AverageProcessingTimeMS float64 `json:"average_processing_time_ms"`
	AverageConfidence       float64 `json:"average_confidence"`
}
