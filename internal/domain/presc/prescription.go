// Package presc stores analysed prescriptions and moves them through
// submission, pharmacy allocation and quote acceptance.
package presc

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/scrypto/portal/internal/platform/crud"
	"github.com/scrypto/portal/internal/platform/validation"
)

// Prescription statuses.
const (
	StatusSaved         = "ai-analysed-saved"
	StatusSubmitted     = "ai-analysed-submitted"
	StatusAllocated     = "allocated-to-pharmacies"
	StatusQuoteAccepted = "quote-accepted"
)

// Queue statuses shared with the pharmacy workstation.
const (
	QueuePending   = "pending"
	QueueReviewing = "reviewing"
	QueueQuoted    = "quoted"
	QueueAccepted  = "accepted"
	QueueDeclined  = "declined"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrQuoteNotFound     = errors.New("quote not found")
)

type Prescription struct {
	PrescriptionID   uuid.UUID       `json:"prescription_id" db:"prescription_id"`
	UserID           uuid.UUID       `json:"user_id" db:"user_id"`
	Status           string          `json:"status" db:"status"`
	ImageURL         *string         `json:"image_url" db:"image_url"`
	ScanSessionID    *string         `json:"scan_session_id" db:"scan_session_id"`
	AnalysisData     json.RawMessage `json:"analysis_data" db:"analysis_data"`
	DoctorName       *string         `json:"doctor_name" db:"doctor_name"`
	PracticeNumber   *string         `json:"practice_number" db:"practice_number"`
	PrescriptionDate *string         `json:"prescription_date" db:"prescription_date"`
	Diagnosis        *string         `json:"diagnosis" db:"diagnosis"`
	AIConfidence     *float64        `json:"ai_confidence" db:"ai_confidence"`
	ScanQuality      *float64        `json:"scan_quality" db:"scan_quality"`
	SubmittedAt      *time.Time      `json:"submitted_at" db:"submitted_at"`
	AllocatedAt      *time.Time      `json:"allocated_at" db:"allocated_at"`
	IsActive         bool            `json:"is_active" db:"is_active"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// SaveInput is the body of POST /prescriptions: the analysis returned by
// /presc/analyze and where its image was stored.
type SaveInput struct {
	Analysis     json.RawMessage `json:"analysis"`
	UploadedPath string          `json:"uploadedPath" validate:"required"`
	SessionID    string          `json:"sessionId"`
}

var statuses = []string{StatusSaved, StatusSubmitted, StatusAllocated, StatusQuoteAccepted}

var Table = crud.Table{
	Name:     "patient__presc__prescriptions",
	IDColumn: "prescription_id",
	Filters: []crud.Filter{
		{Param: "status", Column: "status", Values: statuses},
	},
	Sorts:      []string{"created_at", "prescription_date", "status"},
	SoftDelete: true,
}

// valuesFromAnalysis builds the insert for a saved analysis. Fields the
// model did not return are left NULL.
func valuesFromAnalysis(in *SaveInput) (crud.Values, error) {
	values := crud.Values{
		"status":    StatusSaved,
		"image_url": in.UploadedPath,
	}
	if in.SessionID != "" {
		values["scan_session_id"] = in.SessionID
	}
	if len(in.Analysis) == 0 || string(in.Analysis) == "null" {
		return values, nil
	}
	if !gjson.ValidBytes(in.Analysis) || !gjson.ParseBytes(in.Analysis).IsObject() {
		return nil, validation.Fail("analysis", "object")
	}
	values["analysis_data"] = in.Analysis

	a := gjson.ParseBytes(in.Analysis)
	doctor := joinName(a.Get("doctorName").String(), a.Get("doctorSurname").String())
	if doctor != "" {
		values["doctor_name"] = doctor
	}
	if v := a.Get("practiceNumber").String(); v != "" {
		values["practice_number"] = v
	}
	if v := a.Get("issueDate").String(); v != "" && validation.Var("issueDate", v, "isodate") == nil {
		values["prescription_date"] = v
	}
	if v := a.Get("diagnosis").String(); v != "" {
		values["diagnosis"] = v
	}
	if v := a.Get("overallConfidence"); v.Exists() {
		values["ai_confidence"] = v.Float()
	}
	if v := a.Get("scanQuality"); v.Exists() {
		values["scan_quality"] = v.Float()
	}
	return values, nil
}

func joinName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	}
	return first + " " + last
}

// canAllocate reports whether a prescription in status may be sent to
// pharmacies.
func canAllocate(status string) bool {
	return status == StatusSaved || status == StatusSubmitted
}
