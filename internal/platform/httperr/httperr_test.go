package httperr

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func render(t *testing.T, err error) (*httptest.ResponseRecorder, map[string]interface{}, string) {
	t.Helper()
	var logs bytes.Buffer
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/patient/medhist/allergies", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	ErrorHandler(zerolog.New(&logs))(err, c)

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body, got %q", rec.Body.String())
	}
	return rec, body, logs.String()
}

func TestErrorHandler_Validation(t *testing.T) {
	rec, body, _ := render(t, Validation(map[string][]string{"allergen": {"required"}}))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if body["error"] != "Invalid input data" {
		t.Errorf("unexpected error message %v", body["error"])
	}
	details, ok := body["details"].(map[string]interface{})
	if !ok || details["allergen"] == nil {
		t.Errorf("expected details.allergen, got %v", body["details"])
	}
}

func TestErrorHandler_EchoHTTPError(t *testing.T) {
	rec, body, _ := render(t, echo.NewHTTPError(http.StatusForbidden, "Forbidden"))
	if rec.Code != http.StatusForbidden || body["error"] != "Forbidden" {
		t.Errorf("unexpected response %d %v", rec.Code, body)
	}
	if _, ok := body["details"]; ok {
		t.Error("details must be omitted when empty")
	}
}

func TestErrorHandler_InternalHidesCause(t *testing.T) {
	cause := errors.New("pq: relation does not exist")
	rec, body, logs := render(t, Internal(cause))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if body["error"] != "Internal server error" {
		t.Errorf("unexpected error message %v", body["error"])
	}
	if strings.Contains(rec.Body.String(), "relation") {
		t.Error("cause leaked to the client")
	}
	if !strings.Contains(logs, "relation does not exist") {
		t.Errorf("expected cause in logs, got %q", logs)
	}
}

func TestErrorHandler_PlainError(t *testing.T) {
	rec, body, _ := render(t, fmt.Errorf("wrapped: %w", errors.New("boom")))
	if rec.Code != http.StatusInternalServerError || body["error"] != "Internal server error" {
		t.Errorf("unexpected response %d %v", rec.Code, body)
	}
}

func TestErrorHandler_WrappedError(t *testing.T) {
	rec, body, _ := render(t, fmt.Errorf("allocate: %w", NotFound("No pharmacies available for allocation")))
	if rec.Code != http.StatusNotFound || body["error"] != "No pharmacies available for allocation" {
		t.Errorf("unexpected response %d %v", rec.Code, body)
	}
}

func TestErrorHandler_Reason(t *testing.T) {
	e := New(http.StatusTooManyRequests, "Daily AI usage limit reached")
	e.Reason = "Daily request limit reached (20 requests)"
	rec, body, _ := render(t, e)
	if rec.Code != http.StatusTooManyRequests || body["reason"] == nil {
		t.Errorf("unexpected response %d %v", rec.Code, body)
	}
}

func TestErrorHandler_Committed(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.String(http.StatusOK, "done")

	ErrorHandler(zerolog.Nop())(Internal(errors.New("late")), c)
	if rec.Body.String() != "done" {
		t.Errorf("committed response was modified: %q", rec.Body.String())
	}
}
