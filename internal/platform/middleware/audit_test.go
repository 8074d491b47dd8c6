package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/scrypto/portal/internal/platform/auth"
)

const auditUser = "6f1c2d8e-3b4a-4c5d-9e8f-0a1b2c3d4e5f"

func runAudit(t *testing.T, method, path string) map[string]interface{} {
	t.Helper()
	var buf bytes.Buffer
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	req = req.WithContext(auth.WithUser(context.Background(), auditUser, auth.RolePatient))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("request_id", "req-9")

	h := Audit(zerolog.New(&buf))(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.Len() == 0 {
		return nil
	}
	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected JSON: %v", err)
	}
	return line
}

func TestAudit_PatientRecordRead(t *testing.T) {
	id := "0b6c7f0e-2a55-4d43-9a4c-1f1b1e6e2a10"
	line := runAudit(t, http.MethodGet, "/api/patient/medhist/allergies/"+id)
	if line == nil {
		t.Fatal("expected audit line")
	}
	if line["resource_type"] != "medhist/allergies" || line["resource_id"] != id {
		t.Errorf("unexpected resource fields: %v", line)
	}
	if line["action"] != "read" || line["user_id"] != auditUser || line["area"] != "patient" {
		t.Errorf("unexpected audit line: %v", line)
	}
}

func TestAudit_SkipsHealth(t *testing.T) {
	if line := runAudit(t, http.MethodGet, "/health"); line != nil {
		t.Errorf("expected no audit line, got %v", line)
	}
}

func TestHttpMethodToAction(t *testing.T) {
	cases := map[string]string{
		http.MethodGet:    "read",
		http.MethodPost:   "create",
		http.MethodPut:    "update",
		http.MethodPatch:  "update",
		http.MethodDelete: "delete",
	}
	for m, want := range cases {
		if got := httpMethodToAction(m); got != want {
			t.Errorf("httpMethodToAction(%s) = %s, want %s", m, got, want)
		}
	}
}

func TestSplitResourcePath(t *testing.T) {
	id := "0b6c7f0e-2a55-4d43-9a4c-1f1b1e6e2a10"
	tests := []struct {
		path, area, resource, id string
	}{
		{"/api/patient/medhist/allergies", "patient", "medhist/allergies", ""},
		{"/api/patient/presc/prescriptions/" + id + "/allocate", "patient", "presc/prescriptions", id},
		{"/api/pharmacy/prescriptions/" + id + "/quote", "pharmacy", "prescriptions", id},
		{"/api/storage/upload", "storage", "upload", ""},
		{"/api/", "", "unknown", ""},
	}
	for _, tt := range tests {
		area, resource, gotID := splitResourcePath(tt.path)
		if area != tt.area || resource != tt.resource || gotID != tt.id {
			t.Errorf("splitResourcePath(%q) = (%q, %q, %q), want (%q, %q, %q)",
				tt.path, area, resource, gotID, tt.area, tt.resource, tt.id)
		}
	}
}
