package medhist

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/scrypto/portal/internal/platform/auth"
	"github.com/scrypto/portal/internal/platform/crud"
	"github.com/scrypto/portal/internal/platform/crud/crudtest"
	"github.com/scrypto/portal/internal/platform/httperr"
)

const testUserID = "0b7e4c2a-1f3d-4e5a-8b6c-9d0e1f2a3b4c"

func memRepos() Repos {
	return Repos{
		Allergies:     crudtest.NewRepo[Allergy](AllergyTable),
		Conditions:    crudtest.NewRepo[Condition](ConditionTable),
		Immunizations: crudtest.NewRepo[Immunization](ImmunizationTable),
		Surgeries:     crudtest.NewRepo[Surgery](SurgeryTable),
		FamilyHistory: crudtest.NewRepo[FamilyHistory](FamilyHistoryTable),
	}
}

func newServer(r Repos) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = httperr.ErrorHandler(zerolog.Nop())
	g := e.Group("/api/patient", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.SetRequest(c.Request().WithContext(auth.WithUser(c.Request().Context(), testUserID, auth.RolePatient)))
			return next(c)
		}
	})
	RegisterRoutes(g, r)
	return e
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAllergies_CreateAndList(t *testing.T) {
	e := newServer(memRepos())

	rec := do(e, http.MethodPost, "/api/patient/medhist/allergies",
		`{"allergen":"peanuts","allergen_type":"food","severity":"life_threatening","reaction":"Anaphylaxis"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	var created Allergy
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.Allergen != "peanuts" || crud.Deref(created.Severity) != "life_threatening" {
		t.Errorf("unexpected row %+v", created)
	}

	rec = do(e, http.MethodGet, "/api/patient/medhist/allergies?view=items", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var page struct {
		Data  []crud.ListItem `json:"data"`
		Total int             `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 || len(page.Data) != 1 {
		t.Fatalf("expected one item, got %+v", page)
	}
	item := page.Data[0]
	if item.Letter != "PE" || item.Severity != crud.SeverityCritical {
		t.Errorf("unexpected item %+v", item)
	}
	if item.ThirdColumn != created.CreatedAt.Format("2006-01-02") {
		t.Errorf("expected created date, got %q", item.ThirdColumn)
	}
}

func TestAllergies_RequiresTypeAndSeverity(t *testing.T) {
	e := newServer(memRepos())
	rec := do(e, http.MethodPost, "/api/patient/medhist/allergies", `{"allergen":"dust"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	for _, field := range []string{"allergen_type", "severity"} {
		if !strings.Contains(rec.Body.String(), `"`+field+`"`) {
			t.Errorf("expected details for %s in %s", field, rec.Body.String())
		}
	}
}

func TestAllergies_FilterBySeverity(t *testing.T) {
	e := newServer(memRepos())
	do(e, http.MethodPost, "/api/patient/medhist/allergies", `{"allergen":"Pollen","allergen_type":"environmental","severity":"mild"}`)
	do(e, http.MethodPost, "/api/patient/medhist/allergies", `{"allergen":"Penicillin","allergen_type":"medication","severity":"severe"}`)

	rec := do(e, http.MethodGet, "/api/patient/medhist/allergies?severity=severe", "")
	if !strings.Contains(rec.Body.String(), "Penicillin") || strings.Contains(rec.Body.String(), "Pollen") {
		t.Errorf("filter not applied: %s", rec.Body.String())
	}

	rec = do(e, http.MethodGet, "/api/patient/medhist/allergies?severity=extreme", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for unknown severity, got %d", rec.Code)
	}
}

func TestFamilyHistory_Validation(t *testing.T) {
	e := newServer(memRepos())
	tests := []struct {
		name string
		body string
		want int
	}{
		{"valid", `{"relative":"Mother","condition":"Diabetes","relationship":"parent","age_at_onset":45}`, http.StatusCreated},
		{"onset over 150", `{"relative":"Mother","condition":"Diabetes","relationship":"parent","age_at_onset":151}`, http.StatusUnprocessableEntity},
		{"bad relationship", `{"relative":"Neighbour","condition":"Asthma","relationship":"neighbour"}`, http.StatusUnprocessableEntity},
		{"missing condition", `{"relative":"Father","relationship":"parent"}`, http.StatusUnprocessableEntity},
		{"blank relative", `{"relative":"  ","condition":"Asthma","relationship":"sibling"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(e, http.MethodPost, "/api/patient/medhist/family-history", tt.body)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestFamilyHistory_DefaultSortByRelationship(t *testing.T) {
	e := newServer(memRepos())
	do(e, http.MethodPost, "/api/patient/medhist/family-history", `{"relative":"Sam","condition":"Asthma","relationship":"sibling"}`)
	do(e, http.MethodPost, "/api/patient/medhist/family-history", `{"relative":"Gran","condition":"Stroke","relationship":"grandparent"}`)

	rec := do(e, http.MethodGet, "/api/patient/medhist/family-history?view=items", "")
	var page struct {
		Data []crud.ListItem `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatal(err)
	}
	if len(page.Data) != 2 || page.Data[0].Title != "Gran - Stroke" {
		t.Fatalf("expected grandparent first, got %+v", page.Data)
	}
	if page.Data[1].ThirdColumn != "Sibling" {
		t.Errorf("expected relationship label, got %q", page.Data[1].ThirdColumn)
	}
}

func TestConditions_UpdateNotFound(t *testing.T) {
	e := newServer(memRepos())
	rec := do(e, http.MethodPut, "/api/patient/medhist/conditions/5d1f0c2e-8a7b-4c3d-9e1f-2a3b4c5d6e7f", `{"condition_name":"Asthma"}`)
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "Condition not found") {
		t.Errorf("expected 404, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestSurgeries_DeleteIsIdempotent(t *testing.T) {
	repos := memRepos()
	e := newServer(repos)
	rec := do(e, http.MethodPost, "/api/patient/medhist/surgeries", `{"surgery_name":"Appendectomy","outcome":"successful"}`)
	var s Surgery
	if err := json.Unmarshal(rec.Body.Bytes(), &s); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		rec = do(e, http.MethodDelete, "/api/patient/medhist/surgeries/"+s.SurgeryID.String(), "")
		if rec.Code != http.StatusOK {
			t.Fatalf("delete %d: expected 200, got %d", i, rec.Code)
		}
	}
}

func TestAllergySeverity(t *testing.T) {
	tests := map[string]crud.Severity{
		"life_threatening": crud.SeverityCritical,
		"severe":           crud.SeveritySevere,
		"moderate":         crud.SeverityModerate,
		"mild":             crud.SeverityMild,
		"":                 crud.SeverityNormal,
	}
	for in, want := range tests {
		if got := allergySeverity(in); got != want {
			t.Errorf("allergySeverity(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestOutcomeSeverity(t *testing.T) {
	tests := map[string]crud.Severity{
		"failed":          crud.SeverityCritical,
		"complications":   crud.SeveritySevere,
		"partial_success": crud.SeverityModerate,
		"successful":      crud.SeverityMild,
		"unknown":         crud.SeverityNormal,
	}
	for in, want := range tests {
		if got := outcomeSeverity(in); got != want {
			t.Errorf("outcomeSeverity(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestRecencySeverity(t *testing.T) {
	at := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		date string
		want crud.Severity
	}{
		{"2024-06-01", crud.SeverityCritical},
		{"2024-05-15", crud.SeverityCritical},
		{"2024-03-01", crud.SeverityModerate},
		{"2023-09-01", crud.SeverityMild},
		{"2022-01-01", crud.SeverityNormal},
		{"", crud.SeverityNormal},
		{"not-a-date", crud.SeverityNormal},
	}
	for _, tt := range tests {
		if got := recencySeverity(tt.date, at); got != tt.want {
			t.Errorf("recencySeverity(%q) = %s, want %s", tt.date, got, tt.want)
		}
	}
}

func TestImmunizationItem_UsesClock(t *testing.T) {
	orig := now
	now = func() time.Time { return time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC) }
	defer func() { now = orig }()

	date := "2024-06-10"
	item := immunizationItem(&Immunization{VaccineName: "influenza", DateGiven: &date})
	if item.Severity != crud.SeverityCritical || item.ThirdColumn != date || item.Letter != "IN" {
		t.Errorf("unexpected item %+v", item)
	}
}

func TestGeneticRisk(t *testing.T) {
	young, old := 40, 65
	tests := []struct {
		relationship string
		onset        *int
		want         crud.Severity
	}{
		{"parent", &young, crud.SeverityCritical},
		{"sibling", &old, crud.SeveritySevere},
		{"child", nil, crud.SeveritySevere},
		{"grandparent", &young, crud.SeverityModerate},
		{"uncle", &old, crud.SeverityMild},
		{"aunt", nil, crud.SeverityMild},
		{"cousin", &young, crud.SeverityNormal},
	}
	for _, tt := range tests {
		if got := geneticRisk(tt.relationship, tt.onset); got != tt.want {
			t.Errorf("geneticRisk(%s) = %s, want %s", tt.relationship, got, tt.want)
		}
	}
}
