package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func runWithRoles(t *testing.T, roles []string, required ...string) error {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithUser(context.Background(), testUserID, roles...))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := RequireRole(required...)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	return h(c)
}

func TestRequireRole_Allowed(t *testing.T) {
	if err := runWithRoles(t, []string{RolePatient}, RolePatient); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequireRole_Denied(t *testing.T) {
	err := runWithRoles(t, []string{RolePatient}, RolePharmacist)
	expectStatus(t, err, http.StatusForbidden)
}

func TestRequireRole_AdminBypass(t *testing.T) {
	if err := runWithRoles(t, []string{RoleAdmin}, RolePharmacist); err != nil {
		t.Fatalf("expected admin to pass, got %v", err)
	}
}

func TestRequireRole_NoIdentity(t *testing.T) {
	err := runWithRoles(t, nil, RolePatient)
	expectStatus(t, err, http.StatusForbidden)
}

func TestWithUser(t *testing.T) {
	ctx := WithUser(context.Background(), testUserID, RolePharmacist)
	if UserIDFromContext(ctx) != testUserID {
		t.Error("expected user id round trip")
	}
	if roles := RolesFromContext(ctx); len(roles) != 1 || roles[0] != RolePharmacist {
		t.Errorf("unexpected roles %v", roles)
	}
}
