package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

const testUserID = "6f1c2d8e-3b4a-4c5d-9e8f-0a1b2c3d4e5f"

func createTestToken(t *testing.T, claims Claims, key []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return tokenStr
}

func validClaims() Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   testUserID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Email: "jane@example.com",
		Role:  "authenticated",
	}
}

func runSession(t *testing.T, cfg SessionConfig, req *http.Request) (echo.Context, error) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	var seen echo.Context
	h := SessionMiddleware(cfg)(func(c echo.Context) error {
		seen = c
		return c.String(http.StatusOK, "ok")
	})
	err := h(c)
	return seen, err
}

func expectStatus(t *testing.T, err error, code int) {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T (%v)", err, err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
}

func TestSessionMiddleware_MissingToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := runSession(t, SessionConfig{Secret: testSigningKey, CookieName: "sb-access-token"}, req)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestSessionMiddleware_InvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "Token abc123"},
		{"missing token", "Bearer"},
		{"basic auth", "Basic dXNlcjpwYXNz"},
		{"garbage token", "Bearer not.a.jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", tt.header)
			_, err := runSession(t, SessionConfig{Secret: testSigningKey}, req)
			expectStatus(t, err, http.StatusUnauthorized)
		})
	}
}

func TestSessionMiddleware_BearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+createTestToken(t, validClaims(), testSigningKey))

	c, err := runSession(t, SessionConfig{Secret: testSigningKey}, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := c.Request().Context()
	if got := UserIDFromContext(ctx); got != testUserID {
		t.Errorf("expected user %s, got %s", testUserID, got)
	}
	if got := EmailFromContext(ctx); got != "jane@example.com" {
		t.Errorf("expected email, got %q", got)
	}
	roles := RolesFromContext(ctx)
	if len(roles) != 1 || roles[0] != RolePatient {
		t.Errorf("expected [patient], got %v", roles)
	}
}

func TestSessionMiddleware_SessionCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sb-access-token", Value: createTestToken(t, validClaims(), testSigningKey)})

	c, err := runSession(t, SessionConfig{Secret: testSigningKey, CookieName: "sb-access-token"}, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if UserIDFromContext(c.Request().Context()) != testUserID {
		t.Error("expected user from cookie")
	}
}

func TestSessionMiddleware_ExpiredToken(t *testing.T) {
	claims := validClaims()
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+createTestToken(t, claims, testSigningKey))

	_, err := runSession(t, SessionConfig{Secret: testSigningKey}, req)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestSessionMiddleware_WrongKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+createTestToken(t, validClaims(), []byte("other-key")))

	_, err := runSession(t, SessionConfig{Secret: testSigningKey}, req)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestSessionMiddleware_IssuerMismatch(t *testing.T) {
	claims := validClaims()
	claims.Issuer = "https://evil.example.com"
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+createTestToken(t, claims, testSigningKey))

	_, err := runSession(t, SessionConfig{Secret: testSigningKey, Issuer: "https://auth.example.com"}, req)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestClaims_PortalRoles(t *testing.T) {
	tests := []struct {
		name   string
		claims Claims
		want   string
	}{
		{"authenticated maps to patient", Claims{Role: "authenticated"}, RolePatient},
		{"empty maps to patient", Claims{}, RolePatient},
		{"app metadata role", Claims{Role: "authenticated", AppMetadata: AppMetadata{Role: RolePharmacist}}, RolePharmacist},
		{"app metadata roles", Claims{AppMetadata: AppMetadata{Roles: []string{RoleAdmin}}}, RoleAdmin},
		{"custom top-level role", Claims{Role: RolePharmacist}, RolePharmacist},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			roles := tt.claims.PortalRoles()
			if len(roles) == 0 || roles[0] != tt.want {
				t.Errorf("PortalRoles() = %v, want %s", roles, tt.want)
			}
		})
	}
}

func TestDevAuthMiddleware(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := DevAuthMiddleware()(func(c echo.Context) error {
		ctx := c.Request().Context()
		if UserIDFromContext(ctx) != DevUserID {
			t.Errorf("expected dev user, got %q", UserIDFromContext(ctx))
		}
		if !HasRole(RolesFromContext(ctx), RolePharmacist) {
			t.Error("expected dev user to hold pharmacist role")
		}
		if c.Get("user_id") != DevUserID {
			t.Error("expected user_id on echo context")
		}
		return c.NoContent(http.StatusOK)
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
