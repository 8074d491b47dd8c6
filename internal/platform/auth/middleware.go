package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	UserEmailKey contextKey = "user_email"
	UserRolesKey contextKey = "user_roles"
)

const (
	RolePatient    = "patient"
	RolePharmacist = "pharmacist"
	RoleAdmin      = "admin"
)

// DevUserID is the identity injected by DevAuthMiddleware.
const DevUserID = "00000000-0000-0000-0000-000000000001"

// Claims matches the access tokens issued by the hosted auth platform.
type Claims struct {
	jwt.RegisteredClaims
	Email       string      `json:"email"`
	Role        string      `json:"role"`
	AppMetadata AppMetadata `json:"app_metadata"`
}

type AppMetadata struct {
	Role  string   `json:"role"`
	Roles []string `json:"roles"`
}

// PortalRoles resolves the application roles carried by the token. The
// platform's generic "authenticated" role maps to patient.
func (c *Claims) PortalRoles() []string {
	if len(c.AppMetadata.Roles) > 0 {
		return c.AppMetadata.Roles
	}
	if c.AppMetadata.Role != "" {
		return []string{c.AppMetadata.Role}
	}
	switch c.Role {
	case "", "authenticated", "anon":
		return []string{RolePatient}
	}
	return []string{c.Role}
}

type SessionConfig struct {
	// Secret validates HS256 tokens. When empty, JWKSURL is used for RS256.
	Secret     []byte
	JWKSURL    string
	Issuer     string
	Audience   string
	CookieName string
}

// SessionMiddleware authenticates the request from a bearer token or the
// session cookie. Anything missing or invalid is a 401.
func SessionMiddleware(cfg SessionConfig) echo.MiddlewareFunc {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "RS256"})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	var keyfunc jwt.Keyfunc
	if len(cfg.Secret) > 0 {
		keyfunc = func(t *jwt.Token) (interface{}, error) { return cfg.Secret, nil }
	} else {
		keyfunc = NewKeySet(cfg.JWKSURL, 5*time.Minute).Keyfunc
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenStr := tokenFromRequest(c.Request(), cfg.CookieName)
			if tokenStr == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenStr, claims, keyfunc, opts...)
			if err != nil || !token.Valid || claims.Subject == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
			}

			setIdentity(c, claims.Subject, claims.Email, claims.PortalRoles())
			return next(c)
		}
	}
}

func tokenFromRequest(r *http.Request, cookieName string) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookieName == "" {
		return ""
	}
	if ck, err := r.Cookie(cookieName); err == nil {
		return ck.Value
	}
	return ""
}

func setIdentity(c echo.Context, userID, email string, roles []string) {
	c.Set("user_id", userID)
	ctx := c.Request().Context()
	ctx = context.WithValue(ctx, UserIDKey, userID)
	ctx = context.WithValue(ctx, UserEmailKey, email)
	ctx = context.WithValue(ctx, UserRolesKey, roles)
	c.SetRequest(c.Request().WithContext(ctx))
}

// DevAuthMiddleware authenticates every request as a fixed development user
// holding both the patient and pharmacist roles.
func DevAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			setIdentity(c, DevUserID, "dev@localhost", []string{RolePatient, RolePharmacist})
			return next(c)
		}
	}
}

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

func EmailFromContext(ctx context.Context) string {
	email, _ := ctx.Value(UserEmailKey).(string)
	return email
}

func RolesFromContext(ctx context.Context) []string {
	roles, _ := ctx.Value(UserRolesKey).([]string)
	return roles
}

// WithUser returns a context carrying the given identity. Used by background
// workers and tests that call services directly.
func WithUser(ctx context.Context, userID string, roles ...string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	return context.WithValue(ctx, UserRolesKey, roles)
}
