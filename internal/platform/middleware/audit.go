package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/scrypto/portal/internal/platform/auth"
)

// AuditEntry describes one access to patient data.
type AuditEntry struct {
	UserID       string
	UserRoles    []string
	Area         string // patient, pharmacy, storage
	ResourceType string
	ResourceID   string
	Action       string // read, create, update, delete
	Path         string
	Method       string
	IPAddress    string
	RequestID    string
	StatusCode   int
	Timestamp    time.Time
}

var auditPrefixes = []string{"/api/patient/", "/api/pharmacy/", "/api/storage/"}

// Audit emits a structured "phi_access" log line for every request that
// touches patient or pharmacy data.
func Audit(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !isAuditablePath(req.URL.Path) {
				return next(c)
			}

			err := next(c)

			entry := buildAuditEntry(c)
			status := entry.StatusCode
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			} else if err != nil {
				status = http.StatusInternalServerError
			}

			logger.Info().
				Str("type", "phi_audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Strs("user_roles", entry.UserRoles).
				Str("area", entry.Area).
				Str("resource_type", entry.ResourceType).
				Str("resource_id", entry.ResourceID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", status).
				Msg("phi_access")

			return err
		}
	}
}

func buildAuditEntry(c echo.Context) AuditEntry {
	req := c.Request()
	ctx := req.Context()
	entry := AuditEntry{
		UserID:     auth.UserIDFromContext(ctx),
		UserRoles:  auth.RolesFromContext(ctx),
		Path:       req.URL.Path,
		Method:     req.Method,
		IPAddress:  c.RealIP(),
		StatusCode: c.Response().Status,
		Action:     httpMethodToAction(req.Method),
		Timestamp:  time.Now().UTC(),
	}
	entry.RequestID, _ = c.Get("request_id").(string)
	entry.Area, entry.ResourceType, entry.ResourceID = splitResourcePath(req.URL.Path)
	return entry
}

func isAuditablePath(path string) bool {
	for _, p := range auditPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func httpMethodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// splitResourcePath breaks /api/<area>/<group>/<resource>/<id>/... into its
// area, "group/resource" type and the first uuid segment.
//
//	/api/patient/medhist/allergies/<uuid> -> patient, medhist/allergies, <uuid>
//	/api/pharmacy/prescriptions/<uuid>/quote -> pharmacy, prescriptions, <uuid>
func splitResourcePath(path string) (area, resource, id string) {
	segs := strings.Split(strings.Trim(strings.TrimPrefix(path, "/api/"), "/"), "/")
	if len(segs) == 0 || segs[0] == "" {
		return "", "unknown", ""
	}
	area = segs[0]

	var names []string
	for _, s := range segs[1:] {
		if _, err := uuid.Parse(s); err == nil {
			id = s
			break
		}
		names = append(names, s)
		if len(names) == 2 {
			break
		}
	}
	if len(names) == 0 {
		return area, "unknown", id
	}
	if id == "" {
		for _, s := range segs[1+len(names):] {
			if _, err := uuid.Parse(s); err == nil {
				id = s
				break
			}
		}
	}
	return area, strings.Join(names, "/"), id
}
