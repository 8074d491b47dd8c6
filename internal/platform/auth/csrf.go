package auth

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
)

// VerifyOrigin rejects state-changing requests whose Origin (or Referer
// origin when Origin is absent) is not the server itself, siteURL, or one of
// the extra allowed origins.
func VerifyOrigin(siteURL string, allowed []string) echo.MiddlewareFunc {
	trusted := make(map[string]bool, len(allowed)+1)
	for _, o := range append([]string{siteURL}, allowed...) {
		if n := normalizeOrigin(o); n != "" {
			trusted[n] = true
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			switch req.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			}

			origin := req.Header.Get("Origin")
			if origin == "" {
				origin = normalizeOrigin(req.Header.Get("Referer"))
			}
			if origin == "" {
				return echo.NewHTTPError(http.StatusForbidden, "Forbidden")
			}

			origin = normalizeOrigin(origin)
			self := c.Scheme() + "://" + req.Host
			if origin == self || trusted[origin] {
				return next(c)
			}
			return echo.NewHTTPError(http.StatusForbidden, "Forbidden")
		}
	}
}

// normalizeOrigin reduces a URL to scheme://host.
func normalizeOrigin(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}
