package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func runOrigin(t *testing.T, method string, headers map[string]string) error {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, "http://api.example.com/api/patient/medhist/allergies", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := VerifyOrigin("https://portal.example.com", []string{"https://staging.example.com"})(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	return h(c)
}

func TestVerifyOrigin(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		headers map[string]string
		wantErr bool
	}{
		{"GET skips check", http.MethodGet, nil, false},
		{"HEAD skips check", http.MethodHead, nil, false},
		{"OPTIONS skips check", http.MethodOptions, nil, false},
		{"POST without origin", http.MethodPost, nil, true},
		{"DELETE without origin", http.MethodDelete, nil, true},
		{"POST same origin", http.MethodPost, map[string]string{"Origin": "http://api.example.com"}, false},
		{"POST site url", http.MethodPost, map[string]string{"Origin": "https://portal.example.com"}, false},
		{"PUT allowed list", http.MethodPut, map[string]string{"Origin": "https://staging.example.com"}, false},
		{"POST foreign origin", http.MethodPost, map[string]string{"Origin": "https://evil.example.com"}, true},
		{"POST referer fallback", http.MethodPost, map[string]string{"Referer": "https://portal.example.com/patient/allergies"}, false},
		{"POST foreign referer", http.MethodPost, map[string]string{"Referer": "https://evil.example.com/x"}, true},
		{"POST malformed referer", http.MethodPost, map[string]string{"Referer": "::::"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runOrigin(t, tt.method, tt.headers)
			if tt.wantErr {
				expectStatus(t, err, http.StatusForbidden)
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestNormalizeOrigin(t *testing.T) {
	if got := normalizeOrigin("HTTPS://Portal.Example.com/path?q=1"); got != "https://portal.example.com" {
		t.Errorf("normalizeOrigin() = %q", got)
	}
	if got := normalizeOrigin("not a url"); got != "" {
		t.Errorf("expected empty origin, got %q", got)
	}
}
