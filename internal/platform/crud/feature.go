package crud

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Severity drives the colour of a list item.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeveritySevere   Severity = "severe"
	SeverityModerate Severity = "moderate"
	SeverityMild     Severity = "mild"
	SeverityNormal   Severity = "normal"
)

// ListItem is the compact row the list view renders.
type ListItem struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Letter      string   `json:"letter"`
	Severity    Severity `json:"severity"`
	ThirdColumn string   `json:"thirdColumn"`
}

// Option is a select choice.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Options builds select options, deriving labels from values
// ("life_threatening" -> "Life threatening").
func Options(values ...string) []Option {
	out := make([]Option, len(values))
	for i, v := range values {
		out[i] = Option{Value: v, Label: Label(v)}
	}
	return out
}

// Label turns a snake_case or kebab-case value into a display label.
func Label(v string) string {
	s := strings.NewReplacer("_", " ", "-", " ").Replace(v)
	r, n := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}

// FilterField describes a filter control.
type FilterField struct {
	Key     string   `json:"key"`
	Label   string   `json:"label"`
	Type    string   `json:"type"` // select, text, date
	Options []Option `json:"options,omitempty"`
}

// FormField describes a detail form input.
type FormField struct {
	Key       string   `json:"key"`
	Label     string   `json:"label"`
	Type      string   `json:"type"` // text, textarea, select, date, number, checkbox, email, tel
	Required  bool     `json:"required,omitempty"`
	Options   []Option `json:"options,omitempty"`
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	MaxLength int      `json:"maxLength,omitempty"`
}

// Range is shorthand for FormField.Min/Max.
func Range(min, max float64) (*float64, *float64) {
	return &min, &max
}

// ListFeature configures the list view of T.
type ListFeature[T any] struct {
	EntityName string
	BasePath   string
	Transform  func(*T) ListItem
	Filters    []FilterField
	// Less, when set, orders rows before they are transformed into items.
	Less func(a, b *T) bool
}

// DetailFeature configures the detail view of T. The hooks run after a
// successful mutation.
type DetailFeature[T any] struct {
	FormFields []FormField
	OnUpdate   func(ctx context.Context, row *T) error
	OnDelete   func(ctx context.Context, row *T) error
}

// Initials returns the first two letters of s upper-cased, or fallback when s
// is blank.
func Initials(s, fallback string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	r := []rune(s)
	if len(r) > 2 {
		r = r[:2]
	}
	return strings.ToUpper(string(r))
}

// FirstInitials joins the first letter of each non-blank part, upper-cased.
func FirstInitials(fallback string, parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if r, _ := utf8.DecodeRuneInString(p); r != utf8.RuneError {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	if b.Len() == 0 {
		return fallback
	}
	return b.String()
}

// OrDefault returns *p, or def when p is nil or blank.
func OrDefault(p *string, def string) string {
	if p == nil || strings.TrimSpace(*p) == "" {
		return def
	}
	return *p
}

// Deref returns *p or "".
func Deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
