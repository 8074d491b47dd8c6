// Package validation wraps go-playground/validator with the portal's custom
// tags and a flat field → rules error shape.
package validation

import (
	"errors"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var phonePattern = regexp.MustCompile(`^[\+]?[0-9\-\s\(\)]+$`)

// Error is returned by Struct when input fails validation. Details maps the
// JSON field name to the failing rules.
type Error struct {
	Details map[string][]string
}

func (e *Error) Error() string {
	fields := make([]string, 0, len(e.Details))
	for f := range e.Details {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return "invalid input: " + strings.Join(fields, ", ")
}

// Fail builds an Error for a single field. Cross-field checks use it.
func Fail(field, rule string) *Error {
	return &Error{Details: map[string][]string{field: {rule}}}
}

var std = New()

// New returns a validator with the isodate and phone tags registered and
// field names taken from json tags.
func New() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("isodate", validateISODate)
	_ = v.RegisterValidation("phone", validatePhone)
	return v
}

func validateISODate(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if _, err := time.Parse("2006-01-02", s); err == nil {
		return true
	}
	_, err := time.Parse(time.RFC3339, s)
	return err == nil
}

func validatePhone(fl validator.FieldLevel) bool {
	return phonePattern.MatchString(fl.Field().String())
}

// IsPhone reports whether s looks like a phone number.
func IsPhone(s string) bool {
	return phonePattern.MatchString(s)
}

// Struct trims every string field of v (a pointer to a struct), turns empty
// optional strings into nil, and validates. The returned error is *Error.
func Struct(v interface{}) error {
	Trim(v)
	err := std.Struct(v)
	if err == nil {
		return nil
	}
	return &Error{Details: Details(err)}
}

// Var validates a single value against tag.
func Var(field string, value interface{}, tag string) error {
	if err := std.Var(value, tag); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			return Fail(field, ve[0].Tag())
		}
		return Fail(field, tag)
	}
	return nil
}

// Details flattens validator errors into {"field": ["rule", ...]}. Nested
// fields use dotted paths such as "medications[0].name".
func Details(err error) map[string][]string {
	out := map[string][]string{}
	var verr *Error
	if errors.As(err, &verr) {
		return verr.Details
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		if err != nil {
			out["_"] = []string{err.Error()}
		}
		return out
	}
	for _, fe := range ve {
		key := fe.Namespace()
		if i := strings.Index(key, "."); i >= 0 {
			key = key[i+1:]
		}
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		out[key] = append(out[key], rule)
	}
	return out
}

// Trim walks v and trims all string and *string fields in place. Pointers to
// empty strings become nil.
func Trim(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return
	}
	trimValue(rv.Elem())
}

func trimValue(v reflect.Value) {
	switch v.Kind() {
	case reflect.String:
		if v.CanSet() {
			v.SetString(strings.TrimSpace(v.String()))
		}
	case reflect.Ptr:
		if v.IsNil() {
			return
		}
		if v.Elem().Kind() == reflect.String {
			s := strings.TrimSpace(v.Elem().String())
			if s == "" && v.CanSet() {
				v.Set(reflect.Zero(v.Type()))
				return
			}
			v.Elem().SetString(s)
			return
		}
		trimValue(v.Elem())
	case reflect.Struct:
		if v.Type() == reflect.TypeOf(time.Time{}) {
			return
		}
		for i := 0; i < v.NumField(); i++ {
			if v.Type().Field(i).IsExported() {
				trimValue(v.Field(i))
			}
		}
	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			trimValue(v.Index(i))
		}
	}
}
