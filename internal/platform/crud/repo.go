package crud

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no active row owned by the user matches.
var ErrNotFound = errors.New("record not found")

// Values maps column names to the values to write.
type Values map[string]interface{}

// Repository is the storage contract for a user-owned record type. Every
// method is scoped to userID and sees only active rows.
type Repository[T any] interface {
	List(ctx context.Context, userID uuid.UUID, q ListQuery) ([]*T, int, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*T, error)
	Create(ctx context.Context, userID uuid.UUID, values Values) (*T, error)
	Update(ctx context.Context, userID, id uuid.UUID, values Values) (*T, error)
	// Delete removes the row. Deleting a missing row is not an error.
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

// ValuesOf converts an input struct into Values keyed by json tag. Nil
// pointers, nil maps and nil slices are omitted so that partial updates only
// touch the fields that were sent. Fields tagged db:"-" are skipped.
func ValuesOf(v interface{}) Values {
	out := Values{}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return out
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return out
	}
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() || f.Tag.Get("db") == "-" {
			continue
		}
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			continue
		}
		fv := rv.Field(i)
		switch fv.Kind() {
		case reflect.Ptr:
			if fv.IsNil() {
				continue
			}
			out[name] = fv.Elem().Interface()
		case reflect.Map, reflect.Slice:
			if fv.IsNil() {
				continue
			}
			out[name] = fv.Interface()
		default:
			out[name] = fv.Interface()
		}
	}
	return out
}

// Columns lists the db column names of T's fields, in declaration order.
func Columns[T any]() []string {
	var zero T
	rt := reflect.TypeOf(zero)
	var cols []string
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Tag.Get("db")
		if name == "-" {
			continue
		}
		if name == "" {
			name = strings.ToLower(f.Name)
		}
		cols = append(cols, name)
	}
	return cols
}
