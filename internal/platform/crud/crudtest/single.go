package crudtest

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scrypto/portal/internal/platform/crud"
)

// Single is an in-memory crud.SingleRepository. Like Repo it decodes column
// maps into T through json tags.
type Single[T any] struct {
	mu   sync.Mutex
	key  string
	rows map[uuid.UUID]map[string]interface{}
	Err  error
}

// NewSingle returns an empty store. key names the primary key column that is
// filled in on first upsert.
func NewSingle[T any](key string) *Single[T] {
	return &Single[T]{key: key, rows: map[uuid.UUID]map[string]interface{}{}}
}

func (s *Single[T]) Get(_ context.Context, userID uuid.UUID) (*T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return s.get(userID)
}

func (s *Single[T]) get(userID uuid.UUID) (*T, error) {
	fields, ok := s.rows[userID]
	if !ok {
		return nil, crud.ErrNotFound
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Single[T]) Upsert(_ context.Context, userID uuid.UUID, values crud.Values) (*T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	fields, ok := s.rows[userID]
	if !ok {
		fields = map[string]interface{}{
			s.key:        uuid.NewString(),
			"user_id":    userID.String(),
			"created_at": now,
			"is_active":  true,
		}
		s.rows[userID] = fields
	}
	for k, v := range values {
		fields[k] = normalize(v)
	}
	fields["updated_at"] = now
	return s.get(userID)
}

// Set writes values directly, bypassing Err.
func (s *Single[T]) Set(userID uuid.UUID, values crud.Values) {
	s.mu.Lock()
	err := s.Err
	s.Err = nil
	s.mu.Unlock()
	_, _ = s.Upsert(context.Background(), userID, values)
	s.mu.Lock()
	s.Err = err
	s.mu.Unlock()
}
