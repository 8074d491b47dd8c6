// Package crudtest provides an in-memory crud.Repository for handler and
// service tests.
package crudtest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scrypto/portal/internal/platform/crud"
)

type record struct {
	id     uuid.UUID
	userID uuid.UUID
	fields map[string]interface{}
	seq    int
}

// Repo keeps rows as column maps and decodes them into T through their json
// tags, so T's json names must match its columns.
type Repo[T any] struct {
	mu      sync.Mutex
	table   crud.Table
	rows    map[uuid.UUID]*record
	seq     int
	Deleted map[uuid.UUID]bool
	// Err, when set, is returned by every method.
	Err error
}

func NewRepo[T any](table crud.Table) *Repo[T] {
	return &Repo[T]{table: table, rows: map[uuid.UUID]*record{}, Deleted: map[uuid.UUID]bool{}}
}

func (r *Repo[T]) decode(rec *record) (*T, error) {
	b, err := json.Marshal(rec.fields)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func normalize(v interface{}) interface{} {
	// round-trip so maps and numbers look the way they will after decoding
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out interface{}
	if json.Unmarshal(b, &out) != nil {
		return v
	}
	return out
}

func (r *Repo[T]) visible(rec *record, userID uuid.UUID) bool {
	return rec.userID == userID && !r.Deleted[rec.id]
}

func (r *Repo[T]) List(_ context.Context, userID uuid.UUID, q crud.ListQuery) ([]*T, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, 0, r.Err
	}

	var matched []*record
	for _, rec := range r.rows {
		if r.visible(rec, userID) && r.matches(rec, q) {
			matched = append(matched, rec)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return less(matched[i], matched[j], q.Sort) })

	total := len(matched)
	start := q.Offset()
	if start > total {
		start = total
	}
	end := start + q.PageSize
	if end > total {
		end = total
	}

	out := make([]*T, 0, end-start)
	for _, rec := range matched[start:end] {
		t, err := r.decode(rec)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, nil
}

func (r *Repo[T]) matches(rec *record, q crud.ListQuery) bool {
	if q.Search != "" && len(r.table.SearchColumns) > 0 {
		found := false
		for _, c := range r.table.SearchColumns {
			if strings.Contains(strings.ToLower(str(rec.fields[c])), strings.ToLower(q.Search)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, f := range q.Filters {
		v := str(rec.fields[f.Column])
		switch f.Op {
		case crud.OpGte:
			if v == "" || v[:min(len(v), 10)] < f.Value[:min(len(f.Value), 10)] {
				return false
			}
		case crud.OpLte:
			if v == "" || v[:min(len(v), 10)] > f.Value[:min(len(f.Value), 10)] {
				return false
			}
		default:
			if v != f.Value {
				return false
			}
		}
	}
	return true
}

func less(a, b *record, sorts []crud.Sort) bool {
	for _, s := range sorts {
		av, bv := str(a.fields[s.Column]), str(b.fields[s.Column])
		if s.Column == "created_at" || s.Column == "updated_at" {
			av, bv = fmt.Sprintf("%09d", a.seq), fmt.Sprintf("%09d", b.seq)
		}
		if av == bv {
			continue
		}
		if s.Desc {
			return av > bv
		}
		return av < bv
	}
	return a.seq < b.seq
}

func str(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func (r *Repo[T]) Get(_ context.Context, userID, id uuid.UUID) (*T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	rec, ok := r.rows[id]
	if !ok || !r.visible(rec, userID) {
		return nil, crud.ErrNotFound
	}
	return r.decode(rec)
}

func (r *Repo[T]) Create(_ context.Context, userID uuid.UUID, values crud.Values) (*T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	r.seq++
	rec := &record{id: uuid.New(), userID: userID, seq: r.seq, fields: map[string]interface{}{}}
	for k, v := range values {
		rec.fields[k] = normalize(v)
	}
	rec.fields[r.table.Key()] = rec.id.String()
	rec.fields["user_id"] = userID.String()
	rec.fields["created_at"] = now
	rec.fields["updated_at"] = now
	rec.fields["is_active"] = true
	r.rows[rec.id] = rec
	return r.decode(rec)
}

func (r *Repo[T]) Update(_ context.Context, userID, id uuid.UUID, values crud.Values) (*T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	rec, ok := r.rows[id]
	if !ok || !r.visible(rec, userID) {
		return nil, crud.ErrNotFound
	}
	for k, v := range values {
		rec.fields[k] = normalize(v)
	}
	rec.fields["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)
	return r.decode(rec)
}

func (r *Repo[T]) Delete(_ context.Context, userID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if rec, ok := r.rows[id]; ok && rec.userID == userID {
		r.Deleted[id] = true
	}
	return nil
}

// Len returns the number of active rows for userID.
func (r *Repo[T]) Len(userID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rec := range r.rows {
		if r.visible(rec, userID) {
			n++
		}
	}
	return n
}
