package cache

import (
	"context"
	"testing"
	"time"
)

var (
	_ Counter   = (*Memory)(nil)
	_ JSONCache = (*Memory)(nil)
	_ Counter   = (*Redis)(nil)
	_ JSONCache = (*Redis)(nil)
)

func TestMemory_Counters(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		m.IncrBy(ctx, "ai:req:u1:20260101", 1, time.Hour)
	}
	n, err := m.GetInt(ctx, "ai:req:u1:20260101")
	if err != nil || n != 3 {
		t.Errorf("expected 3, got %d (%v)", n, err)
	}

	m.IncrByFloat(ctx, "ai:cost:u1:20260101", 0.0125, time.Hour)
	f, _ := m.IncrByFloat(ctx, "ai:cost:u1:20260101", 0.0075, time.Hour)
	if f < 0.0199 || f > 0.0201 {
		t.Errorf("expected 0.02, got %v", f)
	}

	if n, _ := m.GetInt(ctx, "missing"); n != 0 {
		t.Errorf("expected 0 for missing key, got %d", n)
	}
}

func TestMemory_CounterKeepsFirstExpiry(t *testing.T) {
	m := NewMemory()
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	m.IncrBy(ctx, "k", 1, time.Hour)
	now = now.Add(50 * time.Minute)
	m.IncrBy(ctx, "k", 1, time.Hour)
	now = now.Add(20 * time.Minute)

	if n, _ := m.GetInt(ctx, "k"); n != 0 {
		t.Errorf("expected counter to expire an hour after first increment, got %d", n)
	}
}

func TestMemory_JSON(t *testing.T) {
	m := NewMemory()
	now := time.Now()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	type cfg struct {
		Model string `json:"model"`
	}
	if err := m.Set(ctx, "ai:config:u1", cfg{Model: "gpt-4o"}, 5*time.Minute); err != nil {
		t.Fatal(err)
	}
	var got cfg
	ok, err := m.Get(ctx, "ai:config:u1", &got)
	if err != nil || !ok || got.Model != "gpt-4o" {
		t.Errorf("unexpected %v %v %+v", ok, err, got)
	}

	now = now.Add(6 * time.Minute)
	if ok, _ := m.Get(ctx, "ai:config:u1", &got); ok {
		t.Error("expected entry to expire")
	}

	m.Set(ctx, "x", 1, 0)
	m.Delete(ctx, "x")
	if ok, _ := m.Get(ctx, "x", new(int)); ok {
		t.Error("expected deleted entry to be gone")
	}
}
