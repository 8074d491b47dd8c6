package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"
)

type memEntry struct {
	value   []byte
	expires time.Time
}

// Memory implements Counter and JSONCache in process. Tests use it in place
// of Redis.
type Memory struct {
	mu   sync.Mutex
	data map[string]memEntry
	now  func() time.Time
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]memEntry), now: time.Now}
}

func (m *Memory) load(key string) ([]byte, bool) {
	e, ok := m.data[key]
	if !ok {
		return nil, false
	}
	if !e.expires.IsZero() && m.now().After(e.expires) {
		delete(m.data, key)
		return nil, false
	}
	return e.value, true
}

func (m *Memory) store(key string, v []byte, ttl time.Duration, keepTTL bool) {
	e := memEntry{value: v}
	if old, ok := m.data[key]; ok && keepTTL && !old.expires.IsZero() {
		e.expires = old.expires
	} else if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.data[key] = e
}

func (m *Memory) IncrBy(_ context.Context, key string, n int64, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var cur int64
	if v, ok := m.load(key); ok {
		cur, _ = strconv.ParseInt(string(v), 10, 64)
	}
	cur += n
	m.store(key, []byte(strconv.FormatInt(cur, 10)), ttl, true)
	return cur, nil
}

func (m *Memory) IncrByFloat(_ context.Context, key string, f float64, ttl time.Duration) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var cur float64
	if v, ok := m.load(key); ok {
		cur, _ = strconv.ParseFloat(string(v), 64)
	}
	cur += f
	m.store(key, []byte(strconv.FormatFloat(cur, 'f', -1, 64)), ttl, true)
	return cur, nil
}

func (m *Memory) GetInt(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.load(key)
	if !ok {
		return 0, nil
	}
	return strconv.ParseInt(string(v), 10, 64)
}

func (m *Memory) GetFloat(_ context.Context, key string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.load(key)
	if !ok {
		return 0, nil
	}
	return strconv.ParseFloat(string(v), 64)
}

func (m *Memory) Get(_ context.Context, key string, dst interface{}) (bool, error) {
	m.mu.Lock()
	v, ok := m.load(key)
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(v, dst)
}

func (m *Memory) Set(_ context.Context, key string, v interface{}, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store(key, b, ttl, false)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
