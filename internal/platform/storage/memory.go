package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"
)

type storedObject struct {
	info    ObjectInfo
	content []byte
}

// MemoryStore is a thread-safe, in-memory ObjectStore for tests and
// development.
type MemoryStore struct {
	mu      sync.RWMutex
	buckets map[string]map[string]*storedObject
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: make(map[string]map[string]*storedObject)}
}

func (s *MemoryStore) Put(_ context.Context, bucket, key, contentType string, r io.Reader, size int64) (*ObjectInfo, error) {
	if key == "" {
		return nil, ErrInvalidPath
	}
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > MaxUploadSize {
		return nil, ErrFileTooLarge
	}
	if size >= 0 && int64(len(data)) != size {
		return nil, fmt.Errorf("size mismatch: declared %d, read %d", size, len(data))
	}

	info := ObjectInfo{
		Bucket:      bucket,
		Key:         key,
		ContentType: contentType,
		Size:        int64(len(data)),
		UpdatedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[bucket]
	if !ok {
		b = make(map[string]*storedObject)
		s.buckets[bucket] = b
	}
	b[key] = &storedObject{info: info, content: data}
	cp := info
	return &cp, nil
}

func (s *MemoryStore) Get(_ context.Context, bucket, key string) (io.ReadCloser, *ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.buckets[bucket][key]
	if !ok {
		return nil, nil, ErrObjectNotFound
	}
	info := obj.info
	return io.NopCloser(bytes.NewReader(obj.content)), &info, nil
}

func (s *MemoryStore) Remove(_ context.Context, bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets[bucket], key)
	return nil
}

// PresignedGetURL returns a memory:// URL carrying the expiry. It is only
// meaningful to tests.
func (s *MemoryStore) PresignedGetURL(_ context.Context, bucket, key string, ttl time.Duration) (string, error) {
	s.mu.RLock()
	_, ok := s.buckets[bucket][key]
	s.mu.RUnlock()
	if !ok {
		return "", ErrObjectNotFound
	}
	u := url.URL{Scheme: "memory", Host: bucket, Path: "/" + key}
	q := url.Values{}
	q.Set("expires", time.Now().Add(ttl).UTC().Format(time.RFC3339))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *MemoryStore) EnsureBuckets(_ context.Context, buckets ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range buckets {
		if _, ok := s.buckets[b]; !ok {
			s.buckets[b] = make(map[string]*storedObject)
		}
	}
	return nil
}
