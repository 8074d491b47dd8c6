package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestMemoryStore_PutGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	content := "image-bytes"

	info, err := s.Put(ctx, BucketUserUploads, "u1/a.png", "image/png", strings.NewReader(content), int64(len(content)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Size != int64(len(content)) || info.ContentType != "image/png" {
		t.Errorf("unexpected info %+v", info)
	}

	rc, got, err := s.Get(ctx, BucketUserUploads, "u1/a.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rc.Close()
	b, _ := io.ReadAll(rc)
	if string(b) != content || got.Key != "u1/a.png" {
		t.Errorf("unexpected object %q %+v", b, got)
	}
}

func TestMemoryStore_GetMissing(t *testing.T) {
	s := NewMemoryStore()
	_, _, err := s.Get(context.Background(), BucketUserUploads, "nope")
	if !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestMemoryStore_Remove(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.Put(ctx, "b", "k", "text/plain", strings.NewReader("x"), 1)
	if err := s.Remove(ctx, "b", "k"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Remove(ctx, "b", "k"); err != nil {
		t.Errorf("removing twice should not fail: %v", err)
	}
	if _, _, err := s.Get(ctx, "b", "k"); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected object to be gone, got %v", err)
	}
}

func TestMemoryStore_PresignedGetURL(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.Put(ctx, BucketPrescriptionImages, "u1/prescriptions/1_a.jpg", "image/jpeg", strings.NewReader("x"), 1)

	u, err := s.PresignedGetURL(ctx, BucketPrescriptionImages, "u1/prescriptions/1_a.jpg", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(u, "memory://prescription-images/u1/prescriptions/1_a.jpg?expires=") {
		t.Errorf("unexpected url %s", u)
	}
	if _, err := s.PresignedGetURL(ctx, BucketPrescriptionImages, "missing", time.Hour); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestMemoryStore_TooLarge(t *testing.T) {
	s := NewMemoryStore()
	big := strings.NewReader(strings.Repeat("x", MaxUploadSize+1))
	if _, err := s.Put(context.Background(), "b", "k", "text/plain", big, -1); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestUserPath(t *testing.T) {
	tests := []struct {
		user, path, want string
		wantErr          bool
	}{
		{"u1", "docs/id.pdf", "u1/docs/id.pdf", false},
		{"u1", "id.pdf", "u1/id.pdf", false},
		{"u1", "../u2/id.pdf", "", true},
		{"u1", "/etc/passwd", "", true},
		{"u1", "", "", true},
		{"", "id.pdf", "", true},
	}
	for _, tt := range tests {
		got, err := UserPath(tt.user, tt.path)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("UserPath(%q, %q) = %q, %v", tt.user, tt.path, got, err)
		}
	}
}

func TestOwnedBy(t *testing.T) {
	if !OwnedBy("u1", "u1/a.png") {
		t.Error("expected u1 to own u1/a.png")
	}
	if OwnedBy("u1", "u10/a.png") || OwnedBy("", "/a.png") {
		t.Error("unexpected ownership")
	}
}

func TestSanitizeFileName(t *testing.T) {
	if got := SanitizeFileName("my script (1).jpg"); got != "my_script__1_.jpg" {
		t.Errorf("unexpected %q", got)
	}
}
