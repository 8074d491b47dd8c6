// Package storage provides object storage for uploaded prescription images,
// profile pictures and personal documents. It defines the ObjectStore
// interface, a MinIO/S3 implementation, an in-memory implementation for tests
// and development, and the Echo handlers for direct uploads and signed URLs.
package storage

import (
	"context"
	"errors"
	"io"
	"regexp"
	"strings"
	"time"
)

var (
	ErrObjectNotFound   = errors.New("object not found")
	ErrBucketNotAllowed = errors.New("bucket is not allowed")
	ErrFileTooLarge     = errors.New("file exceeds maximum allowed size")
	ErrInvalidPath      = errors.New("invalid object path")
)

// Buckets used by the portal.
const (
	BucketPrescriptionImages = "prescription-images"
	BucketPersonalDocuments  = "personal-documents"
	BucketProfileImages      = "profile-images"
	BucketUserUploads        = "user-uploads"
)

// AllowedBuckets lists the buckets clients may name in upload requests.
var AllowedBuckets = map[string]bool{
	BucketPrescriptionImages: true,
	BucketPersonalDocuments:  true,
	BucketProfileImages:      true,
	BucketUserUploads:        true,
}

// MaxUploadSize is the limit for direct uploads (20 MB).
const MaxUploadSize = 20 * 1024 * 1024

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Bucket      string    `json:"bucket"`
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ObjectStore is implemented by storage backends.
type ObjectStore interface {
	Put(ctx context.Context, bucket, key, contentType string, r io.Reader, size int64) (*ObjectInfo, error)
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, *ObjectInfo, error)
	Remove(ctx context.Context, bucket, key string) error
	PresignedGetURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
	EnsureBuckets(ctx context.Context, buckets ...string) error
}

// UserPath joins userID and a client supplied relative path into an object
// key. Absolute paths and parent references are rejected.
func UserPath(userID, path string) (string, error) {
	path = strings.TrimSpace(path)
	if userID == "" || path == "" || strings.HasPrefix(path, "/") {
		return "", ErrInvalidPath
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == ".." || seg == "." {
			return "", ErrInvalidPath
		}
	}
	return userID + "/" + path, nil
}

// OwnedBy reports whether key lives under the user's prefix.
func OwnedBy(userID, key string) bool {
	return userID != "" && strings.HasPrefix(key, userID+"/")
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SanitizeFileName replaces every character outside [A-Za-z0-9._-] with "_".
func SanitizeFileName(name string) string {
	return unsafeName.ReplaceAllString(name, "_")
}
