package storage

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/scrypto/portal/internal/platform/auth"
	"github.com/scrypto/portal/internal/platform/httperr"
	"github.com/scrypto/portal/internal/platform/validation"
)

const (
	uploadURLTTL = time.Hour
	signedURLTTL = time.Hour
)

// Handler serves /api/storage.
type Handler struct {
	store ObjectStore
}

func NewHandler(store ObjectStore) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes mounts the storage routes on g.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/upload", h.Upload)
	g.POST("/signed-url", h.SignedURL)
}

// UploadResponse is returned from a successful upload.
type UploadResponse struct {
	URL      string `json:"url"`
	Path     string `json:"path"`
	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize"`
	FileType string `json:"fileType"`
}

func (h *Handler) Upload(c echo.Context) error {
	userID := auth.UserIDFromContext(c.Request().Context())
	if userID == "" {
		return httperr.Unauthorized()
	}

	file, err := c.FormFile("file")
	if err != nil {
		return httperr.Validation(map[string][]string{"file": {"required"}})
	}
	bucket := strings.TrimSpace(c.FormValue("bucket"))
	if !AllowedBuckets[bucket] {
		return httperr.Validation(map[string][]string{"bucket": {"oneof"}})
	}
	if file.Size > MaxUploadSize {
		return httperr.New(http.StatusRequestEntityTooLarge, "File too large")
	}

	rel := strings.TrimSpace(c.FormValue("path"))
	if rel == "" || strings.HasSuffix(rel, "/") {
		rel += SanitizeFileName(file.Filename)
	}
	key, err := UserPath(userID, rel)
	if err != nil {
		return httperr.Validation(map[string][]string{"path": {"invalid"}})
	}

	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	src, err := file.Open()
	if err != nil {
		return httperr.Internal(err)
	}
	defer src.Close()

	ctx := c.Request().Context()
	info, err := h.store.Put(ctx, bucket, key, contentType, src, file.Size)
	if err != nil {
		if errors.Is(err, ErrFileTooLarge) {
			return httperr.New(http.StatusRequestEntityTooLarge, "File too large")
		}
		return httperr.Internal(err)
	}
	url, err := h.store.PresignedGetURL(ctx, bucket, key, uploadURLTTL)
	if err != nil {
		return httperr.Internal(err)
	}

	return c.JSON(http.StatusOK, UploadResponse{
		URL:      url,
		Path:     info.Key,
		FileName: file.Filename,
		FileSize: info.Size,
		FileType: contentType,
	})
}

type signedURLRequest struct {
	Bucket string `json:"bucket" validate:"required"`
	Path   string `json:"path" validate:"required"`
}

func (h *Handler) SignedURL(c echo.Context) error {
	userID := auth.UserIDFromContext(c.Request().Context())
	if userID == "" {
		return httperr.Unauthorized()
	}

	var req signedURLRequest
	if err := c.Bind(&req); err != nil {
		return httperr.InvalidJSON()
	}
	if err := validation.Struct(&req); err != nil {
		return httperr.Validation(validation.Details(err))
	}
	if !AllowedBuckets[req.Bucket] {
		return httperr.Validation(map[string][]string{"bucket": {"oneof"}})
	}
	if !OwnedBy(userID, req.Path) {
		return httperr.Forbidden()
	}

	url, err := h.store.PresignedGetURL(c.Request().Context(), req.Bucket, req.Path, signedURLTTL)
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return httperr.NotFound("File not found")
		}
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"signedUrl": url})
}
