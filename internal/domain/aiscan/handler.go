package aiscan

import (
	"encoding/base64"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/scrypto/portal/internal/platform/crud"
	"github.com/scrypto/portal/internal/platform/httperr"
	"github.com/scrypto/portal/internal/platform/validation"
)

// MaxImageSize bounds the decoded image (6 MB).
const MaxImageSize = 6 * 1024 * 1024

var dataURLPattern = regexp.MustCompile(`(?is)^data:(image/(?:jpeg|png));base64,(.+)$`)

type AnalyzeInput struct {
	ImageBase64 string `json:"imageBase64" validate:"required"`
	FileName    string `json:"fileName" validate:"required"`
	FileType    string `json:"fileType" validate:"omitempty,oneof=image/jpeg image/png"`
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the analysis, usage and settings routes on the
// patient group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/presc/analyze", h.Analyze)
	g.GET("/presc/usage", h.Usage)
	g.GET("/settings/ai", h.GetSettings)
	g.PUT("/settings/ai", h.SaveSettings)
}

// DecodeImage checks the data URL against the declared type and returns the
// image bytes.
func DecodeImage(dataURL, fileType string) ([]byte, error) {
	m := dataURLPattern.FindStringSubmatch(dataURL)
	if m == nil {
		return nil, httperr.New(http.StatusUnsupportedMediaType, "Unsupported image format")
	}
	if !strings.EqualFold(m[1], fileType) {
		return nil, httperr.New(http.StatusBadRequest, "MIME type mismatch")
	}
	payload := m[2]
	if base64.StdEncoding.DecodedLen(len(payload)) > MaxImageSize+3 {
		return nil, httperr.New(http.StatusRequestEntityTooLarge, "Image too large (max 6MB)")
	}
	img, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, httperr.New(http.StatusBadRequest, "Invalid image payload")
	}
	if len(img) > MaxImageSize {
		return nil, httperr.New(http.StatusRequestEntityTooLarge, "Image too large (max 6MB)")
	}
	return img, nil
}

// NewSessionID returns scan_<unix ms>_<9 random characters>.
func NewSessionID(now time.Time) string {
	r := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "scan_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + r[:9]
}

func (h *Handler) Analyze(c echo.Context) error {
	userID, err := crud.UserID(c)
	if err != nil {
		return err
	}
	var in AnalyzeInput
	if err := crud.BindAndValidate(c, &in); err != nil {
		return err
	}
	if in.FileType == "" {
		in.FileType = "image/jpeg"
	}
	img, err := DecodeImage(in.ImageBase64, in.FileType)
	if err != nil {
		return err
	}

	res, err := h.svc.Analyze(c.Request().Context(), AnalyzeRequest{
		UserID:       userID,
		SessionID:    NewSessionID(time.Now()),
		FileName:     in.FileName,
		FileType:     strings.ToLower(in.FileType),
		ImageDataURL: in.ImageBase64,
		Image:        img,
	})
	var qe *QuotaError
	if errors.As(err, &qe) {
		return &httperr.Error{Code: http.StatusTooManyRequests, Message: "Daily AI usage limit reached", Reason: qe.Reason}
	}
	if err != nil {
		return &httperr.Error{Code: http.StatusInternalServerError, Message: "Analysis failed", Cause: err}
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) Usage(c echo.Context) error {
	userID, err := crud.UserID(c)
	if err != nil {
		return err
	}
	days := 30
	if v := c.QueryParam("days"); v != "" {
		if days, err = strconv.Atoi(v); err != nil {
			return httperr.InvalidQuery()
		}
	}
	stats, err := h.svc.Usage(c.Request().Context(), userID, days)
	var ve *validation.Error
	if errors.As(err, &ve) {
		return httperr.InvalidQuery()
	}
	if err != nil {
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *Handler) GetSettings(c echo.Context) error {
	userID, err := crud.UserID(c)
	if err != nil {
		return err
	}
	row, err := h.svc.repo.GetSettings(c.Request().Context(), userID, OperationPrescriptionAnalysis)
	if errors.Is(err, ErrSettingsNotFound) {
		return c.JSON(http.StatusOK, map[string]interface{}{"data": nil})
	}
	if err != nil {
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": row.Masked()})
}

func (h *Handler) SaveSettings(c echo.Context) error {
	userID, err := crud.UserID(c)
	if err != nil {
		return err
	}
	var in SettingsInput
	if err := crud.BindAndValidate(c, &in); err != nil {
		return err
	}
	row, err := h.svc.SaveSettings(c.Request().Context(), userID, &in)
	var ve *validation.Error
	if errors.As(err, &ve) {
		return httperr.Validation(ve.Details)
	}
	if err != nil {
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusOK, row.Masked())
}
