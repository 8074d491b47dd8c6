package aiscan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/scrypto/portal/internal/platform/cache"
	"github.com/scrypto/portal/internal/platform/storage"
	"github.com/scrypto/portal/internal/platform/validation"
)

const (
	settingsTTL   = 5 * time.Minute
	maxAuditRows  = 1000
	maxUsageDays  = 365
	notPrescribed = "Could not identify as prescription"
)

var apiKeyPattern = regexp.MustCompile(`^sk-[a-zA-Z0-9-_]+$`)

type Service struct {
	repo      Repository
	completer Completer
	store     storage.ObjectStore
	quota     *Quota
	settings  cache.JSONCache
	defaults  ModelConfig
	// fallbackKey is used when the user has no key of their own.
	fallbackKey string
	now         func() time.Time
}

// NewService wires the analysis pipeline. settings may be nil, in which case
// ai_setup is read on every call.
func NewService(repo Repository, completer Completer, store storage.ObjectStore, quota *Quota,
	settings cache.JSONCache, defaults ModelConfig, fallbackKey string) *Service {
	return &Service{
		repo:        repo,
		completer:   completer,
		store:       store,
		quota:       quota,
		settings:    settings,
		defaults:    defaults,
		fallbackKey: fallbackKey,
		now:         time.Now,
	}
}

func settingsKey(userID uuid.UUID) string {
	return "ai:config:" + userID.String()
}

// cachedModel is the part of a user's ai_setup row kept in the settings
// cache. The API key is never cached.
type cachedModel struct {
	Model              string   `json:"model"`
	Temperature        *float64 `json:"temperature,omitempty"`
	MaxTokens          *int     `json:"max_tokens,omitempty"`
	SystemInstructions *string  `json:"system_instructions,omitempty"`
}

func (m cachedModel) settings() *Settings {
	return &Settings{
		AIModel:              m.Model,
		AITemperature:        m.Temperature,
		AIMaxTokens:          m.MaxTokens,
		AISystemInstructions: m.SystemInstructions,
	}
}

// modelConfig resolves the user's row, then the file defaults.
func (s *Service) modelConfig(ctx context.Context, userID uuid.UUID) (ModelConfig, error) {
	var row *Settings
	if s.settings != nil {
		var cached cachedModel
		found, err := s.settings.Get(ctx, settingsKey(userID), &cached)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("ai settings cache read failed")
		}
		if found {
			row = cached.settings()
			key, err := s.repo.APIKey(ctx, userID, OperationPrescriptionAnalysis)
			if err != nil && !errors.Is(err, ErrSettingsNotFound) {
				return ModelConfig{}, err
			}
			row.AIAPIKey = key
		}
	}
	if row == nil {
		got, err := s.repo.GetSettings(ctx, userID, OperationPrescriptionAnalysis)
		switch {
		case errors.Is(err, ErrSettingsNotFound):
		case err != nil:
			return ModelConfig{}, err
		default:
			row = got
			if s.settings != nil {
				m := cachedModel{
					Model:              got.AIModel,
					Temperature:        got.AITemperature,
					MaxTokens:          got.AIMaxTokens,
					SystemInstructions: got.AISystemInstructions,
				}
				if err := s.settings.Set(ctx, settingsKey(userID), m, settingsTTL); err != nil {
					zerolog.Ctx(ctx).Warn().Err(err).Msg("ai settings cache write failed")
				}
			}
		}
	}

	cfg := s.defaults.withSettings(row)
	if cfg.APIKey == "" {
		cfg.APIKey = s.fallbackKey
	}
	return cfg, nil
}

// Analyze checks the quota, asks the model to read the image and stores the
// image. Every attempt past the quota check is audited.
func (s *Service) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResult, error) {
	if err := s.quota.Check(ctx, req.UserID); err != nil {
		return nil, err
	}

	start := s.now()
	analysis, cost, path, runErr := s.analyze(ctx, req)
	elapsed := s.now().Sub(start).Milliseconds()

	entry := &AuditEntry{
		UserID:           req.UserID,
		SessionID:        req.SessionID,
		Operation:        OperationPrescriptionAnalysis,
		Success:          runErr == nil,
		ProcessingTimeMS: elapsed,
		RequestData:      requestData(req),
	}
	if runErr != nil {
		entry.ErrorMessage = runErr.Error()
	} else {
		entry.CostIncurred = cost
		entry.ResponseData, _ = json.Marshal(analysis)
	}
	if err := s.repo.InsertAudit(ctx, entry); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("session_id", req.SessionID).Msg("ai audit write failed")
	}
	if runErr != nil {
		zerolog.Ctx(ctx).Error().Err(runErr).Str("session_id", req.SessionID).
			Int64("processing_time_ms", elapsed).Msg("prescription analysis failed")
		return nil, fmt.Errorf("analyze prescription: %w", runErr)
	}

	if err := s.quota.Record(ctx, req.UserID, cost); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("ai quota record failed")
	}
	zerolog.Ctx(ctx).Info().Str("session_id", req.SessionID).Int64("processing_time_ms", elapsed).
		Str("cost", cost.String()).Bool("is_prescription", analysis.IsPrescription).
		Msg("prescription analysis completed")

	res := &AnalyzeResult{
		Success:        true,
		IsPrescription: analysis.IsPrescription,
		UploadedPath:   path,
		SessionID:      req.SessionID,
		Cost:           cost.InexactFloat64(),
		ProcessingTime: elapsed,
	}
	if analysis.IsPrescription {
		res.Data = analysis
	} else {
		res.Reason = notPrescribed
	}
	return res, nil
}

func (s *Service) analyze(ctx context.Context, req AnalyzeRequest) (*Analysis, decimal.Decimal, string, error) {
	cfg, err := s.modelConfig(ctx, req.UserID)
	if err != nil {
		return nil, decimal.Zero, "", err
	}
	if cfg.APIKey == "" {
		return nil, decimal.Zero, "", ErrNoAPIKey
	}

	resp, err := s.completer.Complete(ctx, cfg.APIKey, buildRequest(cfg, req.ImageDataURL))
	if err != nil {
		return nil, decimal.Zero, "", err
	}
	if len(resp.Choices) == 0 {
		return nil, decimal.Zero, "", errors.New("model returned no choices")
	}
	analysis, err := ParseAnalysis(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, decimal.Zero, "", err
	}
	cost := cfg.Pricing.Cost(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	path, err := s.uploadImage(ctx, req)
	if err != nil {
		return nil, cost, "", err
	}
	return analysis, cost, path, nil
}

// ParseAnalysis decodes the model output and checks it against the result
// schema.
func ParseAnalysis(content string) (*Analysis, error) {
	var a Analysis
	if err := json.Unmarshal([]byte(content), &a); err != nil {
		return nil, fmt.Errorf("decode model output: %w", err)
	}
	if err := validation.Struct(&a); err != nil {
		return nil, fmt.Errorf("model output failed schema: %w", err)
	}
	return &a, nil
}

func (s *Service) uploadImage(ctx context.Context, req AnalyzeRequest) (string, error) {
	name := strconv.FormatInt(s.now().UnixMilli(), 10) + "_" + storage.SanitizeFileName(req.FileName)
	key, err := storage.UserPath(req.UserID.String(), "prescriptions/"+name)
	if err != nil {
		return "", err
	}
	if _, err := s.store.Put(ctx, storage.BucketPrescriptionImages, key, req.FileType,
		bytes.NewReader(req.Image), int64(len(req.Image))); err != nil {
		return "", fmt.Errorf("upload prescription image: %w", err)
	}
	return key, nil
}

func requestData(req AnalyzeRequest) json.RawMessage {
	b, _ := json.Marshal(map[string]interface{}{
		"imageProvided": true,
		"fileName":      req.FileName,
		"fileType":      req.FileType,
		"imageSize":     len(req.Image),
	})
	return b
}

// SaveSettings stores the user's AI settings and drops the cached copy.
func (s *Service) SaveSettings(ctx context.Context, userID uuid.UUID, in *SettingsInput) (*Settings, error) {
	if in.AIType == "" {
		in.AIType = OperationPrescriptionAnalysis
	}
	if !apiKeyPattern.MatchString(in.AIAPIKey) {
		return nil, validation.Fail("ai_api_key", "Invalid API key format")
	}
	row, err := s.repo.UpsertSettings(ctx, userID, in)
	if err != nil {
		return nil, fmt.Errorf("save ai settings: %w", err)
	}
	if s.settings != nil {
		if err := s.settings.Delete(ctx, settingsKey(userID)); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("ai settings cache invalidation failed")
		}
	}
	return row, nil
}

// Usage aggregates the user's analysis calls over the last days.
func (s *Service) Usage(ctx context.Context, userID uuid.UUID, days int) (*UsageStats, error) {
	if days < 1 || days > maxUsageDays {
		return nil, validation.Fail("days", fmt.Sprintf("must be between 1 and %d", maxUsageDays))
	}
	since := s.now().AddDate(0, 0, -days)
	rows, err := s.repo.ListAudit(ctx, userID, since, maxAuditRows)
	if err != nil {
		return nil, err
	}
	return summarize(rows, days), nil
}

func summarize(rows []*AuditEntry, days int) *UsageStats {
	stats := &UsageStats{Days: days, TotalRequests: len(rows)}
	total := decimal.Zero
	var (
		elapsed    int64
		confidence float64
		scored     int
	)
	for _, r := range rows {
		total = total.Add(r.CostIncurred)
		elapsed += r.ProcessingTimeMS
		if !r.Success {
			stats.FailedRequests++
			continue
		}
		stats.SuccessfulRequests++
		if c := gjson.GetBytes(r.ResponseData, "overallConfidence"); c.Exists() {
			confidence += c.Float()
			scored++
		}
	}
	stats.TotalCost = total.Round(4).InexactFloat64()
	if len(rows) > 0 {
		stats.AverageProcessingTimeMS = float64(elapsed) / float64(len(rows))
	}
	if scored > 0 {
		stats.AverageConfidence = confidence / float64(scored)
	}
	return stats
}
