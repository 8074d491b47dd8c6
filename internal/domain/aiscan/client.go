package aiscan

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

var ErrNoAPIKey = errors.New("OpenAI API key not configured for user")

const (
	userPrompt   = "Analyze this medical prescription image and extract structured data."
	schemaPrompt = `Respond with a single JSON object with these fields: ` +
		`isPrescription (boolean), patientName, patientSurname, doctorName, doctorSurname, ` +
		`practiceNumber, issueDate (YYYY-MM-DD when legible), diagnosis (strings), ` +
		`medications (array of {name, dosage, frequency, duration, instructions}), ` +
		`overallConfidence (0-100), scanQuality (0-100), aiWarnings (array of strings).`
)

// Completer runs one chat completion with the given API key.
type Completer interface {
	Complete(ctx context.Context, apiKey string, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAICompleter calls the OpenAI API, waiting on a shared limiter before
// every request.
type OpenAICompleter struct {
	baseURL string
	limiter *rate.Limiter
}

// NewOpenAICompleter allows rps requests per second with a burst of one.
// An empty baseURL uses the public endpoint.
func NewOpenAICompleter(baseURL string, rps float64) *OpenAICompleter {
	return &OpenAICompleter{baseURL: baseURL, limiter: rate.NewLimiter(rate.Limit(rps), 1)}
}

func (c *OpenAICompleter) Complete(ctx context.Context, apiKey string, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return openai.ChatCompletionResponse{}, fmt.Errorf("ai rate limiter: %w", err)
	}

	cfg := openai.DefaultConfig(apiKey)
	if c.baseURL != "" {
		cfg.BaseURL = c.baseURL
	}
	resp, err := openai.NewClientWithConfig(cfg).CreateChatCompletion(ctx, req)
	if err != nil {
		return resp, fmt.Errorf("chat completion: %w", err)
	}
	return resp, nil
}

// buildRequest shapes the analysis prompt for one image.
func buildRequest(cfg ModelConfig, imageDataURL string) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: cfg.SystemInstructions},
			{Role: openai.ChatMessageRoleSystem, Content: schemaPrompt},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: userPrompt},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: imageDataURL, Detail: openai.ImageURLDetailHigh},
					},
				},
			},
		},
	}
}
