package aiscan

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const defaultSystemInstructions = "You are a medical prescription analyzer. Extract structured data from prescription images with high accuracy."

// Pricing is the USD price per 1000 tokens.
type Pricing struct {
	InputPer1K  decimal.Decimal `yaml:"input_per_1k"`
	OutputPer1K decimal.Decimal `yaml:"output_per_1k"`
}

// ModelConfig is what one analysis call runs with.
type ModelConfig struct {
	Model              string  `yaml:"model"`
	Temperature        float32 `yaml:"temperature"`
	MaxTokens          int     `yaml:"max_tokens"`
	SystemInstructions string  `yaml:"system_instructions"`
	Pricing            Pricing `yaml:"pricing"`
	// APIKey is never read from the file.
	APIKey string `yaml:"-"`
}

// DefaultModelConfig is used when neither the user nor the config file
// override a setting.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Model:              "gpt-4o",
		Temperature:        0.1,
		MaxTokens:          2000,
		SystemInstructions: defaultSystemInstructions,
		Pricing: Pricing{
			InputPer1K:  decimal.RequireFromString("0.005"),
			OutputPer1K: decimal.RequireFromString("0.015"),
		},
	}
}

// LoadModelConfig reads the YAML file at path over the defaults. A missing
// file yields the defaults.
func LoadModelConfig(path string) (ModelConfig, error) {
	cfg := DefaultModelConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read ai config: %w", err)
	}

	var file ModelConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return cfg, fmt.Errorf("parse ai config %s: %w", path, err)
	}
	return cfg.merge(file), nil
}

// merge overlays the non-zero fields of o.
func (c ModelConfig) merge(o ModelConfig) ModelConfig {
	if o.Model != "" {
		c.Model = o.Model
	}
	if o.Temperature > 0 {
		c.Temperature = o.Temperature
	}
	if o.MaxTokens > 0 {
		c.MaxTokens = o.MaxTokens
	}
	if o.SystemInstructions != "" {
		c.SystemInstructions = o.SystemInstructions
	}
	if o.Pricing.InputPer1K.IsPositive() {
		c.Pricing.InputPer1K = o.Pricing.InputPer1K
	}
	if o.Pricing.OutputPer1K.IsPositive() {
		c.Pricing.OutputPer1K = o.Pricing.OutputPer1K
	}
	if o.APIKey != "" {
		c.APIKey = o.APIKey
	}
	return c
}

// withSettings applies a user's ai_setup row.
func (c ModelConfig) withSettings(s *Settings) ModelConfig {
	if s == nil {
		return c
	}
	o := ModelConfig{Model: s.AIModel, APIKey: s.AIAPIKey}
	if s.AITemperature != nil {
		o.Temperature = float32(*s.AITemperature)
	}
	if s.AIMaxTokens != nil {
		o.MaxTokens = *s.AIMaxTokens
	}
	if s.AISystemInstructions != nil {
		o.SystemInstructions = *s.AISystemInstructions
	}
	return c.merge(o)
}

var thousand = decimal.NewFromInt(1000)

// Cost prices a call's token usage, rounded to four places.
func (p Pricing) Cost(promptTokens, completionTokens int) decimal.Decimal {
	in := decimal.NewFromInt(int64(promptTokens)).Mul(p.InputPer1K).Div(thousand)
	out := decimal.NewFromInt(int64(completionTokens)).Mul(p.OutputPer1K).Div(thousand)
	return in.Add(out).Round(4)
}
