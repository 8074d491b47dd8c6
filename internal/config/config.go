package config

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`
	RedisURL    string `mapstructure:"REDIS_URL"`

	AuthJWTSecret     string `mapstructure:"AUTH_JWT_SECRET"`
	AuthJWKSURL       string `mapstructure:"AUTH_JWKS_URL"`
	AuthIssuer        string `mapstructure:"AUTH_ISSUER"`
	AuthAudience      string `mapstructure:"AUTH_AUDIENCE"`
	AuthSessionCookie string `mapstructure:"AUTH_SESSION_COOKIE"`

	SiteURL            string   `mapstructure:"SITE_URL"`
	CSRFAllowedOrigins []string `mapstructure:"CSRF_ALLOWED_ORIGINS"`
	CORSOrigins        []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS       float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst     int      `mapstructure:"RATE_LIMIT_BURST"`

	StorageEndpoint  string `mapstructure:"STORAGE_ENDPOINT"`
	StorageAccessKey string `mapstructure:"STORAGE_ACCESS_KEY"`
	StorageSecretKey string `mapstructure:"STORAGE_SECRET_KEY"`
	StorageUseSSL    bool   `mapstructure:"STORAGE_USE_SSL"`
	StorageRegion    string `mapstructure:"STORAGE_REGION"`

	AMQPURL      string `mapstructure:"AMQP_URL"`
	AMQPExchange string `mapstructure:"AMQP_EXCHANGE"`

	OpenAIAPIKey        string  `mapstructure:"OPENAI_API_KEY"`
	OpenAIBaseURL       string  `mapstructure:"OPENAI_BASE_URL"`
	AIConfigFile        string  `mapstructure:"AI_CONFIG_FILE"`
	AIDailyRequestLimit int     `mapstructure:"AI_DAILY_REQUEST_LIMIT"`
	AIDailyCostLimit    float64 `mapstructure:"AI_DAILY_COST_LIMIT"`
	AIRequestsPerSecond float64 `mapstructure:"AI_RPS"`

	TLSEnabled  bool   `mapstructure:"TLS_ENABLED"`
	TLSCertFile string `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile  string `mapstructure:"TLS_KEY_FILE"`
}

var envKeys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL",
	"AUTH_JWT_SECRET", "AUTH_JWKS_URL", "AUTH_ISSUER", "AUTH_AUDIENCE", "AUTH_SESSION_COOKIE",
	"SITE_URL", "CSRF_ALLOWED_ORIGINS", "CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"STORAGE_ENDPOINT", "STORAGE_ACCESS_KEY", "STORAGE_SECRET_KEY", "STORAGE_USE_SSL", "STORAGE_REGION",
	"AMQP_URL", "AMQP_EXCHANGE",
	"OPENAI_API_KEY", "OPENAI_BASE_URL", "AI_CONFIG_FILE", "AI_DAILY_REQUEST_LIMIT",
	"AI_DAILY_COST_LIMIT", "AI_RPS",
	"TLS_ENABLED", "TLS_CERT_FILE", "TLS_KEY_FILE",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("AUTH_SESSION_COOKIE", "sb-access-token")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("STORAGE_REGION", "us-east-1")
	v.SetDefault("AMQP_EXCHANGE", "scrypto.events")
	v.SetDefault("AI_CONFIG_FILE", "configs/ai.yaml")
	v.SetDefault("AI_DAILY_REQUEST_LIMIT", 20)
	v.SetDefault("AI_DAILY_COST_LIMIT", 5.00)
	v.SetDefault("AI_RPS", 2)

	// Bind explicitly so Unmarshal sees env-only keys
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}

	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	cfg.CSRFAllowedOrigins = splitList(v.GetString("CSRF_ALLOWED_ORIGINS"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Warn().Bool("auth_configured", cfg.AuthConfigured()).
			Msg("running in development mode, the development identity is used when no token verifier is set")
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// AuthConfigured reports whether real token validation can be performed.
func (c *Config) AuthConfigured() bool {
	return c.AuthJWTSecret != "" || c.AuthJWKSURL != ""
}

// StorageConfigured reports whether an S3-compatible endpoint was provided.
func (c *Config) StorageConfigured() bool {
	return c.StorageEndpoint != "" && c.StorageAccessKey != "" && c.StorageSecretKey != ""
}

// Validate checks that the configuration is safe to run. Outside development
// a token secret or JWKS URL and object storage credentials are mandatory.
func (c *Config) Validate() error {
	if !c.IsDev() {
		if !c.AuthConfigured() {
			return fmt.Errorf("AUTH_JWT_SECRET or AUTH_JWKS_URL must be set when ENV=%q", c.Env)
		}
		if !c.StorageConfigured() {
			return fmt.Errorf("STORAGE_ENDPOINT, STORAGE_ACCESS_KEY and STORAGE_SECRET_KEY are required when ENV=%q", c.Env)
		}
	}
	if c.IsProduction() && c.SiteURL == "" {
		return fmt.Errorf("SITE_URL is required in production for origin verification")
	}

	if c.AIDailyRequestLimit <= 0 {
		return fmt.Errorf("AI_DAILY_REQUEST_LIMIT must be positive, got %d", c.AIDailyRequestLimit)
	}
	if c.AIDailyCostLimit <= 0 {
		return fmt.Errorf("AI_DAILY_COST_LIMIT must be positive, got %v", c.AIDailyCostLimit)
	}
	if c.AIRequestsPerSecond <= 0 {
		return fmt.Errorf("AI_RPS must be positive, got %v", c.AIRequestsPerSecond)
	}

	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}

	return nil
}
