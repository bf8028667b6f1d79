// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port     string
	DBPath   string
	LogLevel slog.Level
	// ChallengeURL is where intercepted navigations are sent. A relative
	// value is resolved by the extension shell against its own origin.
	ChallengeURL   string
	AllowedOrigins []string
	DefaultsFile   string

	Transcription TranscriptionConfig
	Grading       GradingConfig
	Provider      ProviderConfig

	GrantPollInterval     time.Duration
	BackgroundConcurrency int
	Timeout               TimeoutConfig
}

// TranscriptionConfig selects the transcription provider endpoint.
type TranscriptionConfig struct {
	BaseURL string
	Model   string
}

// GradingConfig selects the grading provider endpoint and models.
type GradingConfig struct {
	BaseURL    string
	Model      string
	QuickModel string
}

// ProviderConfig applies to every provider client.
type ProviderConfig struct {
	Timeout       time.Duration
	RatePerMinute int
}

// TimeoutConfig bounds server-side waits.
type TimeoutConfig struct {
	HealthCheck time.Duration
	Shutdown    time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8787"),
		DBPath:         getEnv("DB_PATH", "./data/preppal.db"),
		LogLevel:       getEnvLevel("LOG_LEVEL", slog.LevelInfo),
		ChallengeURL:   getEnv("CHALLENGE_URL", "interview.html"),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"chrome-extension://*"}),
		DefaultsFile:   getEnv("DEFAULTS_FILE", ""),
		Transcription: TranscriptionConfig{
			BaseURL: strings.TrimRight(getEnv("TRANSCRIPTION_BASE_URL", "https://api.openai.com/v1"), "/"),
			Model:   getEnv("TRANSCRIPTION_MODEL", "whisper-1"),
		},
		Grading: GradingConfig{
			BaseURL:    strings.TrimRight(getEnv("GRADING_BASE_URL", "https://api.anthropic.com/v1"), "/"),
			Model:      getEnv("GRADING_MODEL", "claude-sonnet-4-5"),
			QuickModel: getEnv("QUICK_GRADING_MODEL", "claude-haiku-4-5"),
		},
		Provider: ProviderConfig{
			Timeout:       getEnvDuration("PROVIDER_TIMEOUT", 2*time.Minute),
			RatePerMinute: getEnvInt("PROVIDER_RATE_PER_MIN", 30),
		},
		GrantPollInterval:     getEnvDuration("GRANT_POLL_INTERVAL", time.Second),
		BackgroundConcurrency: getEnvInt("BACKGROUND_CONCURRENCY", 4),
		Timeout: TimeoutConfig{
			HealthCheck: getEnvDuration("HEALTH_CHECK_TIMEOUT", 5*time.Second),
			Shutdown:    getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.ChallengeURL == "" {
		return fmt.Errorf("CHALLENGE_URL cannot be empty")
	}
	if _, err := url.Parse(c.ChallengeURL); err != nil {
		return fmt.Errorf("CHALLENGE_URL is not a valid URL: %w", err)
	}
	for name, raw := range map[string]string{
		"TRANSCRIPTION_BASE_URL": c.Transcription.BaseURL,
		"GRADING_BASE_URL":       c.Grading.BaseURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL", name)
		}
	}
	if c.Transcription.Model == "" || c.Grading.Model == "" || c.Grading.QuickModel == "" {
		return fmt.Errorf("provider models cannot be empty")
	}
	if c.GrantPollInterval <= 0 {
		return fmt.Errorf("GRANT_POLL_INTERVAL must be > 0")
	}
	if c.BackgroundConcurrency <= 0 {
		return fmt.Errorf("BACKGROUND_CONCURRENCY must be > 0")
	}
	if c.Provider.RatePerMinute < 0 {
		return fmt.Errorf("PROVIDER_RATE_PER_MIN must be >= 0")
	}
	return nil
}

// OriginPatterns returns the allowed origins as host patterns for the
// WebSocket upgrade check.
func (c *Config) OriginPatterns() []string {
	patterns := make([]string, 0, len(c.AllowedOrigins))
	for _, o := range c.AllowedOrigins {
		if o == "*" {
			return []string{"*"}
		}
		if i := strings.Index(o, "://"); i >= 0 {
			o = o[i+3:]
		}
		patterns = append(patterns, o)
	}
	return patterns
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return fallback
	}
	return level
}
