package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/preppal/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8787", cfg.Port)
	assert.Equal(t, "interview.html", cfg.ChallengeURL)
	assert.Equal(t, "whisper-1", cfg.Transcription.Model)
	assert.Equal(t, "claude-sonnet-4-5", cfg.Grading.Model)
	assert.Equal(t, "claude-haiku-4-5", cfg.Grading.QuickModel)
	assert.Equal(t, time.Second, cfg.GrantPollInterval)
	assert.Equal(t, 4, cfg.BackgroundConcurrency)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ALLOWED_ORIGINS", "chrome-extension://abc, http://localhost:3000 ,")
	t.Setenv("GRANT_POLL_INTERVAL", "250ms")
	t.Setenv("PROVIDER_RATE_PER_MIN", "0")
	t.Setenv("GRADING_BASE_URL", "http://localhost:9999/v1/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, []string{"chrome-extension://abc", "http://localhost:3000"}, cfg.AllowedOrigins)
	assert.Equal(t, 250*time.Millisecond, cfg.GrantPollInterval)
	assert.Equal(t, 0, cfg.Provider.RatePerMinute)
	assert.Equal(t, "http://localhost:9999/v1", cfg.Grading.BaseURL)
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("BACKGROUND_CONCURRENCY", "many")
	t.Setenv("GRANT_POLL_INTERVAL", "soon")
	t.Setenv("LOG_LEVEL", "loud")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.BackgroundConcurrency)
	assert.Equal(t, time.Second, cfg.GrantPollInterval)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty port", func(c *Config) { c.Port = "" }},
		{"empty db path", func(c *Config) { c.DBPath = "" }},
		{"empty challenge url", func(c *Config) { c.ChallengeURL = "" }},
		{"relative provider url", func(c *Config) { c.Grading.BaseURL = "/v1" }},
		{"empty model", func(c *Config) { c.Transcription.Model = "" }},
		{"zero poll interval", func(c *Config) { c.GrantPollInterval = 0 }},
		{"zero concurrency", func(c *Config) { c.BackgroundConcurrency = 0 }},
		{"negative rate", func(c *Config) { c.Provider.RatePerMinute = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestOriginPatterns(t *testing.T) {
	cfg := &Config{AllowedOrigins: []string{"chrome-extension://*", "http://localhost:3000"}}
	assert.Equal(t, []string{"*", "localhost:3000"}, cfg.OriginPatterns())

	cfg.AllowedOrigins = []string{"*", "http://localhost:3000"}
	assert.Equal(t, []string{"*"}, cfg.OriginPatterns())
}

func TestLoadDefaultsFile(t *testing.T) {
	t.Run("empty path", func(t *testing.T) {
		d, err := LoadDefaults("")
		require.NoError(t, err)
		assert.Nil(t, d)
	})

	t.Run("missing file", func(t *testing.T) {
		d, err := LoadDefaults(filepath.Join(t.TempDir(), "nope.yaml"))
		require.NoError(t, err)
		assert.Nil(t, d)
	})

	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "defaults.yaml")
		content := `
gated_sites:
  - value: reddit.com
  - id: tiktok
    value: tiktok.com
    enabled: false
practice_intensity: heavy
job_role: Software Engineer
cooldown_minutes: 15
grading_mode: earn-minutes
earn_minutes_thresholds:
  poor: 0
  fair: 1
  good: 3
  excellent: 5
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		d, err := LoadDefaults(path)
		require.NoError(t, err)
		require.NotNil(t, d)

		s := d.Settings()
		require.Len(t, s.GatedSites, 2)
		assert.Equal(t, "reddit.com", s.GatedSites[0].HostPattern)
		assert.True(t, s.GatedSites[0].Enabled)
		assert.NotEmpty(t, s.GatedSites[0].ID)
		assert.Equal(t, "tiktok", s.GatedSites[1].ID)
		assert.False(t, s.GatedSites[1].Enabled)
		assert.Equal(t, domain.IntensityHeavy, s.PracticeIntensity)
		assert.Equal(t, 15, s.CooldownMinutes)
		assert.Equal(t, domain.ModeEarnMinutes, s.GradingMode)
		assert.Equal(t, 5.0, s.EarnMinutesThresholds.Excellent)
	})

	t.Run("invalid intensity", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "defaults.yaml")
		require.NoError(t, os.WriteFile(path, []byte("practice_intensity: extreme\n"), 0o600))
		_, err := LoadDefaults(path)
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "defaults.yaml")
		require.NoError(t, os.WriteFile(path, []byte("gated_sites: [\n"), 0o600))
		_, err := LoadDefaults(path)
		assert.Error(t, err)
	})
}
