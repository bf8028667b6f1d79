// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/preppal/internal/domain"
)

// Settings document keys. The layout mirrors a flat key-value document so
// each surface can update the keys it owns without touching the rest.
const (
	KeyGatedSites            = "gatedSites"
	KeyPracticeIntensity     = "practiceIntensity"
	KeyTranscriptionKey      = "transcriptionKey"
	KeyGradingKey            = "gradingKey"
	KeyResumeText            = "resumeText"
	KeyJobRole               = "jobRole"
	KeyCustomRole            = "customRole"
	KeyGrantExpiresAt        = "grantExpiresAt"
	KeyCooldownMinutes       = "cooldownMinutes"
	KeyGradingMode           = "gradingMode"
	KeyEarnMinutesThresholds = "earnMinutesThresholds"
	KeyCustomQuestions       = "customQuestions"
)

// Repository defines the interface for persisting engine state.
type Repository interface {
	// GetSettings loads the settings document with defaults applied.
	GetSettings(ctx context.Context) (*domain.Settings, error)

	// SaveSettings writes every settings key.
	SaveSettings(ctx context.Context, s *domain.Settings) error

	// SeedSettings writes settings keys that are not yet present.
	SeedSettings(ctx context.Context, s *domain.Settings) error

	// GetGrantExpiry returns the stored grant expiry, if any.
	GetGrantExpiry(ctx context.Context) (expiresAt time.Time, ok bool, err error)

	// SetGrantExpiry stores the grant expiry.
	SetGrantExpiry(ctx context.Context, expiresAt time.Time) error

	// ClearGrantExpiry removes the grant expiry.
	ClearGrantExpiry(ctx context.Context) error

	// GetCustomQuestions returns the personalized question set.
	GetCustomQuestions(ctx context.Context) ([]string, error)

	// SetCustomQuestions replaces the personalized question set.
	SetCustomQuestions(ctx context.Context, questions []string) error

	// AppendInterview adds a record to the end of the interview history.
	AppendInterview(ctx context.Context, rec *domain.InterviewRecord) error

	// ListInterviews returns the interview history in insertion order.
	ListInterviews(ctx context.Context) ([]domain.InterviewRecord, error)

	// ClearInterviews removes all interview records.
	ClearInterviews(ctx context.Context) (int64, error)

	// ClearAll removes every settings key and interview record.
	ClearAll(ctx context.Context) error

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
