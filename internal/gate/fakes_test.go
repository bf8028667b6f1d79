package gate

import (
	"context"
	"sync"
	"time"

	"github.com/ashureev/preppal/internal/domain"
)

type memGrantRepo struct {
	mu        sync.Mutex
	expiresAt *time.Time
}

func (m *memGrantRepo) GetGrantExpiry(_ context.Context) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expiresAt == nil {
		return time.Time{}, false, nil
	}
	return *m.expiresAt, true, nil
}

func (m *memGrantRepo) SetGrantExpiry(_ context.Context, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expiresAt = &t
	return nil
}

func (m *memGrantRepo) ClearGrantExpiry(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expiresAt = nil
	return nil
}

type fakeSettings struct {
	settings *domain.Settings
}

func (f *fakeSettings) GetSettings(_ context.Context) (*domain.Settings, error) {
	cp := *f.settings
	return &cp, nil
}

func completeSettings(intensity domain.Intensity) *domain.Settings {
	return &domain.Settings{
		GatedSites:        []domain.GatedSite{{ID: "youtube", HostPattern: "youtube.com", Enabled: true}},
		PracticeIntensity: intensity,
		TranscriptionKey:  "sk-t",
		GradingKey:        "sk-g",
		ResumeText:        "resume",
		JobRole:           "Software Engineer",
	}
}
