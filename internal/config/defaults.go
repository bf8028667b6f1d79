package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ashureev/preppal/internal/domain"
)

// DefaultsFile seeds the settings document on first start. Keys already
// stored are never overwritten.
type DefaultsFile struct {
	GatedSites            []SiteEntry          `yaml:"gated_sites"`
	PracticeIntensity     domain.Intensity     `yaml:"practice_intensity"`
	JobRole               string               `yaml:"job_role"`
	CustomRole            string               `yaml:"custom_role"`
	CooldownMinutes       int                  `yaml:"cooldown_minutes"`
	GradingMode           domain.GradingMode   `yaml:"grading_mode"`
	EarnMinutesThresholds *domain.MinutesTable `yaml:"earn_minutes_thresholds"`
}

// SiteEntry is a gated site in the defaults file. Enabled defaults to true.
type SiteEntry struct {
	ID      string `yaml:"id"`
	Value   string `yaml:"value"`
	Enabled *bool  `yaml:"enabled"`
}

// LoadDefaults reads the defaults file at path. An empty path or a missing
// file yields nil without error.
func LoadDefaults(path string) (*DefaultsFile, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read defaults file: %w", err)
	}

	var d DefaultsFile
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse defaults file: %w", err)
	}
	if err := d.validate(); err != nil {
		return nil, fmt.Errorf("defaults file %s: %w", path, err)
	}
	return &d, nil
}

func (d *DefaultsFile) validate() error {
	if d.PracticeIntensity != "" && !d.PracticeIntensity.Valid() {
		return fmt.Errorf("unknown practice_intensity %q", d.PracticeIntensity)
	}
	if d.GradingMode != "" && d.GradingMode != domain.ModeClassic && d.GradingMode != domain.ModeEarnMinutes {
		return fmt.Errorf("unknown grading_mode %q", d.GradingMode)
	}
	if d.CooldownMinutes < 0 {
		return fmt.Errorf("cooldown_minutes must not be negative")
	}
	for i, s := range d.GatedSites {
		if strings.TrimSpace(s.Value) == "" {
			return fmt.Errorf("gated_sites[%d] has an empty value", i)
		}
	}
	return nil
}

// Settings converts the file into a settings document for seeding.
func (d *DefaultsFile) Settings() *domain.Settings {
	s := &domain.Settings{
		PracticeIntensity: d.PracticeIntensity,
		JobRole:           d.JobRole,
		CustomRole:        d.CustomRole,
		CooldownMinutes:   d.CooldownMinutes,
		GradingMode:       d.GradingMode,
	}
	for _, entry := range d.GatedSites {
		site := domain.NewGatedSite(entry.Value)
		if entry.ID != "" {
			site.ID = entry.ID
		}
		if entry.Enabled != nil {
			site.Enabled = *entry.Enabled
		}
		s.GatedSites = append(s.GatedSites, site)
	}
	if d.EarnMinutesThresholds != nil {
		s.EarnMinutesThresholds = *d.EarnMinutesThresholds
	}
	return s
}
