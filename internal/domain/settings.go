package domain

import "strings"

// Intensity controls how often a gated visit triggers a challenge.
type Intensity string

const (
	IntensityLight   Intensity = "light"
	IntensityMedium  Intensity = "medium"
	IntensityHeavy   Intensity = "heavy"
	IntensityIntense Intensity = "intense"
)

// visitThresholds maps intensity to the visits required per challenge.
var visitThresholds = map[Intensity]int{
	IntensityLight:   5,
	IntensityMedium:  3,
	IntensityHeavy:   1,
	IntensityIntense: 1,
}

// Valid reports whether i is a known intensity.
func (i Intensity) Valid() bool {
	_, ok := visitThresholds[i]
	return ok
}

// OrDefault returns i, or medium when i is unknown.
func (i Intensity) OrDefault() Intensity {
	if i.Valid() {
		return i
	}
	return IntensityMedium
}

// Threshold returns the number of visits between challenges.
func (i Intensity) Threshold() int {
	return visitThresholds[i.OrDefault()]
}

// GradingMode selects how a completed challenge is converted into a grant.
type GradingMode string

const (
	ModeClassic     GradingMode = "classic"
	ModeEarnMinutes GradingMode = "earn-minutes"
)

// MinutesTable maps a quick-grade category to earned minutes.
type MinutesTable struct {
	Poor      float64 `json:"poor" yaml:"poor"`
	Fair      float64 `json:"fair" yaml:"fair"`
	Good      float64 `json:"good" yaml:"good"`
	Excellent float64 `json:"excellent" yaml:"excellent"`
}

// DefaultMinutesTable is used until the user configures their own.
func DefaultMinutesTable() MinutesTable {
	return MinutesTable{Poor: 1, Fair: 2, Good: 4, Excellent: 7}
}

// Minutes returns the minutes earned for a category. Unknown categories
// earn the poor amount.
func (t MinutesTable) Minutes(c Category) float64 {
	switch Category(strings.ToLower(string(c))) {
	case CategoryExcellent:
		return t.Excellent
	case CategoryGood:
		return t.Good
	case CategoryFair:
		return t.Fair
	default:
		return t.Poor
	}
}

// CustomRoleValue is the job role sentinel that defers to Settings.CustomRole.
const CustomRoleValue = "Custom"

// DefaultCooldownMinutes is the classic-mode grant when none is configured.
const DefaultCooldownMinutes = 30

// Settings is the user-editable configuration document.
type Settings struct {
	GatedSites            []GatedSite  `json:"gatedSites"`
	PracticeIntensity     Intensity    `json:"practiceIntensity"`
	TranscriptionKey      string       `json:"transcriptionKey"`
	GradingKey            string       `json:"gradingKey"`
	ResumeText            string       `json:"resumeText"`
	JobRole               string       `json:"jobRole"`
	CustomRole            string       `json:"customRole"`
	CooldownMinutes       int          `json:"cooldownMinutes"`
	GradingMode           GradingMode  `json:"gradingMode"`
	EarnMinutesThresholds MinutesTable `json:"earnMinutesThresholds"`
}

// ResolvedRole returns the role used in prompts.
func (s *Settings) ResolvedRole() string {
	if s.JobRole == CustomRoleValue {
		return s.CustomRole
	}
	return s.JobRole
}

// SetupComplete reports whether a challenge could possibly be completed.
func (s *Settings) SetupComplete() bool {
	return s.TranscriptionKey != "" &&
		s.GradingKey != "" &&
		s.ResumeText != "" &&
		s.ResolvedRole() != ""
}

// Cooldown returns the configured classic cooldown in minutes.
func (s *Settings) Cooldown() int {
	if s.CooldownMinutes <= 0 {
		return DefaultCooldownMinutes
	}
	return s.CooldownMinutes
}

// Mode returns the grading mode, defaulting to classic.
func (s *Settings) Mode() GradingMode {
	if s.GradingMode == ModeEarnMinutes {
		return ModeEarnMinutes
	}
	return ModeClassic
}
