package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/preppal/internal/domain"
	"github.com/ashureev/preppal/internal/gate"
)

// settingsView is the settings document as returned to clients. Credentials
// are reported as present or absent, never echoed.
type settingsView struct {
	GatedSites            []domain.GatedSite  `json:"gatedSites"`
	PracticeIntensity     domain.Intensity    `json:"practiceIntensity"`
	HasTranscriptionKey   bool                `json:"hasTranscriptionKey"`
	HasGradingKey         bool                `json:"hasGradingKey"`
	ResumeText            string              `json:"resumeText"`
	JobRole               string              `json:"jobRole"`
	CustomRole            string              `json:"customRole"`
	CooldownMinutes       int                 `json:"cooldownMinutes"`
	GradingMode           domain.GradingMode  `json:"gradingMode"`
	EarnMinutesThresholds domain.MinutesTable `json:"earnMinutesThresholds"`
	SetupComplete         bool                `json:"setupComplete"`
}

func newSettingsView(s *domain.Settings) settingsView {
	return settingsView{
		GatedSites:            s.GatedSites,
		PracticeIntensity:     s.PracticeIntensity,
		HasTranscriptionKey:   s.TranscriptionKey != "",
		HasGradingKey:         s.GradingKey != "",
		ResumeText:            s.ResumeText,
		JobRole:               s.JobRole,
		CustomRole:            s.CustomRole,
		CooldownMinutes:       s.Cooldown(),
		GradingMode:           s.Mode(),
		EarnMinutesThresholds: s.EarnMinutesThresholds,
		SetupComplete:         s.SetupComplete(),
	}
}

// settingsPatch carries the keys a client wants to change. Absent keys are
// left untouched.
type settingsPatch struct {
	PracticeIntensity     *domain.Intensity    `json:"practiceIntensity"`
	TranscriptionKey      *string              `json:"transcriptionKey"`
	GradingKey            *string              `json:"gradingKey"`
	ResumeText            *string              `json:"resumeText"`
	JobRole               *string              `json:"jobRole"`
	CustomRole            *string              `json:"customRole"`
	CooldownMinutes       *int                 `json:"cooldownMinutes"`
	GradingMode           *domain.GradingMode  `json:"gradingMode"`
	EarnMinutesThresholds *domain.MinutesTable `json:"earnMinutesThresholds"`
	GatedSites            *[]domain.GatedSite  `json:"gatedSites"`
}

func (p settingsPatch) validate() error {
	if p.PracticeIntensity != nil && !p.PracticeIntensity.Valid() {
		return fmt.Errorf("unknown practice intensity %q", *p.PracticeIntensity)
	}
	if p.GradingMode != nil && *p.GradingMode != domain.ModeClassic && *p.GradingMode != domain.ModeEarnMinutes {
		return fmt.Errorf("unknown grading mode %q", *p.GradingMode)
	}
	if p.CooldownMinutes != nil && *p.CooldownMinutes < 1 {
		return fmt.Errorf("cooldownMinutes must be at least 1")
	}
	if t := p.EarnMinutesThresholds; t != nil {
		if t.Poor < 0 || t.Fair < 0 || t.Good < 0 || t.Excellent < 0 {
			return fmt.Errorf("earnMinutesThresholds must not be negative")
		}
	}
	if p.GatedSites != nil {
		for _, s := range *p.GatedSites {
			if strings.TrimSpace(s.HostPattern) == "" {
				return fmt.Errorf("gated site pattern must not be empty")
			}
		}
	}
	return nil
}

func (p settingsPatch) apply(s *domain.Settings) {
	if p.PracticeIntensity != nil {
		s.PracticeIntensity = *p.PracticeIntensity
	}
	if p.TranscriptionKey != nil {
		s.TranscriptionKey = strings.TrimSpace(*p.TranscriptionKey)
	}
	if p.GradingKey != nil {
		s.GradingKey = strings.TrimSpace(*p.GradingKey)
	}
	if p.ResumeText != nil {
		s.ResumeText = *p.ResumeText
	}
	if p.JobRole != nil {
		s.JobRole = *p.JobRole
	}
	if p.CustomRole != nil {
		s.CustomRole = *p.CustomRole
	}
	if p.CooldownMinutes != nil {
		s.CooldownMinutes = *p.CooldownMinutes
	}
	if p.GradingMode != nil {
		s.GradingMode = *p.GradingMode
	}
	if p.EarnMinutesThresholds != nil {
		s.EarnMinutesThresholds = *p.EarnMinutesThresholds
	}
	if p.GatedSites != nil {
		sites := make([]domain.GatedSite, 0, len(*p.GatedSites))
		for _, site := range *p.GatedSites {
			if site.ID == "" {
				site = domain.NewGatedSite(site.HostPattern)
			}
			sites = append(sites, site)
		}
		s.GatedSites = sites
	}
}

// GetSettings returns the settings document.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.repo.GetSettings(r.Context())
	if err != nil {
		h.logger.Error("Failed to load settings", "error", err)
		Error(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	JSON(w, http.StatusOK, newSettingsView(s))
}

// UpdateSettings applies a partial update to the settings document.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch settingsPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := patch.validate(); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	s, err := h.updateSettings(r.Context(), func(s *domain.Settings) error {
		patch.apply(s)
		return nil
	})
	if err != nil {
		h.logger.Error("Failed to save settings", "error", err)
		Error(w, http.StatusInternalServerError, "failed to save settings")
		return
	}
	h.logger.Info("Settings updated", "setup_complete", s.SetupComplete(), "mode", s.Mode())
	JSON(w, http.StatusOK, newSettingsView(s))
}

// updateSettings loads, mutates and saves the settings document under lock.
func (h *Handler) updateSettings(ctx context.Context, mutate func(*domain.Settings) error) (*domain.Settings, error) {
	h.settingsMu.Lock()
	defer h.settingsMu.Unlock()

	s, err := h.repo.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	if err := mutate(s); err != nil {
		return nil, err
	}
	if err := h.repo.SaveSettings(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

type addSiteRequest struct {
	Pattern string `json:"pattern"`
}

// errSiteExists is returned when a pattern is already gated.
var errSiteExists = errors.New("site already exists")

// errSiteNotFound is returned for an unknown site id.
var errSiteNotFound = errors.New("site not found")

// AddSite adds an enabled gated site.
func (h *Handler) AddSite(w http.ResponseWriter, r *http.Request) {
	var req addSiteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	pattern := strings.ToLower(strings.TrimSpace(req.Pattern))
	if pattern == "" {
		Error(w, http.StatusBadRequest, "pattern is required")
		return
	}

	site := domain.NewGatedSite(pattern)
	_, err := h.updateSettings(r.Context(), func(s *domain.Settings) error {
		for _, existing := range s.GatedSites {
			if existing.HostPattern == pattern {
				return errSiteExists
			}
		}
		s.GatedSites = append(s.GatedSites, site)
		return nil
	})
	switch {
	case errors.Is(err, errSiteExists):
		Error(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.logger.Error("Failed to add site", "error", err)
		Error(w, http.StatusInternalServerError, "failed to add site")
		return
	}

	h.logger.Info("Gated site added", "site_id", site.ID, "pattern", pattern)
	JSON(w, http.StatusCreated, site)
}

type updateSiteRequest struct {
	Enabled *bool `json:"enabled"`
}

// UpdateSite toggles a gated site.
func (h *Handler) UpdateSite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req updateSiteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Enabled == nil {
		Error(w, http.StatusBadRequest, "enabled is required")
		return
	}

	var updated domain.GatedSite
	_, err := h.updateSettings(r.Context(), func(s *domain.Settings) error {
		for i := range s.GatedSites {
			if s.GatedSites[i].ID == id {
				s.GatedSites[i].Enabled = *req.Enabled
				updated = s.GatedSites[i]
				return nil
			}
		}
		return errSiteNotFound
	})
	switch {
	case errors.Is(err, errSiteNotFound):
		Error(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		h.logger.Error("Failed to update site", "error", err)
		Error(w, http.StatusInternalServerError, "failed to update site")
		return
	}
	JSON(w, http.StatusOK, updated)
}

// DeleteSite removes a gated site.
func (h *Handler) DeleteSite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	_, err := h.updateSettings(r.Context(), func(s *domain.Settings) error {
		for i := range s.GatedSites {
			if s.GatedSites[i].ID == id {
				s.GatedSites = append(s.GatedSites[:i], s.GatedSites[i+1:]...)
				return nil
			}
		}
		return errSiteNotFound
	})
	switch {
	case errors.Is(err, errSiteNotFound):
		Error(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		h.logger.Error("Failed to delete site", "error", err)
		Error(w, http.StatusInternalServerError, "failed to delete site")
		return
	}

	h.logger.Info("Gated site removed", "site_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// MatchSite reports whether host is gated, with and without disabled sites.
func (h *Handler) MatchSite(w http.ResponseWriter, r *http.Request) {
	host := strings.TrimSpace(r.URL.Query().Get("host"))
	if host == "" {
		Error(w, http.StatusBadRequest, "host is required")
		return
	}
	s, err := h.repo.GetSettings(r.Context())
	if err != nil {
		h.logger.Error("Failed to load settings", "error", err)
		Error(w, http.StatusInternalServerError, "failed to load settings")
		return
	}

	resp := map[string]interface{}{
		"host":    host,
		"gated":   gate.Matches(host, s.GatedSites, false),
		"listed":  gate.Matches(host, s.GatedSites, true),
		"site_id": nil,
	}
	if site, ok := gate.MatchSite(host, s.GatedSites, true); ok {
		resp["site_id"] = site.ID
	}
	JSON(w, http.StatusOK, resp)
}
