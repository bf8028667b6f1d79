package api

import (
	"net/http"
	"time"

	"github.com/ashureev/preppal/internal/domain"
)

// ListInterviews returns the interview history, oldest first.
func (h *Handler) ListInterviews(w http.ResponseWriter, r *http.Request) {
	records, err := h.repo.ListInterviews(r.Context())
	if err != nil {
		h.logger.Error("Failed to list interviews", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list interviews")
		return
	}

	resp := map[string]interface{}{
		"interviews": records,
		"total":      len(records),
	}
	if avg, ok := domain.AverageGrade(records); ok {
		resp["averageGrade"] = avg
	}
	JSON(w, http.StatusOK, resp)
}

// ClearInterviews removes the whole interview history.
func (h *Handler) ClearInterviews(w http.ResponseWriter, r *http.Request) {
	n, err := h.repo.ClearInterviews(r.Context())
	if err != nil {
		h.logger.Error("Failed to clear interviews", "error", err)
		Error(w, http.StatusInternalServerError, "failed to clear interviews")
		return
	}
	h.logger.Info("Interview history cleared", "deleted", n)
	JSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// Status summarizes setup, history and the current grant.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, err := h.repo.GetSettings(ctx)
	if err != nil {
		h.logger.Error("Failed to load settings", "error", err)
		Error(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	records, err := h.repo.ListInterviews(ctx)
	if err != nil {
		h.logger.Error("Failed to list interviews", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list interviews")
		return
	}
	remaining, err := h.grants.Remaining(ctx, time.Now())
	if err != nil {
		h.logger.Error("Failed to read grant", "error", err)
		Error(w, http.StatusInternalServerError, "failed to read grant")
		return
	}

	resp := map[string]interface{}{
		"setupComplete":         s.SetupComplete(),
		"practiceIntensity":     s.PracticeIntensity,
		"role":                  s.ResolvedRole(),
		"gradingMode":           s.Mode(),
		"enabledSites":          domain.CountEnabled(s.GatedSites),
		"interviewCount":        len(records),
		"grantActive":           remaining > 0,
		"grantRemainingSeconds": int64(remaining.Seconds()),
		"visitCount":            h.cadence.Count(),
	}
	if avg, ok := domain.AverageGrade(records); ok {
		resp["averageGrade"] = avg
	}
	JSON(w, http.StatusOK, resp)
}

// ClearData removes every stored setting, the grant and the history.
func (h *Handler) ClearData(w http.ResponseWriter, r *http.Request) {
	h.settingsMu.Lock()
	defer h.settingsMu.Unlock()

	if err := h.repo.ClearAll(r.Context()); err != nil {
		h.logger.Error("Failed to clear data", "error", err)
		Error(w, http.StatusInternalServerError, "failed to clear data")
		return
	}
	h.cadence.Reset()
	h.logger.Info("All data cleared")
	w.WriteHeader(http.StatusNoContent)
}
