package api

import (
	"net/http"

	"github.com/ashureev/preppal/internal/router"
)

type navigateRequest struct {
	URL     string `json:"url"`
	FrameID int    `json:"frameId"`
}

// Navigate evaluates one navigation event.
func (h *Handler) Navigate(w http.ResponseWriter, r *http.Request) {
	var req navigateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.URL == "" {
		Error(w, http.StatusBadRequest, "url is required")
		return
	}

	d, err := h.interceptor.Evaluate(r.Context(), req.URL, req.FrameID)
	if err != nil {
		h.logger.Error("Navigation evaluation failed", "error", err)
		Error(w, http.StatusInternalServerError, "failed to evaluate navigation")
		return
	}
	JSON(w, http.StatusOK, d)
}

// Message routes one tagged request. Failures are reported in the outcome
// body; only an undecodable envelope is an HTTP error.
func (h *Handler) Message(w http.ResponseWriter, r *http.Request) {
	var req router.Request
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Tag == "" {
		Error(w, http.StatusBadRequest, "tag is required")
		return
	}

	JSON(w, http.StatusOK, h.router.Dispatch(r.Context(), req))
}
