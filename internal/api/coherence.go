package api

import (
	"net/http"

	"github.com/lumenlab/lumenos/internal/coherence"
)

func (h *Handler) coherenceField(w http.ResponseWriter, r *http.Request) {
	var dims coherence.Dimensions
	if err := decode(r, &dims); err != nil {
		writeError(w, err)
		return
	}
	field, err := coherence.Field(dims)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, field)
}

type earnedLightRequest struct {
	Practices  int     `json:"practices"`
	StreakDays int     `json:"streak_days"`
	Coherence  float64 `json:"coherence"`
}

func (h *Handler) earnedLight(w http.ResponseWriter, r *http.Request) {
	var req earnedLightRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	light, err := coherence.EarnedLight(req.Practices, req.StreakDays, req.Coherence)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"earned_light": light})
}
