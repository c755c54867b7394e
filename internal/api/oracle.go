package api

import (
	"fmt"
	"net/http"

	"github.com/lumenlab/lumenos/internal/models"
	"github.com/lumenlab/lumenos/internal/oracle"
)

// drawRequest asks the oracle to collapse a question. Weights only
// apply to the intention method, resonance to the resonance method.
type drawRequest struct {
	Question  string    `json:"question"`
	Options   []string  `json:"options"`
	Method    string    `json:"method"`
	Weights   []float64 `json:"weights,omitempty"`
	Resonance float64   `json:"resonance,omitempty"`
}

func (h *Handler) createDraw(w http.ResponseWriter, r *http.Request) {
	var req drawRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	draw, err := h.oracle.Draw(req.Question, req.Options, models.CollapseMethod(req.Method), oracle.Seed{
		Weights:   req.Weights,
		Resonance: req.Resonance,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.store.AddOracleDraw(r.Context(), &draw); err != nil {
		writeError(w, err)
		return
	}
	h.metrics.RecordOracleDraw(string(draw.Method))
	writeJSON(w, http.StatusCreated, draw)
}

func (h *Handler) listDraws(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		writeError(w, err)
		return
	}
	if limit < 0 {
		writeError(w, fmt.Errorf("%w: limit must not be negative", models.ErrValidation))
		return
	}
	draws, err := h.store.ListOracleDraws(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"draws": draws})
}
