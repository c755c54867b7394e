package api

import (
	"fmt"
	"net/http"

	"github.com/lumenlab/lumenos/internal/aura"
	"github.com/lumenlab/lumenos/internal/models"
)

// estimatorInputs are the raw counts and values the metric estimators
// score when the client has no precomputed triple.
type estimatorInputs struct {
	FrictionElements int     `json:"friction_elements"`
	TotalElements    int     `json:"total_elements"`
	ValueOffered     float64 `json:"value_offered"`
	ValueCaptured    float64 `json:"value_captured"`
	AlignedIntents   int     `json:"aligned_intents"`
	TotalIntents     int     `json:"total_intents"`
}

// auraCheckRequest validates one action. Exactly one of Metrics and
// Inputs must be set; an empty preset falls back to the configured
// default.
type auraCheckRequest struct {
	Action  string           `json:"action"`
	Preset  string           `json:"preset,omitempty"`
	Metrics *models.Metrics  `json:"metrics,omitempty"`
	Inputs  *estimatorInputs `json:"inputs,omitempty"`
}

func (h *Handler) checkAura(w http.ResponseWriter, r *http.Request) {
	var req auraCheckRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Action == "" {
		writeError(w, fmt.Errorf("%w: action must not be empty", models.ErrValidation))
		return
	}
	if (req.Metrics == nil) == (req.Inputs == nil) {
		writeError(w, fmt.Errorf("%w: provide exactly one of metrics or inputs", models.ErrValidation))
		return
	}

	preset := h.config.DefaultPreset
	if req.Preset != "" {
		preset = aura.Preset(req.Preset)
	}
	thresholds, err := preset.Thresholds()
	if err != nil {
		writeError(w, err)
		return
	}

	var m models.Metrics
	if req.Inputs != nil {
		m = models.Metrics{
			TES: aura.CalculateTES(aura.TESInput{FrictionElements: req.Inputs.FrictionElements, TotalElements: req.Inputs.TotalElements}),
			VTR: aura.CalculateVTR(aura.VTRInput{ValueOffered: req.Inputs.ValueOffered, ValueCaptured: req.Inputs.ValueCaptured}),
			PAI: aura.CalculatePAI(aura.PAIInput{AlignedIntents: req.Inputs.AlignedIntents, TotalIntents: req.Inputs.TotalIntents}),
		}
	} else {
		m = *req.Metrics
		if m.TES < 0 || m.VTR < 0 || m.PAI < 0 {
			writeError(w, fmt.Errorf("%w: metric values must not be negative", models.ErrValidation))
			return
		}
	}

	decision := h.evaluator.FilterDecision(req.Action, m, thresholds)

	check := &models.AuraCheck{
		ID:        h.newID(),
		Action:    req.Action,
		TES:       m.TES,
		VTR:       m.VTR,
		PAI:       m.PAI,
		Preset:    string(preset),
		Passed:    decision.Passed,
		CreatedAt: h.now(),
	}
	if decision.Inversion != nil {
		check.FailedMetric = string(decision.Inversion.FailedMetric)
	}
	if err := h.store.AddAuraCheck(r.Context(), check); err != nil {
		writeError(w, err)
		return
	}
	h.metrics.RecordAuraCheck(string(preset), decision.Passed)

	writeJSON(w, http.StatusOK, map[string]any{
		"id":       check.ID,
		"decision": decision,
	})
}

func (h *Handler) listAuraChecks(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		writeError(w, err)
		return
	}
	if limit < 0 {
		writeError(w, fmt.Errorf("%w: limit must not be negative", models.ErrValidation))
		return
	}
	checks, err := h.store.ListAuraChecks(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"checks": checks})
}
