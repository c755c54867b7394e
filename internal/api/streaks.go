package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lumenlab/lumenos/internal/models"
	"github.com/lumenlab/lumenos/internal/streak"
)

// maxHeatmapDays bounds the heatmap window a client can request.
const maxHeatmapDays = 366

type heatmapDay struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

func (h *Handler) listStreaks(w http.ResponseWriter, r *http.Request) {
	streaks := make(map[string]models.StreakResult, len(models.AllEntryKinds()))
	for _, kind := range models.AllEntryKinds() {
		times, err := h.store.EntryTimes(r.Context(), kind)
		if err != nil {
			writeError(w, err)
			return
		}
		res, err := h.analyzer.Compute(times)
		if err != nil {
			writeError(w, err)
			return
		}
		streaks[string(kind)] = res
	}
	writeJSON(w, http.StatusOK, map[string]any{"streaks": streaks})
}

// getStreak returns one kind's streak, with an optional trailing
// heatmap when the days query parameter is positive.
func (h *Handler) getStreak(w http.ResponseWriter, r *http.Request) {
	kind := models.EntryKind(chi.URLParam(r, "kind"))
	if !kind.Known() {
		writeError(w, fmt.Errorf("%w: unknown entry kind %q", models.ErrValidation, kind))
		return
	}
	days, err := queryInt(r, "days", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	if days < 0 || days > maxHeatmapDays {
		writeError(w, fmt.Errorf("%w: days must be between 0 and %d", models.ErrValidation, maxHeatmapDays))
		return
	}

	times, err := h.store.EntryTimes(r.Context(), kind)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.analyzer.Compute(times)
	if err != nil {
		writeError(w, err)
		return
	}

	payload := map[string]any{
		"kind":   kind,
		"streak": res,
	}
	if days > 0 {
		counts, err := h.analyzer.DailyCounts(times)
		if err != nil {
			writeError(w, err)
			return
		}
		today := h.analyzer.DayOf(h.now())
		heatmap := make([]heatmapDay, 0, days)
		for day := today - streak.DayKey(days-1); day <= today; day++ {
			heatmap = append(heatmap, heatmapDay{Date: day.String(), Count: counts[day]})
		}
		payload["heatmap"] = heatmap
	}
	writeJSON(w, http.StatusOK, payload)
}
