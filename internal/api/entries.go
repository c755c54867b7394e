package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lumenlab/lumenos/internal/models"
	"github.com/lumenlab/lumenos/internal/storage"
)

// entryRequest is the write payload for entries. RecordedAt takes
// RFC3339; RecordedAtMs takes a millisecond epoch for clients that
// ship raw Date.now() values. At most one of the two may be set.
type entryRequest struct {
	Kind         string   `json:"kind"`
	Title        string   `json:"title"`
	Body         string   `json:"body,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Intensity    int      `json:"intensity"`
	RecordedAt   string   `json:"recorded_at,omitempty"`
	RecordedAtMs int64    `json:"recorded_at_ms,omitempty"`
}

// recordedTime resolves the request's recording timestamp, defaulting
// to now when the payload carries neither form.
func (req *entryRequest) recordedTime(now time.Time) (time.Time, error) {
	if req.RecordedAt != "" && req.RecordedAtMs != 0 {
		return time.Time{}, fmt.Errorf("%w: set recorded_at or recorded_at_ms, not both", models.ErrValidation)
	}
	if req.RecordedAtMs != 0 {
		if req.RecordedAtMs < 0 {
			return time.Time{}, fmt.Errorf("%w: recorded_at_ms must not be negative", models.ErrValidation)
		}
		return time.UnixMilli(req.RecordedAtMs), nil
	}
	if req.RecordedAt != "" {
		t, err := time.Parse(time.RFC3339, req.RecordedAt)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: recorded_at must be RFC3339", models.ErrValidation)
		}
		return t, nil
	}
	return now, nil
}

func (h *Handler) createEntry(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	now := h.now()
	recordedAt, err := req.recordedTime(now)
	if err != nil {
		writeError(w, err)
		return
	}

	entry := &models.Entry{
		ID:         h.newID(),
		Kind:       models.EntryKind(req.Kind),
		Title:      req.Title,
		Body:       req.Body,
		Tags:       req.Tags,
		Intensity:  req.Intensity,
		RecordedAt: recordedAt,
		CreatedAt:  now,
	}
	if err := h.store.AddEntry(r.Context(), entry); err != nil {
		writeError(w, err)
		return
	}
	h.metrics.RecordEntry(string(entry.Kind))
	writeJSON(w, http.StatusCreated, entry)
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	filter := storage.EntryFilter{
		Kind: models.EntryKind(r.URL.Query().Get("kind")),
	}
	if filter.Kind != "" && !filter.Kind.Known() {
		writeError(w, fmt.Errorf("%w: unknown entry kind %q", models.ErrValidation, filter.Kind))
		return
	}

	var err error
	if filter.Since, err = queryTime(r, "since"); err != nil {
		writeError(w, err)
		return
	}
	if filter.Until, err = queryTime(r, "until"); err != nil {
		writeError(w, err)
		return
	}
	if filter.Limit, err = queryInt(r, "limit", 100); err != nil {
		writeError(w, err)
		return
	}

	entries, err := h.store.ListEntries(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) getEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.store.GetEntry(r.Context(), chi.URLParam(r, "entryID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// updateEntry replaces the mutable fields of an entry. Identity and
// creation time are preserved from the stored row.
func (h *Handler) updateEntry(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	entry, err := h.store.GetEntry(r.Context(), chi.URLParam(r, "entryID"))
	if err != nil {
		writeError(w, err)
		return
	}

	recordedAt, err := req.recordedTime(entry.RecordedAt)
	if err != nil {
		writeError(w, err)
		return
	}
	entry.Kind = models.EntryKind(req.Kind)
	entry.Title = req.Title
	entry.Body = req.Body
	entry.Tags = req.Tags
	entry.Intensity = req.Intensity
	entry.RecordedAt = recordedAt

	if err := h.store.UpdateEntry(r.Context(), entry); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) deleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteEntry(r.Context(), chi.URLParam(r, "entryID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
