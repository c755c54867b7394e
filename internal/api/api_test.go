package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lumenlab/lumenos/internal/aura"
	"github.com/lumenlab/lumenos/internal/metrics"
	"github.com/lumenlab/lumenos/internal/models"
	"github.com/lumenlab/lumenos/internal/oracle"
	"github.com/lumenlab/lumenos/internal/storage"
	"github.com/lumenlab/lumenos/internal/streak"
)

var apiNow = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	store, err := storage.NewSQLite(":memory:", 100, 100)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	thresholds, err := aura.PresetModerate.Thresholds()
	if err != nil {
		t.Fatalf("failed to resolve preset: %v", err)
	}
	clock := func() time.Time { return apiNow }

	h := NewHandler(
		store,
		streak.New(time.UTC, clock),
		aura.NewEvaluator(thresholds, clock),
		oracle.New(nil, clock),
		metrics.New(),
		Config{
			DefaultPreset:  aura.PresetModerate,
			AllowedOrigins: []string{"*"},
			RequestTimeout: 5 * time.Second,
		},
	)
	h.now = clock
	return h
}

func doRequest(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
}

func TestAPI_Healthz(t *testing.T) {
	router := newTestHandler(t).Router()

	rec := doRequest(t, router, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d, want 200", rec.Code)
	}
	var body map[string]string
	decodeBody(t, rec, &body)
	if body["status"] != "ok" {
		t.Errorf("healthz body = %v, want status ok", body)
	}
}

func TestAPI_EntryLifecycle(t *testing.T) {
	router := newTestHandler(t).Router()

	recordedAt := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	rec := doRequest(t, router, http.MethodPost, "/v1/entries", map[string]any{
		"kind":           "practice",
		"title":          "Morning meditation",
		"body":           "20 minutes of breathwork",
		"tags":           []string{"breath"},
		"intensity":      6,
		"recorded_at_ms": recordedAt.UnixMilli(),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created models.Entry
	decodeBody(t, rec, &created)
	if created.ID == "" {
		t.Fatal("created entry has no ID")
	}
	if !created.RecordedAt.Equal(recordedAt) {
		t.Errorf("recorded at = %v, want %v", created.RecordedAt, recordedAt)
	}
	if !created.CreatedAt.Equal(apiNow) {
		t.Errorf("created at = %v, want %v", created.CreatedAt, apiNow)
	}

	rec = doRequest(t, router, http.MethodGet, "/v1/entries/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var fetched models.Entry
	decodeBody(t, rec, &fetched)
	if fetched.Title != "Morning meditation" {
		t.Errorf("fetched title = %q", fetched.Title)
	}

	rec = doRequest(t, router, http.MethodPut, "/v1/entries/"+created.ID, map[string]any{
		"kind":      "practice",
		"title":     "Evening meditation",
		"intensity": 4,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", rec.Code, rec.Body.String())
	}
	var updated models.Entry
	decodeBody(t, rec, &updated)
	if updated.Title != "Evening meditation" || updated.Intensity != 4 {
		t.Errorf("update not applied: %+v", updated)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("update must preserve created at, got %v", updated.CreatedAt)
	}
	if !updated.RecordedAt.Equal(recordedAt) {
		t.Errorf("update without timestamps must preserve recorded at, got %v", updated.RecordedAt)
	}

	rec = doRequest(t, router, http.MethodGet, "/v1/entries?kind=practice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var listed struct {
		Entries []models.Entry `json:"entries"`
	}
	decodeBody(t, rec, &listed)
	if len(listed.Entries) != 1 {
		t.Fatalf("list returned %d entries, want 1", len(listed.Entries))
	}

	rec = doRequest(t, router, http.MethodDelete, "/v1/entries/"+created.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = doRequest(t, router, http.MethodGet, "/v1/entries/"+created.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestAPI_CreateEntryRejections(t *testing.T) {
	router := newTestHandler(t).Router()

	tests := []struct {
		name string
		body map[string]any
	}{
		{"unknown kind", map[string]any{"kind": "mystery", "title": "x"}},
		{"missing title", map[string]any{"kind": "dream"}},
		{"negative epoch", map[string]any{"kind": "dream", "title": "x", "recorded_at_ms": -5}},
		{"both timestamp forms", map[string]any{
			"kind": "dream", "title": "x",
			"recorded_at": "2025-03-14T09:00:00Z", "recorded_at_ms": 1741942800000,
		}},
		{"unknown field", map[string]any{"kind": "dream", "title": "x", "mood": "great"}},
		{"bad rfc3339", map[string]any{"kind": "dream", "title": "x", "recorded_at": "yesterday"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodPost, "/v1/entries", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestAPI_Streaks(t *testing.T) {
	router := newTestHandler(t).Router()

	for i, day := range []int{13, 14, 15} {
		rec := doRequest(t, router, http.MethodPost, "/v1/entries", map[string]any{
			"kind":           "practice",
			"title":          "session",
			"recorded_at_ms": time.Date(2025, 3, day, 9, 0, 0, 0, time.UTC).UnixMilli(),
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("seed %d status = %d", i, rec.Code)
		}
	}

	rec := doRequest(t, router, http.MethodGet, "/v1/streaks/practice?days=3", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("streak status = %d, body %s", rec.Code, rec.Body.String())
	}
	var got struct {
		Kind   string              `json:"kind"`
		Streak models.StreakResult `json:"streak"`
		Heatmap []struct {
			Date  string `json:"date"`
			Count int    `json:"count"`
		} `json:"heatmap"`
	}
	decodeBody(t, rec, &got)
	if got.Streak.Current != 3 || !got.Streak.ActiveToday {
		t.Errorf("streak = %+v, want current 3 and active today", got.Streak)
	}
	if len(got.Heatmap) != 3 {
		t.Fatalf("heatmap has %d days, want 3", len(got.Heatmap))
	}
	if got.Heatmap[2].Date != "2025-03-15" || got.Heatmap[2].Count != 1 {
		t.Errorf("heatmap tail = %+v, want 2025-03-15 with count 1", got.Heatmap[2])
	}

	rec = doRequest(t, router, http.MethodGet, "/v1/streaks", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("streaks status = %d", rec.Code)
	}
	var all struct {
		Streaks map[string]models.StreakResult `json:"streaks"`
	}
	decodeBody(t, rec, &all)
	if len(all.Streaks) != len(models.AllEntryKinds()) {
		t.Errorf("streaks cover %d kinds, want %d", len(all.Streaks), len(models.AllEntryKinds()))
	}
	if all.Streaks["dream"].Current != 0 {
		t.Errorf("dream streak = %+v, want zero", all.Streaks["dream"])
	}

	rec = doRequest(t, router, http.MethodGet, "/v1/streaks/mystery", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown kind status = %d, want 400", rec.Code)
	}
}

func TestAPI_AuraCheckDirectMetrics(t *testing.T) {
	h := newTestHandler(t)
	// Advance the clock per call so created_at ordering is unambiguous.
	step := 0
	h.now = func() time.Time {
		step++
		return apiNow.Add(time.Duration(step) * time.Second)
	}
	router := h.Router()

	rec := doRequest(t, router, http.MethodPost, "/v1/aura/check", map[string]any{
		"action":  "Ship the new onboarding flow with three upsell prompts",
		"metrics": map[string]float64{"tes": 0.60, "vtr": 1.8, "pai": 0.90},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("check status = %d, body %s", rec.Code, rec.Body.String())
	}
	var failed struct {
		ID       string          `json:"id"`
		Decision models.Decision `json:"decision"`
	}
	decodeBody(t, rec, &failed)
	if failed.ID == "" {
		t.Fatal("check response has no ID")
	}
	if failed.Decision.Passed {
		t.Fatal("expected the check to fail against moderate thresholds")
	}
	if failed.Decision.Inversion == nil || failed.Decision.Inversion.FailedMetric != models.MetricTES {
		t.Fatalf("expected a TES inversion, got %+v", failed.Decision.Inversion)
	}
	if len(failed.Decision.Metrics.Warnings) != 1 {
		t.Errorf("expected exactly one warning, got %v", failed.Decision.Metrics.Warnings)
	}

	rec = doRequest(t, router, http.MethodPost, "/v1/aura/check", map[string]any{
		"action":  "Offer the course companion workbook as a free download",
		"metrics": map[string]float64{"tes": 0.85, "vtr": 2.1, "pai": 0.90},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("second check status = %d", rec.Code)
	}
	var passed struct {
		Decision models.Decision `json:"decision"`
	}
	decodeBody(t, rec, &passed)
	if !passed.Decision.Passed || passed.Decision.Inversion != nil {
		t.Fatalf("expected a passing decision, got %+v", passed.Decision)
	}

	rec = doRequest(t, router, http.MethodGet, "/v1/aura/checks", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list checks status = %d", rec.Code)
	}
	var listed struct {
		Checks []models.AuraCheck `json:"checks"`
	}
	decodeBody(t, rec, &listed)
	if len(listed.Checks) != 2 {
		t.Fatalf("listed %d checks, want 2", len(listed.Checks))
	}
	// Newest first.
	if listed.Checks[0].Passed != true || listed.Checks[1].FailedMetric != "TES" {
		t.Errorf("unexpected check order: %+v", listed.Checks)
	}
}

func TestAPI_AuraCheckEstimatorInputs(t *testing.T) {
	router := newTestHandler(t).Router()

	rec := doRequest(t, router, http.MethodPost, "/v1/aura/check", map[string]any{
		"action": "Publish the practice archive",
		"inputs": map[string]any{
			"friction_elements": 1,
			"total_elements":    10,
			"value_offered":     3.0,
			"value_captured":    1.0,
			"aligned_intents":   9,
			"total_intents":     10,
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("check status = %d, body %s", rec.Code, rec.Body.String())
	}
	var got struct {
		Decision models.Decision `json:"decision"`
	}
	decodeBody(t, rec, &got)
	m := got.Decision.Metrics.Metrics
	if m.TES != 0.9 || m.VTR != 3.0 || m.PAI != 0.9 {
		t.Errorf("estimated metrics = %+v, want 0.9/3.0/0.9", m)
	}
	if !got.Decision.Passed {
		t.Errorf("expected estimated metrics to pass moderate thresholds")
	}
}

func TestAPI_AuraCheckRejections(t *testing.T) {
	router := newTestHandler(t).Router()

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing action", map[string]any{"metrics": map[string]float64{"tes": 1, "vtr": 2, "pai": 1}}},
		{"no metrics or inputs", map[string]any{"action": "x"}},
		{"both metrics and inputs", map[string]any{
			"action":  "x",
			"metrics": map[string]float64{"tes": 1, "vtr": 2, "pai": 1},
			"inputs":  map[string]any{"total_elements": 1},
		}},
		{"unknown preset", map[string]any{
			"action":  "x",
			"preset":  "reckless",
			"metrics": map[string]float64{"tes": 1, "vtr": 2, "pai": 1},
		}},
		{"negative metric", map[string]any{
			"action":  "x",
			"metrics": map[string]float64{"tes": -0.1, "vtr": 2, "pai": 1},
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodPost, "/v1/aura/check", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestAPI_Coherence(t *testing.T) {
	router := newTestHandler(t).Router()

	rec := doRequest(t, router, http.MethodPost, "/v1/coherence/field", map[string]float64{
		"mental": 0.8, "emotional": 0.6, "physical": 0.7, "spiritual": 0.9,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("field status = %d, body %s", rec.Code, rec.Body.String())
	}
	var field struct {
		Coherence float64 `json:"coherence"`
		Resonance float64 `json:"resonance"`
	}
	decodeBody(t, rec, &field)
	if field.Coherence != 0.74 || field.Resonance != 0.78 {
		t.Errorf("field = %+v, want coherence 0.74 resonance 0.78", field)
	}

	rec = doRequest(t, router, http.MethodPost, "/v1/coherence/earned-light", map[string]any{
		"practices": 2, "streak_days": 4, "coherence": 0.8,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("earned-light status = %d", rec.Code)
	}
	var light map[string]float64
	decodeBody(t, rec, &light)
	if light["earned_light"] != 19.2 {
		t.Errorf("earned light = %v, want 19.2", light["earned_light"])
	}

	rec = doRequest(t, router, http.MethodPost, "/v1/coherence/field", map[string]float64{
		"mental": 1.5, "emotional": 0.6, "physical": 0.7, "spiritual": 0.9,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("out-of-range dimension status = %d, want 400", rec.Code)
	}
}

func TestAPI_OracleDraws(t *testing.T) {
	router := newTestHandler(t).Router()

	rec := doRequest(t, router, http.MethodPost, "/v1/oracle/draws", map[string]any{
		"question": "Which practice tonight?",
		"options":  []string{"meditation", "journaling"},
		"method":   "observation",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("draw status = %d, body %s", rec.Code, rec.Body.String())
	}
	var draw models.OracleDraw
	decodeBody(t, rec, &draw)
	if draw.Chosen != "meditation" && draw.Chosen != "journaling" {
		t.Errorf("chosen = %q, not among the options", draw.Chosen)
	}
	if len(draw.Amplitudes) != 2 {
		t.Errorf("amplitudes = %v, want one per option", draw.Amplitudes)
	}

	// Observation is deterministic: the same question repeats the choice.
	rec = doRequest(t, router, http.MethodPost, "/v1/oracle/draws", map[string]any{
		"question": "Which practice tonight?",
		"options":  []string{"meditation", "journaling"},
		"method":   "observation",
	})
	var repeat models.OracleDraw
	decodeBody(t, rec, &repeat)
	if repeat.Chosen != draw.Chosen {
		t.Errorf("observation re-draw chose %q, first chose %q", repeat.Chosen, draw.Chosen)
	}

	rec = doRequest(t, router, http.MethodGet, "/v1/oracle/draws", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list draws status = %d", rec.Code)
	}
	var listed struct {
		Draws []models.OracleDraw `json:"draws"`
	}
	decodeBody(t, rec, &listed)
	if len(listed.Draws) != 2 {
		t.Errorf("listed %d draws, want 2", len(listed.Draws))
	}

	rec = doRequest(t, router, http.MethodPost, "/v1/oracle/draws", map[string]any{
		"question": "One option only?",
		"options":  []string{"yes"},
		"method":   "random",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("single option status = %d, want 400", rec.Code)
	}
	rec = doRequest(t, router, http.MethodPost, "/v1/oracle/draws", map[string]any{
		"question": "Which?",
		"options":  []string{"a", "b"},
		"method":   "tea leaves",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown method status = %d, want 400", rec.Code)
	}
}

func TestVisitorLimiterBlocksExcessBurst(t *testing.T) {
	limiter := newVisitorLimiter(1, 1)
	if limiter == nil {
		t.Fatal("expected limiter to be created")
	}
	if !limiter.allow("192.0.2.10") {
		t.Fatal("first request should be allowed")
	}
	if limiter.allow("192.0.2.10") {
		t.Fatal("second immediate request should be rate limited")
	}
	if !limiter.allow("192.0.2.11") {
		t.Fatal("a different client should have its own bucket")
	}
}

func TestVisitorLimiterDisabled(t *testing.T) {
	if newVisitorLimiter(0, 10) != nil {
		t.Error("zero rps must disable limiting")
	}
	if newVisitorLimiter(5, 0) != nil {
		t.Error("zero burst must disable limiting")
	}
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "203.0.113.9:4411"
	if got := clientKey(req); got != "203.0.113.9" {
		t.Errorf("clientKey = %q, want bare host", got)
	}
	req.RemoteAddr = "203.0.113.9"
	if got := clientKey(req); got != "203.0.113.9" {
		t.Errorf("clientKey without port = %q", got)
	}
}

func TestAPI_RateLimitedRequest(t *testing.T) {
	h := newTestHandler(t)
	h.limiter = newVisitorLimiter(1, 1)
	router := h.Router()

	first := doRequest(t, router, http.MethodGet, "/healthz", nil)
	if first.Code != http.StatusOK {
		t.Fatalf("first request status = %d", first.Code)
	}
	second := doRequest(t, router, http.MethodGet, "/healthz", nil)
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", second.Code)
	}
}
