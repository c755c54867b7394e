package models

import (
	"fmt"
	"time"
)

// MetricKind identifies one of the three AURA metrics.
type MetricKind string

const (
	MetricTES MetricKind = "TES" // Trust-Entropy Score
	MetricVTR MetricKind = "VTR" // Value-Transfer Ratio
	MetricPAI MetricKind = "PAI" // Purpose-Alignment Index
)

// AllMetricKinds returns the metric kinds in evaluation order.
// The order is load-bearing: warnings are emitted and inversion
// ties are broken in exactly this sequence.
func AllMetricKinds() []MetricKind {
	return []MetricKind{MetricTES, MetricVTR, MetricPAI}
}

// Known reports whether k is one of the declared metric kinds.
func (k MetricKind) Known() bool {
	switch k {
	case MetricTES, MetricVTR, MetricPAI:
		return true
	}
	return false
}

// Severity grades a metric warning.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Metrics is one estimated TES/VTR/PAI triple. Values are not clamped;
// in practice TES and PAI live in 0..1 and VTR in 0..10.
type Metrics struct {
	TES float64 `json:"tes"`
	VTR float64 `json:"vtr"`
	PAI float64 `json:"pai"`
}

// Get returns the value for the given metric kind.
func (m Metrics) Get(k MetricKind) float64 {
	switch k {
	case MetricTES:
		return m.TES
	case MetricVTR:
		return m.VTR
	case MetricPAI:
		return m.PAI
	}
	return 0
}

// Thresholds is the minimum acceptable value per metric.
type Thresholds struct {
	TES float64 `json:"tes"`
	VTR float64 `json:"vtr"`
	PAI float64 `json:"pai"`
}

// Get returns the threshold for the given metric kind.
func (t Thresholds) Get(k MetricKind) float64 {
	switch k {
	case MetricTES:
		return t.TES
	case MetricVTR:
		return t.VTR
	case MetricPAI:
		return t.PAI
	}
	return 0
}

// Warning describes one metric that fell below its threshold.
type Warning struct {
	Metric     MetricKind `json:"metric"`
	Message    string     `json:"message"`
	Suggestion string     `json:"suggestion"`
	Severity   Severity   `json:"severity"`
}

// AuraResult is the outcome of validating a metric triple.
// Valid is true iff Warnings is empty.
type AuraResult struct {
	Metrics   Metrics   `json:"metrics"`
	Valid     bool      `json:"valid"`
	Warnings  []Warning `json:"warnings,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Inversion is the synthesized alternative produced when an action fails
// validation: the same underlying intent reframed around the worst-failing
// metric, with a simulated post-adoption metric triple.
type Inversion struct {
	OriginalIntent   string     `json:"original_intent"`
	FailedMetric     MetricKind `json:"failed_metric"`
	FailureReason    string     `json:"failure_reason"`
	InvertedSolution string     `json:"inverted_solution"`
	NewMetrics       AuraResult `json:"new_metrics"`
}

// Decision is the outcome of filtering one action through the AURA pipeline.
// Inversion is nil iff Passed.
type Decision struct {
	Action    string     `json:"action"`
	Metrics   AuraResult `json:"metrics"`
	Passed    bool       `json:"passed"`
	Inversion *Inversion `json:"inversion,omitempty"`
}

// AuraCheck is the persisted projection of a Decision.
type AuraCheck struct {
	ID           string    `json:"id"`
	Action       string    `json:"action"`
	TES          float64   `json:"tes"`
	VTR          float64   `json:"vtr"`
	PAI          float64   `json:"pai"`
	Preset       string    `json:"preset"`
	Passed       bool      `json:"passed"`
	FailedMetric string    `json:"failed_metric,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Validate checks aura check field constraints.
func (c *AuraCheck) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: check ID must not be empty", ErrValidation)
	}
	if c.Action == "" {
		return fmt.Errorf("%w: check action must not be empty", ErrValidation)
	}
	if c.Preset == "" {
		return fmt.Errorf("%w: check preset must not be empty", ErrValidation)
	}
	if c.FailedMetric != "" && !MetricKind(c.FailedMetric).Known() {
		return fmt.Errorf("%w: unknown failed metric %q", ErrValidation, c.FailedMetric)
	}
	if c.CreatedAt.IsZero() {
		return fmt.Errorf("%w: created at must be set", ErrValidation)
	}
	return nil
}
