// Package aura validates actions against the three AURA metrics:
// trust entropy (TES), value transfer (VTR), and purpose alignment
// (PAI). Actions that fail are not merely rejected; the evaluator
// synthesizes an inverted alternative that repairs the worst metric.
package aura

import (
	"fmt"
	"strings"
	"time"

	"github.com/lumenlab/lumenos/internal/models"
)

// intentTokenLimit bounds how much of a failed request is echoed back
// inside an inverted solution.
const intentTokenLimit = 10

// Evaluator runs AURA validation and inversion. The zero value is not
// usable; construct with NewEvaluator.
type Evaluator struct {
	defaults models.Thresholds
	now      func() time.Time
}

// NewEvaluator returns an evaluator that re-validates inverted
// solutions against the given default thresholds. A nil clock falls
// back to time.Now.
func NewEvaluator(defaults models.Thresholds, now func() time.Time) *Evaluator {
	if now == nil {
		now = time.Now
	}
	return &Evaluator{defaults: defaults, now: now}
}

// Validate checks a metric triple against thresholds. Each metric
// strictly below its threshold produces one warning, in TES, VTR, PAI
// order. A metric below its severity floor is graded high, otherwise
// medium. Valid is true iff no warnings were produced.
func (e *Evaluator) Validate(m models.Metrics, th models.Thresholds) models.AuraResult {
	res := models.AuraResult{
		Metrics:   m,
		Valid:     true,
		Timestamp: e.now(),
	}
	for _, k := range models.AllMetricKinds() {
		value := m.Get(k)
		limit := th.Get(k)
		if value >= limit {
			continue
		}
		sev := models.SeverityMedium
		if value < floorFor(k) {
			sev = models.SeverityHigh
		}
		res.Warnings = append(res.Warnings, models.Warning{
			Metric:     k,
			Message:    fmt.Sprintf("%s %.2f is below the required %.2f", k, value, limit),
			Suggestion: suggestionFor(k),
			Severity:   sev,
		})
	}
	res.Valid = len(res.Warnings) == 0
	return res
}

// FilterDecision validates an action's metrics and, when the action
// fails, attaches an inversion built around the worst metric: the one
// with the largest threshold shortfall, ties resolved in TES, VTR,
// PAI order.
func (e *Evaluator) FilterDecision(action string, m models.Metrics, th models.Thresholds) models.Decision {
	res := e.Validate(m, th)
	dec := models.Decision{
		Action:  action,
		Metrics: res,
		Passed:  res.Valid,
	}
	if res.Valid {
		return dec
	}
	worst, gap := worstMetric(m, th)
	ctx := fmt.Sprintf("%s %.2f fell %.2f short of %.2f", worst, m.Get(worst), gap, th.Get(worst))
	inv := e.VectorInversion(action, worst, ctx)
	dec.Inversion = &inv
	return dec
}

// VectorInversion reframes a failed request around its worst metric.
// The original intent is condensed to the first few tokens, a repaired
// solution is synthesized per metric, and the simulated post-adoption
// metrics are re-validated against the evaluator's default thresholds
// so the caller sees whether the repair would actually pass.
func (e *Evaluator) VectorInversion(failedRequest string, failed models.MetricKind, context string) models.Inversion {
	intent := condenseIntent(failedRequest)
	reason := failureReasonFor(failed)
	if context != "" {
		reason = reason + " (" + context + ")"
	}
	recovered := recoveredMetrics(failed)
	return models.Inversion{
		OriginalIntent:   intent,
		FailedMetric:     failed,
		FailureReason:    reason,
		InvertedSolution: invertedSolutionFor(failed, intent),
		NewMetrics:       e.Validate(recovered, e.defaults),
	}
}

// worstMetric returns the failing metric with the largest shortfall
// and that shortfall. Strict comparison keeps the earliest metric in
// canonical order on exact ties. Callers must only invoke it when at
// least one metric fails; with none failing it degrades to TES.
func worstMetric(m models.Metrics, th models.Thresholds) (models.MetricKind, float64) {
	worst := models.MetricTES
	var worstGap float64
	for _, k := range models.AllMetricKinds() {
		gap := th.Get(k) - m.Get(k)
		if gap > worstGap {
			worst = k
			worstGap = gap
		}
	}
	return worst, worstGap
}

// recoveredMetrics simulates the metric triple after adopting an
// inverted solution: the failed metric recovers strongly, the other
// two settle at healthy baseline values.
func recoveredMetrics(failed models.MetricKind) models.Metrics {
	m := models.Metrics{TES: 0.75, VTR: 1.8, PAI: 0.85}
	switch failed {
	case models.MetricTES:
		m.TES = 0.85
	case models.MetricVTR:
		m.VTR = 2.0
	case models.MetricPAI:
		m.PAI = 0.90
	}
	return m
}

// condenseIntent reduces a request to its first tokens, marking any
// truncation with an ellipsis.
func condenseIntent(request string) string {
	tokens := strings.Fields(request)
	if len(tokens) <= intentTokenLimit {
		return strings.Join(tokens, " ")
	}
	return strings.Join(tokens[:intentTokenLimit], " ") + "..."
}

func suggestionFor(k models.MetricKind) string {
	switch k {
	case models.MetricTES:
		return "reduce friction: fewer new asks, clearer terms, no surprises"
	case models.MetricVTR:
		return "offer more than you capture before asking for anything back"
	case models.MetricPAI:
		return "drop the parts of the action that no longer serve its purpose"
	}
	return ""
}

func failureReasonFor(k models.MetricKind) string {
	switch k {
	case models.MetricTES:
		return "the action demands more trust than it has earned"
	case models.MetricVTR:
		return "the exchange captures more value than it offers"
	case models.MetricPAI:
		return "the action has drifted from its stated purpose"
	}
	return ""
}

func invertedSolutionFor(k models.MetricKind, intent string) string {
	switch k {
	case models.MetricTES:
		return fmt.Sprintf("Simplify: pursue %q as the smallest step that needs no new trust", intent)
	case models.MetricVTR:
		return fmt.Sprintf("Empower: reshape %q so the other side keeps most of the value it creates", intent)
	case models.MetricPAI:
		return fmt.Sprintf("Refocus: return %q to the purpose that first motivated it", intent)
	}
	return ""
}
