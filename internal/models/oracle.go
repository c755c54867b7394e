package models

import (
	"fmt"
	"time"
)

// CollapseMethod selects how the decision oracle collapses a set of
// options into a single choice.
type CollapseMethod string

const (
	CollapseObservation CollapseMethod = "observation"
	CollapseIntention   CollapseMethod = "intention"
	CollapseRandom      CollapseMethod = "random"
	CollapseResonance   CollapseMethod = "resonance"
)

// AllCollapseMethods returns every collapse method in canonical order.
func AllCollapseMethods() []CollapseMethod {
	return []CollapseMethod{
		CollapseObservation,
		CollapseIntention,
		CollapseRandom,
		CollapseResonance,
	}
}

// Known reports whether m is one of the declared collapse methods.
func (m CollapseMethod) Known() bool {
	switch m {
	case CollapseObservation, CollapseIntention, CollapseRandom, CollapseResonance:
		return true
	}
	return false
}

// OracleDraw records one collapsed decision: the question, the options it
// was drawn from, the chosen option, and the normalized amplitude each
// option held at collapse time.
type OracleDraw struct {
	ID         string         `json:"id"`
	Question   string         `json:"question"`
	Options    []string       `json:"options"`
	Chosen     string         `json:"chosen"`
	Method     CollapseMethod `json:"method"`
	Amplitudes []float64      `json:"amplitudes"`
	DrawnAt    time.Time      `json:"drawn_at"`
}

// Validate checks oracle draw field constraints.
func (d *OracleDraw) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: draw ID must not be empty", ErrValidation)
	}
	if d.Question == "" {
		return fmt.Errorf("%w: draw question must not be empty", ErrValidation)
	}
	if len(d.Options) < 2 {
		return fmt.Errorf("%w: a draw needs at least two options", ErrValidation)
	}
	if !d.Method.Known() {
		return fmt.Errorf("%w: unknown collapse method %q", ErrValidation, d.Method)
	}
	if d.Chosen == "" {
		return fmt.Errorf("%w: draw chosen option must not be empty", ErrValidation)
	}
	if len(d.Amplitudes) != len(d.Options) {
		return fmt.Errorf("%w: amplitudes must match options", ErrValidation)
	}
	if d.DrawnAt.IsZero() {
		return fmt.Errorf("%w: drawn at must be set", ErrValidation)
	}
	return nil
}
