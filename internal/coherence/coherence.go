// Package coherence measures how evenly a person's four dimensions
// are developed and converts sustained practice into earned light,
// the internal governance credit.
package coherence

import (
	"fmt"
	"math"

	"github.com/lumenlab/lumenos/internal/models"
)

const (
	// baseLightPerPractice is the credit granted for one completed practice
	// before streak and coherence scaling.
	baseLightPerPractice = 10.0

	// streakBonusPerDay compounds per consecutive day of practice.
	streakBonusPerDay = 0.05

	// streakBonusCap bounds the streak multiplier.
	streakBonusCap = 2.0
)

// Dimensions holds one self-assessment across the four tracked
// dimensions. Every score lives in 0..1.
type Dimensions struct {
	Mental    float64 `json:"mental"`
	Emotional float64 `json:"emotional"`
	Physical  float64 `json:"physical"`
	Spiritual float64 `json:"spiritual"`
}

// Validate checks that every dimension score is within 0..1.
func (d Dimensions) Validate() error {
	for _, s := range []struct {
		name  string
		value float64
	}{
		{"mental", d.Mental},
		{"emotional", d.Emotional},
		{"physical", d.Physical},
		{"spiritual", d.Spiritual},
	} {
		if s.value < 0 || s.value > 1 {
			return fmt.Errorf("%w: %s score %v outside 0..1", models.ErrValidation, s.name, s.value)
		}
	}
	return nil
}

// scores returns the four dimension values in declaration order.
func (d Dimensions) scores() [4]float64 {
	return [4]float64{d.Mental, d.Emotional, d.Physical, d.Spiritual}
}

// FieldState is one evaluated coherence field. Coherence rewards
// overall level, resonance rewards evenness across dimensions.
type FieldState struct {
	Dimensions Dimensions `json:"dimensions"`
	Coherence  float64    `json:"coherence"`
	Resonance  float64    `json:"resonance"`
}

// Field computes the coherence field for one set of dimension scores.
// Coherence is the geometric mean of the four scores, so a single
// collapsed dimension drags the whole field down. Resonance is derived
// from the spread: zero spread scores 1.0 and resonance fades to zero
// as the standard deviation reaches one half.
func Field(d Dimensions) (FieldState, error) {
	if err := d.Validate(); err != nil {
		return FieldState{}, err
	}

	scores := d.scores()
	product := 1.0
	sum := 0.0
	for _, s := range scores {
		product *= s
		sum += s
	}
	mean := sum / float64(len(scores))

	var sq float64
	for _, s := range scores {
		diff := s - mean
		sq += diff * diff
	}
	stddev := math.Sqrt(sq / float64(len(scores)))

	return FieldState{
		Dimensions: d,
		Coherence:  round2(math.Pow(product, 1.0/float64(len(scores)))),
		Resonance:  round2(clamp01(1.0 - 2.0*stddev)),
	}, nil
}

// EarnedLight converts completed practices into governance credit.
// Each practice earns a base credit, multiplied by a streak bonus of
// 5% per consecutive day (capped at 2x) and scaled by the current
// coherence score.
func EarnedLight(practices, streakDays int, coherence float64) (float64, error) {
	if practices < 0 {
		return 0, fmt.Errorf("%w: practice count %d must not be negative", models.ErrValidation, practices)
	}
	if streakDays < 0 {
		return 0, fmt.Errorf("%w: streak days %d must not be negative", models.ErrValidation, streakDays)
	}
	if coherence < 0 || coherence > 1 {
		return 0, fmt.Errorf("%w: coherence %v outside 0..1", models.ErrValidation, coherence)
	}

	bonus := 1.0 + streakBonusPerDay*float64(streakDays)
	if bonus > streakBonusCap {
		bonus = streakBonusCap
	}
	return round2(baseLightPerPractice * float64(practices) * bonus * coherence), nil
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
