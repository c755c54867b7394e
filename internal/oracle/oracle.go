// Package oracle collapses a question with several options into a
// single choice. Each collapse method weights the options differently;
// the recorded draw keeps the normalized amplitudes so a decision can
// be revisited later.
package oracle

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/lumenlab/lumenos/internal/models"
)

// Seed carries the method-specific inputs for a draw. Weights feed the
// intention method (one non-negative weight per option, positive sum);
// Resonance feeds the resonance method (current field resonance in 0..1).
type Seed struct {
	Weights   []float64 `json:"weights,omitempty"`
	Resonance float64   `json:"resonance,omitempty"`
}

// Oracle draws decisions. The zero value is not usable; construct with
// New.
type Oracle struct {
	rand  io.Reader
	now   func() time.Time
	newID func() string
}

// New returns an oracle. A nil entropy source falls back to
// crypto/rand, a nil clock to time.Now.
func New(entropy io.Reader, now func() time.Time) *Oracle {
	if entropy == nil {
		entropy = rand.Reader
	}
	if now == nil {
		now = time.Now
	}
	return &Oracle{rand: entropy, now: now, newID: uuid.NewString}
}

// Draw collapses the options into one choice using the given method.
// Observation is fully deterministic: repeating the same question and
// options collapses to the same choice. The other methods sample the
// oracle's entropy source against the method's weight profile.
func (o *Oracle) Draw(question string, options []string, method models.CollapseMethod, seed Seed) (models.OracleDraw, error) {
	if question == "" {
		return models.OracleDraw{}, fmt.Errorf("%w: question must not be empty", models.ErrValidation)
	}
	if len(options) < 2 {
		return models.OracleDraw{}, fmt.Errorf("%w: a draw needs at least two options", models.ErrValidation)
	}
	for i, opt := range options {
		if opt == "" {
			return models.OracleDraw{}, fmt.Errorf("%w: option %d must not be empty", models.ErrValidation, i)
		}
	}

	var (
		weights []float64
		chosen  int
		err     error
	)
	switch method {
	case models.CollapseObservation:
		weights = uniformWeights(len(options))
		chosen = observe(question, options)
	case models.CollapseIntention:
		weights, err = intentionWeights(seed.Weights, len(options))
		if err != nil {
			return models.OracleDraw{}, err
		}
		chosen, err = o.sample(weights)
	case models.CollapseRandom:
		weights = uniformWeights(len(options))
		chosen, err = o.sample(weights)
	case models.CollapseResonance:
		weights, err = resonanceWeights(seed.Resonance, len(options))
		if err != nil {
			return models.OracleDraw{}, err
		}
		chosen, err = o.sample(weights)
	default:
		return models.OracleDraw{}, fmt.Errorf("%w: unknown collapse method %q", models.ErrValidation, method)
	}
	if err != nil {
		return models.OracleDraw{}, err
	}

	draw := models.OracleDraw{
		ID:         o.newID(),
		Question:   question,
		Options:    append([]string(nil), options...),
		Chosen:     options[chosen],
		Method:     method,
		Amplitudes: normalize(weights),
		DrawnAt:    o.now(),
	}
	return draw, nil
}

// observe hashes the question and options with FNV-1a and picks the
// index from the digest.
func observe(question string, options []string) int {
	h := fnv.New64a()
	h.Write([]byte(question))
	h.Write([]byte{0})
	for _, opt := range options {
		h.Write([]byte(opt))
		h.Write([]byte{0})
	}
	return int(h.Sum64() % uint64(len(options)))
}

// intentionWeights validates caller-supplied weights: one per option,
// none negative, positive total.
func intentionWeights(weights []float64, n int) ([]float64, error) {
	if len(weights) != n {
		return nil, fmt.Errorf("%w: got %d weights for %d options", models.ErrValidation, len(weights), n)
	}
	total := 0.0
	for i, w := range weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("%w: weight %d is not a usable value", models.ErrValidation, i)
		}
		total += w
	}
	if total <= 0 {
		return nil, fmt.Errorf("%w: weights must not all be zero", models.ErrValidation)
	}
	return append([]float64(nil), weights...), nil
}

// resonanceWeights favors the middle options in proportion to the
// caller's resonance. At zero resonance the profile is uniform.
func resonanceWeights(resonance float64, n int) ([]float64, error) {
	if resonance < 0 || resonance > 1 {
		return nil, fmt.Errorf("%w: resonance %v outside 0..1", models.ErrValidation, resonance)
	}
	center := float64(n-1) / 2
	scale := center
	if scale == 0 {
		scale = 1
	}
	weights := make([]float64, n)
	for i := range weights {
		dist := math.Abs(float64(i)-center) / scale
		weights[i] = 1 + resonance*(1-dist)
	}
	return weights, nil
}

// sample draws an index proportionally to the weights using the
// oracle's entropy source.
func (o *Oracle) sample(weights []float64) (int, error) {
	var buf [8]byte
	if _, err := io.ReadFull(o.rand, buf[:]); err != nil {
		return 0, fmt.Errorf("read entropy: %w", err)
	}
	u := binary.BigEndian.Uint64(buf[:])
	f := float64(u>>11) / (1 << 53)

	total := 0.0
	for _, w := range weights {
		total += w
	}
	target := f * total
	acc := 0.0
	for i, w := range weights {
		acc += w
		if target < acc {
			return i, nil
		}
	}
	return len(weights) - 1, nil
}

func uniformWeights(n int) []float64 {
	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1
	}
	return weights
}

func normalize(weights []float64) []float64 {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	out := make([]float64, len(weights))
	for i, w := range weights {
		out[i] = w / total
	}
	return out
}
