package aura

import "math"

// vtrCeiling caps the value-transfer ratio, including the degenerate
// nothing-captured case which scores the ceiling exactly.
const vtrCeiling = 10.0

// TESInput describes an action for trust-entropy scoring: how many of
// its elements introduce friction (new asks, unclear terms, surprises)
// out of the total elements it consists of.
type TESInput struct {
	FrictionElements int `json:"friction_elements"`
	TotalElements    int `json:"total_elements"`
}

// VTRInput describes the value exchange of an action: what it offers
// the other side versus what it captures for the actor.
type VTRInput struct {
	ValueOffered  float64 `json:"value_offered"`
	ValueCaptured float64 `json:"value_captured"`
}

// PAIInput describes purpose alignment: how many of the action's
// stated intents still serve the original purpose.
type PAIInput struct {
	AlignedIntents int `json:"aligned_intents"`
	TotalIntents   int `json:"total_intents"`
}

// CalculateTES scores trust entropy in 0..1. An action with no elements
// at all carries no friction and scores a full 1.0.
func CalculateTES(in TESInput) float64 {
	if in.TotalElements <= 0 {
		return 1.0
	}
	friction := in.FrictionElements
	if friction < 0 {
		friction = 0
	}
	if friction > in.TotalElements {
		friction = in.TotalElements
	}
	return round2(1.0 - float64(friction)/float64(in.TotalElements))
}

// CalculateVTR scores the value-transfer ratio in 0..10. When nothing
// is captured the ratio is taken as the ceiling rather than dividing
// by zero.
func CalculateVTR(in VTRInput) float64 {
	offered := in.ValueOffered
	if offered < 0 {
		offered = 0
	}
	if in.ValueCaptured <= 0 {
		return vtrCeiling
	}
	ratio := offered / in.ValueCaptured
	if ratio > vtrCeiling {
		ratio = vtrCeiling
	}
	return round2(ratio)
}

// CalculatePAI scores purpose alignment in 0..1. An action with no
// stated intents is vacuously aligned and scores 1.0.
func CalculatePAI(in PAIInput) float64 {
	if in.TotalIntents <= 0 {
		return 1.0
	}
	aligned := in.AlignedIntents
	if aligned < 0 {
		aligned = 0
	}
	if aligned > in.TotalIntents {
		aligned = in.TotalIntents
	}
	return round2(float64(aligned) / float64(in.TotalIntents))
}

// round2 rounds to two decimal places, applied after every derived
// metric computation.
func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
