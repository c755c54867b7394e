package aura

import (
	"fmt"

	"github.com/lumenlab/lumenos/internal/models"
)

// Preset names a fixed threshold profile. Preset values are constants
// and are never mutated at runtime.
type Preset string

const (
	PresetConservative Preset = "conservative"
	PresetModerate     Preset = "moderate"
	PresetPermissive   Preset = "permissive"
	PresetCreative     Preset = "creative"
	PresetMedical      Preset = "medical"
)

// AllPresets returns every preset name in canonical order.
func AllPresets() []Preset {
	return []Preset{
		PresetConservative,
		PresetModerate,
		PresetPermissive,
		PresetCreative,
		PresetMedical,
	}
}

// presetThresholds holds the fixed threshold triple per preset.
// Moderate is the reference profile; the others bracket it.
var presetThresholds = map[Preset]models.Thresholds{
	PresetConservative: {TES: 0.80, VTR: 2.0, PAI: 0.90},
	PresetModerate:     {TES: 0.70, VTR: 1.5, PAI: 0.80},
	PresetPermissive:   {TES: 0.55, VTR: 1.1, PAI: 0.65},
	PresetCreative:     {TES: 0.60, VTR: 1.2, PAI: 0.85},
	PresetMedical:      {TES: 0.90, VTR: 2.5, PAI: 0.95},
}

// severity floors: a failing metric below its floor is graded high
// instead of medium, independent of the preset in use.
const (
	floorTES = 0.5
	floorVTR = 1.0
	floorPAI = 0.6
)

// Thresholds resolves a preset name to its threshold triple.
func (p Preset) Thresholds() (models.Thresholds, error) {
	th, ok := presetThresholds[p]
	if !ok {
		return models.Thresholds{}, fmt.Errorf("%w: unknown preset %q", models.ErrValidation, p)
	}
	return th, nil
}

// floorFor returns the high-severity floor for a metric kind.
func floorFor(k models.MetricKind) float64 {
	switch k {
	case models.MetricTES:
		return floorTES
	case models.MetricVTR:
		return floorVTR
	case models.MetricPAI:
		return floorPAI
	}
	return 0
}
