package aura

import (
	"errors"
	"testing"

	"github.com/lumenlab/lumenos/internal/models"
)

func TestCalculateTES(t *testing.T) {
	tests := []struct {
		name string
		in   TESInput
		want float64
	}{
		{name: "no friction", in: TESInput{FrictionElements: 0, TotalElements: 4}, want: 1.0},
		{name: "half friction", in: TESInput{FrictionElements: 2, TotalElements: 4}, want: 0.5},
		{name: "all friction", in: TESInput{FrictionElements: 4, TotalElements: 4}, want: 0.0},
		{name: "rounded to two places", in: TESInput{FrictionElements: 1, TotalElements: 3}, want: 0.67},
		{name: "no elements scores full trust", in: TESInput{FrictionElements: 0, TotalElements: 0}, want: 1.0},
		{name: "negative friction clamps to zero", in: TESInput{FrictionElements: -2, TotalElements: 4}, want: 1.0},
		{name: "friction above total clamps", in: TESInput{FrictionElements: 9, TotalElements: 4}, want: 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateTES(tt.in); got != tt.want {
				t.Errorf("CalculateTES(%+v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCalculateVTR(t *testing.T) {
	tests := []struct {
		name string
		in   VTRInput
		want float64
	}{
		{name: "balanced exchange", in: VTRInput{ValueOffered: 3, ValueCaptured: 2}, want: 1.5},
		{name: "even exchange", in: VTRInput{ValueOffered: 2, ValueCaptured: 2}, want: 1.0},
		{name: "extractive exchange", in: VTRInput{ValueOffered: 1, ValueCaptured: 4}, want: 0.25},
		{name: "nothing captured scores the ceiling", in: VTRInput{ValueOffered: 3, ValueCaptured: 0}, want: 10.0},
		{name: "nothing offered or captured scores the ceiling", in: VTRInput{ValueOffered: 0, ValueCaptured: 0}, want: 10.0},
		{name: "huge ratio clamps to the ceiling", in: VTRInput{ValueOffered: 100, ValueCaptured: 1}, want: 10.0},
		{name: "rounded to two places", in: VTRInput{ValueOffered: 1, ValueCaptured: 3}, want: 0.33},
		{name: "negative offer clamps to zero", in: VTRInput{ValueOffered: -5, ValueCaptured: 2}, want: 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateVTR(tt.in); got != tt.want {
				t.Errorf("CalculateVTR(%+v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCalculatePAI(t *testing.T) {
	tests := []struct {
		name string
		in   PAIInput
		want float64
	}{
		{name: "fully aligned", in: PAIInput{AlignedIntents: 3, TotalIntents: 3}, want: 1.0},
		{name: "partially aligned", in: PAIInput{AlignedIntents: 3, TotalIntents: 4}, want: 0.75},
		{name: "nothing aligned", in: PAIInput{AlignedIntents: 0, TotalIntents: 5}, want: 0.0},
		{name: "rounded to two places", in: PAIInput{AlignedIntents: 2, TotalIntents: 3}, want: 0.67},
		{name: "no intents is vacuously aligned", in: PAIInput{AlignedIntents: 0, TotalIntents: 0}, want: 1.0},
		{name: "aligned above total clamps", in: PAIInput{AlignedIntents: 7, TotalIntents: 3}, want: 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculatePAI(tt.in); got != tt.want {
				t.Errorf("CalculatePAI(%+v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestPresetThresholds(t *testing.T) {
	th, err := PresetModerate.Thresholds()
	if err != nil {
		t.Fatalf("moderate preset: %v", err)
	}
	if th.TES != 0.70 || th.VTR != 1.5 || th.PAI != 0.80 {
		t.Errorf("moderate thresholds = %+v, want {0.70 1.5 0.80}", th)
	}

	for _, p := range AllPresets() {
		if _, err := p.Thresholds(); err != nil {
			t.Errorf("preset %q: %v", p, err)
		}
	}
}

func TestPresetUnknown(t *testing.T) {
	_, err := Preset("ruthless").Thresholds()
	if err == nil {
		t.Fatal("expected error for unknown preset")
	}
	if !errors.Is(err, models.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}
