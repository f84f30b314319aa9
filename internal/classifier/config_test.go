package classifier

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sleeplessdev/voicedetect-go/internal/conf"
	"github.com/sleeplessdev/voicedetect-go/internal/errors"
	"github.com/sleeplessdev/voicedetect-go/internal/features"
)

func validRule() Rule {
	return Rule{
		Feature:    features.PitchVariance,
		Comparison: ComparisonLess,
		Threshold:  0.15,
		Weight:     0.3,
		Indication: "unnaturally consistent pitch",
	}
}

func TestNewConfigValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mutate   func(*Rule)
		boundary float64
		wantErr  string
	}{
		{
			name:     "valid",
			mutate:   func(*Rule) {},
			boundary: 0.5,
		},
		{
			name:     "unknown feature",
			mutate:   func(r *Rule) { r.Feature = "spectral_entropy" },
			boundary: 0.5,
			wantErr:  "unknown feature",
		},
		{
			name:     "unknown comparison",
			mutate:   func(r *Rule) { r.Comparison = "ge" },
			boundary: 0.5,
			wantErr:  "unknown comparison",
		},
		{
			name:     "zero weight",
			mutate:   func(r *Rule) { r.Weight = 0 },
			boundary: 0.5,
			wantErr:  "positive finite",
		},
		{
			name:     "negative weight",
			mutate:   func(r *Rule) { r.Weight = -0.1 },
			boundary: 0.5,
			wantErr:  "positive finite",
		},
		{
			name:     "nan threshold",
			mutate:   func(r *Rule) { r.Threshold = math.NaN() },
			boundary: 0.5,
			wantErr:  "not finite",
		},
		{
			name:     "boundary above 1",
			mutate:   func(*Rule) {},
			boundary: 1.1,
			wantErr:  "outside [0, 1]",
		},
		{
			name:     "boundary below 0",
			mutate:   func(*Rule) {},
			boundary: -0.1,
			wantErr:  "outside [0, 1]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rule := validRule()
			tt.mutate(&rule)

			cfg, err := NewConfig([]Rule{rule}, tt.boundary)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.NotNil(t, cfg)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
		})
	}
}

func TestNewConfigEmptyRules(t *testing.T) {
	t.Parallel()

	_, err := NewConfig(nil, 0.5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one rule")
}

func TestNewConfigMaxScore(t *testing.T) {
	t.Parallel()

	rules := []Rule{
		{Feature: features.PitchVariance, Comparison: ComparisonLess, Threshold: 0.15, Weight: 0.4, Indication: "a"},
		{Feature: features.Jitter, Comparison: ComparisonLess, Threshold: 0.03, Weight: 0.6, Indication: "b"},
		{Feature: features.VoicedRatio, Comparison: ComparisonGreater, Threshold: 0.99, Weight: 0.5, Indication: "c"},
	}
	cfg, err := NewConfig(rules, 0.5)
	require.NoError(t, err)

	assert.InDelta(t, 1.5, cfg.MaxScore(), 1e-9)
}

func TestFromSettingsDefaults(t *testing.T) {
	t.Parallel()

	s := &conf.Settings{}
	s.Detector.Boundary = 0.6

	cfg, err := FromSettings(s)
	require.NoError(t, err)

	assert.InDelta(t, 0.6, cfg.Boundary(), 1e-9)
	assert.Len(t, cfg.Rules(), 6)
	assert.InDelta(t, 1.0, cfg.MaxScore(), 1e-9)
}

func TestFromSettingsOverrides(t *testing.T) {
	t.Parallel()

	s := &conf.Settings{}
	s.Detector.Boundary = 0.5
	s.Detector.Rules = []conf.RuleConfig{
		{
			Feature:          "voiced_ratio",
			Operator:         "gt",
			Threshold:        0.95,
			Weight:           1.0,
			Indicator:        "fully voiced output",
			CounterIndicator: "natural pauses",
		},
	}

	cfg, err := FromSettings(s)
	require.NoError(t, err)

	rules := cfg.Rules()
	require.Len(t, rules, 1)
	assert.Equal(t, features.VoicedRatio, rules[0].Feature)
	assert.Equal(t, ComparisonGreater, rules[0].Comparison)
	assert.Equal(t, "natural pauses", rules[0].CounterIndication)
}

func TestFromSettingsRejectsInvalidOverride(t *testing.T) {
	t.Parallel()

	s := &conf.Settings{}
	s.Detector.Boundary = 0.5
	s.Detector.Rules = []conf.RuleConfig{
		{Feature: "loudness", Operator: "lt", Threshold: 1, Weight: 1},
	}

	_, err := FromSettings(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown feature")
}
