package classifier

import (
	"fmt"
	"math"

	"github.com/sleeplessdev/voicedetect-go/internal/conf"
	"github.com/sleeplessdev/voicedetect-go/internal/errors"
	"github.com/sleeplessdev/voicedetect-go/internal/features"
)

// Comparison selects the direction of a rule's threshold test.
type Comparison string

const (
	ComparisonLess    Comparison = "lt"
	ComparisonGreater Comparison = "gt"
)

// Rule is a single threshold test against a named feature. A firing rule
// contributes its weight to the raw score; its indication becomes part of
// the explanation for AI verdicts. Rules may carry a counter indication
// used to explain human verdicts when the rule did not fire.
type Rule struct {
	Feature           string
	Comparison        Comparison
	Threshold         float64
	Weight            float64
	Indication        string
	CounterIndication string
}

// fires reports whether the rule's threshold test passes for value.
func (r *Rule) fires(value float64) bool {
	switch r.Comparison {
	case ComparisonLess:
		return value < r.Threshold
	case ComparisonGreater:
		return value > r.Threshold
	default:
		return false
	}
}

// Config holds the validated rule table, the decision boundary and the
// score normalizer. It is immutable after construction so a single Config
// can serve concurrent classifications without coordination.
type Config struct {
	rules    []Rule
	boundary float64
	maxScore float64
}

// NewConfig validates the rule table and builds an immutable Config. The
// normalizer is the sum of all rule weights, so a table where every rule
// fires always yields a normalized score of exactly 1.
func NewConfig(rules []Rule, boundary float64) (*Config, error) {
	if len(rules) == 0 {
		return nil, errors.Newf("rule table must contain at least one rule").
			Category(errors.CategoryConfiguration).
			Component("classifier").
			Build()
	}
	if boundary < 0 || boundary > 1 {
		return nil, errors.Newf("decision boundary %.3f outside [0, 1]", boundary).
			Category(errors.CategoryConfiguration).
			Component("classifier").
			Build()
	}

	var maxScore float64
	for i := range rules {
		r := &rules[i]
		if !features.Known(r.Feature) {
			return nil, errors.Newf("rule %d references unknown feature %q", i, r.Feature).
				Category(errors.CategoryConfiguration).
				Component("classifier").
				Build()
		}
		if r.Comparison != ComparisonLess && r.Comparison != ComparisonGreater {
			return nil, errors.Newf("rule %d has unknown comparison %q", i, r.Comparison).
				Category(errors.CategoryConfiguration).
				Component("classifier").
				Build()
		}
		if !isFinite(r.Threshold) {
			return nil, errors.Newf("rule %d threshold is not finite", i).
				Category(errors.CategoryConfiguration).
				Component("classifier").
				Build()
		}
		if r.Weight <= 0 || !isFinite(r.Weight) {
			return nil, errors.Newf("rule %d weight %.3f must be a positive finite number", i, r.Weight).
				Category(errors.CategoryConfiguration).
				Component("classifier").
				Build()
		}
		maxScore += r.Weight
	}

	cfg := &Config{
		rules:    make([]Rule, len(rules)),
		boundary: boundary,
		maxScore: maxScore,
	}
	copy(cfg.rules, rules)
	return cfg, nil
}

// DefaultConfig returns the built-in rule table. Thresholds are a hand
// tuned starting point; weights sum to 1.0 so raw and normalized scores
// coincide. Rules with a low and a high threshold on the same feature,
// like spectral flatness, catch both over-synthetic extremes.
func DefaultConfig() *Config {
	cfg, err := NewConfig(defaultRules(), 0.5)
	if err != nil {
		// The built-in table is covered by tests, construction cannot fail.
		panic(fmt.Sprintf("built-in rule table invalid: %v", err))
	}
	return cfg
}

func defaultRules() []Rule {
	return []Rule{
		{
			Feature:           features.PitchVariance,
			Comparison:        ComparisonLess,
			Threshold:         0.15,
			Weight:            0.30,
			Indication:        "unnaturally consistent pitch",
			CounterIndication: "natural pitch variation",
		},
		{
			Feature:    features.SpectralFlatness,
			Comparison: ComparisonGreater,
			Threshold:  0.30,
			Weight:     0.10,
			Indication: "flat spectral characteristics",
		},
		{
			Feature:    features.SpectralFlatness,
			Comparison: ComparisonLess,
			Threshold:  0.05,
			Weight:     0.15,
			Indication: "overly tonal spectrum (low noise floor)",
		},
		{
			Feature:           features.FormantStability,
			Comparison:        ComparisonGreater,
			Threshold:         0.90,
			Weight:            0.20,
			Indication:        "overly stable formants",
			CounterIndication: "natural formant dynamics",
		},
		{
			Feature:           features.Jitter,
			Comparison:        ComparisonLess,
			Threshold:         0.03,
			Weight:            0.15,
			Indication:        "minimal pitch variation (jitter)",
			CounterIndication: "human-like voice quality",
		},
		{
			Feature:    features.EnvelopeSmoothness,
			Comparison: ComparisonGreater,
			Threshold:  0.90,
			Weight:     0.10,
			Indication: "unusually smooth temporal envelope",
		},
	}
}

// FromSettings builds a Config from the detector settings, using the
// built-in rule table when no overrides are configured. Overrides replace
// the whole table rather than patching individual rules.
func FromSettings(settings *conf.Settings) (*Config, error) {
	if len(settings.Detector.Rules) == 0 {
		cfg, err := NewConfig(defaultRules(), settings.Detector.Boundary)
		if err != nil {
			return nil, err
		}
		return cfg, nil
	}

	rules := make([]Rule, 0, len(settings.Detector.Rules))
	for i := range settings.Detector.Rules {
		rc := &settings.Detector.Rules[i]
		rules = append(rules, Rule{
			Feature:           rc.Feature,
			Comparison:        Comparison(rc.Operator),
			Threshold:         rc.Threshold,
			Weight:            rc.Weight,
			Indication:        rc.Indicator,
			CounterIndication: rc.CounterIndicator,
		})
	}
	return NewConfig(rules, settings.Detector.Boundary)
}

// Boundary returns the decision boundary on the normalized score.
func (c *Config) Boundary() float64 { return c.boundary }

// MaxScore returns the normalizer, the sum of all rule weights.
func (c *Config) MaxScore() float64 { return c.maxScore }

// Rules returns a copy of the rule table.
func (c *Config) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
