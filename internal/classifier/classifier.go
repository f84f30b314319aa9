// Package classifier scores acoustic feature sets against a weighted rule
// table and renders the verdict with a human readable explanation. It holds
// no state of its own; the same immutable Config serves every call.
package classifier

import (
	"strings"
)

// Label is the classification verdict.
type Label string

const (
	LabelAI    Label = "AI_GENERATED"
	LabelHuman Label = "HUMAN"
)

// Explanation prefixes and the fallback used when no rule contributes a
// counter indication for a human verdict.
const (
	aiExplanationPrefix    = "AI-generated indicators detected: "
	humanExplanationPrefix = "Human voice characteristics: "
	humanExplanationNone   = "natural speech patterns detected"
)

// Result is the verdict for a single feature set. A fresh value is built
// per call and never retained.
type Result struct {
	Label       Label
	Confidence  float64  // confidence in the reported label, [0, 1]
	Score       float64  // normalized AI score, [0, 1]
	Explanation string   // human readable reasoning
	Indications []string // indications of the rules that fired, in rule order
}

// FeatureSource is the read surface Classify needs from a feature set.
// *features.FeatureSet satisfies it.
type FeatureSource interface {
	Value(name string) (float64, bool)
	Neutral(name string) bool
}

// Classify scores the feature set against the rule table. Rules test only
// measured values: a feature that is absent or carries a neutral sentinel
// never fires, so unvoiced or degenerate audio leans toward a human
// verdict instead of tripping low-threshold rules on substituted zeros.
func Classify(fs FeatureSource, cfg *Config) Result {
	var raw float64
	var indications []string
	var counters []string

	for i := range cfg.rules {
		rule := &cfg.rules[i]

		value, ok := fs.Value(rule.Feature)
		if !ok || fs.Neutral(rule.Feature) {
			continue
		}

		if rule.fires(value) {
			raw += rule.Weight
			indications = append(indications, rule.Indication)
		} else if rule.CounterIndication != "" {
			counters = append(counters, rule.CounterIndication)
		}
	}

	score := 0.0
	if cfg.maxScore > 0 {
		score = raw / cfg.maxScore
	}

	// Strict comparison: a score exactly on the boundary stays human.
	if score > cfg.boundary {
		return Result{
			Label:       LabelAI,
			Confidence:  clampUnit(score),
			Score:       score,
			Explanation: aiExplanationPrefix + strings.Join(indications, ", "),
			Indications: indications,
		}
	}

	explanation := humanExplanationPrefix + humanExplanationNone
	if len(counters) > 0 {
		explanation = humanExplanationPrefix + strings.Join(counters, ", ")
	}
	return Result{
		Label:       LabelHuman,
		Confidence:  clampUnit(1 - score),
		Score:       score,
		Explanation: explanation,
		Indications: indications,
	}
}

func clampUnit(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
