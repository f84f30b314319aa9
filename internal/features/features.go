// Package features computes the acoustic feature set the classifier scores.
// Extraction never fails on a well-formed waveform: features that cannot be
// measured (unvoiced audio, too few frames) carry a neutral sentinel and a
// recorded reason instead of propagating non-finite values.
package features

// Feature names. Rule sets reference features by these strings.
const (
	PitchVariance      = "pitch_variance"
	Jitter             = "jitter"
	SpectralFlatness   = "spectral_flatness"
	FormantStability   = "formant_stability"
	ZeroCrossingRate   = "zero_crossing_rate"
	MFCCMean           = "mfcc_mean"
	MFCCStd            = "mfcc_std"
	EnvelopeSmoothness = "envelope_smoothness"
	SpectralRolloff    = "spectral_rolloff"
	PitchMeanHz        = "pitch_mean_hz"
	VoicedRatio        = "voiced_ratio"
)

// neutralValue is the sentinel stored for features that could not be
// measured. The classifier skips neutral features entirely, so the value
// itself never reaches scoring.
const neutralValue = 0.0

var canonicalNames = []string{
	PitchVariance,
	Jitter,
	SpectralFlatness,
	FormantStability,
	ZeroCrossingRate,
	MFCCMean,
	MFCCStd,
	EnvelopeSmoothness,
	SpectralRolloff,
	PitchMeanHz,
	VoicedRatio,
}

// Names returns all feature names in canonical order.
func Names() []string {
	out := make([]string, len(canonicalNames))
	copy(out, canonicalNames)
	return out
}

// Known reports whether name is a feature this extractor produces.
func Known(name string) bool {
	for _, n := range canonicalNames {
		if n == name {
			return true
		}
	}
	return false
}

// FeatureSet is an immutable mapping from feature name to a finite value.
// Features that could not be measured hold the neutral sentinel and are
// marked, with the reason preserved for debugging.
type FeatureSet struct {
	values   map[string]float64
	neutrals map[string]string
}

func newFeatureSet() *FeatureSet {
	return &FeatureSet{
		values:   make(map[string]float64, len(canonicalNames)),
		neutrals: make(map[string]string),
	}
}

// NewSet builds a FeatureSet from measured values and neutral markers. Both
// maps are copied; neutral-marked features without a value entry receive the
// sentinel.
func NewSet(values map[string]float64, neutrals map[string]string) *FeatureSet {
	fs := newFeatureSet()
	for k, v := range values {
		fs.values[k] = v
	}
	for name, reason := range neutrals {
		fs.neutrals[name] = reason
		if _, ok := fs.values[name]; !ok {
			fs.values[name] = neutralValue
		}
	}
	return fs
}

// Value returns the named feature and whether it exists in the set. Neutral
// features report their sentinel value here; check Neutral to tell a
// measured zero from a substituted one.
func (fs *FeatureSet) Value(name string) (float64, bool) {
	v, ok := fs.values[name]
	return v, ok
}

// Neutral reports whether the named feature holds a substituted sentinel
// rather than a measured value.
func (fs *FeatureSet) Neutral(name string) bool {
	_, ok := fs.neutrals[name]
	return ok
}

// NeutralReason returns why the named feature was substituted, if it was.
func (fs *FeatureSet) NeutralReason(name string) (string, bool) {
	reason, ok := fs.neutrals[name]
	return reason, ok
}

// NeutralFeatures returns the names of all substituted features in canonical
// order.
func (fs *FeatureSet) NeutralFeatures() []string {
	var out []string
	for _, name := range canonicalNames {
		if _, ok := fs.neutrals[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// Values returns a copy of the full feature mapping, sentinels included.
func (fs *FeatureSet) Values() map[string]float64 {
	out := make(map[string]float64, len(fs.values))
	for k, v := range fs.values {
		out[k] = v
	}
	return out
}
