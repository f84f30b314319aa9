package features

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRate = 16000

func sineWave(freq float64, n int, amplitude float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(testRate))
	}
	return out
}

// pitchGlide sweeps the fundamental linearly from lo to hi Hz over n samples.
func pitchGlide(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	var phase float64
	for i := range out {
		f := lo + (hi-lo)*float64(i)/float64(n)
		phase += 2 * math.Pi * f / testRate
		out[i] = 0.8 * math.Sin(phase)
	}
	return out
}

func uniformNoise(n int) []float64 {
	rng := rand.New(rand.NewPCG(3, 11))
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.8 * (2*rng.Float64() - 1)
	}
	return out
}

func value(t *testing.T, fs *FeatureSet, name string) float64 {
	t.Helper()
	v, ok := fs.Value(name)
	require.True(t, ok, "feature %s missing", name)
	require.False(t, fs.Neutral(name), "feature %s unexpectedly neutral", name)
	return v
}

func TestExtractSineTone(t *testing.T) {
	t.Parallel()

	e := New(testRate, nil)
	fs := e.Extract(sineWave(200, 2*testRate, 0.8))

	assert.Empty(t, fs.NeutralFeatures())

	assert.InDelta(t, 200, value(t, fs, PitchMeanHz), 5)
	assert.InDelta(t, 1.0, value(t, fs, VoicedRatio), 0.01)
	assert.Less(t, value(t, fs, PitchVariance), 0.01)
	assert.Less(t, value(t, fs, Jitter), 0.01)

	// Two crossings per cycle at 200 Hz.
	assert.InDelta(t, 0.025, value(t, fs, ZeroCrossingRate), 0.005)

	// A lone tone is maximally tonal and spectrally static.
	assert.Less(t, value(t, fs, SpectralFlatness), 0.05)
	assert.Greater(t, value(t, fs, FormantStability), 0.9)
	assert.Greater(t, value(t, fs, EnvelopeSmoothness), 0.9)
	assert.InDelta(t, 200, value(t, fs, SpectralRolloff), 40)
	assert.Greater(t, value(t, fs, MFCCMean), 0.0)
}

func TestExtractPitchGlide(t *testing.T) {
	t.Parallel()

	e := New(testRate, nil)
	fs := e.Extract(pitchGlide(100, 250, 2*testRate))

	// A wide glide has large overall pitch variance but small frame-to-frame
	// jumps, which is exactly what separates variance from jitter.
	assert.Greater(t, value(t, fs, PitchVariance), 0.15)
	assert.Less(t, value(t, fs, Jitter), 0.03)
	assert.InDelta(t, 1.0, value(t, fs, VoicedRatio), 0.05)

	mean := value(t, fs, PitchMeanHz)
	assert.Greater(t, mean, 130.0)
	assert.Less(t, mean, 220.0)
}

func TestExtractUnvoicedNoise(t *testing.T) {
	t.Parallel()

	e := New(testRate, nil)
	fs := e.Extract(uniformNoise(testRate))

	assert.InDelta(t, 0.0, value(t, fs, VoicedRatio), 0.05)

	for _, name := range []string{PitchMeanHz, PitchVariance, Jitter} {
		assert.True(t, fs.Neutral(name), "feature %s should be neutral", name)
		reason, ok := fs.NeutralReason(name)
		require.True(t, ok)
		assert.Equal(t, "fewer than two voiced frames", reason)
	}

	assert.Greater(t, value(t, fs, SpectralFlatness), 0.3)
	assert.Less(t, value(t, fs, SpectralFlatness), 0.9)
	assert.InDelta(t, 0.5, value(t, fs, ZeroCrossingRate), 0.05)
	assert.Less(t, value(t, fs, EnvelopeSmoothness), 0.5)

	// 85% of a flat spectrum sits below 85% of Nyquist.
	assert.InDelta(t, 6800, value(t, fs, SpectralRolloff), 400)
}

func TestExtractEmptyWaveform(t *testing.T) {
	t.Parallel()

	e := New(testRate, nil)
	fs := e.Extract(nil)

	assert.Equal(t, Names(), fs.NeutralFeatures())
	for _, name := range Names() {
		reason, ok := fs.NeutralReason(name)
		require.True(t, ok)
		assert.Equal(t, "empty waveform", reason)

		v, ok := fs.Value(name)
		require.True(t, ok)
		assert.Equal(t, 0.0, v)
	}
}

func TestExtractSilentWaveform(t *testing.T) {
	t.Parallel()

	e := New(testRate, nil)
	fs := e.Extract(make([]float64, testRate))

	assert.Equal(t, Names(), fs.NeutralFeatures())
	reason, ok := fs.NeutralReason(SpectralFlatness)
	require.True(t, ok)
	assert.Equal(t, "silent waveform", reason)
}

func TestExtractShortWaveform(t *testing.T) {
	t.Parallel()

	// 100 samples is 6.25 ms, shorter than any analysis frame but long
	// enough for the envelope measure.
	e := New(testRate, nil)
	fs := e.Extract(sineWave(200, 100, 0.5))

	reason, ok := fs.NeutralReason(PitchMeanHz)
	require.True(t, ok)
	assert.Equal(t, "waveform shorter than one pitch frame", reason)

	reason, ok = fs.NeutralReason(SpectralFlatness)
	require.True(t, ok)
	assert.Equal(t, "waveform shorter than one analysis frame", reason)

	assert.True(t, fs.Neutral(ZeroCrossingRate))
	assert.False(t, fs.Neutral(EnvelopeSmoothness))
}

func TestExtractReusedExtractorIsDeterministic(t *testing.T) {
	t.Parallel()

	e := New(testRate, nil)
	samples := pitchGlide(120, 200, testRate)

	first := e.Extract(samples).Values()
	second := e.Extract(samples).Values()
	assert.Equal(t, first, second)
}
