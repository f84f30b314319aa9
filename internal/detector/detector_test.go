package detector

import (
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sleeplessdev/voicedetect-go/internal/audio"
	"github.com/sleeplessdev/voicedetect-go/internal/classifier"
	"github.com/sleeplessdev/voicedetect-go/internal/conf"
	"github.com/sleeplessdev/voicedetect-go/internal/features"
)

const testRate = 16000

func testSettings() *conf.Settings {
	s := &conf.Settings{}
	s.Audio.SampleRate = testRate
	s.Audio.MinDuration = 0.5
	s.Audio.MaxDuration = 60
	s.Audio.TrimSilence = true
	s.Audio.DefaultTrimDB = 30
	s.Detector.Boundary = 0.5
	s.Detector.DefaultLanguage = "en"
	s.Languages = conf.DefaultLanguages()
	return s
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := New(testSettings())
	require.NoError(t, err)
	return engine
}

// wavBytes encodes samples into an in-memory 16-bit WAV clip. The encoder
// needs a WriteSeeker to patch up chunk sizes, so it goes through a temp
// file. For stereo the mono signal is duplicated into both channels.
func wavBytes(t *testing.T, samples []float64, channels int) []byte {
	t.Helper()

	path := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, testRate, 16, channels, 1)
	data := make([]int, 0, len(samples)*channels)
	for _, s := range samples {
		v := int(math.Round(s * 32767))
		for range channels {
			data = append(data, v)
		}
	}
	buf := &goaudio.IntBuffer{
		Data:   data,
		Format: &goaudio.Format{SampleRate: testRate, NumChannels: channels},
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	return out
}

// harmonicComb synthesizes the synthetic-voice caricature: a perfectly
// stationary series of harmonics over a constant fundamental. Pitch never
// moves, the spectrum never changes.
func harmonicComb(f0, seconds float64) []float64 {
	n := int(seconds * testRate)
	out := make([]float64, n)
	var peak float64
	for i := range out {
		t := float64(i) / testRate
		var v float64
		for k := 1; k <= 6; k++ {
			v += math.Sin(2*math.Pi*float64(k)*f0*t) / float64(k)
		}
		out[i] = v
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	scale := 0.85 / peak
	for i := range out {
		out[i] *= scale
	}
	return out
}

// jitteredGlide synthesizes a human-like utterance: the fundamental glides
// from 100 to 250 Hz with a few percent of cycle-to-cycle jitter, syllables
// swell and fade at 3.5 Hz and breathy noise fills the dips between them.
func jitteredGlide(seconds float64) []float64 {
	rng := rand.New(rand.NewPCG(42, 0))
	n := int(seconds * testRate)
	out := make([]float64, n)

	segment := testRate * 40 / 1000
	jitter := 1.0
	sign := 1.0

	var phase, peak float64
	for i := range out {
		if i%segment == 0 {
			sign = -sign
			jitter = 1 + sign*(0.02+0.04*rng.Float64())
		}
		t := float64(i) / testRate
		f0 := (100 + 150*t/seconds) * jitter
		phase += 2 * math.Pi * f0 / testRate

		var v float64
		for k := 1; k <= 5; k++ {
			v += math.Sin(float64(k)*phase) / float64(k)
		}

		syllable := 0.55 + 0.45*math.Sin(2*math.Pi*3.5*t)
		noise := 0.3 * (1 - syllable) * (2*rng.Float64() - 1)
		out[i] = syllable*v + noise
		if a := math.Abs(out[i]); a > peak {
			peak = a
		}
	}

	scale := 0.85 / peak
	for i := range out {
		out[i] *= scale
	}
	return out
}

// whiteNoise synthesizes an unvoiced, noise-only clip.
func whiteNoise(seconds float64) []float64 {
	rng := rand.New(rand.NewPCG(7, 1))
	out := make([]float64, int(seconds*testRate))
	for i := range out {
		out[i] = 0.8 * (2*rng.Float64() - 1)
	}
	return out
}

// clickTrain synthesizes isolated impulses with silence between them, a
// degenerate signal that exercises the unvoiced and neutral feature paths.
func clickTrain(seconds float64) []float64 {
	n := int(seconds * testRate)
	out := make([]float64, n)
	step := testRate / 20
	for i := step / 2; i < n; i += step {
		out[i] = 0.9
		if (i/step)%2 == 1 {
			out[i] = -0.9
		}
	}
	return out
}

func TestDetectHarmonicComb(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t)
	data := wavBytes(t, harmonicComb(150, 2.0), 1)

	result, err := engine.Detect(data, audio.FormatWAV, "en")
	require.NoError(t, err)

	assert.Equal(t, classifier.LabelAI, result.Label)
	assert.Greater(t, result.Confidence, 0.5)
	assert.LessOrEqual(t, result.Score, 1.0)
	assert.True(t, strings.HasPrefix(result.Explanation, "AI-generated indicators detected: "))
	assert.Contains(t, result.Indications, "unnaturally consistent pitch")
	assert.Equal(t, "en", result.Language)
	assert.InDelta(t, 2.0, result.Duration, 0.05)
}

func TestDetectJitteredGlide(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t)
	data := wavBytes(t, jitteredGlide(2.5), 1)

	result, err := engine.Detect(data, audio.FormatWAV, "en")
	require.NoError(t, err)

	assert.Equal(t, classifier.LabelHuman, result.Label)
	assert.Greater(t, result.Confidence, 0.5)
	assert.True(t, strings.HasPrefix(result.Explanation, "Human voice characteristics: "))
	assert.Contains(t, result.Explanation, "natural pitch variation")
}

func TestDetectDeterminism(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t)
	data := wavBytes(t, harmonicComb(180, 1.5), 1)

	first, err := engine.Detect(data, audio.FormatWAV, "en")
	require.NoError(t, err)
	second, err := engine.Detect(data, audio.FormatWAV, "en")
	require.NoError(t, err)

	assert.Equal(t, first.Label, second.Label)
	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.Confidence, second.Confidence)
	assert.Equal(t, first.Explanation, second.Explanation)
	assert.Equal(t, first.Indications, second.Indications)
	assert.Equal(t, first.Features.Values(), second.Features.Values())
}

func TestDetectConfidenceBounds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		samples []float64
	}{
		{"harmonic comb", harmonicComb(150, 2.0)},
		{"jittered glide", jitteredGlide(2.5)},
		{"white noise", whiteNoise(1.0)},
		{"click train", clickTrain(1.5)},
		{"low sine", harmonicComb(100, 1.0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			engine := newTestEngine(t)
			result, err := engine.Detect(wavBytes(t, tt.samples, 1), audio.FormatWAV, "en")
			require.NoError(t, err)

			assert.GreaterOrEqual(t, result.Confidence, 0.0)
			assert.LessOrEqual(t, result.Confidence, 1.0)
			assert.GreaterOrEqual(t, result.Score, 0.0)
			assert.LessOrEqual(t, result.Score, 1.0)
			assert.Contains(t, []classifier.Label{classifier.LabelAI, classifier.LabelHuman}, result.Label)
			assert.NotEmpty(t, result.Explanation)
			assert.Greater(t, result.Duration, 0.0)
			assert.GreaterOrEqual(t, result.ProcessingMs, int64(0))
			require.NotNil(t, result.Features)
		})
	}
}

func TestDetectSilenceTrimsToNothing(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t)
	data := wavBytes(t, make([]float64, testRate), 1)

	_, err := engine.Detect(data, audio.FormatWAV, "en")
	require.Error(t, err)
	assert.ErrorIs(t, err, audio.ErrDuration)

	var de *audio.DurationError
	require.ErrorAs(t, err, &de)
	assert.True(t, de.TooShort())
}

func TestDetectGarbageBytes(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(7, 9))
	garbage := make([]byte, 4096)
	for i := range garbage {
		garbage[i] = byte(rng.IntN(256))
	}
	garbage[0] = 'X'

	engine := newTestEngine(t)
	_, err := engine.Detect(garbage, audio.FormatWAV, "en")
	require.Error(t, err)
	assert.ErrorIs(t, err, audio.ErrDecode)
}

func TestDetectUnsupportedFormat(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t)
	data := wavBytes(t, harmonicComb(150, 1.0), 1)

	for _, format := range []audio.Format{audio.Format("ogg"), audio.FormatUnknown} {
		_, err := engine.Detect(data, format, "en")
		require.Error(t, err)
		assert.ErrorIs(t, err, audio.ErrUnsupportedFormat)
	}
}

func TestDetectMonoStereoParity(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t)
	samples := jitteredGlide(2.0)

	mono, err := engine.Detect(wavBytes(t, samples, 1), audio.FormatWAV, "en")
	require.NoError(t, err)
	stereo, err := engine.Detect(wavBytes(t, samples, 2), audio.FormatWAV, "en")
	require.NoError(t, err)

	assert.Equal(t, mono.Label, stereo.Label)
	assert.InDelta(t, mono.Confidence, stereo.Confidence, 0.02)
}

func TestDetectLanguageResolution(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty uses default", "", "en"},
		{"code passes through", "ta", "ta"},
		{"full name maps to code", "Tamil", "ta"},
		{"unsupported falls back", "xx", "en"},
	}

	engine := newTestEngine(t)
	data := wavBytes(t, harmonicComb(150, 1.0), 1)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result, err := engine.Detect(data, audio.FormatWAV, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result.Language)
		})
	}
}

func TestExtractFeatures(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t)
	data := wavBytes(t, harmonicComb(150, 2.0), 1)

	fs, duration, err := engine.ExtractFeatures(data, audio.FormatWAV, "")
	require.NoError(t, err)
	assert.InDelta(t, 2.0, duration, 0.05)

	for _, name := range features.Names() {
		_, ok := fs.Value(name)
		assert.True(t, ok, "feature %s missing", name)
	}

	pitch, _ := fs.Value(features.PitchMeanHz)
	assert.InDelta(t, 150, pitch, 5)
	voiced, _ := fs.Value(features.VoicedRatio)
	assert.InDelta(t, 1.0, voiced, 0.05)
}

func BenchmarkDetect(b *testing.B) {
	engine, err := New(testSettings())
	if err != nil {
		b.Fatal(err)
	}

	samples := harmonicComb(150, 2.0)
	path := filepath.Join(b.TempDir(), "bench.wav")
	f, err := os.Create(path)
	if err != nil {
		b.Fatal(err)
	}
	enc := wav.NewEncoder(f, testRate, 16, 1, 1)
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(math.Round(s * 32767))
	}
	buf := &goaudio.IntBuffer{Data: data, Format: &goaudio.Format{SampleRate: testRate, NumChannels: 1}}
	if err := enc.Write(buf); err != nil {
		b.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		b.Fatal(err)
	}
	if err := f.Close(); err != nil {
		b.Fatal(err)
	}
	clip, err := os.ReadFile(path)
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	for b.Loop() {
		if _, err := engine.Detect(clip, audio.FormatWAV, "en"); err != nil {
			b.Fatal(err)
		}
	}
}
