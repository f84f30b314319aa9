package features

import (
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/sleeplessdev/voicedetect-go/internal/dsp"
)

// Analysis layout. Spectral features share one 25 ms / 10 ms framing; pitch
// runs on the tracker's own 40 ms frames so two periods of a 50 Hz voice fit
// inside one window.
const (
	spectralFrameMs  = 25
	spectralHopMs    = 10
	spectralFFTSize  = 512
	melFilterCount   = 40
	mfccCoefficients = 13
	rolloffFraction  = 0.85
	envelopeCutoffHz = 50.0
	melMaxHz         = 8000.0

	// Waveforms whose peak never rises above this are unmeasurable.
	silenceEpsilon = 1e-6

	eps = 1e-10
)

// contrastBandEdges bound the sub-bands of the formant-stability proxy.
var contrastBandEdges = []float64{200, 400, 800, 1600, 3200, 6400, 8000}

type bandRange struct{ lo, hi int }

// Extractor computes a FeatureSet from a mono waveform. It reuses FFT plans
// and scratch buffers across calls, so an instance must not be shared
// between goroutines; pool instances for concurrent use.
type Extractor struct {
	sampleRate int
	frameLen   int
	hop        int

	stft  *dsp.STFT
	mfcc  *dsp.MFCC
	pitch *dsp.PitchTracker
	bands []bandRange

	zcrFrame []float64
	log      *slog.Logger
}

// New creates an extractor for waveforms at the given sample rate. A nil
// logger falls back to the process default.
func New(sampleRate int, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	frameLen := sampleRate * spectralFrameMs / 1000
	hop := sampleRate * spectralHopMs / 1000

	stft := dsp.NewSTFT(frameLen, hop, spectralFFTSize)
	fftSize := stft.FFTSize()
	fMax := math.Min(melMaxHz, float64(sampleRate)/2)

	binHz := float64(sampleRate) / float64(fftSize)
	nBins := fftSize/2 + 1
	bands := make([]bandRange, 0, len(contrastBandEdges)-1)
	for i := 0; i < len(contrastBandEdges)-1; i++ {
		lo := int(math.Ceil(contrastBandEdges[i] / binHz))
		hi := int(math.Ceil(contrastBandEdges[i+1] / binHz))
		if hi > nBins {
			hi = nBins
		}
		if lo >= hi {
			// Band sits above Nyquist at this sample rate.
			continue
		}
		bands = append(bands, bandRange{lo: lo, hi: hi})
	}

	return &Extractor{
		sampleRate: sampleRate,
		frameLen:   frameLen,
		hop:        hop,
		stft:       stft,
		mfcc:       dsp.NewMFCC(melFilterCount, mfccCoefficients, fftSize, sampleRate, 0, fMax),
		pitch:      dsp.NewPitchTracker(sampleRate),
		bands:      bands,
		zcrFrame:   make([]float64, frameLen),
		log:        logger.With("service", "features"),
	}
}

// Extract computes the full feature set of a mono waveform. It never fails;
// features that cannot be measured are substituted with their neutral
// sentinel and marked on the returned set.
func (e *Extractor) Extract(samples []float64) *FeatureSet {
	fs := newFeatureSet()

	if len(samples) == 0 {
		e.neutralAll(fs, "empty waveform")
		return fs
	}
	var peak float64
	for _, s := range samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	if peak < silenceEpsilon {
		e.neutralAll(fs, "silent waveform")
		return fs
	}

	e.extractPitch(samples, fs)
	e.extractSpectral(samples, fs)
	e.extractZeroCrossing(samples, fs)
	e.extractEnvelope(samples, fs)
	return fs
}

// extractPitch fills the pitch contour features: voiced ratio, mean F0,
// pitch variance (coefficient of variation) and jitter.
func (e *Extractor) extractPitch(samples []float64, fs *FeatureSet) {
	f0 := e.pitch.Track(samples)
	if len(f0) == 0 {
		reason := "waveform shorter than one pitch frame"
		e.neutral(fs, VoicedRatio, reason)
		e.neutral(fs, PitchMeanHz, reason)
		e.neutral(fs, PitchVariance, reason)
		e.neutral(fs, Jitter, reason)
		return
	}

	voiced := make([]float64, 0, len(f0))
	for _, v := range f0 {
		if v > 0 {
			voiced = append(voiced, v)
		}
	}
	e.set(fs, VoicedRatio, float64(len(voiced))/float64(len(f0)))

	if len(voiced) < 2 {
		reason := "fewer than two voiced frames"
		e.neutral(fs, PitchMeanHz, reason)
		e.neutral(fs, PitchVariance, reason)
		e.neutral(fs, Jitter, reason)
		return
	}

	mean := stat.Mean(voiced, nil)
	e.set(fs, PitchMeanHz, mean)
	e.set(fs, PitchVariance, stat.StdDev(voiced, nil)/mean)

	// Jitter over consecutive voiced frame pairs only; a gap in voicing does
	// not count as a pitch jump.
	var jitterSum float64
	pairs := 0
	for i := 1; i < len(f0); i++ {
		if f0[i] > 0 && f0[i-1] > 0 {
			jitterSum += math.Abs(f0[i]-f0[i-1]) / f0[i-1]
			pairs++
		}
	}
	if pairs == 0 {
		e.neutral(fs, Jitter, "no consecutive voiced frames")
		return
	}
	e.set(fs, Jitter, jitterSum/float64(pairs))
}

// extractSpectral fills flatness, rolloff, MFCC statistics and the
// formant-stability proxy from one pass over the magnitude spectrogram.
func (e *Extractor) extractSpectral(samples []float64, fs *FeatureSet) {
	mags := e.stft.Magnitudes(samples)
	if len(mags) == 0 {
		reason := "waveform shorter than one analysis frame"
		e.neutral(fs, SpectralFlatness, reason)
		e.neutral(fs, SpectralRolloff, reason)
		e.neutral(fs, FormantStability, reason)
		e.neutral(fs, MFCCMean, reason)
		e.neutral(fs, MFCCStd, reason)
		return
	}

	fftSize := e.stft.FFTSize()
	var flatSum, rollSum float64
	mfccAbs := make([]float64, 0, len(mags)*mfccCoefficients)
	contrast := make([][]float64, len(e.bands))
	for b := range contrast {
		contrast[b] = make([]float64, 0, len(mags))
	}

	for _, mag := range mags {
		flatSum += dsp.SpectralFlatness(mag)
		rollSum += dsp.SpectralRolloff(mag, rolloffFraction, e.sampleRate, fftSize)
		for _, c := range e.mfcc.Coefficients(mag) {
			mfccAbs = append(mfccAbs, math.Abs(c))
		}
		for b, band := range e.bands {
			contrast[b] = append(contrast[b], bandContrast(mag[band.lo:band.hi]))
		}
	}

	n := float64(len(mags))
	e.set(fs, SpectralFlatness, flatSum/n)
	e.set(fs, SpectralRolloff, rollSum/n)
	e.set(fs, MFCCMean, stat.Mean(mfccAbs, nil))
	e.set(fs, MFCCStd, stat.StdDev(mfccAbs, nil))

	if len(mags) < 2 || len(e.bands) == 0 {
		e.neutral(fs, FormantStability, "fewer than two analysis frames")
		return
	}
	var stability float64
	for _, series := range contrast {
		mean := stat.Mean(series, nil)
		normVar := stat.Variance(series, nil) / (mean*mean + eps)
		if normVar > 1 {
			normVar = 1
		}
		stability += 1 - normVar
	}
	e.set(fs, FormantStability, stability/float64(len(e.bands)))
}

func (e *Extractor) extractZeroCrossing(samples []float64, fs *FeatureSet) {
	numFrames := dsp.NumFrames(len(samples), e.frameLen, e.hop)
	if numFrames == 0 {
		e.neutral(fs, ZeroCrossingRate, "waveform shorter than one analysis frame")
		return
	}
	var sum float64
	for i := range numFrames {
		sum += dsp.ZeroCrossingRate(dsp.Frame(samples, i, e.frameLen, e.hop, e.zcrFrame))
	}
	e.set(fs, ZeroCrossingRate, sum/float64(numFrames))
}

func (e *Extractor) extractEnvelope(samples []float64, fs *FeatureSet) {
	env := dsp.Envelope(samples)
	if len(env) < 2 {
		e.neutral(fs, EnvelopeSmoothness, "waveform too short for envelope analysis")
		return
	}
	e.set(fs, EnvelopeSmoothness, 1-dsp.HighFrequencyFraction(env, e.sampleRate, envelopeCutoffHz))
}

// set records a measured value, falling back to the neutral sentinel when
// the computation produced a non-finite result.
func (e *Extractor) set(fs *FeatureSet, name string, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		e.neutral(fs, name, "non-finite value")
		return
	}
	fs.values[name] = v
}

func (e *Extractor) neutral(fs *FeatureSet, name, reason string) {
	fs.values[name] = neutralValue
	fs.neutrals[name] = reason
	e.log.Debug("substituted neutral feature value", "feature", name, "reason", reason)
}

func (e *Extractor) neutralAll(fs *FeatureSet, reason string) {
	for _, name := range canonicalNames {
		e.neutral(fs, name, reason)
	}
}

// bandContrast measures the spread between the strongest and weakest fifth
// of one sub-band's magnitude bins.
func bandContrast(band []float64) float64 {
	sorted := append([]float64(nil), band...)
	sort.Float64s(sorted)
	q := len(sorted) / 5
	if q < 1 {
		q = 1
	}
	var bottom, top float64
	for _, v := range sorted[:q] {
		bottom += v
	}
	for _, v := range sorted[len(sorted)-q:] {
		top += v
	}
	return math.Log(top/float64(q)+eps) - math.Log(bottom/float64(q)+eps)
}
