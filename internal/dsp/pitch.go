package dsp

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Voicing gates. Frames quieter than the energy floor or with a weak
// autocorrelation peak are reported as unvoiced.
const (
	defaultVoicingThreshold = 0.45
	defaultEnergyFloorDB    = -40.0
)

// PitchTracker estimates the fundamental frequency contour of speech with
// short-time autocorrelation. Frames are 40 ms with a 10 ms hop, wide enough
// to hold two periods of the lowest trackable pitch. A tracker reuses its
// FFT plan and buffers, so it must not be shared between goroutines.
type PitchTracker struct {
	sampleRate int
	frameLen   int
	hop        int
	minLag     int
	maxLag     int

	voicingThreshold float64
	energyFloorDB    float64

	fftSize int
	fft     *fourier.FFT
	buf     []float64
	coeffs  []complex128
	ac      []float64
}

// NewPitchTracker creates a tracker for the 50-500 Hz pitch range typical of
// human speech.
func NewPitchTracker(sampleRate int) *PitchTracker {
	frameLen := sampleRate * 40 / 1000
	hop := sampleRate * 10 / 1000
	minLag := sampleRate / 500
	maxLag := sampleRate / 50
	if maxLag >= frameLen {
		maxLag = frameLen - 1
	}
	// Zero padding to at least twice the frame makes the circular
	// autocorrelation linear for all candidate lags.
	fftSize := nextPow2(2 * frameLen)

	return &PitchTracker{
		sampleRate:       sampleRate,
		frameLen:         frameLen,
		hop:              hop,
		minLag:           minLag,
		maxLag:           maxLag,
		voicingThreshold: defaultVoicingThreshold,
		energyFloorDB:    defaultEnergyFloorDB,
		fftSize:          fftSize,
		fft:              fourier.NewFFT(fftSize),
		buf:              make([]float64, fftSize),
		coeffs:           make([]complex128, fftSize/2+1),
		ac:               make([]float64, fftSize),
	}
}

// Track returns one F0 estimate in Hz per frame. Unvoiced frames are 0.
func (p *PitchTracker) Track(samples []float64) []float64 {
	numFrames := NumFrames(len(samples), p.frameLen, p.hop)
	f0 := make([]float64, numFrames)
	for i := range numFrames {
		start := i * p.hop
		f0[i] = p.trackFrame(samples[start : start+p.frameLen])
	}
	return f0
}

func (p *PitchTracker) trackFrame(frame []float64) float64 {
	// Remove DC so a constant offset does not read as periodicity.
	var mean float64
	for _, s := range frame {
		mean += s
	}
	mean /= float64(len(frame))

	var energy float64
	for j, s := range frame {
		v := s - mean
		p.buf[j] = v
		energy += v * v
	}
	for j := len(frame); j < p.fftSize; j++ {
		p.buf[j] = 0
	}

	rms := math.Sqrt(energy / float64(len(frame)))
	if rms == 0 || 20*math.Log10(rms) < p.energyFloorDB {
		return 0
	}

	// Autocorrelation via the Wiener-Khinchin theorem. The transform pair is
	// unnormalized but the scale cancels in the peak-to-r0 ratio.
	p.fft.Coefficients(p.coeffs, p.buf)
	for j, c := range p.coeffs {
		re, im := real(c), imag(c)
		p.coeffs[j] = complex(re*re+im*im, 0)
	}
	p.fft.Sequence(p.ac, p.coeffs)

	r0 := p.ac[0]
	if r0 <= 0 {
		return 0
	}

	// Strongest local maximum in the candidate lag range.
	bestLag, bestVal := 0, 0.0
	for lag := p.minLag; lag <= p.maxLag; lag++ {
		v := p.ac[lag]
		if v > bestVal && p.ac[lag-1] <= v && v >= p.ac[lag+1] {
			bestVal = v
			bestLag = lag
		}
	}
	if bestLag == 0 || bestVal/r0 < p.voicingThreshold {
		return 0
	}

	// Parabolic interpolation refines the peak to sub-sample lag precision.
	prev, cur, next := p.ac[bestLag-1], p.ac[bestLag], p.ac[bestLag+1]
	lag := float64(bestLag)
	if denom := prev - 2*cur + next; denom != 0 {
		delta := 0.5 * (prev - next) / denom
		if math.Abs(delta) < 1 {
			lag += delta
		}
	}
	return float64(p.sampleRate) / lag
}
