package dsp

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// STFT computes magnitude spectra of overlapping, Hann-windowed frames.
// It reuses its FFT plan and scratch buffers across calls, so a single
// instance must not be shared between goroutines.
type STFT struct {
	frameLen int
	hop      int
	fftSize  int

	fft    *fourier.FFT
	window []float64
	frame  []float64
	coeffs []complex128
}

// NewSTFT creates a transform with the given analysis frame length and hop,
// zero-padded to fftSize. fftSize must be >= frameLen.
func NewSTFT(frameLen, hop, fftSize int) *STFT {
	if fftSize < frameLen {
		fftSize = nextPow2(frameLen)
	}
	return &STFT{
		frameLen: frameLen,
		hop:      hop,
		fftSize:  fftSize,
		fft:      fourier.NewFFT(fftSize),
		window:   HannWindow(frameLen),
		frame:    make([]float64, fftSize),
		coeffs:   make([]complex128, fftSize/2+1),
	}
}

// Bins returns the number of frequency bins per frame.
func (s *STFT) Bins() int { return s.fftSize/2 + 1 }

// FFTSize returns the transform length, which may exceed the requested size
// when the frame length forced a larger power of two.
func (s *STFT) FFTSize() int { return s.fftSize }

// NumFrames returns the number of frames produced for n samples.
func (s *STFT) NumFrames(n int) int { return NumFrames(n, s.frameLen, s.hop) }

// BinFrequency returns the center frequency in Hz of the given bin.
func (s *STFT) BinFrequency(bin, sampleRate int) float64 {
	return float64(bin) * float64(sampleRate) / float64(s.fftSize)
}

// Magnitudes returns the magnitude spectrogram of the signal, one row per
// frame with Bins() values each.
func (s *STFT) Magnitudes(samples []float64) [][]float64 {
	numFrames := s.NumFrames(len(samples))
	mags := make([][]float64, numFrames)
	for i := range numFrames {
		start := i * s.hop
		for j := range s.frameLen {
			s.frame[j] = samples[start+j] * s.window[j]
		}
		for j := s.frameLen; j < s.fftSize; j++ {
			s.frame[j] = 0
		}
		s.fft.Coefficients(s.coeffs, s.frame)

		row := make([]float64, len(s.coeffs))
		for j, c := range s.coeffs {
			row[j] = cmplx.Abs(c)
		}
		mags[i] = row
	}
	return mags
}

// SpectralFlatness returns the ratio of geometric to arithmetic mean of the
// power spectrum, a value in [0, 1]. Tonal frames score near 0, noise-like
// frames near 1.
func SpectralFlatness(magnitudes []float64) float64 {
	if len(magnitudes) == 0 {
		return 0
	}
	const eps = 1e-10
	var logSum, sum float64
	for _, m := range magnitudes {
		p := m*m + eps
		logSum += math.Log(p)
		sum += p
	}
	n := float64(len(magnitudes))
	geometric := math.Exp(logSum / n)
	arithmetic := sum / n
	if arithmetic == 0 {
		return 0
	}
	return geometric / arithmetic
}

// SpectralRolloff returns the frequency in Hz below which the given fraction
// of total spectral energy is contained.
func SpectralRolloff(magnitudes []float64, fraction float64, sampleRate, fftSize int) float64 {
	var total float64
	for _, m := range magnitudes {
		total += m * m
	}
	if total == 0 {
		return 0
	}
	threshold := fraction * total
	var cumulative float64
	for i, m := range magnitudes {
		cumulative += m * m
		if cumulative >= threshold {
			return float64(i) * float64(sampleRate) / float64(fftSize)
		}
	}
	return float64(len(magnitudes)-1) * float64(sampleRate) / float64(fftSize)
}
