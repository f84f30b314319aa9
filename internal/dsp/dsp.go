// Package dsp implements the signal processing primitives behind the feature
// extractor: windowing, short-time spectra, mel filterbanks, pitch tracking
// and envelope analysis. All routines operate on mono float64 samples.
package dsp

import "math"

// HannWindow returns an n-point periodic Hann window. The periodic form is
// the correct one for short-time spectral analysis with overlapping frames.
func HannWindow(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n)))
	}
	return w
}

// NumFrames returns how many complete frames of length frameLen fit into n
// samples with the given hop. Partial trailing frames are not counted.
func NumFrames(n, frameLen, hop int) int {
	if n < frameLen || frameLen <= 0 || hop <= 0 {
		return 0
	}
	return 1 + (n-frameLen)/hop
}

// Frame copies frame idx of the signal into dst and returns it. dst must be
// frameLen samples long.
func Frame(samples []float64, idx, frameLen, hop int, dst []float64) []float64 {
	start := idx * hop
	copy(dst, samples[start:start+frameLen])
	return dst
}

// RMS returns the root mean square amplitude of the signal.
func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// ZeroCrossingRate returns the fraction of adjacent sample pairs whose signs
// differ. Zero samples count as positive so silence does not read as noise.
func ZeroCrossingRate(samples []float64) float64 {
	if len(samples) < 2 {
		return 0
	}
	crossings := 0
	prevPositive := samples[0] >= 0
	for _, s := range samples[1:] {
		positive := s >= 0
		if positive != prevPositive {
			crossings++
		}
		prevPositive = positive
	}
	return float64(crossings) / float64(len(samples)-1)
}

// nextPow2 returns the smallest power of two that is >= n.
func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
