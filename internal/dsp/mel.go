package dsp

import "math"

// hzToMel converts a frequency in Hz to mels on the HTK scale.
func hzToMel(hz float64) float64 {
	return 2595 * math.Log10(1+hz/700)
}

// melToHz converts mels on the HTK scale back to Hz.
func melToHz(mel float64) float64 {
	return 700 * (math.Pow(10, mel/2595) - 1)
}

// MelFilterbank builds nFilters triangular filters spaced evenly on the mel
// scale between fMin and fMax. Each row holds one filter's weight per FFT bin.
// Triangle edges are placed at exact bin frequencies rather than snapped to
// integer bins, so narrow low-frequency filters never collapse to zero width.
func MelFilterbank(nFilters, fftSize, sampleRate int, fMin, fMax float64) [][]float64 {
	nBins := fftSize/2 + 1
	melMin := hzToMel(fMin)
	melMax := hzToMel(fMax)

	// nFilters+2 edge frequencies: each filter rises from edge m to m+1 and
	// falls to m+2.
	edges := make([]float64, nFilters+2)
	for i := range edges {
		mel := melMin + (melMax-melMin)*float64(i)/float64(nFilters+1)
		edges[i] = melToHz(mel)
	}

	binHz := float64(sampleRate) / float64(fftSize)
	filters := make([][]float64, nFilters)
	for m := range nFilters {
		lower, center, upper := edges[m], edges[m+1], edges[m+2]
		row := make([]float64, nBins)
		for k := range nBins {
			freq := float64(k) * binHz
			switch {
			case freq <= lower || freq >= upper:
				// weight stays zero
			case freq <= center:
				row[k] = (freq - lower) / (center - lower)
			default:
				row[k] = (upper - freq) / (upper - center)
			}
		}
		filters[m] = row
	}
	return filters
}

// MFCC computes mel-frequency cepstral coefficients from magnitude spectra.
// Instances precompute the filterbank and cosine basis and may be reused
// across frames, but not shared between goroutines.
type MFCC struct {
	filters [][]float64
	cosines [][]float64 // [coeff][filter]
	scale0  float64
	scaleK  float64
	banks   []float64
}

// NewMFCC builds an MFCC transform with nFilters mel bands reduced to
// nCoeffs cepstral coefficients via an orthonormal DCT-II.
func NewMFCC(nFilters, nCoeffs, fftSize, sampleRate int, fMin, fMax float64) *MFCC {
	cosines := make([][]float64, nCoeffs)
	for k := range nCoeffs {
		row := make([]float64, nFilters)
		for j := range nFilters {
			row[j] = math.Cos(math.Pi * float64(k) * (2*float64(j) + 1) / (2 * float64(nFilters)))
		}
		cosines[k] = row
	}
	return &MFCC{
		filters: MelFilterbank(nFilters, fftSize, sampleRate, fMin, fMax),
		cosines: cosines,
		scale0:  math.Sqrt(1 / float64(nFilters)),
		scaleK:  math.Sqrt(2 / float64(nFilters)),
		banks:   make([]float64, nFilters),
	}
}

// Coefficients returns the first nCoeffs cepstral coefficients for one frame
// of magnitude spectra.
func (m *MFCC) Coefficients(magnitudes []float64) []float64 {
	const eps = 1e-10

	// Filterbank energies over the power spectrum, floored before the log.
	for j, filter := range m.filters {
		var energy float64
		for k, w := range filter {
			if w != 0 {
				energy += w * magnitudes[k] * magnitudes[k]
			}
		}
		m.banks[j] = math.Log(energy + eps)
	}

	coeffs := make([]float64, len(m.cosines))
	for k, row := range m.cosines {
		var sum float64
		for j, c := range row {
			sum += m.banks[j] * c
		}
		if k == 0 {
			coeffs[k] = sum * m.scale0
		} else {
			coeffs[k] = sum * m.scaleK
		}
	}
	return coeffs
}
