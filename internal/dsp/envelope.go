package dsp

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Envelope returns the amplitude envelope of the signal, computed as the
// magnitude of the analytic signal (Hilbert transform method).
func Envelope(samples []float64) []float64 {
	n := len(samples)
	if n == 0 {
		return nil
	}
	m := nextPow2(n)

	buf := make([]complex128, m)
	for i, s := range samples {
		buf[i] = complex(s, 0)
	}

	fft := fourier.NewCmplxFFT(m)
	coeffs := fft.Coefficients(nil, buf)

	// Analytic spectrum: keep DC and Nyquist, double the positive
	// frequencies, zero the negative ones.
	half := m / 2
	for i := 1; i < half; i++ {
		coeffs[i] *= 2
	}
	for i := half + 1; i < m; i++ {
		coeffs[i] = 0
	}

	analytic := fft.Sequence(nil, coeffs)
	scale := 1 / float64(m)
	env := make([]float64, n)
	for i := range env {
		env[i] = cmplx.Abs(analytic[i]) * scale
	}
	return env
}

// HighFrequencyFraction returns the share of non-DC spectral energy at or
// above cutoffHz. The DC bin is excluded so overall signal level does not
// dominate the measure.
func HighFrequencyFraction(signal []float64, sampleRate int, cutoffHz float64) float64 {
	n := len(signal)
	if n < 2 {
		return 0
	}
	m := nextPow2(n)
	buf := make([]float64, m)
	copy(buf, signal)

	fft := fourier.NewFFT(m)
	coeffs := fft.Coefficients(nil, buf)

	binHz := float64(sampleRate) / float64(m)
	var total, high float64
	for k := 1; k < len(coeffs); k++ {
		re, im := real(coeffs[k]), imag(coeffs[k])
		p := re*re + im*im
		total += p
		if float64(k)*binHz >= cutoffHz {
			high += p
		}
	}
	if total == 0 {
		return 0
	}
	return high / total
}
