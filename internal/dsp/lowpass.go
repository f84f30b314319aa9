package dsp

import "math"

// LowPass applies a linear-phase windowed-sinc low-pass filter and returns a
// new signal of the same length. taps is forced odd so the kernel centers on
// a sample. Signals shorter than the kernel are returned unfiltered.
func LowPass(samples []float64, sampleRate int, cutoffHz float64, taps int) []float64 {
	if taps%2 == 0 {
		taps++
	}
	if len(samples) < taps || cutoffHz >= float64(sampleRate)/2 {
		out := make([]float64, len(samples))
		copy(out, samples)
		return out
	}

	kernel := sincKernel(sampleRate, cutoffHz, taps)
	half := taps / 2
	n := len(samples)
	out := make([]float64, n)
	for i := range out {
		var acc float64
		for j, k := range kernel {
			idx := i + j - half
			if idx >= 0 && idx < n {
				acc += samples[idx] * k
			}
		}
		out[i] = acc
	}
	return out
}

// sincKernel designs a Hann-windowed sinc kernel normalized to unity DC gain.
func sincKernel(sampleRate int, cutoffHz float64, taps int) []float64 {
	fc := cutoffHz / float64(sampleRate) // cycles per sample
	half := taps / 2
	kernel := make([]float64, taps)
	var sum float64
	for i := range kernel {
		x := float64(i - half)
		var s float64
		if x == 0 {
			s = 2 * fc
		} else {
			s = math.Sin(2*math.Pi*fc*x) / (math.Pi * x)
		}
		w := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(taps-1)))
		kernel[i] = s * w
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}
