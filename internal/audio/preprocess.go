package audio

import (
	"fmt"
	"math"

	"github.com/sleeplessdev/voicedetect-go/internal/conf"
	"github.com/sleeplessdev/voicedetect-go/internal/dsp"
	"github.com/sleeplessdev/voicedetect-go/internal/errors"
)

// Peaks below this are treated as digital silence and left unscaled, so the
// normalizer never amplifies noise floors into full-scale garbage.
const normalizeEpsilon = 1e-4

// Silence trim framing, 25 ms frames every 10 ms at the analysis rate.
const (
	trimFrameMs = 25
	trimHopMs   = 10
)

// Taps of the anti-aliasing filter applied before downsampling.
const antiAliasTaps = 63

// PreprocessOptions control the ingest pipeline.
type PreprocessOptions struct {
	TargetRate  int     // sample rate the recording is resampled to
	TrimSilence bool    // trim leading and trailing silence
	TrimDB      float64 // trim threshold in dB below the peak frame
	MinDuration float64 // minimum accepted duration in seconds, 0 disables
	MaxDuration float64 // maximum accepted duration in seconds, 0 disables
}

// OptionsFromSettings builds preprocessing options for the given language
// code using its trim profile.
func OptionsFromSettings(s *conf.Settings, language string) PreprocessOptions {
	return PreprocessOptions{
		TargetRate:  s.Audio.SampleRate,
		TrimSilence: s.Audio.TrimSilence,
		TrimDB:      s.TrimDBFor(language),
		MinDuration: s.Audio.MinDuration,
		MaxDuration: s.Audio.MaxDuration,
	}
}

// Preprocess runs the full ingest pipeline on decoded PCM and returns mono
// samples at the target rate, peak-normalized and trimmed. The duration gate
// runs last so limits apply to the audio that will actually be analyzed.
func Preprocess(pcm *PCM, opts PreprocessOptions) ([]float64, error) {
	mono := DownmixMono(pcm)

	resampled, err := Resample(mono, pcm.SampleRate, opts.TargetRate)
	if err != nil {
		return nil, errors.New(fmt.Errorf("%w: %w", ErrDecode, err)).
			Category(errors.CategoryAudioDecode).
			Context("source_rate", pcm.SampleRate).
			Context("target_rate", opts.TargetRate).
			Build()
	}

	normalized := PeakNormalize(resampled)

	if opts.TrimSilence {
		normalized = Trim(normalized, opts.TargetRate, opts.TrimDB)
	}

	duration := float64(len(normalized)) / float64(opts.TargetRate)
	if opts.MinDuration > 0 && duration < opts.MinDuration {
		return nil, errors.New(&DurationError{Duration: duration, Min: opts.MinDuration}).
			Category(errors.CategoryAudioDuration).
			Context("duration_s", duration).
			Build()
	}
	if opts.MaxDuration > 0 && duration > opts.MaxDuration {
		return nil, errors.New(&DurationError{Duration: duration, Max: opts.MaxDuration}).
			Category(errors.CategoryAudioDuration).
			Context("duration_s", duration).
			Build()
	}

	return normalized, nil
}

// DownmixMono averages interleaved channels into a mono signal. Mono input
// is returned as a copy so later stages may mutate it freely.
func DownmixMono(pcm *PCM) []float64 {
	if pcm.Channels <= 1 {
		out := make([]float64, len(pcm.Samples))
		copy(out, pcm.Samples)
		return out
	}

	frames := len(pcm.Samples) / pcm.Channels
	out := make([]float64, frames)
	for i := range frames {
		var sum float64
		base := i * pcm.Channels
		for c := range pcm.Channels {
			sum += pcm.Samples[base+c]
		}
		out[i] = sum / float64(pcm.Channels)
	}
	return out
}

// Resample converts mono audio from originalRate to targetRate using cubic
// interpolation. Downsampling first applies a windowed-sinc low-pass filter
// to suppress aliasing.
func Resample(samples []float64, originalRate, targetRate int) ([]float64, error) {
	if originalRate <= 0 || targetRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d -> %d", originalRate, targetRate)
	}
	if originalRate == targetRate {
		return samples, nil
	}
	if len(samples) < 4 {
		return nil, fmt.Errorf("audio too short to resample: %d samples", len(samples))
	}

	if targetRate < originalRate {
		// Cut just below the new Nyquist frequency.
		samples = dsp.LowPass(samples, originalRate, 0.45*float64(targetRate), antiAliasTaps)
	}

	ratio := float64(targetRate) / float64(originalRate)
	newLength := int(float64(len(samples)) * ratio)
	resampled := make([]float64, newLength)

	// Pre-calculate common terms used in the loop
	lastIndex := len(samples) - 3

	for i := range newLength {
		origPos := float64(i) / ratio
		index := int(origPos)

		// Clamp index to avoid out-of-bounds access
		if index < 1 {
			index = 1
		} else if index > lastIndex {
			index = lastIndex
		}

		frac := origPos - float64(index)

		// Inline cubic interpolation to avoid extra function calls
		y0, y1, y2, y3 := samples[index-1], samples[index], samples[index+1], samples[index+2]
		mu2 := frac * frac
		a0 := -0.5*y0 + 1.5*y1 - 1.5*y2 + 0.5*y3
		a1 := y0 - 2.5*y1 + 2*y2 - 0.5*y3
		a2 := -0.5*y0 + 0.5*y2
		a3 := y1

		resampled[i] = a0*frac*mu2 + a1*mu2 + a2*frac + a3
	}

	return resampled, nil
}

// PeakNormalize scales the signal so its absolute peak sits at 1.0. Signals
// whose peak is below the silence epsilon are returned unchanged.
func PeakNormalize(samples []float64) []float64 {
	var peak float64
	for _, s := range samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	if peak < normalizeEpsilon {
		return samples
	}

	scale := 1 / peak
	for i := range samples {
		samples[i] *= scale
	}
	return samples
}

// Trim removes leading and trailing silence. A frame is silent when its RMS
// falls more than trimDB below the loudest frame's RMS. Signals with no
// active frames trim to empty.
func Trim(samples []float64, sampleRate int, trimDB float64) []float64 {
	frameLen := sampleRate * trimFrameMs / 1000
	hop := sampleRate * trimHopMs / 1000
	numFrames := dsp.NumFrames(len(samples), frameLen, hop)
	if numFrames == 0 {
		return samples
	}

	rms := make([]float64, numFrames)
	var peak float64
	for i := range numFrames {
		rms[i] = dsp.RMS(samples[i*hop : i*hop+frameLen])
		if rms[i] > peak {
			peak = rms[i]
		}
	}
	if peak == 0 {
		return samples[:0]
	}

	threshold := peak * math.Pow(10, -trimDB/20)

	first := -1
	last := -1
	for i := range rms {
		if rms[i] >= threshold {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return samples[:0]
	}

	start := first * hop
	end := last*hop + frameLen
	if end > len(samples) {
		end = len(samples)
	}
	return samples[start:end]
}
