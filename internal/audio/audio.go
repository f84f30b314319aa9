// Package audio decodes uploaded recordings and prepares them for feature
// extraction. The ingest pipeline is decode, downmix, resample, normalize,
// trim and duration gate, in that order.
package audio

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sleeplessdev/voicedetect-go/internal/errors"
)

// Sentinel errors reported by the ingest pipeline. Handlers map these onto
// client-facing statuses, so enhanced errors built here always wrap one.
var (
	ErrUnsupportedFormat = errors.NewStd("unsupported audio format")
	ErrDecode            = errors.NewStd("audio decode failed")
	ErrDuration          = errors.NewStd("audio duration out of bounds")
)

// DurationError reports a recording rejected by the duration gate. Exactly
// one of Min and Max is set, identifying which bound was violated.
type DurationError struct {
	Duration float64 // measured duration in seconds after preprocessing
	Min      float64 // violated minimum in seconds, 0 when Max was exceeded
	Max      float64 // violated maximum in seconds, 0 when Min was not met
}

func (e *DurationError) Error() string {
	if e.TooShort() {
		return fmt.Sprintf("audio duration %.2fs is shorter than the %.2fs minimum", e.Duration, e.Min)
	}
	return fmt.Sprintf("audio duration %.2fs is longer than the %.2fs maximum", e.Duration, e.Max)
}

// TooShort reports whether the minimum bound was violated.
func (e *DurationError) TooShort() bool { return e.Min > 0 }

// Is matches the ErrDuration sentinel so errors.Is keeps working for callers
// that do not care which bound was violated.
func (e *DurationError) Is(target error) bool { return target == ErrDuration }

// Format identifies a supported audio container.
type Format string

const (
	FormatUnknown Format = ""
	FormatWAV     Format = "wav"
	FormatFLAC    Format = "flac"
	FormatMP3     Format = "mp3"
)

// PCM holds decoded audio prior to preprocessing. Samples are interleaved
// and scaled to [-1, 1).
type PCM struct {
	Samples    []float64
	Channels   int
	SampleRate int
}

// Duration returns the clip length in seconds.
func (p *PCM) Duration() float64 {
	if p.SampleRate == 0 || p.Channels == 0 {
		return 0
	}
	return float64(len(p.Samples)) / float64(p.Channels) / float64(p.SampleRate)
}

// DetectFormat sniffs the container from magic bytes, falling back to the
// file extension when the header is ambiguous.
func DetectFormat(data []byte, filename string) Format {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return FormatWAV
	case len(data) >= 4 && string(data[0:4]) == "fLaC":
		return FormatFLAC
	case len(data) >= 3 && string(data[0:3]) == "ID3":
		return FormatMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		// Bare MPEG frame sync, common for streams without an ID3 tag.
		return FormatMP3
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".wav":
		return FormatWAV
	case ".flac":
		return FormatFLAC
	case ".mp3":
		return FormatMP3
	}
	return FormatUnknown
}
