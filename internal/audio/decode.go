package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	mp3 "github.com/hajimehoshi/go-mp3"
	"github.com/tphakala/flac"

	"github.com/sleeplessdev/voicedetect-go/internal/errors"
)

// Decode converts a recording in any supported container into PCM. The whole
// payload is held in memory; upload size limits are enforced upstream.
func Decode(data []byte, format Format) (*PCM, error) {
	switch format {
	case FormatWAV:
		return decodeWAV(data)
	case FormatFLAC:
		return decodeFLAC(data)
	case FormatMP3:
		return decodeMP3(data)
	default:
		return nil, errors.New(fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)).
			Category(errors.CategoryAudioFormat).
			FormatContext(string(format), len(data)).
			Build()
	}
}

// getAudioDivisor returns the scale factor that maps integer PCM samples of
// the given bit depth into [-1, 1).
func getAudioDivisor(bitDepth int) (float64, error) {
	switch bitDepth {
	case 16:
		return 32768.0, nil
	case 24:
		return 8388608.0, nil
	case 32:
		return 2147483648.0, nil
	default:
		return 0, fmt.Errorf("unsupported audio file bit depth: %d", bitDepth)
	}
}

func decodeWAV(data []byte) (*PCM, error) {
	decoder := wav.NewDecoder(bytes.NewReader(data))
	decoder.ReadInfo()

	if !decoder.IsValidFile() {
		return nil, errors.New(fmt.Errorf("%w: input is not a valid WAV audio file", ErrDecode)).
			Category(errors.CategoryAudioDecode).
			FormatContext("wav", len(data)).
			Build()
	}

	if decoder.NumChans != 1 && decoder.NumChans != 2 {
		return nil, errors.New(fmt.Errorf("%w: unsupported number of channels: %d", ErrDecode, decoder.NumChans)).
			Category(errors.CategoryAudioDecode).
			FormatContext("wav", len(data)).
			Build()
	}

	divisor, err := getAudioDivisor(int(decoder.BitDepth))
	if err != nil {
		return nil, errors.New(fmt.Errorf("%w: %w", ErrDecode, err)).
			Category(errors.CategoryAudioDecode).
			FormatContext("wav", len(data)).
			Build()
	}

	channels := int(decoder.NumChans)
	buf := &audio.IntBuffer{
		Data:   make([]int, 8192*channels),
		Format: &audio.Format{SampleRate: int(decoder.SampleRate), NumChannels: channels},
	}

	var samples []float64
	for {
		n, err := decoder.PCMBuffer(buf)
		if err != nil {
			return nil, errors.New(fmt.Errorf("%w: %w", ErrDecode, err)).
				Category(errors.CategoryAudioDecode).
				FormatContext("wav", len(data)).
				Build()
		}
		if n == 0 {
			break
		}
		for _, sample := range buf.Data[:n] {
			samples = append(samples, float64(sample)/divisor)
		}
	}

	if len(samples) == 0 {
		return nil, errors.New(fmt.Errorf("%w: no audio data in WAV file", ErrDecode)).
			Category(errors.CategoryAudioDecode).
			FormatContext("wav", len(data)).
			Build()
	}

	return &PCM{
		Samples:    samples,
		Channels:   channels,
		SampleRate: int(decoder.SampleRate),
	}, nil
}

func decodeFLAC(data []byte) (*PCM, error) {
	decoder, err := flac.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, errors.New(fmt.Errorf("%w: %w", ErrDecode, err)).
			Category(errors.CategoryAudioDecode).
			FormatContext("flac", len(data)).
			Build()
	}

	divisor, err := getAudioDivisor(decoder.BitsPerSample)
	if err != nil {
		return nil, errors.New(fmt.Errorf("%w: %w", ErrDecode, err)).
			Category(errors.CategoryAudioDecode).
			FormatContext("flac", len(data)).
			Build()
	}

	bytesPerSample := decoder.BitsPerSample / 8
	var samples []float64
	for {
		frame, err := decoder.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.New(fmt.Errorf("%w: %w", ErrDecode, err)).
				Category(errors.CategoryAudioDecode).
				FormatContext("flac", len(data)).
				Build()
		}

		for i := 0; i+bytesPerSample <= len(frame); i += bytesPerSample {
			var sample int32
			switch decoder.BitsPerSample {
			case 16:
				sample = int32(int16(binary.LittleEndian.Uint16(frame[i:])))
			case 24:
				sample = int32(frame[i]) | int32(frame[i+1])<<8 | int32(frame[i+2])<<16
				// Sign-extend from 24 bits.
				if sample&0x800000 != 0 {
					sample |= ^int32(0xFFFFFF)
				}
			case 32:
				sample = int32(binary.LittleEndian.Uint32(frame[i:]))
			}
			samples = append(samples, float64(sample)/divisor)
		}
	}

	if len(samples) == 0 {
		return nil, errors.New(fmt.Errorf("%w: no audio data in FLAC file", ErrDecode)).
			Category(errors.CategoryAudioDecode).
			FormatContext("flac", len(data)).
			Build()
	}

	return &PCM{
		Samples:    samples,
		Channels:   decoder.NChannels,
		SampleRate: decoder.SampleRate,
	}, nil
}

func decodeMP3(data []byte) (*PCM, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, errors.New(fmt.Errorf("%w: %w", ErrDecode, err)).
			Category(errors.CategoryAudioDecode).
			FormatContext("mp3", len(data)).
			Build()
	}

	// go-mp3 always emits 16-bit little-endian stereo.
	const divisor = 32768.0
	var samples []float64
	buf := make([]byte, 8192)
	for {
		n, err := decoder.Read(buf)
		if n > 0 {
			for i := 0; i+1 < n; i += 2 {
				sample := int16(binary.LittleEndian.Uint16(buf[i:]))
				samples = append(samples, float64(sample)/divisor)
			}
		}
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.New(fmt.Errorf("%w: %w", ErrDecode, err)).
				Category(errors.CategoryAudioDecode).
				FormatContext("mp3", len(data)).
				Build()
		}
	}

	if len(samples) == 0 {
		return nil, errors.New(fmt.Errorf("%w: no audio data in MP3 file", ErrDecode)).
			Category(errors.CategoryAudioDecode).
			FormatContext("mp3", len(data)).
			Build()
	}

	return &PCM{
		Samples:    samples,
		Channels:   2,
		SampleRate: decoder.SampleRate(),
	}, nil
}
