package audio

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/sleeplessdev/voicedetect-go/internal/conf"
)

// ExportWAV saves preprocessed samples as a 16-bit mono WAV file at the
// specified filePath, creating parent directories as needed. It is used to
// inspect what the feature extractor actually sees.
func ExportWAV(filePath string, samples []float64, sampleRate int) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	outFile, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer outFile.Close()

	enc := wav.NewEncoder(outFile, sampleRate, conf.BitDepth, conf.NumChannels, 1)

	// Quantize to 16-bit integers, clipping at full scale.
	intSamples := make([]int, len(samples))
	for i, s := range samples {
		v := math.Round(s * 32767)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		intSamples[i] = int(v)
	}

	buf := &audio.IntBuffer{
		Data:   intSamples,
		Format: &audio.Format{SampleRate: sampleRate, NumChannels: conf.NumChannels},
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write to WAV encoder: %w", err)
	}

	// Close writes the WAV header, so its error matters.
	return enc.Close()
}
