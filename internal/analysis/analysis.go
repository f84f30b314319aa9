// Package analysis drives offline classification of audio files. It wraps
// the detection engine with the file and directory entry points the CLI
// commands call, and writes results as a table, CSV or JSON.
package analysis

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/sleeplessdev/voicedetect-go/internal/audio"
	"github.com/sleeplessdev/voicedetect-go/internal/conf"
	"github.com/sleeplessdev/voicedetect-go/internal/detector"
	"github.com/sleeplessdev/voicedetect-go/internal/logging"
)

// Record is the outcome of classifying one input file, one row of output.
type Record struct {
	Path         string  `json:"path"`
	Language     string  `json:"language"`
	Label        string  `json:"label"`
	Confidence   float64 `json:"confidence"`
	Score        float64 `json:"score"`
	Duration     float64 `json:"durationSeconds"`
	ProcessingMs int64   `json:"processingMs"`
	Explanation  string  `json:"explanation"`
}

func getLogger() *slog.Logger {
	if logger := logging.ForService("analysis"); logger != nil {
		return logger
	}
	return slog.Default()
}

// analyzeFile reads and classifies a single audio file.
func analyzeFile(engine *detector.Engine, settings *conf.Settings, path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, fmt.Errorf("error reading %s: %w", filepath.Base(path), err)
	}

	format := audio.DetectFormat(data, path)
	if format == audio.FormatUnknown {
		return Record{}, fmt.Errorf("%s: %w", filepath.Base(path), audio.ErrUnsupportedFormat)
	}

	result, err := engine.Detect(data, format, settings.Input.Language)
	if err != nil {
		return Record{}, fmt.Errorf("error analyzing %s: %w", filepath.Base(path), err)
	}

	return newRecord(settings, path, result), nil
}

// newRecord flattens a detection result into an output row. The language
// code the engine resolved is reported by its display name.
func newRecord(settings *conf.Settings, path string, result *detector.Result) Record {
	language := result.Language
	if profile, ok := settings.LanguageByCode(result.Language); ok {
		language = profile.Name
	}

	return Record{
		Path:         path,
		Language:     language,
		Label:        string(result.Label),
		Confidence:   result.Confidence,
		Score:        result.Score,
		Duration:     result.Duration,
		ProcessingMs: result.ProcessingMs,
		Explanation:  result.Explanation,
	}
}

// isAudioFile reports whether the path carries a supported audio extension.
func isAudioFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".flac", ".mp3":
		return true
	}
	return false
}

// truncateFilename shortens long filenames for progress output.
func truncateFilename(path string) string {
	filename := filepath.Base(path)
	if len(filename) > 30 {
		return filename[:27] + "..."
	}
	return filename
}
