// Package detector wires audio ingest, feature extraction and rule scoring
// into a single detection engine. The engine keeps no per-request state, so
// one instance serves concurrent calls.
package detector

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sleeplessdev/voicedetect-go/internal/audio"
	"github.com/sleeplessdev/voicedetect-go/internal/classifier"
	"github.com/sleeplessdev/voicedetect-go/internal/conf"
	"github.com/sleeplessdev/voicedetect-go/internal/features"
	"github.com/sleeplessdev/voicedetect-go/internal/logging"
	"github.com/sleeplessdev/voicedetect-go/internal/observability/metrics"
)

// Result is the outcome of a single detection. It carries the classifier
// verdict plus the request facts the transport layer reports.
type Result struct {
	classifier.Result

	Language     string               // resolved language code used for trimming
	Duration     float64              // post-trim duration of the analyzed audio in seconds
	ProcessingMs int64                // wall-clock processing time in milliseconds
	Features     *features.FeatureSet // full feature set, for debug payloads
}

// Engine runs the detection pipeline: decode, preprocess, extract, classify.
// Construct it once with New and share it; extractors are pooled internally
// because a single extractor reuses scratch buffers and is not safe for
// concurrent use.
type Engine struct {
	settings   *conf.Settings
	config     *classifier.Config
	logger     *slog.Logger
	metrics    atomic.Pointer[metrics.DetectorMetrics]
	extractors sync.Pool
}

// New creates a detection engine from the application settings. The scoring
// rule table comes from the settings as well, falling back to the built-in
// defaults when no overrides are configured.
func New(settings *conf.Settings) (*Engine, error) {
	cfg, err := classifier.FromSettings(settings)
	if err != nil {
		return nil, err
	}

	logger := logging.ForService("detector")
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		settings: settings,
		config:   cfg,
		logger:   logger,
	}
	e.extractors.New = func() any {
		return features.New(settings.Audio.SampleRate, logger)
	}
	return e, nil
}

// SetMetrics attaches Prometheus metrics to the engine. Safe to call while
// the engine is serving; passing nil detaches.
func (e *Engine) SetMetrics(m *metrics.DetectorMetrics) {
	e.metrics.Store(m)
}

// Config returns the active classifier configuration.
func (e *Engine) Config() *classifier.Config {
	return e.config
}

// resolveLanguage maps a request's language hint, code or full name, onto a
// configured profile code. Unknown hints fall back to the default language
// rather than failing the request.
func (e *Engine) resolveLanguage(input string) string {
	code, err := e.settings.NormalizeLanguage(input)
	if err != nil {
		e.logger.Debug("unsupported language, using default", "input", input, "fallback", code)
	}
	return code
}

// Detect classifies one recording. The declared format decides the decoder;
// language selects the silence trim profile. Ingest failures are returned
// unchanged so callers can match the audio sentinel errors.
func (e *Engine) Detect(data []byte, format audio.Format, language string) (*Result, error) {
	start := time.Now()
	language = e.resolveLanguage(language)

	samples, err := e.ingest(data, format, language)
	if err != nil {
		return nil, err
	}

	fs := e.extract(samples)
	verdict := classifier.Classify(fs, e.config)

	duration := float64(len(samples)) / float64(e.settings.Audio.SampleRate)
	elapsed := time.Since(start)

	if m := e.metrics.Load(); m != nil {
		m.RecordAudioDuration(duration)
		m.RecordDetection(elapsed.Seconds())
		m.RecordClassification(string(verdict.Label), language, verdict.Confidence)
	}

	if e.settings.Detector.Debug {
		e.logger.Debug("classification complete",
			"label", verdict.Label,
			"confidence", verdict.Confidence,
			"score", verdict.Score,
			"language", language,
			"duration_s", duration,
			"processing_ms", elapsed.Milliseconds())
	}

	return &Result{
		Result:       verdict,
		Language:     language,
		Duration:     duration,
		ProcessingMs: elapsed.Milliseconds(),
		Features:     fs,
	}, nil
}

// ExtractFeatures runs ingest and feature extraction without classifying.
// It backs the debug inspection endpoints.
func (e *Engine) ExtractFeatures(data []byte, format audio.Format, language string) (*features.FeatureSet, float64, error) {
	samples, err := e.ingest(data, format, e.resolveLanguage(language))
	if err != nil {
		return nil, 0, err
	}

	fs := e.extract(samples)
	duration := float64(len(samples)) / float64(e.settings.Audio.SampleRate)
	return fs, duration, nil
}

// ingest decodes and preprocesses one recording, recording a single decode
// outcome per request.
func (e *Engine) ingest(data []byte, format audio.Format, language string) ([]float64, error) {
	pcm, err := audio.Decode(data, format)
	if err != nil {
		e.recordDecode(format, err)
		return nil, err
	}

	samples, err := audio.Preprocess(pcm, audio.OptionsFromSettings(e.settings, language))
	if err != nil {
		e.recordDecode(format, err)
		return nil, err
	}

	e.recordDecode(format, nil)

	if e.settings.Audio.Export.Enabled {
		e.exportClip(samples)
	}
	return samples, nil
}

// extract runs feature extraction on a pooled extractor.
func (e *Engine) extract(samples []float64) *features.FeatureSet {
	ext := e.extractors.Get().(*features.Extractor)
	defer e.extractors.Put(ext)

	extractStart := time.Now()
	fs := ext.Extract(samples)

	if m := e.metrics.Load(); m != nil {
		m.RecordExtraction(time.Since(extractStart).Seconds())
		for _, name := range fs.NeutralFeatures() {
			m.RecordNeutralFeature(name)
		}
	}
	return fs
}

func (e *Engine) recordDecode(format audio.Format, err error) {
	if m := e.metrics.Load(); m != nil {
		m.RecordDecode(string(format), err)
	}
}

// exportClip writes the preprocessed audio to the export directory for
// inspection. Export failures are logged, never propagated: the clip copy
// is best effort and must not fail the detection.
func (e *Engine) exportClip(samples []float64) {
	name := fmt.Sprintf("clip_%s.wav", time.Now().Format("20060102T150405.000000000"))
	path := filepath.Join(conf.GetBasePath(e.settings.Audio.Export.Path), name)
	if err := audio.ExportWAV(path, samples, e.settings.Audio.SampleRate); err != nil {
		e.logger.Warn("failed to export preprocessed clip", "path", path, "error", err)
		return
	}
	if e.settings.Audio.Export.Debug {
		e.logger.Debug("exported preprocessed clip", "path", path)
	}
}
