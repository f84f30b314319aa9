// Package metrics provides custom Prometheus metrics for the voicedetect
// application.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sleeplessdev/voicedetect-go/internal/audio"
	"github.com/sleeplessdev/voicedetect-go/internal/errors"
)

// DetectorMetrics contains all Prometheus metrics related to the detection
// pipeline, from decode through classification.
type DetectorMetrics struct {
	// Pipeline counters
	DecodeTotal         *prometheus.CounterVec
	DecodeErrors        *prometheus.CounterVec
	ClassificationTotal *prometheus.CounterVec
	NeutralFeatureTotal *prometheus.CounterVec

	// Performance metrics
	ExtractionDuration prometheus.Histogram
	DetectionDuration  prometheus.Histogram
	ProcessTimeGauge   prometheus.Gauge

	// Result distribution
	ConfidenceHistogram *prometheus.HistogramVec
	AudioDuration       prometheus.Histogram

	registry *prometheus.Registry
}

// NewDetectorMetrics creates a new instance of DetectorMetrics and registers
// it with the provided Prometheus registry.
func NewDetectorMetrics(registry *prometheus.Registry) (*DetectorMetrics, error) {
	m := &DetectorMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register detector metrics: %w", err)
	}
	return m, nil
}

// initMetrics initializes all metrics for DetectorMetrics.
func (m *DetectorMetrics) initMetrics() {
	m.DecodeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicedetect_decode_total",
			Help: "Total number of decode attempts partitioned by container format and status.",
		},
		[]string{"format", "status"},
	)

	m.DecodeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicedetect_decode_errors_total",
			Help: "Total number of decode failures partitioned by container format and error type.",
		},
		[]string{"format", "error_type"},
	)

	m.ClassificationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicedetect_classifications_total",
			Help: "Total number of completed classifications partitioned by verdict and language.",
		},
		[]string{"label", "language"},
	)

	m.NeutralFeatureTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicedetect_neutral_features_total",
			Help: "Total number of feature measurements replaced by the neutral sentinel.",
		},
		[]string{"feature"},
	)

	m.ExtractionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "voicedetect_feature_extraction_duration_seconds",
			Help:    "Time taken to extract the acoustic feature set from a recording.",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12), // 1ms to ~4s
		},
	)

	m.DetectionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "voicedetect_detection_duration_seconds",
			Help:    "End to end time for a detection request, decode through verdict.",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12),
		},
	)

	m.ProcessTimeGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "voicedetect_processing_time_milliseconds",
			Help: "Most recent processing time for a detection request in milliseconds.",
		},
	)

	m.ConfidenceHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voicedetect_confidence",
			Help:    "Distribution of reported confidence values partitioned by verdict.",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11), // 0.0 to 1.0
		},
		[]string{"label"},
	)

	m.AudioDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "voicedetect_audio_duration_seconds",
			Help:    "Post-trim duration of analyzed recordings in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, BucketFactor2, BucketCount8), // 0.5s to ~64s
		},
	)
}

// RecordDecode records the outcome of a decode attempt for the given format.
func (m *DetectorMetrics) RecordDecode(format string, err error) {
	if err != nil {
		m.DecodeTotal.WithLabelValues(format, "error").Inc()
		m.DecodeErrors.WithLabelValues(format, categorizeDecodeError(err)).Inc()
		return
	}
	m.DecodeTotal.WithLabelValues(format, "success").Inc()
}

// RecordClassification records a completed classification and its confidence.
func (m *DetectorMetrics) RecordClassification(label, language string, confidence float64) {
	m.ClassificationTotal.WithLabelValues(label, language).Inc()
	m.ConfidenceHistogram.WithLabelValues(label).Observe(confidence)
}

// RecordNeutralFeature counts a feature substituted by the neutral sentinel.
func (m *DetectorMetrics) RecordNeutralFeature(feature string) {
	m.NeutralFeatureTotal.WithLabelValues(feature).Inc()
}

// RecordExtraction records the duration of a feature extraction pass.
func (m *DetectorMetrics) RecordExtraction(durationSeconds float64) {
	m.ExtractionDuration.Observe(durationSeconds)
}

// RecordDetection records end to end detection timing and updates the most
// recent processing time gauge.
func (m *DetectorMetrics) RecordDetection(durationSeconds float64) {
	m.DetectionDuration.Observe(durationSeconds)
	m.ProcessTimeGauge.Set(durationSeconds * MillisecondsPerSecond)
}

// RecordAudioDuration records the post-trim duration of an analyzed clip.
func (m *DetectorMetrics) RecordAudioDuration(seconds float64) {
	m.AudioDuration.Observe(seconds)
}

// categorizeDecodeError maps pipeline errors onto stable label values.
func categorizeDecodeError(err error) string {
	switch {
	case errors.Is(err, audio.ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, audio.ErrDuration):
		return "duration"
	case errors.Is(err, audio.ErrDecode):
		return "decode"
	default:
		return "unknown"
	}
}

// Describe implements the prometheus.Collector interface.
func (m *DetectorMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.DecodeTotal.Describe(ch)
	m.DecodeErrors.Describe(ch)
	m.ClassificationTotal.Describe(ch)
	m.NeutralFeatureTotal.Describe(ch)
	ch <- m.ExtractionDuration.Desc()
	ch <- m.DetectionDuration.Desc()
	ch <- m.ProcessTimeGauge.Desc()
	m.ConfidenceHistogram.Describe(ch)
	ch <- m.AudioDuration.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *DetectorMetrics) Collect(ch chan<- prometheus.Metric) {
	m.DecodeTotal.Collect(ch)
	m.DecodeErrors.Collect(ch)
	m.ClassificationTotal.Collect(ch)
	m.NeutralFeatureTotal.Collect(ch)
	ch <- m.ExtractionDuration
	ch <- m.DetectionDuration
	ch <- m.ProcessTimeGauge
	m.ConfidenceHistogram.Collect(ch)
	ch <- m.AudioDuration
}
