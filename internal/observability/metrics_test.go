package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sleeplessdev/voicedetect-go/internal/audio"
)

// TestNewMetricsConcurrency verifies that NewMetrics can be called
// concurrently without racing: every instance gets its own registry.
func TestNewMetricsConcurrency(t *testing.T) {
	const numGoroutines = 50

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for range numGoroutines {
		go func() {
			defer wg.Done()

			metrics, err := NewMetrics()
			if err != nil {
				t.Errorf("NewMetrics failed: %v", err)
				return
			}
			if metrics == nil {
				t.Error("NewMetrics returned nil")
				return
			}
			if metrics.registry == nil {
				t.Error("metrics.registry is nil")
			}
			if metrics.Detector == nil {
				t.Error("metrics.Detector is nil")
			}
			if metrics.HTTP == nil {
				t.Error("metrics.HTTP is nil")
			}
		}()
	}

	wg.Wait()
}

func TestMetricsExposition(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)

	m.Detector.RecordDecode("wav", nil)
	m.Detector.RecordDecode("ogg", audio.ErrUnsupportedFormat)
	m.Detector.RecordClassification("HUMAN", "en", 0.92)
	m.Detector.RecordExtraction(0.042)
	m.Detector.RecordDetection(0.100)
	m.Detector.RecordAudioDuration(3.5)
	m.Detector.RecordNeutralFeature("jitter")
	m.HTTP.RecordHTTPRequest(http.MethodPost, "/api/v1/classify", http.StatusOK, 0.1)
	m.HTTP.RecordAuthFailure("missing_key")
	m.HTTP.RecordRateLimited("/api/v1/classify")

	mux := http.NewServeMux()
	m.RegisterHandlers(mux)

	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	exposition := string(body)
	assert.Contains(t, exposition, `voicedetect_decode_total{format="wav",status="success"} 1`)
	assert.Contains(t, exposition, `voicedetect_decode_errors_total{error_type="unsupported_format",format="ogg"} 1`)
	assert.Contains(t, exposition, `voicedetect_classifications_total{label="HUMAN",language="en"} 1`)
	assert.Contains(t, exposition, `voicedetect_neutral_features_total{feature="jitter"} 1`)
	assert.Contains(t, exposition, "voicedetect_feature_extraction_duration_seconds")
	assert.Contains(t, exposition, "voicedetect_processing_time_milliseconds 100")
	assert.Contains(t, exposition, `http_requests_total{method="POST",path="/api/v1/classify",status_code="200"} 1`)
	assert.Contains(t, exposition, `http_auth_failures_total{reason="missing_key"} 1`)
	assert.Contains(t, exposition, `http_rate_limited_total{path="/api/v1/classify"} 1`)
}
