package api

import (
	"bytes"
	"encoding/json"
	"math"
	"math/rand/v2"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sleeplessdev/voicedetect-go/internal/conf"
	"github.com/sleeplessdev/voicedetect-go/internal/detector"
	"github.com/sleeplessdev/voicedetect-go/internal/observability"
)

const testRate = 16000

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// The go-cache janitor runs until the cache is collected.
		goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"),
		goleak.IgnoreTopFunction("gopkg.in/natefinch/lumberjack%2ev2.(*Logger).millRun"),
	)
}

func testSettings() *conf.Settings {
	s := &conf.Settings{}
	s.Version = "1.0.0-test"
	s.Audio.SampleRate = testRate
	s.Audio.MinDuration = 0.5
	s.Audio.MaxDuration = 60
	s.Audio.TrimSilence = true
	s.Audio.DefaultTrimDB = 30
	s.Detector.Boundary = 0.5
	s.Detector.DefaultLanguage = "en"
	s.Languages = conf.DefaultLanguages()
	s.WebServer.Enabled = true
	s.WebServer.Port = "0"
	s.WebServer.MaxUploadMB = 25
	s.Security.RateLimit.Enabled = false
	s.Security.APIKey.Enabled = false
	s.Security.APIKey.Header = "x-api-key"
	return s
}

// newTestServer builds a full server, middleware included, against a real
// detection engine. Requests go through Echo.ServeHTTP, no listener.
func newTestServer(t *testing.T, settings *conf.Settings) *Server {
	t.Helper()

	engine, err := detector.New(settings)
	require.NoError(t, err)

	metrics, err := observability.NewMetrics()
	require.NoError(t, err)

	srv, err := New(settings, engine, metrics)
	require.NoError(t, err)
	t.Cleanup(srv.Shutdown)
	return srv
}

func doRequest(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Echo.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

// multipartBody builds a multipart form with an optional file part and any
// extra form fields.
func multipartBody(t *testing.T, filename string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	if data != nil {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return buf, w.FormDataContentType()
}

// wavBytes encodes samples into an in-memory 16-bit mono WAV clip. The
// encoder needs a WriteSeeker to patch up chunk sizes, so it goes through a
// temp file.
func wavBytes(t *testing.T, samples []float64) []byte {
	t.Helper()

	path := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, testRate, 16, 1, 1)
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(math.Round(s * 32767))
	}
	buf := &goaudio.IntBuffer{
		Data:   data,
		Format: &goaudio.Format{SampleRate: testRate, NumChannels: 1},
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	return out
}

// harmonicComb synthesizes a perfectly stationary harmonic series, the
// caricature of synthetic speech: constant pitch, frozen spectrum.
func harmonicComb(f0, seconds float64) []float64 {
	n := int(seconds * testRate)
	out := make([]float64, n)
	var peak float64
	for i := range out {
		t := float64(i) / testRate
		var v float64
		for k := 1; k <= 6; k++ {
			v += math.Sin(2*math.Pi*float64(k)*f0*t) / float64(k)
		}
		out[i] = v
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	scale := 0.85 / peak
	for i := range out {
		out[i] *= scale
	}
	return out
}

// whiteNoise synthesizes an unvoiced signal; pitch features go neutral and
// the classifier leans human.
func whiteNoise(seconds float64) []float64 {
	rng := rand.New(rand.NewPCG(7, 1))
	n := int(seconds * testRate)
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.8 * (2*rng.Float64() - 1)
	}
	return out
}

func TestRootBanner(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, testSettings())

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeJSON(t, rec)
	assert.Equal(t, ServiceName, body["service"])
	assert.Equal(t, "1.0.0-test", body["version"])
	assert.Equal(t, "/api/v1", body["apiBase"])
	assert.ElementsMatch(t,
		[]any{"Tamil", "English", "Hindi", "Malayalam", "Telugu"},
		body["supportedLanguages"])
}

func TestHealth(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, testSettings())

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/v1/health", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeJSON(t, rec)
	assert.Equal(t, "healthy", body["status"])

	cpu, ok := body["cpu"].(map[string]any)
	require.True(t, ok, "cpu block missing")
	assert.Contains(t, cpu, "platform")
	assert.Contains(t, cpu, "goVersion")
	assert.Contains(t, cpu, "cores")

	gpu, ok := body["gpu"].(map[string]any)
	require.True(t, ok, "gpu block missing")
	assert.Equal(t, false, gpu["available"])
}

func TestLanguages(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, testSettings())

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/v1/languages", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeJSON(t, rec)
	assert.Equal(t,
		[]any{"Tamil", "English", "Hindi", "Malayalam", "Telugu"},
		body["languages"])
}

func TestUnknownRouteEnvelope(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, testSettings())

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/v1/nope", http.NoBody))
	require.Equal(t, http.StatusNotFound, rec.Code)

	body := decodeJSON(t, rec)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "Not found", body["message"])
}

func TestMethodNotAllowedEnvelope(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, testSettings())

	rec := doRequest(srv, httptest.NewRequest(http.MethodPut, "/api/v1/health", http.NoBody))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	body := decodeJSON(t, rec)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "Method not allowed", body["message"])
}

func TestRequestIDHeader(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, testSettings())

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/v1/health", http.NoBody))
	id := rec.Header().Get(echo.HeaderXRequestID)
	assert.Len(t, id, 36, "request id should be a uuid")
}
