package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitExceeded(t *testing.T) {
	t.Parallel()
	settings := testSettings()
	settings.Security.RateLimit.Enabled = true
	settings.Security.RateLimit.RPM = 60
	settings.Security.RateLimit.Burst = 1
	srv := newTestServer(t, settings)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/v1/health", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/v1/health", http.NoBody))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	body := decodeJSON(t, rec)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "Rate limit exceeded", body["message"])
	assert.EqualValues(t, 60, body["limit"])
	assert.EqualValues(t, 60, body["windowSeconds"])
}

func TestRateLimitPerClient(t *testing.T) {
	t.Parallel()
	settings := testSettings()
	settings.Security.RateLimit.Enabled = true
	settings.Security.RateLimit.RPM = 60
	settings.Security.RateLimit.Burst = 1
	srv := newTestServer(t, settings)

	// Loopback counts as a trusted proxy for the XFF extractor, so each
	// forwarded client gets its own bucket.
	fromClient := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health", http.NoBody)
		req.RemoteAddr = "127.0.0.1:9000"
		req.Header.Set(echo.HeaderXForwardedFor, ip)
		return doRequest(srv, req)
	}

	require.Equal(t, http.StatusOK, fromClient("198.51.100.7").Code)
	require.Equal(t, http.StatusTooManyRequests, fromClient("198.51.100.7").Code)
	assert.Equal(t, http.StatusOK, fromClient("198.51.100.8").Code,
		"a different client must not inherit the exhausted bucket")
}

func TestRateLimitDisabled(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, testSettings())

	for range 20 {
		rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/v1/health", http.NoBody))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestBodyLimitRejectsOversizedRequest(t *testing.T) {
	t.Parallel()
	settings := testSettings()
	settings.WebServer.MaxUploadMB = 1
	srv := newTestServer(t, settings)

	// Past the body limit, which sits one megabyte above the upload cap.
	big := make([]byte, 3*1024*1024)
	rec := doRequest(srv, classifyRequest(t, "big.wav", big, "English"))
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	body := decodeJSON(t, rec)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "File too large", body["message"])
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, testSettings())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/detect", http.NoBody)
	req.Header.Set(echo.HeaderOrigin, "https://example.com")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
	rec := doRequest(srv, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}
