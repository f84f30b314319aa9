package api

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sleeplessdev/voicedetect-go/internal/conf"
)

func keyedSettings(keys ...string) *conf.Settings {
	s := testSettings()
	s.Security.APIKey.Enabled = true
	s.Security.APIKey.Keys = keys
	return s
}

func validDetectRequest(t *testing.T) *http.Request {
	t.Helper()
	clip := base64.StdEncoding.EncodeToString(wavBytes(t, whiteNoise(0.6)))
	return detectRequestJSON(
		`{"language":"English","audioFormat":"wav","audioBase64":"` + clip + `"}`)
}

func TestAPIKeyMissing(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, keyedSettings("sesame"))

	rec := doRequest(srv, validDetectRequest(t))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	body := decodeJSON(t, rec)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "Missing API key. Include 'x-api-key' in request headers.", body["message"])
}

func TestAPIKeyInvalid(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, keyedSettings("sesame"))

	req := validDetectRequest(t)
	req.Header.Set("x-api-key", "open says me")
	rec := doRequest(srv, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	body := decodeJSON(t, rec)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "Invalid API key", body["message"])
}

func TestAPIKeyValid(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, keyedSettings("other", "sesame"))

	req := validDetectRequest(t)
	req.Header.Set("x-api-key", "sesame")
	rec := doRequest(srv, req)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
}

func TestAPIKeyCustomHeader(t *testing.T) {
	t.Parallel()
	settings := keyedSettings("sesame")
	settings.Security.APIKey.Header = "X-Service-Token"
	srv := newTestServer(t, settings)

	rec := doRequest(srv, validDetectRequest(t))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, "Missing API key. Include 'X-Service-Token' in request headers.", body["message"])

	req := validDetectRequest(t)
	req.Header.Set("X-Service-Token", "sesame")
	rec = doRequest(srv, req)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
}

func TestAPIKeyDisabled(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, testSettings())

	rec := doRequest(srv, validDetectRequest(t))
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
}

func TestAPIKeyEnabledWithoutKeys(t *testing.T) {
	t.Parallel()
	// Enabled but no keys configured means there is nothing to check
	// against, so the guard stands down instead of locking everyone out.
	srv := newTestServer(t, keyedSettings())

	rec := doRequest(srv, validDetectRequest(t))
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
}

func TestAPIKeySubnetBypass(t *testing.T) {
	t.Parallel()
	settings := keyedSettings("sesame")
	settings.Security.AllowSubnetBypass.Enabled = true
	settings.Security.AllowSubnetBypass.Subnet = "10.0.0.0/8,192.168.0.0/16"
	srv := newTestServer(t, settings)

	req := validDetectRequest(t)
	req.RemoteAddr = "10.1.2.3:40000"
	rec := doRequest(srv, req)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	// Outside the bypass subnets the key is still required.
	req = validDetectRequest(t)
	req.RemoteAddr = "203.0.113.9:40000"
	rec = doRequest(srv, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPublicRoutesNeedNoKey(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, keyedSettings("sesame"))

	for _, path := range []string{"/", "/api/v1/health", "/api/v1/languages"} {
		rec := doRequest(srv, httptest.NewRequest(http.MethodGet, path, http.NoBody))
		assert.Equal(t, http.StatusOK, rec.Code, "path %s body: %s", path, rec.Body.String())
	}
}

func TestAPIKeyGuardsClassifyAndAlias(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, keyedSettings("sesame"))

	classifyReq := classifyRequest(t, "clip.wav", wavBytes(t, whiteNoise(0.6)), "English")
	rec := doRequest(srv, classifyReq)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	aliasReq := httptest.NewRequest(http.MethodPost, "/api/voice-detection", strings.NewReader(`{}`))
	aliasReq.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = doRequest(srv, aliasReq)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
