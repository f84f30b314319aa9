package api

import (
	"encoding/base64"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func detectRequestJSON(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/detect", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func TestDetectAIGenerated(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, testSettings())

	clip := wavBytes(t, harmonicComb(150, 1.0))
	payload := base64.StdEncoding.EncodeToString(clip)
	rec := doRequest(srv, detectRequestJSON(
		`{"language":"English","audioFormat":"wav","audioBase64":"` + payload + `"}`))
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	body := decodeJSON(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "English", body["language"])
	assert.Equal(t, "AI_GENERATED", body["classification"])

	conf, ok := body["confidenceScore"].(float64)
	require.True(t, ok, "confidenceScore missing")
	assert.Greater(t, conf, 0.5)
	// Rounded to two decimals on this endpoint.
	assert.InDelta(t, math.Round(conf*100), conf*100, 1e-9)

	explanation, _ := body["explanation"].(string)
	assert.Contains(t, explanation, "AI-generated indicators detected")
}

func TestDetectLegacyAliasRoute(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, testSettings())

	// The alias field, a data URI wrapper and copy-paste line breaks in one
	// request, the way the oldest clients actually send it.
	clip := wavBytes(t, whiteNoise(1.0))
	payload := base64.StdEncoding.EncodeToString(clip)
	wrapped := "data:audio/wav;base64," + payload[:40] + "\n" + payload[40:]

	reqBody := `{"language":" tamil ","audioFormat":" WAV ","audioBase64Format":"` +
		strings.ReplaceAll(wrapped, "\n", `\n`) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/voice-detection", strings.NewReader(reqBody))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	rec := doRequest(srv, req)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	body := decodeJSON(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "Tamil", body["language"])
	assert.Equal(t, "HUMAN", body["classification"])
}

func TestDetectUnpaddedBase64(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, testSettings())

	clip := wavBytes(t, whiteNoise(0.6))
	payload := strings.TrimRight(base64.StdEncoding.EncodeToString(clip), "=")
	rec := doRequest(srv, detectRequestJSON(
		`{"language":"hi","audioFormat":"wav","audioBase64":"` + payload + `"}`))
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	body := decodeJSON(t, rec)
	assert.Equal(t, "Hindi", body["language"])
}

func TestDetectValidation(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, testSettings())

	clip := base64.StdEncoding.EncodeToString(wavBytes(t, whiteNoise(0.6)))

	tests := []struct {
		name        string
		body        string
		wantCode    int
		wantMessage string
	}{
		{
			name:        "malformed json",
			body:        `{"language":`,
			wantCode:    http.StatusUnprocessableEntity,
			wantMessage: "Invalid request body",
		},
		{
			name:        "unsupported language",
			body:        `{"language":"French","audioFormat":"wav","audioBase64":"` + clip + `"}`,
			wantCode:    http.StatusUnprocessableEntity,
			wantMessage: "Unsupported language. Must be one of: Tamil, English, Hindi, Malayalam, Telugu",
		},
		{
			name:        "unsupported format",
			body:        `{"language":"English","audioFormat":"ogg","audioBase64":"` + clip + `"}`,
			wantCode:    http.StatusUnprocessableEntity,
			wantMessage: "audioFormat must be one of: mp3, wav, flac",
		},
		{
			name:        "missing payload",
			body:        `{"language":"English","audioFormat":"wav"}`,
			wantCode:    http.StatusUnprocessableEntity,
			wantMessage: "audioBase64 must not be empty",
		},
		{
			name:        "invalid base64",
			body:        `{"language":"English","audioFormat":"wav","audioBase64":"!!!not base64!!!"}`,
			wantCode:    http.StatusBadRequest,
			wantMessage: "Invalid base64 audio payload",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rec := doRequest(srv, detectRequestJSON(tc.body))
			require.Equal(t, tc.wantCode, rec.Code, "body: %s", rec.Body.String())

			body := decodeJSON(t, rec)
			assert.Equal(t, "error", body["status"])
			assert.Equal(t, tc.wantMessage, body["message"])
		})
	}
}

func TestDetectTooShort(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, testSettings())

	clip := base64.StdEncoding.EncodeToString(wavBytes(t, harmonicComb(150, 0.2)))
	rec := doRequest(srv, detectRequestJSON(
		`{"language":"English","audioFormat":"wav","audioBase64":"` + clip + `"}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeJSON(t, rec)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "Audio too short; minimum is 0.5 seconds", body["message"])
}
