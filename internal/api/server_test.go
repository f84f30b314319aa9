package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sleeplessdev/voicedetect-go/internal/detector"
)

func TestNewValidatesArguments(t *testing.T) {
	t.Parallel()

	settings := testSettings()
	engine, err := detector.New(settings)
	require.NoError(t, err)

	_, err = New(nil, engine, nil)
	assert.Error(t, err)

	_, err = New(settings, nil, nil)
	assert.Error(t, err)
}

func TestNewWithoutMetrics(t *testing.T) {
	t.Parallel()

	settings := testSettings()
	engine, err := detector.New(settings)
	require.NoError(t, err)

	srv, err := New(settings, engine, nil)
	require.NoError(t, err)
	t.Cleanup(srv.Shutdown)

	rec := doRequest(srv, validDetectRequest(t))
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
}

// TestServerStartShutdown exercises the full lifecycle against a real
// ephemeral listener: start, serve one request, cancel, drain.
func TestServerStartShutdown(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, testSettings())

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	require.Eventually(t, func() bool {
		return srv.Echo.ListenerAddr() != nil
	}, 5*time.Second, 10*time.Millisecond, "listener never came up")

	client := &http.Client{
		Transport: &http.Transport{DisableKeepAlives: true},
		Timeout:   5 * time.Second,
	}
	resp, err := client.Get("http://" + srv.Echo.ListenerAddr().String() + "/")
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var banner map[string]any
	require.NoError(t, json.Unmarshal(raw, &banner))
	assert.Equal(t, ServiceName, banner["service"])

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err, "graceful shutdown should not report an error")
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down after context cancellation")
	}
}
