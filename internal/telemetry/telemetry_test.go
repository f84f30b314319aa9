package telemetry

import (
	"strings"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sleeplessdev/voicedetect-go/internal/conf"
	"github.com/sleeplessdev/voicedetect-go/internal/errors"
)

var _ errors.Reporter = (*Reporter)(nil)

func TestApplyPrivacyFilters(t *testing.T) {
	t.Parallel()

	event := sentry.NewEvent()
	event.User = sentry.User{ID: "someone", IPAddress: "203.0.113.7"}
	event.ServerName = "workstation.local"
	event.Contexts["device"] = sentry.Context{"name": "host"}
	event.Contexts["os"] = sentry.Context{"name": "linux"}
	event.Contexts["runtime"] = sentry.Context{"name": "go"}
	event.Contexts["error"] = sentry.Context{"category": "audio-decode"}
	event.Extra["component"] = "audio"
	event.Extra["category"] = "audio-decode"
	event.Extra["request_path"] = "/api/v1/classify"
	event.Tags = map[string]string{
		"component":   "audio",
		"server_name": "workstation",
		"hostname":    "workstation.local",
	}

	filtered := applyPrivacyFilters(event)

	assert.True(t, filtered.User.IsEmpty())
	assert.Empty(t, filtered.ServerName)
	assert.NotContains(t, filtered.Contexts, "device")
	assert.NotContains(t, filtered.Contexts, "os")
	assert.NotContains(t, filtered.Contexts, "runtime")
	assert.Contains(t, filtered.Contexts, "error")
	assert.NotContains(t, filtered.Extra, "request_path")
	assert.Contains(t, filtered.Extra, "component")
	assert.Contains(t, filtered.Extra, "category")
	assert.NotContains(t, filtered.Tags, "server_name")
	assert.NotContains(t, filtered.Tags, "hostname")
	assert.Equal(t, "audio", filtered.Tags["component"])
}

func TestGenerateErrorTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		message   string
		component string
		expected  string
	}{
		{"component prefix", "audio decode failed", "audio", "Audio: audio decode failed"},
		{"initialism", "request too large", "api", "API: request too large"},
		{"unknown component", "audio decode failed", "unknown", "audio decode failed"},
		{"no component", "audio decode failed", "", "audio decode failed"},
		{"runtime fault", "runtime error: invalid memory address or nil pointer dereference", "detector", "Detector: Nil Pointer Dereference"},
		{"index fault", "runtime error: index out of range [4] with length 3", "dsp", "DSP: Index Out of Range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, generateErrorTitle(tt.message, tt.component))
		})
	}
}

func TestParseErrorTypeTruncation(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 100)
	title := parseErrorType(long)
	assert.Len(t, title, 63)
	assert.True(t, strings.HasSuffix(title, "..."))

	panicTitle := parseErrorType("panic: " + strings.Repeat("y", 80))
	assert.True(t, strings.HasPrefix(panicTitle, "Panic: "))
	assert.True(t, strings.HasSuffix(panicTitle, "..."))
}

func TestReporterDisabled(t *testing.T) {
	t.Parallel()

	reporter := NewReporter(false)
	assert.False(t, reporter.IsEnabled())

	// Must be safe without an initialized SDK.
	ee := errors.New(errors.NewStd("drop me")).Category(errors.CategoryAudioDecode).Build()
	reporter.ReportError(ee)
}

func TestReporterEnabledWithoutSDK(t *testing.T) {
	t.Parallel()

	// With no client bound, capture is a no-op; shaping the event must not
	// panic and must not mutate the error.
	reporter := NewReporter(true)
	require.True(t, reporter.IsEnabled())

	ee := errors.New(errors.NewStd("decode failed for https://cdn.example.com/clip.wav")).
		Category(errors.CategoryAudioDecode).
		Component("audio").
		Build()
	reporter.ReportError(ee)

	assert.Equal(t, "audio", ee.GetComponent())
}

func TestInitSentryDisabled(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{}
	settings.Sentry.Enabled = false
	require.NoError(t, InitSentry(settings))
}
