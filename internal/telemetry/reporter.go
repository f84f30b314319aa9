package telemetry

import (
	"fmt"

	"github.com/getsentry/sentry-go"

	"github.com/sleeplessdev/voicedetect-go/internal/conf"
	"github.com/sleeplessdev/voicedetect-go/internal/errors"
)

// Reporter forwards enhanced errors to Sentry. It implements
// errors.Reporter; the errors package handles deduplication, this type only
// shapes and sends the event.
type Reporter struct {
	enabled bool
}

// NewReporter creates a reporter. A disabled reporter silently drops
// everything, which lets the errors package keep a single code path.
func NewReporter(enabled bool) *Reporter {
	return &Reporter{enabled: enabled}
}

// IsEnabled reports whether events will be forwarded.
func (r *Reporter) IsEnabled() bool { return r.enabled }

// ReportError shapes an enhanced error into a Sentry event and sends it.
func (r *Reporter) ReportError(ee *errors.EnhancedError) {
	if !r.enabled {
		return
	}

	component := ee.GetComponent()
	category := ee.GetCategory()
	scrubbed := ScrubMessage(ee.Error())
	title := generateErrorTitle(scrubbed, component)

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", component)
		scope.SetTag("category", category)
		scope.SetTag("error_title", title)
		scope.SetContext("error", map[string]any{
			"type":             fmt.Sprintf("%T", ee.Err),
			"category":         category,
			"scrubbed_message": scrubbed,
		})

		// Group by fault class and origin, not by message content.
		scope.SetFingerprint([]string{category, component, title})

		event := sentry.NewEvent()
		event.Level = sentry.LevelError
		event.Message = scrubbed
		event.Exception = []sentry.Exception{{Type: title, Value: scrubbed}}
		sentry.CaptureEvent(event)
	})
}

// InitializeErrorIntegration installs the telemetry reporter into the errors
// package. Call it after settings are loaded; until then, enhanced errors
// accumulate nothing and report nowhere.
func InitializeErrorIntegration() {
	settings := conf.GetSettings()
	enabled := settings != nil && settings.Sentry.Enabled
	errors.SetTelemetryReporter(NewReporter(enabled))
}

// UpdateErrorIntegration swaps the reporter when the telemetry setting
// changes at runtime.
func UpdateErrorIntegration(enabled bool) {
	errors.SetTelemetryReporter(NewReporter(enabled))
}
