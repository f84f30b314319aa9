// Package telemetry provides opt-in, privacy-compliant error reporting via
// Sentry. Nothing is sent unless the user explicitly enables it; everything
// that is sent passes through URL scrubbing and the privacy filter first.
package telemetry

import (
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"
	"unicode"

	"github.com/getsentry/sentry-go"

	"github.com/sleeplessdev/voicedetect-go/internal/conf"
	"github.com/sleeplessdev/voicedetect-go/internal/logging"
)

// defaultDSN is the project DSN used when the configuration does not
// override it.
const defaultDSN = "https://f3a1c2d94b8e7650a1d2c3b4e5f60718@o4508312014815232.ingest.de.sentry.io/4508312030871552"

func getLogger() *slog.Logger {
	if logger := logging.ForService("telemetry"); logger != nil {
		return logger
	}
	return slog.Default()
}

// PlatformInfo holds the privacy-safe platform facts attached to events.
// Nothing here identifies a host or a user.
type PlatformInfo struct {
	OS           string `json:"os"`
	Architecture string `json:"arch"`
	Container    bool   `json:"container"`
	NumCPU       int    `json:"num_cpu"`
	GoVersion    string `json:"go_version"`
}

func collectPlatformInfo() PlatformInfo {
	return PlatformInfo{
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		Container:    conf.RunningInContainer(),
		NumCPU:       runtime.NumCPU(),
		GoVersion:    runtime.Version(),
	}
}

// InitSentry initializes the Sentry SDK. Telemetry is strictly opt-in: when
// Sentry.Enabled is false this is a no-op and no SDK state is created.
func InitSentry(settings *conf.Settings) error {
	if !settings.Sentry.Enabled {
		getLogger().Info("error telemetry is disabled (opt-in required)")
		return nil
	}

	dsn := settings.Sentry.DSN
	if dsn == "" {
		dsn = defaultDSN
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:        dsn,
		SampleRate: 1.0,
		Debug:      settings.Sentry.Debug,

		// Privacy posture: no stack traces, no hostname, nothing that
		// identifies the machine.
		AttachStacktrace: false,
		Environment:      "production",
		ServerName:       "",

		Release:    fmt.Sprintf("voicedetect-go@%s", settings.Version),
		BeforeSend: beforeSend,
	})
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}

	configureScope(settings)

	getLogger().Info("error telemetry initialized",
		"version", settings.Version,
		"debug", settings.Sentry.Debug,
		"dsn_override", settings.Sentry.DSN != "")
	return nil
}

func beforeSend(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	return applyPrivacyFilters(event)
}

// applyPrivacyFilters strips everything from an event that could identify
// the reporting host. It runs on every outgoing event regardless of which
// capture path produced it.
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}

	for k := range event.Extra {
		if k != "error_type" && k != "component" && k != "category" {
			delete(event.Extra, k)
		}
	}

	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}

	return event
}

func configureScope(settings *conf.Settings) {
	info := collectPlatformInfo()

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("os", info.OS)
		scope.SetTag("arch", info.Architecture)
		scope.SetTag("container", fmt.Sprintf("%t", info.Container))

		scope.SetContext("application", map[string]any{
			"name":    "voicedetect-go",
			"version": settings.Version,
		})
		scope.SetContext("platform", map[string]any{
			"os":           info.OS,
			"architecture": info.Architecture,
			"container":    info.Container,
			"num_cpu":      info.NumCPU,
			"go_version":   info.GoVersion,
		})
	})
}

// telemetryEnabled reports whether events may be sent at all.
func telemetryEnabled() bool {
	settings := conf.GetSettings()
	return settings != nil && settings.Sentry.Enabled
}

// CaptureError sends one error event with component context. Messages are
// scrubbed before leaving the process.
func CaptureError(err error, component string) {
	if !telemetryEnabled() {
		return
	}

	scrubbed := ScrubMessage(err.Error())
	title := generateErrorTitle(scrubbed, component)

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", component)
		scope.SetTag("error_title", title)
		scope.SetContext("error", map[string]any{
			"type":             fmt.Sprintf("%T", err),
			"scrubbed_message": scrubbed,
		})
		scope.SetFingerprint([]string{title, component})

		event := sentry.NewEvent()
		event.Level = sentry.LevelError
		event.Message = scrubbed
		event.Exception = []sentry.Exception{{Type: title, Value: scrubbed}}
		sentry.CaptureEvent(event)
	})

	getLogger().Debug("error event sent", "component", component, "title", title)
}

// CaptureMessage sends one message event at the given level.
func CaptureMessage(message string, level sentry.Level, component string) {
	if !telemetryEnabled() {
		return
	}

	scrubbed := ScrubMessage(message)
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", component)
		scope.SetLevel(level)
		sentry.CaptureMessage(scrubbed)
	})

	getLogger().Debug("message event sent", "component", component, "level", string(level))
}

// Flush blocks until buffered events are delivered or the timeout expires.
// Call it on shutdown so late errors are not lost.
func Flush(timeout time.Duration) {
	if !telemetryEnabled() {
		return
	}
	sentry.Flush(timeout)
}

// generateErrorTitle builds a stable, human-readable event title. Sentry
// groups by it, so the title must not contain scrubbed hashes or values
// that vary between occurrences of the same fault.
func generateErrorTitle(message, component string) string {
	errorType := parseErrorType(message)
	if component != "" && component != "unknown" {
		return fmt.Sprintf("%s: %s", titleCaseComponent(component), errorType)
	}
	return errorType
}

// parseErrorType maps well-known runtime fault strings onto readable names
// and truncates free-form messages so titles stay short.
func parseErrorType(errMsg string) string {
	switch {
	case strings.Contains(errMsg, "nil pointer dereference"):
		return "Nil Pointer Dereference"
	case strings.Contains(errMsg, "index out of range"):
		return "Index Out of Range"
	case strings.Contains(errMsg, "slice bounds out of range"):
		return "Slice Bounds Out of Range"
	case strings.Contains(errMsg, "integer divide by zero"):
		return "Integer Divide by Zero"
	case strings.Contains(errMsg, "invalid memory address"):
		return "Invalid Memory Access"
	case strings.Contains(errMsg, "send on closed channel"):
		return "Send on Closed Channel"
	case strings.Contains(errMsg, "close of closed channel"):
		return "Close of Closed Channel"
	case strings.Contains(errMsg, "concurrent map"):
		return "Concurrent Map Access"
	case strings.HasPrefix(errMsg, "panic:"):
		panicMsg := strings.TrimPrefix(errMsg, "panic: ")
		if len(panicMsg) > 50 {
			panicMsg = panicMsg[:50] + "..."
		}
		return fmt.Sprintf("Panic: %s", panicMsg)
	default:
		if len(errMsg) > 60 {
			return errMsg[:60] + "..."
		}
		return errMsg
	}
}

// titleCaseComponent renders a component name for titles, keeping known
// initialisms upper-case.
func titleCaseComponent(component string) string {
	replacer := strings.NewReplacer(
		"api", "API ",
		"http", "HTTP ",
		"dsp", "DSP ",
		"mfcc", "MFCC ",
	)
	component = replacer.Replace(component)
	component = strings.ReplaceAll(component, "_", " ")

	words := strings.Fields(component)
	for i, word := range words {
		if strings.ToUpper(word) == word {
			continue
		}
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
