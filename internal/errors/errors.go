// Package errors extends the standard errors package with categorized,
// context-carrying errors and an optional telemetry hook. It re-exports the
// stdlib helpers it shadows, so callers import only this package.
package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ErrorCategory groups errors by fault class.
type ErrorCategory string

// Categories are stable grouping keys for telemetry; renaming one orphans
// its history in the dashboard.
const (
	CategoryValidation    ErrorCategory = "validation"
	CategoryAudioDecode   ErrorCategory = "audio-decode"
	CategoryAudioFormat   ErrorCategory = "audio-format"
	CategoryAudioDuration ErrorCategory = "audio-duration"
	CategoryExtraction    ErrorCategory = "feature-extraction"
	CategoryClassifier    ErrorCategory = "classification"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryFileIO        ErrorCategory = "file-io"
	CategoryHTTP          ErrorCategory = "http-request"
	CategorySystem        ErrorCategory = "system-resource"
	CategoryGeneric       ErrorCategory = "generic"
)

// ComponentUnknown is the attribution of last resort.
const ComponentUnknown = "unknown"

// EnhancedError attaches a category, an origin component, and structured
// context to an underlying error. Everything is written once during Build;
// the two mutable pieces, lazy component detection and the reported flag,
// carry their own synchronization.
type EnhancedError struct {
	Err       error
	Category  ErrorCategory
	Context   map[string]any
	Timestamp time.Time

	component  string
	detectOnce sync.Once
	reported   atomic.Bool
}

func (e *EnhancedError) Error() string { return e.Err.Error() }

func (e *EnhancedError) Unwrap() error { return e.Err }

// Is matches two enhanced errors by category, which lets callers probe for a
// fault class without holding the original instance. Any other target is
// delegated to the wrapped chain.
func (e *EnhancedError) Is(target error) bool {
	if other, ok := target.(*EnhancedError); ok {
		return e.Category == other.Category
	}
	return Is(e.Err, target)
}

// GetComponent returns the originating component. Errors built while a
// reporter was active already carry it; for the rest, the first caller
// resolves it from its own stack, which is a best effort guess.
func (e *EnhancedError) GetComponent() string {
	e.detectOnce.Do(func() {
		if e.component == "" {
			e.component = detectComponent()
		}
	})
	return e.component
}

// GetCategory returns the category as a plain string for tagging.
func (e *EnhancedError) GetCategory() string {
	return string(e.Category)
}

// MarkReported records that a reporter has accepted this error.
func (e *EnhancedError) MarkReported() { e.reported.Store(true) }

// IsReported reports whether telemetry has already seen this error.
func (e *EnhancedError) IsReported() bool { return e.reported.Load() }

// ErrorBuilder assembles an EnhancedError. Zero configuration is valid: an
// unadorned Build produces a generic, unattributed error.
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	context   map[string]any
}

// New starts building an enhanced error around err.
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf starts building an enhanced error from a format string.
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

// Component names the originating component, skipping stack detection.
func (b *ErrorBuilder) Component(component string) *ErrorBuilder {
	b.component = component
	return b
}

// Category assigns the fault class. Unset defaults to CategoryGeneric.
func (b *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	b.category = category
	return b
}

// Context attaches an arbitrary key value pair.
func (b *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	return b.put(key, value)
}

// FormatContext records the container format and a coarse payload size
// bucket. The bucket, not the byte count, is what telemetry may see.
func (b *ErrorBuilder) FormatContext(format string, payloadSize int) *ErrorBuilder {
	b.put("audio_format", format)
	return b.put("payload_size_category", categorizePayloadSize(payloadSize))
}

// Timing records how long the failing operation ran before giving up.
func (b *ErrorBuilder) Timing(operation string, duration time.Duration) *ErrorBuilder {
	b.put("operation", operation)
	return b.put("duration_ms", duration.Milliseconds())
}

func (b *ErrorBuilder) put(key string, value any) *ErrorBuilder {
	if b.context == nil {
		b.context = make(map[string]any, 4)
	}
	b.context[key] = value
	return b
}

// Build finalizes the error and hands it to the active reporter, if any.
// Component detection has to happen here, at the creation site: deferred to
// GetComponent it would walk the reader's stack instead and attribute the
// error to whichever package looked at it first. When no reporter is active
// nothing reads the component, so the walk is skipped entirely.
func (b *ErrorBuilder) Build() *EnhancedError {
	component := b.component
	if component == "" && reportingActive() {
		component = detectComponent()
	}
	category := b.category
	if category == "" {
		category = CategoryGeneric
	}

	e := &EnhancedError{
		Err:       b.err,
		Category:  category,
		Context:   b.context,
		Timestamp: time.Now(),
		component: component,
	}
	reportToTelemetry(e)
	return e
}

// Reporter is the hook the telemetry package installs to receive errors as
// they are built. Only the interface lives here; the Sentry implementation
// is in internal/telemetry, which keeps this package import-light enough to
// be used from anywhere.
type Reporter interface {
	ReportError(e *EnhancedError)
	IsEnabled() bool
}

// reporterHandle pins the reporter together with its install time enabled
// state behind one pointer, so Build pays a single atomic load when
// telemetry is off.
type reporterHandle struct {
	reporter Reporter
	enabled  bool
}

var activeReporter atomic.Pointer[reporterHandle]

// SetTelemetryReporter installs r as the active reporter. Passing nil
// removes it.
func SetTelemetryReporter(r Reporter) {
	if r == nil {
		activeReporter.Store(nil)
		return
	}
	activeReporter.Store(&reporterHandle{reporter: r, enabled: r.IsEnabled()})
}

func reportingActive() bool {
	h := activeReporter.Load()
	return h != nil && h.enabled
}

// reportToTelemetry forwards the error to the active reporter exactly once.
func reportToTelemetry(e *EnhancedError) {
	h := activeReporter.Load()
	if h == nil || !h.enabled || e.IsReported() {
		return
	}
	h.reporter.ReportError(e)
	e.MarkReported()
}

// Component attribution maps substrings of fully qualified function names to
// component tags. The defaults cover every package under internal/.
var (
	registryMu        sync.RWMutex
	componentPatterns = map[string]string{}
)

// RegisterComponent maps a package path fragment to a component name for
// stack based attribution.
func RegisterComponent(pattern, component string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	componentPatterns[pattern] = component
}

func init() {
	for pattern, component := range map[string]string{
		"internal/audio":         "audio",
		"internal/dsp":           "dsp",
		"internal/features":      "features",
		"internal/classifier":    "classifier",
		"internal/detector":      "detector",
		"internal/conf":          "configuration",
		"internal/api":           "api",
		"internal/telemetry":     "telemetry",
		"internal/observability": "observability",
	} {
		RegisterComponent(pattern, component)
	}
}

// detectComponent walks the calling stack until it reaches a frame that maps
// to a registered component. Frames inside this package are skipped so the
// builder plumbing never claims the error for itself.
func detectComponent() string {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(2, pcs)
	if n == len(pcs) {
		pcs = make([]uintptr, 64)
		n = runtime.Callers(2, pcs)
	}

	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		name := frame.Function
		if name != "" && !strings.Contains(name, "voicedetect-go/internal/errors") {
			if component := lookupComponent(name); component != ComponentUnknown {
				return component
			}
		}
		if !more {
			return ComponentUnknown
		}
	}
}

// lookupComponent resolves one fully qualified function name against the
// registry. Unlike the stack walk it never guesses: a name matching no
// registered pattern is unknown.
func lookupComponent(funcName string) string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	for pattern, component := range componentPatterns {
		if strings.Contains(funcName, pattern) {
			return component
		}
	}
	return ComponentUnknown
}

// categorizePayloadSize buckets request sizes so telemetry never carries an
// exact payload size.
func categorizePayloadSize(size int) string {
	switch {
	case size < 1<<10:
		return "tiny"
	case size < 1<<20:
		return "small"
	case size < 10<<20:
		return "medium"
	default:
		return "large"
	}
}

// Stdlib re-exports. Shadowing the standard package means callers never
// import both under aliases.

// NewStd returns a plain error with no enhancement attached, for sentinels.
func NewStd(text string) error { return stderrors.New(text) }

// Is delegates to the standard library.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As delegates to the standard library.
func As(err error, target any) bool { return stderrors.As(err, target) }

// Unwrap delegates to the standard library.
func Unwrap(err error) error { return stderrors.Unwrap(err) }

// Join delegates to the standard library.
func Join(errs ...error) error { return stderrors.Join(errs...) }

// IsCategory reports whether err carries the given category anywhere in its
// chain.
func IsCategory(err error, category ErrorCategory) bool {
	var e *EnhancedError
	return As(err, &e) && e.Category == category
}
