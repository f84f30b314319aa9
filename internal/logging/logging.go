// Package logging configures the application-wide structured loggers.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sleeplessdev/voicedetect-go/internal/conf"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Levels beyond the slog built-ins. TRACE sits below DEBUG for per-frame
// pipeline output, FATAL above ERROR for exits.
const (
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelFatal: "FATAL",
}

// replaceLevelNames rewrites the level attribute so the custom levels render
// with their names instead of numeric offsets like "DEBUG-4".
func replaceLevelNames(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		level := a.Value.Any().(slog.Level)
		levelLabel, exists := levelNames[level]
		if !exists {
			levelLabel = level.String()
		}
		a.Value = slog.StringValue(levelLabel)
	}
	return a
}

// Package state. The LevelVars are shared by every handler generation, so
// swapping outputs never resets levels and level changes reach loggers that
// were derived earlier with ForService.
var (
	structuredLogger    *slog.Logger
	humanReadableLogger *slog.Logger
	structuredLevel     = new(slog.LevelVar)
	humanReadableLevel  = new(slog.LevelVar)
)

func handlerOptions(level slog.Leveler) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevelNames,
	}
}

// rebuild points both loggers at the given destinations and reinstalls the
// structured logger as the slog default.
func rebuild(structuredOut, humanReadableOut io.Writer) {
	structuredLogger = slog.New(slog.NewJSONHandler(structuredOut, handlerOptions(structuredLevel)))
	humanReadableLogger = slog.New(slog.NewTextHandler(humanReadableOut, handlerOptions(humanReadableLevel)))
	slog.SetDefault(structuredLogger)
}

// Init sets up both loggers: JSON on stdout for log shippers, text on stderr
// for operators. The structured logger becomes the application default.
func Init() {
	structuredLevel.Set(slog.LevelDebug)
	humanReadableLevel.Set(slog.LevelInfo)
	rebuild(os.Stdout, os.Stderr)
}

// SetLevel adjusts the minimum level of both loggers in place. No handler is
// recreated; loggers already handed out observe the change immediately.
func SetLevel(level slog.Level) {
	structuredLevel.Set(level)
	humanReadableLevel.Set(level)
}

// SetOutput redirects logger output, e.g. to a buffer in tests or to a file.
// Levels carry over unchanged.
func SetOutput(structuredOutput, humanReadableOutput io.Writer) {
	rebuild(structuredOutput, humanReadableOutput)
}

// Structured returns the globally configured structured (JSON) logger.
// Returns nil if Init() has not been called.
func Structured() *slog.Logger {
	return structuredLogger
}

// HumanReadable returns the globally configured human-readable (text) logger.
// Returns nil if Init() has not been called.
func HumanReadable() *slog.Logger {
	return humanReadableLogger
}

// ForService derives a logger carrying a 'service' attribute from the global
// structured logger. Returns nil if Init() has not been called; callers fall
// back to slog.Default in that case.
func ForService(serviceName string) *slog.Logger {
	if structuredLogger == nil {
		return nil
	}
	return structuredLogger.With("service", serviceName)
}

// Convenience wrappers over the default logger.

// Debug logs at DEBUG level.
func Debug(msg string, args ...any) { slog.Debug(msg, args...) }

// Info logs at INFO level.
func Info(msg string, args ...any) { slog.Info(msg, args...) }

// Warn logs at WARN level.
func Warn(msg string, args ...any) { slog.Warn(msg, args...) }

// Error logs at ERROR level.
func Error(msg string, args ...any) { slog.Error(msg, args...) }

// Trace logs at the custom TRACE level.
func Trace(msg string, args ...any) {
	slog.Log(context.TODO(), LevelTrace, msg, args...)
}

// Fatal logs at the custom FATAL level and exits.
func Fatal(msg string, args ...any) {
	slog.Log(context.TODO(), LevelFatal, msg, args...)
	os.Exit(1)
}

// NewFileLogger creates a slog.Logger writing JSON records to the given file,
// rotated by lumberjack according to the main log configuration. All records
// carry a 'service' attribute. The returned function closes the underlying
// writer.
func NewFileLogger(filePath, serviceName string, level slog.Level) (*slog.Logger, func() error, error) {
	// lumberjack does not create directories
	if dir := filepath.Dir(filePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
		}
	}

	writer := &lumberjack.Logger{Filename: filePath}
	applyRotation(writer, conf.Setting().Main.Log)

	logger := slog.New(slog.NewJSONHandler(writer, handlerOptions(level))).With("service", serviceName)
	return logger, writer.Close, nil
}

// applyRotation maps the configured rotation mode onto lumberjack's knobs.
// lumberjack only rotates by size, so the daily and weekly modes become age
// limits with retention matched to the period.
func applyRotation(w *lumberjack.Logger, logConf conf.LogConfig) {
	w.MaxSize = 100 // MB
	w.MaxBackups = 3
	w.MaxAge = 28 // days

	if sizeMB := int(logConf.MaxSize / (1 << 20)); sizeMB > 0 {
		w.MaxSize = sizeMB
	}

	switch logConf.Rotation {
	case conf.RotationDaily:
		w.MaxAge = 1
		w.MaxBackups = 30
	case conf.RotationWeekly:
		w.MaxAge = 7
		w.MaxBackups = 4
	case conf.RotationSize:
	default:
		slog.Warn("Unknown log rotation type in config, using size-based defaults", "configuredType", logConf.Rotation)
	}
}
