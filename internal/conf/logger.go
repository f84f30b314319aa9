// Package conf provides configuration management for voicedetect-go.
package conf

import "log/slog"

// GetLogger returns the config package logger scoped to the config module.
// The logger is fetched from the default slog logger each time to ensure it
// uses the current centralized logger (which may be set after package init).
func GetLogger() *slog.Logger {
	return slog.Default().With("service", "config")
}
