// env.go - Environment variable configuration and validation for VoiceDetect-Go
package conf

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation.
// Slice-valued settings (API keys, CORS origins) cannot round-trip through
// viper's unmarshal when sourced from a single string; those are handled by
// applyEnvOverrides instead.
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "VOICEDETECT_DEBUG", validateEnvBool},

		// Detector configuration
		{"detector.boundary", "VOICEDETECT_BOUNDARY", validateEnvBoundary},
		{"detector.defaultlanguage", "VOICEDETECT_DEFAULT_LANGUAGE", validateEnvLanguage},

		// HTTP API server
		{"webserver.port", "VOICEDETECT_PORT", validateEnvPort},
		{"webserver.maxuploadmb", "VOICEDETECT_MAX_UPLOAD_MB", validateEnvPositiveInt},
		{"webserver.debugroutes", "VOICEDETECT_DEBUG_ROUTES", validateEnvBool},

		// Security
		{"security.apikey.enabled", "VOICEDETECT_API_KEY_REQUIRED", validateEnvBool},
		{"security.ratelimit.rpm", "VOICEDETECT_RATE_LIMIT_RPM", validateEnvPositiveInt},

		// Telemetry and error reporting
		{"telemetry.enabled", "VOICEDETECT_TELEMETRY_ENABLED", validateEnvBool},
		{"telemetry.listen", "VOICEDETECT_TELEMETRY_LISTEN", nil},
		{"sentry.enabled", "VOICEDETECT_SENTRY_ENABLED", validateEnvBool},
		{"sentry.dsn", "VOICEDETECT_SENTRY_DSN", nil},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars() error {
	bindings := getEnvBindings()
	var warnings []string

	for _, binding := range bindings {
		// Bind the environment variable to the config key
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		// Validate the value if it's set and validation function is provided
		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

// applyEnvOverrides applies the environment variables that bypass viper
// because their settings are slice valued. Called after unmarshal and
// before validation, so invalid values still fail Load.
func applyEnvOverrides(settings *Settings) {
	if key := strings.TrimSpace(os.Getenv("VOICEDETECT_API_KEY")); key != "" {
		settings.Security.APIKey.Keys = []string{key}
	}

	if origins := strings.TrimSpace(os.Getenv("VOICEDETECT_CORS_ORIGINS")); origins != "" {
		var allowed []string
		for origin := range strings.SplitSeq(origins, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				allowed = append(allowed, trimmed)
			}
		}
		if len(allowed) > 0 {
			settings.WebServer.AllowedOrigins = allowed
		}
	}
}

// Environment variable validation functions

// validateEnvBool validates boolean environment variables
func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0, t/f, TRUE/FALSE, T/F", value)
	}
	return nil
}

func validateEnvBoundary(value string) error {
	boundary, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fmt.Errorf("invalid boundary: %w", err)
	}
	if boundary < 0 || boundary > 1 {
		return fmt.Errorf("boundary must be between 0.0 and 1.0, got %g", boundary)
	}
	return nil
}

// languagePattern matches 2-letter codes and full language names like "en" or "Tamil"
var languagePattern = regexp.MustCompile(`^[A-Za-z]{2,16}$`)

func validateEnvLanguage(value string) error {
	value = strings.TrimSpace(value)
	if !languagePattern.MatchString(value) {
		return fmt.Errorf("language must be a 2-letter code or name (e.g. 'en' or 'Tamil'), got: '%s'", value)
	}
	return nil
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid port: %w", err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

func validateEnvPositiveInt(value string) error {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid integer: %w", err)
	}
	if n < 1 {
		return fmt.Errorf("value must be positive, got %d", n)
	}
	return nil
}

// configureEnvironmentVariables sets up environment variable support for Viper
func configureEnvironmentVariables() error {
	// Set up key replacer for nested config keys
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Bind specific environment variables with validation
	// Return any errors to the caller for centralized handling
	return bindEnvVars()
}
