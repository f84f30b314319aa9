// conf/validate.go

package conf

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	// Validate Audio settings
	if err := validateAudioSettings(&settings.Audio); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	// Validate Detector settings
	if err := validateDetectorSettings(&settings.Detector); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	// Validate language profiles
	if err := validateLanguages(settings.Languages); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	// Validate WebServer settings
	if err := validateWebServerSettings(&settings.WebServer); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	// Validate Security settings
	if err := validateSecuritySettings(&settings.Security); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	// If there are any errors, return the ValidationError
	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

// validateAudioSettings validates the audio preprocessing settings
func validateAudioSettings(settings *AudioSettings) error {
	var errs []string

	// Check if sample rate is within the range the feature extractor handles
	if settings.SampleRate < 8000 || settings.SampleRate > 48000 {
		errs = append(errs, "audio sample rate must be between 8000 and 48000 Hz")
	}

	if settings.MinDuration <= 0 {
		errs = append(errs, "audio minimum duration must be greater than 0 seconds")
	}

	if settings.MaxDuration <= settings.MinDuration {
		errs = append(errs, "audio maximum duration must be greater than the minimum duration")
	}

	if settings.DefaultTrimDB <= 0 || settings.DefaultTrimDB > 120 {
		errs = append(errs, "audio default trim threshold must be between 0 and 120 dB")
	}

	if settings.Export.Enabled && settings.Export.Path == "" {
		errs = append(errs, "audio export path must be set when export is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("audio settings errors: %v", errs)
	}
	return nil
}

// validateDetectorSettings validates the classification engine settings
func validateDetectorSettings(settings *DetectorSettings) error {
	var errs []string

	// Check if the decision boundary is within valid range
	if settings.Boundary < 0 || settings.Boundary > 1 {
		errs = append(errs, "detector boundary must be between 0 and 1")
	}

	if settings.DefaultLanguage == "" {
		errs = append(errs, "detector default language must be set")
	}

	for i := range settings.Rules {
		rule := &settings.Rules[i]
		if rule.Feature == "" {
			errs = append(errs, fmt.Sprintf("detector rule %d has no feature name", i))
		}
		if rule.Operator != "lt" && rule.Operator != "gt" {
			errs = append(errs, fmt.Sprintf("detector rule %d operator must be 'lt' or 'gt', got %q", i, rule.Operator))
		}
		if rule.Weight <= 0 {
			errs = append(errs, fmt.Sprintf("detector rule %d weight must be greater than 0", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("detector settings errors: %v", errs)
	}
	return nil
}

// validateLanguages validates the per-language preprocessing profiles
func validateLanguages(languages []LanguageConfig) error {
	var errs []string

	if len(languages) == 0 {
		errs = append(errs, "at least one language profile is required")
	}

	seen := make(map[string]bool, len(languages))
	for i := range languages {
		lang := &languages[i]
		code := strings.ToLower(lang.Code)
		switch {
		case code == "":
			errs = append(errs, fmt.Sprintf("language profile %d has no code", i))
		case seen[code]:
			errs = append(errs, fmt.Sprintf("duplicate language profile for code %q", code))
		default:
			seen[code] = true
		}
		if lang.Name == "" {
			errs = append(errs, fmt.Sprintf("language profile %q has no name", lang.Code))
		}
		if lang.TrimDB <= 0 || lang.TrimDB > 120 {
			errs = append(errs, fmt.Sprintf("language profile %q trim threshold must be between 0 and 120 dB", lang.Code))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("language settings errors: %v", errs)
	}
	return nil
}

// validateWebServerSettings validates the WebServer-specific settings
func validateWebServerSettings(settings *WebServerSettings) error {
	var errs []string

	if settings.Enabled {
		// Check if port is provided and is a valid number
		port, err := strconv.Atoi(settings.Port)
		if err != nil || port < 1 || port > 65535 {
			errs = append(errs, "WebServer port must be a valid number between 1 and 65535")
		}

		if settings.MaxUploadMB < 1 {
			errs = append(errs, "WebServer maximum upload size must be at least 1 MB")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("webserver settings errors: %v", errs)
	}
	return nil
}

// validateSecuritySettings validates security specific settings
func validateSecuritySettings(settings *Security) error {
	var errs []string

	if settings.APIKey.Enabled && settings.APIKey.Header == "" {
		errs = append(errs, "API key header name must be set when API key auth is enabled")
	}

	if settings.RateLimit.Enabled {
		if settings.RateLimit.RPM < 1 {
			errs = append(errs, "rate limit RPM must be at least 1")
		}
		if settings.RateLimit.Burst < 1 {
			errs = append(errs, "rate limit burst must be at least 1")
		}
	}

	// Validate the bypass subnet when one is configured
	if settings.AllowSubnetBypass.Enabled {
		subnets := strings.Split(settings.AllowSubnetBypass.Subnet, ",")
		for _, subnet := range subnets {
			if _, _, err := net.ParseCIDR(strings.TrimSpace(subnet)); err != nil {
				errs = append(errs, fmt.Sprintf("invalid subnet bypass CIDR %q: %v", strings.TrimSpace(subnet), err))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("security settings errors: %v", errs)
	}
	return nil
}
