// config.go - settings structs and the viper-backed load/save plumbing for VoiceDetect-Go
package conf

import (
	"crypto/rand"
	"embed"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

//go:embed config.yaml
var configFiles embed.FS

// LogConfig defines the configuration for a log file
type LogConfig struct {
	Enabled     bool         // true to enable this log
	Path        string       // Path to the log file
	Rotation    RotationType // Type of log rotation
	MaxSize     int64        // Max size in bytes for RotationSize
	RotationDay string       // Day of the week for RotationWeekly (as a string: "Sunday", "Monday", etc.)
}

// RotationType defines different types of log rotations.
type RotationType string

const (
	RotationDaily  RotationType = "daily"
	RotationWeekly RotationType = "weekly"
	RotationSize   RotationType = "size"
)

// ExportSettings controls optional export of preprocessed audio for inspection.
type ExportSettings struct {
	Debug   bool   // true to enable export debug logging
	Enabled bool   // true to export preprocessed audio clips
	Path    string // directory for exported clips
}

// AudioSettings contains settings for audio decoding and preprocessing.
type AudioSettings struct {
	Debug         bool           // true to enable audio pipeline debug logging
	SampleRate    int            // sample rate all recordings are resampled to before analysis
	MinDuration   float64        // minimum recording duration in seconds after preprocessing
	MaxDuration   float64        // maximum recording duration in seconds after preprocessing
	TrimSilence   bool           // true to trim leading and trailing silence before analysis
	DefaultTrimDB float64        // silence trim threshold in dB below peak for languages without a profile
	Export        ExportSettings // preprocessed audio export settings
}

// RuleConfig describes a single scoring rule override. When any overrides are
// present they replace the built-in rule table entirely.
type RuleConfig struct {
	Feature          string  // feature the rule tests
	Operator         string  // comparison operator, "lt" or "gt"
	Threshold        float64 // comparison threshold
	Weight           float64 // score contribution when the rule fires
	Indicator        string  // explanation fragment reported when the rule fires
	CounterIndicator string  // explanation fragment reported when the rule does not fire, optional
}

// DetectorSettings contains settings for the classification engine.
type DetectorSettings struct {
	Debug           bool         // true to enable debug mode
	Boundary        float64      // decision boundary on the normalized score
	DefaultLanguage string       // language assumed when a request omits one
	ProcessingTime  bool         // true to report processing time for each classification
	Rules           []RuleConfig // scoring rule overrides, empty to use built-in defaults
}

// InputConfig holds settings for file or directory analysis
type InputConfig struct {
	Path      string `yaml:"-"` // path to input file or directory
	Recursive bool   `yaml:"-"` // true for recursive directory analysis
	Language  string `yaml:"-"` // language hint applied to all inputs
}

// APIKeySettings holds settings for API key authentication.
type APIKeySettings struct {
	Enabled bool     // true to require an API key on classification endpoints
	Header  string   // request header carrying the key
	Keys    []string // accepted API keys
}

// RateLimitSettings holds settings for per-client request rate limiting.
type RateLimitSettings struct {
	Enabled bool // true to enable per-client rate limiting
	RPM     int  // sustained requests per minute per client IP
	Burst   int  // burst allowance on top of the sustained rate
}

type AllowSubnetBypass struct {
	Enabled bool   // true to enable subnet bypass
	Subnet  string // disable API key checks in this subnet (CIDR notation)
}

// Security handles all security-related settings and validations
// for the application, including authentication and access control.
type Security struct {
	Debug bool // true to enable debug mode

	APIKey            APIKeySettings    // API key authentication configuration
	RateLimit         RateLimitSettings // rate limiting configuration
	AllowSubnetBypass AllowSubnetBypass // subnet bypass configuration
}

// SentrySettings contains settings for opt-in error telemetry.
type SentrySettings struct {
	Enabled bool   // true to enable error telemetry, disabled by default
	DSN     string // Sentry DSN, empty uses the project default
	Debug   bool   // true to enable SDK debug logging
}

// TelemetrySettings contains settings for the Prometheus metrics endpoint.
type TelemetrySettings struct {
	Enabled bool   // true to enable Prometheus compatible telemetry endpoint
	Listen  string // IP address and port to listen on
}

// WebServerSettings contains settings for the HTTP API server.
type WebServerSettings struct {
	Debug          bool      // true to enable debug mode
	Enabled        bool      // true to enable web server
	Port           string    // port for web server
	MaxUploadMB    int64     // maximum accepted request payload in megabytes
	AllowedOrigins []string  // CORS allowed origins
	DebugRoutes    bool      // true to expose the /debug inspection endpoints
	Log            LogConfig // logging configuration for web server
}

// Settings contains all configuration options for the voicedetect application.
type Settings struct {
	Debug bool // true to enable debug mode

	// Runtime values, not stored in config file
	Version   string `yaml:"-"` // Version from build
	BuildDate string `yaml:"-"` // Build date from build

	Main struct {
		Name string    // name of this node, used to identify the source of classifications
		Log  LogConfig // logging configuration
	}

	Audio    AudioSettings    // audio decoding and preprocessing settings
	Detector DetectorSettings // classification engine settings

	Languages []LanguageConfig // per-language preprocessing profiles

	Input InputConfig `yaml:"-"` // input configuration for file and directory analysis

	WebServer WebServerSettings // web server configuration

	Security Security // security configuration

	Sentry SentrySettings // error telemetry configuration

	Telemetry TelemetrySettings // metrics endpoint configuration

	Output struct {
		File struct {
			Enabled bool   `yaml:"-"` // true to enable file output
			Path    string `yaml:"-"` // directory to output results
			Type    string `yaml:"-"` // table, csv or json
		}
	}
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into GlobalConfig.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	// Language profiles are awkward to express as viper defaults, so an
	// empty table falls back to the built-in one.
	if len(settings.Languages) == 0 {
		settings.Languages = DefaultLanguages()
	}

	// Slice-valued settings take their environment overrides here; scalar
	// overrides flow through the viper bindings in env.go.
	applyEnvOverrides(settings)

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// defaults.go seeds every key; env.go binds the VOICEDETECT_ overrides
	setDefaultConfig()
	if err := configureEnvironmentVariables(); err != nil {
		return fmt.Errorf("error binding environment variables: %w", err)
	}

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// First run: write the embedded defaults and read them back.
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig creates a default config file and writes it to the default config path
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")
	defaultConfig := getDefaultConfig()

	// If no API key is configured, generate a random one so the service
	// never starts wide open.
	if len(viper.GetStringSlice("security.apikey.keys")) == 0 {
		viper.Set("security.apikey.keys", []string{GenerateRandomSecret()})
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}
	return string(data)
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveSettings saves the current settings to the configuration file.
// It uses SaveYAMLConfig to handle the atomic write process.
func SaveSettings() error {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()

	settingsCopy := *settingsInstance

	// Slices share backing arrays after a struct copy, so detach the ones
	// that other goroutines may mutate.
	settingsCopy.Languages = make([]LanguageConfig, len(settingsInstance.Languages))
	copy(settingsCopy.Languages, settingsInstance.Languages)
	settingsCopy.Detector.Rules = make([]RuleConfig, len(settingsInstance.Detector.Rules))
	copy(settingsCopy.Detector.Rules, settingsInstance.Detector.Rules)

	configPath, err := FindConfigFile()
	if err != nil {
		return fmt.Errorf("error finding config file: %w", err)
	}

	if err := SaveYAMLConfig(configPath, &settingsCopy); err != nil {
		return fmt.Errorf("error saving config: %w", err)
	}

	log.Printf("Settings saved successfully to %s", configPath)
	return nil
}

// Setting returns the current settings instance, initializing it if necessary
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			_, err := Load()
			if err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}

// SaveYAMLConfig updates the YAML configuration file with new settings.
// It overwrites the existing file, not preserving comments or structure.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	// Stage the data in a temp file next to the target so the final
	// rename stays on one filesystem.
	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	// No-op once the rename has consumed the file.
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	// Rename is atomic when source and target share a filesystem.
	if err := os.Rename(tempFileName, configPath); err != nil {
		// Cross-device moves fail here; copy and delete instead.
		if err := moveFile(tempFileName, configPath); err != nil {
			return fmt.Errorf("error copying config file: %w", err)
		}
	}

	return nil
}

// GenerateRandomSecret returns 32 random bytes as unpadded URL-safe
// base64, 43 characters carrying 256 bits of entropy. Used to seed the
// API key on first run.
func GenerateRandomSecret() string {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		log.Printf("Failed to generate random secret: %v", err)
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(secret)
}
