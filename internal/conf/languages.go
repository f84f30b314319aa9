// conf/languages.go contains the language profiles the detector supports

package conf

import (
	"fmt"
	"strings"
)

// LanguageConfig holds the preprocessing profile for one supported language.
// Recordings in different languages carry different amounts of breath noise
// and sibilance, so the silence trim threshold is tuned per language.
type LanguageConfig struct {
	Code   string  `yaml:"code"`   // 2-letter language code
	Name   string  `yaml:"name"`   // human readable name
	TrimDB float64 `yaml:"trimdb"` // silence trim threshold in dB below peak
}

// LanguageCodes holds human-readable names for supported language codes
var LanguageCodes = map[string]string{
	"ta": "Tamil",
	"en": "English",
	"hi": "Hindi",
	"ml": "Malayalam",
	"te": "Telugu",
}

// DefaultLanguages returns the built-in language profile table.
func DefaultLanguages() []LanguageConfig {
	return []LanguageConfig{
		{Code: "ta", Name: "Tamil", TrimDB: 28},
		{Code: "en", Name: "English", TrimDB: 32},
		{Code: "hi", Name: "Hindi", TrimDB: 30},
		{Code: "ml", Name: "Malayalam", TrimDB: 26},
		{Code: "te", Name: "Telugu", TrimDB: 29},
	}
}

// NormalizeLanguage normalizes the input language string and matches it to a
// known language code or full name. If the language is not supported, it
// falls back to the configured default language.
func (s *Settings) NormalizeLanguage(input string) (string, error) {
	input = strings.TrimSpace(strings.ToLower(input))

	if input == "" {
		return s.Detector.DefaultLanguage, nil
	}

	// Check if it's already a valid language code
	for i := range s.Languages {
		if strings.EqualFold(s.Languages[i].Code, input) {
			return s.Languages[i].Code, nil
		}
	}

	// Try to match by full name
	for i := range s.Languages {
		if strings.EqualFold(s.Languages[i].Name, input) {
			return s.Languages[i].Code, nil
		}
	}

	return s.Detector.DefaultLanguage,
		fmt.Errorf("language %s not supported, falling back to %s", input, s.Detector.DefaultLanguage)
}

// LanguageByCode returns the profile for the given language code.
func (s *Settings) LanguageByCode(code string) (LanguageConfig, bool) {
	for i := range s.Languages {
		if strings.EqualFold(s.Languages[i].Code, code) {
			return s.Languages[i], true
		}
	}
	return LanguageConfig{}, false
}

// TrimDBFor returns the silence trim threshold for the given language code,
// falling back to the audio default when the language has no profile.
func (s *Settings) TrimDBFor(code string) float64 {
	if lang, ok := s.LanguageByCode(code); ok {
		return lang.TrimDB
	}
	return s.Audio.DefaultTrimDB
}
