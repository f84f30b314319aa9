package analysis

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sleeplessdev/voicedetect-go/internal/conf"
	"github.com/sleeplessdev/voicedetect-go/internal/detector"
)

// FileAnalysis classifies a single audio file and outputs the verdict.
func FileAnalysis(settings *conf.Settings) error {
	if err := validateAudioFile(settings.Input.Path); err != nil {
		return err
	}

	engine, err := detector.New(settings)
	if err != nil {
		return fmt.Errorf("error initializing detection engine: %w", err)
	}

	startTime := time.Now()
	record, err := analyzeFile(engine, settings, settings.Input.Path)
	if err != nil {
		return fmt.Errorf("\033[31m❌ %w\033[0m", err)
	}

	fmt.Printf("\033[37m📄 %s [%.1fs]\033[0m | \033[32m✅ Analysis completed in %s\033[0m\n",
		truncateFilename(settings.Input.Path),
		record.Duration,
		time.Since(startTime).Round(time.Millisecond))

	return writeResults(settings, []Record{record})
}

// validateAudioFile checks that the input path points at a readable,
// non-empty audio file before any decode work starts.
func validateAudioFile(filePath string) error {
	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return fmt.Errorf("\033[31m❌ Error accessing file %s: %w\033[0m", filepath.Base(filePath), err)
	}

	if fileInfo.IsDir() {
		return fmt.Errorf("\033[31m❌ The path %s is a directory, not a file\033[0m", filepath.Base(filePath))
	}

	if fileInfo.Size() == 0 {
		return fmt.Errorf("\033[31m❌ File %s is empty (0 bytes)\033[0m", filepath.Base(filePath))
	}

	if !isAudioFile(filePath) {
		return fmt.Errorf("\033[31m❌ File %s is not a supported audio file (wav, flac or mp3)\033[0m", filepath.Base(filePath))
	}

	return nil
}
