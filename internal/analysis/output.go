package analysis

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sleeplessdev/voicedetect-go/internal/conf"
)

// writeResults writes the records in the configured format. With file output
// disabled the same format goes to stdout.
func writeResults(settings *conf.Settings, records []Record) error {
	var outputFile string
	if settings.Output.File.Enabled && settings.Output.File.Path != "" {
		if err := os.MkdirAll(settings.Output.File.Path, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		outputFile = filepath.Join(settings.Output.File.Path, outputBaseName(settings.Input.Path))
	}

	switch settings.Output.File.Type {
	case "", "table":
		if err := WriteRecordsTable(records, outputFile); err != nil {
			return fmt.Errorf("failed to write results table: %w", err)
		}
	case "csv":
		if err := WriteRecordsCsv(records, outputFile); err != nil {
			return fmt.Errorf("failed to write results CSV: %w", err)
		}
	case "json":
		if err := WriteRecordsJSON(records, outputFile); err != nil {
			return fmt.Errorf("failed to write results JSON: %w", err)
		}
	default:
		return fmt.Errorf("unsupported output type: %s", settings.Output.File.Type)
	}
	return nil
}

// outputBaseName derives the output filename from the analyzed path, so
// results for clip.wav land next to other runs as clip.wav.csv and a batch
// over clips/ lands as clips.csv. The writers append the extension.
func outputBaseName(inputPath string) string {
	base := filepath.Base(filepath.Clean(inputPath))
	if base == "." || base == string(filepath.Separator) {
		return "results"
	}
	return base
}

// WriteRecordsTable writes the records as a tab-separated table. If filename
// is an empty string, the function writes to stdout.
func WriteRecordsTable(records []Record, filename string) error {
	var w io.Writer
	if filename == "" {
		w = os.Stdout
	} else {
		// Ensure the filename has a .txt extension.
		if !strings.HasSuffix(filename, ".txt") {
			filename += ".txt"
		}
		file, err := os.Create(filename)
		if err != nil {
			return fmt.Errorf("failed to create file: %w", err)
		}
		defer file.Close()
		w = file
	}

	header := "File\tLanguage\tClassification\tConfidence\tDuration (s)\tExplanation\n"
	if _, err := w.Write([]byte(header)); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	var err error
	for i := range records {
		r := &records[i]
		line := fmt.Sprintf("%s\t%s\t%s\t%.2f\t%.2f\t%s\n",
			filepath.Base(r.Path), r.Language, r.Label, r.Confidence, r.Duration, r.Explanation)
		if _, err = w.Write([]byte(line)); err != nil {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}

	if filename != "" {
		fmt.Println("Output written to", filename)
	}
	return nil
}

// WriteRecordsCsv writes the records in CSV format. If filename is an empty
// string, the function writes to stdout.
func WriteRecordsCsv(records []Record, filename string) error {
	var w io.Writer
	if filename == "" {
		w = os.Stdout
	} else {
		// Ensure the filename has a .csv extension.
		if !strings.HasSuffix(filename, ".csv") {
			filename += ".csv"
		}
		file, err := os.Create(filename)
		if err != nil {
			return fmt.Errorf("failed to create file %s: %w", filename, err)
		}
		defer file.Close()
		w = file
	}

	// Explanations contain commas, so rows go through encoding/csv.
	cw := csv.NewWriter(w)
	header := []string{"path", "language", "classification", "confidence", "score", "duration_s", "processing_ms", "explanation"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for i := range records {
		r := &records[i]
		row := []string{
			r.Path,
			r.Language,
			r.Label,
			strconv.FormatFloat(r.Confidence, 'f', 4, 64),
			strconv.FormatFloat(r.Score, 'f', 4, 64),
			strconv.FormatFloat(r.Duration, 'f', 2, 64),
			strconv.FormatInt(r.ProcessingMs, 10),
			r.Explanation,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV output: %w", err)
	}

	if filename != "" {
		fmt.Println("Output written to", filename)
	}
	return nil
}

// WriteRecordsJSON writes the records as indented JSON. If filename is an
// empty string, the function writes to stdout.
func WriteRecordsJSON(records []Record, filename string) error {
	var w io.Writer
	if filename == "" {
		w = os.Stdout
	} else {
		// Ensure the filename has a .json extension.
		if !strings.HasSuffix(filename, ".json") {
			filename += ".json"
		}
		file, err := os.Create(filename)
		if err != nil {
			return fmt.Errorf("failed to create file %s: %w", filename, err)
		}
		defer file.Close()
		w = file
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(records); err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}

	if filename != "" {
		fmt.Println("Output written to", filename)
	}
	return nil
}
