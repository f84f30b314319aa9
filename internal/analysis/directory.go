package analysis

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sleeplessdev/voicedetect-go/internal/conf"
	"github.com/sleeplessdev/voicedetect-go/internal/cpuspec"
	"github.com/sleeplessdev/voicedetect-go/internal/detector"
)

// maxAnalysisWorkers caps the batch worker pool. Decode and extraction are
// CPU bound, so more workers than performance cores only adds contention.
const maxAnalysisWorkers = 8

// DirectoryAnalysis classifies every supported audio file under the input
// directory. Files that fail to decode are logged and skipped so one bad
// clip does not abort the batch.
func DirectoryAnalysis(ctx context.Context, settings *conf.Settings) error {
	logger := getLogger()

	paths, err := collectAudioFiles(settings.Input.Path, settings.Input.Recursive)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Printf("⚠️ No audio files found in %s\n", settings.Input.Path)
		return nil
	}

	engine, err := detector.New(settings)
	if err != nil {
		return fmt.Errorf("error initializing detection engine: %w", err)
	}

	workers := analysisWorkers()
	fmt.Printf("🔍 Analyzing %d files with %d workers\n", len(paths), workers)

	startTime := time.Now()

	// Workers write into their own slot, so the batch needs no locking and
	// results come out in collection order.
	slots := make([]*Record, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			record, err := analyzeFile(engine, settings, path)
			if err != nil {
				logger.Error("skipping file", "path", path, "error", err)
				return nil
			}
			slots[i] = &record
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	records := make([]Record, 0, len(slots))
	for _, record := range slots {
		if record != nil {
			records = append(records, *record)
		}
	}

	fmt.Printf("\033[32m✅ Analyzed %d/%d files in %s\033[0m\n",
		len(records), len(paths), time.Since(startTime).Round(time.Millisecond))

	return writeResults(settings, records)
}

// collectAudioFiles walks the input directory and returns the supported
// audio files in sorted order. Without recursion, subdirectories are
// skipped entirely.
func collectAudioFiles(root string, recursive bool) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("error accessing directory %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("the path %s is not a directory", root)
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !recursive && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if isAudioFile(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking directory %s: %w", root, err)
	}

	slices.Sort(paths)
	return paths, nil
}

// analysisWorkers picks the worker count for batch analysis.
func analysisWorkers() int {
	workers := cpuspec.GetCPUSpec().GetOptimalThreadCount()
	if workers > maxAnalysisWorkers {
		return maxAnalysisWorkers
	}
	if workers < 1 {
		return 1
	}
	return workers
}
