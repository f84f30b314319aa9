package benchmark

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/cobra"

	"github.com/sleeplessdev/voicedetect-go/internal/audio"
	"github.com/sleeplessdev/voicedetect-go/internal/classifier"
	"github.com/sleeplessdev/voicedetect-go/internal/conf"
	"github.com/sleeplessdev/voicedetect-go/internal/detector"
	"github.com/sleeplessdev/voicedetect-go/internal/features"
)

// clipSeconds is the length of the synthetic benchmark clip. Three seconds
// of voiced audio is in the middle of what the API sees in practice.
const clipSeconds = 3.0

// runSeconds holds the duration flag value
var runSeconds int
var compareMode bool

func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Run detection pipeline benchmark",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Validate run duration
			if runSeconds < 1 || runSeconds > 300 {
				return fmt.Errorf("run duration must be between 1 and 300 seconds, got %d", runSeconds)
			}
			if compareMode {
				return runStageComparison(settings)
			}
			return runBenchmark(settings, time.Duration(runSeconds)*time.Second)
		},
	}

	cmd.Flags().IntVar(&runSeconds, "duration", 10, "benchmark run duration in seconds per pass (1-300)")
	cmd.Flags().BoolVar(&compareMode, "compare", false, "measure the pipeline stages separately instead of sustained throughput")

	return cmd
}

func runBenchmark(settings *conf.Settings, duration time.Duration) error {
	var fullResults, coreResults benchmarkResults

	// First pass times the whole pipeline as the API runs it.
	fmt.Println("🚀 Testing full pipeline (decode + preprocess + extract + classify):")
	if err := runFullPipelineBenchmark(settings, &fullResults, duration); err != nil {
		fmt.Printf("❌ Full pipeline benchmark failed: %v\n", err)
	}

	// Second pass skips ingest to isolate the analysis cost.
	fmt.Println("\n🔬 Testing core only (extract + classify on decoded audio):")
	if err := runCoreBenchmark(settings, &coreResults, duration); err != nil {
		return fmt.Errorf("❌ core benchmark failed: %w", err)
	}

	// Show detailed performance comparison
	fmt.Printf("\nResults:\n")
	fmt.Printf("Method         Clip Time     Throughput\n")
	fmt.Printf("─────────────  ────────────  ──────────────────────\n")

	if fullResults.totalRuns > 0 {
		fmt.Printf("Full pipeline  %8.2f ms   %6.2f clips/sec\n",
			avgMilliseconds(fullResults), fullResults.clipsPerSecond)
	} else {
		fmt.Printf("Full pipeline  ❌ Failed\n")
	}

	if coreResults.totalRuns > 0 {
		fmt.Printf("Core only      %8.2f ms   %6.2f clips/sec\n",
			avgMilliseconds(coreResults), coreResults.clipsPerSecond)
	} else {
		fmt.Printf("Core only      ❌ Failed\n")
	}
	fmt.Printf("─────────────  ────────────  ──────────────────────\n")

	// Only show the breakdown if both passes succeeded
	if fullResults.totalRuns > 0 && coreResults.totalRuns > 0 {
		ingestShare := (avgMilliseconds(fullResults) - avgMilliseconds(coreResults)) /
			avgMilliseconds(fullResults) * 100

		fmt.Printf("\n📊 Decode and preprocessing share of clip time: %.1f%%\n", ingestShare)

		rating, description := getPerformanceRating(avgMilliseconds(fullResults))
		fmt.Printf("System Rating: %s, %s\n", rating, description)
	}

	return nil
}

// benchmarkResults stores benchmark metrics
type benchmarkResults struct {
	totalRuns      int           // number of clips processed
	avgTime        time.Duration // average time per clip
	clipsPerSecond float64       // throughput in clips per second
}

func avgMilliseconds(r benchmarkResults) float64 {
	return float64(r.avgTime.Microseconds()) / 1000.0
}

// runFullPipelineBenchmark loops engine.Detect on encoded WAV bytes for the
// requested duration, measuring what one API request costs end to end.
func runFullPipelineBenchmark(settings *conf.Settings, results *benchmarkResults, duration time.Duration) error {
	engine, err := detector.New(settings)
	if err != nil {
		return fmt.Errorf("failed to initialize detection engine: %w", err)
	}

	clip, err := encodeWAV(syntheticVoice(settings.Audio.SampleRate, clipSeconds), settings.Audio.SampleRate)
	if err != nil {
		return fmt.Errorf("failed to encode benchmark clip: %w", err)
	}

	fmt.Printf("⏳ Running benchmark for %s...\n", duration)

	startTime := time.Now()
	var totalRuns int
	var totalDuration time.Duration

	for time.Since(startTime) < duration {
		runStart := time.Now()

		if _, err := engine.Detect(clip, audio.FormatWAV, settings.Detector.DefaultLanguage); err != nil {
			return fmt.Errorf("detection failed: %w", err)
		}

		totalDuration += time.Since(runStart)
		totalRuns++

		// Update progress display
		if totalRuns%100 == 0 {
			avgTime := totalDuration / time.Duration(totalRuns)
			fmt.Printf("\r🔄 Clips: \033[1;36m%d\033[0m, Average time: \033[1;33m%.2fms\033[0m",
				totalRuns, float64(avgTime.Microseconds())/1000.0)
		}
	}
	fmt.Println() // Add newline after progress display

	results.totalRuns = totalRuns
	results.avgTime = totalDuration / time.Duration(totalRuns)
	results.clipsPerSecond = float64(totalRuns) / duration.Seconds()

	return nil
}

// runCoreBenchmark loops extraction and classification on already decoded
// samples, isolating the analysis cost from ingest.
func runCoreBenchmark(settings *conf.Settings, results *benchmarkResults, duration time.Duration) error {
	cfg, err := classifier.FromSettings(settings)
	if err != nil {
		return fmt.Errorf("failed to build classifier config: %w", err)
	}

	extractor := features.New(settings.Audio.SampleRate, slog.Default())
	samples := syntheticVoice(settings.Audio.SampleRate, clipSeconds)

	fmt.Printf("⏳ Running benchmark for %s...\n", duration)

	startTime := time.Now()
	var totalRuns int
	var totalDuration time.Duration

	for time.Since(startTime) < duration {
		runStart := time.Now()

		fs := extractor.Extract(samples)
		_ = classifier.Classify(fs, cfg)

		totalDuration += time.Since(runStart)
		totalRuns++

		// Update progress display
		if totalRuns%100 == 0 {
			avgTime := totalDuration / time.Duration(totalRuns)
			fmt.Printf("\r🔄 Clips: \033[1;36m%d\033[0m, Average time: \033[1;33m%.2fms\033[0m",
				totalRuns, float64(avgTime.Microseconds())/1000.0)
		}
	}
	fmt.Println() // Add newline after progress display

	results.totalRuns = totalRuns
	results.avgTime = totalDuration / time.Duration(totalRuns)
	results.clipsPerSecond = float64(totalRuns) / duration.Seconds()

	return nil
}

func getPerformanceRating(clipTimeMs float64) (rating, description string) {
	// Thresholds are against a 3 second clip, so 3000 ms is real time.
	switch {
	case clipTimeMs > 3000:
		return "❌ Failed", "System is slower than real time and will not keep up with requests"
	case clipTimeMs > 2000:
		return "❌ Very Poor", "System is too slow for reliable API serving"
	case clipTimeMs > 1000:
		return "⚠️ Poor", "System may struggle under concurrent requests"
	case clipTimeMs > 500:
		return "👍 Decent", "System should handle light request loads"
	case clipTimeMs > 200:
		return "✨ Good", "System will perform well"
	case clipTimeMs > 100:
		return "🌟 Very Good", "System will perform very well"
	case clipTimeMs > 20:
		return "🏆 Excellent", "System will perform excellently"
	default:
		return "🚀 Superb", "System will perform exceptionally well"
	}
}

// runStageComparison times each pipeline stage separately to show where the
// clip time actually goes.
func runStageComparison(settings *conf.Settings) error {
	fmt.Println("🔬 Pipeline Stage Comparison")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println("Timing decode, preprocess, extract and classify separately.")

	cfg, err := classifier.FromSettings(settings)
	if err != nil {
		return fmt.Errorf("failed to build classifier config: %w", err)
	}

	extractor := features.New(settings.Audio.SampleRate, slog.Default())

	clip, err := encodeWAV(syntheticVoice(settings.Audio.SampleRate, clipSeconds), settings.Audio.SampleRate)
	if err != nil {
		return fmt.Errorf("failed to encode benchmark clip: %w", err)
	}
	opts := audio.OptionsFromSettings(settings, settings.Detector.DefaultLanguage)

	const iterations = 10

	// Warmup
	fmt.Println("⏳ Warming up...")
	for range 3 {
		pcm, err := audio.Decode(clip, audio.FormatWAV)
		if err != nil {
			return fmt.Errorf("decode failed: %w", err)
		}
		samples, err := audio.Preprocess(pcm, opts)
		if err != nil {
			return fmt.Errorf("preprocess failed: %w", err)
		}
		_ = classifier.Classify(extractor.Extract(samples), cfg)
	}

	var decodeTotal, preprocessTotal, extractTotal, classifyTotal time.Duration

	fmt.Printf("\n📊 Running %d iterations\n", iterations)
	for iter := range iterations {
		start := time.Now()
		pcm, err := audio.Decode(clip, audio.FormatWAV)
		if err != nil {
			return fmt.Errorf("decode failed: %w", err)
		}
		decodeTime := time.Since(start)
		decodeTotal += decodeTime

		start = time.Now()
		samples, err := audio.Preprocess(pcm, opts)
		if err != nil {
			return fmt.Errorf("preprocess failed: %w", err)
		}
		preprocessTime := time.Since(start)
		preprocessTotal += preprocessTime

		start = time.Now()
		fs := extractor.Extract(samples)
		extractTime := time.Since(start)
		extractTotal += extractTime

		start = time.Now()
		_ = classifier.Classify(fs, cfg)
		classifyTime := time.Since(start)
		classifyTotal += classifyTime

		fmt.Printf("   Iteration %d: decode %v, preprocess %v, extract %v, classify %v\n",
			iter+1, decodeTime, preprocessTime, extractTime, classifyTime)
	}

	total := decodeTotal + preprocessTotal + extractTotal + classifyTotal

	fmt.Println("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("Results (average of %d iterations):\n\n", iterations)
	fmt.Printf("Stage         Avg Time      Share\n")
	fmt.Printf("────────────  ────────────  ──────\n")
	printStageRow("Decode", decodeTotal, total, iterations)
	printStageRow("Preprocess", preprocessTotal, total, iterations)
	printStageRow("Extract", extractTotal, total, iterations)
	printStageRow("Classify", classifyTotal, total, iterations)
	fmt.Printf("────────────  ────────────  ──────\n")
	fmt.Printf("Total         %8.2f ms\n", float64(total.Microseconds())/1000.0/float64(iterations))

	return nil
}

func printStageRow(name string, stage, total time.Duration, iterations int) {
	avgMs := float64(stage.Microseconds()) / 1000.0 / float64(iterations)
	share := float64(stage) / float64(total) * 100
	fmt.Printf("%-12s  %8.2f ms   %5.1f%%\n", name, avgMs, share)
}

// syntheticVoice generates a vibrato-modulated harmonic stack. The content
// does not matter for timing, but it must survive the silence trimmer, so
// silence is not an option.
func syntheticVoice(sampleRate int, seconds float64) []float64 {
	n := int(seconds * float64(sampleRate))
	out := make([]float64, n)
	for i := range out {
		t := float64(i) / float64(sampleRate)
		f0 := 140.0 + 6.0*math.Sin(2*math.Pi*5.0*t)
		var v float64
		for k := 1; k <= 5; k++ {
			v += math.Sin(2*math.Pi*float64(k)*f0*t) / float64(k)
		}
		envelope := 0.7 + 0.3*math.Sin(2*math.Pi*2.3*t)
		out[i] = 0.4 * envelope * v
	}
	return out
}

// encodeWAV writes samples through the WAV encoder and returns the encoded
// bytes. The encoder needs a seekable target, so it goes through a temp file.
func encodeWAV(samples []float64, sampleRate int) ([]byte, error) {
	f, err := os.CreateTemp("", "voicedetect-benchmark-*.wav")
	if err != nil {
		return nil, err
	}
	defer os.Remove(f.Name())
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(math.Round(s * 32767))
	}
	buf := &goaudio.IntBuffer{
		Data:   data,
		Format: &goaudio.Format{SampleRate: sampleRate, NumChannels: 1},
	}
	if err := enc.Write(buf); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}

	return os.ReadFile(f.Name())
}
