package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/sleeplessdev/voicedetect-go/internal/api"
	"github.com/sleeplessdev/voicedetect-go/internal/conf"
	"github.com/sleeplessdev/voicedetect-go/internal/detector"
	"github.com/sleeplessdev/voicedetect-go/internal/observability"
	"github.com/sleeplessdev/voicedetect-go/internal/telemetry"
)

// Command creates the serve command for running the HTTP API service.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the voice detection HTTP API",
		Long:  "Start the HTTP API server and, when enabled, the Prometheus metrics endpoint.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(settings)
		},
	}

	// Set up flags specific to the 'serve' command
	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func runServe(settings *conf.Settings) error {
	// Error telemetry is opt-in; with Sentry disabled these are no-ops.
	if err := telemetry.InitSentry(settings); err != nil {
		return fmt.Errorf("error initializing telemetry: %w", err)
	}
	telemetry.InitializeErrorIntegration()
	defer telemetry.Flush(3 * time.Second)

	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("error initializing metrics: %w", err)
	}

	engine, err := detector.New(settings)
	if err != nil {
		return fmt.Errorf("error initializing detection engine: %w", err)
	}
	engine.SetMetrics(metrics.Detector)

	server, err := api.New(settings, engine, metrics)
	if err != nil {
		return fmt.Errorf("error initializing HTTP server: %w", err)
	}
	defer server.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(ctx)
	})

	// The metrics endpoint runs on its own listener so operators can keep
	// it off the public interface.
	if settings.Telemetry.Enabled {
		endpoint, err := observability.NewEndpoint(settings, metrics)
		if err != nil {
			return fmt.Errorf("error initializing telemetry endpoint: %w", err)
		}

		var wg sync.WaitGroup
		quit := make(chan struct{})
		endpoint.Start(&wg, quit)
		g.Go(func() error {
			<-ctx.Done()
			close(quit)
			wg.Wait()
			return nil
		})
	}

	return g.Wait()
}

// setupFlags configures flags specific to the serve command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVarP(&settings.WebServer.Port, "port", "p", viper.GetString("webserver.port"), "Port for the HTTP API server")
	cmd.Flags().BoolVar(&settings.WebServer.DebugRoutes, "debugroutes", viper.GetBool("webserver.debugroutes"), "Expose the /debug inspection endpoints")
	cmd.Flags().BoolVar(&settings.Telemetry.Enabled, "telemetry", viper.GetBool("telemetry.enabled"), "Enable Prometheus telemetry endpoint")
	cmd.Flags().StringVar(&settings.Telemetry.Listen, "listen", viper.GetString("telemetry.listen"), "Listen address and port of telemetry endpoint")

	// Bind flags to the viper settings
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}
