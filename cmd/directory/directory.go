package directory

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sleeplessdev/voicedetect-go/internal/analysis"
	"github.com/sleeplessdev/voicedetect-go/internal/conf"
)

// Command creates the directory command for batch classification.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "directory [path]",
		Short: "Classify all audio files in a directory",
		Long:  "Classify every supported audio file (wav, flac, mp3) under a directory.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings.Input.Path = args[0]
			settings.Output.File.Enabled = cmd.Flags().Changed("output")

			// Ctrl-C stops the batch between files.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return analysis.DirectoryAnalysis(ctx, settings)
		},
	}

	// Set up flags specific to the 'directory' command
	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the directory command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVarP(&settings.Output.File.Path, "output", "o", "", "Path to output directory")
	cmd.Flags().StringVarP(&settings.Output.File.Type, "format", "f", "table", "Output format: table, csv or json")
	cmd.Flags().BoolVarP(&settings.Input.Recursive, "recursive", "r", false, "Recurse into subdirectories")

	// Bind flags to the viper settings
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}
