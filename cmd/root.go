package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sleeplessdev/voicedetect-go/cmd/benchmark"
	"github.com/sleeplessdev/voicedetect-go/cmd/directory"
	"github.com/sleeplessdev/voicedetect-go/cmd/file"
	"github.com/sleeplessdev/voicedetect-go/cmd/serve"
	"github.com/sleeplessdev/voicedetect-go/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "voicedetect",
		Short:   "VoiceDetect-Go CLI",
		Long:    "Classify speech recordings as AI-generated or human, from the command line or as an HTTP service.",
		Version: settings.Version,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	// Add sub-commands to the root command.
	subcommands := []*cobra.Command{
		file.Command(settings),
		directory.Command(settings),
		serve.Command(settings),
		benchmark.Command(settings),
	}

	rootCmd.AddCommand(subcommands...)

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().Float64VarP(&settings.Detector.Boundary, "boundary", "b", viper.GetFloat64("detector.boundary"), "Decision boundary on the AI score, between 0.0 and 1.0")
	rootCmd.PersistentFlags().StringVarP(&settings.Input.Language, "language", "l", viper.GetString("detector.defaultlanguage"), "Language of the speech. Accepts full name or 2-letter code.")

	// Bind flags to the viper settings
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}
