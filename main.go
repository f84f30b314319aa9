package main

import (
	"fmt"
	"os"

	"github.com/sleeplessdev/voicedetect-go/cmd"
	"github.com/sleeplessdev/voicedetect-go/internal/conf"
	"github.com/sleeplessdev/voicedetect-go/internal/logging"
)

// version and buildDate are populated by the linker at build time:
//
//	go build -ldflags "-X main.version=... -X main.buildDate=..."
var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	logging.Init()

	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}
	settings.Version = version
	settings.BuildDate = buildDate

	if err := cmd.RootCommand(settings).Execute(); err != nil {
		os.Exit(1)
	}
}
