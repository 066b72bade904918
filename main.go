package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/vocalab/vococode-go/cmd"
	"github.com/vocalab/vococode-go/internal/conf"
	"github.com/vocalab/vococode-go/internal/logging"
)

func main() {
	logging.Init()

	settings, err := conf.Load()
	if err != nil {
		logging.Fatal("Error loading configuration", "error", err)
	}

	level := slog.LevelInfo
	if settings.Debug {
		level = slog.LevelDebug
	}

	if settings.Main.Log.Enabled {
		closeLog, err := logging.InitFile(settings.Main.Log.Path, level)
		if err != nil {
			logging.Fatal("Error opening log file", "path", settings.Main.Log.Path, "error", err)
		}
		defer closeLog() //nolint:errcheck
	} else {
		logging.SetLevel(level)
	}

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
