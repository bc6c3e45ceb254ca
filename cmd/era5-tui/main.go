package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ealonsogzl/era5-fetcher/internal/cds"
	"github.com/ealonsogzl/era5-fetcher/internal/config"
	"github.com/ealonsogzl/era5-fetcher/internal/tui"
	"github.com/rs/zerolog"
)

func main() {
	configFlag := flag.String("config", "era5.json", "Path to JSON config file")
	flag.Parse()

	settings, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := settings.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(settings.OutputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	client, err := cds.NewClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := zerolog.Nop()
	logPath := settings.LogFile
	if logPath == "" {
		logPath = filepath.Join(settings.OutputDir, "era5_fetch.log")
	}
	if file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
		defer file.Close()
		logger = zerolog.New(file).With().Timestamp().Logger()
	}

	if err := tui.Run(settings, client, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		os.Exit(1)
	}
}
