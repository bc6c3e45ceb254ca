package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/ealonsogzl/era5-fetcher/internal/cds"
	"github.com/ealonsogzl/era5-fetcher/internal/config"
	"github.com/ealonsogzl/era5-fetcher/internal/fetch"
	"github.com/ealonsogzl/era5-fetcher/internal/merge"
	"github.com/ealonsogzl/era5-fetcher/internal/model"
	"github.com/ealonsogzl/era5-fetcher/internal/planner"
	"github.com/rs/zerolog"
)

func main() {
	// Command line flags
	var (
		configFlag      = flag.String("config", "", "Path to JSON config file")
		productFlag     = flag.String("product", "", `Product type: "reanalysis" or "ensemble_members"`)
		startFlag       = flag.String("start", "", "Start date (YYYY-MM-DD)")
		endFlag         = flag.String("end", "", "End date (YYYY-MM-DD)")
		dirFlag         = flag.String("dir", "", "Output directory for monthly files")
		northFlag       = flag.Float64("north", 0, "North latitude of bounding box")
		southFlag       = flag.Float64("south", 0, "South latitude of bounding box")
		eastFlag        = flag.Float64("east", 0, "East longitude of bounding box")
		westFlag        = flag.Float64("west", 0, "West longitude of bounding box")
		stepFlag        = flag.Int("step", 0, "Temporal step in hours: 1, 3 or 6")
		concurrencyFlag = flag.Int("concurrency", 0, "Number of parallel downloads")
		kindFlag        = flag.String("kind", "", `Retrieval kind: "surf" or "plev"`)
		plevelsFlag     = flag.String("plevels", "", "Pressure levels in hPa, comma-separated (plev only)")
		yesFlag         = flag.Bool("yes", false, "Download missing files without asking")
		verboseFlag     = flag.Bool("verbose", false, "Show verbose output")
		logFlag         = flag.String("log", "", "Structured log file (default <dir>/era5_fetch.log)")
		mergeFlag       = flag.String("merge", "", `Merge monthly files instead of fetching: "simple" or "5d"`)
		tpmmFlag        = flag.Bool("tpmm", false, "Fetch the monthly precipitation means (tpmm.nc) instead of monthly files")
	)

	flag.Parse()

	if flag.NFlag() == 0 {
		fmt.Println("era5-dl - Download ERA5 climate forcing by calendar month")
		fmt.Println()
		fmt.Println("Usage:")
		fmt.Println("  era5-dl -start 2020-01-01 -end 2020-03-31 -dir ./forcing \\")
		fmt.Println("          -north 47 -south 45 -east 11 -west 9 -step 6 -kind surf")
		fmt.Println("  era5-dl -kind plev -plevels 700,500,300 ...")
		fmt.Println("  era5-dl -dir ./forcing -kind surf -merge simple")
		fmt.Println()
		fmt.Println("For an interactive run, use: era5-tui")
		fmt.Println()
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Load config, then apply explicitly set flags on top
	settings, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "product":
			settings.Product = model.ProductType(*productFlag)
		case "start":
			settings.StartDate = *startFlag
		case "end":
			settings.EndDate = *endFlag
		case "dir":
			settings.OutputDir = *dirFlag
		case "north":
			settings.BBox.North = *northFlag
		case "south":
			settings.BBox.South = *southFlag
		case "east":
			settings.BBox.East = *eastFlag
		case "west":
			settings.BBox.West = *westFlag
		case "step":
			settings.TimeStep = *stepFlag
		case "concurrency":
			settings.Concurrency = *concurrencyFlag
		case "kind":
			settings.Kind = model.Kind(*kindFlag)
		case "yes":
			settings.AutoConfirm = *yesFlag
		case "verbose":
			settings.Verbose = *verboseFlag
		case "log":
			settings.LogFile = *logFlag
		}
	})

	if *plevelsFlag != "" {
		levels, err := parseLevels(*plevelsFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		settings.PressureLevels = levels
	}

	// Merge is an offline step on already-downloaded files; no archive
	// client and no confirmation are involved.
	if *mergeFlag != "" {
		if err := merge.Merge(settings.OutputDir, settings.Kind, merge.Strategy(*mergeFlag)); err != nil {
			fmt.Fprintf(os.Stderr, "Error merging: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Merged %s files into %s\n",
			settings.Kind.Prefix(), filepath.Base(model.MergedPath(settings.OutputDir, settings.Kind)))
		return
	}

	// Handle interrupts
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nInterrupted, cancelling...")
		cancel()
	}()

	logger, closeLog := openLogger(settings)
	defer closeLog()

	client, err := cds.NewClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	manager := fetch.NewManager(settings, client, logger, func(event fetch.ProgressEvent) {
		if event.Level == fetch.LevelVerbose && !settings.Verbose {
			return
		}
		fmt.Println(prefixFor(event.Level) + event.Message)
	})

	if err := os.MkdirAll(settings.OutputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	if *tpmmFlag {
		if _, _, err := settings.Dates(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := manager.RetrieveMonthlyMeans(ctx); err != nil {
			exitFetchError(ctx, err)
		}
		return
	}

	plan, err := planner.Build(settings)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if len(plan) == 0 {
		fmt.Fprintln(os.Stderr, "Error: date range spans no complete month, nothing to plan")
		os.Exit(1)
	}

	fmt.Printf("---> Loading ERA5 %s climate forcing\n", settings.Kind)
	fmt.Printf("Start = %04d-%02d\n", plan[0].Year, plan[0].Month)
	fmt.Printf("End = %04d-%02d\n", plan[len(plan)-1].Year, plan[len(plan)-1].Month)

	_, pending := manager.Annotate(plan)

	if len(pending) == 0 {
		fmt.Println("All monthly files already present, nothing to download.")
		return
	}

	if err := manager.Confirm(pending); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := manager.Run(ctx, pending); err != nil {
		exitFetchError(ctx, err)
	}

	fetched, total := manager.Progress()
	fmt.Printf("Done. Downloaded %d/%d monthly files to %s\n", fetched, total, settings.OutputDir)
}

// prefixFor mirrors the progress levels as console markers.
func prefixFor(level fetch.ProgressLevel) string {
	switch level {
	case fetch.LevelError:
		return "ERROR: "
	case fetch.LevelWarning:
		return "WARN:  "
	case fetch.LevelSuccess:
		return "OK:    "
	case fetch.LevelInfo:
		return ""
	default:
		return "       "
	}
}

func exitFetchError(ctx context.Context, err error) {
	if ctx.Err() != nil {
		fmt.Println("\nDownload cancelled.")
		os.Exit(130)
	}
	var retrieval *model.RetrievalError
	if errors.As(err, &retrieval) {
		fmt.Fprintf(os.Stderr, "Error: %v\nRe-run after fixing the cause; completed files are kept.\n", err)
	} else {
		fmt.Fprintf(os.Stderr, "Error during download: %v\n", err)
	}
	os.Exit(1)
}

// openLogger opens the structured log sink, defaulting to
// era5_fetch.log in the output directory. Logging failures never stop
// a retrieval; the logger silently degrades to a no-op.
func openLogger(settings *config.Settings) (zerolog.Logger, func()) {
	path := settings.LogFile
	if path == "" {
		path = filepath.Join(settings.OutputDir, "era5_fetch.log")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return zerolog.Nop(), func() {}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return zerolog.Nop(), func() {}
	}

	logger := zerolog.New(file).With().Timestamp().Logger()
	return logger, func() { file.Close() }
}

func parseLevels(list string) ([]int, error) {
	var levels []int
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		level, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid pressure level %q", part)
		}
		levels = append(levels, level)
	}
	return levels, nil
}
