package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/examforge/harvester/internal/pipeline"
	"github.com/examforge/harvester/internal/sources"
	"github.com/examforge/harvester/pkg/logging"
	"github.com/examforge/harvester/pkg/question"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to YAML configuration file")
		sourcesFlag = flag.String("sources", "all", "comma-separated source names, or 'all'")
		subjects    = flag.String("subjects", "all", "comma-separated subjects, or 'all'")
		output      = flag.String("output", "", "output directory for exports")
		dbPath      = flag.String("db", "", "SQLite corpus database path")
		doImport    = flag.Bool("import", false, "import validated questions into the corpus database")
		dryRun      = flag.Bool("dry-run", false, "print intended targets without fetching anything")
		skipValid   = flag.Bool("skip-validation", false, "export every normalized question, bypassing validation and dedup")
		delay       = flag.Duration("delay", 0, "override per-source politeness delay")
		verbose     = flag.Bool("verbose", false, "debug logging to console")
	)
	flag.Parse()

	// Local .env files are optional
	godotenv.Load()

	config, err := buildConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	if *sourcesFlag != "all" && *sourcesFlag != "" {
		config.Crawl.Sources = splitCSV(*sourcesFlag)
	}
	if *subjects != "all" && *subjects != "" {
		for _, s := range splitCSV(*subjects) {
			config.Crawl.Subjects = append(config.Crawl.Subjects, question.Subject(s))
		}
	}
	if *output != "" {
		config.Export.OutputDir = *output
	}
	if *dbPath != "" {
		config.Store.Path = *dbPath
	}
	if *doImport {
		config.Store.Enabled = true
	}
	if *delay > 0 {
		config.Fetch.MinDelay = *delay
	}
	config.DryRun = *dryRun
	if *skipValid {
		config.SkipValidation = true
	}
	if *verbose {
		config.Logging.Level = "debug"
		config.Logging.Format = "pretty"
	}

	if err := config.Check(); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	if err := logging.SetupLogger(config.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	registry := sources.DefaultRegistry()
	orchestrator, err := pipeline.NewOrchestrator(config, registry, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	orchestrator.Bus().Subscribe(nil, logProgress)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := orchestrator.Run(ctx)
	if err != nil {
		// Run-level failures are configuration or environment problems
		log.Error().Err(err).Msg("Harvest run failed")
		os.Exit(1)
	}

	printSummary(stats, config.DryRun)
}

// buildConfig loads the config file when given, defaults otherwise
func buildConfig(path string) (*pipeline.Config, error) {
	if path == "" {
		return pipeline.DefaultConfig(), nil
	}
	return pipeline.LoadConfig(path)
}

// logProgress turns run events into log lines as units finish
func logProgress(e *pipeline.RunEvent) {
	logger := logging.GetLogger("progress")
	switch e.Type {
	case pipeline.EventUnitCompleted, pipeline.EventPDFCompleted:
		logger.Info().
			Str("source", e.Source).
			Str("subject", string(e.Subject)).
			Int("questions", e.Questions).
			Msg("Unit finished")
	case pipeline.EventUnitFailed:
		logger.Warn().
			Str("source", e.Source).
			Str("subject", string(e.Subject)).
			Str("error", e.Error).
			Msg("Unit failed")
	}
}

func printSummary(stats *pipeline.RunStats, dryRun bool) {
	fmt.Printf("\nRun %s finished in %.1fs\n", stats.RunID, durationSeconds(stats))
	if dryRun {
		fmt.Printf("  dry run: %d targets, nothing fetched\n", len(stats.Planned))
		for _, target := range stats.Planned {
			fmt.Printf("  %s/%s:\n", target.Source, target.Subject)
			for _, url := range target.URLs {
				fmt.Printf("    %s\n", url)
			}
		}
		return
	}
	fmt.Printf("  crawl units:   %d (%d with errors)\n", stats.UnitsRun, stats.UnitsWithError)
	if stats.PDFJobsRun > 0 {
		fmt.Printf("  pdf jobs:      %d (%d failed)\n", stats.PDFJobsRun, stats.PDFJobsFailed)
	}
	fmt.Printf("  raw questions: %d\n", stats.RawQuestions)
	fmt.Printf("  normalized:    %d (%d malformed dropped)\n", stats.Normalized, stats.DroppedMalformed)
	fmt.Printf("  valid:         %d (%d invalid, %d duplicates)\n", stats.Valid, stats.Invalid, stats.Duplicates)
	fmt.Printf("  quality:       %d high / %d low\n", stats.HighQuality, stats.LowQuality)
	if stats.CorpusPath != "" {
		fmt.Printf("  corpus:        %s\n", stats.CorpusPath)
	}
	if stats.Inserted > 0 || stats.Updated > 0 {
		fmt.Printf("  imported:      %d new, %d refreshed\n", stats.Inserted, stats.Updated)
	}
	for _, e := range stats.Errors {
		fmt.Printf("  error: %s\n", e)
	}
}

func durationSeconds(stats *pipeline.RunStats) float64 {
	if stats.CompletedAt == nil {
		return 0
	}
	return stats.CompletedAt.Sub(stats.StartedAt).Seconds()
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
