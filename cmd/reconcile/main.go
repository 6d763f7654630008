package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/jadwal/internal/config"
	"github.com/fortuna/jadwal/internal/ingest"
	"github.com/fortuna/jadwal/internal/service"
)

const (
	appName    = "jadwal-reconcile"
	appVersion = "1.0.0"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to config.yaml (default ./config/config.yaml)")
		threshold  = flag.Float64("threshold", 0, "Override the match threshold (0..1)")
		only       = flag.String("only", "", "Comma-separated source names to run (default: all enabled)")
		dryRun     = flag.Bool("dry-run", false, "Dry run (do not write output files)")
		asJSON     = flag.Bool("json", false, "Print the run summary as JSON")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *threshold != 0 {
		cfg.Engine.Threshold = *threshold
	}
	if *only != "" {
		restrictSources(cfg, strings.Split(*only, ","))
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	logger := config.NewLogger(cfg.Log)
	logger.Infof("=== %s v%s ===", appName, appVersion)

	pipeline, err := service.NewPipeline(cfg, service.Options{DryRun: *dryRun}, logger)
	if err != nil {
		logger.WithError(err).Fatal("build pipeline")
	}
	defer pipeline.Close()

	logger.WithFields(logrus.Fields{
		"sources": strings.Join(pipeline.SourceNames(), ","),
		"dry_run": *dryRun,
	}).Info("Starting run")

	report, err := pipeline.Run(context.Background())
	if err != nil {
		logger.WithError(err).Error("❌ Run failed")
		pipeline.Close()
		os.Exit(1)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report.Summary()); err != nil {
			logger.WithError(err).Error("encode summary")
		}
		return
	}
	printReport(report)
}

// restrictSources disables every source not named in names
func restrictSources(cfg *config.Config, names []string) {
	keep := make(map[string]bool, len(names))
	for _, n := range names {
		keep[strings.TrimSpace(n)] = true
	}
	for i := range cfg.Sources {
		enabled := keep[cfg.Sources[i].Name]
		cfg.Sources[i].Enabled = &enabled
	}
}

func printReport(r *ingest.RunReport) {
	fmt.Printf("Run %s (%v)\n", r.ID, r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	fmt.Println()
	fmt.Printf("%-14s %8s  %s\n", "SOURCE", "RECORDS", "STATUS")
	for _, s := range r.Sources {
		status := "ok"
		if s.Error != "" {
			status = s.Error
		}
		fmt.Printf("%-14s %8d  %s\n", s.Name, s.Records, status)
	}
	fmt.Println()

	names := make([]string, 0, len(r.Metrics.PerSource))
	for name := range r.Metrics.PerSource {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Printf("%-14s %6s %6s %6s %6s %6s %6s %6s\n", "SOURCE", "SEED", "MERGE", "STRICT", "APPEND", "FORCE", "DROP", "REVIEW")
	for _, name := range names {
		m := r.Metrics.PerSource[name]
		fmt.Printf("%-14s %6d %6d %6d %6d %6d %6d %6d\n", name,
			m.Seeded, m.Merged, m.StrictMerged, m.Appended, m.Forced, m.Discarded, m.Reviewed)
	}
	fmt.Println()

	fmt.Printf("Fixtures: %d  Review: %d\n", len(r.Schedule), len(r.Review))
	if r.LogoError != "" {
		fmt.Printf("Enrichment skipped: %s\n", r.LogoError)
	} else {
		fmt.Printf("Enriched: %d\n", len(r.Enriched))
	}
}
