package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"jobnorm/internal/ledger"
	"jobnorm/internal/pipeline"
	"jobnorm/internal/warehouse"
)

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Normalize staged postings into the analytical table",
	Long:  "Deduplicates all not-yet-processed loads, classifies the canonical postings and merges them into the jobs table. Safe to re-run: finished loads are skipped.",
	RunE:  runTransform,
}

func init() {
	rootCmd.AddCommand(transformCmd)
}

func runTransform(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := warehouse.Open(cfg.Warehouse.Path)
	if err != nil {
		logger.Error("failed to open warehouse", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	httpClient := &http.Client{Timeout: cfg.Fetch.Timeout}
	src := setupRuleSource(cfg, httpClient, logger)

	positions, err := buildRuleSet(ctx, src, "positions", logger)
	if err != nil {
		logger.Error("failed to build positions rules", "error", err)
		os.Exit(1)
	}
	cities, err := buildRuleSet(ctx, src, "city_clusters", logger)
	if err != nil {
		logger.Error("failed to build city cluster rules", "error", err)
		os.Exit(1)
	}
	skills, err := buildRuleSet(ctx, src, "skills", logger)
	if err != nil {
		logger.Error("failed to build skills rules", "error", err)
		os.Exit(1)
	}

	led := ledger.New(db.Conn(), logger)
	tr := pipeline.NewTransform(
		cfg.Pipeline.Name, cfg.Pipeline.Locale,
		db, led, positions, cities, skills, logger,
	)

	summary, err := tr.Run(ctx)
	if err != nil {
		logger.Error("transform failed", "error", err)
		os.Exit(1)
	}

	n := setupNotifier(cfg, httpClient, logger)
	if err := n.NotifyRun(summary); err != nil {
		logger.Error("run notification failed", "error", err)
	}
	return nil
}
