package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"jobnorm/internal/fetch"
	"jobnorm/internal/loader"
	"jobnorm/internal/ratelimit"
	"jobnorm/internal/retry"
	"jobnorm/internal/warehouse"
)

var loadDate string

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Fetch postings and stage them in the warehouse",
	Long:  "Walks the paginated search API for one creation date, archives every raw page and appends the postings to the raw warehouse table under a new load id.",
	RunE:  runLoad,
}

func init() {
	loadCmd.Flags().StringVar(&loadDate, "date", "", "creation date to query (YYYY-MM-DD, default: today minus pipeline.delta_days)")
	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	dateCreated := loadDate
	if dateCreated == "" {
		dateCreated = time.Now().AddDate(0, 0, -cfg.Pipeline.DeltaDays).Format(warehouse.DateLayout)
	}
	logger.Info("config loaded",
		"pipeline", cfg.Pipeline.Name,
		"date_created", dateCreated,
		"pages", cfg.API.EndPage,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := warehouse.Open(cfg.Warehouse.Path)
	if err != nil {
		logger.Error("failed to open warehouse", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	sink, err := setupSink(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to set up payload sink", "error", err)
		os.Exit(1)
	}

	httpClient := &http.Client{Timeout: cfg.Fetch.Timeout}
	client := fetch.NewClient(
		cfg.API.SearchURL, cfg.API.CountURL, cfg.API.Key, cfg.API.Host,
		fetch.Query{
			DateCreated: dateCreated,
			CountryCode: cfg.API.CountryCode,
			Title:       cfg.API.Title,
			Locale:      cfg.API.Locale,
		},
		httpClient, logger,
	)

	// Pace every page request, retry transient failures around the pacing.
	paced := ratelimit.NewPacedFetcher(client, ratelimit.NewLimiter(cfg.Fetch.MinDelay))
	fetcher := retry.NewFetcher(paced, cfg.Fetch.MaxRetries, cfg.Fetch.BaseDelay, logger)

	l := loader.New(fetcher, client, sink, db, logger)
	res, err := l.Run(ctx, dateCreated, cfg.API.StartPage, cfg.API.EndPage)
	if err != nil {
		logger.Error("load failed", "error", err)
		os.Exit(1)
	}

	logger.Info("load complete", "load_id", res.LoadID, "pages", res.Pages, "rows", res.Rows)
	return nil
}
