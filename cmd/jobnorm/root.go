package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"jobnorm/internal/config"
	"jobnorm/internal/model"
	"jobnorm/internal/notifier"
	"jobnorm/internal/rules"
	"jobnorm/internal/rulesource"
	"jobnorm/internal/stage"
)

var (
	cfgPath string
	debug   bool
)

// Rule feed domains, in the order the pipeline consumes them.
var ruleDomains = []string{"positions", "city_clusters", "skills"}

var rootCmd = &cobra.Command{
	Use:   "jobnorm",
	Short: "Job postings normalization pipeline",
	Long:  "jobnorm ingests raw job postings, deduplicates them by content fingerprint and classifies them into positions, city clusters and skills.",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: JOBNORM_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > JOBNORM_CONFIG env var > "./config.yaml"
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if env := os.Getenv("JOBNORM_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

func setupNotifier(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) model.Notifier {
	switch cfg.Notification.Type {
	case "slack":
		logger.Info("using slack notifier")
		return notifier.NewSlackNotifier(cfg.Notification.WebhookURL, httpClient, logger)
	default:
		return notifier.NewLogNotifier(logger)
	}
}

func setupRuleSource(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) model.RuleSource {
	if cfg.Rules.Source == "sheet" {
		return rulesource.NewSheetExport(cfg.Rules.ExportURLs, httpClient, logger)
	}
	return rulesource.NewWorkbook(cfg.Rules.Workbook, logger)
}

func setupSink(ctx context.Context, cfg *config.Config, logger *slog.Logger) (model.PayloadSink, error) {
	if cfg.Stage.Type == "s3" {
		return stage.NewS3Sink(ctx, cfg.Stage.Bucket, cfg.Stage.Prefix, cfg.Stage.Region, logger)
	}
	return stage.NewDirSink(cfg.Stage.Dir, logger), nil
}

// buildRuleSet fetches one domain's feed and prepares it for matching.
func buildRuleSet(ctx context.Context, src model.RuleSource, domain string, logger *slog.Logger) (*rules.Set, error) {
	rows, err := src.Rules(ctx, domain)
	if err != nil {
		return nil, err
	}
	return rules.NewBuilder(domain, rows, logger).Build()
}
