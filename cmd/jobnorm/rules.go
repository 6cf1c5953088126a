package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"jobnorm/internal/audit"
	"jobnorm/internal/model"
	"jobnorm/internal/rules"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Browse classification rules interactively (TUI)",
	Long:  "Shows the domain picker TUI, then launches the split-pane rules browser with a live text tester.",
	RunE:  runRules,
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate every rule feed without the TUI",
	Long:  "Fetches each domain's rule feed, runs builder validation and prints the findings. Exits non-zero when any feed is invalid.",
	RunE:  runRulesValidate,
}

func init() {
	rulesCmd.AddCommand(rulesValidateCmd)
	rootCmd.AddCommand(rulesCmd)
}

func runRules(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// The TUI owns the terminal; any log output before the alt-screen
	// starts corrupts the display.
	silentLogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	httpClient := &http.Client{Timeout: cfg.Fetch.Timeout}
	src := setupRuleSource(cfg, httpClient, silentLogger)

	for {
		choice, err := audit.RunDomainPicker(ruleDomains)
		if err != nil {
			logger.Error("picker failed", "error", err)
			return nil
		}
		if choice < 0 {
			return nil
		}
		domain := ruleDomains[choice]

		set, err := audit.RunLoader(domain, func(ctx context.Context) (*rules.Set, error) {
			rows, err := src.Rules(ctx, domain)
			if err != nil {
				return nil, err
			}
			return rules.NewBuilder(domain, rows, silentLogger).Build()
		})
		if err != nil {
			logger.Error("failed to load rules", "domain", domain, "error", err)
			continue
		}

		wantQuit, err := audit.RunRulesTUI(set)
		if err != nil {
			logger.Error("TUI failed", "error", err)
		}
		if wantQuit {
			return nil
		}
		// else: loop → back to picker
	}
}

func runRulesValidate(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpClient := &http.Client{Timeout: cfg.Fetch.Timeout}
	src := setupRuleSource(cfg, httpClient, logger)

	return validateRuleFeeds(ctx, src, os.Stdout, logger)
}

// validateRuleFeeds builds every domain's rule set and writes one finding
// line per feed. Returns an error when any feed fails validation.
func validateRuleFeeds(ctx context.Context, src model.RuleSource, out io.Writer, logger *slog.Logger) error {
	invalid := 0
	for _, domain := range ruleDomains {
		set, err := buildRuleSet(ctx, src, domain, logger)
		if err != nil {
			invalid++
			fmt.Fprintf(out, "%s: INVALID: %v\n", domain, err)
			continue
		}
		fmt.Fprintf(out, "%s: ok (%d rules, %d labels)\n", domain, set.Len(), len(set.Results()))
	}

	if invalid > 0 {
		return fmt.Errorf("%d of %d rule feeds invalid", invalid, len(ruleDomains))
	}
	return nil
}
