package rulesource

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"net/http"

	"jobnorm/internal/model"
)

// SheetExport fetches rule feeds published as CSV exports, e.g. a shared
// Google Sheet with one export URL per domain.
type SheetExport struct {
	urls   map[string]string
	client *http.Client
	logger *slog.Logger
}

func NewSheetExport(urls map[string]string, client *http.Client, logger *slog.Logger) *SheetExport {
	return &SheetExport{urls: urls, client: client, logger: logger}
}

// Rules downloads and parses the CSV export configured for the domain.
func (s *SheetExport) Rules(ctx context.Context, domain string) ([]model.MappingRule, error) {
	url, ok := s.urls[domain]
	if !ok {
		return nil, &model.ValidationError{Subject: domain + " feed", Reason: "no export url configured"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("rule feed fetch for %s: %w", domain, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rule feed fetch for %s: %w", domain, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &model.HTTPError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("rule feed fetch for %s: unexpected status %d", domain, resp.StatusCode),
		}
	}

	reader := csv.NewReader(resp.Body)
	reader.FieldsPerRecord = -1
	grid, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("rule feed fetch for %s: %w", domain, err)
	}

	rules, err := parseRows(grid, domain+" feed")
	if err != nil {
		return nil, err
	}
	s.logger.Debug("loaded rule feed", "domain", domain, "source", url, "rules", len(rules))
	return rules, nil
}
