package rulesource

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"jobnorm/internal/model"
)

// Workbook reads rule feeds from a local xlsx file, one sheet per
// classification domain. The sheet name must equal the domain name.
type Workbook struct {
	path   string
	logger *slog.Logger
}

func NewWorkbook(path string, logger *slog.Logger) *Workbook {
	return &Workbook{path: path, logger: logger}
}

// Rules reads the sheet named after the domain.
func (w *Workbook) Rules(ctx context.Context, domain string) ([]model.MappingRule, error) {
	f, err := excelize.OpenFile(w.path)
	if err != nil {
		return nil, fmt.Errorf("open rule workbook %s: %w", w.path, err)
	}
	defer f.Close()

	grid, err := f.GetRows(domain)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q from %s: %w", domain, w.path, err)
	}

	rules, err := parseRows(grid, domain+" feed")
	if err != nil {
		return nil, err
	}
	w.logger.Debug("loaded rule feed", "domain", domain, "source", w.path, "rules", len(rules))
	return rules, nil
}
