// Package ledger tracks which ingestion batches a pipeline has fully
// normalized, so a crashed run leaves its batches eligible for retry.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"jobnorm/internal/warehouse"
)

// Ledger appends start/finish records to the processed_loads table. It
// never rewrites history: re-starting an unfinished batch just adds another
// start row, and only finish rows matter for eligibility.
type Ledger struct {
	db     *sql.DB
	logger *slog.Logger
}

func New(db *sql.DB, logger *slog.Logger) *Ledger {
	return &Ledger{db: db, logger: logger}
}

// Start records that the named pipeline began processing the given batches.
// Duplicate load IDs in the input collapse to one entry each.
func (l *Ledger) Start(ctx context.Context, loadIDs []string, pipelineName string) error {
	return l.append(ctx, loadIDs, pipelineName, "started_at")
}

// Finish records successful completion. Call only after the merge into the
// analytical table succeeded.
func (l *Ledger) Finish(ctx context.Context, loadIDs []string, pipelineName string) error {
	return l.append(ctx, loadIDs, pipelineName, "finished_at")
}

func (l *Ledger) append(ctx context.Context, loadIDs []string, pipelineName, column string) error {
	unique := dedupe(loadIDs)
	if len(unique) == 0 {
		return nil
	}

	now := time.Now().Format(warehouse.TimeLayout)
	query := fmt.Sprintf(`INSERT INTO processed_loads (load_id, processed_by, %s) VALUES (?, ?, ?)`, column)

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ledger %s: %w", column, err)
	}
	for _, loadID := range unique {
		if _, err := tx.ExecContext(ctx, query, loadID, pipelineName, now); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("ledger %s for %s: %w", column, loadID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ledger %s commit: %w", column, err)
	}

	l.logger.Info("ledger updated",
		"pipeline", pipelineName,
		"column", column,
		"loads", len(unique),
	)
	return nil
}

func dedupe(ids []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
