package warehouse

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"jobnorm/internal/model"
)

// MergeStats reports what a merge did, for run summaries and logs.
type MergeStats struct {
	Inserted int64
	Updated  int64
}

// Merge upserts source into destination keyed on keyColumns. Matched rows
// update updateColumns; unmatched rows insert the key columns plus
// insertColumns. Both tables are checked for duplicate keys first: a
// violation is fatal when raiseDuplicates is set, otherwise logged.
func (d *DB) Merge(
	ctx context.Context,
	destination, source string,
	keyColumns, insertColumns, updateColumns []string,
	raiseDuplicates bool,
	logger *slog.Logger,
) (MergeStats, error) {
	if len(insertColumns) == 0 && len(updateColumns) == 0 {
		return MergeStats{}, &model.ValidationError{
			Subject: "merge " + source + " into " + destination,
			Reason:  "at least one of insert_columns, update_columns must be non-empty",
		}
	}
	if len(keyColumns) == 0 {
		return MergeStats{}, &model.ValidationError{
			Subject: "merge " + source + " into " + destination,
			Reason:  "key_columns must be non-empty",
		}
	}

	for _, table := range []string{source, destination} {
		if err := d.checkDuplicates(ctx, table, keyColumns, raiseDuplicates, logger); err != nil {
			return MergeStats{}, err
		}
	}

	stats, err := d.countMatches(ctx, destination, source, keyColumns)
	if err != nil {
		return MergeStats{}, err
	}

	query := buildMergeQuery(destination, source, keyColumns, insertColumns, updateColumns)
	logger.Debug("executing merge", "query", query)
	if _, err := d.conn.ExecContext(ctx, query); err != nil {
		return MergeStats{}, fmt.Errorf("merge %s into %s: %w", source, destination, err)
	}

	if len(insertColumns) == 0 {
		stats.Inserted = 0
	}
	if len(updateColumns) == 0 {
		stats.Updated = 0
	}
	logger.Info("merged batch",
		"source", source,
		"destination", destination,
		"key_columns", strings.Join(keyColumns, ","),
		"inserted", stats.Inserted,
		"updated", stats.Updated,
	)
	return stats, nil
}

// checkDuplicates counts key groups occurring more than once in table.
func (d *DB) checkDuplicates(ctx context.Context, table string, keyColumns []string, raise bool, logger *slog.Logger) error {
	query := fmt.Sprintf(`SELECT COUNT(1) FROM (SELECT 1 FROM %s GROUP BY %s HAVING COUNT(1) > 1)`,
		table, strings.Join(keyColumns, ", "))

	var count int64
	if err := d.conn.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return fmt.Errorf("check duplicates in %s: %w", table, err)
	}
	if count == 0 {
		return nil
	}
	if raise {
		return fmt.Errorf("found %d duplicated keys in %s based on key (%s)", count, table, strings.Join(keyColumns, ", "))
	}
	logger.Warn("duplicate keys in merge input",
		"table", table,
		"duplicates", count,
		"key_columns", strings.Join(keyColumns, ","),
	)
	return nil
}

// countMatches splits the source row count into future updates (key already
// in destination) and inserts, before the merge mutates the destination.
func (d *DB) countMatches(ctx context.Context, destination, source string, keyColumns []string) (MergeStats, error) {
	var on []string
	for _, col := range keyColumns {
		on = append(on, fmt.Sprintf("t.%s = s.%s", col, col))
	}

	var total, matched int64
	if err := d.conn.QueryRowContext(ctx, `SELECT COUNT(1) FROM `+source).Scan(&total); err != nil {
		return MergeStats{}, fmt.Errorf("count source rows: %w", err)
	}
	query := fmt.Sprintf(`SELECT COUNT(1) FROM %s s WHERE EXISTS (SELECT 1 FROM %s t WHERE %s)`,
		source, destination, strings.Join(on, " AND "))
	if err := d.conn.QueryRowContext(ctx, query).Scan(&matched); err != nil {
		return MergeStats{}, fmt.Errorf("count matched rows: %w", err)
	}
	return MergeStats{Inserted: total - matched, Updated: matched}, nil
}

// buildMergeQuery renders the conditional upsert. Three shapes:
// insert+update (full upsert), insert-only (conflicts ignored) and
// update-only (no insert branch at all).
func buildMergeQuery(destination, source string, keyColumns, insertColumns, updateColumns []string) string {
	// Update columns never include keys.
	var updates []string
	for _, col := range updateColumns {
		if contains(keyColumns, col) {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", col, col))
	}

	if len(insertColumns) == 0 {
		// Update-only merge.
		var sets []string
		for _, col := range updateColumns {
			if contains(keyColumns, col) {
				continue
			}
			sets = append(sets, fmt.Sprintf("%s = s.%s", col, col))
		}
		var on []string
		for _, col := range keyColumns {
			on = append(on, fmt.Sprintf("%s.%s = s.%s", destination, col, col))
		}
		return fmt.Sprintf("UPDATE %s SET %s FROM %s AS s WHERE %s",
			destination, strings.Join(sets, ", "), source, strings.Join(on, " AND "))
	}

	// Inserted columns are the keys plus the listed insert columns.
	cols := make([]string, 0, len(keyColumns)+len(insertColumns))
	cols = append(cols, keyColumns...)
	for _, col := range insertColumns {
		if !contains(cols, col) {
			cols = append(cols, col)
		}
	}
	colList := strings.Join(cols, ", ")

	conflict := "DO NOTHING"
	if len(updates) > 0 {
		conflict = "DO UPDATE SET " + strings.Join(updates, ", ")
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s WHERE TRUE ON CONFLICT(%s) %s",
		destination, colList, colList, source, strings.Join(keyColumns, ", "), conflict)
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
