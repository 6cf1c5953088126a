package warehouse

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"jobnorm/internal/model"
)

// InsertLoad registers a freshly staged ingestion batch with status 0.
func (d *DB) InsertLoad(ctx context.Context, loadID string) error {
	_, err := d.conn.ExecContext(ctx,
		`INSERT INTO loads (load_id, status) VALUES (?, 0)`, loadID)
	if err != nil {
		return fmt.Errorf("insert load %s: %w", loadID, err)
	}
	return nil
}

// InsertRawPostings appends staged rows to jobs_posting in one transaction.
func (d *DB) InsertRawPostings(ctx context.Context, postings []model.RawPosting) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert postings: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO jobs_posting
		(load_id, row_id, company, city, title, occupation, url, portal, experience_months, date_created, description, locale)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert postings: %w", err)
	}
	defer stmt.Close()

	for _, p := range postings {
		_, err := stmt.ExecContext(ctx,
			p.LoadID, p.RowID, p.Company, p.City, p.Title, p.Occupation,
			p.URL, p.Portal, p.ExperienceMonths,
			p.DateCreated.Format(DateLayout), p.Description, p.Locale,
		)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert posting %s: %w", p.RowID, err)
		}
	}
	return tx.Commit()
}

// PendingPostings returns every raw row belonging to a load that has no
// finished ledger entry for the given pipeline, filtered to one locale.
// Rows come back ordered by (load_id, row_id) so downstream tie-breaking
// is deterministic across runs.
func (d *DB) PendingPostings(ctx context.Context, pipelineName, locale string) ([]model.RawPosting, error) {
	query := `
WITH processed AS (
  SELECT load_id
  FROM processed_loads
  WHERE processed_by = ?
  GROUP BY load_id
  HAVING MAX(finished_at) IS NOT NULL
)
SELECT jp.load_id, jp.row_id, jp.company, jp.city, jp.title, jp.occupation,
       jp.url, jp.portal, jp.experience_months, jp.date_created, jp.description, jp.locale
FROM jobs_posting jp
JOIN loads l ON l.load_id = jp.load_id AND l.status = 0
LEFT JOIN processed p ON p.load_id = jp.load_id
WHERE p.load_id IS NULL
  AND jp.locale = ?
ORDER BY jp.load_id, jp.row_id`

	rows, err := d.conn.QueryContext(ctx, query, pipelineName, locale)
	if err != nil {
		return nil, fmt.Errorf("query pending postings: %w", err)
	}
	defer rows.Close()

	var out []model.RawPosting
	for rows.Next() {
		var p model.RawPosting
		var dateCreated string
		err := rows.Scan(&p.LoadID, &p.RowID, &p.Company, &p.City, &p.Title, &p.Occupation,
			&p.URL, &p.Portal, &p.ExperienceMonths, &dateCreated, &p.Description, &p.Locale)
		if err != nil {
			return nil, fmt.Errorf("scan pending posting: %w", err)
		}
		p.DateCreated, err = time.Parse(DateLayout, dateCreated)
		if err != nil {
			return nil, fmt.Errorf("parse date_created %q: %w", dateCreated, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ReplaceJobsBatch truncates jobs_batch and writes the canonical rows.
// Multi-valued attributes are stored as JSON arrays.
func (d *DB) ReplaceJobsBatch(ctx context.Context, rows []model.CanonicalPosting) error {
	return d.inTx(ctx, "jobs_batch", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO jobs_batch
			(id, date_created, company, url, portal, years_of_experience, description, city_clusters, positions, skills)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range rows {
			clusters, err := jsonLabels(r.CityClusters)
			if err != nil {
				return err
			}
			positions, err := jsonLabels(r.Positions)
			if err != nil {
				return err
			}
			skills, err := jsonLabels(r.Skills)
			if err != nil {
				return err
			}
			_, err = stmt.ExecContext(ctx, r.ID, r.DateCreated.Format(DateLayout),
				r.Company, r.URL, r.Portal, r.YearsOfExperience, r.Description,
				clusters, positions, skills)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplacePositionsBatch truncates and rewrites the positions side table.
func (d *DB) ReplacePositionsBatch(ctx context.Context, rows []model.PositionRow) error {
	return d.inTx(ctx, "jobs_positions_batch", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO jobs_positions_batch
			(posting_id, title_raw, occupation_raw, position) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx, r.PostingID, r.TitleRaw, r.OccupationRaw, r.Position); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplaceCityClustersBatch truncates and rewrites the city-cluster side table.
func (d *DB) ReplaceCityClustersBatch(ctx context.Context, rows []model.CityClusterRow) error {
	return d.inTx(ctx, "jobs_city_clusters_batch", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO jobs_city_clusters_batch
			(posting_id, city_raw, city_cluster) VALUES (?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx, r.PostingID, r.CityRaw, r.CityCluster); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplaceSkillsBatch truncates and rewrites the skills side table.
func (d *DB) ReplaceSkillsBatch(ctx context.Context, rows []model.SkillRow) error {
	return d.inTx(ctx, "jobs_skills_batch", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO jobs_skills_batch
			(posting_id, skill) VALUES (?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx, r.PostingID, r.Skill); err != nil {
				return err
			}
		}
		return nil
	})
}

// AppendIDMappings appends dedup mapping rows. The table is append-only:
// entries from earlier runs are never touched.
func (d *DB) AppendIDMappings(ctx context.Context, rows []model.IDMapping) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append id mappings: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO job_id_matching
		(row_id, posting_id, is_source, matched_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare append id mappings: %w", err)
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.RowID, r.PostingID, r.IsSource, r.MatchedAt.Format(TimeLayout)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("append id mapping %s: %w", r.RowID, err)
		}
	}
	return tx.Commit()
}

// inTx truncates the named table and runs fn inside one transaction, so a
// failed rewrite never leaves the staging table half-filled.
func (d *DB) inTx(ctx context.Context, table string, fn func(tx *sql.Tx) error) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rewrite %s: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("truncate %s: %w", table, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("rewrite %s: %w", table, err)
	}
	return tx.Commit()
}

func jsonLabels(labels []string) (string, error) {
	if labels == nil {
		labels = []string{}
	}
	raw, err := json.Marshal(labels)
	if err != nil {
		return "", fmt.Errorf("marshal labels: %w", err)
	}
	return string(raw), nil
}
