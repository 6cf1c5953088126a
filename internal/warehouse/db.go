// Package warehouse owns every table the pipeline reads or writes: raw
// staging, the processing ledger, batch staging tables and the long-lived
// analytical jobs table.
package warehouse

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Layouts for persisted temporal values.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "2006-01-02T15:04:05Z07:00"
)

type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the warehouse database at path and ensures the
// schema exists. Pass ":memory:" for an ephemeral database.
func Open(path string) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

// Conn exposes the underlying handle for collaborators that manage their
// own tables on the same database (the batch ledger).
func (d *DB) Conn() *sql.DB {
	return d.conn
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS loads (
  load_id TEXT PRIMARY KEY,
  status INTEGER NOT NULL DEFAULT 0,
  created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS jobs_posting (
  load_id TEXT NOT NULL,
  row_id TEXT PRIMARY KEY,
  company TEXT,
  city TEXT,
  title TEXT,
  occupation TEXT,
  url TEXT,
  portal TEXT,
  experience_months REAL,
  date_created TEXT NOT NULL,
  description TEXT,
  locale TEXT NOT NULL,
  FOREIGN KEY(load_id) REFERENCES loads(load_id)
);
CREATE INDEX IF NOT EXISTS idx_jobs_posting_load ON jobs_posting(load_id);

CREATE TABLE IF NOT EXISTS processed_loads (
  load_id TEXT NOT NULL,
  processed_by TEXT NOT NULL,
  started_at TEXT,
  finished_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_processed_loads_load ON processed_loads(load_id, processed_by);

CREATE TABLE IF NOT EXISTS job_id_matching (
  row_id TEXT NOT NULL,
  posting_id TEXT NOT NULL,
  is_source INTEGER NOT NULL,
  matched_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS jobs_batch (
  id TEXT NOT NULL,
  date_created TEXT NOT NULL,
  company TEXT,
  url TEXT,
  portal TEXT,
  years_of_experience INTEGER,
  description TEXT,
  city_clusters TEXT NOT NULL,
  positions TEXT NOT NULL,
  skills TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS jobs_positions_batch (
  posting_id TEXT NOT NULL,
  title_raw TEXT,
  occupation_raw TEXT,
  position TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS jobs_city_clusters_batch (
  posting_id TEXT NOT NULL,
  city_raw TEXT,
  city_cluster TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS jobs_skills_batch (
  posting_id TEXT NOT NULL,
  skill TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS jobs (
  id TEXT PRIMARY KEY,
  date_created TEXT NOT NULL,
  company TEXT,
  url TEXT,
  portal TEXT,
  years_of_experience INTEGER,
  description TEXT,
  city_clusters TEXT NOT NULL,
  positions TEXT NOT NULL,
  skills TEXT NOT NULL
);
`
	_, err := d.conn.Exec(schema)
	return err
}
