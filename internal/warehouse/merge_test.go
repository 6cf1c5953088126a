package warehouse

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"jobnorm/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open warehouse: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mustExec(t *testing.T, db *DB, query string, args ...any) {
	t.Helper()
	if _, err := db.Conn().Exec(query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}

func setupMergeTables(t *testing.T, db *DB) {
	mustExec(t, db, `CREATE TABLE dest (id TEXT PRIMARY KEY, val TEXT, extra TEXT)`)
	mustExec(t, db, `CREATE TABLE src (id TEXT, val TEXT, extra TEXT)`)
}

func TestMergeInsertsAndUpdates(t *testing.T) {
	db := openTestDB(t)
	setupMergeTables(t, db)

	mustExec(t, db, `INSERT INTO dest VALUES ('a', 'old', 'keep')`)
	mustExec(t, db, `INSERT INTO src VALUES ('a', 'new', 'ignored'), ('b', 'fresh', 'ignored')`)

	stats, err := db.Merge(context.Background(), "dest", "src",
		[]string{"id"}, []string{"val", "extra"}, []string{"val"}, true, discardLogger())
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if stats.Inserted != 1 || stats.Updated != 1 {
		t.Errorf("stats = %+v, want 1 inserted / 1 updated", stats)
	}

	var val, extra string
	if err := db.Conn().QueryRow(`SELECT val, extra FROM dest WHERE id = 'a'`).Scan(&val, &extra); err != nil {
		t.Fatal(err)
	}
	if val != "new" {
		t.Errorf("matched row not updated: val=%q", val)
	}
	if extra != "keep" {
		t.Errorf("column outside update set was touched: extra=%q", extra)
	}

	if err := db.Conn().QueryRow(`SELECT val, extra FROM dest WHERE id = 'b'`).Scan(&val, &extra); err != nil {
		t.Fatal(err)
	}
	if val != "fresh" || extra != "ignored" {
		t.Errorf("inserted row = %q/%q", val, extra)
	}
}

func TestMergeDuplicateSourceKeysFatal(t *testing.T) {
	db := openTestDB(t)
	setupMergeTables(t, db)
	mustExec(t, db, `INSERT INTO src VALUES ('a', '1', ''), ('a', '2', '')`)

	_, err := db.Merge(context.Background(), "dest", "src",
		[]string{"id"}, []string{"val"}, []string{"val"}, true, discardLogger())
	if err == nil {
		t.Fatal("expected duplicate-key error")
	}
}

func TestMergeDuplicateKeysDowngradedToWarning(t *testing.T) {
	db := openTestDB(t)
	setupMergeTables(t, db)
	mustExec(t, db, `INSERT INTO src VALUES ('a', '1', ''), ('a', '2', ''), ('b', '3', '')`)

	stats, err := db.Merge(context.Background(), "dest", "src",
		[]string{"id"}, []string{"val"}, nil, false, discardLogger())
	if err != nil {
		t.Fatalf("merge with raiseDuplicates=false: %v", err)
	}
	// The duplicated key collapses on conflict; both distinct keys land.
	var count int
	if err := db.Conn().QueryRow(`SELECT COUNT(1) FROM dest`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("dest rows = %d, want 2", count)
	}
	_ = stats
}

func TestMergeEmptyColumnSetsRejected(t *testing.T) {
	db := openTestDB(t)
	setupMergeTables(t, db)

	_, err := db.Merge(context.Background(), "dest", "src", []string{"id"}, nil, nil, true, discardLogger())
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestMergeUpdateOnly(t *testing.T) {
	db := openTestDB(t)
	setupMergeTables(t, db)
	mustExec(t, db, `INSERT INTO dest VALUES ('a', 'old', ''), ('b', 'old', '')`)
	mustExec(t, db, `INSERT INTO src VALUES ('a', 'new', ''), ('c', 'new', '')`)

	stats, err := db.Merge(context.Background(), "dest", "src",
		[]string{"id"}, nil, []string{"val"}, true, discardLogger())
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if stats.Inserted != 0 || stats.Updated != 1 {
		t.Errorf("stats = %+v, want 0 inserted / 1 updated", stats)
	}

	var count int
	if err := db.Conn().QueryRow(`SELECT COUNT(1) FROM dest`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("update-only merge inserted rows: count=%d", count)
	}
}
