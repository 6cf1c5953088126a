package loader

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"jobnorm/internal/warehouse"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeFetcher serves canned pages by number; missing pages come back empty.
type fakeFetcher struct {
	pages map[int]string
	calls []int
}

func (f *fakeFetcher) FetchPage(_ context.Context, page int) ([]byte, error) {
	f.calls = append(f.calls, page)
	body, ok := f.pages[page]
	if !ok {
		return []byte(`{"result":[]}`), nil
	}
	return []byte(body), nil
}

type fakeCounter struct{ pages int }

func (c *fakeCounter) CountPages(_ context.Context) (int, error) { return c.pages, nil }

// memorySink records every staged payload by key.
type memorySink struct {
	objects map[string][]byte
}

func (s *memorySink) Put(_ context.Context, key string, body []byte) error {
	if s.objects == nil {
		s.objects = map[string][]byte{}
	}
	s.objects[key] = body
	return nil
}

func pageJSON(titles ...string) string {
	out := `{"result":[`
	for i, title := range titles {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf(`{"company":"Acme","city":"Berlin","title":%q,"locale":"de","dateCreated":"2025-01-03","jsonLD":{"description":"Build things","experienceRequirements":{"monthsOfExperience":13}}}`, title)
	}
	return out + `]}`
}

func openDB(t *testing.T) *warehouse.DB {
	t.Helper()
	db, err := warehouse.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunStagesAllPages(t *testing.T) {
	db := openDB(t)
	fetcher := &fakeFetcher{pages: map[int]string{
		1: pageJSON("Data Engineer"),
		2: pageJSON("Data Analyst", "ML Engineer"),
	}}
	sink := &memorySink{}
	l := New(fetcher, &fakeCounter{pages: 2}, sink, db, discardLogger())

	res, err := l.Run(context.Background(), "2025-01-03", 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Pages != 2 || res.Rows != 3 {
		t.Errorf("pages/rows = %d/%d, want 2/3", res.Pages, res.Rows)
	}
	if res.LoadID == "" {
		t.Error("load id must be minted")
	}
	if len(sink.objects) != 2 {
		t.Errorf("archived objects = %d, want 2", len(sink.objects))
	}
	if _, ok := sink.objects["raw/jobs/2025_01/2025_01_03_page_2.json"]; !ok {
		t.Errorf("missing archive key, got %v", keys(sink.objects))
	}

	var rows int
	if err := db.Conn().QueryRow(`SELECT COUNT(1) FROM jobs_posting WHERE load_id = ?`, res.LoadID).Scan(&rows); err != nil {
		t.Fatal(err)
	}
	if rows != 3 {
		t.Errorf("warehouse rows = %d, want 3", rows)
	}

	var months float64
	err = db.Conn().QueryRow(`SELECT experience_months FROM jobs_posting WHERE title = 'Data Engineer'`).Scan(&months)
	if err != nil {
		t.Fatal(err)
	}
	if months != 13 {
		t.Errorf("experience_months = %v, want 13 (hoisted from jsonLD)", months)
	}
}

func TestRunStopsOnEmptyPage(t *testing.T) {
	db := openDB(t)
	fetcher := &fakeFetcher{pages: map[int]string{1: pageJSON("Data Engineer")}}
	l := New(fetcher, &fakeCounter{pages: 5}, &memorySink{}, db, discardLogger())

	res, err := l.Run(context.Background(), "2025-01-03", 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Rows != 1 {
		t.Errorf("rows = %d, want 1", res.Rows)
	}
	// Page 2 came back empty, pages 3-5 must not be requested.
	if len(fetcher.calls) != 2 {
		t.Errorf("fetch calls = %v, want pages 1 and 2 only", fetcher.calls)
	}
}

func TestRunWalksExplicitRangePastEmptyPages(t *testing.T) {
	db := openDB(t)
	fetcher := &fakeFetcher{pages: map[int]string{
		1: pageJSON("Data Engineer"),
		3: pageJSON("Data Analyst"),
	}}
	l := New(fetcher, &fakeCounter{pages: 99}, &memorySink{}, db, discardLogger())

	// Explicit end page: the empty page 2 is skipped, not a stop signal.
	res, err := l.Run(context.Background(), "2025-01-03", 1, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(fetcher.calls) != 3 {
		t.Errorf("fetch calls = %v, want pages 1-3", fetcher.calls)
	}
	if res.Pages != 2 || res.Rows != 2 {
		t.Errorf("pages/rows = %d/%d, want 2/2", res.Pages, res.Rows)
	}
}

func TestRunWithNoDataLeavesWarehouseUntouched(t *testing.T) {
	db := openDB(t)
	l := New(&fakeFetcher{}, &fakeCounter{pages: 1}, &memorySink{}, db, discardLogger())

	res, err := l.Run(context.Background(), "2025-01-03", 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Rows != 0 {
		t.Errorf("rows = %d, want 0", res.Rows)
	}

	var loads int
	if err := db.Conn().QueryRow(`SELECT COUNT(1) FROM loads`).Scan(&loads); err != nil {
		t.Fatal(err)
	}
	if loads != 0 {
		t.Errorf("loads = %d, want 0 for an empty run", loads)
	}
}

func keys(m map[string][]byte) []string {
	var out []string
	for k := range m {
		out = append(out, k)
	}
	return out
}
