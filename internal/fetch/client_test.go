package fetch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"jobnorm/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFetchPagePassesQueryAndAuth(t *testing.T) {
	var gotPage, gotDate, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPage = r.URL.Query().Get("page")
		gotDate = r.URL.Query().Get("dateCreated")
		gotKey = r.Header.Get("x-rapidapi-key")
		io.WriteString(w, `{"result":[]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL, "secret", "api.example.com",
		Query{DateCreated: "2025-01-01", CountryCode: "de", Locale: "en_DE"},
		srv.Client(), discardLogger())

	body, err := c.FetchPage(context.Background(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != `{"result":[]}` {
		t.Errorf("body = %s", body)
	}
	if gotPage != "3" || gotDate != "2025-01-01" || gotKey != "secret" {
		t.Errorf("request params page=%q date=%q key=%q", gotPage, gotDate, gotKey)
	}
}

func TestFetchPageSurfacesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL, "k", "h", Query{DateCreated: "2025-01-01"}, srv.Client(), discardLogger())
	_, err := c.FetchPage(context.Background(), 1)

	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if httpErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", httpErr.StatusCode)
	}
	if httpErr.RetryAfter != 7*time.Second {
		t.Errorf("retry-after = %v, want 7s", httpErr.RetryAfter)
	}
}

func TestCountPagesRoundsUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"totalCount":41}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL, "k", "h", Query{DateCreated: "2025-01-01"}, srv.Client(), discardLogger())
	pages, err := c.CountPages(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if pages != 5 {
		t.Errorf("pages = %d, want 5 (41 postings at 10 per page)", pages)
	}
}
