// Package loader runs the load stage: walk the paginated search API,
// archive every raw page, flatten the postings and append them to the raw
// warehouse table under a freshly minted load id.
package loader

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"jobnorm/internal/model"
	"jobnorm/internal/stage"
	"jobnorm/internal/warehouse"
)

// PageCounter discovers how many pages the current query spans.
type PageCounter interface {
	CountPages(ctx context.Context) (int, error)
}

// Loader fetches, archives and stages one day of postings.
type Loader struct {
	fetcher model.PageFetcher
	counter PageCounter
	sink    model.PayloadSink
	db      *warehouse.DB
	logger  *slog.Logger
}

func New(fetcher model.PageFetcher, counter PageCounter, sink model.PayloadSink, db *warehouse.DB, logger *slog.Logger) *Loader {
	return &Loader{
		fetcher: fetcher,
		counter: counter,
		sink:    sink,
		db:      db,
		logger:  logger,
	}
}

// Result reports what one load run staged.
type Result struct {
	LoadID string
	Pages  int
	Rows   int
}

// Run walks pages [startPage, endPage]. A zero endPage means "all": the
// count endpoint decides, and an empty page then ends the walk early since
// the API keeps answering 200 past the last page. An explicit endPage walks
// the full range, skipping empty pages. dateCreated scopes the query and
// the archive keys.
func (l *Loader) Run(ctx context.Context, dateCreated string, startPage, endPage int) (Result, error) {
	var res Result

	discovered := endPage == 0
	if discovered {
		pages, err := l.counter.CountPages(ctx)
		if err != nil {
			return res, fmt.Errorf("load %s: %w", dateCreated, err)
		}
		endPage = pages
	}
	if startPage < 1 {
		startPage = 1
	}

	res.LoadID = uuid.NewString()
	var postings []model.RawPosting

	for page := startPage; page <= endPage; page++ {
		body, err := l.fetcher.FetchPage(ctx, page)
		if err != nil {
			return res, fmt.Errorf("load %s: %w", dateCreated, err)
		}
		if err := l.sink.Put(ctx, stage.PageKey(dateCreated, page), body); err != nil {
			return res, fmt.Errorf("load %s: %w", dateCreated, err)
		}

		rows, err := parsePage(body, res.LoadID)
		if err != nil {
			return res, fmt.Errorf("load %s: page %d: %w", dateCreated, page, err)
		}
		if len(rows) == 0 {
			if discovered {
				l.logger.Info("empty page, stopping early", "page", page, "last_page", endPage)
				break
			}
			l.logger.Info("empty page in requested range, skipping", "page", page)
			continue
		}
		postings = append(postings, rows...)
		res.Pages++
	}

	if len(postings) == 0 {
		l.logger.Info("no postings to stage", "date_created", dateCreated)
		return res, nil
	}

	if err := l.db.InsertLoad(ctx, res.LoadID); err != nil {
		return res, fmt.Errorf("load %s: %w", dateCreated, err)
	}
	if err := l.db.InsertRawPostings(ctx, postings); err != nil {
		return res, fmt.Errorf("load %s: %w", dateCreated, err)
	}
	res.Rows = len(postings)

	l.logger.Info("load finished",
		"load_id", res.LoadID,
		"date_created", dateCreated,
		"pages", res.Pages,
		"rows", res.Rows,
	)
	return res, nil
}
