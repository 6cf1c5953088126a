package model

import (
	"context"
	"time"
)

// RawPosting is one staged row of the jobs_posting table, exactly as the
// load stage wrote it. Rows are immutable once staged and consumed once by
// the transform pipeline.
type RawPosting struct {
	LoadID           string     // ingestion batch this row arrived with
	RowID            string     // unique per staged row
	Company          *string
	City             *string
	Title            *string
	Occupation       *string
	URL              *string
	Portal           *string
	ExperienceMonths *float64   // nullable, months of required experience
	DateCreated      time.Time  // date precision
	Description      *string
	Locale           string
}

// CanonicalPosting is the single retained representative of a fingerprint
// group, shaped for the analytical jobs table.
type CanonicalPosting struct {
	ID                string // content fingerprint, the dedup key
	DateCreated       time.Time
	Company           *string
	URL               *string
	Portal            *string
	YearsOfExperience *int
	Description       *string
	CityClusters      []string
	Positions         []string
	Skills            []string
}

// IDMapping records how one raw row resolved during deduplication.
// Append-only; superseded rows keep their entry for traceability.
type IDMapping struct {
	RowID     string
	PostingID string // fingerprint the row resolved to
	IsSource  bool   // true for the canonical representative
	MatchedAt time.Time
}

// PositionRow is one exploded (posting, position label) pair.
type PositionRow struct {
	PostingID     string
	TitleRaw      *string
	OccupationRaw *string
	Position      string
}

// CityClusterRow is one exploded (posting, city cluster label) pair.
type CityClusterRow struct {
	PostingID   string
	CityRaw     *string
	CityCluster string
}

// SkillRow is one exploded (posting, skill label) pair.
type SkillRow struct {
	PostingID string
	Skill     string
}

// MappingRule is one row of an external rule feed, before validation.
// Pointer fields distinguish a missing cell from an empty one.
type MappingRule struct {
	Keyword         *string
	Result          *string
	CaseSensitive   *bool
	SpacesSensitive *bool
}

// RunSummary describes the outcome of one transform run for reporting.
type RunSummary struct {
	Pipeline  string
	Fetched   int // raw rows read from staging
	Canonical int // rows surviving deduplication
	Inserted  int64
	Updated   int64
	StartedAt time.Time
	Duration  time.Duration
}

// PageFetcher retrieves one page of raw payload from the postings API.
type PageFetcher interface {
	FetchPage(ctx context.Context, page int) ([]byte, error)
}

// PayloadSink stores raw page payloads before any parsing (object storage).
type PayloadSink interface {
	Put(ctx context.Context, key string, body []byte) error
}

// RuleSource returns the rule feed for one classification domain
// (positions, city_clusters, skills).
type RuleSource interface {
	Rules(ctx context.Context, domain string) ([]MappingRule, error)
}

// Notifier reports a finished transform run.
type Notifier interface {
	NotifyRun(summary RunSummary) error
}
