// Package pipeline turns staged raw job postings into canonical analytical
// rows: dedup by content fingerprint, keyword classification into positions,
// city clusters and skills, then an idempotent merge into the jobs table.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"jobnorm/internal/dedup"
	"jobnorm/internal/fingerprint"
	"jobnorm/internal/ledger"
	"jobnorm/internal/model"
	"jobnorm/internal/rules"
	"jobnorm/internal/warehouse"
)

const (
	frankfurtBare = "Frankfurt"
	frankfurtMain = "Frankfurt (Main)"
	frankfurtOder = "Frankfurt (Oder)"

	cloudLabel = "Cloud"
)

// cloudProviders maps the marker found in a skill label to the high-level
// provider label it implies.
var cloudProviders = map[string]string{
	"Google": "Google Cloud Platform",
	"Azure":  "Microsoft Azure",
	"Amazon": "Amazon Web Services",
}

// jobsValueColumns are the non-key columns of the jobs table, used for both
// the insert and the update side of the merge.
var jobsValueColumns = []string{
	"date_created", "company", "url", "portal", "years_of_experience",
	"description", "city_clusters", "positions", "skills",
}

// Transform owns one full normalization run for a single locale.
type Transform struct {
	name      string
	locale    string
	db        *warehouse.DB
	ledger    *ledger.Ledger
	positions *rules.Set
	cities    *rules.Set
	skills    *rules.Set
	logger    *slog.Logger
}

// NewTransform creates a transform wired with all its dependencies.
func NewTransform(
	name string,
	locale string,
	db *warehouse.DB,
	ledger *ledger.Ledger,
	positions *rules.Set,
	cities *rules.Set,
	skills *rules.Set,
	logger *slog.Logger,
) *Transform {
	return &Transform{
		name:      name,
		locale:    locale,
		db:        db,
		ledger:    ledger,
		positions: positions,
		cities:    cities,
		skills:    skills,
		logger:    logger,
	}
}

// Run executes one batch: read pending rows, mark started, fingerprint,
// dedup, classify, stage, merge, mark finished. An empty backlog exits
// clean. The ledger finish is written strictly after the merge succeeds,
// so a crashed run leaves its batches eligible for a full rerun.
func (t *Transform) Run(ctx context.Context) (model.RunSummary, error) {
	started := time.Now()
	summary := model.RunSummary{Pipeline: t.name, StartedAt: started}

	pending, err := t.db.PendingPostings(ctx, t.name, t.locale)
	if err != nil {
		return summary, fmt.Errorf("transform %s: %w", t.name, err)
	}
	summary.Fetched = len(pending)
	if len(pending) == 0 {
		t.logger.Info("no new loads to process", "pipeline", t.name, "locale", t.locale)
		summary.Duration = time.Since(started)
		return summary, nil
	}

	loadIDs := distinctLoadIDs(pending)
	if err := t.ledger.Start(ctx, loadIDs, t.name); err != nil {
		return summary, fmt.Errorf("transform %s: %w", t.name, err)
	}

	candidates := make([]dedup.Candidate, 0, len(pending))
	for _, p := range pending {
		candidates = append(candidates, dedup.Candidate{
			Posting:     p,
			Fingerprint: fingerprint.New(p.Title, p.Company, p.City, p.Description),
		})
	}

	resolved := dedup.Resolve(candidates, started)
	summary.Canonical = len(resolved.Canonical)
	t.logger.Info("resolved duplicates",
		"pipeline", t.name,
		"fetched", summary.Fetched,
		"canonical", summary.Canonical,
	)

	canonical, positionRows, clusterRows, skillRows := t.classify(resolved.Canonical)

	if err := t.db.ReplaceJobsBatch(ctx, canonical); err != nil {
		return summary, fmt.Errorf("transform %s: %w", t.name, err)
	}
	if err := t.db.ReplacePositionsBatch(ctx, positionRows); err != nil {
		return summary, fmt.Errorf("transform %s: %w", t.name, err)
	}
	if err := t.db.ReplaceCityClustersBatch(ctx, clusterRows); err != nil {
		return summary, fmt.Errorf("transform %s: %w", t.name, err)
	}
	if err := t.db.ReplaceSkillsBatch(ctx, skillRows); err != nil {
		return summary, fmt.Errorf("transform %s: %w", t.name, err)
	}
	if err := t.db.AppendIDMappings(ctx, resolved.Mapping); err != nil {
		return summary, fmt.Errorf("transform %s: %w", t.name, err)
	}

	stats, err := t.db.Merge(ctx, "jobs", "jobs_batch",
		[]string{"id"}, jobsValueColumns, jobsValueColumns, true, t.logger)
	if err != nil {
		return summary, fmt.Errorf("transform %s: merging jobs: %w", t.name, err)
	}
	summary.Inserted = stats.Inserted
	summary.Updated = stats.Updated

	if err := t.ledger.Finish(ctx, loadIDs, t.name); err != nil {
		return summary, fmt.Errorf("transform %s: %w", t.name, err)
	}

	summary.Duration = time.Since(started)
	t.logger.Info("transform finished",
		"pipeline", t.name,
		"loads", len(loadIDs),
		"inserted", summary.Inserted,
		"updated", summary.Updated,
		"duration", summary.Duration,
	)
	return summary, nil
}

// classify derives the multi-valued attributes for every canonical posting
// and explodes them into the side-table rows.
func (t *Transform) classify(canonical []dedup.Candidate) (
	[]model.CanonicalPosting,
	[]model.PositionRow,
	[]model.CityClusterRow,
	[]model.SkillRow,
) {
	jobs := make([]model.CanonicalPosting, 0, len(canonical))
	var positionRows []model.PositionRow
	var clusterRows []model.CityClusterRow
	var skillRows []model.SkillRow

	for _, c := range canonical {
		p := c.Posting
		positions := sortedLabels(t.positions.All(p.Title, p.Occupation))
		clusters := disambiguateFrankfurt(t.cities.All(p.City))
		skills := enrichCloudSkills(t.skills.All(p.Description))

		jobs = append(jobs, model.CanonicalPosting{
			ID:                c.Fingerprint,
			DateCreated:       p.DateCreated,
			Company:           p.Company,
			URL:               p.URL,
			Portal:            p.Portal,
			YearsOfExperience: yearsOfExperience(p.ExperienceMonths),
			Description:       p.Description,
			CityClusters:      clusters,
			Positions:         positions,
			Skills:            skills,
		})

		for _, label := range positions {
			positionRows = append(positionRows, model.PositionRow{
				PostingID:     c.Fingerprint,
				TitleRaw:      p.Title,
				OccupationRaw: p.Occupation,
				Position:      label,
			})
		}
		for _, label := range clusters {
			clusterRows = append(clusterRows, model.CityClusterRow{
				PostingID:   c.Fingerprint,
				CityRaw:     p.City,
				CityCluster: label,
			})
		}
		for _, label := range skills {
			skillRows = append(skillRows, model.SkillRow{
				PostingID: c.Fingerprint,
				Skill:     label,
			})
		}
	}
	return jobs, positionRows, clusterRows, skillRows
}

// disambiguateFrankfurt resolves the ambiguous bare "Frankfurt" label: it
// defaults to "Frankfurt (Main)" unless a qualified form already matched,
// in which case the bare label is dropped as noise.
func disambiguateFrankfurt(labels map[string]bool) []string {
	if labels[frankfurtBare] {
		delete(labels, frankfurtBare)
		if !labels[frankfurtMain] && !labels[frankfurtOder] {
			labels[frankfurtMain] = true
		}
	}
	return sortedLabels(labels)
}

// enrichCloudSkills adds the high-level provider label for every matched
// skill that names a cloud provider, plus the generic "Cloud" label when
// any provider is present.
func enrichCloudSkills(matched map[string]bool) []string {
	out := make(map[string]bool, len(matched))
	provider := false
	for label := range matched {
		out[label] = true
		for marker, providerLabel := range cloudProviders {
			if strings.Contains(label, marker) {
				out[providerLabel] = true
				provider = true
			}
		}
	}
	if provider {
		out[cloudLabel] = true
	}
	return sortedLabels(out)
}

// yearsOfExperience rounds the advertised months up to full years,
// preserving a missing value.
func yearsOfExperience(months *float64) *int {
	if months == nil {
		return nil
	}
	years := int(math.Ceil(*months / 12))
	return &years
}

func sortedLabels(labels map[string]bool) []string {
	out := make([]string, 0, len(labels))
	for label := range labels {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

func distinctLoadIDs(postings []model.RawPosting) []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range postings {
		if !seen[p.LoadID] {
			seen[p.LoadID] = true
			out = append(out, p.LoadID)
		}
	}
	return out
}
