// Package dedup selects one canonical posting per fingerprint group.
package dedup

import (
	"sort"
	"time"

	"jobnorm/internal/model"
)

// Candidate pairs a raw posting with its computed fingerprint.
type Candidate struct {
	Posting     model.RawPosting
	Fingerprint string
}

// Result carries the canonical survivors and the full row-id mapping.
// Every input row appears exactly once in Mapping; every fingerprint in the
// input appears exactly once in Canonical.
type Result struct {
	Canonical []Candidate
	Mapping   []model.IDMapping
}

// Resolve partitions the batch by fingerprint and keeps the row with the
// latest date_created per partition. Ties keep the first-encountered row:
// the sort is stable, so input order decides. matchedAt stamps the mapping
// rows.
func Resolve(batch []Candidate, matchedAt time.Time) Result {
	ordered := make([]Candidate, len(batch))
	copy(ordered, batch)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Fingerprint != ordered[j].Fingerprint {
			return ordered[i].Fingerprint < ordered[j].Fingerprint
		}
		return ordered[i].Posting.DateCreated.After(ordered[j].Posting.DateCreated)
	})

	var res Result
	seen := map[string]bool{}
	for _, c := range ordered {
		isSource := !seen[c.Fingerprint]
		if isSource {
			seen[c.Fingerprint] = true
			res.Canonical = append(res.Canonical, c)
		}
		res.Mapping = append(res.Mapping, model.IDMapping{
			RowID:     c.Posting.RowID,
			PostingID: c.Fingerprint,
			IsSource:  isSource,
			MatchedAt: matchedAt,
		})
	}
	return res
}
