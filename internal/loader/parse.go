package loader

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"jobnorm/internal/model"
	"jobnorm/internal/warehouse"
)

// pagePayload is one search response. Postings carry a nested schema.org
// JobPosting document under jsonLD; its fields are hoisted to the top level
// during staging.
type pagePayload struct {
	Result []rawRecord `json:"result"`
}

type rawRecord struct {
	Company     *string `json:"company"`
	City        *string `json:"city"`
	Title       *string `json:"title"`
	Occupation  *string `json:"occupation"`
	URL         *string `json:"url"`
	Portal      *string `json:"portal"`
	Locale      string  `json:"locale"`
	DateCreated string  `json:"dateCreated"`
	JSONLD      jsonLD  `json:"jsonLD"`
}

type jsonLD struct {
	Description            *string                 `json:"description"`
	ExperienceRequirements *experienceRequirements `json:"experienceRequirements"`
}

type experienceRequirements struct {
	MonthsOfExperience *float64 `json:"monthsOfExperience"`
}

// parsePage flattens one raw page into warehouse rows, minting a row id per
// posting.
func parsePage(body []byte, loadID string) ([]model.RawPosting, error) {
	var page pagePayload
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	rows := make([]model.RawPosting, 0, len(page.Result))
	for _, rec := range page.Result {
		created, err := parseDateCreated(rec.DateCreated)
		if err != nil {
			return nil, err
		}
		row := model.RawPosting{
			LoadID:      loadID,
			RowID:       uuid.NewString(),
			Company:     rec.Company,
			City:        rec.City,
			Title:       rec.Title,
			Occupation:  rec.Occupation,
			URL:         rec.URL,
			Portal:      rec.Portal,
			DateCreated: created,
			Description: rec.JSONLD.Description,
			Locale:      rec.Locale,
		}
		if reqs := rec.JSONLD.ExperienceRequirements; reqs != nil {
			row.ExperienceMonths = reqs.MonthsOfExperience
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// parseDateCreated accepts both the timestamp and the date-only form the
// API uses.
func parseDateCreated(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(warehouse.DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse dateCreated %q: %w", value, err)
	}
	return t, nil
}
