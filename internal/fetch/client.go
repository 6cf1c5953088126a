// Package fetch talks to the job-postings API: a paginated search endpoint
// plus a count endpoint used to discover how many pages a query spans.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"jobnorm/internal/model"
)

const itemsPerPage = 10

// Query narrows the postings search. DateCreated is the only required
// field; the API treats the rest as filters.
type Query struct {
	DateCreated string // YYYY-MM-DD
	CountryCode string
	Title       string
	Locale      string
}

// Client fetches postings pages from a RapidAPI-hosted search endpoint.
type Client struct {
	searchURL string
	countURL  string
	apiKey    string
	apiHost   string
	query     Query
	client    *http.Client
	logger    *slog.Logger
}

// NewClient creates a client for one search query. searchURL and countURL
// are the fully-qualified endpoint URLs.
func NewClient(searchURL, countURL, apiKey, apiHost string, query Query, client *http.Client, logger *slog.Logger) *Client {
	return &Client{
		searchURL: searchURL,
		countURL:  countURL,
		apiKey:    apiKey,
		apiHost:   apiHost,
		query:     query,
		client:    client,
		logger:    logger,
	}
}

// FetchPage retrieves one page of raw search results. The body comes back
// unparsed so it can be staged to object storage byte-for-byte.
func (c *Client) FetchPage(ctx context.Context, page int) ([]byte, error) {
	params := c.queryParams()
	params.Set("page", strconv.Itoa(page))

	body, err := c.get(ctx, c.searchURL, params)
	if err != nil {
		return nil, fmt.Errorf("fetch page %d: %w", page, err)
	}
	c.logger.Debug("fetched page", "page", page, "bytes", len(body))
	return body, nil
}

// countResponse is the count endpoint's payload.
type countResponse struct {
	TotalCount int `json:"totalCount"`
}

// CountPages asks the count endpoint how many postings match the query and
// converts that into a page count.
func (c *Client) CountPages(ctx context.Context) (int, error) {
	body, err := c.get(ctx, c.countURL, c.queryParams())
	if err != nil {
		return 0, fmt.Errorf("count pages: %w", err)
	}

	var count countResponse
	if err := json.Unmarshal(body, &count); err != nil {
		return 0, fmt.Errorf("count pages: %w", err)
	}

	pages := int(math.Ceil(float64(count.TotalCount) / itemsPerPage))
	c.logger.Debug("counted pages", "postings", count.TotalCount, "pages", pages)
	return pages, nil
}

func (c *Client) queryParams() url.Values {
	params := url.Values{}
	params.Set("dateCreated", c.query.DateCreated)
	if c.query.CountryCode != "" {
		params.Set("countryCode", c.query.CountryCode)
	}
	if c.query.Title != "" {
		params.Set("title", c.query.Title)
	}
	if c.query.Locale != "" {
		params.Set("locale", c.query.Locale)
	}
	return params
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-rapidapi-key", c.apiKey)
	req.Header.Set("x-rapidapi-host", c.apiHost)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}
	return io.ReadAll(resp.Body)
}

// parseRetryAfter parses the Retry-After header value into a duration.
// Supports seconds format (e.g. "120"). Returns zero if absent or unparseable.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
