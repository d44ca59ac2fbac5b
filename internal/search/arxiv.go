// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/arxiv-harvest/internal/httputil"
	"github.com/pdiddy/arxiv-harvest/pkg/types"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

const defaultPageSize = 100

// ArxivClient queries the arXiv API, paging through results PageSize at a
// time. One client is shared by all workers; Pacer spaces their requests.
type ArxivClient struct {
	Client     *http.Client
	PageSize   int
	Pacer      *httputil.Pacer
	MaxRetries int
	UserAgent  string

	// Log receives rate-limit notices. Nil discards them.
	Log io.Writer
}

// NewArxivClient builds a client from the run configuration.
func NewArxivClient(cfg types.HarvestConfig, log io.Writer) *ArxivClient {
	return &ArxivClient{
		Client:     &http.Client{Timeout: cfg.Timeout},
		PageSize:   cfg.BatchSize,
		Pacer:      httputil.NewPacer(cfg.PageDelay),
		MaxRetries: cfg.MaxRetries,
		UserAgent:  cfg.UserAgent,
		Log:        log,
	}
}

// Search returns up to maxResults entries matching query, ranked by sort in
// descending order. It stops early when the API runs out of results.
func (c *ArxivClient) Search(ctx context.Context, query string, maxResults int, sort SortCriterion) ([]types.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty arXiv query")
	}
	pageSize := c.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	var results []types.SearchResult
	start := 0
	for len(results) < maxResults {
		want := min(pageSize, maxResults-len(results))

		feed, err := c.fetchPage(ctx, query, start, want, sort)
		if err != nil {
			return nil, err
		}

		for _, entry := range feed.Entries {
			if r, ok := entry.toResult(); ok {
				results = append(results, r)
			}
		}

		start += len(feed.Entries)
		if len(feed.Entries) < want || (feed.TotalResults > 0 && start >= feed.TotalResults) {
			break
		}
	}

	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}

// fetchPage requests a single page of results starting at offset start.
func (c *ArxivClient) fetchPage(ctx context.Context, query string, start, n int, sort SortCriterion) (*arxivFeed, error) {
	if err := c.Pacer.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("search_query", query)
	params.Set("start", strconv.Itoa(start))
	params.Set("max_results", strconv.Itoa(n))
	params.Set("sortBy", string(sort))
	params.Set("sortOrder", "descending")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, arxivAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := httputil.DoWithRetry(ctx, client, req, c.MaxRetries, c.Log)
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arXiv API returned HTTP %d", resp.StatusCode)
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %w", err)
	}

	// arXiv reports bad queries as a single entry under /api/errors.
	for _, e := range feed.Entries {
		if strings.Contains(e.ID, "/api/errors") {
			return nil, fmt.Errorf("arXiv API error: %s", strings.TrimSpace(e.Summary))
		}
	}
	return &feed, nil
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	TotalResults int          `xml:"http://a9.com/-/spec/opensearch/1.1/ totalResults"`
	Entries      []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID              string        `xml:"id"`
	Title           string        `xml:"title"`
	Summary         string        `xml:"summary"`
	Published       string        `xml:"published"`
	PrimaryCategory arxivCategory `xml:"http://arxiv.org/schemas/atom primary_category"`
}

type arxivCategory struct {
	Term string `xml:"term,attr"`
}

// toResult converts a feed entry. Entries without a recognizable arXiv ID
// are dropped.
func (e arxivEntry) toResult() (types.SearchResult, bool) {
	id := extractArxivID(e.ID)
	if id == "" {
		return types.SearchResult{}, false
	}
	r := types.SearchResult{
		Identifier:      id,
		Title:           strings.TrimSpace(e.Title),
		Abstract:        strings.TrimSpace(e.Summary),
		PrimaryCategory: e.PrimaryCategory.Term,
	}
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(e.Published)); err == nil {
		r.Published = t
	}
	return r, true
}

// extractArxivID pulls the arXiv ID from the entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" -> "2301.07041").
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	id := idURL[idx+len(prefix):]

	// Strip version suffix (e.g. "v1", "v2").
	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			id = id[:vIdx]
		}
	}
	return id
}
