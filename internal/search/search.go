// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search is the client side of the bibliographic search service. It
// defines the Searcher contract the harvester depends on and implements it
// against the arXiv API.
package search

import (
	"context"
	"fmt"
	"time"

	"github.com/pdiddy/arxiv-harvest/internal/partition"
	"github.com/pdiddy/arxiv-harvest/pkg/types"
)

// SortCriterion selects the ranking the API applies before truncating to
// maxResults. It decides which subset of a larger pool is returned.
type SortCriterion string

const (
	SortRelevance SortCriterion = "relevance"
	SortRecency   SortCriterion = "submittedDate"
)

// Searcher runs a query against a search service and returns at most
// maxResults entries. Implementations must be safe for concurrent use.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int, sort SortCriterion) ([]types.SearchResult, error)
}

// submittedLayout is the timestamp format of submittedDate range bounds.
const submittedLayout = "20060102150405"

// BuildQuery returns the query selecting papers of one category submitted
// within month. Both bounds are inclusive; the upper bound is 23:59:59 on
// the last day.
func BuildQuery(category string, month partition.MonthRange) string {
	from := month.First
	to := month.Last.Add(23*time.Hour + 59*time.Minute + 59*time.Second)
	return fmt.Sprintf("cat:%s AND submittedDate:[%s TO %s]",
		category, from.Format(submittedLayout), to.Format(submittedLayout))
}
