// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"context"
	"math/rand/v2"
	"strings"

	"github.com/pdiddy/arxiv-harvest/internal/partition"
	"github.com/pdiddy/arxiv-harvest/internal/search"
	"github.com/pdiddy/arxiv-harvest/pkg/types"
)

// TaskResult is the outcome of one task: either a batch of papers or a
// failure carrying its cause. A failed task has no papers.
type TaskResult struct {
	Task    partition.Task
	Papers  []types.PaperRecord
	Fetched int
	Err     error
}

// Failed reports whether the task ended in an error.
func (r TaskResult) Failed() bool { return r.Err != nil }

// ExecuteTask queries searcher for one category-month, normalizes the
// results, and samples them down to the task's cap. Errors are returned in
// the result, never retried.
func ExecuteTask(ctx context.Context, searcher search.Searcher, task partition.Task) TaskResult {
	query := search.BuildQuery(task.Category, task.Month)
	found, err := searcher.Search(ctx, query, task.Cap, search.SortRelevance)
	if err != nil {
		return TaskResult{Task: task, Err: err}
	}

	papers := make([]types.PaperRecord, 0, len(found))
	for _, r := range found {
		papers = append(papers, Normalize(r))
	}
	return TaskResult{Task: task, Papers: Sample(papers, task.Cap), Fetched: len(found)}
}

var newlines = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// Normalize converts a search result into an output record. Each newline in
// the abstract becomes a single space.
func Normalize(r types.SearchResult) types.PaperRecord {
	return types.PaperRecord{
		Title:     r.Title,
		Abstract:  newlines.Replace(r.Abstract),
		Category:  r.PrimaryCategory,
		Published: r.Published,
	}
}

// Sample returns papers unchanged when it holds at most n records; otherwise
// it returns n of them chosen uniformly at random without replacement. The
// input slice is not modified.
func Sample(papers []types.PaperRecord, n int) []types.PaperRecord {
	if n < 0 {
		n = 0
	}
	if len(papers) <= n {
		return papers
	}

	shuffled := make([]types.PaperRecord, len(papers))
	copy(shuffled, papers)
	// Partial Fisher-Yates: the first n slots end up a uniform sample.
	for i := range n {
		j := i + rand.IntN(len(shuffled)-i)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled[:n]
}
