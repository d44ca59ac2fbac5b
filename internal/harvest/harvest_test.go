// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/arxiv-harvest/internal/ledger"
	"github.com/pdiddy/arxiv-harvest/internal/partition"
	"github.com/pdiddy/arxiv-harvest/internal/search"
	"github.com/pdiddy/arxiv-harvest/internal/sink"
	"github.com/pdiddy/arxiv-harvest/pkg/types"
)

// --- fakes ---

var catPattern = regexp.MustCompile(`^cat:(\S+) AND submittedDate:\[(\d{8})`)

// fakeSearcher returns perCall results for every query, filed under the
// queried category and dated within the queried month. Categories in fail
// return an error instead. It ignores maxResults unless honorMax is set, to
// exercise sampling.
type fakeSearcher struct {
	perCall  int
	honorMax bool
	fail     map[string]bool
	delay    time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	calls       atomic.Int32
	lastSort    atomic.Value
}

func (f *fakeSearcher) Search(_ context.Context, query string, maxResults int, sort search.SortCriterion) ([]types.SearchResult, error) {
	f.calls.Add(1)
	f.lastSort.Store(sort)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxInFlight.Load()
		if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	m := catPattern.FindStringSubmatch(query)
	if m == nil {
		return nil, fmt.Errorf("unexpected query %q", query)
	}
	category := m[1]
	if f.fail[category] {
		return nil, fmt.Errorf("connection reset for %s", category)
	}
	monthStart, err := time.Parse("20060102", m[2])
	if err != nil {
		return nil, err
	}

	count := f.perCall
	if f.honorMax {
		count = min(count, maxResults)
	}
	out := make([]types.SearchResult, count)
	for i := range out {
		out[i] = types.SearchResult{
			Identifier:      fmt.Sprintf("%s-%d", category, i),
			Title:           fmt.Sprintf("%s paper %d", category, i),
			Abstract:        "line one\nline two\r\nline three",
			PrimaryCategory: category,
			Published:       monthStart.AddDate(0, 0, i%28).Add(15 * time.Hour),
		}
	}
	return out, nil
}

// memorySink collects batches and checks it is never called concurrently.
type memorySink struct {
	mu      sync.Mutex
	busy    atomic.Bool
	batches [][]types.PaperRecord
	err     error
	overlap bool
}

func (s *memorySink) Append(records []types.PaperRecord) error {
	if !s.busy.CompareAndSwap(false, true) {
		s.overlap = true
	}
	defer s.busy.Store(false)
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, records)
	return nil
}

func (s *memorySink) all() []types.PaperRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.PaperRecord
	for _, b := range s.batches {
		out = append(out, b...)
	}
	return out
}

type countingReporter struct {
	ticks atomic.Int32
}

func (r *countingReporter) Tick(string) { r.ticks.Add(1) }

type memoryRecorder struct {
	mu       sync.Mutex
	outcomes []ledger.TaskOutcome
	err      error
}

func (r *memoryRecorder) RecordTask(_ context.Context, o ledger.TaskOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
	return r.err
}

func jan2023() time.Time { return time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC) }

// --- ExecuteTask ---

func TestExecuteTaskNormalizes(t *testing.T) {
	f := &fakeSearcher{perCall: 3, honorMax: true}
	task := partition.Task{Category: "cs.AI", Month: partition.MonthOf(2023, time.January), Cap: 10}

	res := ExecuteTask(context.Background(), f, task)
	require.NoError(t, res.Err)
	require.Len(t, res.Papers, 3)
	assert.Equal(t, search.SortRelevance, f.lastSort.Load())

	for _, p := range res.Papers {
		assert.NotContains(t, p.Abstract, "\n")
		assert.NotContains(t, p.Abstract, "\r")
		assert.Equal(t, "line one line two line three", p.Abstract)
		assert.Equal(t, "cs.AI", p.Category)
	}
	assert.Equal(t, "01-01-2023", res.Papers[0].Row()[3])
}

func TestExecuteTaskSamplesDownToCap(t *testing.T) {
	f := &fakeSearcher{perCall: 40}
	task := partition.Task{Category: "cs.CL", Month: partition.MonthOf(2023, time.March), Cap: 7}

	res := ExecuteTask(context.Background(), f, task)
	require.NoError(t, res.Err)
	assert.Len(t, res.Papers, 7)
	assert.Equal(t, 40, res.Fetched)

	seen := map[string]bool{}
	for _, p := range res.Papers {
		assert.False(t, seen[p.Title], "sample must not repeat %q", p.Title)
		seen[p.Title] = true
	}
}

func TestExecuteTaskFailure(t *testing.T) {
	f := &fakeSearcher{perCall: 5, fail: map[string]bool{"cs.AI": true}}
	task := partition.Task{Category: "cs.AI", Month: partition.MonthOf(2023, time.January), Cap: 5}

	res := ExecuteTask(context.Background(), f, task)
	assert.True(t, res.Failed())
	assert.Empty(t, res.Papers)
	assert.ErrorContains(t, res.Err, "connection reset")
}

// --- Sample ---

func TestSample(t *testing.T) {
	papers := make([]types.PaperRecord, 10)
	for i := range papers {
		papers[i].Title = fmt.Sprintf("p%d", i)
	}

	assert.Len(t, Sample(papers, 10), 10)
	assert.Len(t, Sample(papers, 20), 10)
	assert.Len(t, Sample(papers, 3), 3)
	assert.Empty(t, Sample(papers, 0))
	assert.Empty(t, Sample(papers, -1))

	// The input is left in place.
	for i := range papers {
		assert.Equal(t, fmt.Sprintf("p%d", i), papers[i].Title)
	}
}

func TestSampleCoversPool(t *testing.T) {
	papers := make([]types.PaperRecord, 5)
	for i := range papers {
		papers[i].Title = fmt.Sprintf("p%d", i)
	}
	seen := map[string]bool{}
	for range 500 {
		for _, p := range Sample(papers, 1) {
			seen[p.Title] = true
		}
	}
	assert.Len(t, seen, 5, "every paper should be drawn at least once in 500 draws")
}

// --- Run ---

func TestRunWritesEveryTask(t *testing.T) {
	tasks := partition.Partition([]string{"cs.AI", "cs.CL", "cs.CV", "cs.LG"}, jan2023(), time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC), 40)
	require.Len(t, tasks, 24)

	f := &fakeSearcher{perCall: 25, delay: time.Millisecond}
	s := &memorySink{}
	r := &countingReporter{}
	rec := &memoryRecorder{}

	h := New(types.HarvestConfig{WorkerCount: 4}, f, s)
	h.Progress = r
	h.Recorder = rec

	sum, err := h.Run(context.Background(), tasks)
	require.NoError(t, err)

	assert.Equal(t, 24, sum.Tasks)
	assert.Equal(t, 24, sum.Succeeded)
	assert.Equal(t, 24, sum.Completed())
	assert.Equal(t, 24*10, sum.Papers)
	assert.Len(t, s.all(), 240)
	assert.Len(t, s.batches, 24)
	assert.Equal(t, int32(24), r.ticks.Load())
	assert.Len(t, rec.outcomes, 24)
	assert.False(t, s.overlap, "sink must only be written from one goroutine at a time")

	for _, b := range s.batches {
		assert.LessOrEqual(t, len(b), 10, "per-task cap")
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	tasks := partition.Partition([]string{"a", "b", "c"}, jan2023(), time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC), 3)
	f := &fakeSearcher{perCall: 1, delay: 5 * time.Millisecond}

	h := New(types.HarvestConfig{WorkerCount: 3}, f, &memorySink{})
	_, err := h.Run(context.Background(), tasks)
	require.NoError(t, err)

	assert.Equal(t, int32(len(tasks)), f.calls.Load())
	assert.LessOrEqual(t, f.maxInFlight.Load(), int32(3))
	assert.Greater(t, f.maxInFlight.Load(), int32(1), "tasks should overlap")
}

func TestRunIsolatesFailures(t *testing.T) {
	tasks := partition.Partition([]string{"A", "B"}, jan2023(), time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC), 10)
	f := &fakeSearcher{perCall: 5, honorMax: true, fail: map[string]bool{"A": true}}
	s := &memorySink{}
	r := &countingReporter{}
	rec := &memoryRecorder{}
	var log bytes.Buffer

	h := New(types.HarvestConfig{WorkerCount: 2}, f, s)
	h.Progress = r
	h.Recorder = rec
	h.Log = &log

	sum, err := h.Run(context.Background(), tasks)
	require.NoError(t, err)

	assert.Equal(t, 3, sum.Failed)
	assert.Equal(t, 3, sum.Succeeded)
	assert.Equal(t, 15, sum.Papers)
	require.Len(t, sum.Errors, 3)
	assert.Equal(t, "A", sum.Errors[0].Category)
	assert.Equal(t, int32(6), r.ticks.Load(), "failed tasks still tick")

	for _, p := range s.all() {
		assert.Equal(t, "B", p.Category)
	}
	assert.Len(t, s.all(), 15)
	assert.Equal(t, 3, strings.Count(log.String(), "warning: fetching A "))

	failed := 0
	for _, o := range rec.outcomes {
		if o.Err != "" {
			failed++
			assert.Equal(t, "A", o.Category)
			assert.Equal(t, 0, o.Written)
		}
	}
	assert.Equal(t, 3, failed)
}

func TestRunSkipsEmptyBatches(t *testing.T) {
	tasks := partition.Partition([]string{"cs.AI"}, jan2023(), jan2023(), 10)
	s := &memorySink{}

	sum, err := New(types.HarvestConfig{}, &fakeSearcher{perCall: 0}, s).Run(context.Background(), tasks)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Empty)
	assert.Empty(t, s.batches)
}

func TestRunNoTasks(t *testing.T) {
	sum, err := New(types.HarvestConfig{}, &fakeSearcher{}, &memorySink{}).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Tasks)
	assert.Equal(t, 0, sum.Completed())
}

func TestRunAbortsOnSinkError(t *testing.T) {
	tasks := partition.Partition([]string{"cs.AI", "cs.CL"}, jan2023(), jan2023(), 10)
	s := &memorySink{err: errors.New("disk full")}

	_, err := New(types.HarvestConfig{WorkerCount: 1}, &fakeSearcher{perCall: 2}, s).Run(context.Background(), tasks)
	require.Error(t, err)
	assert.ErrorContains(t, err, "disk full")
	assert.ErrorContains(t, err, "writing papers for")
}

func TestRunLogsRecorderErrors(t *testing.T) {
	tasks := partition.Partition([]string{"cs.AI"}, jan2023(), jan2023(), 10)
	var log bytes.Buffer
	h := New(types.HarvestConfig{}, &fakeSearcher{perCall: 1}, &memorySink{})
	h.Recorder = &memoryRecorder{err: errors.New("database is locked")}
	h.Log = &log

	_, err := h.Run(context.Background(), tasks)
	require.NoError(t, err)
	assert.Contains(t, log.String(), "warning: ledger: database is locked")
}

// --- Run with the CSV sink ---

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func headerCount(rows [][]string) int {
	n := 0
	for _, r := range rows {
		if r[0] == "Title" && r[3] == "Published" {
			n++
		}
	}
	return n
}

func TestRunHeaderOnceAcrossConcurrentBatches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arxiv_papers.csv")
	tasks := partition.Partition([]string{"cs.AI", "cs.CL", "cs.CV", "cs.LG"}, jan2023(), time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC), 20)

	out, err := sink.Open(path)
	require.NoError(t, err)
	_, err = New(types.HarvestConfig{WorkerCount: 8}, &fakeSearcher{perCall: 5}, out).Run(context.Background(), tasks)
	require.NoError(t, err)
	require.NoError(t, out.Close())

	rows := readCSV(t, path)
	assert.Equal(t, 1, headerCount(rows))
	assert.Equal(t, types.CSVHeader, rows[0])
	assert.Len(t, rows, 1+12*5)

	// A second run appends without another header.
	out, err = sink.Open(path)
	require.NoError(t, err)
	_, err = New(types.HarvestConfig{WorkerCount: 8}, &fakeSearcher{perCall: 5}, out).Run(context.Background(), tasks)
	require.NoError(t, err)
	require.NoError(t, out.Close())

	rows = readCSV(t, path)
	assert.Equal(t, 1, headerCount(rows))
	assert.Len(t, rows, 1+2*12*5)
}

func TestRunHeaderWhenEveryTaskFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arxiv_papers.csv")
	tasks := partition.Partition([]string{"A"}, jan2023(), time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC), 10)

	out, err := sink.Open(path)
	require.NoError(t, err)
	sum, err := New(types.HarvestConfig{}, &fakeSearcher{fail: map[string]bool{"A": true}}, out).Run(context.Background(), tasks)
	require.NoError(t, err)
	require.NoError(t, out.Close())

	assert.Equal(t, 2, sum.Failed)
	assert.Equal(t, [][]string{types.CSVHeader}, readCSV(t, path))
}

func TestRunEndToEndSingleMonth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arxiv_papers.csv")
	cfg := types.HarvestConfig{
		Categories:     []string{"cs.AI"},
		StartDate:      jan2023(),
		EndDate:        jan2023(),
		PapersPerMonth: 10,
		OutputPath:     path,
	}
	tasks := partition.Partition(cfg.Categories, cfg.StartDate, cfg.EndDate, cfg.PapersPerMonth)
	require.Len(t, tasks, 1)
	assert.Equal(t, 10, tasks[0].Cap)

	out, err := sink.Open(cfg.OutputPath)
	require.NoError(t, err)
	_, err = New(cfg, &fakeSearcher{perCall: 30}, out).Run(context.Background(), tasks)
	require.NoError(t, err)
	require.NoError(t, out.Close())

	rows := readCSV(t, path)
	require.Len(t, rows, 11)
	published := regexp.MustCompile(`^\d{2}-01-2023$`)
	for _, r := range rows[1:] {
		assert.Equal(t, "cs.AI", r[2])
		assert.Regexp(t, published, r[3])
		assert.NotContains(t, r[1], "\n")
	}
}
