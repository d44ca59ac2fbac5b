// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package harvest fetches paper metadata for a list of category-month tasks
// with bounded concurrency and streams each task's papers to the output sink
// as soon as the task completes.
package harvest

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/arxiv-harvest/internal/ledger"
	"github.com/pdiddy/arxiv-harvest/internal/partition"
	"github.com/pdiddy/arxiv-harvest/internal/progress"
	"github.com/pdiddy/arxiv-harvest/internal/search"
	"github.com/pdiddy/arxiv-harvest/pkg/types"
)

// Sink receives one batch per successful task. Append must write the batch
// as a single contiguous block.
type Sink interface {
	Append(records []types.PaperRecord) error
}

// Recorder stores task outcomes, e.g. a ledger.Run.
type Recorder interface {
	RecordTask(ctx context.Context, o ledger.TaskOutcome) error
}

// DefaultWorkers mirrors a thread pool sized for I/O-bound work.
func DefaultWorkers() int {
	return min(32, runtime.NumCPU()+4)
}

// Harvester runs tasks against a Searcher and writes their papers to a Sink.
type Harvester struct {
	searcher search.Searcher
	sink     Sink
	workers  int

	// Progress is ticked once per completed task. Defaults to progress.Nop.
	Progress progress.Reporter

	// Recorder, when set, receives every task outcome.
	Recorder Recorder

	// Log receives warnings about failed tasks.
	Log io.Writer
}

// New returns a Harvester using cfg.WorkerCount workers, or DefaultWorkers
// when it is not positive.
func New(cfg types.HarvestConfig, searcher search.Searcher, sink Sink) *Harvester {
	workers := cfg.WorkerCount
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	return &Harvester{
		searcher: searcher,
		sink:     sink,
		workers:  workers,
		Progress: progress.Nop{},
		Log:      io.Discard,
	}
}

// Run executes every task and returns once all of them have completed.
// Failed tasks are logged and counted; they do not stop the run. Only a sink
// error aborts, and it is returned with the summary so far.
//
// Results are consumed in completion order by Run's own goroutine, which is
// the only writer to the sink.
func (h *Harvester) Run(ctx context.Context, tasks []partition.Task) (Summary, error) {
	start := time.Now()
	summary := Summary{Tasks: len(tasks)}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan TaskResult, len(tasks))
	go func() {
		var g errgroup.Group
		g.SetLimit(h.workers)
		for _, task := range tasks {
			g.Go(func() error {
				results <- ExecuteTask(ctx, h.searcher, task)
				return nil
			})
		}
		g.Wait()
		close(results)
	}()

	for res := range results {
		written := 0
		if res.Failed() {
			summary.Failed++
			summary.Errors = append(summary.Errors, TaskError{
				Category: res.Task.Category,
				Month:    res.Task.Month.String(),
				Error:    res.Err.Error(),
			})
			fmt.Fprintf(h.Log, "warning: fetching %s: %v\n", res.Task, res.Err)
		} else if len(res.Papers) == 0 {
			summary.Empty++
		} else {
			if err := h.sink.Append(res.Papers); err != nil {
				summary.Elapsed = time.Since(start)
				return summary, fmt.Errorf("writing papers for %s: %w", res.Task, err)
			}
			written = len(res.Papers)
			summary.Succeeded++
			summary.Papers += written
		}

		h.record(ctx, res, written)
		h.Progress.Tick(res.Task.String())
	}

	summary.Elapsed = time.Since(start)
	return summary, nil
}

// record stores the outcome in the Recorder if one is set. Recording
// failures are logged; the ledger never decides the fate of a run.
func (h *Harvester) record(ctx context.Context, res TaskResult, written int) {
	if h.Recorder == nil {
		return
	}
	o := ledger.TaskOutcome{
		Category: res.Task.Category,
		Month:    res.Task.Month.String(),
		Cap:      res.Task.Cap,
		Fetched:  res.Fetched,
		Written:  written,
	}
	if res.Err != nil {
		o.Err = res.Err.Error()
	}
	if err := h.Recorder.RecordTask(ctx, o); err != nil {
		fmt.Fprintf(h.Log, "warning: ledger: %v\n", err)
	}
}
