package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/arxiv-harvest/internal/harvest"
	"github.com/pdiddy/arxiv-harvest/internal/ledger"
	"github.com/pdiddy/arxiv-harvest/internal/partition"
	"github.com/pdiddy/arxiv-harvest/internal/progress"
	"github.com/pdiddy/arxiv-harvest/internal/search"
	"github.com/pdiddy/arxiv-harvest/internal/sink"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch papers for every category and month and append them to the CSV file",
	Long: `Fetch splits the date range into calendar months and queries the arXiv API
once per (category, month), ranked by relevance. Each month's paper budget is
divided evenly across categories. Results are appended to the output file as
each query completes; the header row is written only when the file is new.

A failed query is reported and skipped; it does not stop the run.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := viper.BindPFlag("ledger_path", cmd.Flags().Lookup("ledger")); err != nil {
			return err
		}
		if err := viper.BindPFlag("summary_path", cmd.Flags().Lookup("summary")); err != nil {
			return err
		}
		return bindHarvestFlags(cmd)
	},
	RunE: runFetch,
}

func init() {
	addHarvestFlags(fetchCmd)
	fetchCmd.Flags().String("ledger", "", "SQLite file recording runs and task outcomes (disabled when empty)")
	fetchCmd.Flags().String("summary", "", "write the run summary as YAML to this file")

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	start := time.Now()
	ctx := context.Background()

	cfg, err := loadHarvestConfig()
	if err != nil {
		return err
	}

	tasks := partition.Partition(cfg.Categories, cfg.StartDate, cfg.EndDate, cfg.PapersPerMonth)
	fmt.Fprintf(os.Stderr, "%d tasks (%d categories, %d papers per category-month) -> %s\n",
		len(tasks), len(cfg.Categories), partition.CapPerCategory(cfg.PapersPerMonth, len(cfg.Categories)), cfg.OutputPath)

	out, err := sink.Open(cfg.OutputPath)
	if err != nil {
		return err
	}

	h := harvest.New(cfg, search.NewArxivClient(cfg, os.Stderr), out)
	h.Log = os.Stderr
	bar := progress.NewBar(os.Stderr, "Fetching Papers", len(tasks))
	h.Progress = bar

	var run *ledger.Run
	if cfg.LedgerPath != "" {
		l, err := ledger.Open(cfg.LedgerPath)
		if err != nil {
			out.Close()
			return err
		}
		defer l.Close()
		run, err = l.BeginRun(ctx, cfg, len(tasks))
		if err != nil {
			out.Close()
			return err
		}
		h.Recorder = run
	}

	summary, runErr := h.Run(ctx, tasks)
	bar.Finish()
	closeErr := out.Close()
	if runErr != nil {
		return runErr
	}
	if closeErr != nil {
		return fmt.Errorf("closing output file: %w", closeErr)
	}

	if run != nil {
		if err := run.Finish(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
		fmt.Fprintf(os.Stderr, "Run %s recorded in %s\n", run.ID, cfg.LedgerPath)
	}

	fmt.Fprintf(os.Stderr, "Appended %d rows to %s\n", out.Rows(), out.Path())
	harvest.FormatSummary(summary, os.Stderr)
	if cfg.SummaryPath != "" {
		if err := harvest.WriteSummary(cfg.SummaryPath, cfg.OutputPath, summary); err != nil {
			return err
		}
	}

	fmt.Println("Fetching and saving complete.")
	fmt.Printf("Execution Time: %v\n", time.Since(start))
	return nil
}
