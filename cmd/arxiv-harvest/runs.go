package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/arxiv-harvest/internal/ledger"
)

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List past fetch runs recorded in the ledger",
	Long: `Runs lists fetch runs recorded in the SQLite ledger, most recent first.
Given a run ID, it lists that run's task outcomes instead.`,
	Args: cobra.MaximumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return viper.BindPFlag("ledger_path", cmd.Flags().Lookup("ledger"))
	},
	RunE: runRuns,
}

func init() {
	runsCmd.Flags().String("ledger", "", "SQLite ledger file")
	runsCmd.Flags().Int("limit", 20, "maximum number of runs to list")

	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	path := viper.GetString("ledger_path")
	if path == "" {
		return fmt.Errorf("no ledger configured: pass --ledger or set ledger_path")
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}

	l, err := ledger.Open(path)
	if err != nil {
		return err
	}
	defer l.Close()

	ctx := context.Background()
	if len(args) == 1 {
		outcomes, err := l.Outcomes(ctx, args[0])
		if err != nil {
			return err
		}
		writeOutcomes(outcomes, os.Stdout)
		return nil
	}

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := l.Runs(ctx, limit)
	if err != nil {
		return err
	}
	writeRuns(runs, os.Stdout)
	return nil
}

func writeRuns(runs []ledger.RunInfo, w io.Writer) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	fmt.Fprintf(w, "%-36s  %-20s  %-8s  %-11s  %-6s  %s\n", "Run", "Started", "Status", "Tasks", "Failed", "Papers")
	for _, r := range runs {
		status := "running"
		if r.Finished() {
			status = "done"
		}
		fmt.Fprintf(w, "%-36s  %-20s  %-8s  %5d/%-5d  %-6d  %d\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), status, r.Completed, r.Tasks, r.Failed, r.Papers)
	}
}

func writeOutcomes(outcomes []ledger.TaskOutcome, w io.Writer) {
	if len(outcomes) == 0 {
		fmt.Fprintln(w, "No task outcomes recorded for this run.")
		return
	}
	fmt.Fprintf(w, "%-10s  %-7s  %-5s  %-7s  %-7s  %s\n", "Category", "Month", "Cap", "Fetched", "Written", "Error")
	for _, o := range outcomes {
		fmt.Fprintf(w, "%-10s  %-7s  %-5d  %-7d  %-7d  %s\n", o.Category, o.Month, o.Cap, o.Fetched, o.Written, o.Err)
	}
}
