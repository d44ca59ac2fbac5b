package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/arxiv-harvest/internal/harvest"
)

var reportCmd = &cobra.Command{
	Use:   "report <summary.yaml>",
	Short: "Print a run summary saved with fetch --summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		summary, output, err := harvest.ReadSummary(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Output: %s (elapsed %v)\n", output, summary.Elapsed)
		harvest.FormatSummary(summary, os.Stdout)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
}
