package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/arxiv-harvest/internal/partition"
	"github.com/pdiddy/arxiv-harvest/internal/search"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "List the queries a fetch would run, without contacting the API",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindHarvestFlags(cmd)
	},
	RunE: runPlan,
}

func init() {
	addHarvestFlags(planCmd)
	planCmd.Flags().Bool("yaml", false, "output tasks as YAML")

	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadHarvestConfig()
	if err != nil {
		return err
	}
	tasks := partition.Partition(cfg.Categories, cfg.StartDate, cfg.EndDate, cfg.PapersPerMonth)

	asYAML, _ := cmd.Flags().GetBool("yaml")
	if asYAML {
		return writePlanYAML(tasks, os.Stdout)
	}
	writePlanTable(tasks, os.Stdout)
	return nil
}

// plannedTask is the YAML form of a task, with its query spelled out.
type plannedTask struct {
	Category string `yaml:"category"`
	First    string `yaml:"first_day"`
	Last     string `yaml:"last_day"`
	Cap      int    `yaml:"cap"`
	Query    string `yaml:"query"`
}

func writePlanYAML(tasks []partition.Task, w io.Writer) error {
	planned := make([]plannedTask, 0, len(tasks))
	for _, t := range tasks {
		planned = append(planned, plannedTask{
			Category: t.Category,
			First:    t.Month.First.Format("2006-01-02"),
			Last:     t.Month.Last.Format("2006-01-02"),
			Cap:      t.Cap,
			Query:    search.BuildQuery(t.Category, t.Month),
		})
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(planned)
}

func writePlanTable(tasks []partition.Task, w io.Writer) {
	fmt.Fprintf(w, "%-10s  %-10s  %-10s  %-5s  %s\n", "Category", "First", "Last", "Cap", "Query")
	for _, t := range tasks {
		fmt.Fprintf(w, "%-10s  %-10s  %-10s  %-5d  %s\n",
			t.Category, t.Month.First.Format("2006-01-02"), t.Month.Last.Format("2006-01-02"),
			t.Cap, search.BuildQuery(t.Category, t.Month))
	}
	fmt.Fprintf(w, "\n%d tasks\n", len(tasks))
}
