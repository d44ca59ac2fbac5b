package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/arxiv-harvest/pkg/types"
)

const (
	defaultStart          = "2023-01-01"
	defaultEnd            = "2024-12-01"
	defaultPapersPerMonth = 200
	defaultBatchSize      = 200
	defaultOutput         = "arxiv_papers.csv"
	defaultPageDelay      = 3 * time.Second
	defaultTimeout        = 60 * time.Second
	defaultMaxRetries     = 3
)

var defaultCategories = []string{"cs.AI", "cs.CL", "cs.CV", "cs.LG"}

// harvestFlags maps config keys to the flags that override them.
var harvestFlags = map[string]string{
	"categories":       "categories",
	"start_date":       "start",
	"end_date":         "end",
	"papers_per_month": "papers-per-month",
	"batch_size":       "batch-size",
	"worker_count":     "workers",
	"output_path":      "output",
	"page_delay":       "page-delay",
	"timeout":          "timeout",
	"max_retries":      "max-retries",
}

// addHarvestFlags registers the run parameter flags shared by fetch and plan.
func addHarvestFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSlice("categories", defaultCategories, "arXiv categories to query")
	f.String("start", defaultStart, "first month to fetch (YYYY-MM or YYYY-MM-DD)")
	f.String("end", defaultEnd, "last month to fetch, inclusive (YYYY-MM or YYYY-MM-DD)")
	f.Int("papers-per-month", defaultPapersPerMonth, "paper budget per month, split evenly across categories")
	f.Int("batch-size", defaultBatchSize, "results requested per API page")
	f.Int("workers", 0, "concurrent tasks (default min(32, CPUs+4))")
	f.String("output", defaultOutput, "CSV file to append results to")
	f.Duration("page-delay", defaultPageDelay, "minimum delay between API requests")
	f.Duration("timeout", defaultTimeout, "HTTP request timeout")
	f.Int("max-retries", defaultMaxRetries, "backoff attempts on HTTP 429")
}

// bindHarvestFlags makes the flags of the running command the top layer of
// the viper config.
func bindHarvestFlags(cmd *cobra.Command) error {
	for key, flag := range harvestFlags {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("binding flag %s: %w", flag, err)
		}
	}
	return nil
}

// loadHarvestConfig assembles the run configuration from viper.
func loadHarvestConfig() (types.HarvestConfig, error) {
	start, err := monthValue("start_date")
	if err != nil {
		return types.HarvestConfig{}, err
	}
	end, err := monthValue("end_date")
	if err != nil {
		return types.HarvestConfig{}, err
	}

	cfg := types.HarvestConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:    viper.GetDuration("timeout"),
			UserAgent:  loadedSecrets.UserAgent("arxiv-harvest/" + version),
			MaxRetries: viper.GetInt("max_retries"),
		},
		Categories:     categoriesValue(),
		StartDate:      start,
		EndDate:        end,
		PapersPerMonth: viper.GetInt("papers_per_month"),
		BatchSize:      viper.GetInt("batch_size"),
		WorkerCount:    viper.GetInt("worker_count"),
		OutputPath:     viper.GetString("output_path"),
		PageDelay:      viper.GetDuration("page_delay"),
		LedgerPath:     viper.GetString("ledger_path"),
		SummaryPath:    viper.GetString("summary_path"),
	}
	return cfg, nil
}

// categoriesValue accepts a list from flags or config, or a comma-separated
// string from the environment.
func categoriesValue() []string {
	var out []string
	for _, c := range viper.GetStringSlice("categories") {
		for _, part := range strings.Split(c, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// monthValue reads a date key. YAML config files may carry an already
// parsed timestamp; flags and the environment carry strings.
func monthValue(key string) (time.Time, error) {
	switch v := viper.Get(key).(type) {
	case time.Time:
		return v.UTC(), nil
	case string:
		return parseMonth(v)
	default:
		return time.Time{}, fmt.Errorf("%s: unsupported value %v", key, v)
	}
}

// parseMonth parses YYYY-MM-DD or YYYY-MM.
func parseMonth(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", "2006-01"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD or YYYY-MM", s)
}
