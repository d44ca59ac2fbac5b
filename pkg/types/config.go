// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used when talking to the search API.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "arxiv-harvest/0.1 (mailto:me@example.com)").
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// MaxRetries bounds the backoff attempts on HTTP 429 responses (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// HarvestConfig holds every parameter of a harvest run. It is read once at
// process start and passed explicitly to the orchestrator.
type HarvestConfig struct {
	HTTPConfig `yaml:",inline"`

	// Categories lists the arXiv subject classes to query (e.g. "cs.AI").
	Categories []string `json:"categories" yaml:"categories"`

	// StartDate and EndDate select the inclusive range of calendar months.
	// Only year and month are significant.
	StartDate time.Time `json:"start_date" yaml:"start_date"`
	EndDate   time.Time `json:"end_date" yaml:"end_date"`

	// PapersPerMonth is the monthly budget shared by all categories. Each
	// category gets PapersPerMonth / len(Categories), rounded down.
	PapersPerMonth int `json:"papers_per_month" yaml:"papers_per_month"`

	// BatchSize is the page size hint passed to the search client.
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// WorkerCount is the number of tasks fetched concurrently.
	WorkerCount int `json:"worker_count" yaml:"worker_count"`

	// OutputPath is the CSV file that results are appended to.
	OutputPath string `json:"output_path" yaml:"output_path"`

	// PageDelay is the minimum interval between two API requests, shared by
	// all workers (default 3s, per the arXiv terms of use).
	PageDelay time.Duration `json:"page_delay" yaml:"page_delay"`

	// LedgerPath is an optional SQLite database recording runs and task
	// outcomes. Empty disables the ledger.
	LedgerPath string `json:"ledger_path,omitempty" yaml:"ledger_path,omitempty"`

	// SummaryPath is an optional YAML file the run summary is written to.
	SummaryPath string `json:"summary_path,omitempty" yaml:"summary_path,omitempty"`
}
