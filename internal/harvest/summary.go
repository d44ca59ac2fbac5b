// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"fmt"
	"io"
	"os"
	"time"

	"go.yaml.in/yaml/v3"
)

// Summary holds the counters of a harvest run.
type Summary struct {
	Tasks     int           `yaml:"tasks"`
	Succeeded int           `yaml:"succeeded"`
	Empty     int           `yaml:"empty"`
	Failed    int           `yaml:"failed"`
	Papers    int           `yaml:"papers"`
	Elapsed   time.Duration `yaml:"elapsed"`
	Errors    []TaskError   `yaml:"errors,omitempty"`
}

// TaskError records why one task produced no papers.
type TaskError struct {
	Category string `yaml:"category"`
	Month    string `yaml:"month"`
	Error    string `yaml:"error"`
}

// Completed returns the number of tasks that reported back.
func (s Summary) Completed() int {
	return s.Succeeded + s.Empty + s.Failed
}

// FormatSummary writes a short human-readable report to w.
func FormatSummary(s Summary, w io.Writer) {
	fmt.Fprintf(w, "%d tasks: %d with papers, %d empty, %d failed; %d papers written\n",
		s.Tasks, s.Succeeded, s.Empty, s.Failed, s.Papers)
	for _, e := range s.Errors {
		fmt.Fprintf(w, "  failed  %s %s: %s\n", e.Category, e.Month, e.Error)
	}
}

// summaryFile is the on-disk form of a run summary.
type summaryFile struct {
	Output    string    `yaml:"output"`
	Timestamp time.Time `yaml:"timestamp"`
	Summary   Summary   `yaml:"summary"`
}

// WriteSummary saves s as YAML to path, noting which output file the run
// appended to.
func WriteSummary(path, output string, s Summary) error {
	data, err := yaml.Marshal(&summaryFile{Output: output, Timestamp: time.Now(), Summary: s})
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadSummary loads a summary written by WriteSummary and returns it with
// the output path it refers to.
func ReadSummary(path string) (Summary, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Summary{}, "", fmt.Errorf("reading summary: %w", err)
	}
	var sf summaryFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return Summary{}, "", fmt.Errorf("parsing summary: %w", err)
	}
	return sf.Summary, sf.Output, nil
}
