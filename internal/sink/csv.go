// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sink appends paper records to the output CSV file. The header row
// is written once per file: at the first batch of a run when the file was new
// or empty, and never when it already had content.
package sink

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"

	"github.com/pdiddy/arxiv-harvest/pkg/types"
)

// CSV is an append-only CSV output file. It is not safe for concurrent use;
// the harvester writes from a single goroutine.
type CSV struct {
	path          string
	f             *os.File
	headerPending bool
	rows          int
}

// Open opens path for appending, creating it if needed. If the file already
// holds content the header is suppressed for the whole run.
func Open(path string) (*CSV, error) {
	existing := false
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		existing = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening output file: %w", err)
	}
	return &CSV{path: path, f: f, headerPending: !existing}, nil
}

// Path returns the file the sink writes to.
func (s *CSV) Path() string { return s.path }

// Rows returns the number of data rows appended during this run.
func (s *CSV) Rows() int { return s.rows }

// Append writes records as one contiguous block, preceded by the header if
// it is still pending. An empty batch writes nothing.
func (s *CSV) Append(records []types.PaperRecord) error {
	if len(records) == 0 {
		return nil
	}
	data, err := encode(s.headerPending, records)
	if err != nil {
		return err
	}
	if _, err := s.f.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", s.path, err)
	}
	s.headerPending = false
	s.rows += len(records)
	return nil
}

// Close writes the header if nothing was appended to a new file, so every
// output file starts with one, then closes the file.
func (s *CSV) Close() error {
	if s.headerPending {
		data, err := encode(true, nil)
		if err == nil {
			_, err = s.f.Write(data)
		}
		if err != nil {
			s.f.Close()
			return fmt.Errorf("writing header to %s: %w", s.path, err)
		}
		s.headerPending = false
	}
	return s.f.Close()
}

// encode renders an optional header plus records as CSV.
func encode(header bool, records []types.PaperRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if header {
		if err := w.Write(types.CSVHeader); err != nil {
			return nil, fmt.Errorf("encoding header: %w", err)
		}
	}
	for _, r := range records {
		if err := w.Write(r.Row()); err != nil {
			return nil, fmt.Errorf("encoding record %q: %w", r.Title, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("encoding batch: %w", err)
	}
	return buf.Bytes(), nil
}
