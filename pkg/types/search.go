// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for arxiv-harvest: the
// run configuration, raw search results, and the normalized paper records
// written to the output file.
package types

import "time"

// SearchResult is one entry returned by the search API, before normalization.
type SearchResult struct {
	// Identifier is the arXiv ID without version suffix (e.g. "2301.07041").
	Identifier string `json:"identifier" yaml:"identifier"`

	// Title is the paper title as returned by the API.
	Title string `json:"title" yaml:"title"`

	// Abstract is the paper summary, which may span several lines.
	Abstract string `json:"abstract" yaml:"abstract"`

	// PrimaryCategory is the subject class the paper was filed under.
	PrimaryCategory string `json:"primary_category" yaml:"primary_category"`

	// Published is the submission time of the first version.
	Published time.Time `json:"published" yaml:"published"`
}
