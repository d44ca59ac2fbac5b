// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// PublishedLayout formats the Published column as dd-mm-yyyy.
const PublishedLayout = "02-01-2006"

// CSVHeader lists the output columns in order.
var CSVHeader = []string{"Title", "Abstract", "Category", "Published"}

// PaperRecord is a normalized paper ready to be written to the output file.
// The Abstract never contains newline characters.
type PaperRecord struct {
	Title     string    `json:"title" yaml:"title"`
	Abstract  string    `json:"abstract" yaml:"abstract"`
	Category  string    `json:"category" yaml:"category"`
	Published time.Time `json:"published" yaml:"published"`
}

// Row returns the record's fields in CSVHeader order.
func (p PaperRecord) Row() []string {
	return []string{p.Title, p.Abstract, p.Category, p.Published.Format(PublishedLayout)}
}
