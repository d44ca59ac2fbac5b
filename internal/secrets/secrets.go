// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads credentials and contact details from a directory of
// plain-text files. Each file is one secret: the filename is the key and the
// trimmed contents are the value.
//
// Recognized keys: contact-email.
package secrets

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ContactEmail is the key of the address advertised to the arXiv API in the
// User-Agent header.
const ContactEmail = "contact-email"

// Secrets maps key names to values.
type Secrets map[string]string

// Load reads all files in dir. A missing directory is not an error; Load
// returns an empty set. Unreadable files produce a warning on w but do not
// abort.
func Load(dir string, w io.Writer) (Secrets, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Secrets{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	s := make(Secrets)
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		name := entry.Name()

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(w, "warning: could not read secret %s: %v\n", name, err)
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			s[name] = value
		}
	}
	return s, nil
}

// UserAgent returns base, extended with a mailto contact when one is set
// (e.g. "arxiv-harvest/0.1 (mailto:me@example.com)").
func (s Secrets) UserAgent(base string) string {
	if email := s[ContactEmail]; email != "" {
		return fmt.Sprintf("%s (mailto:%s)", base, email)
	}
	return base
}
