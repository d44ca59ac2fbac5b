// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package progress reports completed tasks against a known total.
package progress

import (
	"fmt"
	"io"
)

// Reporter receives one tick per completed task. It is observational only.
type Reporter interface {
	Tick(label string)
}

// Nop discards ticks.
type Nop struct{}

// Tick does nothing.
func (Nop) Tick(string) {}

// Bar redraws a single status line on w for every tick, e.g.
//
//	Fetching Papers: 12/96 (12%) cs.CL 2023-03
type Bar struct {
	w     io.Writer
	desc  string
	total int
	done  int
}

// NewBar returns a bar for total ticks and draws its initial state.
func NewBar(w io.Writer, desc string, total int) *Bar {
	b := &Bar{w: w, desc: desc, total: total}
	b.draw("")
	return b
}

// Tick advances the bar by one.
func (b *Bar) Tick(label string) {
	b.done++
	b.draw(label)
}

// Done returns the number of ticks so far.
func (b *Bar) Done() int { return b.done }

// Finish ends the status line.
func (b *Bar) Finish() {
	fmt.Fprintln(b.w)
}

func (b *Bar) draw(label string) {
	pct := 100
	if b.total > 0 {
		pct = b.done * 100 / b.total
	}
	fmt.Fprintf(b.w, "\r%s: %d/%d (%d%%) %-24s", b.desc, b.done, b.total, pct, label)
}
