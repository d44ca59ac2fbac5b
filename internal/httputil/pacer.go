// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces requests at least interval apart. A single Pacer is shared by
// every goroutine talking to the same API, so the interval holds across the
// whole process rather than per worker.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer returns a Pacer allowing one request per interval. A zero or
// negative interval disables pacing.
func NewPacer(interval time.Duration) *Pacer {
	if interval <= 0 {
		return &Pacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next request may be sent or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}
