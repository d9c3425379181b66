package pipeline

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Governor enforces a fixed minimum delay between network lookups of one
// stage. Cache hits never wait.
type Governor struct {
	lim *rate.Limiter
}

// NewGovernor returns a Governor allowing one lookup per interval. The
// first lookup is immediate. A non-positive interval disables waiting.
func NewGovernor(interval time.Duration) *Governor {
	if interval <= 0 {
		return &Governor{lim: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Governor{lim: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next lookup is allowed or ctx is done.
func (g *Governor) Wait(ctx context.Context) error {
	return g.lim.Wait(ctx)
}
