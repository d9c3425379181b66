package resilience

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Backoff controls how many times a transient failure is retried and how
// long to wait in between. Delays double from Initial up to Max with up to
// 25% jitter either way.
type Backoff struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
}

// DefaultBackoff is used for any zero field of a Backoff.
var DefaultBackoff = Backoff{Attempts: 3, Initial: 500 * time.Millisecond, Max: 10 * time.Second}

func (b Backoff) withDefaults() Backoff {
	if b.Attempts <= 0 {
		b.Attempts = DefaultBackoff.Attempts
	}
	if b.Initial <= 0 {
		b.Initial = DefaultBackoff.Initial
	}
	if b.Max < b.Initial {
		b.Max = max(DefaultBackoff.Max, b.Initial)
	}
	return b
}

// delay returns the sleep before retry n (1-based).
func (b Backoff) delay(n int) time.Duration {
	d := b.Initial << (n - 1)
	if d <= 0 || d > b.Max {
		d = b.Max
	}
	jitter := (rand.Float64()*0.5 - 0.25) * float64(d)
	return d + time.Duration(jitter)
}

// Retry calls fn until it succeeds, returns a non-transient error, the
// attempts run out or ctx is done. op names the call in retry logs.
func Retry[T any](ctx context.Context, b Backoff, op string, fn func(context.Context) (T, error)) (T, error) {
	b = b.withDefaults()

	var zero T
	for attempt := 1; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil || !IsTransient(err) || attempt >= b.Attempts {
			return zero, err
		}

		d := b.delay(attempt)
		zap.L().Debug("retrying transient failure",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("wait", d),
			zap.Error(err),
		)

		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, err
		case <-timer.C:
		}
	}
}
