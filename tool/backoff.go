package tool

import (
	"math"
	"math/rand"
	"time"

	"github.com/moyoez/fleet-notify/types"
)

// Backoff computes the delay before a reconnect attempt.
// Multiplier 1 with no jitter is a fixed interval.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64 // fraction of the delay, e.g. 0.2 = ±20%
}

// BackoffFromConfig converts the yaml reconnect section.
func BackoffFromConfig(cfg types.ReconnectConfig) Backoff {
	return Backoff{
		Initial:    time.Duration(cfg.Interval) * time.Millisecond,
		Max:        time.Duration(cfg.MaxInterval) * time.Millisecond,
		Multiplier: cfg.Multiplier,
		Jitter:     cfg.Jitter,
	}
}

// Delay returns the wait after the given 0-based attempt failed.
func (b Backoff) Delay(attempt int) time.Duration {
	initial := b.Initial
	if initial <= 0 {
		initial = 500 * time.Millisecond
	}
	maxDelay := b.Max
	if maxDelay < initial {
		maxDelay = initial
	}
	mult := b.Multiplier
	if mult < 1 {
		mult = 1
	}
	if attempt < 0 {
		attempt = 0
	}

	delay := float64(initial) * math.Pow(mult, float64(attempt))
	if delay > float64(maxDelay) || math.IsInf(delay, 0) {
		delay = float64(maxDelay)
	}
	return applyJitter(time.Duration(delay), b.Jitter)
}

func applyJitter(duration time.Duration, factor float64) time.Duration {
	if factor <= 0 {
		return duration
	}
	delta := int64(float64(duration) * factor)
	if delta <= 0 {
		return duration
	}
	return duration + time.Duration(rand.Int63n(2*delta)-delta)
}
