// Package backoff implements jittered exponential backoff for restart loops.
package backoff

import (
	"math/rand"
	"time"
)

// Backoff computes successive restart delays. Each call to Next grows the
// delay by Multiplier up to MaxInterval, with 10% jitter in either direction.
// Not safe for concurrent use; each worker owns its own Backoff.
type Backoff struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64

	currentInterval time.Duration
}

// New returns a Backoff starting at initial and capped at max.
func New(initial, max time.Duration, multiplier float64) *Backoff {
	return &Backoff{
		InitialInterval: initial,
		MaxInterval:     max,
		Multiplier:      multiplier,
	}
}

// Next returns the next delay and advances the schedule.
func (b *Backoff) Next() time.Duration {
	if b.currentInterval == 0 {
		b.currentInterval = b.InitialInterval
	} else {
		b.currentInterval = time.Duration(float64(b.currentInterval) * b.Multiplier)
		if b.currentInterval > b.MaxInterval {
			b.currentInterval = b.MaxInterval
		}
	}

	// Jitter: ±10%
	jitter := time.Duration(rand.Float64()*0.2*float64(b.currentInterval)) -
		time.Duration(0.1*float64(b.currentInterval))

	return b.currentInterval + jitter
}

// Reset returns the schedule to its initial state.
func (b *Backoff) Reset() {
	b.currentInterval = 0
}
