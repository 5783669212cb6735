package resolver

import (
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// maxBackOff caps the delay before jitter, however many attempts are made
const maxBackOff = time.Minute

// jitteredBackOff doubles the delay on every attempt, up to maxBackOff, and
// scales each delay by a uniform factor in [0.5, 1.0].
type jitteredBackOff struct {
	base    time.Duration
	attempt int
	random  func() float64
}

var _ backoff.BackOff = (*jitteredBackOff)(nil)

func newJitteredBackOff(base time.Duration, random func() float64) *jitteredBackOff {
	if random == nil {
		random = rand.Float64
	}
	return &jitteredBackOff{base: base, random: random}
}

// NextBackOff returns the delay before the next attempt
func (b *jitteredBackOff) NextBackOff() time.Duration {
	delay := maxBackOff
	if b.attempt < 63 && b.base <= maxBackOff>>b.attempt {
		delay = b.base << b.attempt
		b.attempt++
	}
	return time.Duration(float64(delay) * (0.5 + 0.5*b.random()))
}

// Reset restarts the sequence at the base delay
func (b *jitteredBackOff) Reset() {
	b.attempt = 0
}
