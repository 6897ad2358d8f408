package retry

import (
	"math/rand"
	"time"
)

// Jitter is the share of each delay that is randomized, so many machines
// reconnecting to one store do not retry in lockstep. Zero or a negative value
// keeps the exact delay.
type Jitter float64

// EqualJitter keeps half the delay fixed and randomizes the rest.
const EqualJitter Jitter = 0.5

// FullJitter picks a delay uniformly between zero and the backoff delay.
const FullJitter Jitter = 1.0

// WithoutJitter uses the exact backoff delay.
const WithoutJitter Jitter = -1.0

func (j Jitter) jitter(d time.Duration) time.Duration {
	if j <= 0.0 {
		return d
	}

	//nolint:gosec // G404: math/rand is sufficient for jitter; crypto/rand is unnecessary overhead
	r := rand.Float64() * float64(d)

	if j > 0.0 && j < 1.0 {
		r = float64(j)*r + float64(1.0-j)*float64(d)
	}

	return time.Duration(r)
}
