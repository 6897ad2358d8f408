package retry

import (
	"math"
	"time"
)

// Backoff calculates the delay between attempts.
type Backoff interface {
	// Delay returns the wait after the zero-indexed failed attempt.
	Delay(attempt uint) time.Duration
}

// ExpBackoff grows the delay as Base * Factor^attempt, capped at Max.
type ExpBackoff struct {
	// Base is the initial delay duration.
	Base time.Duration
	// Max is the maximum delay duration (cap).
	Max time.Duration
	// Factor is the multiplier applied to each successive delay (e.g., 2.0 for doubling).
	Factor float64
}

// Delay clamps Base * Factor^attempt between Base and Max. A zero Max
// leaves the delay uncapped.
func (b ExpBackoff) Delay(attempt uint) time.Duration {
	f := float64(b.Base) * math.Pow(b.Factor, float64(attempt))

	d := time.Duration(f)
	if d < b.Base {
		return b.Base
	} else if b.Max > 0 && d > b.Max {
		return b.Max
	}

	return d
}

// ConstantBackoff waits the same duration between every attempt.
type ConstantBackoff time.Duration

func (b ConstantBackoff) Delay(uint) time.Duration {
	return time.Duration(b)
}
