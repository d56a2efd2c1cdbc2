package bridge

import (
	"math/rand"
	"time"
)

// jitterFactorMin and jitterFactorMax bound the multiplicative jitter
// applied to the current backoff base before sleeping.
const (
	jitterFactorMin = 1.0
	jitterFactorMax = 1.5
)

// nextSleep returns the duration to sleep before the next reconnect
// attempt: current scaled by a factor sampled uniformly from
// [jitterFactorMin, jitterFactorMax], capped at max.
func nextSleep(current, max time.Duration) time.Duration {
	factor := jitterFactorMin + rand.Float64()*(jitterFactorMax-jitterFactorMin)
	d := time.Duration(float64(current) * factor)
	if d > max {
		d = max
	}
	return d
}

// nextBase returns the post-sleep base for the following attempt: current
// doubled, capped at max. This advances regardless of the jitter applied to
// the sleep that just elapsed.
func nextBase(current, max time.Duration) time.Duration {
	d := current * 2
	if d > max {
		d = max
	}
	return d
}
