package netmon

import "time"

// Default backoff parameters.
const (
	DefaultBaseDelay         = 5 * time.Second
	DefaultMaxDelay          = 300 * time.Second
	DefaultReconnectedWindow = 5 * time.Second
	DefaultProbeInterval     = 300 * time.Second
)

// Delay returns the reconnection delay for the given attempt:
// min(max, 2^attempt * base). The result never exceeds max, however large
// attempt grows.
func Delay(attempt int, base, max time.Duration) time.Duration {
	if base <= 0 {
		base = DefaultBaseDelay
	}
	if max <= 0 {
		max = DefaultMaxDelay
	}
	if attempt < 0 {
		attempt = 0
	}

	d := base
	for i := 0; i < attempt; i++ {
		if d >= max {
			return max
		}
		d *= 2
	}
	if d > max {
		return max
	}
	return d
}
