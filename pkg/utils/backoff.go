package utils

import "time"

// ExpBackoff doubles initial once per attempt after the first and caps the
// result at max. Doubling stops before the duration could overflow.
func ExpBackoff(initial, max time.Duration, attempt int) time.Duration {
	d := initial
	for i := 1; i < attempt; i++ {
		if d > max/2 {
			return max
		}
		d *= 2
	}
	if d <= 0 || d > max {
		d = max
	}
	return d
}
