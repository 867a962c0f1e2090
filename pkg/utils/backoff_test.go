package utils

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExpBackoff(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, ExpBackoff(100*time.Millisecond, time.Second, 1))
	assert.Equal(t, 400*time.Millisecond, ExpBackoff(100*time.Millisecond, time.Second, 3))
	assert.Equal(t, time.Second, ExpBackoff(100*time.Millisecond, time.Second, 5))
	assert.Equal(t, time.Second, ExpBackoff(100*time.Millisecond, time.Second, 1000))
	assert.Equal(t, time.Second, ExpBackoff(0, time.Second, 3))
}

func TestExpBackoffNeverWraps(t *testing.T) {
	// 5ns shifted by 62 bits wraps to a positive value below max
	max := time.Duration(math.MaxInt64)
	prev := time.Duration(0)
	for attempt := 1; attempt < 200; attempt++ {
		d := ExpBackoff(5, max, attempt)
		assert.Greater(t, d, time.Duration(0), "attempt %d", attempt)
		assert.GreaterOrEqual(t, d, prev, "attempt %d", attempt)
		prev = d
	}
	assert.Equal(t, max, ExpBackoff(5, max, 63))
}
