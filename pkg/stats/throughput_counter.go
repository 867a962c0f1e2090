package stats

import (
	"time"

	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/utils/syncutils"
	"github.com/rs/zerolog/log"
)

// ThroughputCounter logs the rate of Tick counts once per interval. It is
// safe for concurrent use.
type ThroughputCounter struct {
	mu           syncutils.Mutex
	tag          string
	count        uint64
	last_count   uint64
	report_timer ReportTimer
}

func NewThroughputCounter(tag string, duration time.Duration) *ThroughputCounter {
	return &ThroughputCounter{
		tag:          tag,
		report_timer: NewReportTimer(duration),
	}
}

func (c *ThroughputCounter) Tick(count uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count += count
	if c.count > c.last_count && c.report_timer.Check() {
		duration := c.report_timer.Mark()
		tp := float64(c.count-c.last_count) / duration.Seconds()
		c.last_count = c.count
		log.Info().Str("counter", c.tag).Dur("dur", duration).
			Uint64("value", c.count).Float64("per_sec", tp).Msg("[stats] throughput")
	}
}

func (c *ThroughputCounter) GetCount() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}
