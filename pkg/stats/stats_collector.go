package stats

import (
	"time"

	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/utils/syncutils"
	"github.com/rs/zerolog/log"
	"golang.org/x/exp/constraints"
	"golang.org/x/exp/slices"
)

const (
	DEFAULT_MIN_REPORT_SAMPLES = 200
	DEFAULT_COLLECT_DURATION   = time.Duration(10) * time.Second
)

func POf[E constraints.Ordered](t []E, percent float64) E {
	idx := int(float64(len(t))*percent+0.5) - 1
	if idx < 0 {
		idx = 0
	}
	return t[idx]
}

// StatsCollector gathers samples and logs p50/p90/p99 once enough samples
// arrived and the report interval elapsed.
type StatsCollector[E constraints.Ordered] struct {
	mu                 syncutils.Mutex
	tag                string
	data               []E
	report_timer       ReportTimer
	min_report_samples uint32
}

func NewStatsCollector[E constraints.Ordered](tag string, reportInterval time.Duration) *StatsCollector[E] {
	return &StatsCollector[E]{
		data:               make([]E, 0, 128),
		report_timer:       NewReportTimer(reportInterval),
		tag:                tag,
		min_report_samples: DEFAULT_MIN_REPORT_SAMPLES,
	}
}

func (c *StatsCollector[E]) AddSample(sample E) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = append(c.data, sample)
	if uint32(len(c.data)) >= c.min_report_samples && c.report_timer.Check() {
		c.report()
	}
}

// PrintRemainingStats flushes whatever was collected since the last report.
func (c *StatsCollector[E]) PrintRemainingStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.data) > 0 {
		c.report()
	}
}

func (c *StatsCollector[E]) report() {
	slices.Sort(c.data)
	duration := c.report_timer.Mark()
	log.Info().Str("stats", c.tag).Int("samples", len(c.data)).Dur("dur", duration).
		Interface("p50", POf(c.data, 0.5)).
		Interface("p90", POf(c.data, 0.9)).
		Interface("p99", POf(c.data, 0.99)).
		Msg("[stats] latency")
	c.data = make([]E, 0, c.min_report_samples)
}
