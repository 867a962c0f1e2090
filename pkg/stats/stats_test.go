package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPOf(t *testing.T) {
	data := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, 5, POf(data, 0.5))
	assert.Equal(t, 9, POf(data, 0.9))
	assert.Equal(t, 10, POf(data, 0.99))
	assert.Equal(t, 7, POf([]int{7}, 0.01))
}

func TestThroughputCounterConcurrentTicks(t *testing.T) {
	c := NewThroughputCounter("fetch", time.Millisecond)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Tick(2)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(1600), c.GetCount())
}

func TestStatsCollectorResetsAfterReport(t *testing.T) {
	c := NewStatsCollector[int64]("process_ms", 0)
	c.min_report_samples = 3
	c.AddSample(3)
	c.AddSample(1)
	assert.Len(t, c.data, 2)
	c.AddSample(2)
	assert.Len(t, c.data, 0)
	c.AddSample(4)
	c.PrintRemainingStats()
	assert.Len(t, c.data, 0)
}

func TestReportTimerStartsAtConstruction(t *testing.T) {
	r := NewReportTimer(time.Hour)
	assert.False(t, r.Check())
	assert.Less(t, r.Mark(), time.Minute)

	c := NewStatsCollector[int64]("process_ms", time.Hour)
	c.AddSample(1)
	before := c.report_timer.lastTs
	c.PrintRemainingStats()
	assert.Len(t, c.data, 0)
	assert.False(t, c.report_timer.lastTs.Before(before))
	assert.Less(t, c.report_timer.lastTs.Sub(before), time.Minute)
}
