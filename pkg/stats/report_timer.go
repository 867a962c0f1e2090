package stats

import (
	"time"
)

type ReportTimer struct {
	lastTs   time.Time
	duration time.Duration
}

// NewReportTimer starts the first interval now.
func NewReportTimer(duration time.Duration) ReportTimer {
	return ReportTimer{
		lastTs:   time.Now(),
		duration: duration,
	}
}

// Check reports whether the interval has elapsed since the last Mark.
func (r *ReportTimer) Check() bool {
	return time.Since(r.lastTs) >= r.duration
}

func (r *ReportTimer) Mark() time.Duration {
	duration := time.Since(r.lastTs)
	r.lastTs = time.Now()
	return duration
}
