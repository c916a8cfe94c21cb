package worker

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Stats collects per-task compute durations in an HDR histogram.
type Stats struct {
	hist *hdrhistogram.Histogram
	mu   sync.Mutex
}

// StatsSnapshot is a point-in-time view of the recorded durations.
type StatsSnapshot struct {
	Count int64
	Min   time.Duration
	Max   time.Duration
	P50   time.Duration
	P99   time.Duration
}

// NewStats creates a collector tracking durations from 1µs to 1h.
func NewStats() *Stats {
	return &Stats{
		hist: hdrhistogram.New(int64(time.Microsecond), int64(time.Hour), 3),
	}
}

// Record adds one task duration.
func (s *Stats) Record(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.hist.RecordValue(int64(d))
}

// Snapshot returns the current aggregate view.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return StatsSnapshot{
		Count: s.hist.TotalCount(),
		Min:   time.Duration(s.hist.Min()),
		Max:   time.Duration(s.hist.Max()),
		P50:   time.Duration(s.hist.ValueAtQuantile(50)),
		P99:   time.Duration(s.hist.ValueAtQuantile(99)),
	}
}
