package progress

import (
	"fmt"
	"time"
)

// Tracker accumulates the byte and time counters for one download.
// Counters are monotonic and never reset mid-download; each download
// owns its own tracker.
type Tracker struct {
	totalBytes int64
	startTime  time.Time
	now        func() time.Time
}

func NewTracker() *Tracker {
	return NewTrackerWithNow(time.Now)
}

// NewTrackerWithNow returns a tracker with a custom time source (for tests).
func NewTrackerWithNow(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{startTime: now(), now: now}
}

func (t *Tracker) Add(n int) {
	if n > 0 {
		t.totalBytes += int64(n)
	}
}

func (t *Tracker) TotalBytes() int64 {
	return t.totalBytes
}

func (t *Tracker) Elapsed() time.Duration {
	return t.now().Sub(t.startTime)
}

// AvgSpeed returns the average throughput in bytes per second since
// the tracker was created.
func (t *Tracker) AvgSpeed() float64 {
	_, avg := Speeds(t.totalBytes, t.totalBytes, t.Elapsed())
	return avg
}

// Speeds computes the instantaneous speed for bytesInInterval and the
// average speed for totalBytes over elapsed, both in bytes per second.
// Zero (or negative) elapsed time yields zero speeds.
func Speeds(bytesInInterval, totalBytes int64, elapsed time.Duration) (current, avg float64) {
	secs := elapsed.Seconds()
	if secs <= 0 {
		return 0, 0
	}
	return float64(bytesInInterval) / secs, float64(totalBytes) / secs
}

// FormatSpeed renders a bytes-per-second figure with a 1024 divisor
// and two-decimal precision, e.g. "1.50 KB/s".
func FormatSpeed(speed float64) string {
	for _, unit := range []string{"B/s", "KB/s", "MB/s", "GB/s"} {
		if speed < 1024.0 {
			return fmt.Sprintf("%.2f %s", speed, unit)
		}
		speed /= 1024.0
	}
	return fmt.Sprintf("%.2f TB/s", speed)
}
