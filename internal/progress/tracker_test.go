package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSpeeds(t *testing.T) {
	current, avg := Speeds(1536, 1536, time.Second)
	assert.Equal(t, 1536.0, current)
	assert.Equal(t, 1536.0, avg)
	assert.Equal(t, "1.50 KB/s", FormatSpeed(avg))
}

func TestSpeedsZeroElapsed(t *testing.T) {
	current, avg := Speeds(1536, 4096, 0)
	assert.Equal(t, 0.0, current)
	assert.Equal(t, 0.0, avg)
	assert.Equal(t, "0.00 B/s", FormatSpeed(current))
	assert.Equal(t, "0.00 B/s", FormatSpeed(avg))
}

func TestFormatSpeedUnits(t *testing.T) {
	tests := []struct {
		speed float64
		want  string
	}{
		{0, "0.00 B/s"},
		{512, "512.00 B/s"},
		{1536, "1.50 KB/s"},
		{1024 * 1024, "1.00 MB/s"},
		{2.5 * 1024 * 1024 * 1024, "2.50 GB/s"},
		{3 * 1024 * 1024 * 1024 * 1024, "3.00 TB/s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatSpeed(tt.speed))
	}
}

func TestTrackerAvgSpeed(t *testing.T) {
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	tracker := NewTrackerWithNow(func() time.Time { return now })

	assert.Equal(t, 0.0, tracker.AvgSpeed())

	tracker.Add(4096)
	tracker.Add(-10) // ignored
	now = now.Add(2 * time.Second)

	assert.Equal(t, int64(4096), tracker.TotalBytes())
	assert.Equal(t, 2048.0, tracker.AvgSpeed())
}
