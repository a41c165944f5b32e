package rtpsink

import (
	"time"
)

// bitrateTracker measures the bit rate of whatever was added within the
// last window.
type bitrateTracker struct {
	window time.Duration
	sizes  []int
	times  []time.Time
}

func newBitrateTracker(window time.Duration) *bitrateTracker {
	return &bitrateTracker{window: window}
}

func (bt *bitrateTracker) add(sizeBytes int, timestamp time.Time) {
	bt.sizes = append(bt.sizes, sizeBytes)
	bt.times = append(bt.times, timestamp)

	cutoff := timestamp.Add(-bt.window)
	i := 0
	for ; i < len(bt.times); i++ {
		if bt.times[i].After(cutoff) {
			break
		}
	}
	bt.sizes = bt.sizes[i:]
	bt.times = bt.times[i:]
}

// bitrate is in bits per second; it needs two samples at distinct times.
func (bt *bitrateTracker) bitrate() float64 {
	if len(bt.times) < 2 {
		return 0
	}
	total := 0
	for _, b := range bt.sizes {
		total += b
	}
	d := bt.times[len(bt.times)-1].Sub(bt.times[0]).Seconds()
	if d <= 0 {
		return 0
	}
	return float64(total*8) / d
}
