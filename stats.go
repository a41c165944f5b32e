package avcapture

import (
	"sync"
	"sync/atomic"

	"github.com/pion/avcapture/pkg/driver"
	"github.com/pion/avcapture/pkg/hostbuf"
	"github.com/pion/avcapture/pkg/ring"
)

type counters struct {
	lostFrames     atomic.Uint64
	sinkErrors     atomic.Uint64
	interruptWaits atomic.Uint64

	mu     sync.Mutex
	device driver.IngestStatus
}

// setDevice keeps the producer's latest device status, so Stats never
// calls into the device from another goroutine.
func (c *counters) setDevice(st driver.IngestStatus) {
	c.mu.Lock()
	c.device = st
	c.mu.Unlock()
}

func (c *counters) lastDevice() driver.IngestStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.device
}

// Stats is a snapshot of a pipeline.
type Stats struct {
	ID    string
	State State
	Ring  ring.Stats
	// Device is the last ingest status the producer read.
	Device  driver.IngestStatus
	Buffers hostbuf.Stats

	// LostFrames counts failed transfers.
	LostFrames uint64
	SinkErrors uint64
	// InterruptWaits counts producer cycles that found no frame ready.
	InterruptWaits uint64
}

// Stats may be called from any goroutine.
func (c *Capture) Stats() Stats {
	c.mu.Lock()
	s := Stats{ID: c.id, State: c.state}
	r := c.ring
	c.mu.Unlock()

	if r != nil {
		s.Ring = r.Stats()
	}
	s.Device = c.counters.lastDevice()
	s.Buffers = c.alloc.Stats()
	s.LostFrames = c.counters.lostFrames.Load()
	s.SinkErrors = c.counters.sinkErrors.Load()
	s.InterruptWaits = c.counters.interruptWaits.Load()
	return s
}
