// Package avcapture streams frames from a capture device into a fixed pool
// of host memory slots and hands each completed frame to a Sink.
//
// A producer goroutine transfers frames from the device into free slots and
// publishes them to a bounded ring; a consumer goroutine drains published
// slots into the sink and recycles them. When the device has no frame ready
// the producer sleeps on the device's vertical interrupt rather than
// polling. Shutdown is cooperative through a shared abort flag.
package avcapture

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pion/avcapture/internal/logging"
	"github.com/pion/avcapture/pkg/driver"
	"github.com/pion/avcapture/pkg/frame"
	"github.com/pion/avcapture/pkg/hostbuf"
	"github.com/pion/avcapture/pkg/ring"
	pionlogging "github.com/pion/logging"
)

var logger = logging.NewLogger("avcapture")

// Capture owns one capture pipeline: its slot pool, ring, and the two
// worker goroutines.
type Capture struct {
	id    string
	dev   driver.Capturer
	sink  Sink
	cfg   Config
	pacer driver.VerticalInterruptWaiter
	alloc *hostbuf.Allocator
	log   pionlogging.LeveledLogger

	mu      sync.Mutex
	state   State
	claimed bool
	ran     bool
	freed   bool

	ring  *ring.Ring
	abort *ring.AbortFlag

	producerActive atomic.Bool
	consumerActive atomic.Bool
	done           chan struct{}

	errMu sync.Mutex
	err   error

	counters counters
}

// New creates an idle pipeline capturing from dev into sink. Nothing is
// touched on the device until Init.
func New(dev driver.Capturer, sink Sink, cfg Config, opts ...Option) *Capture {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}

	c := &Capture{
		id:    uuid.NewString(),
		dev:   dev,
		sink:  sink,
		cfg:   cfg,
		pacer: o.Pacer,
		alloc: o.Allocator,
		log:   logger,
		state: StateIdle,
		done:  make(chan struct{}),
	}
	if c.pacer == nil {
		c.pacer = dev
	}
	if c.alloc == nil {
		c.alloc = hostbuf.NewAllocator()
	}
	if c.sink == nil {
		c.sink = Discard
	}
	if o.LoggerFactory != nil {
		c.log = o.LoggerFactory.NewLogger("avcapture")
	}
	if c.cfg.StreamOwner == 0 {
		c.cfg.StreamOwner = os.Getpid()
	}
	return c
}

// ID identifies the pipeline in logs and status output.
func (c *Capture) ID() string {
	return c.id
}

// State returns the current lifecycle state.
func (c *Capture) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done is closed once both worker goroutines have exited, whether because
// of Quit or a fatal device error. A pipeline that never ran is done once
// it is stopped.
func (c *Capture) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that stopped the pipeline, if any.
func (c *Capture) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Init checks the device, configures it and allocates the slot pool. On
// failure everything acquired is released and the pipeline stays idle.
func (c *Capture) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Update(StateInitialized, c.setup)
}

func (c *Capture) setup() (err error) {
	if err := c.cfg.Validate(); err != nil {
		return err
	}

	if r, ok := c.dev.(driver.Readier); ok && !r.Ready() {
		return ErrDeviceNotReady
	}

	if sc, ok := c.dev.(driver.StreamClaimer); ok {
		if err := sc.AcquireStream(c.cfg.StreamOwner); err != nil {
			return fmt.Errorf("%w: %v", ErrDeviceBusy, err)
		}
		c.claimed = true
	}
	defer func() {
		if err != nil {
			c.releaseStream()
			if ferr := c.alloc.FreeAll(); ferr != nil {
				c.log.Warnf("failed to free slot buffers: %v", ferr)
			}
		}
	}()

	if cf, ok := c.dev.(driver.Configurer); ok {
		features := driver.Features{Audio: c.cfg.WithAudio, Anc: c.cfg.WithAnc}
		if err := cf.Configure(c.cfg.Media, features); err != nil {
			return fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
		}
	}

	sizes, err := c.bufferSizes()
	if err != nil {
		return err
	}

	c.ring = ring.New(c.cfg.RingCapacity)
	c.abort = ring.NewAbortFlag()
	c.ring.SetAbortFlag(c.abort)

	for i := 0; i < c.cfg.RingCapacity; i++ {
		s, err := c.newSlot(sizes)
		if err != nil {
			return err
		}
		if err := c.ring.Add(s); err != nil {
			return err
		}
	}

	st := c.alloc.Stats()
	c.log.Infof("%s: %d slots (video %d, audio %d, anc %d/%d bytes), %d of %d bytes locked",
		c.id, c.cfg.RingCapacity, sizes.video, sizes.audio, sizes.anc, sizes.anc2, st.LockedBytes, st.Bytes)
	return nil
}

type bufferSizes struct {
	video, audio, anc, anc2 int
}

func (c *Capture) bufferSizes() (bufferSizes, error) {
	var s bufferSizes

	if fs, ok := c.dev.(driver.FrameSizer); ok {
		s.video = fs.VideoWriteSize()
	}
	if s.video <= 0 {
		n, err := frame.Size(c.cfg.Media.FrameFormat, c.cfg.Media.Width, c.cfg.Media.Height)
		if err != nil {
			return s, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
		}
		s.video = n
	}

	if c.cfg.WithAudio {
		s.audio = c.cfg.AudioBufferSize
	}
	if c.cfg.WithAnc {
		if a, ok := c.dev.(driver.AncRegion); ok {
			s.anc, s.anc2 = ancSizes(a.AncFieldOffsets())
		}
	}
	return s, nil
}

// ancSizes derives the two ancillary buffer sizes from the field offsets,
// which are counted back from the end of the device frame.
func ancSizes(field1, field2 uint32) (int, int) {
	if field2 > field1 {
		return 0, int(field2 - field1)
	}
	return int(field1 - field2), int(field2)
}

func (c *Capture) newSlot(sizes bufferSizes) (*ring.Slot, error) {
	var bufs [4][]byte
	for i, size := range [4]int{sizes.video, sizes.audio, sizes.anc, sizes.anc2} {
		b, err := c.alloc.Alloc(size)
		if err != nil {
			return nil, err
		}
		if c.cfg.LockBuffers {
			if err := c.alloc.Lock(b); err != nil {
				c.log.Warnf("%s: capturing into pageable memory: %v", c.id, err)
			}
		}
		bufs[i] = b
	}
	return ring.NewSlot(bufs[0], bufs[1], bufs[2], bufs[3]), nil
}

// Run starts the consumer and then the producer.
func (c *Capture) Run() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Update(StateRunning, func() error {
		c.ran = true
		var wg sync.WaitGroup
		wg.Add(2)
		c.consumerActive.Store(true)
		c.producerActive.Store(true)

		go func() {
			defer wg.Done()
			defer c.consumerActive.Store(false)
			c.consume()
		}()
		go func() {
			defer wg.Done()
			defer c.producerActive.Store(false)
			c.produce()
		}()
		go func() {
			wg.Wait()
			close(c.done)
		}()

		c.log.Infof("%s: running", c.id)
		return nil
	})
}

// Quit signals both loops to exit, waits until they have, then releases
// page locks and the stream claim. It is safe to call more than once.
func (c *Capture) Quit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quit()
}

func (c *Capture) quit() {
	if c.state == StateIdle || c.state == StateStopped {
		return
	}

	// Stopping is legal from initialized and running, stopped from stopping,
	// and neither callback fails, so both updates always succeed.
	_ = c.state.Update(StateStopping, func() error {
		if c.abort != nil {
			c.abort.Set()
		}
		for c.producerActive.Load() || c.consumerActive.Load() {
			time.Sleep(c.cfg.StopPollInterval)
		}
		return nil
	})

	_ = c.state.Update(StateStopped, func() error {
		if err := c.alloc.UnlockAll(); err != nil {
			c.log.Warnf("%s: failed to unlock slot buffers: %v", c.id, err)
		}
		c.releaseStream()
		if !c.ran {
			close(c.done)
		}
		return nil
	})
	c.log.Infof("%s: stopped", c.id)
}

// Close stops the pipeline if needed and frees the slot pool.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.quit()
	if c.freed {
		return nil
	}
	c.freed = true
	return c.alloc.FreeAll()
}

func (c *Capture) releaseStream() {
	if !c.claimed {
		return
	}
	c.claimed = false
	if err := c.dev.(driver.StreamClaimer).ReleaseStream(c.cfg.StreamOwner); err != nil {
		c.log.Warnf("%s: failed to release stream: %v", c.id, err)
	}
}

// fail records err as the reason the pipeline stopped and aborts both loops.
func (c *Capture) fail(err error) {
	c.errMu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.errMu.Unlock()

	c.log.Errorf("%s: %v", c.id, err)
	c.abort.Set()
}
