package driver

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/avcapture/pkg/prop"
)

func wrapAdapter(a Adapter, info Info) Driver {
	return &adapterWrapper{
		Adapter: a,
		id:      uuid.NewString(),
		info:    info,
		state:   StateClosed,
	}
}

// adapterWrapper tracks the state of a registered adapter and forwards the
// optional capabilities of the underlying device. When the device lacks a
// capability the wrapper answers with a neutral value.
type adapterWrapper struct {
	Adapter
	id   string
	info Info

	mu    sync.Mutex
	state State
}

func (w *adapterWrapper) ID() string {
	return w.id
}

func (w *adapterWrapper) Info() Info {
	return w.info
}

func (w *adapterWrapper) Status() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *adapterWrapper) Open() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.Update(StateOpened, w.Adapter.Open)
}

func (w *adapterWrapper) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateRunning {
		if err := w.Adapter.StopIngest(); err != nil {
			return err
		}
	}
	return w.state.Update(StateClosed, w.Adapter.Close)
}

func (w *adapterWrapper) Properties() []prop.Media {
	if w.Status() == StateClosed {
		return nil
	}
	return w.Adapter.Properties()
}

func (w *adapterWrapper) StartIngest(r FrameRange) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.Update(StateRunning, func() error {
		return w.Adapter.StartIngest(r)
	})
}

// StopIngest is allowed on an opened driver so callers can reset the ingest
// engine before starting it.
func (w *adapterWrapper) StopIngest() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.state {
	case StateClosed:
		return fmt.Errorf("invalid state: driver hasn't been opened")
	case StateRunning:
		return w.state.Update(StateOpened, w.Adapter.StopIngest)
	default:
		return w.Adapter.StopIngest()
	}
}

func (w *adapterWrapper) Transfer(x *Transfer) error {
	if w.Status() != StateRunning {
		return fmt.Errorf("invalid state: driver is not running")
	}
	return w.Adapter.Transfer(x)
}

func (w *adapterWrapper) WaitForVerticalInterrupt(timeout time.Duration) bool {
	if w.Status() == StateClosed {
		time.Sleep(timeout)
		return false
	}
	return w.Adapter.WaitForVerticalInterrupt(timeout)
}

func (w *adapterWrapper) Configure(p prop.Media, f Features) error {
	if w.Status() == StateClosed {
		return fmt.Errorf("invalid state: driver hasn't been opened")
	}
	if c, ok := w.Adapter.(Configurer); ok {
		return c.Configure(p, f)
	}
	return nil
}

func (w *adapterWrapper) Ready() bool {
	if w.Status() == StateClosed {
		return false
	}
	if r, ok := w.Adapter.(Readier); ok {
		return r.Ready()
	}
	return true
}

func (w *adapterWrapper) AcquireStream(owner int) error {
	if c, ok := w.Adapter.(StreamClaimer); ok {
		return c.AcquireStream(owner)
	}
	return nil
}

func (w *adapterWrapper) ReleaseStream(owner int) error {
	if c, ok := w.Adapter.(StreamClaimer); ok {
		return c.ReleaseStream(owner)
	}
	return nil
}

// AncFieldOffsets returns zero offsets for devices without an ancillary
// region, which sizes both anc buffers to zero.
func (w *adapterWrapper) AncFieldOffsets() (uint32, uint32) {
	if a, ok := w.Adapter.(AncRegion); ok {
		return a.AncFieldOffsets()
	}
	return 0, 0
}

// VideoWriteSize returns 0 when the device doesn't know its frame size.
func (w *adapterWrapper) VideoWriteSize() int {
	if s, ok := w.Adapter.(FrameSizer); ok {
		return s.VideoWriteSize()
	}
	return 0
}
