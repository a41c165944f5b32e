// Package hostbuf allocates the page-aligned host buffers frames are
// transferred into, and pins them in physical memory for the lifetime of a
// capture pipeline.
package hostbuf

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pion/avcapture/internal/logging"
)

var logger = logging.NewLogger("avcapture/hostbuf")

var (
	// ErrLockUnsupported is returned by Lock on platforms without mlock.
	ErrLockUnsupported = errors.New("hostbuf: page locking is not supported on this platform")
	errUnknownBuffer   = errors.New("hostbuf: buffer was not allocated by this allocator")
)

type buffer struct {
	data   []byte
	mapped bool
	locked bool
}

// Allocator owns every buffer it hands out. Buffers are released together
// by FreeAll; they are never freed one by one.
type Allocator struct {
	mu      sync.Mutex
	buffers map[*byte]*buffer
	order   []*buffer
}

// NewAllocator creates an empty allocator.
func NewAllocator() *Allocator {
	return &Allocator{buffers: make(map[*byte]*buffer)}
}

// Alloc returns a zeroed buffer of exactly size bytes. A size of zero
// returns a nil buffer, which downstream code treats as a disabled channel.
func (a *Allocator) Alloc(size int) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("hostbuf: invalid size %d", size)
	}
	if size == 0 {
		return nil, nil
	}

	data, mapped, err := allocate(size)
	if err != nil {
		return nil, fmt.Errorf("hostbuf: failed to allocate %d bytes: %w", size, err)
	}

	b := &buffer{data: data, mapped: mapped}
	a.mu.Lock()
	a.buffers[&data[0]] = b
	a.order = append(a.order, b)
	a.mu.Unlock()
	return data, nil
}

// Lock pins data in physical memory so the device can DMA into it without
// faulting. Locking an empty buffer or an already locked one is a no-op.
func (a *Allocator) Lock(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.buffers[&data[0]]
	if !ok {
		return errUnknownBuffer
	}
	if b.locked {
		return nil
	}
	if err := lock(b.data); err != nil {
		return err
	}
	b.locked = true
	return nil
}

// UnlockAll releases the page lock on every locked buffer. The first error
// is returned, but every buffer is attempted.
func (a *Allocator) UnlockAll() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var firstErr error
	for _, b := range a.order {
		if !b.locked {
			continue
		}
		if err := unlock(b.data); err != nil {
			logger.Warnf("failed to unlock %d byte buffer: %v", len(b.data), err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		b.locked = false
	}
	return firstErr
}

// FreeAll unlocks and releases every buffer. Buffers must not be used
// afterwards.
func (a *Allocator) FreeAll() error {
	firstErr := a.UnlockAll()

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, b := range a.order {
		if !b.mapped {
			continue
		}
		if err := release(b.data); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.order = nil
	a.buffers = make(map[*byte]*buffer)
	return firstErr
}

// Stats returns how many buffers and bytes are allocated and locked.
func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	var s Stats
	for _, b := range a.order {
		s.Buffers++
		s.Bytes += len(b.data)
		if b.locked {
			s.LockedBuffers++
			s.LockedBytes += len(b.data)
		}
	}
	return s
}

// Stats summarises an Allocator.
type Stats struct {
	Buffers       int
	Bytes         int
	LockedBuffers int
	LockedBytes   int
}
