// Package ring implements the bounded single-producer/single-consumer
// handoff of frame slots between a capture goroutine and a processing
// goroutine.
//
// Every slot lives in a fixed arena owned by the Ring. At any instant a slot
// is owned by exactly one of the free pool, the producer, the published
// queue or the consumer; the Ring hands ownership over, so slot contents are
// never shared under a lock.
package ring

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pion/avcapture/internal/logging"
)

var logger = logging.NewLogger("avcapture/ring")

var (
	// ErrRingFull is returned by Add once capacity slots have been added.
	ErrRingFull = errors.New("ring: capacity reached")
	// ErrRingStarted is returned by Add after produce or consume has begun.
	ErrRingStarted = errors.New("ring: slots can't be added after streaming started")
	errNilSlot     = errors.New("ring: slot is nil")
)

// Owner tells which party currently owns a slot.
type Owner uint8

const (
	// OwnerFree means the slot is in the free pool.
	OwnerFree Owner = iota
	// OwnerProducer means the slot was handed out by StartProduceNextSlot.
	OwnerProducer
	// OwnerPublished means the slot is queued for the consumer.
	OwnerPublished
	// OwnerConsumer means the slot was handed out by StartConsumeNextSlot.
	OwnerConsumer
)

func (o Owner) String() string {
	switch o {
	case OwnerFree:
		return "free"
	case OwnerProducer:
		return "producer"
	case OwnerPublished:
		return "published"
	case OwnerConsumer:
		return "consumer"
	default:
		return fmt.Sprintf("owner(%d)", uint8(o))
	}
}

// Stats is a snapshot of the ring's state.
type Stats struct {
	Capacity  int
	Slots     int
	Published int
	Producing bool
	Consuming bool
	Produced  uint64
	Consumed  uint64
	Abandoned uint64
}

// Ring is a fixed-capacity circular buffer of slots. It supports exactly
// one producer goroutine and one consumer goroutine.
type Ring struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond

	capacity int
	slots    []*Slot
	owners   []Owner

	head      int // next slot to produce into
	tail      int // next slot to consume
	published int
	producing int // index handed to the producer, or -1
	consuming int // index handed to the consumer, or -1
	started   bool

	produced  uint64
	consumed  uint64
	abandoned uint64

	abort *AbortFlag
}

// New creates an empty ring able to hold capacity slots.
func New(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	r := &Ring{
		capacity:  capacity,
		slots:     make([]*Slot, 0, capacity),
		owners:    make([]Owner, 0, capacity),
		producing: -1,
		consuming: -1,
	}
	r.notFull = sync.NewCond(&r.mu)
	r.notEmpty = sync.NewCond(&r.mu)
	return r
}

// Add registers s in the arena. All slots must be added before the first
// produce or consume call.
func (r *Ring) Add(s *Slot) error {
	if s == nil {
		return errNilSlot
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return ErrRingStarted
	}
	if len(r.slots) == r.capacity {
		return ErrRingFull
	}

	s.index = len(r.slots)
	r.slots = append(r.slots, s)
	r.owners = append(r.owners, OwnerFree)
	return nil
}

// SetAbortFlag registers the shutdown signal. Once f is set, blocked and
// future Start calls return nil.
func (r *Ring) SetAbortFlag(f *AbortFlag) {
	r.mu.Lock()
	r.abort = f
	r.mu.Unlock()

	if f != nil {
		f.onSet(r.wakeAll)
	}
}

func (r *Ring) wakeAll() {
	// Taking the lock orders the wake after any waiter's abort check.
	r.mu.Lock()
	r.notFull.Broadcast()
	r.notEmpty.Broadcast()
	r.mu.Unlock()
}

// aborting must be called with r.mu held.
func (r *Ring) aborting() bool {
	return r.abort != nil && r.abort.IsSet()
}

// StartProduceNextSlot returns the slot following the last published one,
// blocking while the ring is full. It returns nil when the abort flag is
// set, which callers must take as the signal to leave their loop. Calling
// it again before EndProduceNextSlot returns the same slot.
func (r *Ring) StartProduceNextSlot() *Slot {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.slots) == 0 {
		return nil
	}
	r.started = true

	if r.aborting() {
		return nil
	}
	if r.producing >= 0 {
		return r.slots[r.producing]
	}

	for !r.aborting() && r.owners[r.head] != OwnerFree {
		r.notFull.Wait()
	}
	if r.aborting() {
		return nil
	}

	r.owners[r.head] = OwnerProducer
	r.producing = r.head
	s := r.slots[r.head]
	s.reset()
	return s
}

// EndProduceNextSlot publishes the slot handed out by the last
// StartProduceNextSlot, making it visible to the consumer.
func (r *Ring) EndProduceNextSlot() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.producing < 0 {
		logger.Warn("EndProduceNextSlot called without a slot in progress")
		return
	}

	s := r.slots[r.producing]
	s.Sequence = r.produced
	r.owners[r.producing] = OwnerPublished
	r.producing = -1
	r.head = (r.head + 1) % len(r.slots)
	r.published++
	r.produced++
	r.notEmpty.Signal()
}

// AbortProduceNextSlot hands the in-progress produce slot back to the free
// pool without publishing it. The next StartProduceNextSlot returns the same
// slot again.
func (r *Ring) AbortProduceNextSlot() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.producing < 0 {
		return
	}
	r.owners[r.producing] = OwnerFree
	r.producing = -1
	r.abandoned++
}

// StartConsumeNextSlot returns the oldest published slot, blocking while
// none is available. It returns nil when the abort flag is set. Calling it
// again before EndConsumeNextSlot returns the same slot.
func (r *Ring) StartConsumeNextSlot() *Slot {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.slots) == 0 {
		return nil
	}
	r.started = true

	if r.aborting() {
		return nil
	}
	if r.consuming >= 0 {
		return r.slots[r.consuming]
	}

	for !r.aborting() && r.published == 0 {
		r.notEmpty.Wait()
	}
	if r.aborting() {
		return nil
	}

	r.owners[r.tail] = OwnerConsumer
	r.consuming = r.tail
	r.tail = (r.tail + 1) % len(r.slots)
	r.published--
	return r.slots[r.consuming]
}

// EndConsumeNextSlot returns the slot handed out by the last
// StartConsumeNextSlot to the free pool.
func (r *Ring) EndConsumeNextSlot() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.consuming < 0 {
		logger.Warn("EndConsumeNextSlot called without a slot in progress")
		return
	}

	r.owners[r.consuming] = OwnerFree
	r.consuming = -1
	r.consumed++
	r.notFull.Signal()
}

// Owner returns who currently owns the slot at index.
func (r *Ring) Owner(index int) Owner {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.owners[index]
}

// Slots returns the arena in index order. The slice must not be modified,
// and slot contents must only be touched by their current owner.
func (r *Ring) Slots() []*Slot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slots
}

// Len returns the number of published, not yet consumed slots.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.published
}

// Cap returns the ring capacity.
func (r *Ring) Cap() int {
	return r.capacity
}

// Stats returns a consistent snapshot of the ring.
func (r *Ring) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{
		Capacity:  r.capacity,
		Slots:     len(r.slots),
		Published: r.published,
		Producing: r.producing >= 0,
		Consuming: r.consuming >= 0,
		Produced:  r.produced,
		Consumed:  r.consumed,
		Abandoned: r.abandoned,
	}
}
