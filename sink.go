package avcapture

import "github.com/pion/avcapture/pkg/ring"

// Sink processes one captured frame at a time on the consumer goroutine.
// The slot belongs to the sink only for the duration of the call and must
// not be retained. Returned errors are logged and counted; the frame is not
// retried.
//
// Process must not call Quit, Close, State or Stats on its own Capture:
// Quit holds the pipeline lock until the consumer returns, so such a call
// deadlocks. A sink that wants the pipeline stopped calls Quit from another
// goroutine.
type Sink interface {
	Process(s *ring.Slot) error
}

// SinkFunc is a proxy type for Sink
type SinkFunc func(s *ring.Slot) error

func (f SinkFunc) Process(s *ring.Slot) error {
	return f(s)
}

// Discard drains frames without looking at them.
var Discard Sink = SinkFunc(func(*ring.Slot) error { return nil })
