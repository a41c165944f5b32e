package microphone

import "sync"

// fifo is a bounded byte queue written from the audio callback thread and
// drained by the producer.
type fifo struct {
	mu      sync.Mutex
	buf     []byte
	limit   int
	dropped uint64
}

func newFIFO(limit int) *fifo {
	if limit <= 0 {
		limit = 48000 * 2 * 2
	}
	return &fifo{limit: limit, buf: make([]byte, 0, limit)}
}

// Write appends b, discarding the oldest bytes beyond the limit.
func (f *fifo) Write(b []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(b) >= f.limit {
		f.dropped += uint64(len(f.buf) + len(b) - f.limit)
		f.buf = append(f.buf[:0], b[len(b)-f.limit:]...)
		return
	}
	if over := len(f.buf) + len(b) - f.limit; over > 0 {
		f.dropped += uint64(over)
		f.buf = append(f.buf[:0], f.buf[over:]...)
	}
	f.buf = append(f.buf, b...)
}

func (f *fifo) Read(dst []byte) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := copy(dst, f.buf)
	f.buf = append(f.buf[:0], f.buf[n:]...)
	return n
}

func (f *fifo) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.buf)
}

func (f *fifo) Dropped() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}
