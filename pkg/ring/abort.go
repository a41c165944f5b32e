package ring

import (
	"sync"
	"sync/atomic"
)

// AbortFlag is the cooperative shutdown token shared by a Ring and the
// goroutines feeding and draining it. It can only go from unset to set.
type AbortFlag struct {
	set  atomic.Bool
	done chan struct{}

	mu    sync.Mutex
	hooks []func()
}

// NewAbortFlag creates an unset flag.
func NewAbortFlag() *AbortFlag {
	return &AbortFlag{done: make(chan struct{})}
}

// Set raises the flag and wakes everything waiting on it. Calling Set more
// than once is a no-op.
func (f *AbortFlag) Set() {
	f.mu.Lock()
	if f.set.Load() {
		f.mu.Unlock()
		return
	}
	f.set.Store(true)
	close(f.done)
	hooks := f.hooks
	f.hooks = nil
	f.mu.Unlock()

	for _, hook := range hooks {
		hook()
	}
}

// IsSet reports whether Set has been called.
func (f *AbortFlag) IsSet() bool {
	return f.set.Load()
}

// Done returns a channel that is closed once the flag is set.
func (f *AbortFlag) Done() <-chan struct{} {
	return f.done
}

// onSet runs hook when the flag is set, or right away if it already is.
func (f *AbortFlag) onSet(hook func()) {
	f.mu.Lock()
	if f.set.Load() {
		f.mu.Unlock()
		hook()
		return
	}
	f.hooks = append(f.hooks, hook)
	f.mu.Unlock()
}
