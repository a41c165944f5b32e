package avcapture

import (
	"github.com/pion/avcapture/pkg/driver"
	"github.com/pion/avcapture/pkg/hostbuf"
	"github.com/pion/logging"
)

// Options stores the runtime collaborators of a Capture.
type Options struct {
	LoggerFactory logging.LoggerFactory
	// Pacer is waited on while the device has no frame ready. It defaults
	// to the captured device itself.
	Pacer     driver.VerticalInterruptWaiter
	Allocator *hostbuf.Allocator
}

// Option is a type of Capture functional option.
type Option func(*Options)

// WithLoggerFactory sets the factory the pipeline logger is created from.
func WithLoggerFactory(f logging.LoggerFactory) Option {
	return func(o *Options) {
		o.LoggerFactory = f
	}
}

// WithPacer makes the producer wait on another stream's vertical interrupt,
// e.g. a reference input, instead of the captured one.
func WithPacer(p driver.VerticalInterruptWaiter) Option {
	return func(o *Options) {
		o.Pacer = p
	}
}

// WithAllocator sets the allocator slot buffers come from. Close frees
// every buffer the allocator owns.
func WithAllocator(a *hostbuf.Allocator) Option {
	return func(o *Options) {
		o.Allocator = a
	}
}
