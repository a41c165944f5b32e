//go:build !cgo || nomicrophone

// Package microphone captures host audio and buffers it until a video
// device pulls one frame worth into a frame slot.
//
// This build has no audio backend. Build with cgo and without the
// nomicrophone tag to capture from the host's input device.
package microphone

import (
	"errors"

	"github.com/pion/avcapture/pkg/prop"
)

// ErrUnsupportedFormat is returned for sample layouts the backend can't deliver.
var ErrUnsupportedFormat = errors.New("the provided audio format is not supported")

// ErrNoBackend is returned by Open when the binary was built without audio support.
var ErrNoBackend = errors.New("microphone: built without an audio backend")

// Capture is never returned in this build.
type Capture struct {
	fifo *fifo
}

func Open(p prop.Audio) (*Capture, error) {
	return nil, ErrNoBackend
}

func (c *Capture) Read(dst []byte) int {
	return c.fifo.Read(dst)
}

func (c *Capture) Dropped() uint64 {
	return c.fifo.Dropped()
}

func (c *Capture) Close() error {
	return nil
}
