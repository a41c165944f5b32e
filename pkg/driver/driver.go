// Package driver defines the contract between the capture pipeline and a
// capture device, and a registry of the devices available on the host.
package driver

import (
	"fmt"
	"time"

	"github.com/pion/avcapture/pkg/prop"
	"github.com/pion/avcapture/pkg/timecode"
)

// FrameRange is the inclusive range of device-side frame buffers the
// ingest engine circulates through.
type FrameRange struct {
	First int `yaml:"first"`
	Last  int `yaml:"last"`
}

// Count returns the number of device frames in the range.
func (r FrameRange) Count() int {
	if r.Last < r.First {
		return 0
	}
	return r.Last - r.First + 1
}

func (r FrameRange) String() string {
	return fmt.Sprintf("%d-%d", r.First, r.Last)
}

// IngestStatus is a non-blocking snapshot of the device's ingest engine.
type IngestStatus struct {
	Running bool
	// FramesAvailable is the number of fully formed frames waiting in the
	// device to be transferred.
	FramesAvailable int
	WithAudio       bool
	WithAnc         bool

	ProcessedFrames uint64
	DroppedFrames   uint64
	// BufferLevel is how many device frame buffers are currently filled.
	BufferLevel int
}

// HasAvailableInputFrame reports whether a transfer would succeed right now.
func (s IngestStatus) HasAvailableInputFrame() bool {
	return s.Running && s.FramesAvailable > 0
}

// Transfer describes one device to host transfer. Destination buffers are
// supplied by the caller; a zero-length buffer suppresses that channel. The
// device fills the byte counts and timecodes.
type Transfer struct {
	Video []byte
	Audio []byte
	Anc   []byte
	Anc2  []byte

	VideoBytes  int
	AudioBytes  int
	AncBytes    int
	Anc2Bytes   int
	FrameNumber uint64
	Timecodes   map[timecode.Index]timecode.Timecode
}

// Reset points the transfer at new destination buffers and clears every
// result field while keeping the timecode map.
func (x *Transfer) Reset(video, audio, anc, anc2 []byte) {
	x.Video, x.Audio, x.Anc, x.Anc2 = video, audio, anc, anc2
	x.VideoBytes, x.AudioBytes, x.AncBytes, x.Anc2Bytes = 0, 0, 0, 0
	x.FrameNumber = 0
	if x.Timecodes == nil {
		x.Timecodes = make(map[timecode.Index]timecode.Timecode)
	}
	clear(x.Timecodes)
}

// VerticalInterruptWaiter blocks until the next vertical interval event or
// until timeout. It reports whether the event was observed.
type VerticalInterruptWaiter interface {
	WaitForVerticalInterrupt(timeout time.Duration) bool
}

// Capturer is the device-facing API the producer drives. Only the producer
// goroutine calls IngestStatus, Transfer and WaitForVerticalInterrupt.
type Capturer interface {
	VerticalInterruptWaiter
	IngestStatus() IngestStatus
	Transfer(x *Transfer) error
	StartIngest(r FrameRange) error
	StopIngest() error
}

// Features tells a device which optional channels the pipeline captures.
type Features struct {
	Audio bool
	Anc   bool
}

// Configurer is implemented by devices that need the stream format before
// ingest starts.
type Configurer interface {
	Configure(p prop.Media, f Features) error
}

// Readier is implemented by devices that can report they are not ready
// (no signal, firmware still loading...).
type Readier interface {
	Ready() bool
}

// StreamClaimer is implemented by devices that can be exclusively owned by
// a single process.
type StreamClaimer interface {
	AcquireStream(owner int) error
	ReleaseStream(owner int) error
}

// AncRegion is implemented by devices that store ancillary data at the end
// of each frame buffer. Offsets are counted back from the end of the frame.
type AncRegion interface {
	AncFieldOffsets() (field1, field2 uint32)
}

// FrameSizer is implemented by devices whose frame buffers are larger than
// the pixel format alone implies.
type FrameSizer interface {
	VideoWriteSize() int
}

// OpenCloser is the lifecycle every registered device implements.
type OpenCloser interface {
	Open() error
	Close() error
}

// Adapter is the minimal interface a device implements to be registered.
type Adapter interface {
	OpenCloser
	Capturer
	Properties() []prop.Media
}

// Info describes a registered device.
type Info struct {
	Label      string
	DeviceType DeviceType
	Priority   Priority
}

// Driver is a registered Adapter with an identity and a tracked state.
type Driver interface {
	Adapter
	ID() string
	Info() Info
	Status() State
}
