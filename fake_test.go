package avcapture

import (
	"errors"
	"sync"
	"time"

	"github.com/pion/avcapture/pkg/driver"
	"github.com/pion/avcapture/pkg/prop"
	"github.com/pion/avcapture/pkg/timecode"
)

var errTransfer = errors.New("transfer failed")

// fakeDevice is a scripted Capturer. It reports frames as available while
// frames is positive (negative means unlimited) and writes the frame number
// into the first bytes of every video buffer.
type fakeDevice struct {
	mu sync.Mutex

	frames     int
	withAudio  bool
	withAnc    bool
	audioBytes int
	startErr   error
	// failTransfer returns the error for the n-th transfer, if any.
	failTransfer func(n int) error

	next      uint64
	transfers int
	starts    int
	stops     int
	waits     int
	running   bool
	lastX     driver.Transfer

	notReady     bool
	acquireErr   error
	configureErr error
	acquired     []int
	released     []int
	configured   *prop.Media
	features     driver.Features
	videoSize    int
	ancOffsets   [2]uint32

	// validVideo and validAnc, when set, are the byte counts reported
	// instead of the full buffer lengths.
	validVideo int
	validAnc   int
}

func newFakeDevice(frames int) *fakeDevice {
	return &fakeDevice{frames: frames, videoSize: 64}
}

func (d *fakeDevice) IngestStatus() driver.IngestStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	st := driver.IngestStatus{
		Running:         d.running,
		WithAudio:       d.withAudio,
		WithAnc:         d.withAnc,
		ProcessedFrames: uint64(d.transfers),
	}
	if d.frames != 0 {
		st.FramesAvailable = 1
	}
	return st
}

func (d *fakeDevice) Transfer(x *driver.Transfer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.transfers++
	d.lastX = *x
	if d.frames > 0 {
		d.frames--
	}
	number := d.next
	d.next++
	if d.failTransfer != nil {
		if err := d.failTransfer(d.transfers); err != nil {
			return err
		}
	}

	if len(x.Video) > 0 {
		x.Video[0] = byte(number)
		x.VideoBytes = len(x.Video)
		if d.validVideo > 0 {
			x.VideoBytes = d.validVideo
		}
	}
	x.AudioBytes = min(d.audioBytes, len(x.Audio))
	x.AncBytes = len(x.Anc)
	if d.validAnc > 0 {
		x.AncBytes = d.validAnc
	}
	x.Anc2Bytes = len(x.Anc2)
	x.FrameNumber = number
	x.Timecodes[timecode.IndexRP188] = timecode.FromFrameCount(number, 30)
	return nil
}

func (d *fakeDevice) WaitForVerticalInterrupt(timeout time.Duration) bool {
	d.mu.Lock()
	d.waits++
	d.mu.Unlock()
	time.Sleep(min(timeout, time.Millisecond))
	return true
}

func (d *fakeDevice) StartIngest(driver.FrameRange) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.startErr != nil {
		return d.startErr
	}
	d.starts++
	d.running = true
	return nil
}

func (d *fakeDevice) StopIngest() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stops++
	d.running = false
	return nil
}

func (d *fakeDevice) Ready() bool {
	return !d.notReady
}

func (d *fakeDevice) AcquireStream(owner int) error {
	if d.acquireErr != nil {
		return d.acquireErr
	}
	d.acquired = append(d.acquired, owner)
	return nil
}

func (d *fakeDevice) ReleaseStream(owner int) error {
	d.released = append(d.released, owner)
	return nil
}

func (d *fakeDevice) Configure(p prop.Media, f driver.Features) error {
	if d.configureErr != nil {
		return d.configureErr
	}
	d.configured = &p
	d.features = f
	return nil
}

func (d *fakeDevice) VideoWriteSize() int {
	return d.videoSize
}

func (d *fakeDevice) AncFieldOffsets() (uint32, uint32) {
	return d.ancOffsets[0], d.ancOffsets[1]
}

func (d *fakeDevice) counts() (transfers, starts, stops int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transfers, d.starts, d.stops
}

// bareDevice only implements the required Capturer methods.
type bareDevice struct {
	d *fakeDevice
}

func (b bareDevice) IngestStatus() driver.IngestStatus {
	return b.d.IngestStatus()
}

func (b bareDevice) Transfer(x *driver.Transfer) error {
	return b.d.Transfer(x)
}

func (b bareDevice) StartIngest(r driver.FrameRange) error {
	return b.d.StartIngest(r)
}

func (b bareDevice) StopIngest() error {
	return b.d.StopIngest()
}

func (b bareDevice) WaitForVerticalInterrupt(timeout time.Duration) bool {
	return b.d.WaitForVerticalInterrupt(timeout)
}
