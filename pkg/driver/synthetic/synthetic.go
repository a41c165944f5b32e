// Package synthetic provides a generated capture device. It behaves like a
// capture card with a small on-board frame ring: a vertical interrupt fires
// once per frame period and, while ingest runs, fills the next device frame.
// Frames that find the device ring full are dropped.
package synthetic

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/pion/avcapture/internal/logging"
	"github.com/pion/avcapture/pkg/driver"
	"github.com/pion/avcapture/pkg/frame"
	avio "github.com/pion/avcapture/pkg/io"
	"github.com/pion/avcapture/pkg/prop"
	"github.com/pion/avcapture/pkg/timecode"
)

const (
	// Field offsets of the ancillary region, counted back from the end of
	// the device frame buffer.
	ancField1Offset = 0x4000
	ancField2Offset = 0x2000

	defaultFrameRate = 30
)

var logger = logging.NewLogger("avcapture/driver/synthetic")

var (
	// ErrNoFrame is returned by Transfer when the device ring is empty.
	ErrNoFrame = errors.New("synthetic: no frame available")
	// ErrNotRunning is returned by Transfer when ingest is stopped.
	ErrNotRunning = errors.New("synthetic: ingest is not running")
	// ErrStreamBusy is returned when another owner holds the stream.
	ErrStreamBusy = errors.New("synthetic: stream is owned by another process")
)

func init() {
	driver.GetManager().Register(
		New(),
		driver.Info{Label: "synthetic", DeviceType: driver.Synthetic, Priority: driver.PriorityLow},
	)
}

// Device is a generated capture source.
type Device struct {
	mu       sync.Mutex
	media    prop.Media
	features driver.Features
	opened   bool

	// vertical interval generator
	vi      chan struct{}
	closed  chan struct{}
	ticker  *time.Ticker
	genDone chan struct{}

	running    bool
	frameRange driver.FrameRange
	// numbers of the frames held in the device ring, oldest first
	queued     []uint64
	nextFrame  uint64
	processed  uint64
	dropped    uint64
	owner      int
	ownerValid bool

	bars  []byte
	phase int
	audio []byte
	anc   []byte
}

// New returns a closed device with a 720p UYVY stream and stereo 48kHz
// 16-bit audio.
func New() *Device {
	return &Device{
		media: prop.Media{
			Video: prop.Video{
				Width:       1280,
				Height:      720,
				FrameRate:   defaultFrameRate,
				FrameFormat: frame.FormatUYVY,
			},
			Audio: prop.Audio{
				ChannelCount:  2,
				SampleRate:    48000,
				SampleSize:    2,
				IsInterleaved: true,
			},
		},
		vi: make(chan struct{}),
	}
}

func (d *Device) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	bars, err := renderBars(d.media.Video)
	if err != nil {
		return err
	}
	d.bars = bars
	d.opened = true
	d.closed = make(chan struct{})
	d.genDone = make(chan struct{})
	d.ticker = time.NewTicker(d.framePeriod())
	go d.generate(d.ticker, d.closed, d.genDone)
	return nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	if !d.opened {
		d.mu.Unlock()
		return nil
	}
	d.opened = false
	d.running = false
	d.ticker.Stop()
	close(d.closed)
	d.closed = nil
	done := d.genDone
	d.mu.Unlock()

	<-done
	return nil
}

func (d *Device) Properties() []prop.Media {
	d.mu.Lock()
	defer d.mu.Unlock()
	return []prop.Media{d.media}
}

// Configure sets the stream format. Zero fields of p keep their current
// value.
func (d *Device) Configure(p prop.Media, f driver.Features) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	media := d.media
	media.Merge(p)
	bars, err := renderBars(media.Video)
	if err != nil {
		return err
	}
	d.media = media
	d.features = f
	d.bars = bars
	if d.ticker != nil {
		d.ticker.Reset(d.framePeriod())
	}
	logger.Debugf("configured %s (audio=%v anc=%v)", media, f.Audio, f.Anc)
	return nil
}

func (d *Device) Ready() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened
}

func (d *Device) AcquireStream(owner int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ownerValid && d.owner != owner {
		return ErrStreamBusy
	}
	d.owner, d.ownerValid = owner, true
	return nil
}

func (d *Device) ReleaseStream(owner int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ownerValid && d.owner == owner {
		d.ownerValid = false
	}
	return nil
}

func (d *Device) AncFieldOffsets() (uint32, uint32) {
	return ancField1Offset, ancField2Offset
}

func (d *Device) VideoWriteSize() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := frame.Size(d.media.FrameFormat, d.media.Width, d.media.Height)
	if err != nil {
		return 0
	}
	return n
}

func (d *Device) StartIngest(r driver.FrameRange) error {
	if r.Count() <= 0 {
		return errors.New("synthetic: empty frame range " + r.String())
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.opened {
		return errors.New("synthetic: device is closed")
	}
	d.frameRange = r
	d.queued = d.queued[:0]
	d.running = true
	return nil
}

func (d *Device) StopIngest() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.running = false
	d.queued = d.queued[:0]
	return nil
}

func (d *Device) IngestStatus() driver.IngestStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return driver.IngestStatus{
		Running:         d.running,
		FramesAvailable: len(d.queued),
		WithAudio:       d.features.Audio,
		WithAnc:         d.features.Anc,
		ProcessedFrames: d.processed,
		DroppedFrames:   d.dropped,
		BufferLevel:     len(d.queued),
	}
}

// WaitForVerticalInterrupt blocks until the next frame period starts. It
// returns false on timeout and releases waiters when the device closes. A
// closed device sleeps out the whole timeout.
func (d *Device) WaitForVerticalInterrupt(timeout time.Duration) bool {
	d.mu.Lock()
	vi, closed := d.vi, d.closed
	d.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	if closed == nil {
		<-timer.C
		return false
	}
	select {
	case <-vi:
		return true
	case <-closed:
		return false
	case <-timer.C:
		return false
	}
}

// Transfer copies the oldest device frame into x.
func (d *Device) Transfer(x *driver.Transfer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return ErrNotRunning
	}
	if len(d.queued) == 0 {
		return ErrNoFrame
	}

	number := d.queued[0]
	if len(x.Video) > 0 {
		n, err := avio.Copy(x.Video, d.bars)
		if err != nil {
			return err
		}
		d.stampNoise(x.Video[:n], number)
		x.VideoBytes = n
	}

	fps := int(math.Round(float64(d.media.FrameRate)))
	tc := timecode.FromFrameCount(number, fps)
	if x.Timecodes != nil {
		x.Timecodes[timecode.IndexLTC] = tc
		x.Timecodes[timecode.IndexRP188] = tc
		if d.features.Anc {
			x.Timecodes[timecode.IndexVITC] = tc
			x.Timecodes[timecode.IndexVITC2] = tc
		}
	}

	if d.features.Audio && len(x.Audio) > 0 {
		d.audio = d.renderAudio(d.audio[:0])
		n, dropped := avio.CopyTruncated(x.Audio, d.audio)
		if dropped > 0 {
			logger.Warnf("frame %d: audio truncated by %d bytes", number, dropped)
		}
		x.AudioBytes = n
	}

	if d.features.Anc {
		if len(x.Anc) > 0 {
			d.anc = appendTimecodePacket(d.anc[:0], tc)
			x.AncBytes, _ = avio.CopyTruncated(x.Anc, d.anc)
		}
		if len(x.Anc2) > 0 {
			d.anc = appendTimecodePacket(d.anc[:0], tc)
			x.Anc2Bytes, _ = avio.CopyTruncated(x.Anc2, d.anc)
		}
	}

	x.FrameNumber = number
	d.queued = append(d.queued[:0], d.queued[1:]...)
	d.processed++
	return nil
}

func (d *Device) framePeriod() time.Duration {
	if p := d.media.FrameDuration(); p > 0 {
		return p
	}
	return time.Second / defaultFrameRate
}

func (d *Device) generate(ticker *time.Ticker, closed <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-closed:
			return
		case <-ticker.C:
		}

		d.mu.Lock()
		if d.running {
			if len(d.queued) < d.frameRange.Count() {
				d.queued = append(d.queued, d.nextFrame)
			} else {
				d.dropped++
			}
			d.nextFrame++
		}
		close(d.vi)
		d.vi = make(chan struct{})
		d.mu.Unlock()
	}
}
