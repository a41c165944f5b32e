// Package screen captures a display as a video source. Frames are grabbed
// when transferred and scaled to the configured size; a ticker at the
// configured frame rate stands in for the vertical interrupt.
package screen

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sync"
	"time"

	"github.com/kbinani/screenshot"
	"github.com/pion/avcapture/internal/logging"
	"github.com/pion/avcapture/pkg/driver"
	"github.com/pion/avcapture/pkg/frame"
	"github.com/pion/avcapture/pkg/prop"
	"github.com/pion/avcapture/pkg/timecode"
	"golang.org/x/image/draw"
)

const defaultFrameRate = 30

var logger = logging.NewLogger("avcapture/driver/screen")

var (
	errNotRunning  = errors.New("screen: ingest is not running")
	errNoFrame     = errors.New("screen: no frame available")
	errUnsupported = errors.New("screen: only RGBA and BGRA are supported")
)

type grabFunc func(displayIndex int) (*image.RGBA, error)

type screen struct {
	displayIndex int
	grab         grabFunc

	mu      sync.Mutex
	media   prop.Media
	running bool
	// 1 when a vertical interval passed since the last transfer
	pending   int
	processed uint64
	dropped   uint64

	vi     chan struct{}
	closed chan struct{}
	ticker *time.Ticker
	done   chan struct{}
}

func init() {
	activeDisplays := screenshot.NumActiveDisplays()
	for i := 0; i < activeDisplays; i++ {
		priority := driver.PriorityNormal
		if i == 0 {
			priority = driver.PriorityHigh
		}

		s := newScreen(i, screenshot.CaptureDisplay)
		driver.GetManager().Register(s, driver.Info{
			Label:      fmt.Sprint(i),
			DeviceType: driver.Screen,
			Priority:   priority,
		})
	}
}

func newScreen(displayIndex int, grab grabFunc) *screen {
	return &screen{
		displayIndex: displayIndex,
		grab:         grab,
		vi:           make(chan struct{}),
	}
}

func (s *screen) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.media.Width == 0 {
		resolution := screenshot.GetDisplayBounds(s.displayIndex)
		s.media.Video = prop.Video{
			Width:       resolution.Dx(),
			Height:      resolution.Dy(),
			FrameRate:   defaultFrameRate,
			FrameFormat: frame.FormatRGBA,
		}
	}
	s.closed = make(chan struct{})
	s.done = make(chan struct{})
	s.ticker = time.NewTicker(s.framePeriod())
	go s.generate(s.ticker, s.closed, s.done)
	return nil
}

func (s *screen) Close() error {
	s.mu.Lock()
	if s.closed == nil {
		s.mu.Unlock()
		return nil
	}
	s.ticker.Stop()
	close(s.closed)
	s.closed = nil
	s.running = false
	done := s.done
	s.mu.Unlock()

	<-done
	return nil
}

func (s *screen) Properties() []prop.Media {
	s.mu.Lock()
	defer s.mu.Unlock()
	return []prop.Media{s.media}
}

// Configure sets the output size, rate and format. Displays have no audio
// or ancillary data.
func (s *screen) Configure(p prop.Media, f driver.Features) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	media := s.media
	media.Merge(p)
	if media.FrameFormat != frame.FormatRGBA && media.FrameFormat != frame.FormatBGRA {
		return errUnsupported
	}
	if media.FrameRate <= 0 {
		media.FrameRate = defaultFrameRate
	}
	s.media = media
	if s.ticker != nil {
		s.ticker.Reset(s.framePeriod())
	}
	return nil
}

func (s *screen) VideoWriteSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := frame.Size(s.media.FrameFormat, s.media.Width, s.media.Height)
	if err != nil {
		return 0
	}
	return n
}

func (s *screen) StartIngest(driver.FrameRange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed == nil {
		return errors.New("screen: device is closed")
	}
	s.running = true
	s.pending = 0
	return nil
}

func (s *screen) StopIngest() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.pending = 0
	return nil
}

func (s *screen) IngestStatus() driver.IngestStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return driver.IngestStatus{
		Running:         s.running,
		FramesAvailable: s.pending,
		ProcessedFrames: s.processed,
		DroppedFrames:   s.dropped,
		BufferLevel:     s.pending,
	}
}

func (s *screen) WaitForVerticalInterrupt(timeout time.Duration) bool {
	s.mu.Lock()
	vi, closed := s.vi, s.closed
	s.mu.Unlock()

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

func (s *screen) Transfer(x *driver.Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return errNotRunning
	}
	if s.pending == 0 {
		return errNoFrame
	}

	src, err := s.grab(s.displayIndex)
	if err != nil {
		return err
	}

	w, h := s.media.Width, s.media.Height
	size := w * h * 4
	if len(x.Video) < size {
		return fmt.Errorf("screen: slot holds %d bytes, frame needs %d", len(x.Video), size)
	}
	dst := &image.RGBA{
		Pix:    x.Video[:size],
		Stride: w * 4,
		Rect:   image.Rect(0, 0, w, h),
	}
	if src.Bounds().Size() == dst.Rect.Size() {
		draw.Draw(dst, dst.Rect, src, src.Bounds().Min, draw.Src)
	} else {
		draw.ApproxBiLinear.Scale(dst, dst.Rect, src, src.Bounds(), draw.Src, nil)
	}
	if s.media.FrameFormat == frame.FormatBGRA {
		for i := 0; i < size; i += 4 {
			dst.Pix[i], dst.Pix[i+2] = dst.Pix[i+2], dst.Pix[i]
		}
	}
	x.VideoBytes = size

	x.FrameNumber = s.processed
	if x.Timecodes != nil {
		fps := int(math.Round(float64(s.media.FrameRate)))
		x.Timecodes[timecode.IndexHost] = timecode.FromFrameCount(s.processed, fps)
	}
	s.pending = 0
	s.processed++
	return nil
}

func (s *screen) framePeriod() time.Duration {
	if p := s.media.FrameDuration(); p > 0 {
		return p
	}
	return time.Second / defaultFrameRate
}

func (s *screen) generate(ticker *time.Ticker, closed <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-closed:
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		if s.running {
			if s.pending > 0 {
				s.dropped++
				logger.Debugf("display %d: frame dropped", s.displayIndex)
			}
			s.pending = 1
		}
		close(s.vi)
		s.vi = make(chan struct{})
		s.mu.Unlock()
	}
}
