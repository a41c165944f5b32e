package camera

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/blackjack/webcam"
	"github.com/pion/avcapture/internal/logging"
	"github.com/pion/avcapture/pkg/driver"
	"github.com/pion/avcapture/pkg/driver/microphone"
	"github.com/pion/avcapture/pkg/frame"
	avio "github.com/pion/avcapture/pkg/io"
	"github.com/pion/avcapture/pkg/prop"
	"github.com/pion/avcapture/pkg/timecode"
)

var logger = logging.NewLogger("avcapture/driver/camera")

var (
	errEmptyFrame  = errors.New("empty frame")
	errNotStarted  = errors.New("camera: ingest is not running")
	errUnsupported = errors.New("camera: unsupported frame format")
)

// fourcc builds a V4L2 pixel format code.
func fourcc(a, b, c, d byte) webcam.PixelFormat {
	return webcam.PixelFormat(uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24)
}

// Camera implementation using v4l2
// Reference: https://linuxtv.org/downloads/v4l-dvb-apis/uapi/v4l/videodev.html#videodev
type camera struct {
	path            string
	cam             *webcam.Webcam
	formats         map[webcam.PixelFormat]frame.Format
	reversedFormats map[frame.Format]webcam.PixelFormat

	mu        sync.Mutex
	media     prop.Media
	running   bool
	mic       *microphone.Capture
	processed uint64
	dropped   uint64
	// audio bytes the microphone had discarded at the last transfer
	micDropped uint64
}

type registerFunc func(driver.Adapter, driver.Info) error

func init() {
	discovered := make(map[string]struct{})
	register := driver.GetManager().Register
	discover(register, discovered, "/dev/v4l/by-path/*")
	discover(register, discovered, "/dev/video*")
}

// discover registers every V4L2 node matched by pattern, skipping nodes
// already found through another path.
func discover(register registerFunc, discovered map[string]struct{}, pattern string) {
	devices, err := filepath.Glob(pattern)
	if err != nil {
		// No v4l device.
		return
	}
	for _, device := range devices {
		label := filepath.Base(device)
		reallink, err := os.Readlink(device)
		if err != nil {
			reallink = label
		} else {
			reallink = filepath.Base(reallink)
		}
		if _, ok := discovered[reallink]; ok {
			continue
		}

		discovered[reallink] = struct{}{}
		cam := newCamera(device)
		register(cam, driver.Info{
			Label:      label + LabelSeparator + reallink,
			DeviceType: driver.Camera,
			Priority:   driver.PriorityNormal,
		})
	}
}

func newCamera(path string) *camera {
	formats := map[webcam.PixelFormat]frame.Format{
		fourcc('Y', 'U', 'Y', 'V'): frame.FormatYUYV,
		fourcc('U', 'Y', 'V', 'Y'): frame.FormatUYVY,
		fourcc('N', 'V', '1', '2'): frame.FormatNV12,
		fourcc('N', 'V', '2', '1'): frame.FormatNV21,
		fourcc('Y', 'U', '1', '2'): frame.FormatI420,
		fourcc('Z', '1', '6', ' '): frame.FormatZ16,
		fourcc('M', 'J', 'P', 'G'): frame.FormatMJPEG,
	}

	reversedFormats := make(map[frame.Format]webcam.PixelFormat)
	for k, v := range formats {
		reversedFormats[v] = k
	}

	return &camera{
		path:            path,
		formats:         formats,
		reversedFormats: reversedFormats,
	}
}

func (c *camera) Open() error {
	cam, err := webcam.Open(c.path)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.cam = cam
	c.mu.Unlock()
	return nil
}

func (c *camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mic != nil {
		c.mic.Close()
		c.mic = nil
	}
	if c.cam == nil {
		return nil
	}
	if c.running {
		// Note: StopStreaming frees frame buffers even if they are still used in Go code.
		//       Transfer copies out of the mmap before releasing, so nothing leaks.
		c.cam.StopStreaming()
		c.running = false
	}
	err := c.cam.Close()
	c.cam = nil
	return err
}

// Configure negotiates the pixel format and frame size. Audio comes from
// the host's default input device; cameras never carry ancillary data.
func (c *camera) Configure(p prop.Media, f driver.Features) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	pf, ok := c.reversedFormats[p.FrameFormat]
	if !ok {
		return errUnsupported
	}
	gotFormat, w, h, err := c.cam.SetImageFormat(pf, uint32(p.Width), uint32(p.Height))
	if err != nil {
		return err
	}
	if p.FrameRate > 0 {
		if err := c.cam.SetFramerate(p.FrameRate); err != nil {
			logger.Warnf("%s: failed to set %gfps: %v", c.path, p.FrameRate, err)
		}
	}

	c.media = p
	c.media.FrameFormat = c.formats[gotFormat]
	c.media.Width, c.media.Height = int(w), int(h)

	if f.Audio && c.mic == nil {
		mic, err := microphone.Open(p.Audio)
		if err != nil {
			logger.Warnf("%s: capturing without audio: %v", c.path, err)
		} else {
			c.mic = mic
			c.micDropped = 0
		}
	}
	if !f.Audio && c.mic != nil {
		c.mic.Close()
		c.mic = nil
	}
	return nil
}

func (c *camera) VideoWriteSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, err := frame.Size(c.media.FrameFormat, c.media.Width, c.media.Height)
	if err != nil {
		return 0
	}
	return n
}

func (c *camera) StartIngest(r driver.FrameRange) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.cam.SetBufferCount(uint32(r.Count())); err != nil {
		return err
	}
	if err := c.cam.StartStreaming(); err != nil {
		return err
	}
	c.running = true
	return nil
}

func (c *camera) StopIngest() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}
	c.running = false
	return c.cam.StopStreaming()
}

func (c *camera) IngestStatus() driver.IngestStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := driver.IngestStatus{
		Running:         c.running,
		WithAudio:       c.mic != nil,
		ProcessedFrames: c.processed,
		DroppedFrames:   c.dropped,
	}
	// A zero timeout polls without blocking.
	if c.running && c.cam.WaitForFrame(0) == nil {
		st.FramesAvailable = 1
		st.BufferLevel = 1
	}
	return st
}

func (c *camera) WaitForVerticalInterrupt(timeout time.Duration) bool {
	c.mu.Lock()
	cam, running := c.cam, c.running
	c.mu.Unlock()
	if cam == nil || !running {
		time.Sleep(timeout)
		return false
	}

	secs := uint32(math.Ceil(timeout.Seconds()))
	if secs == 0 {
		secs = 1
	}
	switch err := cam.WaitForFrame(secs); err.(type) {
	case nil:
		return true
	case *webcam.Timeout:
		return false
	default:
		logger.Debugf("%s: wait for frame: %v", c.path, err)
		return false
	}
}

func (c *camera) Transfer(x *driver.Transfer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return errNotStarted
	}

	b, index, err := c.cam.GetFrame()
	if err != nil {
		return err
	}
	// move the memory from mmap to the slot before handing the buffer
	// back to the driver.
	n, err := avio.Copy(x.Video, b)
	c.cam.ReleaseFrame(index)
	if err != nil {
		c.dropped++
		return err
	}
	if n == 0 {
		c.dropped++
		return errEmptyFrame
	}
	x.VideoBytes = n

	if c.mic != nil && len(x.Audio) > 0 {
		want := c.media.Audio.BytesPerFrame(c.media.FrameRate)
		if want <= 0 || want > len(x.Audio) {
			want = len(x.Audio)
		}
		x.AudioBytes = c.mic.Read(x.Audio[:want])
		if d := c.mic.Dropped(); d > c.micDropped {
			logger.Warnf("%s: audio overrun, %d bytes discarded", c.path, d-c.micDropped)
			c.micDropped = d
		}
	}

	x.FrameNumber = c.processed
	if x.Timecodes != nil {
		fps := int(math.Round(float64(c.media.FrameRate)))
		x.Timecodes[timecode.IndexHost] = timecode.FromFrameCount(c.processed, fps)
	}
	c.processed++
	return nil
}

func (c *camera) Properties() []prop.Media {
	c.mu.Lock()
	defer c.mu.Unlock()

	properties := make([]prop.Media, 0)
	for format := range c.cam.GetSupportedFormats() {
		f, ok := c.formats[format]
		if !ok {
			continue
		}
		for _, frameSize := range c.cam.GetSupportedFrameSizes(format) {
			properties = append(properties, prop.Media{
				DeviceID: c.path,
				Video: prop.Video{
					Width:       int(frameSize.MaxWidth),
					Height:      int(frameSize.MaxHeight),
					FrameFormat: f,
				},
			})
		}
	}
	return properties
}
