//go:build cgo && !nomicrophone

// Package microphone captures host audio through miniaudio and buffers it
// until a video device pulls one frame worth into a frame slot.
package microphone

import (
	"errors"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/pion/avcapture/internal/logging"
	"github.com/pion/avcapture/pkg/prop"
)

var logger = logging.NewLogger("avcapture/driver/microphone")

var (
	ctxOnce sync.Once
	ctx     *malgo.AllocatedContext
	ctxErr  error
)

// ErrUnsupportedFormat is returned for sample layouts miniaudio can't deliver.
var ErrUnsupportedFormat = errors.New("the provided audio format is not supported")

func audioContext() (*malgo.AllocatedContext, error) {
	ctxOnce.Do(func() {
		ctx, ctxErr = malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
			logger.Debugf("%v\n", message)
		})
	})
	return ctx, ctxErr
}

// Capture is a running capture on the host's default input device.
type Capture struct {
	fifo   *fifo
	device *malgo.Device
	once   sync.Once
}

// Open starts capturing from the default input device with the layout in
// p. Up to one second of audio is buffered; older samples are discarded
// when nobody reads.
func Open(p prop.Audio) (*Capture, error) {
	c, err := audioContext()
	if err != nil {
		return nil, err
	}

	config := malgo.DefaultDeviceConfig(malgo.Capture)
	config.PerformanceProfile = malgo.LowLatency
	config.Capture.Channels = uint32(p.ChannelCount)
	config.SampleRate = uint32(p.SampleRate)
	switch {
	case p.SampleSize == 4 && p.IsFloat:
		config.Capture.Format = malgo.FormatF32
	case p.SampleSize == 4:
		config.Capture.Format = malgo.FormatS32
	case p.SampleSize == 2 && !p.IsFloat:
		config.Capture.Format = malgo.FormatS16
	default:
		return nil, ErrUnsupportedFormat
	}

	capture := &Capture{
		fifo: newFIFO(p.SampleRate * p.ChannelCount * p.SampleSize),
	}

	var callbacks malgo.DeviceCallbacks
	callbacks.Data = func(_, chunk []byte, framecount uint32) {
		capture.fifo.Write(chunk)
	}

	device, err := malgo.InitDevice(c.Context, config, callbacks)
	if err != nil {
		return nil, err
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, err
	}
	capture.device = device
	return capture, nil
}

// Read moves up to len(dst) buffered bytes into dst.
func (c *Capture) Read(dst []byte) int {
	return c.fifo.Read(dst)
}

// Dropped is the number of bytes discarded because the buffer was full.
func (c *Capture) Dropped() uint64 {
	return c.fifo.Dropped()
}

func (c *Capture) Close() error {
	var err error
	c.once.Do(func() {
		err = c.device.Stop()
		c.device.Uninit()
	})
	return err
}
