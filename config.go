package avcapture

import (
	"fmt"
	"os"
	"time"

	"github.com/pion/avcapture/pkg/driver"
	"github.com/pion/avcapture/pkg/frame"
	"github.com/pion/avcapture/pkg/prop"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultRingCapacity is the number of host frame slots.
	DefaultRingCapacity = 10
	// DefaultAudioBufferSize holds the largest audio payload a device
	// delivers with one frame.
	DefaultAudioBufferSize = 401 * 1024
)

// Config is supplied once, before Init.
type Config struct {
	Media prop.Media `yaml:"media"`

	RingCapacity int               `yaml:"ring_capacity"`
	DeviceFrames driver.FrameRange `yaml:"device_frames"`

	WithAudio       bool `yaml:"with_audio"`
	WithAnc         bool `yaml:"with_anc"`
	AudioBufferSize int  `yaml:"audio_buffer_size"`
	// LockBuffers page-locks every slot buffer. Failing to lock is logged
	// and capture carries on with pageable memory.
	LockBuffers bool `yaml:"lock_buffers"`

	// InterruptTimeout bounds each wait for a vertical interrupt while no
	// frame is ready.
	InterruptTimeout time.Duration `yaml:"interrupt_timeout"`
	// StopPollInterval is how often Quit checks that both loops exited.
	StopPollInterval time.Duration `yaml:"stop_poll_interval"`

	// StreamOwner identifies this process when claiming the device. Zero
	// means the process ID.
	StreamOwner int `yaml:"stream_owner"`
}

// DefaultConfig returns a 1080p30 UYVY configuration with stereo 48kHz
// audio.
func DefaultConfig() Config {
	return Config{
		Media: prop.Media{
			Video: prop.Video{
				Width:       1920,
				Height:      1080,
				FrameRate:   30,
				FrameFormat: frame.FormatUYVY,
			},
			Audio: prop.Audio{
				ChannelCount:  2,
				SampleRate:    48000,
				SampleSize:    2,
				IsInterleaved: true,
			},
		},
		RingCapacity:     DefaultRingCapacity,
		DeviceFrames:     driver.FrameRange{First: 0, Last: 6},
		WithAudio:        true,
		AudioBufferSize:  DefaultAudioBufferSize,
		LockBuffers:      true,
		InterruptTimeout: 50 * time.Millisecond,
		StopPollInterval: 10 * time.Millisecond,
	}
}

// LoadConfig reads a yaml file over DefaultConfig and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("avcapture: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return cfg, cfg.Validate()
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.RingCapacity < 1:
		return fmt.Errorf("%w: ring_capacity must be at least 1, got %d", ErrInvalidConfig, c.RingCapacity)
	case c.DeviceFrames.Count() < 1:
		return fmt.Errorf("%w: device_frames %s is empty", ErrInvalidConfig, c.DeviceFrames)
	case c.AudioBufferSize < 0:
		return fmt.Errorf("%w: audio_buffer_size can't be negative", ErrInvalidConfig)
	case c.WithAudio && c.AudioBufferSize == 0:
		return fmt.Errorf("%w: audio is enabled with a zero audio_buffer_size", ErrInvalidConfig)
	case c.InterruptTimeout <= 0:
		return fmt.Errorf("%w: interrupt_timeout must be positive", ErrInvalidConfig)
	case c.StopPollInterval <= 0:
		return fmt.Errorf("%w: stop_poll_interval must be positive", ErrInvalidConfig)
	case c.Media.Width < 0 || c.Media.Height < 0:
		return fmt.Errorf("%w: negative frame size %dx%d", ErrInvalidConfig, c.Media.Width, c.Media.Height)
	}
	return nil
}
