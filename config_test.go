package avcapture

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pion/avcapture/pkg/driver"
	"github.com/pion/avcapture/pkg/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, driver.FrameRange{First: 0, Last: 6}, cfg.DeviceFrames)
	assert.Equal(t, 401*1024, cfg.AudioBufferSize)
	assert.Equal(t, 10*time.Millisecond, cfg.StopPollInterval)
}

func TestConfigValidate(t *testing.T) {
	testCases := map[string]func(*Config){
		"RingCapacity":     func(c *Config) { c.RingCapacity = 0 },
		"DeviceFrames":     func(c *Config) { c.DeviceFrames = driver.FrameRange{First: 4, Last: 3} },
		"NegativeAudio":    func(c *Config) { c.AudioBufferSize = -1 },
		"AudioWithoutRoom": func(c *Config) { c.AudioBufferSize = 0 },
		"InterruptTimeout": func(c *Config) { c.InterruptTimeout = 0 },
		"StopPollInterval": func(c *Config) { c.StopPollInterval = -time.Millisecond },
		"FrameSize":        func(c *Config) { c.Media.Width = -1 },
	}

	for name, mutate := range testCases {
		mutate := mutate
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}

	cfg := DefaultConfig()
	cfg.WithAudio = false
	cfg.AudioBufferSize = 0
	assert.NoError(t, cfg.Validate(), "no audio buffer is needed without audio")
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "avcapture.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
ring_capacity: 4
with_audio: false
with_anc: true
interrupt_timeout: 20ms
media:
  video:
    width: 640
    height: 480
    frame_format: YUY2
device_frames:
  first: 2
  last: 5
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.RingCapacity)
	assert.False(t, cfg.WithAudio)
	assert.True(t, cfg.WithAnc)
	assert.Equal(t, 20*time.Millisecond, cfg.InterruptTimeout)
	assert.Equal(t, 640, cfg.Media.Width)
	assert.Equal(t, 480, cfg.Media.Height)
	assert.Equal(t, frame.FormatYUY2, cfg.Media.FrameFormat)
	assert.Equal(t, driver.FrameRange{First: 2, Last: 5}, cfg.DeviceFrames)

	// Keys missing from the file keep their defaults.
	assert.Equal(t, float32(30), cfg.Media.FrameRate)
	assert.Equal(t, 48000, cfg.Media.SampleRate)
	assert.True(t, cfg.LockBuffers)
	assert.Equal(t, 10*time.Millisecond, cfg.StopPollInterval)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadConfig(writeConfig(t, "ring_capacity: [1"))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = LoadConfig(writeConfig(t, "ring_capacity: 0"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
