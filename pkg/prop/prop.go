// Package prop describes the video and audio properties of a capture
// stream.
package prop

import (
	"fmt"
	"reflect"
	"time"

	"github.com/pion/avcapture/pkg/frame"
)

// Media is the full set of stream properties a device is configured with.
type Media struct {
	DeviceID string `yaml:"device_id"`
	Video    `yaml:"video"`
	Audio    `yaml:"audio"`
}

// Merge merges all the field values from o to p, except zero values.
func (p *Media) Merge(o Media) {
	rp := reflect.ValueOf(p).Elem()
	ro := reflect.ValueOf(o)

	// merge b fields to a recursively
	var merge func(a, b reflect.Value)
	merge = func(a, b reflect.Value) {
		numFields := a.NumField()
		for i := 0; i < numFields; i++ {
			fieldA := a.Field(i)
			fieldB := b.Field(i)

			// if a is a struct, b is also a struct. Then,
			// we recursively merge them
			if fieldA.Kind() == reflect.Struct {
				merge(fieldA, fieldB)
				continue
			}

			if fieldB.IsZero() {
				continue
			}

			fieldA.Set(fieldB)
		}
	}

	merge(rp, ro)
}

func (p Media) String() string {
	return fmt.Sprintf("%dx%d %s @ %gfps, audio %dch %dHz", p.Width, p.Height, p.FrameFormat, p.FrameRate, p.ChannelCount, p.SampleRate)
}

// Video represents a video's properties
type Video struct {
	Width       int          `yaml:"width"`
	Height      int          `yaml:"height"`
	FrameRate   float32      `yaml:"frame_rate"`
	FrameFormat frame.Format `yaml:"frame_format"`
}

// FrameDuration is the time between two vertical intervals.
func (v Video) FrameDuration() time.Duration {
	if v.FrameRate <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / float64(v.FrameRate))
}

// Audio represents an audio's properties
type Audio struct {
	ChannelCount  int           `yaml:"channel_count"`
	Latency       time.Duration `yaml:"latency"`
	SampleRate    int           `yaml:"sample_rate"`
	SampleSize    int           `yaml:"sample_size"`
	IsBigEndian   bool          `yaml:"big_endian"`
	IsFloat       bool          `yaml:"float"`
	IsInterleaved bool          `yaml:"interleaved"`
}

// BytesPerFrame returns how many audio bytes accompany one video frame at
// frameRate. It is 0 if either side is unset.
func (a Audio) BytesPerFrame(frameRate float32) int {
	if frameRate <= 0 || a.SampleRate <= 0 {
		return 0
	}
	samples := int(float32(a.SampleRate) / frameRate)
	return samples * a.ChannelCount * a.SampleSize
}
