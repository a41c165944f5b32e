package ring

import (
	"time"

	"github.com/pion/avcapture/pkg/timecode"
)

// Slot is one reusable host-memory record able to hold a single frame's
// video, audio and ancillary payload. Buffer capacities never change after
// the slot is added to a Ring; only contents and metadata do.
type Slot struct {
	index int

	Video []byte
	Audio []byte
	Anc   []byte
	Anc2  []byte

	// VideoBytes, AudioBytes, AncBytes and Anc2Bytes are the number of
	// valid bytes at the start of the matching buffer. Anything past them
	// is device padding or left over from an earlier frame.
	VideoBytes int
	AudioBytes int
	AncBytes   int
	Anc2Bytes  int
	// Timecodes holds every valid timecode captured with the frame.
	Timecodes map[timecode.Index]timecode.Timecode

	// Sequence is the publish order, starting at 0, assigned by the Ring.
	Sequence uint64
	// FrameNumber is the device's own frame counter.
	FrameNumber uint64
	CapturedAt  time.Time
}

// NewSlot wraps pre-allocated buffers into a Slot. Any buffer may be nil.
func NewSlot(video, audio, anc, anc2 []byte) *Slot {
	return &Slot{
		index:     -1,
		Video:     video,
		Audio:     audio,
		Anc:       anc,
		Anc2:      anc2,
		Timecodes: make(map[timecode.Index]timecode.Timecode),
	}
}

// Index is the slot's position in its Ring's arena, or -1 before Add.
func (s *Slot) Index() int {
	return s.index
}

// VideoData returns the transferred video bytes.
func (s *Slot) VideoData() []byte {
	return valid(s.Video, s.VideoBytes)
}

// AncData returns the transferred ancillary bytes of both fields.
func (s *Slot) AncData() (field1, field2 []byte) {
	return valid(s.Anc, s.AncBytes), valid(s.Anc2, s.Anc2Bytes)
}

// HasAudio reports whether the last transfer captured any audio. A
// zero-length audio buffer means audio is disabled, not an error.
func (s *Slot) HasAudio() bool {
	return s.AudioBytes > 0 && len(s.Audio) > 0
}

// AudioData returns the captured audio bytes.
func (s *Slot) AudioData() []byte {
	if !s.HasAudio() {
		return nil
	}
	return valid(s.Audio, s.AudioBytes)
}

func valid(b []byte, n int) []byte {
	if n <= 0 {
		return nil
	}
	return b[:min(n, len(b))]
}

// SetTimecodes replaces the slot's timecodes with src, reusing the map.
func (s *Slot) SetTimecodes(src map[timecode.Index]timecode.Timecode) {
	if s.Timecodes == nil {
		s.Timecodes = make(map[timecode.Index]timecode.Timecode, len(src))
	}
	clear(s.Timecodes)
	for k, v := range src {
		s.Timecodes[k] = v
	}
}

func (s *Slot) reset() {
	s.VideoBytes = 0
	s.AudioBytes = 0
	s.AncBytes = 0
	s.Anc2Bytes = 0
	s.FrameNumber = 0
	s.CapturedAt = time.Time{}
	clear(s.Timecodes)
}
