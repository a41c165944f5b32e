// Package timecode holds the SMPTE-style timecodes a capture device reports
// alongside each frame.
package timecode

import "fmt"

// Index identifies where a timecode was read from on the input.
type Index string

const (
	// IndexLTC is linear timecode embedded in the input signal.
	IndexLTC Index = "ltc"
	// IndexVITC is vertical interval timecode of field 1.
	IndexVITC Index = "vitc"
	// IndexVITC2 is vertical interval timecode of field 2.
	IndexVITC2 Index = "vitc2"
	// IndexRP188 is ancillary (RP-188) timecode.
	IndexRP188 Index = "rp188"
	// IndexHost is a timecode derived from the host clock when the frame was transferred.
	IndexHost Index = "host"
)

// Timecode is a single hours:minutes:seconds:frames value.
type Timecode struct {
	Hours     uint8
	Minutes   uint8
	Seconds   uint8
	Frames    uint8
	DropFrame bool
}

// FromFrameCount converts an absolute frame count at the given integer rate
// into a non-drop timecode. The hour field wraps at 24.
func FromFrameCount(count uint64, fps int) Timecode {
	if fps <= 0 {
		return Timecode{}
	}
	frames := count % uint64(fps)
	secs := count / uint64(fps)
	return Timecode{
		Hours:   uint8((secs / 3600) % 24),
		Minutes: uint8((secs / 60) % 60),
		Seconds: uint8(secs % 60),
		Frames:  uint8(frames),
	}
}

// FrameCount is the inverse of FromFrameCount.
func (t Timecode) FrameCount(fps int) uint64 {
	secs := uint64(t.Hours)*3600 + uint64(t.Minutes)*60 + uint64(t.Seconds)
	return secs*uint64(fps) + uint64(t.Frames)
}

// Valid reports whether every field is inside its range for the given rate.
func (t Timecode) Valid(fps int) bool {
	return t.Hours < 24 && t.Minutes < 60 && t.Seconds < 60 && int(t.Frames) < fps
}

func (t Timecode) String() string {
	sep := ":"
	if t.DropFrame {
		sep = ";"
	}
	return fmt.Sprintf("%02d:%02d:%02d%s%02d", t.Hours, t.Minutes, t.Seconds, sep, t.Frames)
}
