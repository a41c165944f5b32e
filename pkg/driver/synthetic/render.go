package synthetic

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/pion/avcapture/pkg/frame"
	"github.com/pion/avcapture/pkg/prop"
	"github.com/pion/avcapture/pkg/timecode"
)

// 75% colour bars as Y, Cb, Cr.
var barColors = [][3]byte{
	{235, 128, 128},
	{210, 16, 146},
	{170, 166, 16},
	{145, 54, 34},
	{107, 202, 222},
	{82, 90, 240},
	{41, 240, 110},
}

// Ancillary packet identifiers for ancillary timecode (SMPTE 12M-2).
const (
	ancDID  = 0x60
	ancSDID = 0x60
)

// renderBars draws colour bars over the top three quarters of the frame and
// a grey ramp below. Formats without a dedicated renderer get mid grey.
func renderBars(v prop.Video) ([]byte, error) {
	size, err := frame.Size(v.FrameFormat, v.Width, v.Height)
	if err != nil {
		return nil, fmt.Errorf("synthetic: %w", err)
	}
	buf := make([]byte, size)

	switch v.FrameFormat {
	case frame.FormatUYVY, frame.FormatYUY2:
		render422(buf, v)
	case frame.FormatRGBA, frame.FormatBGRA:
		renderRGB32(buf, v)
	default:
		for i := range buf {
			buf[i] = 0x80
		}
	}
	return buf, nil
}

func render422(buf []byte, v prop.Video) {
	// byte positions of Y0, Cb, Y1, Cr inside a 4 byte macropixel
	yi0, cbi, yi1, cri := 0, 1, 2, 3
	if v.FrameFormat == frame.FormatUYVY {
		yi0, cbi, yi1, cri = 1, 0, 3, 2
	}

	stride := v.Width * 2
	hColorBarEnd := v.Height * 3 / 4
	wGradationEnd := v.Width * 5 / 7
	for y := 0; y < v.Height; y++ {
		row := buf[y*stride : (y+1)*stride]
		for x := 0; x+1 < v.Width; x += 2 {
			var yy0, yy1, cb, cr byte
			if y < hColorBarEnd {
				// Color bar
				c := barColors[x*7/v.Width]
				yy0, yy1, cb, cr = c[0], c[0], c[1], c[2]
			} else if x < wGradationEnd {
				// Gray gradation
				yy0 = uint8(x * 255 / wGradationEnd)
				yy1 = uint8((x + 1) * 255 / wGradationEnd)
				cb, cr = 128, 128
			} else {
				cb, cr = 128, 128
			}
			m := row[x*2 : x*2+4]
			m[yi0], m[cbi], m[yi1], m[cri] = yy0, cb, yy1, cr
		}
	}
}

func renderRGB32(buf []byte, v prop.Video) {
	ri, bi := 0, 2
	if v.FrameFormat == frame.FormatBGRA {
		ri, bi = 2, 0
	}

	stride := v.Width * 4
	hColorBarEnd := v.Height * 3 / 4
	for y := 0; y < v.Height; y++ {
		row := buf[y*stride : (y+1)*stride]
		for x := 0; x < v.Width; x++ {
			var r, g, b byte
			if y < hColorBarEnd {
				r, g, b = ycbcrToRGB(barColors[x*7/v.Width])
			} else {
				r = uint8(x * 255 / v.Width)
				g, b = r, r
			}
			p := row[x*4 : x*4+4]
			p[ri], p[1], p[bi], p[3] = r, g, b, 0xff
		}
	}
}

func ycbcrToRGB(c [3]byte) (byte, byte, byte) {
	y := float64(c[0]) - 16
	cb := float64(c[1]) - 128
	cr := float64(c[2]) - 128
	clamp := func(f float64) byte {
		return byte(math.Max(0, math.Min(255, math.Round(f))))
	}
	return clamp(1.164*y + 1.596*cr), clamp(1.164*y - 0.392*cb - 0.813*cr), clamp(1.164*y + 2.017*cb)
}

// stampNoise fills the bottom right corner of a 4:2:2 frame with noise
// seeded by the frame number, so consecutive frames differ.
func (d *Device) stampNoise(buf []byte, number uint64) {
	v := d.media.Video
	if v.FrameFormat != frame.FormatUYVY && v.FrameFormat != frame.FormatYUY2 {
		return
	}
	yOffset := 0
	if v.FrameFormat == frame.FormatUYVY {
		yOffset = 1
	}

	stride := v.Width * 2
	seed := uint32(number)*2654435761 + 1
	for y := v.Height * 3 / 4; y < v.Height; y++ {
		for x := v.Width * 5 / 7; x < v.Width; x++ {
			i := y*stride + x*2 + yOffset
			if i >= len(buf) {
				return
			}
			// xorshift
			seed ^= seed << 13
			seed ^= seed >> 17
			seed ^= seed << 5
			buf[i] = uint8(seed&1) * 255
		}
	}
}

// renderAudio appends one frame worth of a 480Hz tone (at 48kHz) to dst as
// signed little endian samples.
func (d *Device) renderAudio(dst []byte) []byte {
	a := d.media.Audio
	frames := 0
	if d.media.FrameRate > 0 {
		frames = int(float32(a.SampleRate) / d.media.FrameRate)
	}

	for i := 0; i < frames; i++ {
		d.phase++
		if d.phase >= 100 {
			d.phase = 0
		}
		s := math.Sin(2*math.Pi*float64(d.phase)/100) * 0.25
		for ch := 0; ch < a.ChannelCount; ch++ {
			switch {
			case a.IsFloat && a.SampleSize == 4:
				dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(float32(s)))
			case a.SampleSize == 4:
				dst = binary.LittleEndian.AppendUint32(dst, uint32(int32(s*math.MaxInt32)))
			default:
				dst = binary.LittleEndian.AppendUint16(dst, uint16(int16(s*math.MaxInt16)))
			}
		}
	}
	return dst
}

// appendTimecodePacket appends an 8-bit ancillary data packet carrying tc
// as BCD hours, minutes, seconds and frames.
func appendTimecodePacket(dst []byte, tc timecode.Timecode) []byte {
	bcd := func(v uint8) byte { return (v/10)<<4 | v%10 }

	start := len(dst)
	dst = append(dst, 0x00, 0xff, 0xff, ancDID, ancSDID, 4,
		bcd(tc.Hours), bcd(tc.Minutes), bcd(tc.Seconds), bcd(tc.Frames))

	var sum byte
	for _, b := range dst[start+3:] {
		sum += b
	}
	return append(dst, sum)
}
