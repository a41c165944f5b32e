package frame

import (
	"errors"
	"fmt"
)

var (
	// ErrCompressedFormat is returned for formats whose frame size depends on content.
	ErrCompressedFormat = errors.New("frame: compressed formats have no fixed frame size")
	// ErrUnknownFormat is returned for formats missing from FrameSizeMap.
	ErrUnknownFormat = errors.New("frame: unknown format")
)

type frameSizeFunc func(width, height int) uint

// FrameSizeMap returns a function to get the number of bytes a frame will
// occupy in the given format.
var FrameSizeMap = map[Format]frameSizeFunc{
	FormatI420:  frameSizeI420,
	FormatI444:  frameSizeI444,
	FormatNV21:  frameSizeNV21,
	FormatNV12:  frameSizeNV21, // NV12 and NV21 have the same frame size
	FormatYUY2:  frameSizeYUY2,
	FormatUYVY:  frameSizeYUY2, // UYVY and YUY2 have the same frame size
	FormatV210:  frameSizeV210,
	FormatRGBA:  frameSizeRGBA,
	FormatBGRA:  frameSizeRGBA,
	FormatRGB24: frameSizeRGB24,
	FormatZ16:   frameSizeZ16,
}

// Size returns the byte count of one width x height frame in format.
func Size(format Format, width, height int) (int, error) {
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("frame: invalid dimensions %dx%d", width, height)
	}
	if format == FormatMJPEG {
		return 0, ErrCompressedFormat
	}
	f, ok := FrameSizeMap[format]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return int(f(width, height)), nil
}

func frameSizeYUY2(width, height int) uint {
	yi := width * height
	// ci := yi / 2
	// fi := yi + 2*ci
	fi := 2 * yi
	return uint(fi)
}

func frameSizeI420(width, height int) uint {
	yi := width * height
	cbi := yi + width*height/4
	cri := cbi + width*height/4
	return uint(cri)
}

func frameSizeI444(width, height int) uint {
	return uint(3 * width * height)
}

func frameSizeNV21(width, height int) uint {
	yi := width * height
	ci := yi + width*height/2
	return uint(ci)
}

func frameSizeV210(width, height int) uint {
	// Every line is padded to a whole number of 48-pixel groups.
	rowBytes := (width + 47) / 48 * 128
	return uint(rowBytes * height)
}

func frameSizeRGBA(width, height int) uint {
	return uint(4 * width * height)
}

func frameSizeRGB24(width, height int) uint {
	return uint(3 * width * height)
}

func frameSizeZ16(width, height int) uint {
	expectedSize := 2 * (width * height)
	return uint(expectedSize)
}
