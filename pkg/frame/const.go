// Package frame describes the pixel formats a capture device can deliver
// and how many host bytes one frame occupies in each of them.
package frame

// Format is a pixel format identifier.
type Format string

const (
	// YUV Formats

	// FormatI420 https://www.fourcc.org/pixel-format/yuv-i420/
	FormatI420 Format = "I420"
	// FormatI444 is a YUV format without sub-sampling
	FormatI444 Format = "I444"
	// FormatNV21 https://www.fourcc.org/pixel-format/yuv-nv21/
	FormatNV21 Format = "NV21"
	// FormatNV12 https://www.fourcc.org/pixel-format/yuv-nv12/
	FormatNV12 Format = "NV12"
	// FormatYUY2 https://www.fourcc.org/pixel-format/yuv-yuy2/
	FormatYUY2 Format = "YUY2"
	// FormatUYVY https://www.fourcc.org/pixel-format/yuv-uyvy/
	FormatUYVY Format = "UYVY"
	// FormatV210 is 10-bit 4:2:2 packed into 128-byte groups of 48 pixels,
	// the native frame buffer layout of most SDI capture cards.
	FormatV210 Format = "V210"

	// RGB Formats

	// FormatRGBA is 8-bit RGBA, 4 bytes per pixel.
	FormatRGBA Format = "RGBA"
	// FormatBGRA is 8-bit BGRA, 4 bytes per pixel.
	FormatBGRA Format = "BGRA"
	// FormatRGB24 is 8-bit RGB, 3 bytes per pixel.
	FormatRGB24 Format = "RGB24"

	// Depth Formats

	// FormatZ16 is 16-bit depth, 2 bytes per pixel.
	FormatZ16 Format = "Z16"

	// Compressed Formats

	// FormatMJPEG https://www.fourcc.org/mjpg/
	FormatMJPEG Format = "MJPEG"
)

// YUV aliases

// FormatYUYV is an alias of FormatYUY2
const FormatYUYV = FormatYUY2
