// Package io has the helpers drivers use to move device data into the
// fixed-size buffers of a frame slot.
package io

import "fmt"

// InsufficientBufferError tells the caller that the destination slot buffer
// can't hold the whole frame or sample.
type InsufficientBufferError struct {
	RequiredSize int
}

func (e *InsufficientBufferError) Error() string {
	return fmt.Sprintf("slot buffer too small: need %d bytes", e.RequiredSize)
}

// Copy copies data from src to dst. If dst is not big enough, return an
// InsufficientBufferError and copy nothing; a partial video frame is worse
// than a lost one.
func Copy(dst, src []byte) (n int, err error) {
	if len(dst) < len(src) {
		return 0, &InsufficientBufferError{len(src)}
	}

	return copy(dst, src), nil
}

// CopyTruncated copies as much of src as fits into dst and reports how
// many bytes were dropped. It is meant for streams such as audio where a
// short read is still usable.
func CopyTruncated(dst, src []byte) (n, dropped int) {
	n = copy(dst, src)
	return n, len(src) - n
}
