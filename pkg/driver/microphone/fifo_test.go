package microphone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFIFO(t *testing.T) {
	f := newFIFO(8)

	f.Write([]byte{1, 2, 3})
	f.Write([]byte{4, 5})
	assert.Equal(t, 5, f.Len())

	dst := make([]byte, 4)
	assert.Equal(t, 4, f.Read(dst))
	assert.Equal(t, []byte{1, 2, 3, 4}, dst)
	assert.Equal(t, 1, f.Read(dst))
	assert.Equal(t, byte(5), dst[0])
	assert.Zero(t, f.Read(dst))
	assert.Zero(t, f.Dropped())
}

func TestFIFOOverflow(t *testing.T) {
	f := newFIFO(4)

	f.Write([]byte{1, 2, 3})
	f.Write([]byte{4, 5, 6})
	assert.EqualValues(t, 2, f.Dropped())

	dst := make([]byte, 8)
	n := f.Read(dst)
	assert.Equal(t, []byte{3, 4, 5, 6}, dst[:n])

	f.Write([]byte{1, 2, 3, 4, 5, 6})
	assert.EqualValues(t, 4, f.Dropped())
	n = f.Read(dst)
	assert.Equal(t, []byte{3, 4, 5, 6}, dst[:n])
}

func TestFIFODefaultLimit(t *testing.T) {
	assert.Equal(t, 48000*2*2, newFIFO(0).limit)
}

func TestCaptureReportsOverrun(t *testing.T) {
	c := &Capture{fifo: newFIFO(4)}
	c.fifo.Write([]byte{1, 2, 3, 4, 5, 6})
	assert.EqualValues(t, 2, c.Dropped())

	dst := make([]byte, 8)
	assert.Equal(t, 4, c.Read(dst))
	assert.Equal(t, []byte{3, 4, 5, 6}, dst[:4])
}
