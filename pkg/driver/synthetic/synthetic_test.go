package synthetic

import (
	"testing"
	"time"

	"github.com/pion/avcapture/pkg/driver"
	"github.com/pion/avcapture/pkg/frame"
	"github.com/pion/avcapture/pkg/prop"
	"github.com/pion/avcapture/pkg/timecode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDevice(t *testing.T, f driver.Features) *Device {
	t.Helper()
	d := New()
	require.NoError(t, d.Open())
	t.Cleanup(func() { d.Close() })
	require.NoError(t, d.Configure(prop.Media{
		Video: prop.Video{Width: 64, Height: 36, FrameRate: 200, FrameFormat: frame.FormatUYVY},
	}, f))
	return d
}

func waitForFrames(t *testing.T, d *Device, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for d.IngestStatus().FramesAvailable < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d frames", n)
		}
		d.WaitForVerticalInterrupt(100 * time.Millisecond)
	}
}

func TestVerticalInterrupt(t *testing.T) {
	d := newTestDevice(t, driver.Features{})
	assert.True(t, d.WaitForVerticalInterrupt(time.Second))

	// Ingest is stopped, so interrupts fire without filling frames.
	assert.Zero(t, d.IngestStatus().FramesAvailable)
}

func TestWaitForVerticalInterruptAfterClose(t *testing.T) {
	d := New()
	start := time.Now()
	assert.False(t, d.WaitForVerticalInterrupt(20*time.Millisecond), "never opened")
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	require.NoError(t, d.Configure(prop.Media{Video: prop.Video{FrameRate: 0.5}}, driver.Features{}))
	require.NoError(t, d.Open())

	released := make(chan time.Duration, 1)
	go func() {
		start := time.Now()
		d.WaitForVerticalInterrupt(5 * time.Second)
		released <- time.Since(start)
	}()
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, d.Close())
	require.NoError(t, d.Close())

	select {
	case elapsed := <-released:
		assert.Less(t, elapsed, 2*time.Second)
	case <-time.After(3 * time.Second):
		t.Fatal("waiter was not released by Close")
	}

	// Later waits must still block for the timeout, never return at once.
	start = time.Now()
	for i := 0; i < 3; i++ {
		assert.False(t, d.WaitForVerticalInterrupt(20*time.Millisecond))
	}
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestTransfer(t *testing.T) {
	d := newTestDevice(t, driver.Features{Audio: true, Anc: true})

	var x driver.Transfer
	x.Reset(nil, nil, nil, nil)
	assert.ErrorIs(t, d.Transfer(&x), ErrNotRunning)

	require.NoError(t, d.StartIngest(driver.FrameRange{First: 0, Last: 6}))
	st := d.IngestStatus()
	assert.True(t, st.Running)
	assert.True(t, st.WithAudio)
	assert.True(t, st.WithAnc)

	waitForFrames(t, d, 2)

	size := d.VideoWriteSize()
	require.Equal(t, 64*36*2, size)
	f1, f2 := d.AncFieldOffsets()
	x.Reset(make([]byte, size), make([]byte, 4096), make([]byte, f1-f2), make([]byte, f2))

	require.NoError(t, d.Transfer(&x))
	assert.Equal(t, size, x.VideoBytes)
	// 48000 / 200 samples, two channels of 16 bits
	assert.Equal(t, 240*2*2, x.AudioBytes)
	assert.Equal(t, 11, x.AncBytes)
	assert.Equal(t, 11, x.Anc2Bytes)
	assert.Equal(t, []byte{0x00, 0xff, 0xff, ancDID, ancSDID, 4}, x.Anc[:6])
	first := x.FrameNumber

	tc, ok := x.Timecodes[timecode.IndexRP188]
	require.True(t, ok)
	assert.Equal(t, timecode.FromFrameCount(first, 200), tc)
	assert.Contains(t, x.Timecodes, timecode.IndexVITC2)

	// The top left macropixel is the white bar.
	assert.Equal(t, []byte{128, 235, 128, 235}, x.Video[:4])

	x.Reset(x.Video, x.Audio, x.Anc, x.Anc2)
	require.NoError(t, d.Transfer(&x))
	assert.Equal(t, first+1, x.FrameNumber)
	assert.EqualValues(t, 2, d.IngestStatus().ProcessedFrames)
}

func TestTransferWithoutOptionalChannels(t *testing.T) {
	d := newTestDevice(t, driver.Features{})
	require.NoError(t, d.StartIngest(driver.FrameRange{First: 0, Last: 1}))
	waitForFrames(t, d, 1)

	var x driver.Transfer
	x.Reset(make([]byte, d.VideoWriteSize()), make([]byte, 4096), make([]byte, 64), make([]byte, 64))
	require.NoError(t, d.Transfer(&x))
	assert.Zero(t, x.AudioBytes)
	assert.Zero(t, x.AncBytes)
	assert.Zero(t, x.Anc2Bytes)
	assert.NotContains(t, x.Timecodes, timecode.IndexVITC)
}

func TestTransferShortVideoBuffer(t *testing.T) {
	d := newTestDevice(t, driver.Features{})
	require.NoError(t, d.StartIngest(driver.FrameRange{First: 0, Last: 1}))
	waitForFrames(t, d, 1)

	var x driver.Transfer
	x.Reset(make([]byte, 16), nil, nil, nil)
	assert.Error(t, d.Transfer(&x))
	assert.Equal(t, 1, d.IngestStatus().FramesAvailable, "a failed transfer keeps the frame")
}

func TestDroppedFrames(t *testing.T) {
	d := newTestDevice(t, driver.Features{})
	require.NoError(t, d.StartIngest(driver.FrameRange{First: 0, Last: 1}))

	deadline := time.Now().Add(5 * time.Second)
	for d.IngestStatus().DroppedFrames == 0 {
		if time.Now().After(deadline) {
			t.Fatal("expected frames to be dropped once the device ring is full")
		}
		d.WaitForVerticalInterrupt(100 * time.Millisecond)
	}
	st := d.IngestStatus()
	assert.Equal(t, 2, st.FramesAvailable)
	assert.Equal(t, 2, st.BufferLevel)

	// Frames held in the device stay consecutive even after drops.
	var x driver.Transfer
	x.Reset(make([]byte, d.VideoWriteSize()), nil, nil, nil)
	require.NoError(t, d.Transfer(&x))
	first := x.FrameNumber
	require.NoError(t, d.Transfer(&x))
	assert.Equal(t, first+1, x.FrameNumber)

	require.NoError(t, d.StopIngest())
	assert.Zero(t, d.IngestStatus().FramesAvailable)
}

func TestStartIngestErrors(t *testing.T) {
	d := New()
	assert.Error(t, d.StartIngest(driver.FrameRange{First: 0, Last: 6}), "closed")

	d = newTestDevice(t, driver.Features{})
	assert.Error(t, d.StartIngest(driver.FrameRange{First: 3, Last: 2}))
}

func TestConfigureRejectsCompressedFormats(t *testing.T) {
	d := newTestDevice(t, driver.Features{})
	err := d.Configure(prop.Media{Video: prop.Video{FrameFormat: frame.FormatMJPEG}}, driver.Features{})
	assert.ErrorIs(t, err, frame.ErrCompressedFormat)
	assert.Equal(t, frame.FormatUYVY, d.Properties()[0].FrameFormat)
}

func TestStreamOwnership(t *testing.T) {
	d := New()
	require.NoError(t, d.AcquireStream(1))
	require.NoError(t, d.AcquireStream(1))
	assert.ErrorIs(t, d.AcquireStream(2), ErrStreamBusy)
	require.NoError(t, d.ReleaseStream(2))
	assert.ErrorIs(t, d.AcquireStream(2), ErrStreamBusy)
	require.NoError(t, d.ReleaseStream(1))
	assert.NoError(t, d.AcquireStream(2))
}

func TestRenderBarsRGBA(t *testing.T) {
	buf, err := renderBars(prop.Video{Width: 14, Height: 4, FrameFormat: frame.FormatBGRA})
	require.NoError(t, err)
	require.Len(t, buf, 14*4*4)
	// alpha is opaque everywhere
	for i := 3; i < len(buf); i += 4 {
		assert.Equal(t, byte(0xff), buf[i])
	}
}

func TestRegistered(t *testing.T) {
	drivers := driver.GetManager().Query(driver.FilterDeviceType(driver.Synthetic))
	require.NotEmpty(t, drivers)
	assert.Equal(t, "synthetic", drivers[0].Info().Label)
}
