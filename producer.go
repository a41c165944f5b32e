package avcapture

import (
	"time"

	"github.com/pion/avcapture/pkg/driver"
)

// produce moves frames from the device into free slots until aborted.
func (c *Capture) produce() {
	c.log.Infof("%s: producer started", c.id)

	// The ingest engine may have been left running by a previous owner.
	if err := c.dev.StopIngest(); err != nil {
		c.log.Debugf("%s: stop ingest before start: %v", c.id, err)
	}
	if err := c.dev.StartIngest(c.cfg.DeviceFrames); err != nil {
		c.fail(&FatalError{Err: err})
		c.log.Infof("%s: producer exited", c.id)
		return
	}

	var x driver.Transfer
	for !c.abort.IsSet() {
		st := c.dev.IngestStatus()
		c.counters.setDevice(st)

		if !st.HasAvailableInputFrame() {
			// Nothing to transfer yet; sleep until the next frame
			// period instead of spinning.
			c.counters.interruptWaits.Add(1)
			c.waitForInterrupt()
			continue
		}

		slot := c.ring.StartProduceNextSlot()
		if slot == nil {
			break
		}

		audio := slot.Audio
		if !st.WithAudio {
			audio = nil
		}
		anc, anc2 := slot.Anc, slot.Anc2
		if !st.WithAnc {
			anc, anc2 = nil, nil
		}
		x.Reset(slot.Video, audio, anc, anc2)

		if err := c.dev.Transfer(&x); err != nil {
			// Live frames are never retried.
			c.ring.AbortProduceNextSlot()
			c.counters.lostFrames.Add(1)
			c.log.Warnf("%s: frame lost: %v", c.id, err)
			continue
		}

		slot.VideoBytes = min(x.VideoBytes, len(slot.Video))
		slot.AudioBytes = 0
		if len(audio) > 0 {
			slot.AudioBytes = min(x.AudioBytes, len(audio))
		}
		slot.AncBytes = min(x.AncBytes, len(anc))
		slot.Anc2Bytes = min(x.Anc2Bytes, len(anc2))
		slot.SetTimecodes(x.Timecodes)
		slot.FrameNumber = x.FrameNumber
		slot.CapturedAt = time.Now()
		c.ring.EndProduceNextSlot()
	}

	if err := c.dev.StopIngest(); err != nil {
		c.log.Warnf("%s: stop ingest: %v", c.id, err)
	}
	c.log.Infof("%s: producer exited", c.id)
}

// waitForInterrupt waits on the pacer for at most InterruptTimeout. A pacer
// that gives up early, e.g. because its device was closed, is made up for
// by sleeping out the rest of the timeout, so the loop never spins.
func (c *Capture) waitForInterrupt() {
	start := time.Now()
	if c.pacer.WaitForVerticalInterrupt(c.cfg.InterruptTimeout) {
		return
	}
	rest := c.cfg.InterruptTimeout - time.Since(start)
	if rest <= 0 {
		return
	}

	timer := time.NewTimer(rest)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-c.abort.Done():
	}
}
