package avcapture

// consume drains published slots into the sink until aborted.
func (c *Capture) consume() {
	c.log.Infof("%s: consumer started", c.id)

	for {
		slot := c.ring.StartConsumeNextSlot()
		if slot == nil {
			break
		}

		if err := c.sink.Process(slot); err != nil {
			c.counters.sinkErrors.Add(1)
			c.log.Warnf("%s: sink failed on frame %d: %v", c.id, slot.FrameNumber, err)
		}
		c.ring.EndConsumeNextSlot()
	}

	c.log.Infof("%s: consumer exited", c.id)
}
