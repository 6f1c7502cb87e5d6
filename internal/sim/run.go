package sim

import (
	"context"
	"slices"
	"time"
)

// Run produces frames until n frames have completed or ctx is done. n <= 0
// runs until cancellation. Cancellation is observed only between frames,
// as are the periodic switches requested by Options.ToggleEvery.
func (c *Context) Run(ctx context.Context, n int) (*Result, error) {
	for _, m := range c.metrics {
		m.Reset()
	}
	c.samples = nil
	startFrame, startSwitches := c.frame, c.switches
	start := time.Now()

	if len(c.metrics) > 0 {
		if err := c.sample(FrameStats{Frame: c.frame, Time: c.time, Mode: c.active}); err != nil {
			return nil, c.fail("sample", err)
		}
	}

	result := func() *Result {
		r := &Result{
			Frames:   int(c.frame - startFrame),
			Time:     c.time,
			Switches: c.switches - startSwitches,
			Elapsed:  time.Since(start),
			Samples:  slices.Clone(c.samples),
			Metrics:  make(map[string]float64, len(c.metrics)),
		}
		for _, m := range c.metrics {
			r.Metrics[m.Name()] = m.Value()
		}
		return r
	}

	for i := 0; n <= 0 || i < n; i++ {
		select {
		case <-ctx.Done():
			return result(), ctx.Err()
		default:
		}
		if err := c.Frame(ctx); err != nil {
			return result(), err
		}
		if c.toggleEvery > 0 && c.HasGPU() && c.frame%uint64(c.toggleEvery) == 0 {
			if err := c.Toggle(); err != nil {
				return result(), err
			}
		}
	}

	if len(c.metrics) > 0 && c.frame > startFrame && (c.sampleEvery <= 0 || c.frame%uint64(c.sampleEvery) != 0) {
		if err := c.sample(FrameStats{Frame: c.frame, Time: c.time, Mode: c.active}); err != nil {
			return result(), c.fail("sample", err)
		}
	}
	return result(), nil
}
