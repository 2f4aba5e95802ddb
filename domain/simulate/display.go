// Package simulate stands in for the hardware around the frame timing core:
// a panel whose scan-out a latency tester reads back, and a head tracker.
package simulate

import (
	"math/rand"

	"github.com/soocke/framepace/domain/clock"
	"github.com/soocke/framepace/domain/latency"
)

type scanout struct {
	color latency.DrawColor
	at    float64
}

// Display models a panel that shows each presented frame a fixed delay (plus
// jitter) after the frame ended, watched by a latency tester that records
// every scanned-out frame. Not safe for concurrent use.
type Display struct {
	clock  clock.Clock
	delay  float64
	jitter float64
	rng    *rand.Rand

	pending   []scanout
	lastSched float64
	set       latency.FrameTimeRecordSet
	delivered uint64
}

// NewDisplay returns a display scanning out delay±jitter seconds after
// present. seed fixes the jitter sequence.
func NewDisplay(clk clock.Clock, delay, jitter float64, seed int64) *Display {
	if clk == nil {
		clk = clock.Monotonic()
	}
	return &Display{
		clock:  clk,
		delay:  delay,
		jitter: jitter,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Present queues a frame painted with color that ended at endFrame.
func (d *Display) Present(color latency.DrawColor, endFrame float64) {
	at := endFrame + d.delay
	if d.jitter > 0 {
		at += (d.rng.Float64()*2 - 1) * d.jitter
	}
	// Frames never overtake each other on a panel.
	if at < d.lastSched {
		at = d.lastSched
	}
	d.lastSched = at
	d.pending = append(d.pending, scanout{color: color, at: at})
}

// Readback delivers every frame scanned out by now and returns the tester's
// current batch.
func (d *Display) Readback() *latency.FrameTimeRecordSet {
	now := d.clock.Now()
	n := 0
	for n < len(d.pending) && d.pending[n].at <= now {
		d.set.AddValue(d.pending[n].color, d.pending[n].at)
		n++
	}
	if n > 0 {
		d.pending = append(d.pending[:0], d.pending[n:]...)
		d.delivered += uint64(n)
	}
	return &d.set
}

// Pending returns how many presented frames are not yet scanned out.
func (d *Display) Pending() int { return len(d.pending) }

// Delivered returns how many frames have been read back.
func (d *Display) Delivered() uint64 { return d.delivered }
