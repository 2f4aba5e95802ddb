// Package latency measures frame present to scan-out latency with a
// pixel-readback latency tester.
//
// Frames are tagged by painting a color handed out by NextDrawColor into a
// screen region the tester watches. The tester reports batches of
// {color, scan-out time} records which MatchRecord pairs with the saved
// end-of-frame times.
package latency

import (
	"log/slog"

	"github.com/soocke/framepace/domain/clock"
	"github.com/soocke/framepace/domain/timedelta"
)

const (
	// ResyncTimeout is how long, in end-of-frame seconds, tagged frames may
	// go unmatched before the tracker returns to waiting for a baseline.
	ResyncTimeout = 0.15

	// minConsecutiveMatch guards against a single accidental color match when
	// the batch shows what followed the matched record.
	minConsecutiveMatch = 2
)

// FrameLatencyTracker runs the tagging protocol and keeps medianed latency
// statistics. Not safe for concurrent use; drive it from the render
// submission goroutine.
type FrameLatencyTracker struct {
	clock  clock.Clock
	logger *slog.Logger

	enabled bool
	state   State

	frameEndTimes [FramesTracked]FrameTimeRecordEx
	nextColor     int // rotation position of the next tag, 0..FramesTracked-1
	frameIndex    int // frames saved in the current matching run
	matchCount    int // frames matched in the current matching run
	lastProgress  float64

	attempts uint64
	matches  uint64
	resyncs  uint64

	// scan-out minus end-of-frame samples
	frameDeltas       timedelta.Collector
	renderLatencies   timedelta.Collector
	timewarpLatencies timedelta.Collector

	renderLatencySeconds   float64
	timewarpLatencySeconds float64
	latencyRecordTime      float64
}

// NewFrameLatencyTracker returns an enabled tracker waiting for its baseline.
func NewFrameLatencyTracker(clk clock.Clock, logger *slog.Logger) *FrameLatencyTracker {
	if clk == nil {
		clk = clock.Monotonic()
	}
	t := &FrameLatencyTracker{clock: clk, logger: logger, enabled: true}
	t.Reset()
	return t
}

// Reset discards all tags and statistics. An enabled tracker restarts in
// StateWaitingForZero.
func (t *FrameLatencyTracker) Reset() {
	t.clearRun()
	t.attempts, t.matches, t.resyncs = 0, 0, 0
	t.frameDeltas.Clear()
	t.renderLatencies.Clear()
	t.timewarpLatencies.Clear()
	t.renderLatencySeconds = 0
	t.timewarpLatencySeconds = 0
	t.latencyRecordTime = 0
	if t.enabled {
		t.setState(StateWaitingForZero)
	} else {
		t.setState(StateDisabled)
	}
}

// SetEnabled turns tagging on or off. Enabling a disabled tracker resets it.
func (t *FrameLatencyTracker) SetEnabled(enabled bool) {
	if t.enabled == enabled {
		return
	}
	t.enabled = enabled
	t.Reset()
}

// State returns the protocol state.
func (t *FrameLatencyTracker) State() State { return t.state }

// NextDrawColor returns the color to paint this frame. Outside
// StateMatching it is always DrawColorBaseline; while matching each call
// advances through the FramesTracked tag colors.
func (t *FrameLatencyTracker) NextDrawColor() DrawColor {
	if t.state != StateMatching {
		return DrawColorBaseline
	}
	c := DrawColor(t.nextColor + 1)
	t.nextColor = (t.nextColor + 1) % FramesTracked
	return c
}

// SaveDrawColor records the end-of-frame time and IMU sample times of a frame
// painted with color. Baseline colors, and any color outside StateMatching,
// are ignored.
func (t *FrameLatencyTracker) SaveDrawColor(color DrawColor, endFrameTime, renderIMUTime, timewarpIMUTime float64) {
	if t.state != StateMatching || !color.Tagged() {
		return
	}
	if t.frameIndex > 0 && endFrameTime-t.lastProgress > ResyncTimeout {
		t.resync()
		return
	}
	if t.frameIndex == 0 {
		t.lastProgress = endFrameTime
	}
	t.frameEndTimes[color-1] = FrameTimeRecordEx{
		FrameTimeRecord:        FrameTimeRecord{ReadbackIndex: color, TimeSeconds: endFrameTime},
		RenderIMUTimeSeconds:   renderIMUTime,
		TimewarpIMUTimeSeconds: timewarpIMUTime,
	}
	t.frameIndex++
	t.attempts++
}

// MatchRecord consumes a batch of readbacks. While waiting for the baseline
// an all-zero batch starts matching. While matching, the first unmatched
// saved frame found in the batch (together with the frames saved after it)
// is paired with its readbacks. Frames with no readback yet are retried on
// the next batch.
func (t *FrameLatencyTracker) MatchRecord(set *FrameTimeRecordSet) {
	if set == nil {
		return
	}
	switch t.state {
	case StateDisabled:
		return
	case StateWaitingForZero:
		if set.IsAllZeroes() {
			t.clearRun()
			t.setState(StateMatching)
		}
		return
	}

	// Oldest saved slot first: the slot the rotation will overwrite next.
	for k := 0; k < FramesTracked; k++ {
		i := (t.nextColor + k) % FramesTracked
		entry := &t.frameEndTimes[i]
		if !entry.ReadbackIndex.Tagged() || entry.MatchedRecord {
			continue
		}
		ri, ok := set.FindReadbackIndex(0, entry.ReadbackIndex)
		if !ok {
			continue
		}
		n := t.consecutive(set, i, ri)
		if n < minConsecutiveMatch && ri+n < RecordCount {
			continue
		}
		matched := false
		for q := 0; q < n; q++ {
			if t.matchOne(&t.frameEndTimes[(i+q)%FramesTracked], set.At(ri+q)) {
				matched = true
			}
		}
		if matched {
			break
		}
	}
}

// consecutive counts how many saved frames, starting at slot i, line up with
// the batch starting at position ri.
func (t *FrameLatencyTracker) consecutive(set *FrameTimeRecordSet, i, ri int) int {
	n := 1
	prev := &t.frameEndTimes[i]
	for q := 1; q < FramesTracked && ri+q < RecordCount; q++ {
		next := &t.frameEndTimes[(i+q)%FramesTracked]
		// A successor saved before prev belongs to an earlier lap.
		if !next.ReadbackIndex.Tagged() || next.TimeSeconds <= prev.TimeSeconds {
			break
		}
		if set.At(ri+q).ReadbackIndex != next.ReadbackIndex {
			break
		}
		n++
		prev = next
	}
	return n
}

func (t *FrameLatencyTracker) matchOne(frame *FrameTimeRecordEx, scanout FrameTimeRecord) bool {
	if frame.MatchedRecord {
		return false
	}
	delta := scanout.TimeSeconds - frame.TimeSeconds
	if delta <= 0 {
		// Readback from an earlier lap of the same color.
		return false
	}
	t.frameDeltas.AddTimeDelta(delta)
	t.renderLatencies.AddTimeDelta(scanout.TimeSeconds - frame.RenderIMUTimeSeconds)
	if frame.TimewarpIMUTimeSeconds != 0 {
		t.timewarpLatencies.AddTimeDelta(scanout.TimeSeconds - frame.TimewarpIMUTimeSeconds)
	}
	t.renderLatencySeconds = t.renderLatencies.MedianTimeDelta()
	t.timewarpLatencySeconds = t.timewarpLatencies.MedianTimeDelta()
	t.latencyRecordTime = t.clock.Now()
	t.lastProgress = frame.TimeSeconds
	frame.MatchedRecord = true
	t.matchCount++
	t.matches++
	return true
}

// LatencyTimings returns the medianed {render, timewarp, screen} latencies.
func (t *FrameLatencyTracker) LatencyTimings() LatencyTimings {
	return LatencyTimings{
		Render:   t.renderLatencySeconds,
		Timewarp: t.timewarpLatencySeconds,
		Screen:   t.frameDeltas.MedianTimeDelta(),
	}
}

// ScreenDelay returns the median end-of-frame to scan-out delay and how many
// samples back it.
func (t *FrameLatencyTracker) ScreenDelay() (float64, int) {
	return t.frameDeltas.MedianTimeDelta(), t.frameDeltas.Count()
}

// Record returns the saved frame for a tag color.
func (t *FrameLatencyTracker) Record(color DrawColor) (FrameTimeRecordEx, bool) {
	if !color.Tagged() {
		return FrameTimeRecordEx{}, false
	}
	r := t.frameEndTimes[color-1]
	return r, r.ReadbackIndex.Tagged()
}

// Stats returns a snapshot of tracker counters.
func (t *FrameLatencyTracker) Stats() TrackerStats {
	return TrackerStats{
		State:             t.state,
		Attempts:          t.attempts,
		Matches:           t.matches,
		Resyncs:           t.resyncs,
		FrameIndex:        t.frameIndex,
		Samples:           t.frameDeltas.Count(),
		LatencyRecordTime: t.latencyRecordTime,
	}
}

func (t *FrameLatencyTracker) resync() {
	if t.matches == 0 {
		// Nothing ever matched since Reset: there is no good value to keep.
		t.renderLatencySeconds = 0
		t.timewarpLatencySeconds = 0
	}
	t.resyncs++
	if t.logger != nil {
		t.logger.Debug("latency tracker resync", "saved", t.frameIndex, "matched", t.matchCount)
	}
	t.clearRun()
	t.setState(StateWaitingForZero)
}

func (t *FrameLatencyTracker) clearRun() {
	t.frameEndTimes = [FramesTracked]FrameTimeRecordEx{}
	t.nextColor = 0
	t.frameIndex = 0
	t.matchCount = 0
	t.lastProgress = 0
}

func (t *FrameLatencyTracker) setState(next State) {
	prev := t.state
	if prev == next {
		return
	}
	t.state = next
	if t.logger != nil {
		t.logger.Debug("latency tracker state", "from", prev.String(), "to", next.String())
	}
}
