// Package frametime predicts when each frame reaches the panel and which
// times the eyes should be rendered and time-warped for.
//
// A FrameTimeManager is driven by a single render-submission goroutine
// (BeginFrame, EndFrame, latency updates). The Timing it publishes on every
// BeginFrame can be read from any goroutine with GetFrameTiming.
package frametime

import "github.com/soocke/framepace/domain/hmd"

// TimingInputs are the per-frame values the schedule is derived from, in
// seconds.
type TimingInputs struct {
	// FrameDelta is the expected interval between frame starts.
	FrameDelta float64
	// ScreenDelay is the delay from the next frame start (vsync) to the
	// midpoint-defining scan-out of this frame.
	ScreenDelay float64
	// TimewarpWaitDelta is how far before the next frame start time-warp
	// begins. Negative or zero; 0 when time-warp timing is not used.
	TimewarpWaitDelta float64
}

// Timing is the predicted schedule of one frame. It is a plain value and is
// never modified after it is published.
type Timing struct {
	Inputs     TimingInputs
	FrameIndex uint32

	ThisFrameTime     float64
	TimewarpPointTime float64 // 0 when time-warp timing is not used
	NextFrameTime     float64
	MidpointTime      float64

	EyeRenderTimes        [hmd.EyeCount]float64
	TimewarpStartEndTimes [hmd.EyeCount][2]float64
}

// NewTiming returns a Timing with every field at its zero value.
func NewTiming() Timing {
	return Timing{
		Inputs:                TimingInputs{},
		FrameIndex:            0,
		EyeRenderTimes:        [hmd.EyeCount]float64{},
		TimewarpStartEndTimes: [hmd.EyeCount][2]float64{},
	}
}

// InitTimingFromInputs fills t with the schedule of frame frameIndex starting
// at thisFrameTime.
func (t *Timing) InitTimingFromInputs(inputs TimingInputs, shutter hmd.ShutterType, thisFrameTime float64, frameIndex uint32) {
	delta := inputs.FrameDelta

	t.Inputs = inputs
	t.FrameIndex = frameIndex
	t.ThisFrameTime = thisFrameTime
	t.NextFrameTime = thisFrameTime + delta

	base := t.NextFrameTime + inputs.ScreenDelay
	t.MidpointTime = base + 0.5*delta

	if inputs.TimewarpWaitDelta != 0 {
		t.TimewarpPointTime = t.NextFrameTime + inputs.TimewarpWaitDelta
	} else {
		t.TimewarpPointTime = 0
	}

	switch shutter {
	case hmd.ShutterRollingTopToBottom:
		t.setEyes(t.MidpointTime, t.MidpointTime)
		t.setWindows(base, base+delta)
	case hmd.ShutterRollingLeftToRight:
		// Each eye owns half of the sweep; its render time is the middle of
		// its window.
		t.setEyes(base+0.25*delta, base+0.75*delta)
		t.setEyeWindow(hmd.EyeLeft, base, t.MidpointTime)
		t.setEyeWindow(hmd.EyeRight, t.MidpointTime, base+delta)
	case hmd.ShutterRollingRightToLeft:
		t.setEyes(base+0.75*delta, base+0.25*delta)
		t.setEyeWindow(hmd.EyeRight, base, t.MidpointTime)
		t.setEyeWindow(hmd.EyeLeft, t.MidpointTime, base+delta)
	default:
		// Global shutter: the whole panel lights at once.
		t.setEyes(t.MidpointTime, t.MidpointTime)
		t.setWindows(t.MidpointTime, t.MidpointTime)
	}
}

func (t *Timing) setEyes(left, right float64) {
	t.EyeRenderTimes[hmd.EyeLeft] = left
	t.EyeRenderTimes[hmd.EyeRight] = right
}

func (t *Timing) setEyeWindow(eye hmd.EyeType, start, end float64) {
	t.TimewarpStartEndTimes[eye] = [2]float64{start, end}
}

func (t *Timing) setWindows(start, end float64) {
	for eye := range t.TimewarpStartEndTimes {
		t.TimewarpStartEndTimes[eye] = [2]float64{start, end}
	}
}
