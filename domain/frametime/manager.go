package frametime

import (
	"log/slog"
	"math"

	"github.com/soocke/framepace/domain/clock"
	"github.com/soocke/framepace/domain/hmd"
	"github.com/soocke/framepace/domain/latency"
	"github.com/soocke/framepace/domain/timedelta"
)

const (
	// Used when the device does not report the delay itself.
	defaultVSyncToScanoutDelay   = 0.013
	defaultNoVSyncToScanoutDelay = 0.004

	// minStatSamples is how many samples a collector needs before its median
	// replaces the static model.
	minStatSamples = 4

	// Measured cadence may run at most this much slower than nominal. A
	// clamp keeps the measured value instead of dropping to nominal: a
	// renderer that misses vsync now and then still lands near the panel
	// interval, while one that misses every other vsync would otherwise
	// predict two frames ahead.
	maxFrameDeltaOverNominal = 0.001

	// Measured scan-out delays outside this window are treated as bogus.
	minMeasuredScreenDelay = 0.0001
	maxMeasuredScreenDelay = 0.06

	// distortionSafetyMargin is added to the measured distortion time when
	// scheduling SDK time-warp.
	distortionSafetyMargin = 0.002

	// MaxFrameExtrapolation bounds how many frames GetFrameTiming projects
	// past the published snapshot.
	MaxFrameExtrapolation = 6
)

// Delays are the fixed delay components derived from the device, in seconds.
type Delays struct {
	VSyncToScanout   float64
	NoVSyncToScanout float64
	ScreenSwitching  float64
}

// Option configures a FrameTimeManager.
type Option func(*FrameTimeManager)

// WithVsync sets whether presentation waits for vertical sync. Default true.
func WithVsync(enabled bool) Option {
	return func(m *FrameTimeManager) { m.vsync = enabled }
}

// WithTimewarpLead sets how many seconds before the next frame start an
// application-rendered time-warp begins. 0 disables it.
func WithTimewarpLead(seconds float64) Option {
	return func(m *FrameTimeManager) { m.timewarpLead = math.Max(0, seconds) }
}

// WithLatencyTracking enables frame tagging for a latency tester. Default off.
func WithLatencyTracking(enabled bool) Option {
	return func(m *FrameTimeManager) { m.latencyTracking = enabled }
}

// FrameTimeManager owns the frame schedule of one rendering session.
//
// All methods except GetFrameTiming and LatestLatency must be called from the
// render-submission goroutine.
type FrameTimeManager struct {
	clock  clock.Clock
	logger *slog.Logger

	renderInfo hmd.RenderInfo
	delays     Delays

	vsync             bool
	dynamicPrediction bool
	sdkRender         bool
	timewarpLead      float64
	latencyTracking   bool

	frameTimeDeltas       timedelta.Collector
	distortionRenderTimes timedelta.Collector
	screenLatencyTracker  *latency.FrameLatencyTracker

	frameTiming     Timing
	lastFrameEnd    float64
	distortionStart float64

	// First IMU sample times used for this frame's render and time-warp.
	renderIMUTime   float64
	timewarpIMUTime float64

	published timingSlot
}

// NewFrameTimeManager returns a manager with vsync on and latency tracking
// off. Call Init and ResetFrameTiming before the first BeginFrame.
func NewFrameTimeManager(clk clock.Clock, logger *slog.Logger, opts ...Option) *FrameTimeManager {
	if clk == nil {
		clk = clock.Monotonic()
	}
	m := &FrameTimeManager{clock: clk, logger: logger, vsync: true, frameTiming: NewTiming()}
	for _, opt := range opts {
		opt(m)
	}
	m.screenLatencyTracker = latency.NewFrameLatencyTracker(clk, logger)
	m.screenLatencyTracker.SetEnabled(m.latencyTracking)
	return m
}

// Init derives the fixed delays from the device characteristics. It may be
// called again when the device changes.
func (m *FrameTimeManager) Init(info hmd.RenderInfo) {
	m.renderInfo = info
	sh := info.Shutter

	m.delays.ScreenSwitching = sh.PixelSettleTime*0.5 + sh.PixelPersistence*0.5

	// A global shutter lights the panel only once the last row has arrived.
	vsyncToScanout := sh.VsyncToFirstScanline
	if !sh.Type.Rolling() {
		vsyncToScanout += sh.FirstScanlineToLastScanline
	}
	if vsyncToScanout <= 0 {
		vsyncToScanout = defaultVSyncToScanoutDelay
	}
	m.delays.VSyncToScanout = vsyncToScanout

	m.delays.NoVSyncToScanout = sh.NoVsyncToScanout
	if m.delays.NoVSyncToScanout <= 0 {
		m.delays.NoVSyncToScanout = defaultNoVSyncToScanoutDelay
	}

	if m.logger != nil {
		m.logger.Debug("frame timing init",
			"shutter", sh.Type.String(),
			"refresh_interval", sh.VsyncToNextVsync,
			"vsync_to_scanout", m.delays.VSyncToScanout,
			"no_vsync_to_scanout", m.delays.NoVSyncToScanout,
			"screen_switching", m.delays.ScreenSwitching,
		)
	}
}

// Delays returns the fixed delays computed by Init.
func (m *FrameTimeManager) Delays() Delays { return m.delays }

// ResetFrameTiming drops all measured statistics and switches to a new render
// configuration. The published Timing falls back to the static model.
func (m *FrameTimeManager) ResetFrameTiming(frameIndex uint32, dynamicPrediction, sdkRender bool) {
	m.dynamicPrediction = dynamicPrediction
	m.sdkRender = sdkRender

	m.frameTimeDeltas.Clear()
	m.distortionRenderTimes.Clear()
	m.screenLatencyTracker.Reset()

	m.lastFrameEnd = 0
	m.distortionStart = 0
	m.renderIMUTime = 0
	m.timewarpIMUTime = 0

	m.frameTiming = NewTiming()
	m.frameTiming.InitTimingFromInputs(m.calcInputs(), m.renderInfo.Shutter.Type, m.clock.Now(), frameIndex)
	m.publish()

	if m.logger != nil {
		m.logger.Debug("frame timing reset",
			"frame", frameIndex,
			"dynamic_prediction", dynamicPrediction,
			"sdk_render", sdkRender,
			"vsync", m.vsync,
		)
	}
}

// SetVsync switches between vsync and immediate presentation. It takes
// effect on the next BeginFrame.
func (m *FrameTimeManager) SetVsync(enabled bool) { m.vsync = enabled }

// Vsync reports whether vsync timing is in use.
func (m *FrameTimeManager) Vsync() bool { return m.vsync }

// BeginFrame computes and publishes the schedule of frameIndex and returns
// the clock reading taken by the call.
func (m *FrameTimeManager) BeginFrame(frameIndex uint32) float64 {
	now := m.clock.Now()

	m.renderIMUTime = 0
	m.timewarpIMUTime = 0
	m.distortionStart = 0

	// A frame that starts right after the previous one ended is aligned to
	// that end (the vsync it waited on).
	thisFrameTime := now
	if m.lastFrameEnd > 0 {
		if gap := now - m.lastFrameEnd; gap >= 0 && gap < m.renderInfo.Shutter.VsyncToNextVsync {
			thisFrameTime = m.lastFrameEnd
		}
	}

	m.frameTiming.InitTimingFromInputs(m.calcInputs(), m.renderInfo.Shutter.Type, thisFrameTime, frameIndex)
	m.publish()
	return now
}

// EndFrame marks the frame as submitted. It feeds the cadence statistics and,
// when a measurement is pending, the distortion render time.
func (m *FrameTimeManager) EndFrame() {
	now := m.clock.Now()
	m.lastFrameEnd = now

	if d := now - m.frameTiming.ThisFrameTime; m.frameTiming.ThisFrameTime > 0 && d > 0 {
		m.frameTimeDeltas.AddTimeDelta(d)
	}
	if m.distortionStart > 0 {
		if m.NeedDistortionTimeMeasurement() {
			m.AddDistortionTimeMeasurement(now - m.distortionStart)
		}
		m.distortionStart = 0
	}
}

// BeginDistortion marks the start of SDK distortion rendering for the
// current frame.
func (m *FrameTimeManager) BeginDistortion() {
	m.distortionStart = m.clock.Now()
}

// NeedDistortionTimeMeasurement reports whether distortion render times are
// still being collected.
func (m *FrameTimeManager) NeedDistortionTimeMeasurement() bool {
	return m.dynamicPrediction && m.sdkRender && !m.distortionRenderTimes.Full()
}

// AddDistortionTimeMeasurement records how long distortion rendering took.
func (m *FrameTimeManager) AddDistortionTimeMeasurement(seconds float64) {
	m.distortionRenderTimes.AddTimeDelta(seconds)
}

// GetFrameTiming returns the published schedule. It is safe to call from any
// goroutine. When frameIndex is ahead of the published frame the schedule is
// projected forward by whole frame deltas, at most MaxFrameExtrapolation
// frames; otherwise the published schedule is returned as is.
func (m *FrameTimeManager) GetFrameTiming(frameIndex uint32) Timing {
	snap, ok := m.published.load()
	if !ok {
		return NewTiming()
	}
	t := snap.timing
	if frameIndex <= t.FrameIndex || t.Inputs.FrameDelta <= 0 {
		return t
	}
	ahead := frameIndex - t.FrameIndex
	if ahead > MaxFrameExtrapolation {
		ahead = MaxFrameExtrapolation
	}
	start := t.ThisFrameTime + float64(ahead)*t.Inputs.FrameDelta
	t.InitTimingFromInputs(t.Inputs, snap.shutter, start, t.FrameIndex+ahead)
	return t
}

// CurrentTiming returns the writer's copy of the current schedule.
func (m *FrameTimeManager) CurrentTiming() Timing { return m.frameTiming }

// GetEyePredictionTime returns the time the eye should be rendered for.
// Without vsync this is the best guess for an immediate present.
func (m *FrameTimeManager) GetEyePredictionTime(eye hmd.EyeType) float64 {
	if m.vsync {
		return m.frameTiming.EyeRenderTimes[eye]
	}
	return m.immediateScanoutTime()
}

// GetEyePredictionPose predicts the head pose for the eye's render time. The
// IMU sample time of the first prediction of the frame is kept for latency
// tracking.
func (m *FrameTimeManager) GetEyePredictionPose(predictor hmd.PosePredictor, eye hmd.EyeType) hmd.Posef {
	ss := predictor.SensorState(m.GetEyePredictionTime(eye))
	if m.renderIMUTime == 0 {
		m.renderIMUTime = ss.RecordedTimeSeconds
	}
	return ss.Predicted
}

// GetTimewarpPredictions returns the scan-out window of the eye.
func (m *FrameTimeManager) GetTimewarpPredictions(eye hmd.EyeType) (start, end float64) {
	if m.vsync {
		w := m.frameTiming.TimewarpStartEndTimes[eye]
		return w[0], w[1]
	}
	t := m.immediateScanoutTime()
	return t, t
}

// GetTimewarpMatrices builds the time-warp transforms that move an image
// rendered at renderPose to the poses predicted for the eye's scan-out
// window.
func (m *FrameTimeManager) GetTimewarpMatrices(h hmd.HMD, eye hmd.EyeType, renderPose hmd.Posef) [2]hmd.Matrix4f {
	start, end := m.GetTimewarpPredictions(eye)
	startState := h.SensorState(start)
	endState := h.SensorState(end)
	if m.timewarpIMUTime == 0 {
		m.timewarpIMUTime = startState.RecordedTimeSeconds
	}
	return h.TimewarpMatrices(renderPose, startState, endState)
}

// GetFrameLatencyTestDrawColor returns the color to paint into the latency
// tester's region this frame.
func (m *FrameTimeManager) GetFrameLatencyTestDrawColor() latency.DrawColor {
	return m.screenLatencyTracker.NextDrawColor()
}

// UpdateFrameLatencyTrackingAfterEndFrame saves the color painted in the
// frame that just ended and matches the tester's latest readbacks. Call it
// after EndFrame and before the next BeginFrame.
func (m *FrameTimeManager) UpdateFrameLatencyTrackingAfterEndFrame(color latency.DrawColor, set *latency.FrameTimeRecordSet) {
	m.screenLatencyTracker.SaveDrawColor(color, m.lastFrameEnd, m.renderIMUTime, m.timewarpIMUTime)
	m.screenLatencyTracker.MatchRecord(set)
}

// GetLatencyTimings returns the measured {render, timewarp, screen} latency.
func (m *FrameTimeManager) GetLatencyTimings() latency.LatencyTimings {
	return m.screenLatencyTracker.LatencyTimings()
}

// LatestLatency returns the latency published with the last schedule. It is
// safe to call from any goroutine.
func (m *FrameTimeManager) LatestLatency() latency.LatencyTimings {
	snap, _ := m.published.load()
	return snap.latency
}

// LatencyStats returns the tracker counters.
func (m *FrameTimeManager) LatencyStats() latency.TrackerStats {
	return m.screenLatencyTracker.Stats()
}

// SetLatencyTracking turns frame tagging on or off.
func (m *FrameTimeManager) SetLatencyTracking(enabled bool) {
	m.latencyTracking = enabled
	m.screenLatencyTracker.SetEnabled(enabled)
}

func (m *FrameTimeManager) publish() {
	m.published.publish(m.frameTiming, m.renderInfo.Shutter.Type, m.screenLatencyTracker.LatencyTimings())
}

func (m *FrameTimeManager) immediateScanoutTime() float64 {
	return m.clock.Now() + m.delays.ScreenSwitching + m.delays.NoVSyncToScanout
}

func (m *FrameTimeManager) calcInputs() TimingInputs {
	return TimingInputs{
		FrameDelta:        m.calcFrameDelta(),
		ScreenDelay:       m.calcScreenDelay(),
		TimewarpWaitDelta: m.calcTimewarpWaitDelta(),
	}
}

func (m *FrameTimeManager) calcFrameDelta() float64 {
	nominal := m.renderInfo.Shutter.VsyncToNextVsync
	if !m.vsync || m.frameTimeDeltas.Count() < minStatSamples {
		return nominal
	}
	delta := m.frameTimeDeltas.MedianTimeDelta()
	if limit := nominal + maxFrameDeltaOverNominal; nominal > 0 && delta > limit {
		delta = limit
	}
	return delta
}

func (m *FrameTimeManager) calcScreenDelay() float64 {
	delay := m.delays.ScreenSwitching
	if !m.vsync {
		return delay + m.delays.NoVSyncToScanout
	}
	if m.dynamicPrediction {
		measured, n := m.screenLatencyTracker.ScreenDelay()
		if n >= minStatSamples && measured > minMeasuredScreenDelay && measured < maxMeasuredScreenDelay {
			return delay + measured
		}
	}
	return delay + m.delays.VSyncToScanout
}

func (m *FrameTimeManager) calcTimewarpWaitDelta() float64 {
	if !m.vsync {
		return 0
	}
	if m.sdkRender {
		if m.NeedDistortionTimeMeasurement() || m.distortionRenderTimes.Count() == 0 {
			return 0
		}
		return -(m.distortionRenderTimes.MedianTimeDelta() + distortionSafetyMargin)
	}
	if m.timewarpLead > 0 {
		return -m.timewarpLead
	}
	return 0
}
