package frametime

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soocke/framepace/domain/clock"
	"github.com/soocke/framepace/domain/hmd"
	"github.com/soocke/framepace/domain/latency"
	"github.com/soocke/framepace/domain/timedelta"
)

var discardLogger = slog.New(slog.DiscardHandler)

const hz90 = 1.0 / 90.0

// fakeHMD predicts a pose whose X position encodes the requested time and
// reports the clock reading as the IMU sample time.
type fakeHMD struct {
	clk     clock.Clock
	queries []float64
}

func (f *fakeHMD) SensorState(abs float64) hmd.SensorState {
	f.queries = append(f.queries, abs)
	return hmd.SensorState{
		Predicted:           hmd.Posef{Orientation: hmd.IdentityQuat, Position: hmd.Vector3f{X: float32(abs)}},
		RecordedTimeSeconds: f.clk.Now(),
	}
}

func (f *fakeHMD) TimewarpMatrices(_ hmd.Posef, start, end hmd.SensorState) [2]hmd.Matrix4f {
	var m [2]hmd.Matrix4f
	m[0].M[0][3] = start.Predicted.Position.X
	m[1].M[0][3] = end.Predicted.Position.X
	return m
}

func newTestManager(t *testing.T, info hmd.RenderInfo, opts ...Option) (*FrameTimeManager, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(10)
	m := NewFrameTimeManager(clk, discardLogger, opts...)
	m.Init(info)
	return m, clk
}

func TestInit_Delays(t *testing.T) {
	m, _ := newTestManager(t, hmd.DK2RenderInfo())
	d := m.Delays()
	assert.InDelta(t, 0.000052, d.VSyncToScanout, 1e-12)
	assert.InDelta(t, defaultNoVSyncToScanoutDelay, d.NoVSyncToScanout, 1e-12)
	assert.InDelta(t, 0.5*0.015+0.5*0.0018, d.ScreenSwitching, 1e-12)

	info := hmd.DK2RenderInfo()
	info.Shutter.Type = hmd.ShutterGlobal
	info.Shutter.NoVsyncToScanout = 0.006
	m.Init(info)
	d = m.Delays()
	assert.InDelta(t, 0.000052+0.016580, d.VSyncToScanout, 1e-12)
	assert.InDelta(t, 0.006, d.NoVSyncToScanout, 1e-12)

	m.Init(hmd.RenderInfoForRefresh(90, hmd.ShutterRollingTopToBottom))
	d = m.Delays()
	assert.InDelta(t, defaultVSyncToScanoutDelay, d.VSyncToScanout, 1e-12)
	assert.Zero(t, d.ScreenSwitching)
}

func TestBeginFrame_NominalNinetyHertz(t *testing.T) {
	m, clk := newTestManager(t, hmd.RenderInfoForRefresh(90, hmd.ShutterGlobal))
	m.ResetFrameTiming(0, false, false)

	now := m.BeginFrame(0)
	assert.Equal(t, clk.Now(), now)

	tm := m.CurrentTiming()
	assert.InDelta(t, hz90, tm.Inputs.FrameDelta, 1e-9)
	assert.InDelta(t, m.Delays().ScreenSwitching+m.Delays().VSyncToScanout, tm.Inputs.ScreenDelay, 1e-12)
	assert.Zero(t, tm.Inputs.TimewarpWaitDelta)
	assert.InDelta(t, hz90, tm.NextFrameTime-tm.ThisFrameTime, 1e-9)
	assert.Equal(t, tm, m.GetFrameTiming(0))
}

func TestBeginFrame_AlignsToPreviousEnd(t *testing.T) {
	m, clk := newTestManager(t, hmd.RenderInfoForRefresh(90, hmd.ShutterGlobal))
	m.ResetFrameTiming(0, false, false)

	m.BeginFrame(0)
	clk.Advance(hz90)
	m.EndFrame()
	end := clk.Now()

	clk.Advance(0.0005)
	m.BeginFrame(1)
	assert.Equal(t, end, m.CurrentTiming().ThisFrameTime)

	// A long stall re-anchors on the current time.
	clk.Advance(hz90)
	m.EndFrame()
	clk.Advance(0.5)
	now := m.BeginFrame(2)
	assert.Equal(t, now, m.CurrentTiming().ThisFrameTime)
}

func TestBeginFrame_MeasuredCadence(t *testing.T) {
	m, clk := newTestManager(t, hmd.RenderInfoForRefresh(90, hmd.ShutterGlobal))
	m.ResetFrameTiming(0, false, false)

	const actual = 0.0115
	for i := uint32(0); i < 3; i++ {
		m.BeginFrame(i)
		clk.Advance(actual)
		m.EndFrame()
	}
	m.BeginFrame(3)
	assert.InDelta(t, hz90, m.CurrentTiming().Inputs.FrameDelta, 1e-12, "fewer than 4 samples keeps nominal")

	clk.Advance(actual)
	m.EndFrame()
	m.BeginFrame(4)
	assert.InDelta(t, actual, m.CurrentTiming().Inputs.FrameDelta, 1e-9)

	// Frames missing vsync are clamped to just over nominal.
	for i := uint32(5); i < 5+timedelta.Capacity; i++ {
		clk.Advance(2 * hz90)
		m.EndFrame()
		m.BeginFrame(i)
	}
	assert.InDelta(t, hz90+maxFrameDeltaOverNominal, m.CurrentTiming().Inputs.FrameDelta, 1e-9)
}

func TestBeginFrame_NoVsync(t *testing.T) {
	m, clk := newTestManager(t, hmd.DK2RenderInfo(), WithVsync(false), WithTimewarpLead(0.004))
	m.ResetFrameTiming(0, true, false)
	require.False(t, m.Vsync())

	m.BeginFrame(0)
	d := m.Delays()
	tm := m.CurrentTiming()
	assert.InDelta(t, 1.0/75.0, tm.Inputs.FrameDelta, 1e-12)
	assert.InDelta(t, d.ScreenSwitching+d.NoVSyncToScanout, tm.Inputs.ScreenDelay, 1e-12)
	assert.Zero(t, tm.Inputs.TimewarpWaitDelta)

	clk.Advance(0.002)
	want := clk.Now() + d.ScreenSwitching + d.NoVSyncToScanout
	assert.InDelta(t, want, m.GetEyePredictionTime(hmd.EyeLeft), 1e-12)
	start, end := m.GetTimewarpPredictions(hmd.EyeRight)
	assert.InDelta(t, want, start, 1e-12)
	assert.Equal(t, start, end)

	m.SetVsync(true)
	m.BeginFrame(1)
	tm = m.CurrentTiming()
	assert.InDelta(t, -0.004, tm.Inputs.TimewarpWaitDelta, 1e-12)
	assert.Equal(t, tm.EyeRenderTimes[hmd.EyeRight], m.GetEyePredictionTime(hmd.EyeRight))
}

func TestDistortionMeasurement(t *testing.T) {
	m, clk := newTestManager(t, hmd.DK2RenderInfo())
	m.ResetFrameTiming(0, true, true)
	require.True(t, m.NeedDistortionTimeMeasurement())

	const distortion = 0.003
	for i := uint32(0); i < timedelta.Capacity; i++ {
		m.BeginFrame(i)
		assert.Zero(t, m.CurrentTiming().Inputs.TimewarpWaitDelta)
		clk.Advance(0.005)
		m.BeginDistortion()
		clk.Advance(distortion)
		m.EndFrame()
	}
	assert.False(t, m.NeedDistortionTimeMeasurement())

	m.BeginFrame(timedelta.Capacity)
	tm := m.CurrentTiming()
	assert.InDelta(t, -(distortion + distortionSafetyMargin), tm.Inputs.TimewarpWaitDelta, 1e-9)
	assert.InDelta(t, tm.NextFrameTime-distortion-distortionSafetyMargin, tm.TimewarpPointTime, 1e-9)

	// Without dynamic prediction nothing is measured.
	m.ResetFrameTiming(0, false, true)
	assert.False(t, m.NeedDistortionTimeMeasurement())
	m.BeginFrame(0)
	assert.Zero(t, m.CurrentTiming().Inputs.TimewarpWaitDelta)
}

func TestGetFrameTiming_Extrapolates(t *testing.T) {
	m, _ := newTestManager(t, hmd.RenderInfoForRefresh(90, hmd.ShutterRollingLeftToRight))
	assert.Equal(t, NewTiming(), m.GetFrameTiming(3), "nothing published yet")

	m.ResetFrameTiming(5, false, false)
	m.BeginFrame(5)
	base := m.CurrentTiming()

	assert.Equal(t, base, m.GetFrameTiming(5))
	assert.Equal(t, base, m.GetFrameTiming(2))

	ahead := m.GetFrameTiming(7)
	assert.Equal(t, uint32(7), ahead.FrameIndex)
	assert.InDelta(t, base.ThisFrameTime+2*hz90, ahead.ThisFrameTime, 1e-9)
	assert.InDelta(t, base.EyeRenderTimes[hmd.EyeLeft]+2*hz90, ahead.EyeRenderTimes[hmd.EyeLeft], 1e-9)
	assert.Equal(t, base.Inputs, ahead.Inputs)

	far := m.GetFrameTiming(500)
	assert.Equal(t, uint32(5+MaxFrameExtrapolation), far.FrameIndex)
	assert.InDelta(t, base.ThisFrameTime+MaxFrameExtrapolation*hz90, far.ThisFrameTime, 1e-9)
}

func TestPosesAndTimewarpMatrices(t *testing.T) {
	m, clk := newTestManager(t, hmd.DK2RenderInfo())
	m.ResetFrameTiming(0, false, false)
	m.BeginFrame(0)
	h := &fakeHMD{clk: clk}

	tm := m.CurrentTiming()
	pose := m.GetEyePredictionPose(h, hmd.EyeLeft)
	assert.Equal(t, float32(tm.EyeRenderTimes[hmd.EyeLeft]), pose.Position.X)

	start, end := m.GetTimewarpPredictions(hmd.EyeLeft)
	assert.Equal(t, tm.TimewarpStartEndTimes[hmd.EyeLeft][0], start)
	assert.Equal(t, tm.TimewarpStartEndTimes[hmd.EyeLeft][1], end)

	mats := m.GetTimewarpMatrices(h, hmd.EyeLeft, pose)
	assert.Equal(t, float32(start), mats[0].M[0][3])
	assert.Equal(t, float32(end), mats[1].M[0][3])
	assert.Equal(t, []float64{tm.EyeRenderTimes[hmd.EyeLeft], start, end}, h.queries)
}

// runTaggedFrames drives n frames of the full latency protocol against a
// display that scans out delay seconds after EndFrame.
func runTaggedFrames(t *testing.T, m *FrameTimeManager, clk *clock.Manual, first uint32, n int, delay float64) {
	t.Helper()
	h := &fakeHMD{clk: clk}
	var readback latency.FrameTimeRecordSet
	type pending struct {
		color   latency.DrawColor
		scanout float64
	}
	var inflight []pending

	for i := 0; i < n; i++ {
		frame := first + uint32(i)
		m.BeginFrame(frame)
		color := m.GetFrameLatencyTestDrawColor()
		clk.Advance(0.004)
		m.GetEyePredictionPose(h, hmd.EyeLeft)
		m.GetEyePredictionPose(h, hmd.EyeRight)
		clk.Advance(0.004)
		m.GetTimewarpMatrices(h, hmd.EyeLeft, hmd.Posef{})
		clk.Advance(hz90 - 0.008)
		m.EndFrame()
		end := clk.Now()

		inflight = append(inflight, pending{color, end + delay})
		for len(inflight) > 0 && inflight[0].scanout <= end {
			readback.AddValue(inflight[0].color, inflight[0].scanout)
			inflight = inflight[1:]
		}
		m.UpdateFrameLatencyTrackingAfterEndFrame(color, &readback)
	}
}

func TestLatencyFeedback_DynamicPrediction(t *testing.T) {
	const delay = 0.02
	m, clk := newTestManager(t, hmd.RenderInfoForRefresh(90, hmd.ShutterGlobal), WithLatencyTracking(true))
	m.ResetFrameTiming(0, true, false)

	runTaggedFrames(t, m, clk, 0, 40, delay)
	st := m.LatencyStats()
	require.Equal(t, latency.StateMatching, st.State)
	require.GreaterOrEqual(t, st.Samples, minStatSamples)

	lt := m.GetLatencyTimings()
	assert.InDelta(t, delay, lt.Screen, 1e-9)
	assert.InDelta(t, delay+hz90-0.004, lt.Render, 1e-9)
	assert.InDelta(t, delay+hz90-0.008, lt.Timewarp, 1e-9)

	m.BeginFrame(40)
	assert.InDelta(t, m.Delays().ScreenSwitching+delay, m.CurrentTiming().Inputs.ScreenDelay, 1e-9)
	assert.Equal(t, lt, m.LatestLatency())
}

func TestLatencyFeedback_StaticWithoutDynamicPrediction(t *testing.T) {
	m, clk := newTestManager(t, hmd.RenderInfoForRefresh(90, hmd.ShutterGlobal), WithLatencyTracking(true))
	m.ResetFrameTiming(0, false, false)

	runTaggedFrames(t, m, clk, 0, 40, 0.02)
	require.NotZero(t, m.GetLatencyTimings().Screen)

	m.BeginFrame(40)
	assert.InDelta(t, m.Delays().VSyncToScanout, m.CurrentTiming().Inputs.ScreenDelay, 1e-12)
}

func TestLatencyTracking_DisabledPaintsBaseline(t *testing.T) {
	m, clk := newTestManager(t, hmd.RenderInfoForRefresh(90, hmd.ShutterGlobal))
	m.ResetFrameTiming(0, true, false)
	runTaggedFrames(t, m, clk, 0, 20, 0.02)
	assert.Equal(t, latency.StateDisabled, m.LatencyStats().State)
	assert.Equal(t, latency.LatencyTimings{}, m.GetLatencyTimings())

	m.SetLatencyTracking(true)
	assert.Equal(t, latency.StateWaitingForZero, m.LatencyStats().State)
}

func TestResetFrameTiming_DropsStatistics(t *testing.T) {
	m, clk := newTestManager(t, hmd.RenderInfoForRefresh(90, hmd.ShutterGlobal), WithLatencyTracking(true))
	m.ResetFrameTiming(0, true, false)
	runTaggedFrames(t, m, clk, 0, 30, 0.02)
	require.NotZero(t, m.GetLatencyTimings().Screen)

	m.ResetFrameTiming(100, true, true)
	assert.Equal(t, latency.LatencyTimings{}, m.GetLatencyTimings())
	assert.Equal(t, latency.StateWaitingForZero, m.LatencyStats().State)
	assert.True(t, m.NeedDistortionTimeMeasurement())

	tm := m.GetFrameTiming(100)
	assert.Equal(t, uint32(100), tm.FrameIndex)
	assert.InDelta(t, hz90, tm.Inputs.FrameDelta, 1e-9)
	assert.InDelta(t, m.Delays().VSyncToScanout, tm.Inputs.ScreenDelay, 1e-12)
}

func TestGetFrameTiming_ConcurrentReadersSeeWholeSnapshots(t *testing.T) {
	clk := clock.NewManual(1)
	m := NewFrameTimeManager(clk, discardLogger, WithTimewarpLead(0.003))
	m.Init(hmd.RenderInfoForRefresh(90, hmd.ShutterRollingLeftToRight))
	m.ResetFrameTiming(0, false, false)

	const frames = 20000
	var done atomic.Bool
	var wg sync.WaitGroup
	errs := make(chan string, 4)

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !done.Load() {
				tm := m.GetFrameTiming(0)
				// Every publish starts one second after the previous one and
				// stamps its frame index, so all fields must agree.
				want := 1 + float64(tm.FrameIndex)
				if tm.ThisFrameTime != want ||
					tm.NextFrameTime != want+tm.Inputs.FrameDelta ||
					tm.TimewarpPointTime != tm.NextFrameTime+tm.Inputs.TimewarpWaitDelta ||
					tm.EyeRenderTimes[hmd.EyeLeft] >= tm.EyeRenderTimes[hmd.EyeRight] ||
					tm.TimewarpStartEndTimes[hmd.EyeLeft][1] != tm.TimewarpStartEndTimes[hmd.EyeRight][0] {
					select {
					case errs <- "torn snapshot":
					default:
					}
					return
				}
			}
		}()
	}

	for i := uint32(0); i < frames; i++ {
		clk.Set(1 + float64(i))
		m.BeginFrame(i)
	}
	done.Store(true)
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Fatal(e)
	}
	assert.Equal(t, uint32(frames-1), m.GetFrameTiming(0).FrameIndex)
}
