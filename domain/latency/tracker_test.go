package latency

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soocke/framepace/domain/clock"
)

var discardLogger = slog.New(slog.DiscardHandler)

// newMatchingTracker returns a tracker that has already seen its baseline.
func newMatchingTracker(t *testing.T) (*FrameLatencyTracker, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(100)
	tr := NewFrameLatencyTracker(clk, discardLogger)
	require.Equal(t, StateWaitingForZero, tr.State())
	tr.MatchRecord(&FrameTimeRecordSet{})
	require.Equal(t, StateMatching, tr.State())
	return tr, clk
}

// batch builds a record set whose oldest-first order is recs.
func batch(recs ...FrameTimeRecord) *FrameTimeRecordSet {
	var s FrameTimeRecordSet
	for i := len(recs); i < RecordCount; i++ {
		s.AddValue(DrawColorBaseline, 0)
	}
	for _, r := range recs {
		s.AddValue(r.ReadbackIndex, r.TimeSeconds)
	}
	return &s
}

func TestTracker_DisabledPaintsBaselineAndSavesNothing(t *testing.T) {
	tr := NewFrameLatencyTracker(clock.NewManual(0), discardLogger)
	tr.SetEnabled(false)
	assert.Equal(t, StateDisabled, tr.State())

	for i := 0; i < 10; i++ {
		assert.Equal(t, DrawColorBaseline, tr.NextDrawColor())
	}
	tr.SaveDrawColor(1, 1.0, 0.99, 0.995)
	tr.MatchRecord(&FrameTimeRecordSet{})
	assert.Equal(t, StateDisabled, tr.State())
	assert.Equal(t, uint64(0), tr.Stats().Attempts)

	tr.SetEnabled(true)
	assert.Equal(t, StateWaitingForZero, tr.State())
}

func TestTracker_WaitsForAllZeroBatch(t *testing.T) {
	tr := NewFrameLatencyTracker(clock.NewManual(0), discardLogger)
	assert.Equal(t, DrawColorBaseline, tr.NextDrawColor())

	tr.MatchRecord(batch(FrameTimeRecord{ReadbackIndex: 3, TimeSeconds: 1}))
	assert.Equal(t, StateWaitingForZero, tr.State())
	assert.Equal(t, DrawColorBaseline, tr.NextDrawColor())

	tr.MatchRecord(nil)
	assert.Equal(t, StateWaitingForZero, tr.State())

	tr.MatchRecord(batch())
	assert.Equal(t, StateMatching, tr.State())
}

func TestTracker_TagRotationNeverCollidesWithBaseline(t *testing.T) {
	tr, _ := newMatchingTracker(t)

	var seq []DrawColor
	for i := 0; i < 3*FramesTracked; i++ {
		c := tr.NextDrawColor()
		require.NotEqual(t, DrawColorBaseline, c)
		seq = append(seq, c)
	}
	seen := map[DrawColor]bool{}
	for _, c := range seq[:FramesTracked] {
		seen[c] = true
	}
	assert.Len(t, seen, FramesTracked)
	for i := FramesTracked; i < len(seq); i++ {
		assert.Equal(t, seq[i-FramesTracked], seq[i])
	}
}

func TestTracker_MatchFeedsDeltaExactlyOnce(t *testing.T) {
	tr, clk := newMatchingTracker(t)

	c := tr.NextDrawColor()
	tr.SaveDrawColor(c, 1.000, 0.990, 0.998)
	rec, ok := tr.Record(c)
	require.True(t, ok)
	assert.False(t, rec.MatchedRecord)

	clk.Set(1.5)
	set := batch(FrameTimeRecord{ReadbackIndex: c, TimeSeconds: 1.030})
	tr.MatchRecord(set)

	rec, _ = tr.Record(c)
	assert.True(t, rec.MatchedRecord)
	delay, n := tr.ScreenDelay()
	assert.Equal(t, 1, n)
	assert.InDelta(t, 0.030, delay, 1e-9)

	lt := tr.LatencyTimings()
	assert.InDelta(t, 0.040, lt.Render, 1e-9)
	assert.InDelta(t, 0.032, lt.Timewarp, 1e-9)
	assert.InDelta(t, 0.030, lt.Screen, 1e-9)
	assert.Equal(t, 1.5, tr.Stats().LatencyRecordTime)

	tr.MatchRecord(set)
	_, n = tr.ScreenDelay()
	assert.Equal(t, 1, n)
	assert.Equal(t, uint64(1), tr.Stats().Matches)
}

func TestTracker_MatchesConsecutiveRun(t *testing.T) {
	tr, _ := newMatchingTracker(t)

	var recs []FrameTimeRecord
	for i := 0; i < 3; i++ {
		c := tr.NextDrawColor()
		end := 1.0 + float64(i)*0.011
		tr.SaveDrawColor(c, end, end-0.008, end-0.002)
		recs = append(recs, FrameTimeRecord{ReadbackIndex: c, TimeSeconds: end + 0.020})
	}
	tr.MatchRecord(batch(recs...))

	for _, r := range recs {
		saved, _ := tr.Record(r.ReadbackIndex)
		assert.True(t, saved.MatchedRecord)
	}
	st := tr.Stats()
	assert.Equal(t, uint64(3), st.Attempts)
	assert.Equal(t, uint64(3), st.Matches)
	assert.Equal(t, 3, st.Samples)

	lt := tr.LatencyTimings()
	assert.InDelta(t, 0.028, lt.Render, 1e-9)
	assert.InDelta(t, 0.022, lt.Timewarp, 1e-9)
	assert.InDelta(t, 0.020, lt.Screen, 1e-9)
}

func TestTracker_LoneColorFollowedByMismatchIsRejected(t *testing.T) {
	tr, _ := newMatchingTracker(t)

	c1 := tr.NextDrawColor()
	tr.SaveDrawColor(c1, 1.000, 0.99, 0)
	c2 := tr.NextDrawColor()
	tr.SaveDrawColor(c2, 1.011, 1.00, 0)

	// c1 shows up, but the readback after it is not c2.
	stray := DrawColor(5)
	require.NotEqual(t, c2, stray)
	tr.MatchRecord(batch(
		FrameTimeRecord{ReadbackIndex: c1, TimeSeconds: 1.03},
		FrameTimeRecord{ReadbackIndex: stray, TimeSeconds: 1.04},
	))
	rec, _ := tr.Record(c1)
	assert.False(t, rec.MatchedRecord)
	_, n := tr.ScreenDelay()
	assert.Equal(t, 0, n)
}

func TestTracker_StaleReadbackFromEarlierLapIsSkipped(t *testing.T) {
	tr, _ := newMatchingTracker(t)

	c := tr.NextDrawColor()
	tr.SaveDrawColor(c, 2.0, 1.99, 0)

	tr.MatchRecord(batch(FrameTimeRecord{ReadbackIndex: c, TimeSeconds: 1.5}))
	rec, _ := tr.Record(c)
	assert.False(t, rec.MatchedRecord)

	tr.MatchRecord(batch(FrameTimeRecord{ReadbackIndex: c, TimeSeconds: 2.025}))
	rec, _ = tr.Record(c)
	assert.True(t, rec.MatchedRecord)
	delay, _ := tr.ScreenDelay()
	assert.InDelta(t, 0.025, delay, 1e-9)
}

func TestTracker_NoTimewarpSampleLeavesTimewarpLatencyZero(t *testing.T) {
	tr, _ := newMatchingTracker(t)
	c := tr.NextDrawColor()
	tr.SaveDrawColor(c, 1.0, 0.98, 0)
	tr.MatchRecord(batch(FrameTimeRecord{ReadbackIndex: c, TimeSeconds: 1.02}))

	lt := tr.LatencyTimings()
	assert.InDelta(t, 0.04, lt.Render, 1e-9)
	assert.Equal(t, 0.0, lt.Timewarp)
}

func TestTracker_ResyncAfterStallWithoutMatches(t *testing.T) {
	tr, _ := newMatchingTracker(t)

	end := 1.0
	for i := 0; i < 5; i++ {
		tr.SaveDrawColor(tr.NextDrawColor(), end, end-0.01, 0)
		end += 0.011
	}
	require.Equal(t, StateMatching, tr.State())

	tr.SaveDrawColor(tr.NextDrawColor(), 1.0+ResyncTimeout+0.01, 1.15, 0)
	assert.Equal(t, StateWaitingForZero, tr.State())
	assert.Equal(t, DrawColorBaseline, tr.NextDrawColor())
	st := tr.Stats()
	assert.Equal(t, uint64(1), st.Resyncs)
	assert.Equal(t, 0, st.FrameIndex)
	assert.Equal(t, LatencyTimings{}, tr.LatencyTimings())

	tr.MatchRecord(batch())
	assert.Equal(t, StateMatching, tr.State())
	assert.Equal(t, DrawColor(1), tr.NextDrawColor())
}

func TestTracker_ResyncKeepsLastGoodLatency(t *testing.T) {
	tr, _ := newMatchingTracker(t)

	c := tr.NextDrawColor()
	tr.SaveDrawColor(c, 1.0, 0.99, 0)
	tr.MatchRecord(batch(FrameTimeRecord{ReadbackIndex: c, TimeSeconds: 1.02}))
	before := tr.LatencyTimings()
	require.NotZero(t, before.Render)

	// Readback goes dark.
	tr.SaveDrawColor(tr.NextDrawColor(), 1.05, 1.04, 0)
	tr.SaveDrawColor(tr.NextDrawColor(), 1.0+ResyncTimeout+0.05, 1.19, 0)
	assert.Equal(t, StateWaitingForZero, tr.State())
	assert.Equal(t, before, tr.LatencyTimings())
}

func TestTracker_RepeatedResyncKeepsLastGoodLatency(t *testing.T) {
	tr, _ := newMatchingTracker(t)

	c := tr.NextDrawColor()
	tr.SaveDrawColor(c, 1.0, 0.97, 0.975)
	tr.MatchRecord(batch(FrameTimeRecord{ReadbackIndex: c, TimeSeconds: 1.02}))
	good := tr.LatencyTimings()
	require.InDelta(t, 0.050, good.Render, 1e-9)
	require.InDelta(t, 0.045, good.Timewarp, 1e-9)
	require.InDelta(t, 0.020, good.Screen, 1e-9)

	// First dark run.
	tr.SaveDrawColor(tr.NextDrawColor(), 1.05, 1.04, 0)
	tr.SaveDrawColor(tr.NextDrawColor(), 1.0+ResyncTimeout+0.05, 1.19, 0)
	require.Equal(t, StateWaitingForZero, tr.State())
	assert.Equal(t, good, tr.LatencyTimings())

	// Baseline seen again, then a second dark run that never matches.
	tr.MatchRecord(batch())
	require.Equal(t, StateMatching, tr.State())
	tr.SaveDrawColor(tr.NextDrawColor(), 2.0, 1.99, 0)
	tr.SaveDrawColor(tr.NextDrawColor(), 2.0+ResyncTimeout+0.05, 2.19, 0)
	require.Equal(t, StateWaitingForZero, tr.State())

	assert.Equal(t, good, tr.LatencyTimings())
	assert.Equal(t, uint64(2), tr.Stats().Resyncs)
}

func TestTracker_SaveIgnoredOutsideMatching(t *testing.T) {
	tr := NewFrameLatencyTracker(clock.NewManual(0), nil)
	tr.SaveDrawColor(1, 1.0, 0.9, 0.95)
	_, ok := tr.Record(1)
	assert.False(t, ok)

	tr.MatchRecord(batch())
	tr.SaveDrawColor(DrawColorBaseline, 1.0, 0.9, 0.95)
	assert.Equal(t, uint64(0), tr.Stats().Attempts)
}

func TestTracker_ResetClearsEverything(t *testing.T) {
	tr, _ := newMatchingTracker(t)
	c := tr.NextDrawColor()
	tr.SaveDrawColor(c, 1.0, 0.99, 0.995)
	tr.MatchRecord(batch(FrameTimeRecord{ReadbackIndex: c, TimeSeconds: 1.02}))
	require.NotZero(t, tr.LatencyTimings().Screen)

	tr.Reset()
	assert.Equal(t, StateWaitingForZero, tr.State())
	assert.Equal(t, LatencyTimings{}, tr.LatencyTimings())
	assert.Equal(t, TrackerStats{State: StateWaitingForZero}, tr.Stats())
	_, ok := tr.Record(c)
	assert.False(t, ok)
}

func TestTracker_SteadyStateAcrossManyLaps(t *testing.T) {
	tr, _ := newMatchingTracker(t)

	const (
		interval = 1.0 / 90.0
		delay    = 0.025
	)
	var readback FrameTimeRecordSet
	type pending struct {
		color   DrawColor
		scanout float64
	}
	var inflight []pending

	end := 10.0
	for frame := 0; frame < 100; frame++ {
		c := tr.NextDrawColor()
		tr.SaveDrawColor(c, end, end-0.012, end-0.003)
		inflight = append(inflight, pending{c, end + delay})

		// Deliver everything that has scanned out by now.
		for len(inflight) > 0 && inflight[0].scanout <= end {
			readback.AddValue(inflight[0].color, inflight[0].scanout)
			inflight = inflight[1:]
		}
		tr.MatchRecord(&readback)
		end += interval
	}

	require.Equal(t, StateMatching, tr.State())
	st := tr.Stats()
	assert.Greater(t, st.Matches, uint64(90))
	assert.Equal(t, uint64(0), st.Resyncs)
	lt := tr.LatencyTimings()
	assert.InDelta(t, delay, lt.Screen, 1e-9)
	assert.InDelta(t, delay+0.012, lt.Render, 1e-9)
	assert.InDelta(t, delay+0.003, lt.Timewarp, 1e-9)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "disabled", StateDisabled.String())
	assert.Equal(t, "waiting-for-zero", StateWaitingForZero.String())
	assert.Equal(t, "matching", StateMatching.String())
	assert.Equal(t, "unknown", State(9).String())
}
