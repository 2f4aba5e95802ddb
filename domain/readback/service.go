// Package readback is a software latency tester: it polls the tag patch on
// screen and reports {readback index, time} records whenever the painted
// color changes.
package readback

import (
	"context"
	"image"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/soocke/framepace/domain/clock"
	"github.com/soocke/framepace/domain/latency"
)

const statsLogInterval = 5 * time.Second

const (
	defaultPollInterval   = time.Millisecond
	defaultBaselineRepeat = 11 * time.Millisecond
)

// Options configures a Tester.
type Options struct {
	// Rect is the screen rectangle the tag patch is painted into.
	Rect image.Rectangle
	// PollInterval is the delay between captures.
	PollInterval time.Duration
	// BaselineRepeat re-records an unchanged baseline color after this long,
	// so a full batch of baseline records can form.
	BaselineRepeat time.Duration
}

// Tester polls a screen rectangle and keeps the last latency.RecordCount
// readbacks. Use NewTester to construct one.
type Tester struct {
	running atomic.Bool
	latest  atomic.Pointer[Snapshot]

	grabber Grabber
	clock   clock.Clock
	logger  *slog.Logger
	opts    Options

	polls     atomic.Uint64
	records   atomic.Uint64
	skipped   atomic.Uint64
	undecoded atomic.Uint64
	grabNanos atomic.Uint64
	sequence  atomic.Uint64

	// Owned by the polling goroutine.
	set          latency.FrameTimeRecordSet
	last         latency.DrawColor
	haveLast     bool
	lastRecordAt float64
}

// NewTester returns a tester reading opts.Rect through g. Timestamps come
// from clk, which must be the clock the frame timing runs on.
func NewTester(g Grabber, clk clock.Clock, logger *slog.Logger, opts Options) *Tester {
	if g == nil {
		g = ScreenGrabber{}
	}
	if clk == nil {
		clk = clock.Monotonic()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.BaselineRepeat <= 0 {
		opts.BaselineRepeat = defaultBaselineRepeat
	}
	return &Tester{grabber: g, clock: clk, logger: logger, opts: opts}
}

// LatestRecords returns a copy of the newest record batch.
func (t *Tester) LatestRecords() (latency.FrameTimeRecordSet, bool) {
	snap := t.latest.Load()
	if snap == nil {
		return latency.FrameTimeRecordSet{}, false
	}
	return snap.Records, true
}

// LatestSnapshot returns the newest batch with its metadata.
func (t *Tester) LatestSnapshot() Snapshot {
	snap := t.latest.Load()
	if snap == nil {
		return Snapshot{}
	}
	return *snap
}

func (t *Tester) Running() bool { return t.running.Load() }

func (t *Tester) Stats() Stats {
	polls := t.polls.Load()
	total := t.grabNanos.Load()
	var avg time.Duration
	avgMicros := 0.0
	if polls > 0 && total > 0 {
		avg = time.Duration(total / polls)
		avgMicros = float64(avg) / float64(time.Microsecond)
	}
	snapshot := t.LatestSnapshot()
	age := time.Duration(0)
	if !snapshot.CapturedAt.IsZero() {
		age = time.Since(snapshot.CapturedAt)
	}
	return Stats{
		Polls:         polls,
		Records:       t.records.Load(),
		Skipped:       t.skipped.Load(),
		Undecoded:     t.undecoded.Load(),
		AvgGrab:       avg,
		AvgGrabMicros: avgMicros,
		LastRecord:    snapshot.CapturedAt,
		LatestAge:     age,
		Sequence:      snapshot.Sequence,
	}
}

// Run polls until ctx is done. Only one Run may be active at a time.
func (t *Tester) Run(ctx context.Context) error {
	if !t.running.CompareAndSwap(false, true) {
		return nil
	}
	defer t.running.Store(false)

	if t.logger != nil {
		t.logger.Info("readback started", "rect", t.opts.Rect.String(), "poll", t.opts.PollInterval)
	}
	logTicker := time.NewTicker(statsLogInterval)
	defer logTicker.Stop()
	pollTicker := time.NewTicker(t.opts.PollInterval)
	defer pollTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logStats()
			return nil
		case <-logTicker.C:
			t.logStats()
		case <-pollTicker.C:
			t.poll()
		}
	}
}

// poll captures the patch once and reports whether a record was added.
func (t *Tester) poll() bool {
	start := time.Now()
	img, err := t.grabber.Grab(t.opts.Rect)
	if err != nil || img == nil {
		t.skipped.Add(1)
		if err != nil && t.logger != nil {
			t.logger.Debug("readback capture", "error", err)
		}
		return false
	}
	t.grabNanos.Add(uint64(time.Since(start).Nanoseconds()))
	t.polls.Add(1)

	color, ok := Decode(img)
	if !ok {
		t.undecoded.Add(1)
		return false
	}

	now := t.clock.Now()
	if t.haveLast && color == t.last {
		if color != latency.DrawColorBaseline || now-t.lastRecordAt < clock.Seconds(t.opts.BaselineRepeat) {
			return false
		}
	}
	t.set.AddValue(color, now)
	t.last = color
	t.haveLast = true
	t.lastRecordAt = now

	t.records.Add(1)
	seq := t.sequence.Add(1)
	t.latest.Store(&Snapshot{Records: t.set, CapturedAt: time.Now(), Sequence: seq})
	return true
}

func (t *Tester) logStats() {
	if t.logger == nil {
		return
	}
	stats := t.Stats()
	t.logger.Debug("readback.stats",
		"polls", stats.Polls,
		"records", stats.Records,
		"skipped", stats.Skipped,
		"undecoded", stats.Undecoded,
		"avg_grab", stats.AvgGrab,
		"age", stats.LatestAge,
	)
}
