package app

import (
	"context"
	"time"

	"github.com/soocke/framepace/domain/clock"
)

// Pacer blocks until the next vertical sync.
type Pacer interface {
	Wait(ctx context.Context) error
}

// vsyncTicker keeps (approx) a fixed refresh rate without accumulating
// drift. If it falls behind by more than one interval it drops the missed
// vsyncs rather than bursting.
type vsyncTicker struct {
	dur  time.Duration
	next time.Time
}

// NewVsyncTicker returns a wall-clock pacer for hz. hz <= 0 never waits.
func NewVsyncTicker(hz float64) Pacer {
	if hz <= 0 {
		return &vsyncTicker{}
	}
	return &vsyncTicker{dur: time.Duration(float64(time.Second) / hz)}
}

func (t *vsyncTicker) Wait(ctx context.Context) error {
	if t.dur <= 0 {
		return ctx.Err()
	}
	now := time.Now()
	if t.next.IsZero() {
		t.next = now.Add(t.dur)
	}
	if sleep := t.next.Sub(now); sleep > 0 {
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	t.next = t.next.Add(t.dur)
	if lag := time.Since(t.next); lag > t.dur {
		t.next = time.Now().Add(t.dur)
	}
	return nil
}

// virtualVsync advances a manual clock to the next multiple of the refresh
// interval, so whole sessions run instantly and deterministically.
type virtualVsync struct {
	clk      *clock.Manual
	interval float64
	next     float64
}

// NewVirtualVsync returns a pacer that moves clk from vsync to vsync.
func NewVirtualVsync(clk *clock.Manual, hz float64) Pacer {
	v := &virtualVsync{clk: clk}
	if hz > 0 {
		v.interval = 1 / hz
	}
	return v
}

func (v *virtualVsync) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := v.clk.Now()
	if v.next == 0 {
		v.next = now
	}
	for v.next <= now {
		v.next += v.interval
		if v.interval <= 0 {
			return nil
		}
	}
	v.clk.Set(v.next)
	return nil
}
