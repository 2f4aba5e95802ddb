package presenter

import (
	"fmt"
	"time"

	"github.com/soocke/framepace/domain/frametime"
	"github.com/soocke/framepace/domain/latency"
	"github.com/soocke/framepace/ui/model"
)

// TimingSource is the read side of a frame time manager.
type TimingSource interface {
	GetFrameTiming(frameIndex uint32) frametime.Timing
	LatestLatency() latency.LatencyTimings
	LatencyStats() latency.TrackerStats
}

// LatencyView displays tracker state, latency figures and the schedule.
type LatencyView interface {
	SetState(text string)
	SetLatency(render, timewarp, screen string)
	SetTiming(frame, delta, delay string)
	SetLock(current, total string)
}

// LatencyPresenter formats the published timing and latency to the view.
type LatencyPresenter struct {
	src  TimingSource
	lock *model.LockModel
	view LatencyView

	lastState string
}

// NewLatencyPresenter returns a new LatencyPresenter.
func NewLatencyPresenter(src TimingSource, lock *model.LockModel, view LatencyView) *LatencyPresenter {
	return &LatencyPresenter{src: src, lock: lock, view: view}
}

// Tick pulls the latest values and pushes them to the view. The state label
// is only touched when the state changes.
func (p *LatencyPresenter) Tick(now time.Time) {
	if p == nil || p.src == nil || p.view == nil {
		return
	}
	st := p.src.LatencyStats()
	if s := st.State.String(); s != p.lastState {
		p.lastState = s
		p.view.SetState(s)
	}

	lt := p.src.LatestLatency()
	p.view.SetLatency(model.Millis(lt.Render), model.Millis(lt.Timewarp), model.Millis(lt.Screen))

	tm := p.src.GetFrameTiming(0)
	p.view.SetTiming(
		fmt.Sprintf("%d", tm.FrameIndex),
		model.Millis(tm.Inputs.FrameDelta),
		model.Millis(tm.Inputs.ScreenDelay),
	)

	if p.lock != nil {
		p.lock.OnTick(st.State == latency.StateMatching, now)
		cur, total, locks := p.lock.Values()
		p.view.SetLock(model.Clock(cur), fmt.Sprintf("%s (%d)", model.Clock(total), locks))
	}
}
