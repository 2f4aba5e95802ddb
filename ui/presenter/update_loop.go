package presenter

import "time"

// Loop drives periodic updates: it runs the frame step, ticks the
// presenters and invokes a scheduler callback. The zero value is usable
// (methods are nil-safe).
type Loop struct {
	Frame    func() error
	Latency  *LatencyPresenter
	Schedule func()
	OnError  func(error)

	presentEvery int
	ticks        int
}

// NewLoop returns a loop that runs frame on every tick and refreshes the
// presenters every presentEvery ticks.
func NewLoop(frame func() error, lat *LatencyPresenter, presentEvery int, schedule func()) *Loop {
	if presentEvery <= 0 {
		presentEvery = 1
	}
	return &Loop{Frame: frame, Latency: lat, Schedule: schedule, presentEvery: presentEvery}
}

func (l *Loop) Tick() {
	if l == nil {
		return
	}
	if l.Frame != nil {
		if err := l.Frame(); err != nil {
			if l.OnError != nil {
				l.OnError(err)
			}
			return
		}
	}
	l.ticks++
	if l.Latency != nil && (l.presentEvery <= 1 || l.ticks%l.presentEvery == 0) {
		l.Latency.Tick(time.Now())
	}
	if l.Schedule != nil {
		l.Schedule()
	}
}
