package app

import (
	"log/slog"

	"github.com/soocke/framepace/config"
	"github.com/soocke/framepace/domain/clock"
	"github.com/soocke/framepace/domain/latency"
	"github.com/soocke/framepace/domain/readback"
	"github.com/soocke/framepace/domain/simulate"
)

// Container assembles the services behind the on-screen HUD: a session on
// the monotonic clock, the readback tester polling the tag patch and the
// sink tying them together. The HUD supplies the painter.
type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	Clock   clock.Clock
	Tester  *readback.Tester
	Headset *simulate.Headset
	Sink    *PatchSink
	Session *Session
}

// BuildContainer constructs all components. A nil grabber reads the real
// screen. No goroutines are started.
func BuildContainer(cfg *config.Config, logger *slog.Logger, grabber readback.Grabber) *Container {
	c := &Container{Config: cfg, Logger: logger, Clock: clock.Monotonic()}
	c.Tester = readback.NewTester(grabber, c.Clock, logger, readback.Options{
		Rect:         cfg.ReadbackRect(),
		PollInterval: cfg.PollInterval(),
	})
	c.Headset = simulate.NewHeadset(c.Clock, cfg.SimYawRate)
	c.Sink = NewPatchSink(nil, c.Tester)
	// The Tk event loop paces frames, so the session gets no pacer.
	c.Session = NewSession(cfg, c.Clock, nil, c.Headset, c.Sink, logger)
	return c
}

// PatchSink presents frames by painting the tag patch and reads records back
// from a RecordSource.
type PatchSink struct {
	Paint  func(latency.DrawColor)
	source readback.RecordSource
}

func NewPatchSink(paint func(latency.DrawColor), source readback.RecordSource) *PatchSink {
	return &PatchSink{Paint: paint, source: source}
}

func (s *PatchSink) Present(color latency.DrawColor, _ float64) {
	if s.Paint != nil {
		s.Paint(color)
	}
}

// Readback returns nil until the tester has read back its first record.
func (s *PatchSink) Readback() *latency.FrameTimeRecordSet {
	if s.source == nil {
		return nil
	}
	set, ok := s.source.LatestRecords()
	if !ok {
		return nil
	}
	return &set
}
