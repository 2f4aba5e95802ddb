package app

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/soocke/framepace/config"
	"github.com/soocke/framepace/domain/clock"
	"github.com/soocke/framepace/domain/frametime"
	"github.com/soocke/framepace/domain/hmd"
	"github.com/soocke/framepace/domain/latency"
)

// FrameSink is where a finished frame goes: it shows the frame's tag color
// and reports what the latency tester has read back so far.
type FrameSink interface {
	Present(color latency.DrawColor, endFrame float64)
	Readback() *latency.FrameTimeRecordSet
}

// Session drives one rendering session: per frame it begins timing, renders
// both eyes with predicted poses, time-warps, presents and feeds the latency
// tester's readbacks back into the manager.
type Session struct {
	ID string

	logger  *slog.Logger
	clock   clock.Clock
	pacer   Pacer
	manager *frametime.FrameTimeManager
	headset hmd.HMD
	sink    FrameSink
	sdk     bool

	frame uint32
	last  FrameResult
}

// FrameResult is what one frame produced.
type FrameResult struct {
	Frame       uint32
	Color       latency.DrawColor
	BeginTime   float64
	EndTime     float64
	EyePoses    [hmd.EyeCount]hmd.Posef
	Timewarp    [hmd.EyeCount][2]hmd.Matrix4f
	PredictedAt [hmd.EyeCount]float64
}

// NewSession builds the manager for cfg and resets its timing. A nil pacer
// presents without waiting (the caller paces frames).
func NewSession(cfg *config.Config, clk clock.Clock, pacer Pacer, headset hmd.HMD, sink FrameSink, logger *slog.Logger) *Session {
	if clk == nil {
		clk = clock.Monotonic()
	}
	id := uuid.NewString()
	if logger != nil {
		logger = logger.With("session", id)
	}
	m := frametime.NewFrameTimeManager(clk, logger,
		frametime.WithVsync(cfg.Vsync),
		frametime.WithTimewarpLead(cfg.TimewarpLead()),
		frametime.WithLatencyTracking(cfg.LatencyTester),
	)
	m.Init(cfg.RenderInfo())
	m.ResetFrameTiming(0, cfg.DynamicPrediction, cfg.SDKRender)
	return &Session{
		ID:      id,
		logger:  logger,
		clock:   clk,
		pacer:   pacer,
		manager: m,
		headset: headset,
		sink:    sink,
		sdk:     cfg.SDKRender,
	}
}

// Manager exposes the session's frame time manager.
func (s *Session) Manager() *frametime.FrameTimeManager { return s.manager }

// Frames returns how many frames have completed.
func (s *Session) Frames() uint32 { return s.frame }

// Last returns the result of the most recent frame.
func (s *Session) Last() FrameResult { return s.last }

// Frame runs one frame.
func (s *Session) Frame(ctx context.Context) error {
	m := s.manager
	idx := s.frame
	r := FrameResult{Frame: idx}

	r.BeginTime = m.BeginFrame(idx)
	r.Color = m.GetFrameLatencyTestDrawColor()

	for eye := hmd.EyeLeft; eye < hmd.EyeCount; eye++ {
		r.PredictedAt[eye] = m.GetEyePredictionTime(eye)
		r.EyePoses[eye] = m.GetEyePredictionPose(s.headset, eye)
	}
	if s.sdk {
		m.BeginDistortion()
	}
	for eye := hmd.EyeLeft; eye < hmd.EyeCount; eye++ {
		r.Timewarp[eye] = m.GetTimewarpMatrices(s.headset, eye, r.EyePoses[eye])
	}

	if s.pacer != nil {
		if err := s.pacer.Wait(ctx); err != nil {
			return err
		}
	}
	m.EndFrame()
	r.EndTime = s.clock.Now()

	if s.sink != nil {
		s.sink.Present(r.Color, r.EndTime)
		m.UpdateFrameLatencyTrackingAfterEndFrame(r.Color, s.sink.Readback())
	}

	s.last = r
	s.frame++
	return nil
}

// Run runs frames until n have completed (n <= 0 runs until ctx is done).
func (s *Session) Run(ctx context.Context, n int) error {
	if s.logger != nil {
		s.logger.Info("session started", "frames", n)
	}
	for n <= 0 || int(s.frame) < n {
		if err := ctx.Err(); err != nil {
			break
		}
		if err := s.Frame(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			return err
		}
	}
	s.logSummary()
	return nil
}

func (s *Session) logSummary() {
	if s.logger == nil {
		return
	}
	st := s.manager.LatencyStats()
	lt := s.manager.GetLatencyTimings()
	tm := s.manager.CurrentTiming()
	s.logger.Info("session stopped",
		"frames", s.frame,
		"tracker_state", st.State.String(),
		"tagged", st.Attempts,
		"matched", st.Matches,
		"resyncs", st.Resyncs,
		"frame_delta_ms", tm.Inputs.FrameDelta*1000,
		"screen_delay_ms", tm.Inputs.ScreenDelay*1000,
		"render_latency_ms", lt.Render*1000,
		"timewarp_latency_ms", lt.Timewarp*1000,
		"screen_latency_ms", lt.Screen*1000,
	)
}
