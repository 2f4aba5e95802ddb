package debug

import (
	"context"
	"log/slog"
	"time"

	"github.com/soocke/framepace/domain/frametime"
	"github.com/soocke/framepace/domain/latency"
)

// TimingSource is the cross-goroutine read side of a frame time manager.
type TimingSource interface {
	GetFrameTiming(frameIndex uint32) frametime.Timing
	LatestLatency() latency.LatencyTimings
}

// RunTimingLogger logs the published frame schedule every interval until ctx
// is done. It only uses the lock-free readers, so it never stalls the render
// loop.
func RunTimingLogger(ctx context.Context, interval time.Duration, src TimingSource, logger *slog.Logger) error {
	if interval <= 0 {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	var lastFrame uint32
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
		tm := src.GetFrameTiming(0)
		lt := src.LatestLatency()
		logger.Info("frame-timing",
			slog.Uint64("frame", uint64(tm.FrameIndex)),
			slog.Uint64("frames_since_last", uint64(tm.FrameIndex-lastFrame)),
			slog.Float64("frame_delta_ms", tm.Inputs.FrameDelta*1000),
			slog.Float64("screen_delay_ms", tm.Inputs.ScreenDelay*1000),
			slog.Float64("timewarp_wait_ms", tm.Inputs.TimewarpWaitDelta*1000),
			slog.Float64("render_latency_ms", lt.Render*1000),
			slog.Float64("timewarp_latency_ms", lt.Timewarp*1000),
			slog.Float64("screen_latency_ms", lt.Screen*1000),
		)
		lastFrame = tm.FrameIndex
	}
}
