package app

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/soocke/framepace/config"
	"github.com/soocke/framepace/debug"
	"github.com/soocke/framepace/domain/clock"
	"github.com/soocke/framepace/domain/simulate"
)

// SimulationOptions selects how a headless session runs.
type SimulationOptions struct {
	// Realtime paces frames on the wall clock. Otherwise a virtual vsync
	// steps a manual clock and the whole run completes immediately.
	Realtime bool
	// Seed drives the simulated scanout jitter.
	Seed int64
}

// RunSimulation runs cfg.SimFrames frames (until ctx is done when zero)
// against a simulated display and headset. Alongside the session it logs
// the published schedule every cfg.LogInterval and, with cfg.Debug, the
// process resource usage.
func RunSimulation(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts SimulationOptions) (*Session, error) {
	var (
		clk   clock.Clock
		pacer Pacer
	)
	if opts.Realtime {
		clk = clock.Monotonic()
		pacer = NewVsyncTicker(cfg.RefreshHz)
	} else {
		manual := clock.NewManual(1)
		clk = manual
		pacer = NewVirtualVsync(manual, cfg.RefreshHz)
	}

	display := simulate.NewDisplay(clk, cfg.SimScanoutMs/1000, cfg.SimJitterMs/1000, opts.Seed)
	headset := simulate.NewHeadset(clk, cfg.SimYawRate)
	s := NewSession(cfg, clk, pacer, headset, display, logger)

	g, gctx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(gctx)
	defer stop()

	g.Go(func() error {
		defer stop()
		return s.Run(runCtx, cfg.SimFrames)
	})
	g.Go(func() error {
		return debug.RunTimingLogger(runCtx, cfg.LogInterval(), s.Manager(), logger)
	})
	if cfg.Debug {
		g.Go(func() error {
			return debug.RunRuntimeLogger(runCtx, cfg.LogInterval(), logger)
		})
	}
	if err := g.Wait(); err != nil {
		return s, err
	}
	return s, nil
}
