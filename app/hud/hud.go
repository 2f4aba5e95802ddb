// Package hud runs the frame pacing loop inside a Tk window. The window
// paints the latency tag patch over the readback rectangle while the
// readback tester watches it from a separate goroutine.
package hud

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/soocke/framepace/app"
	"github.com/soocke/framepace/config"
	"github.com/soocke/framepace/ui/model"
	"github.com/soocke/framepace/ui/presenter"
	"github.com/soocke/framepace/ui/view"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

const title = "framepace"

// presentHz is how often the labels refresh; frames run at the refresh rate.
const presentHz = 10

type hud struct {
	cfg     *config.Config
	logger  *slog.Logger
	c       *app.Container
	root    *view.RootView
	loop    *presenter.Loop
	tick    time.Duration
	afterID string
	cancel  context.CancelFunc
}

// Run builds the window and blocks in the Tk event loop until the window
// closes or ctx is done.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h := &hud{
		cfg:    cfg,
		logger: logger,
		c:      app.BuildContainer(cfg, logger, nil),
		cancel: cancel,
	}
	h.tick = time.Duration(float64(time.Second) / cfg.RefreshHz)
	if h.tick < time.Millisecond {
		h.tick = time.Millisecond
	}

	h.root = view.NewRootView(cfg, logger)
	h.root.Build(title, h.resetTiming, h.toggleVsync, h.exitHandler)
	h.c.Sink.Paint = h.root.Patch.Paint
	WmProtocol(App, "WM_DELETE_WINDOW", h.exitHandler)

	testerDone := make(chan error, 1)
	go func() { testerDone <- h.c.Tester.Run(ctx) }()

	lat := presenter.NewLatencyPresenter(h.c.Session.Manager(), model.NewLockModel(), h.root.Latency)
	every := int(cfg.RefreshHz / presentHz)
	h.loop = presenter.NewLoop(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return h.c.Session.Frame(ctx)
	}, lat, every, h.scheduleUpdate)
	// Cancellation is noticed on the next tick so Tk is only touched from
	// its own thread.
	h.loop.OnError = func(err error) {
		if !errors.Is(err, context.Canceled) {
			logger.Error("frame failed", "error", err)
		}
		h.exitHandler()
	}

	logger.Info("hud started", "session", h.c.Session.ID, "patch", cfg.ReadbackRect().String(), "refresh_hz", cfg.RefreshHz)
	h.scheduleUpdate()
	App.Wait()

	cancel()
	err := <-testerDone
	logger.Info("hud stopped", "frames", h.c.Session.Frames())
	return err
}

func (h *hud) scheduleUpdate() {
	// Schedule the next frame using TclAfter to stay on Tk's event loop thread.
	h.afterID = TclAfter(h.tick, func() { h.loop.Tick() })
}

func (h *hud) resetTiming() {
	m := h.c.Session.Manager()
	m.ResetFrameTiming(h.c.Session.Frames(), h.cfg.DynamicPrediction, h.cfg.SDKRender)
	h.logger.Info("frame timing reset", "frame", h.c.Session.Frames())
}

func (h *hud) toggleVsync() {
	m := h.c.Session.Manager()
	m.SetVsync(!m.Vsync())
	h.root.SetVsync(m.Vsync())
	h.logger.Info("vsync toggled", "vsync", m.Vsync())
}

func (h *hud) exitHandler() {
	if h.afterID != "" {
		TclAfterCancel(h.afterID)
		h.afterID = ""
	}
	h.cancel()
	func() {
		defer func() { _ = recover() }()
		Destroy(App)
	}()
}
