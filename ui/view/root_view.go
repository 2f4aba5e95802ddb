package view

import (
	"fmt"
	"log/slog"

	"github.com/soocke/framepace/config"
	"github.com/soocke/framepace/ui/theme"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

// RootView composes the HUD window: the tag patch in the corner, the
// latency panel next to it and a button column.
type RootView struct {
	cfg    *config.Config
	logger *slog.Logger

	Patch   TagPatch
	Latency *LatencyPanel

	vsyncBtn *TButtonWidget
}

func NewRootView(cfg *config.Config, logger *slog.Logger) *RootView {
	return &RootView{cfg: cfg, logger: logger}
}

// Build constructs the layout and places the window so the tag patch covers
// the configured readback rectangle. Handlers are invoked on user actions.
func (rv *RootView) Build(title string, onReset func(), onToggleVsync func(), onExit func()) {
	if rv == nil {
		return
	}
	theme.InitStyles(true)
	App.WmTitle(title)
	WmGeometry(App, fmt.Sprintf("+%d+%d", rv.cfg.ReadbackX, rv.cfg.ReadbackY))

	rv.Patch = NewTagPatch(rv.cfg.ReadbackSize)
	rv.Latency = NewLatencyPanel(0)

	btnFrame := Frame()
	Grid(btnFrame, Row(0), Column(3), Rowspan(4), Sticky("ne"), Padx("0.3m"), Pady("0.3m"))
	resetBtn := TButton(Txt("Reset Timing"), Style(theme.StylePrimaryButton), Command(onReset))
	Grid(resetBtn, In(btnFrame), Row(0), Column(0), Sticky("we"), Padx("0.2m"), Pady("0.2m"))
	rv.vsyncBtn = TButton(Txt(vsyncText(rv.cfg.Vsync)), Command(onToggleVsync))
	Grid(rv.vsyncBtn, In(btnFrame), Row(1), Column(0), Sticky("we"), Padx("0.2m"), Pady("0.2m"))
	exitBtn := TButton(Txt("Exit"), Style(theme.StyleDangerButton), Command(onExit))
	Grid(exitBtn, In(btnFrame), Row(2), Column(0), Sticky("we"), Padx("0.2m"), Pady("0.2m"))

	if rv.logger != nil {
		rv.logger.Debug("hud built", "patch", rv.cfg.ReadbackRect().String())
	}
}

// SetVsync updates the vsync toggle caption.
func (rv *RootView) SetVsync(on bool) {
	if rv != nil && rv.vsyncBtn != nil {
		rv.vsyncBtn.Configure(Txt(vsyncText(on)))
	}
}

func vsyncText(on bool) string {
	if on {
		return "Vsync: on"
	}
	return "Vsync: off"
}
