package view

import (
	"github.com/soocke/framepace/ui/theme"

	//lint:ignore ST1001 Dot import for concise Tk widget DSL.
	. "modernc.org/tk9.0"
)

// LatencyPanel shows tracker state, measured latency and the current
// schedule. It satisfies presenter.LatencyView.
type LatencyPanel struct {
	stateLbl    *TLabelWidget
	renderLbl   *LabelWidget
	timewarpLbl *LabelWidget
	screenLbl   *LabelWidget
	frameLbl    *LabelWidget
	deltaLbl    *LabelWidget
	delayLbl    *LabelWidget
	lockLbl     *LabelWidget
	totalLbl    *LabelWidget
}

// NewLatencyPanel lays out the labels in a grid starting at row, column 1
// (column 0 holds the tag patch).
func NewLatencyPanel(row int) *LatencyPanel {
	p := &LatencyPanel{stateLbl: TLabel(Txt("State: --"), Style(theme.StyleStateLabel))}
	Grid(p.stateLbl, Row(row), Column(1), Columnspan(2), Sticky("we"), Padx("0.4m"), Pady("0.3m"))

	cells := []struct {
		title string
		lbl   **LabelWidget
	}{
		{"Render", &p.renderLbl},
		{"Timewarp", &p.timewarpLbl},
		{"Screen", &p.screenLbl},
		{"Frame", &p.frameLbl},
		{"Frame delta", &p.deltaLbl},
		{"Screen delay", &p.delayLbl},
		{"Locked", &p.lockLbl},
		{"Locked total", &p.totalLbl},
	}
	for i, c := range cells {
		r := row + 1 + i
		Grid(Label(Txt(c.title+":")), Row(r), Column(1), Sticky("w"), Padx("0.4m"))
		*c.lbl = Label(Txt("--"), Width(14))
		Grid(*c.lbl, Row(r), Column(2), Sticky("w"), Padx("0.2m"))
	}
	return p
}

func (p *LatencyPanel) SetState(text string) {
	if p == nil || p.stateLbl == nil {
		return
	}
	p.stateLbl.Configure(Txt("State: " + text))
}

func (p *LatencyPanel) SetLatency(render, timewarp, screen string) {
	if p == nil || p.renderLbl == nil {
		return
	}
	p.renderLbl.Configure(Txt(render))
	p.timewarpLbl.Configure(Txt(timewarp))
	p.screenLbl.Configure(Txt(screen))
}

func (p *LatencyPanel) SetTiming(frame, delta, delay string) {
	if p == nil || p.frameLbl == nil {
		return
	}
	p.frameLbl.Configure(Txt(frame))
	p.deltaLbl.Configure(Txt(delta))
	p.delayLbl.Configure(Txt(delay))
}

func (p *LatencyPanel) SetLock(current, total string) {
	if p == nil || p.lockLbl == nil {
		return
	}
	p.lockLbl.Configure(Txt(current))
	p.totalLbl.Configure(Txt(total))
}
