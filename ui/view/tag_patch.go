package view

import (
	"github.com/soocke/framepace/domain/latency"
	"github.com/soocke/framepace/ui/model"

	//lint:ignore ST1001 Dot import for concise Tk widget DSL.
	. "modernc.org/tk9.0"
)

// TagPatch is the square the latency tester reads back.
type TagPatch interface {
	Paint(color latency.DrawColor)
}

type tagPatch struct {
	frame *FrameWidget
	last  latency.DrawColor
	init  bool
}

// NewTagPatch creates a size x size pixel patch at the top-left of the
// window, painted with the baseline color.
func NewTagPatch(size int) TagPatch {
	p := &tagPatch{frame: Frame(Width(size), Height(size), Borderwidth(0), Highlightthickness(0))}
	Grid(p.frame, Row(0), Column(0), Sticky("nw"))
	p.Paint(latency.DrawColorBaseline)
	return p
}

// Paint sets the patch to the gray level of color. Repaints of the same
// color are skipped.
func (p *tagPatch) Paint(color latency.DrawColor) {
	if p == nil || p.frame == nil {
		return
	}
	if p.init && color == p.last {
		return
	}
	p.frame.Configure(Background(model.GrayHex(color.Pixel())))
	p.last, p.init = color, true
}
