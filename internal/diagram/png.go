package diagram

import (
	"bytes"
	"fmt"
	"math"

	"github.com/fogleman/gg"
)

// RenderPNG rasterises the DI layout of the engine's current document.
// Highlighted elements are filled in the highlight colour.
func RenderPNG(e Engine) ([]byte, error) {
	elements := e.Elements()
	if elements == nil {
		return nil, ErrNotImported
	}
	box, ok := boundingBox(elements)
	if !ok {
		return nil, fmt.Errorf("diagram: no diagram interchange data to render")
	}
	highlighted := map[string]bool{}
	for _, id := range e.Highlighted() {
		highlighted[id] = true
	}

	scale := e.Zoom()
	if scale <= 0 {
		scale = 1
	}
	w := int(math.Ceil((box.Width + 2*svgPadding) * scale))
	h := int(math.Ceil((box.Height + 2*svgPadding) * scale))

	dc := gg.NewContext(w, h)
	dc.SetHexColor("#ffffff")
	dc.Clear()
	dc.Scale(scale, scale)
	dc.Translate(svgPadding-box.X, svgPadding-box.Y)

	for _, el := range elements {
		if el.IsFlow() && len(el.Waypoints) > 1 {
			drawConnection(dc, el, highlighted[el.ID])
		}
	}
	for _, el := range elements {
		if !el.IsFlow() && el.Bounds != nil {
			drawShape(dc, el, highlighted[el.ID])
		}
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("diagram: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func strokeColor(dc *gg.Context, highlighted bool) {
	if highlighted {
		dc.SetHexColor("#1e88e5")
		return
	}
	dc.SetHexColor("#22242a")
}

func drawConnection(dc *gg.Context, el *Element, highlighted bool) {
	dc.SetLineWidth(2)
	strokeColor(dc, highlighted)
	dc.MoveTo(el.Waypoints[0].X, el.Waypoints[0].Y)
	for _, wp := range el.Waypoints[1:] {
		dc.LineTo(wp.X, wp.Y)
	}
	dc.Stroke()

	// Arrow head on the last segment.
	end := el.Waypoints[len(el.Waypoints)-1]
	prev := el.Waypoints[len(el.Waypoints)-2]
	angle := math.Atan2(end.Y-prev.Y, end.X-prev.X)
	dc.MoveTo(end.X, end.Y)
	dc.LineTo(end.X-10*math.Cos(angle-0.4), end.Y-10*math.Sin(angle-0.4))
	dc.LineTo(end.X-10*math.Cos(angle+0.4), end.Y-10*math.Sin(angle+0.4))
	dc.ClosePath()
	dc.Fill()

	if el.Name != "" {
		mid := el.Waypoints[len(el.Waypoints)/2]
		dc.SetHexColor("#22242a")
		dc.DrawStringAnchored(el.Name, mid.X, mid.Y-8, 0.5, 0.5)
	}
}

func drawShape(dc *gg.Context, el *Element, highlighted bool) {
	bd := *el.Bounds
	c := bd.Center()
	labelY := c.Y

	switch {
	case el.IsEvent():
		dc.DrawCircle(c.X, c.Y, math.Min(bd.Width, bd.Height)/2)
		labelY = bd.Y + bd.Height + 12
	case el.IsGateway():
		dc.MoveTo(c.X, bd.Y)
		dc.LineTo(bd.X+bd.Width, c.Y)
		dc.LineTo(c.X, bd.Y+bd.Height)
		dc.LineTo(bd.X, c.Y)
		dc.ClosePath()
		labelY = bd.Y + bd.Height + 12
	default:
		dc.DrawRoundedRectangle(bd.X, bd.Y, bd.Width, bd.Height, 10)
	}

	if highlighted {
		dc.SetHexColor("#e3f2fd")
	} else {
		dc.SetHexColor("#ffffff")
	}
	dc.FillPreserve()
	strokeColor(dc, highlighted)
	dc.SetLineWidth(2)
	if el.Type == TypeEndEvent {
		dc.SetLineWidth(4)
	}
	dc.Stroke()

	if el.IsGateway() {
		s := bd.Width / 5
		dc.SetLineWidth(3)
		switch el.Type {
		case TypeExclusiveGateway:
			dc.DrawLine(c.X-s, c.Y-s, c.X+s, c.Y+s)
			dc.DrawLine(c.X+s, c.Y-s, c.X-s, c.Y+s)
		case TypeParallelGateway:
			dc.DrawLine(c.X, c.Y-s, c.X, c.Y+s)
			dc.DrawLine(c.X-s, c.Y, c.X+s, c.Y)
		case TypeInclusiveGateway:
			dc.DrawCircle(c.X, c.Y, s)
		}
		dc.Stroke()
	}

	if el.Name != "" {
		dc.SetHexColor("#22242a")
		if el.IsTask() {
			dc.DrawStringWrapped(el.Name, c.X, labelY, 0.5, 0.5, bd.Width-10, 1.2, gg.AlignCenter)
		} else {
			dc.DrawStringAnchored(el.Name, c.X, labelY, 0.5, 0.5)
		}
	}
}
