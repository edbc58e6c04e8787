package diagram

import (
	"fmt"
	"html"
	"math"
	"strings"
)

const svgPadding = 20

type svgOptions struct {
	zoom      float64
	highlight map[string]bool
	link      func(el *Element) string
}

// renderSVG draws the elements from their DI coordinates. Elements without DI are skipped.
func renderSVG(elements []*Element, opts svgOptions) string {
	var b strings.Builder

	box, ok := boundingBox(elements)
	if !ok {
		box = Bounds{Width: 100, Height: 100}
	}
	box = Bounds{
		X:      box.X - svgPadding,
		Y:      box.Y - svgPadding,
		Width:  box.Width + 2*svgPadding,
		Height: box.Height + 2*svgPadding,
	}
	zoom := opts.zoom
	if zoom <= 0 {
		zoom = 1
	}

	b.WriteString(fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" width="%s" height="%s" viewBox="%s %s %s %s">`,
		formatFloat(math.Round(box.Width*zoom)), formatFloat(math.Round(box.Height*zoom)),
		formatFloat(box.X), formatFloat(box.Y), formatFloat(box.Width), formatFloat(box.Height)))
	b.WriteString("\n")
	b.WriteString(`  <defs><marker id="sequenceflow-end" viewBox="0 0 20 20" refX="11" refY="10" markerWidth="10" markerHeight="10" orient="auto"><path d="M 1 5 L 11 10 L 1 15 Z" fill="#22242a"/></marker></defs>`)
	b.WriteString("\n")
	b.WriteString("  <style>\n")
	b.WriteString("    .djs-shape .shape{fill:#fff;stroke:#22242a;stroke-width:2}\n")
	b.WriteString("    .djs-connection .shape{fill:none;stroke:#22242a;stroke-width:2}\n")
	b.WriteString("    .djs-element text{font-family:Arial,sans-serif;font-size:12px;fill:#22242a}\n")
	b.WriteString("    .highlighted .shape{fill:#e3f2fd;stroke:#1e88e5;stroke-width:3}\n")
	b.WriteString("    .djs-connection.highlighted .shape{fill:none}\n")
	b.WriteString("    a .djs-element{cursor:pointer}\n")
	b.WriteString("  </style>\n")

	// Connections first so shapes paint over their ends.
	for _, el := range elements {
		if el.IsFlow() && len(el.Waypoints) > 1 {
			writeElement(&b, el, opts, svgConnection)
		}
	}
	for _, el := range elements {
		if !el.IsFlow() && el.Bounds != nil {
			writeElement(&b, el, opts, svgShape)
		}
	}

	b.WriteString("</svg>\n")
	return b.String()
}

func writeElement(b *strings.Builder, el *Element, opts svgOptions, draw func(*strings.Builder, *Element)) {
	href := ""
	if opts.link != nil {
		href = opts.link(el)
	}
	if href != "" {
		b.WriteString(fmt.Sprintf(`  <a xlink:href="%s" href="%s">`, html.EscapeString(href), html.EscapeString(href)))
	}
	class := "djs-element djs-shape"
	if el.IsFlow() {
		class = "djs-element djs-connection"
	}
	if opts.highlight[el.ID] {
		class += " highlighted"
	}
	b.WriteString(fmt.Sprintf(`  <g class="%s" data-element-id="%s" data-element-type="%s">`,
		class, html.EscapeString(el.ID), html.EscapeString(el.Type)))
	draw(b, el)
	b.WriteString("</g>")
	if href != "" {
		b.WriteString("</a>")
	}
	b.WriteString("\n")
}

func svgConnection(b *strings.Builder, el *Element) {
	pts := make([]string, 0, len(el.Waypoints))
	for _, wp := range el.Waypoints {
		pts = append(pts, formatFloat(wp.X)+","+formatFloat(wp.Y))
	}
	b.WriteString(fmt.Sprintf(`<polyline class="shape" points="%s" marker-end="url(#sequenceflow-end)"/>`, strings.Join(pts, " ")))
	if el.Name != "" {
		mid := el.Waypoints[len(el.Waypoints)/2]
		writeLabel(b, el.Name, mid.X, mid.Y-6)
	}
}

func svgShape(b *strings.Builder, el *Element) {
	bd := *el.Bounds
	c := bd.Center()
	switch {
	case el.IsEvent():
		r := math.Min(bd.Width, bd.Height) / 2
		width := "2"
		if el.Type == TypeEndEvent {
			width = "4"
		}
		b.WriteString(fmt.Sprintf(`<circle class="shape" cx="%s" cy="%s" r="%s" style="stroke-width:%s"/>`,
			formatFloat(c.X), formatFloat(c.Y), formatFloat(r), width))
		if el.Type == TypeIntermediate {
			b.WriteString(fmt.Sprintf(`<circle class="shape" cx="%s" cy="%s" r="%s"/>`,
				formatFloat(c.X), formatFloat(c.Y), formatFloat(r-3)))
		}
		if el.Name != "" {
			writeLabel(b, el.Name, c.X, bd.Y+bd.Height+14)
		}
	case el.IsGateway():
		b.WriteString(fmt.Sprintf(`<polygon class="shape" points="%s,%s %s,%s %s,%s %s,%s"/>`,
			formatFloat(c.X), formatFloat(bd.Y),
			formatFloat(bd.X+bd.Width), formatFloat(c.Y),
			formatFloat(c.X), formatFloat(bd.Y+bd.Height),
			formatFloat(bd.X), formatFloat(c.Y)))
		writeGatewayMarker(b, el.Type, c, bd.Width/5)
		if el.Name != "" {
			writeLabel(b, el.Name, c.X, bd.Y+bd.Height+14)
		}
	default:
		b.WriteString(fmt.Sprintf(`<rect class="shape" x="%s" y="%s" width="%s" height="%s" rx="10" ry="10"/>`,
			formatFloat(bd.X), formatFloat(bd.Y), formatFloat(bd.Width), formatFloat(bd.Height)))
		if IsDecisionTask(el) {
			// Table icon in the top-left corner.
			b.WriteString(fmt.Sprintf(`<path d="M %s %s h 16 v 12 h -16 Z M %s %s h 16 M %s %s v 8" style="fill:none;stroke:#22242a;stroke-width:1"/>`,
				formatFloat(bd.X+8), formatFloat(bd.Y+8),
				formatFloat(bd.X+8), formatFloat(bd.Y+12),
				formatFloat(bd.X+13), formatFloat(bd.Y+12)))
		}
		if el.Name != "" {
			writeLabel(b, el.Name, c.X, c.Y+4)
		}
	}
}

func writeGatewayMarker(b *strings.Builder, typ string, c Point, s float64) {
	switch typ {
	case TypeExclusiveGateway:
		b.WriteString(fmt.Sprintf(`<path d="M %s %s L %s %s M %s %s L %s %s" style="stroke:#22242a;stroke-width:3"/>`,
			formatFloat(c.X-s), formatFloat(c.Y-s), formatFloat(c.X+s), formatFloat(c.Y+s),
			formatFloat(c.X+s), formatFloat(c.Y-s), formatFloat(c.X-s), formatFloat(c.Y+s)))
	case TypeParallelGateway:
		b.WriteString(fmt.Sprintf(`<path d="M %s %s L %s %s M %s %s L %s %s" style="stroke:#22242a;stroke-width:3"/>`,
			formatFloat(c.X), formatFloat(c.Y-s), formatFloat(c.X), formatFloat(c.Y+s),
			formatFloat(c.X-s), formatFloat(c.Y), formatFloat(c.X+s), formatFloat(c.Y)))
	case TypeInclusiveGateway:
		b.WriteString(fmt.Sprintf(`<circle cx="%s" cy="%s" r="%s" style="fill:none;stroke:#22242a;stroke-width:2.5"/>`,
			formatFloat(c.X), formatFloat(c.Y), formatFloat(s)))
	}
}

func writeLabel(b *strings.Builder, text string, x, y float64) {
	b.WriteString(fmt.Sprintf(`<text x="%s" y="%s" text-anchor="middle">%s</text>`,
		formatFloat(x), formatFloat(y), html.EscapeString(text)))
}
