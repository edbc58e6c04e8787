package diagram

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
)

// LayoutFormat selects the output of RenderLayout.
type LayoutFormat string

const (
	LayoutPNG LayoutFormat = "png"
	LayoutSVG LayoutFormat = "svg"
)

// RenderLayout lays the process out left to right with graphviz, ignoring any DI
// coordinates. It is used for documents that carry no diagram interchange data.
func RenderLayout(ctx context.Context, e Engine, format LayoutFormat) ([]byte, error) {
	elements := e.Elements()
	if elements == nil {
		return nil, ErrNotImported
	}
	var gvFormat graphviz.Format
	switch format {
	case LayoutPNG:
		gvFormat = graphviz.PNG
	case LayoutSVG:
		gvFormat = graphviz.SVG
	default:
		return nil, fmt.Errorf("diagram: unsupported layout format %q", format)
	}

	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("diagram: create graphviz: %w", err)
	}
	defer gv.Close()

	gv.SetLayout(graphviz.DOT)

	graph, err := gv.Graph()
	if err != nil {
		return nil, fmt.Errorf("diagram: create graph: %w", err)
	}
	defer graph.Close()

	graph.SetRankDir(cgraph.LRRank)

	highlighted := map[string]bool{}
	for _, id := range e.Highlighted() {
		highlighted[id] = true
	}

	nodes := make(map[string]*cgraph.Node, len(elements))
	for _, el := range elements {
		if el.IsFlow() {
			continue
		}
		n, nErr := graph.CreateNodeByName(el.ID)
		if nErr != nil {
			return nil, fmt.Errorf("diagram: create node %s: %w", el.ID, nErr)
		}
		label := el.Name
		if label == "" {
			label = el.ID
		}
		n.SetLabel(label)
		applyLayoutStyle(n, el, highlighted[el.ID])
		nodes[el.ID] = n
	}

	for _, el := range elements {
		if !el.IsFlow() {
			continue
		}
		from, to := nodes[el.SourceRef], nodes[el.TargetRef]
		if from == nil || to == nil {
			continue
		}
		edge, eErr := graph.CreateEdgeByName(el.ID, from, to)
		if eErr == nil && el.Name != "" {
			edge.SetLabel(el.Name)
		}
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, gvFormat, &buf); err != nil {
		return nil, fmt.Errorf("diagram: render %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

func applyLayoutStyle(n *cgraph.Node, el *Element, highlighted bool) {
	switch {
	case el.IsEvent():
		n.SetShape(cgraph.CircleShape)
		n.SetWidth(0.5)
		n.SetHeight(0.5)
	case el.IsGateway():
		n.SetShape(cgraph.DiamondShape)
	case IsDecisionTask(el):
		n.SetShape(cgraph.BoxShape)
		n.SetStyle(cgraph.DashedNodeStyle)
	default:
		n.SetShape(cgraph.BoxShape)
	}
	if highlighted {
		n.SetStyle(cgraph.FilledNodeStyle)
		n.SetFillColor("#1e88e5")
		n.SetFontColor("white")
	}
}
