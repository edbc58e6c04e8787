package generator

import (
	"fmt"

	"github.com/vicodes/process-flow-canvas-dream/internal/diagram"
)

const (
	rowCenter  = 120.0
	branchDrop = 130.0
	columnGap  = 50.0
)

// builder lays steps out left to right on a fresh canvas, using the same
// commands the modeler applies.
type builder struct {
	canvas diagram.Canvas
	stack  diagram.CommandStack
	seq    map[string]int
}

func (b *builder) nextID(prefix string) string {
	b.seq[prefix]++
	return fmt.Sprintf("%s_%d", prefix, b.seq[prefix])
}

// shape adds an element whose left edge is at x and vertical center at cy.
func (b *builder) shape(prefix, typ, name string, x, cy float64) (*diagram.Element, error) {
	w, h := diagram.DefaultSize(typ)
	el := &diagram.Element{
		ID:     b.nextID(prefix),
		Type:   typ,
		Name:   name,
		Bounds: &diagram.Bounds{X: x, Y: cy - h/2, Width: w, Height: h},
	}
	if err := b.stack.Execute(b.canvas, &diagram.AddElement{Element: el}); err != nil {
		return nil, err
	}
	return el, nil
}

func (b *builder) connect(from, to *diagram.Element, label string) error {
	return b.stack.Execute(b.canvas, &diagram.Connect{
		ID:       b.nextID("Flow"),
		SourceID: from.ID,
		TargetID: to.ID,
		Label:    label,
	})
}

func right(el *diagram.Element) float64 {
	return el.Bounds.X + el.Bounds.Width
}

// sequence places steps after prev on the row cy. It returns the last element
// and the label still pending for the flow leaving prev.
func (b *builder) sequence(steps []step, prev *diagram.Element, label string, cy float64) (*diagram.Element, string, error) {
	for _, s := range steps {
		x := right(prev) + columnGap
		switch s.Kind {
		case stepChoice:
			last, err := b.choice(s, prev, label, x, cy)
			if err != nil {
				return nil, "", err
			}
			prev, label = last, ""
			continue
		case stepDecision:
			el, err := b.shape("Activity", diagram.TypeBusinessRuleTask, s.Name, x, cy)
			if err != nil {
				return nil, "", err
			}
			if err := b.connect(prev, el, label); err != nil {
				return nil, "", err
			}
			prev, label = el, ""
		default:
			el, err := b.shape("Activity", taskType(s.TaskType), s.Name, x, cy)
			if err != nil {
				return nil, "", err
			}
			if err := b.connect(prev, el, label); err != nil {
				return nil, "", err
			}
			prev, label = el, ""
		}
	}
	return prev, label, nil
}

// choice adds a split gateway, the yes branch on the current row, the no
// branch below it and a join gateway after the longer branch.
func (b *builder) choice(s step, prev *diagram.Element, label string, x, cy float64) (*diagram.Element, error) {
	split, err := b.shape("Gateway", diagram.TypeExclusiveGateway, s.Condition+"?", x, cy)
	if err != nil {
		return nil, err
	}
	if err := b.connect(prev, split, label); err != nil {
		return nil, err
	}

	yesEnd, yesLabel, err := b.sequence(s.Yes, split, "Yes", cy)
	if err != nil {
		return nil, err
	}
	noEnd, noLabel, err := b.sequence(s.No, split, "No", cy+branchDrop)
	if err != nil {
		return nil, err
	}

	joinX := max(right(yesEnd), right(noEnd)) + columnGap
	join, err := b.shape("Gateway", diagram.TypeExclusiveGateway, "", joinX, cy)
	if err != nil {
		return nil, err
	}
	if err := b.connect(yesEnd, join, yesLabel); err != nil {
		return nil, err
	}
	if err := b.connect(noEnd, join, noLabel); err != nil {
		return nil, err
	}
	return join, nil
}

func taskType(kind string) string {
	switch kind {
	case "user":
		return diagram.TypeUserTask
	case "service":
		return diagram.TypeServiceTask
	default:
		return diagram.TypeTask
	}
}

// buildBPMN turns steps into a BPMN document with diagram coordinates.
func buildBPMN(steps []step) (string, error) {
	engine := diagram.NewEngine()
	defer engine.Destroy()
	if _, err := engine.ImportXML(diagram.EmptyBPMN); err != nil {
		return "", fmt.Errorf("failed to create blank diagram: %w", err)
	}

	b := &builder{canvas: engine, seq: map[string]int{}}
	if err := b.stack.Execute(engine, &diagram.RenameElement{ID: "StartEvent_1", NewName: "Start"}); err != nil {
		return "", err
	}
	start, ok := engine.Element("StartEvent_1")
	if !ok || start.Bounds == nil {
		return "", fmt.Errorf("blank diagram has no start event")
	}

	last, label, err := b.sequence(steps, start, "", rowCenter)
	if err != nil {
		return "", fmt.Errorf("failed to lay out process: %w", err)
	}
	end, err := b.shape("EndEvent", diagram.TypeEndEvent, "End", right(last)+columnGap, rowCenter)
	if err != nil {
		return "", err
	}
	if err := b.connect(last, end, label); err != nil {
		return "", err
	}
	return engine.SaveXML()
}
