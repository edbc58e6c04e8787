package diagram

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
)

var (
	// ErrDuplicateElement is returned when adding an element whose id is taken.
	ErrDuplicateElement = errors.New("diagram: element already exists")
	// ErrInvalidProperty is returned by SetProperties for names that cannot be written as XML attributes.
	ErrInvalidProperty = errors.New("diagram: invalid property name")
)

// Command is one reversible edit applied to a Canvas.
type Command interface {
	Name() string
	Execute(c Canvas) error
	Revert(c Canvas) error
}

// CommandStack records executed commands for undo and redo.
type CommandStack struct {
	done   []Command
	undone []Command
}

// Execute runs cmd and pushes it. Any redo history is dropped.
func (s *CommandStack) Execute(c Canvas, cmd Command) error {
	if err := cmd.Execute(c); err != nil {
		return err
	}
	s.done = append(s.done, cmd)
	s.undone = nil
	return nil
}

// Undo reverts the most recent command. It reports false when there is nothing to undo.
func (s *CommandStack) Undo(c Canvas) (bool, error) {
	if len(s.done) == 0 {
		return false, nil
	}
	cmd := s.done[len(s.done)-1]
	if err := cmd.Revert(c); err != nil {
		return false, fmt.Errorf("undo %s: %w", cmd.Name(), err)
	}
	s.done = s.done[:len(s.done)-1]
	s.undone = append(s.undone, cmd)
	return true, nil
}

// Redo re-applies the most recently undone command.
func (s *CommandStack) Redo(c Canvas) (bool, error) {
	if len(s.undone) == 0 {
		return false, nil
	}
	cmd := s.undone[len(s.undone)-1]
	if err := cmd.Execute(c); err != nil {
		return false, fmt.Errorf("redo %s: %w", cmd.Name(), err)
	}
	s.undone = s.undone[:len(s.undone)-1]
	s.done = append(s.done, cmd)
	return true, nil
}

func (s *CommandStack) CanUndo() bool { return len(s.done) > 0 }
func (s *CommandStack) CanRedo() bool { return len(s.undone) > 0 }

// Clear drops all history.
func (s *CommandStack) Clear() {
	s.done, s.undone = nil, nil
}

// snapshot keeps an element and its position in document order.
type snapshot struct {
	el    *Element
	index int
}

// restore puts snapshots back in ascending index order so each lands where it was.
func restore(c Canvas, snaps []snapshot) error {
	sorted := append([]snapshot(nil), snaps...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].index < sorted[j].index })
	for _, s := range sorted {
		if err := c.Put(s.el, s.index); err != nil {
			return err
		}
	}
	return nil
}

// AddElement creates a shape.
type AddElement struct {
	Element *Element
}

func (a *AddElement) Name() string { return "add " + a.Element.ID }

func (a *AddElement) Execute(c Canvas) error {
	if _, exists := c.Element(a.Element.ID); exists {
		return fmt.Errorf("%w: %s", ErrDuplicateElement, a.Element.ID)
	}
	return c.Put(a.Element, -1)
}

func (a *AddElement) Revert(c Canvas) error {
	_, _, err := c.Delete(a.Element.ID)
	return err
}

// RemoveElement deletes an element together with every sequence flow attached to it.
type RemoveElement struct {
	ID string

	removed []snapshot
}

func (r *RemoveElement) Name() string { return "remove " + r.ID }

func (r *RemoveElement) Execute(c Canvas) error {
	if _, ok := c.Element(r.ID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownElement, r.ID)
	}
	ids := []string{r.ID}
	for _, el := range c.Elements() {
		if el.IsFlow() && el.ID != r.ID && (el.SourceRef == r.ID || el.TargetRef == r.ID) {
			ids = append(ids, el.ID)
		}
	}
	r.removed = r.removed[:0]
	for _, id := range ids {
		el, idx, err := c.Delete(id)
		if err != nil {
			return err
		}
		r.removed = append(r.removed, snapshot{el: el, index: idx})
	}
	return nil
}

func (r *RemoveElement) Revert(c Canvas) error {
	// Deletions shifted later indices, so restore in reverse removal order.
	for i := len(r.removed) - 1; i >= 0; i-- {
		s := r.removed[i]
		if err := c.Put(s.el, s.index); err != nil {
			return err
		}
	}
	return nil
}

// RenameElement changes an element label.
type RenameElement struct {
	ID      string
	NewName string

	oldName string
}

func (r *RenameElement) Name() string { return "rename " + r.ID }

func (r *RenameElement) Execute(c Canvas) error {
	el, ok := c.Element(r.ID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownElement, r.ID)
	}
	r.oldName = el.Name
	el.Name = r.NewName
	return c.Put(el, -1)
}

func (r *RenameElement) Revert(c Canvas) error {
	el, ok := c.Element(r.ID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownElement, r.ID)
	}
	el.Name = r.oldName
	return c.Put(el, -1)
}

// MoveShape translates a shape and the attached ends of its sequence flows.
type MoveShape struct {
	ID string
	DX float64
	DY float64

	before []snapshot
}

func (m *MoveShape) Name() string { return "move " + m.ID }

func (m *MoveShape) Execute(c Canvas) error {
	el, ok := c.Element(m.ID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownElement, m.ID)
	}
	if el.Bounds == nil {
		return fmt.Errorf("diagram: element %s has no shape to move", m.ID)
	}
	m.before = []snapshot{{el: el.clone(), index: -1}}
	el.Bounds.X += m.DX
	el.Bounds.Y += m.DY
	if err := c.Put(el, -1); err != nil {
		return err
	}
	for _, f := range c.Elements() {
		if !f.IsFlow() || len(f.Waypoints) == 0 {
			continue
		}
		if f.SourceRef != m.ID && f.TargetRef != m.ID {
			continue
		}
		m.before = append(m.before, snapshot{el: f.clone(), index: -1})
		if f.SourceRef == m.ID {
			f.Waypoints[0].X += m.DX
			f.Waypoints[0].Y += m.DY
		}
		if f.TargetRef == m.ID {
			last := len(f.Waypoints) - 1
			f.Waypoints[last].X += m.DX
			f.Waypoints[last].Y += m.DY
		}
		if err := c.Put(f, -1); err != nil {
			return err
		}
	}
	return nil
}

func (m *MoveShape) Revert(c Canvas) error {
	return restore(c, m.before)
}

// Connect draws a sequence flow between two flow nodes.
type Connect struct {
	ID       string
	SourceID string
	TargetID string
	Label    string
}

func (cn *Connect) Name() string { return "connect " + cn.SourceID + "->" + cn.TargetID }

func (cn *Connect) Execute(c Canvas) error {
	if _, exists := c.Element(cn.ID); exists {
		return fmt.Errorf("%w: %s", ErrDuplicateElement, cn.ID)
	}
	src, ok := c.Element(cn.SourceID)
	if !ok || src.IsFlow() {
		return fmt.Errorf("%w: source %s", ErrUnknownElement, cn.SourceID)
	}
	dst, ok := c.Element(cn.TargetID)
	if !ok || dst.IsFlow() {
		return fmt.Errorf("%w: target %s", ErrUnknownElement, cn.TargetID)
	}
	flow := &Element{
		ID:        cn.ID,
		Type:      TypeSequenceFlow,
		Name:      cn.Label,
		SourceRef: src.ID,
		TargetRef: dst.ID,
	}
	if src.Bounds != nil && dst.Bounds != nil {
		flow.Waypoints = connectionWaypoints(*src.Bounds, *dst.Bounds)
	}
	return c.Put(flow, -1)
}

func (cn *Connect) Revert(c Canvas) error {
	_, _, err := c.Delete(cn.ID)
	return err
}

// Element attributes SetProperties writes directly. Other names go to the
// camunda:properties extension.
const (
	PropImplementation = "implementation"
	PropDecisionRef    = "decisionRef"
	PropDmnID          = "dmnId"
	PropDmnTaskID      = "dmnTaskId"
)

const nsCamunda = "http://camunda.org/schema/1.0/bpmn"

var propertyName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.-]*$`)

// SetProperties sets element attributes such as the decision reference. An
// empty value clears the property.
type SetProperties struct {
	ID         string
	Properties map[string]string

	before *Element
}

func (p *SetProperties) Name() string { return "set properties " + p.ID }

func (p *SetProperties) Execute(c Canvas) error {
	el, ok := c.Element(p.ID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownElement, p.ID)
	}
	if len(p.Properties) == 0 {
		return fmt.Errorf("%w: no properties given", ErrInvalidProperty)
	}
	for _, k := range sortedKeys(p.Properties) {
		if !propertyName.MatchString(k) {
			return fmt.Errorf("%w: %q", ErrInvalidProperty, k)
		}
	}
	p.before = el.clone()
	for _, k := range sortedKeys(p.Properties) {
		v := p.Properties[k]
		switch k {
		case PropImplementation:
			el.Implementation = v
		case PropDecisionRef:
			el.DecisionRef = v
		case PropDmnID:
			el.DmnID = v
		case PropDmnTaskID:
			el.DmnTaskID = v
		default:
			setExtensionProperty(el, k, v)
		}
	}
	return c.Put(el, -1)
}

func (p *SetProperties) Revert(c Canvas) error {
	if p.before == nil {
		return fmt.Errorf("%w: %s", ErrUnknownElement, p.ID)
	}
	return c.Put(p.before, -1)
}

// setExtensionProperty writes key on the element's camunda:properties
// extension, creating it when needed and dropping it once empty.
func setExtensionProperty(el *Element, key, value string) {
	for i := range el.Extensions {
		ext := &el.Extensions[i]
		if ext.Name != "properties" || (ext.Space != nsCamunda && ext.Space != "") {
			continue
		}
		if value == "" {
			delete(ext.Attrs, key)
			if len(ext.Attrs) == 0 && ext.Text == "" {
				el.Extensions = append(el.Extensions[:i], el.Extensions[i+1:]...)
			}
			return
		}
		if ext.Attrs == nil {
			ext.Attrs = map[string]string{}
		}
		ext.Attrs[key] = value
		return
	}
	if value != "" {
		el.Extensions = append(el.Extensions, Extension{
			Space: nsCamunda,
			Name:  "properties",
			Attrs: map[string]string{key: value},
		})
	}
}

// connectionWaypoints routes from the right edge of src to the left edge of dst,
// with an orthogonal bend when they are not level.
func connectionWaypoints(src, dst Bounds) []Point {
	from := Point{X: src.X + src.Width, Y: src.Y + src.Height/2}
	to := Point{X: dst.X, Y: dst.Y + dst.Height/2}
	if from.Y == to.Y {
		return []Point{from, to}
	}
	midX := (from.X + to.X) / 2
	return []Point{from, {X: midX, Y: from.Y}, {X: midX, Y: to.Y}, to}
}
