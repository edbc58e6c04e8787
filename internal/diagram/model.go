package diagram

import (
	"strings"
)

// Element types as reported by the engine, in the bpmn-js "bpmn:Type" form.
const (
	TypeProcess          = "bpmn:Process"
	TypeStartEvent       = "bpmn:StartEvent"
	TypeEndEvent         = "bpmn:EndEvent"
	TypeIntermediate     = "bpmn:IntermediateCatchEvent"
	TypeTask             = "bpmn:Task"
	TypeUserTask         = "bpmn:UserTask"
	TypeServiceTask      = "bpmn:ServiceTask"
	TypeScriptTask       = "bpmn:ScriptTask"
	TypeBusinessRuleTask = "bpmn:BusinessRuleTask"
	TypeExclusiveGateway = "bpmn:ExclusiveGateway"
	TypeParallelGateway  = "bpmn:ParallelGateway"
	TypeInclusiveGateway = "bpmn:InclusiveGateway"
	TypeSequenceFlow     = "bpmn:SequenceFlow"
)

// DefaultDecisionID is used when a decision task carries no decision reference.
const DefaultDecisionID = "dmn-1"

// Event names fired by engines.
const (
	EventElementClick = "element.click"
	EventImportDone   = "import.done"
)

// Bounds is a shape rectangle in diagram coordinates.
type Bounds struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Center returns the midpoint of the rectangle.
func (b Bounds) Center() Point {
	return Point{X: b.X + b.Width/2, Y: b.Y + b.Height/2}
}

// Contains reports whether p lies inside b.
func (b Bounds) Contains(p Point) bool {
	return p.X >= b.X && p.X <= b.X+b.Width && p.Y >= b.Y && p.Y <= b.Y+b.Height
}

// Point is a diagram coordinate.
type Point struct {
	X float64
	Y float64
}

// Extension is one child of bpmn:extensionElements.
type Extension struct {
	Space string
	Name  string
	Attrs map[string]string
	Text  string
}

// value returns the attribute key, or the element text when the element itself is named key.
func (x Extension) value(key string) string {
	if v := x.Attrs[key]; v != "" {
		return v
	}
	if x.Name == key {
		return x.Text
	}
	return ""
}

// Element is a flow node or sequence flow together with its diagram interchange data.
type Element struct {
	ID             string
	Type           string
	Name           string
	Implementation string
	DecisionRef    string
	DmnID          string
	DmnTaskID      string
	Extensions     []Extension

	SourceRef string
	TargetRef string

	Bounds    *Bounds
	Waypoints []Point
}

// IsFlow reports whether the element is a sequence flow.
func (e *Element) IsFlow() bool {
	return e.Type == TypeSequenceFlow
}

// IsEvent reports whether the element is a start, end or intermediate event.
func (e *Element) IsEvent() bool {
	return strings.HasSuffix(e.Type, "Event")
}

// IsGateway reports whether the element is a gateway.
func (e *Element) IsGateway() bool {
	return strings.HasSuffix(e.Type, "Gateway")
}

// IsTask reports whether the element is an activity.
func (e *Element) IsTask() bool {
	return strings.HasSuffix(e.Type, "Task")
}

func (e *Element) clone() *Element {
	c := *e
	if e.Bounds != nil {
		b := *e.Bounds
		c.Bounds = &b
	}
	c.Waypoints = append([]Point(nil), e.Waypoints...)
	c.Extensions = make([]Extension, 0, len(e.Extensions))
	for _, ext := range e.Extensions {
		attrs := make(map[string]string, len(ext.Attrs))
		for k, v := range ext.Attrs {
			attrs[k] = v
		}
		ext.Attrs = attrs
		c.Extensions = append(c.Extensions, ext)
	}
	return &c
}

// IsDecisionTask reports whether clicking the element should open a DMN decision.
func IsDecisionTask(e *Element) bool {
	if e == nil {
		return false
	}
	return e.Type == TypeBusinessRuleTask || e.Implementation == "dmn"
}

// ResolveDecisionID returns the decision identifier attached to el.
// The element's own decisionRef, dmnId and dmnTaskId are checked in that order,
// then the extension elements (dmnId, decisionRef, decisionRefId); when none is
// set DefaultDecisionID is returned.
func ResolveDecisionID(el *Element) string {
	if el == nil {
		return DefaultDecisionID
	}
	for _, id := range []string{el.DecisionRef, el.DmnID, el.DmnTaskID} {
		if id != "" {
			return id
		}
	}
	for _, ext := range el.Extensions {
		for _, key := range []string{"dmnId", "decisionRef", "decisionRefId"} {
			if v := ext.value(key); v != "" {
				return v
			}
		}
	}
	return DefaultDecisionID
}
