package diagram

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrDestroyed is returned by every call on an engine after Destroy.
	ErrDestroyed = errors.New("diagram: engine destroyed")
	// ErrNotImported is returned when saving before any document was imported.
	ErrNotImported = errors.New("diagram: no diagram imported")
	// ErrUnknownElement is returned when an operation names an element that does not exist.
	ErrUnknownElement = errors.New("diagram: unknown element")
)

// Zoom limits and the default viewport size.
const (
	MinZoom = 0.2
	MaxZoom = 4.0

	DefaultViewportWidth  = 1000
	DefaultViewportHeight = 600
)

// Handler receives engine events. el is nil for document level events.
type Handler func(el *Element)

// Engine is the narrow surface the viewer and modeler need from a diagram engine.
type Engine interface {
	ImportXML(xml string) ([]string, error)
	SaveXML() (string, error)
	SaveSVG() (string, error)
	Zoom() float64
	ZoomTo(level float64) error
	FitViewport() error
	CenterOn(id string) error
	Highlight(id string) bool
	ClearHighlights()
	Highlighted() []string
	Element(id string) (*Element, bool)
	Elements() []*Element
	On(event string, h Handler)
	Fire(event string, el *Element)
	Destroy()
}

// Canvas is an Engine whose document can be edited in place.
type Canvas interface {
	Engine
	// Put inserts el at index in document order, or replaces the element with the same id.
	Put(el *Element, index int) error
	// Delete removes an element and returns it with its former index.
	Delete(id string) (*Element, int, error)
}

// EngineOption configures a BPMNEngine.
type EngineOption func(*BPMNEngine)

// WithViewport sets the viewport size used by FitViewport.
func WithViewport(width, height float64) EngineOption {
	return func(e *BPMNEngine) {
		if width > 0 && height > 0 {
			e.width, e.height = width, height
		}
	}
}

// WithElementLink wraps each rendered element whose link is non-empty in an anchor.
func WithElementLink(link func(el *Element) string) EngineOption {
	return func(e *BPMNEngine) { e.link = link }
}

// BPMNEngine renders and edits BPMN 2.0 documents in memory.
// It is not safe for concurrent use.
type BPMNEngine struct {
	doc       *document
	zoom      float64
	origin    Point
	width     float64
	height    float64
	highlight map[string]bool
	handlers  map[string][]Handler
	link      func(el *Element) string
	destroyed bool
}

// NewEngine returns an empty engine.
func NewEngine(opts ...EngineOption) *BPMNEngine {
	e := &BPMNEngine{
		zoom:      1,
		width:     DefaultViewportWidth,
		height:    DefaultViewportHeight,
		highlight: map[string]bool{},
		handlers:  map[string][]Handler{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ImportXML replaces the current document. Highlights are cleared.
func (e *BPMNEngine) ImportXML(xml string) ([]string, error) {
	if e.destroyed {
		return nil, ErrDestroyed
	}
	doc, warnings, err := parseDocument(xml)
	if err != nil {
		return nil, err
	}
	e.doc = doc
	e.highlight = map[string]bool{}
	e.zoom = 1
	e.origin = Point{}
	e.Fire(EventImportDone, nil)
	return warnings, nil
}

func (e *BPMNEngine) SaveXML() (string, error) {
	if e.destroyed {
		return "", ErrDestroyed
	}
	if e.doc == nil {
		return "", ErrNotImported
	}
	return encodeDocument(e.doc)
}

func (e *BPMNEngine) SaveSVG() (string, error) {
	if e.destroyed {
		return "", ErrDestroyed
	}
	if e.doc == nil {
		return "", ErrNotImported
	}
	return renderSVG(e.doc.list(), svgOptions{
		zoom:      e.zoom,
		highlight: e.highlight,
		link:      e.link,
	}), nil
}

func (e *BPMNEngine) Zoom() float64 {
	return e.zoom
}

// ZoomTo sets the zoom level, clamped to [MinZoom, MaxZoom].
func (e *BPMNEngine) ZoomTo(level float64) error {
	if e.destroyed {
		return ErrDestroyed
	}
	if math.IsNaN(level) || level <= 0 {
		return fmt.Errorf("diagram: invalid zoom level %v", level)
	}
	e.zoom = math.Max(MinZoom, math.Min(MaxZoom, level))
	return nil
}

// FitViewport zooms so the whole diagram fits the viewport, never above 1.
func (e *BPMNEngine) FitViewport() error {
	if e.destroyed {
		return ErrDestroyed
	}
	if e.doc == nil {
		return ErrNotImported
	}
	box, ok := boundingBox(e.doc.list())
	if !ok {
		e.zoom, e.origin = 1, Point{}
		return nil
	}
	scale := math.Min(e.width/box.Width, e.height/box.Height)
	e.zoom = math.Max(MinZoom, math.Min(1, scale))
	e.origin = Point{X: box.X, Y: box.Y}
	return nil
}

// CenterOn moves the viewport origin so the element sits in the middle.
func (e *BPMNEngine) CenterOn(id string) error {
	if e.destroyed {
		return ErrDestroyed
	}
	el, ok := e.Element(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownElement, id)
	}
	var c Point
	switch {
	case el.Bounds != nil:
		c = el.Bounds.Center()
	case len(el.Waypoints) > 0:
		c = el.Waypoints[len(el.Waypoints)/2]
	default:
		return nil
	}
	e.origin = Point{X: c.X - e.width/(2*e.zoom), Y: c.Y - e.height/(2*e.zoom)}
	return nil
}

// Origin returns the top-left corner of the viewport in diagram coordinates.
func (e *BPMNEngine) Origin() Point {
	return e.origin
}

// Highlight marks an element. It reports false when the element is unknown.
func (e *BPMNEngine) Highlight(id string) bool {
	if e.destroyed || e.doc == nil {
		return false
	}
	if _, ok := e.doc.elements[id]; !ok {
		return false
	}
	e.highlight[id] = true
	return true
}

func (e *BPMNEngine) ClearHighlights() {
	e.highlight = map[string]bool{}
}

func (e *BPMNEngine) Highlighted() []string {
	if e.doc == nil {
		return nil
	}
	var out []string
	for _, id := range e.doc.order {
		if e.highlight[id] {
			out = append(out, id)
		}
	}
	return out
}

// Element returns a copy of the element with the given id.
func (e *BPMNEngine) Element(id string) (*Element, bool) {
	if e.destroyed || e.doc == nil {
		return nil, false
	}
	el, ok := e.doc.elements[id]
	if !ok {
		return nil, false
	}
	return el.clone(), true
}

// Elements returns copies of all elements in document order.
func (e *BPMNEngine) Elements() []*Element {
	if e.destroyed || e.doc == nil {
		return nil
	}
	list := e.doc.list()
	out := make([]*Element, 0, len(list))
	for _, el := range list {
		out = append(out, el.clone())
	}
	return out
}

func (e *BPMNEngine) On(event string, h Handler) {
	if e.destroyed || h == nil {
		return
	}
	e.handlers[event] = append(e.handlers[event], h)
}

func (e *BPMNEngine) Fire(event string, el *Element) {
	if e.destroyed {
		return
	}
	for _, h := range e.handlers[event] {
		h(el)
	}
}

// Destroy drops the document and every registered handler.
func (e *BPMNEngine) Destroy() {
	e.destroyed = true
	e.doc = nil
	e.handlers = nil
	e.highlight = map[string]bool{}
}

func (e *BPMNEngine) Put(el *Element, index int) error {
	if e.destroyed {
		return ErrDestroyed
	}
	if e.doc == nil {
		return ErrNotImported
	}
	if el == nil || el.ID == "" {
		return errors.New("diagram: element id is required")
	}
	if _, ok := localNames[el.Type]; !ok {
		return fmt.Errorf("diagram: unsupported element type %q", el.Type)
	}
	if e.doc.reserved[el.ID] {
		return fmt.Errorf("diagram: id %q belongs to a read-only element", el.ID)
	}
	e.doc.insert(el.clone(), index)
	return nil
}

func (e *BPMNEngine) Delete(id string) (*Element, int, error) {
	if e.destroyed {
		return nil, -1, ErrDestroyed
	}
	if e.doc == nil {
		return nil, -1, ErrNotImported
	}
	el, idx := e.doc.remove(id)
	if el == nil {
		return nil, -1, fmt.Errorf("%w: %s", ErrUnknownElement, id)
	}
	delete(e.highlight, id)
	return el, idx, nil
}

// boundingBox returns the rectangle enclosing every shape and waypoint.
func boundingBox(elements []*Element) (Bounds, bool) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	grow := func(x, y float64) {
		minX, minY = math.Min(minX, x), math.Min(minY, y)
		maxX, maxY = math.Max(maxX, x), math.Max(maxY, y)
	}
	for _, el := range elements {
		if el.Bounds != nil {
			grow(el.Bounds.X, el.Bounds.Y)
			grow(el.Bounds.X+el.Bounds.Width, el.Bounds.Y+el.Bounds.Height)
		}
		for _, wp := range el.Waypoints {
			grow(wp.X, wp.Y)
		}
	}
	if math.IsInf(minX, 1) || maxX <= minX || maxY <= minY {
		return Bounds{}, false
	}
	return Bounds{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}, true
}
