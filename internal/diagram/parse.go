package diagram

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNoProcess is returned when a document has no bpmn:process.
var ErrNoProcess = errors.New("diagram: no process found in definitions")

// xmlNode is a namespace-agnostic view of an XML element.
type xmlNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []xmlNode  `xml:",any"`
	Text     string     `xml:",chardata"`
}

func (n *xmlNode) attr(local string) string {
	for _, a := range n.Attrs {
		if a.Name.Local == local && a.Name.Space != "xmlns" {
			return a.Value
		}
	}
	return ""
}

func (n *xmlNode) children(local string) []*xmlNode {
	var out []*xmlNode
	for i := range n.Children {
		if n.Children[i].XMLName.Local == local {
			out = append(out, &n.Children[i])
		}
	}
	return out
}

func (n *xmlNode) child(local string) *xmlNode {
	for i := range n.Children {
		if n.Children[i].XMLName.Local == local {
			return &n.Children[i]
		}
	}
	return nil
}

// document is the parsed form of a BPMN definitions file.
type document struct {
	DefinitionsID   string
	TargetNamespace string
	ProcessID       string
	ProcessName     string
	IsExecutable    bool
	DiagramID       string
	PlaneID         string
	PlaneElement    string

	order    []string
	elements map[string]*Element

	// Parts of the file the engine does not model, written back unchanged.
	namespaces   map[string]string
	opaque       []opaqueChild
	extras       map[string][]*xmlNode
	rootExtras   []*xmlNode
	diagramExtra []*xmlNode
	diExtras     []*xmlNode
	reserved     map[string]bool
}

func newDocument() *document {
	return &document{
		elements: map[string]*Element{},
		extras:   map[string][]*xmlNode{},
		reserved: map[string]bool{},
	}
}

func (d *document) add(el *Element) {
	if _, exists := d.elements[el.ID]; !exists {
		d.order = append(d.order, el.ID)
	}
	d.elements[el.ID] = el
}

func (d *document) insert(el *Element, index int) {
	if _, exists := d.elements[el.ID]; exists {
		d.elements[el.ID] = el
		return
	}
	if index < 0 || index > len(d.order) {
		index = len(d.order)
	}
	d.order = append(d.order, "")
	copy(d.order[index+1:], d.order[index:])
	d.order[index] = el.ID
	d.elements[el.ID] = el
}

func (d *document) remove(id string) (*Element, int) {
	el, ok := d.elements[id]
	if !ok {
		return nil, -1
	}
	delete(d.elements, id)
	for i, oid := range d.order {
		if oid == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			return el, i
		}
	}
	return el, -1
}

func (d *document) list() []*Element {
	out := make([]*Element, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.elements[id])
	}
	return out
}

// elementTypes maps BPMN local names onto engine element types.
var elementTypes = map[string]string{
	"startEvent":             TypeStartEvent,
	"endEvent":               TypeEndEvent,
	"intermediateCatchEvent": TypeIntermediate,
	"task":                   TypeTask,
	"userTask":               TypeUserTask,
	"serviceTask":            TypeServiceTask,
	"scriptTask":             TypeScriptTask,
	"businessRuleTask":       TypeBusinessRuleTask,
	"exclusiveGateway":       TypeExclusiveGateway,
	"parallelGateway":        TypeParallelGateway,
	"inclusiveGateway":       TypeInclusiveGateway,
	"sequenceFlow":           TypeSequenceFlow,
}

// parseDocument decodes BPMN 2.0 XML. Nodes the engine does not model are
// kept as they are, reported as warnings and written back by encodeDocument.
func parseDocument(data string) (*document, []string, error) {
	var root xmlNode
	if err := xml.Unmarshal([]byte(data), &root); err != nil {
		return nil, nil, fmt.Errorf("diagram: parse xml: %w", err)
	}
	if root.XMLName.Local != "definitions" {
		return nil, nil, fmt.Errorf("diagram: unexpected root element %q", root.XMLName.Local)
	}

	doc := newDocument()
	doc.DefinitionsID = root.attr("id")
	doc.TargetNamespace = root.attr("targetNamespace")
	doc.namespaces = namespaceDecls(&root)

	proc := root.child("process")
	if proc == nil {
		return nil, nil, ErrNoProcess
	}
	doc.ProcessID = proc.attr("id")
	doc.ProcessName = proc.attr("name")
	doc.IsExecutable = proc.attr("isExecutable") == "true"

	var warnings []string
	var dia *xmlNode
	for i := range root.Children {
		n := &root.Children[i]
		switch {
		case n == proc:
		case n.XMLName.Local == "BPMNDiagram" && dia == nil:
			dia = n
		case n.XMLName.Local == "BPMNDiagram":
			doc.diagramExtra = append(doc.diagramExtra, n)
			collectIDs(n, doc.reserved)
		default:
			doc.rootExtras = append(doc.rootExtras, n)
			collectIDs(n, doc.reserved)
		}
	}

	after := ""
	for i := range proc.Children {
		n := &proc.Children[i]
		typ, ok := elementTypes[n.XMLName.Local]
		id := n.attr("id")
		if !ok || id == "" {
			doc.opaque = append(doc.opaque, opaqueChild{after: after, node: n})
			collectIDs(n, doc.reserved)
			switch {
			case !ok && n.XMLName.Local != "extensionElements" && n.XMLName.Local != "documentation":
				warnings = append(warnings, fmt.Sprintf("unsupported element <%s id=%q> kept read-only", n.XMLName.Local, id))
			case ok:
				warnings = append(warnings, fmt.Sprintf("<%s> without id kept read-only", n.XMLName.Local))
			}
			continue
		}
		doc.add(parseElement(n, typ))
		if extra := unmodelledChildren(n); len(extra) > 0 {
			doc.extras[id] = extra
		}
		after = id
	}

	if dia != nil {
		doc.DiagramID = dia.attr("id")
		if plane := dia.child("BPMNPlane"); plane != nil {
			doc.PlaneID = plane.attr("id")
			doc.PlaneElement = plane.attr("bpmnElement")
			warnings = append(warnings, applyDI(doc, plane)...)
		}
	}

	return doc, warnings, nil
}

// unmodelledChildren returns the children of a modelled element that Element
// has no field for, such as documentation or event definitions.
func unmodelledChildren(n *xmlNode) []*xmlNode {
	var out []*xmlNode
	for i := range n.Children {
		switch n.Children[i].XMLName.Local {
		case "extensionElements", "incoming", "outgoing":
		default:
			out = append(out, &n.Children[i])
		}
	}
	return out
}

func parseElement(n *xmlNode, typ string) *Element {
	el := &Element{
		ID:             n.attr("id"),
		Type:           typ,
		Name:           n.attr("name"),
		Implementation: n.attr("implementation"),
		DecisionRef:    n.attr("decisionRef"),
		DmnID:          n.attr("dmnId"),
		DmnTaskID:      n.attr("dmnTaskId"),
		SourceRef:      n.attr("sourceRef"),
		TargetRef:      n.attr("targetRef"),
	}
	if ext := n.child("extensionElements"); ext != nil {
		for i := range ext.Children {
			c := &ext.Children[i]
			x := Extension{
				Space: c.XMLName.Space,
				Name:  c.XMLName.Local,
				Attrs: make(map[string]string, len(c.Attrs)),
				Text:  strings.TrimSpace(c.Text),
			}
			for _, a := range c.Attrs {
				if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
					continue
				}
				x.Attrs[a.Name.Local] = a.Value
			}
			el.Extensions = append(el.Extensions, x)
		}
	}
	return el
}

func applyDI(doc *document, plane *xmlNode) []string {
	var warnings []string
	for _, shape := range plane.children("BPMNShape") {
		el, ok := doc.elements[shape.attr("bpmnElement")]
		if !ok && doc.reserved[shape.attr("bpmnElement")] {
			doc.diExtras = append(doc.diExtras, shape)
			continue
		}
		if !ok {
			warnings = append(warnings, fmt.Sprintf("shape %q references unknown element", shape.attr("id")))
			continue
		}
		if b := shape.child("Bounds"); b != nil {
			el.Bounds = &Bounds{
				X:      parseFloat(b.attr("x")),
				Y:      parseFloat(b.attr("y")),
				Width:  parseFloat(b.attr("width")),
				Height: parseFloat(b.attr("height")),
			}
		}
	}
	for _, edge := range plane.children("BPMNEdge") {
		el, ok := doc.elements[edge.attr("bpmnElement")]
		if !ok && doc.reserved[edge.attr("bpmnElement")] {
			doc.diExtras = append(doc.diExtras, edge)
			continue
		}
		if !ok {
			warnings = append(warnings, fmt.Sprintf("edge %q references unknown element", edge.attr("id")))
			continue
		}
		for _, wp := range edge.children("waypoint") {
			el.Waypoints = append(el.Waypoints, Point{X: parseFloat(wp.attr("x")), Y: parseFloat(wp.attr("y"))})
		}
	}
	return warnings
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
