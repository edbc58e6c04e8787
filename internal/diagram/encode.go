package diagram

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
)

// BPMN namespace URIs written into every saved document.
const (
	nsBPMN   = "http://www.omg.org/spec/BPMN/20100524/MODEL"
	nsBPMNDI = "http://www.omg.org/spec/BPMN/20100524/DI"
	nsDC     = "http://www.omg.org/spec/DD/20100524/DC"
	nsDI     = "http://www.omg.org/spec/DD/20100524/DI"
	nsXSI    = "http://www.w3.org/2001/XMLSchema-instance"
)

// localNames is the inverse of elementTypes.
var localNames = func() map[string]string {
	m := make(map[string]string, len(elementTypes))
	for local, typ := range elementTypes {
		m[typ] = local
	}
	return m
}()

type xmlDefinitions struct {
	XMLName         xml.Name   `xml:"bpmn:definitions"`
	XSI             string     `xml:"xmlns:xsi,attr"`
	BPMN            string     `xml:"xmlns:bpmn,attr"`
	BPMNDI          string     `xml:"xmlns:bpmndi,attr"`
	DC              string     `xml:"xmlns:dc,attr"`
	DI              string     `xml:"xmlns:di,attr"`
	Namespaces      []xml.Attr `xml:",any,attr"`
	ID              string     `xml:"id,attr"`
	TargetNamespace string     `xml:"targetNamespace,attr"`
	Process         xmlProcess `xml:"bpmn:process"`
	Extra           []opaqueXML
	Diagram         *xmlDiagram `xml:"bpmndi:BPMNDiagram,omitempty"`
	ExtraDiagrams   []opaqueXML
}

type xmlProcess struct {
	ID           string `xml:"id,attr"`
	Name         string `xml:"name,attr,omitempty"`
	IsExecutable bool   `xml:"isExecutable,attr"`
	Children     []xmlProcessChild
}

// xmlProcessChild is either a modelled element or a node kept from import.
type xmlProcessChild struct {
	element *xmlFlowElement
	opaque  *opaqueXML
}

func (c xmlProcessChild) MarshalXML(enc *xml.Encoder, _ xml.StartElement) error {
	if c.opaque != nil {
		return c.opaque.MarshalXML(enc, xml.StartElement{})
	}
	return enc.EncodeElement(c.element, xml.StartElement{Name: c.element.XMLName})
}

type xmlFlowElement struct {
	XMLName           xml.Name
	ID                string `xml:"id,attr"`
	Name              string `xml:"name,attr,omitempty"`
	Implementation    string `xml:"implementation,attr,omitempty"`
	DecisionRef       string `xml:"decisionRef,attr,omitempty"`
	DmnID             string `xml:"dmnId,attr,omitempty"`
	DmnTaskID         string `xml:"dmnTaskId,attr,omitempty"`
	SourceRef         string `xml:"sourceRef,attr,omitempty"`
	TargetRef         string `xml:"targetRef,attr,omitempty"`
	Documentation     []opaqueXML
	ExtensionElements *xmlExtensions `xml:"bpmn:extensionElements,omitempty"`
	Incoming          []string       `xml:"bpmn:incoming,omitempty"`
	Outgoing          []string       `xml:"bpmn:outgoing,omitempty"`
	Extra             []opaqueXML
}

type xmlExtensions struct {
	Values []xmlExtension
}

type xmlExtension struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Text    string     `xml:",chardata"`
}

type xmlDiagram struct {
	ID    string   `xml:"id,attr"`
	Plane xmlPlane `xml:"bpmndi:BPMNPlane"`
}

type xmlPlane struct {
	ID      string     `xml:"id,attr"`
	Element string     `xml:"bpmnElement,attr"`
	Shapes  []xmlShape `xml:"bpmndi:BPMNShape"`
	Edges   []xmlEdge  `xml:"bpmndi:BPMNEdge"`
	Extra   []opaqueXML
}

type xmlShape struct {
	ID              string    `xml:"id,attr"`
	Element         string    `xml:"bpmnElement,attr"`
	IsMarkerVisible bool      `xml:"isMarkerVisible,attr,omitempty"`
	Bounds          xmlBounds `xml:"dc:Bounds"`
}

type xmlBounds struct {
	X      string `xml:"x,attr"`
	Y      string `xml:"y,attr"`
	Width  string `xml:"width,attr"`
	Height string `xml:"height,attr"`
}

type xmlEdge struct {
	ID        string        `xml:"id,attr"`
	Element   string        `xml:"bpmnElement,attr"`
	Waypoints []xmlWaypoint `xml:"di:waypoint"`
}

type xmlWaypoint struct {
	X string `xml:"x,attr"`
	Y string `xml:"y,attr"`
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// encodeDocument writes doc as indented BPMN 2.0 XML with the conventional
// prefixes. Nodes kept from import are written back where they were found.
func encodeDocument(doc *document) (string, error) {
	scope, declared := baseScope(doc.namespaces)
	defs := xmlDefinitions{
		XSI:             nsXSI,
		BPMN:            nsBPMN,
		BPMNDI:          nsBPMNDI,
		DC:              nsDC,
		DI:              nsDI,
		Namespaces:      declared,
		ID:              orDefault(doc.DefinitionsID, "Definitions_1"),
		TargetNamespace: orDefault(doc.TargetNamespace, "http://bpmn.io/schema/bpmn"),
		Process: xmlProcess{
			ID:           orDefault(doc.ProcessID, "Process_1"),
			Name:         doc.ProcessName,
			IsExecutable: doc.IsExecutable,
		},
		Extra:         opaqueList(doc.rootExtras, scope),
		ExtraDiagrams: opaqueList(doc.diagramExtra, scope),
	}

	refs := &flowRefs{incoming: map[string][]string{}, outgoing: map[string][]string{}}
	live := map[string]bool{}
	for _, el := range doc.list() {
		live[el.ID] = true
		if el.IsFlow() {
			refs.outgoing[el.SourceRef] = append(refs.outgoing[el.SourceRef], el.ID)
			refs.incoming[el.TargetRef] = append(refs.incoming[el.TargetRef], el.ID)
		}
	}

	anchored := map[string][]*xmlNode{}
	var orphans []*xmlNode
	for _, o := range doc.opaque {
		if o.after != "" && !live[o.after] {
			orphans = append(orphans, o.node)
			continue
		}
		anchored[o.after] = append(anchored[o.after], o.node)
	}
	addOpaque := func(nodes []*xmlNode) {
		for _, n := range nodes {
			defs.Process.Children = append(defs.Process.Children, xmlProcessChild{
				opaque: &opaqueXML{node: n, scope: scope, refs: refs},
			})
		}
	}

	plane := xmlPlane{
		ID:      orDefault(doc.PlaneID, "BPMNPlane_1"),
		Element: orDefault(doc.PlaneElement, defs.Process.ID),
		Extra:   opaqueList(doc.diExtras, scope),
	}
	addOpaque(anchored[""])
	for _, el := range doc.list() {
		local, ok := localNames[el.Type]
		if !ok {
			return "", fmt.Errorf("diagram: cannot encode element type %q", el.Type)
		}
		fe := xmlFlowElement{
			XMLName:        xml.Name{Local: "bpmn:" + local},
			ID:             el.ID,
			Name:           el.Name,
			Implementation: el.Implementation,
			DecisionRef:    el.DecisionRef,
			DmnID:          el.DmnID,
			DmnTaskID:      el.DmnTaskID,
			SourceRef:      el.SourceRef,
			TargetRef:      el.TargetRef,
		}
		if !el.IsFlow() {
			fe.Incoming = refs.incoming[el.ID]
			fe.Outgoing = refs.outgoing[el.ID]
		}
		if len(el.Extensions) > 0 {
			fe.ExtensionElements = encodeExtensions(el.Extensions)
		}
		for _, n := range doc.extras[el.ID] {
			x := opaqueXML{node: n, scope: scope}
			if n.XMLName.Local == "documentation" {
				fe.Documentation = append(fe.Documentation, x)
			} else {
				fe.Extra = append(fe.Extra, x)
			}
		}
		defs.Process.Children = append(defs.Process.Children, xmlProcessChild{element: &fe})
		addOpaque(anchored[el.ID])

		switch {
		case el.Bounds != nil:
			plane.Shapes = append(plane.Shapes, xmlShape{
				ID:              el.ID + "_di",
				Element:         el.ID,
				IsMarkerVisible: el.Type == TypeExclusiveGateway,
				Bounds: xmlBounds{
					X:      formatFloat(el.Bounds.X),
					Y:      formatFloat(el.Bounds.Y),
					Width:  formatFloat(el.Bounds.Width),
					Height: formatFloat(el.Bounds.Height),
				},
			})
		case len(el.Waypoints) > 0:
			edge := xmlEdge{ID: el.ID + "_di", Element: el.ID}
			for _, wp := range el.Waypoints {
				edge.Waypoints = append(edge.Waypoints, xmlWaypoint{X: formatFloat(wp.X), Y: formatFloat(wp.Y)})
			}
			plane.Edges = append(plane.Edges, edge)
		}
	}
	addOpaque(orphans)
	if len(plane.Shapes) > 0 || len(plane.Edges) > 0 || len(plane.Extra) > 0 {
		defs.Diagram = &xmlDiagram{ID: orDefault(doc.DiagramID, "BPMNDiagram_1"), Plane: plane}
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(defs); err != nil {
		return "", fmt.Errorf("diagram: encode xml: %w", err)
	}
	buf.WriteString("\n")
	return buf.String(), nil
}

func opaqueList(nodes []*xmlNode, scope nsScope) []opaqueXML {
	out := make([]opaqueXML, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, opaqueXML{node: n, scope: scope})
	}
	return out
}

// encodeExtensions writes each extension back under its own namespace as a
// default xmlns declaration.
func encodeExtensions(exts []Extension) *xmlExtensions {
	out := &xmlExtensions{}
	for _, ext := range exts {
		x := xmlExtension{XMLName: xml.Name{Local: ext.Name}, Text: ext.Text}
		if ext.Space != "" {
			x.Attrs = append(x.Attrs, xml.Attr{Name: xml.Name{Local: "xmlns"}, Value: ext.Space})
		}
		for _, k := range sortedKeys(ext.Attrs) {
			x.Attrs = append(x.Attrs, xml.Attr{Name: xml.Name{Local: k}, Value: ext.Attrs[k]})
		}
		out.Values = append(out.Values, x)
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
