package diagram

import (
	"encoding/xml"
	"strings"
)

const nsXML = "http://www.w3.org/XML/1998/namespace"

// opaqueChild is a process child the engine does not model. It is written
// back after the element it followed on import.
type opaqueChild struct {
	after string
	node  *xmlNode
}

// nsScope maps namespace URIs onto the prefixes used when writing.
type nsScope map[string]string

func (s nsScope) with(uri, prefix string) nsScope {
	out := make(nsScope, len(s)+1)
	for k, v := range s {
		out[k] = v
	}
	out[uri] = prefix
	return out
}

func (s nsScope) qualify(name xml.Name) (string, bool) {
	if name.Space == "" {
		return name.Local, true
	}
	p, ok := s[name.Space]
	if !ok {
		return name.Local, false
	}
	if p == "" {
		return name.Local, true
	}
	return p + ":" + name.Local, true
}

// baseScope returns the prefixes written on bpmn:definitions. extra holds the
// declarations beyond the fixed BPMN ones, sorted by prefix.
func baseScope(declared map[string]string) (nsScope, []xml.Attr) {
	scope := nsScope{
		nsBPMN:   "bpmn",
		nsBPMNDI: "bpmndi",
		nsDC:     "dc",
		nsDI:     "di",
		nsXSI:    "xsi",
		nsXML:    "xml",
	}
	taken := map[string]bool{}
	for _, p := range scope {
		taken[p] = true
	}
	var extra []xml.Attr
	for _, prefix := range sortedKeys(declared) {
		uri := declared[prefix]
		if _, ok := scope[uri]; ok || taken[prefix] {
			continue
		}
		scope[uri] = prefix
		taken[prefix] = true
		extra = append(extra, xml.Attr{Name: xml.Name{Local: "xmlns:" + prefix}, Value: uri})
	}
	return scope, extra
}

// flowRefs holds the incoming and outgoing flow ids of every flow node.
type flowRefs struct {
	incoming map[string][]string
	outgoing map[string][]string
}

// opaqueXML writes an unmodelled node back out. When refs is set the node's
// bpmn:incoming and bpmn:outgoing children are rebuilt from the current flows.
type opaqueXML struct {
	node  *xmlNode
	scope nsScope
	refs  *flowRefs
}

func (o opaqueXML) MarshalXML(enc *xml.Encoder, _ xml.StartElement) error {
	return encodeNode(enc, o.node, o.scope, o.refs)
}

func encodeNode(enc *xml.Encoder, n *xmlNode, scope nsScope, refs *flowRefs) error {
	var attrs []xml.Attr
	for _, a := range n.Attrs {
		if a.Name.Space == "xmlns" {
			if _, ok := scope[a.Value]; !ok {
				scope = scope.with(a.Value, a.Name.Local)
				attrs = append(attrs, xml.Attr{Name: xml.Name{Local: "xmlns:" + a.Name.Local}, Value: a.Value})
			}
		}
	}
	for _, a := range n.Attrs {
		if a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns") {
			continue
		}
		name, _ := scope.qualify(a.Name)
		attrs = append(attrs, xml.Attr{Name: xml.Name{Local: name}, Value: a.Value})
	}

	name, ok := scope.qualify(n.XMLName)
	if !ok {
		attrs = append([]xml.Attr{{Name: xml.Name{Local: "xmlns"}, Value: n.XMLName.Space}}, attrs...)
	}
	start := xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}

	text := n.Text
	if len(n.Children) > 0 {
		text = strings.TrimSpace(text)
	}
	if text != "" {
		if err := enc.EncodeToken(xml.CharData(text)); err != nil {
			return err
		}
	}

	id := n.attr("id")
	wroteRefs := refs == nil
	for i := range n.Children {
		c := &n.Children[i]
		local := c.XMLName.Local
		if refs != nil && (local == "incoming" || local == "outgoing") {
			continue
		}
		if !wroteRefs && local != "documentation" && local != "extensionElements" {
			if err := encodeRefs(enc, refs, id); err != nil {
				return err
			}
			wroteRefs = true
		}
		if err := encodeNode(enc, c, scope, nil); err != nil {
			return err
		}
	}
	if !wroteRefs {
		if err := encodeRefs(enc, refs, id); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

func encodeRefs(enc *xml.Encoder, refs *flowRefs, id string) error {
	for _, r := range []struct {
		local string
		ids   []string
	}{{"bpmn:incoming", refs.incoming[id]}, {"bpmn:outgoing", refs.outgoing[id]}} {
		for _, flow := range r.ids {
			if err := enc.EncodeElement(flow, xml.StartElement{Name: xml.Name{Local: r.local}}); err != nil {
				return err
			}
		}
	}
	return nil
}

// collectIDs records the id of n and of every descendant.
func collectIDs(n *xmlNode, into map[string]bool) {
	if id := n.attr("id"); id != "" {
		into[id] = true
	}
	for i := range n.Children {
		collectIDs(&n.Children[i], into)
	}
}

// namespaceDecls returns the prefixed namespace declarations of n.
func namespaceDecls(n *xmlNode) map[string]string {
	out := map[string]string{}
	for _, a := range n.Attrs {
		if a.Name.Space == "xmlns" {
			out[a.Name.Local] = a.Value
		}
	}
	return out
}
