package dmn

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid is returned for documents that are not DMN definitions.
var ErrInvalid = errors.New("invalid DMN document")

type xmlText struct {
	Text string `xml:"text"`
}

type xmlDefinitions struct {
	XMLName   xml.Name      `xml:"definitions"`
	ID        string        `xml:"id,attr"`
	Name      string        `xml:"name,attr"`
	Namespace string        `xml:"namespace,attr"`
	Decisions []xmlDecision `xml:"decision"`
}

type xmlRequirement struct {
	RequiredDecision struct {
		Href string `xml:"href,attr"`
	} `xml:"requiredDecision"`
}

type xmlDecision struct {
	ID           string           `xml:"id,attr"`
	Name         string           `xml:"name,attr"`
	Requirements []xmlRequirement `xml:"informationRequirement"`
	Variable     *struct {
		Name    string `xml:"name,attr"`
		TypeRef string `xml:"typeRef,attr"`
	} `xml:"variable"`
	Table   *xmlDecisionTable `xml:"decisionTable"`
	Literal *struct {
		ID   string `xml:"id,attr"`
		Text string `xml:"text"`
	} `xml:"literalExpression"`
}

type xmlDecisionTable struct {
	ID          string `xml:"id,attr"`
	HitPolicy   string `xml:"hitPolicy,attr"`
	Aggregation string `xml:"aggregation,attr"`
	Inputs      []struct {
		ID         string `xml:"id,attr"`
		Label      string `xml:"label,attr"`
		Expression struct {
			TypeRef string `xml:"typeRef,attr"`
			Text    string `xml:"text"`
		} `xml:"inputExpression"`
	} `xml:"input"`
	Outputs []struct {
		ID      string `xml:"id,attr"`
		Label   string `xml:"label,attr"`
		Name    string `xml:"name,attr"`
		TypeRef string `xml:"typeRef,attr"`
	} `xml:"output"`
	Rules []struct {
		ID          string    `xml:"id,attr"`
		Description string    `xml:"description"`
		Inputs      []xmlText `xml:"inputEntry"`
		Outputs     []xmlText `xml:"outputEntry"`
	} `xml:"rule"`
}

// Parse reads a DMN document.
func Parse(data string) (*Definitions, error) {
	var raw xmlDefinitions
	if err := xml.Unmarshal([]byte(data), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	defs := &Definitions{ID: raw.ID, Name: raw.Name, Namespace: raw.Namespace}
	for _, d := range raw.Decisions {
		dec := Decision{ID: d.ID, Name: d.Name}
		for _, req := range d.Requirements {
			if href := strings.TrimPrefix(req.RequiredDecision.Href, "#"); href != "" {
				dec.Requires = append(dec.Requires, href)
			}
		}
		switch {
		case d.Table != nil:
			table, err := convertTable(d.ID, d.Table)
			if err != nil {
				return nil, err
			}
			dec.Table = table
		case d.Literal != nil:
			lit := &LiteralExpression{ID: d.Literal.ID, Text: strings.TrimSpace(d.Literal.Text)}
			if d.Variable != nil {
				lit.Variable = d.Variable.Name
				lit.TypeRef = d.Variable.TypeRef
			}
			dec.Literal = lit
		}
		defs.Decisions = append(defs.Decisions, dec)
	}
	return defs, nil
}

func convertTable(decisionID string, t *xmlDecisionTable) (*DecisionTable, error) {
	table := &DecisionTable{
		ID:          t.ID,
		HitPolicy:   strings.ToUpper(strings.TrimSpace(t.HitPolicy)),
		Aggregation: t.Aggregation,
	}
	if table.HitPolicy == "" {
		table.HitPolicy = HitPolicyUnique
	}
	for _, in := range t.Inputs {
		table.Inputs = append(table.Inputs, Input{
			ID:         in.ID,
			Label:      in.Label,
			Expression: strings.TrimSpace(in.Expression.Text),
			TypeRef:    in.Expression.TypeRef,
		})
	}
	for _, out := range t.Outputs {
		table.Outputs = append(table.Outputs, Output{ID: out.ID, Label: out.Label, Name: out.Name, TypeRef: out.TypeRef})
	}
	for _, r := range t.Rules {
		if len(r.Inputs) != len(table.Inputs) || len(r.Outputs) != len(table.Outputs) {
			return nil, fmt.Errorf("%w: rule %s of decision %s has %d/%d entries, table has %d/%d columns",
				ErrInvalid, r.ID, decisionID, len(r.Inputs), len(r.Outputs), len(table.Inputs), len(table.Outputs))
		}
		rule := Rule{ID: r.ID, Description: strings.TrimSpace(r.Description)}
		for _, e := range r.Inputs {
			rule.Inputs = append(rule.Inputs, entryText(e.Text))
		}
		for _, e := range r.Outputs {
			rule.Outputs = append(rule.Outputs, entryText(e.Text))
		}
		table.Rules = append(table.Rules, rule)
	}
	return table, nil
}

// entryText normalises an entry; an empty input entry means "any" and is shown as "-".
func entryText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "-"
	}
	return s
}
