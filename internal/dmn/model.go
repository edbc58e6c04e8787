// Package dmn reads DMN 1.3 decision models and serves the decision catalog.
package dmn

// HitPolicy values of a decision table. UNIQUE is the DMN default.
const (
	HitPolicyUnique      = "UNIQUE"
	HitPolicyFirst       = "FIRST"
	HitPolicyPriority    = "PRIORITY"
	HitPolicyAny         = "ANY"
	HitPolicyCollect     = "COLLECT"
	HitPolicyRuleOrder   = "RULE ORDER"
	HitPolicyOutputOrder = "OUTPUT ORDER"
)

// Definitions is the root of a DMN document.
type Definitions struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Namespace string     `json:"namespace"`
	Decisions []Decision `json:"decisions"`
}

// Decision returns the decision with the given id.
func (d *Definitions) Decision(id string) (*Decision, bool) {
	for i := range d.Decisions {
		if d.Decisions[i].ID == id {
			return &d.Decisions[i], true
		}
	}
	return nil, false
}

// Decision holds either a decision table or a literal expression.
type Decision struct {
	ID       string             `json:"id"`
	Name     string             `json:"name"`
	Requires []string           `json:"requires,omitempty"`
	Table    *DecisionTable     `json:"table,omitempty"`
	Literal  *LiteralExpression `json:"literal,omitempty"`
}

// DecisionTable is the tabular decision logic.
type DecisionTable struct {
	ID          string   `json:"id"`
	HitPolicy   string   `json:"hitPolicy"`
	Aggregation string   `json:"aggregation,omitempty"`
	Inputs      []Input  `json:"inputs"`
	Outputs     []Output `json:"outputs"`
	Rules       []Rule   `json:"rules"`
}

// Input is an input column; Expression is the FEEL input expression.
type Input struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	Expression string `json:"expression"`
	TypeRef    string `json:"typeRef"`
}

// Output is an output column.
type Output struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Name    string `json:"name"`
	TypeRef string `json:"typeRef"`
}

// Rule is one row. Inputs and Outputs line up with the table columns.
type Rule struct {
	ID          string   `json:"id"`
	Inputs      []string `json:"inputs"`
	Outputs     []string `json:"outputs"`
	Description string   `json:"description,omitempty"`
}

// LiteralExpression is a single FEEL expression bound to a variable.
type LiteralExpression struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Variable string `json:"variable"`
	TypeRef  string `json:"typeRef"`
}
