package generator

import (
	"regexp"
	"strings"
	"unicode"
)

type stepKind int

const (
	stepTask stepKind = iota
	stepDecision
	stepChoice
)

// step is one node of the described process. A choice step branches on
// Condition into Yes and No and joins again afterwards.
type step struct {
	Kind      stepKind
	Name      string
	TaskType  string
	Condition string
	Yes       []step
	No        []step
}

var (
	sentenceSplit = regexp.MustCompile(`[.;\n]+`)
	clauseSplit   = regexp.MustCompile(`(?i),?\s*\b(?:and then|after that|afterwards|then|next|finally)\b\s*|,\s*`)
	leadingWords  = regexp.MustCompile(`(?i)^(?:first(?:ly)?|then|next|finally|and|after that|afterwards)\b[,:]?\s*`)
	conditionAt   = regexp.MustCompile(`(?i)\bif\b`)
	conditional   = regexp.MustCompile(`(?i)^(?:if|in case)\s+(.+?)\s*,?\s*\bthen\b\s*(.+?)(?:\s*,?\s*\b(?:otherwise|else)\b,?\s*(.+))?$`)
)

// conditionalComma matches "if approved, pay the invoice" without a then.
var conditionalComma = regexp.MustCompile(`(?i)^(?:if|in case)\s+([^,]+),\s*(.+?)(?:\s*,?\s*\b(?:otherwise|else)\b,?\s*(.+))?$`)

var (
	decisionWords = []string{"decide", "decision", "evaluate", "determine", "rule", "score", "classify"}
	userWords     = []string{"review", "approve", "check", "verify", "inspect", "sign", "fill"}
	serviceWords  = []string{"send", "notify", "email", "call", "store", "save", "update", "charge", "process"}
)

// parseDescription splits a free-text process description into steps.
func parseDescription(text string) []step {
	var steps []step
	for _, sentence := range sentenceSplit.Split(text, -1) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		sentence = leadingWords.ReplaceAllString(sentence, "")
		if loc := conditionAt.FindStringIndex(sentence); loc != nil && loc[0] > 0 {
			steps = append(steps, parseClauses(sentence[:loc[0]])...)
			sentence = sentence[loc[0]:]
		}
		if m := matchConditional(sentence); m != nil {
			steps = append(steps, step{
				Kind:      stepChoice,
				Condition: cleanName(m[1]),
				Yes:       parseClauses(m[2]),
				No:        parseClauses(m[3]),
			})
			continue
		}
		steps = append(steps, parseClauses(sentence)...)
	}
	return steps
}

func matchConditional(sentence string) []string {
	if m := conditional.FindStringSubmatch(sentence); m != nil {
		return m
	}
	return conditionalComma.FindStringSubmatch(sentence)
}

func parseClauses(s string) []step {
	var steps []step
	for _, clause := range clauseSplit.Split(s, -1) {
		name := cleanName(leadingWords.ReplaceAllString(strings.TrimSpace(clause), ""))
		if name == "" {
			continue
		}
		steps = append(steps, taskStep(name))
	}
	return steps
}

func taskStep(name string) step {
	lower := strings.ToLower(name)
	switch {
	case containsAny(lower, decisionWords):
		return step{Kind: stepDecision, Name: name}
	case containsAny(lower, userWords):
		return step{Kind: stepTask, Name: name, TaskType: "user"}
	case containsAny(lower, serviceWords):
		return step{Kind: stepTask, Name: name, TaskType: "service"}
	default:
		return step{Kind: stepTask, Name: name}
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// cleanName trims punctuation and upper-cases the first letter.
func cleanName(s string) string {
	s = strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r) && r != ')' && r != '"'
	})
	if s == "" {
		return ""
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
