package services

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/vicodes/process-flow-canvas-dream/internal/diagram"
	"github.com/vicodes/process-flow-canvas-dream/pkg/models"
)

// FilterInstances applies the process name, version and free-text predicates.
// Each predicate is independent, so the order they are applied in does not matter.
func FilterInstances(instances []models.ProcessInstance, f models.Filter) []models.ProcessInstance {
	out := make([]models.ProcessInstance, 0, len(instances))
	for _, inst := range instances {
		if matchesFilter(inst, f) {
			out = append(out, inst)
		}
	}
	return out
}

// Predicates returns the filter as separate predicates, one per set field.
func Predicates(f models.Filter) []func(models.ProcessInstance) bool {
	var preds []func(models.ProcessInstance) bool
	if f.Process != "" {
		preds = append(preds, func(i models.ProcessInstance) bool { return i.ProcessName == f.Process })
	}
	if f.Version != "" {
		preds = append(preds, func(i models.ProcessInstance) bool { return i.ProcessVersion == f.Version })
	}
	if f.SearchText != "" {
		needle := strings.ToLower(f.SearchText)
		preds = append(preds, func(i models.ProcessInstance) bool {
			return strings.Contains(strings.ToLower(i.ID), needle) ||
				strings.Contains(strings.ToLower(i.ProcessName), needle)
		})
	}
	return preds
}

func matchesFilter(inst models.ProcessInstance, f models.Filter) bool {
	for _, p := range Predicates(f) {
		if !p(inst) {
			return false
		}
	}
	return true
}

// InstanceCounts summarises the list shown above the instance table.
func InstanceCounts(instances []models.ProcessInstance) models.InstanceCounts {
	c := models.InstanceCounts{Total: len(instances)}
	for _, inst := range instances {
		switch inst.Status {
		case models.StatusActive:
			c.Active++
		case models.StatusCompleted:
			c.Completed++
		}
	}
	return c
}

// ProcessNames returns the distinct definition names in first-seen order.
func ProcessNames(defs []models.ProcessDefinition) []string {
	seen := map[string]bool{}
	var names []string
	for _, d := range defs {
		if !seen[d.Name] {
			seen[d.Name] = true
			names = append(names, d.Name)
		}
	}
	return names
}

// ProcessVersions returns the distinct versions deployed under name, in first-seen order.
func ProcessVersions(defs []models.ProcessDefinition, name string) []string {
	seen := map[string]bool{}
	var versions []string
	for _, d := range defs {
		if d.Name == name && !seen[d.Version] {
			seen[d.Version] = true
			versions = append(versions, d.Version)
		}
	}
	return versions
}

// TaskHistory flattens the history map, ordered by timestamp then task id.
func TaskHistory(inst *models.ProcessInstance) []models.TaskEntry {
	tasks := make([]models.TaskEntry, 0, len(inst.History))
	for id, h := range inst.History {
		tasks = append(tasks, models.TaskEntry{
			TaskID:    id,
			TaskName:  h.TaskName,
			Status:    h.Status,
			Timestamp: h.Timestamp,
			Assignee:  h.Assignee,
		})
	}
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].Timestamp.Equal(tasks[j].Timestamp) {
			return tasks[i].Timestamp.Before(tasks[j].Timestamp)
		}
		return tasks[i].TaskID < tasks[j].TaskID
	})
	return tasks
}

// ActiveElementID returns the diagram element of the active task, matched by
// element id first and then by name. It is empty when no task is active.
func ActiveElementID(tasks []models.TaskEntry, elements []*diagram.Element) string {
	var active *models.TaskEntry
	for i := range tasks {
		if tasks[i].Status == string(models.StatusActive) {
			active = &tasks[i]
			break
		}
	}
	if active == nil {
		return ""
	}
	for _, el := range elements {
		if !el.IsFlow() && el.ID == active.TaskID {
			return el.ID
		}
	}
	for _, el := range elements {
		if !el.IsFlow() && el.Name != "" && strings.EqualFold(el.Name, active.TaskName) {
			return el.ID
		}
	}
	return ""
}

// Variables flattens the variable map, sorted by name.
func Variables(inst *models.ProcessInstance) []models.Variable {
	vars := make([]models.Variable, 0, len(inst.Variables))
	for name, v := range inst.Variables {
		vars = append(vars, models.Variable{
			Name:  name,
			Value: variableValue(v),
			Type:  variableType(v),
			Scope: "process",
		})
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i].Name < vars[j].Name })
	return vars
}

// SearchVariables keeps variables whose name, value, type or scope contains term.
func SearchVariables(vars []models.Variable, term string) []models.Variable {
	if term == "" {
		return vars
	}
	needle := strings.ToLower(term)
	var out []models.Variable
	for _, v := range vars {
		for _, field := range []string{v.Name, v.Value, v.Type, v.Scope} {
			if strings.Contains(strings.ToLower(field), needle) {
				out = append(out, v)
				break
			}
		}
	}
	return out
}

func variableValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case bool, int, int64, float64:
		return fmt.Sprint(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}

func variableType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case int, int64, float64, json.Number:
		return "number"
	case []any:
		return "array"
	default:
		return "object"
	}
}
