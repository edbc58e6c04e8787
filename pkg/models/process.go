// Package models defines the view models shared by the dashboard
package models

import (
	"time"
)

// InstanceStatus is the lifecycle status reported by the backend for a process instance.
type InstanceStatus string

const (
	StatusActive    InstanceStatus = "active"
	StatusCompleted InstanceStatus = "completed"
	StatusPending   InstanceStatus = "pending"
	StatusFailed    InstanceStatus = "failed"
	StatusSuspended InstanceStatus = "suspended"
)

// ProcessDefinition is immutable reference data describing a deployed process.
type ProcessDefinition struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Version     string `json:"version" yaml:"version"`
}

// HistoryEntry is one element of the execution-history map returned for an instance.
type HistoryEntry struct {
	TaskName  string    `json:"taskName" yaml:"taskName"`
	Status    string    `json:"status" yaml:"status"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Assignee  string    `json:"assignee,omitempty" yaml:"assignee,omitempty"`
}

// ProcessInstance is one running or completed execution of a process definition.
// EndDate is nil while the instance is still running.
type ProcessInstance struct {
	ID             string                  `json:"id" yaml:"id"`
	ProcessID      string                  `json:"processId" yaml:"processId"`
	ProcessName    string                  `json:"processName" yaml:"processName"`
	ProcessVersion string                  `json:"processVersion" yaml:"processVersion"`
	Status         InstanceStatus          `json:"status" yaml:"status"`
	StartDate      time.Time               `json:"startDate" yaml:"startDate"`
	EndDate        *time.Time              `json:"endDate" yaml:"endDate"`
	DiagramXML     string                  `json:"bpmnXml,omitempty" yaml:"-"`
	Variables      map[string]any          `json:"variables,omitempty" yaml:"variables,omitempty"`
	History        map[string]HistoryEntry `json:"history,omitempty" yaml:"history,omitempty"`
}

// Running reports whether the instance has not ended yet.
func (p *ProcessInstance) Running() bool {
	return p.EndDate == nil
}

// TaskEntry is a derived view of the instance execution history.
type TaskEntry struct {
	TaskID    string    `json:"taskId"`
	TaskName  string    `json:"taskName"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Assignee  string    `json:"assignee"`
}

// Variable is a flattened process variable.
type Variable struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Type  string `json:"type"`
	Scope string `json:"scope"`
}

// Page mirrors the paginated envelope returned by the backend.
type Page[T any] struct {
	Content       []T `json:"content"`
	Number        int `json:"number"`
	Size          int `json:"size"`
	TotalElements int `json:"totalElements"`
	TotalPages    int `json:"totalPages"`
}

// Last reports whether no further pages follow this one.
func (p *Page[T]) Last() bool {
	return p.TotalPages == 0 || p.Number+1 >= p.TotalPages
}

// InstanceCounts summarises a list of instances.
type InstanceCounts struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
}
