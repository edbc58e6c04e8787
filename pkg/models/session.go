package models

import (
	"time"
)

// Filter is the session-scoped process list filter.
// Process and Version are empty when unset.
type Filter struct {
	Process    string `json:"process"`
	Version    string `json:"version"`
	SearchText string `json:"searchText"`
}

// IsZero reports whether no filter is applied.
func (f Filter) IsZero() bool {
	return f.Process == "" && f.Version == "" && f.SearchText == ""
}

// FilterUpdate is a partial filter change; nil fields keep their current value.
type FilterUpdate struct {
	Process    *string `json:"process,omitempty"`
	Version    *string `json:"version,omitempty"`
	SearchText *string `json:"searchText,omitempty"`
}

// Account identifies the signed-in user.
type Account struct {
	HomeAccountID  string `json:"homeAccountId"`
	LocalAccountID string `json:"localAccountId"`
	Environment    string `json:"environment"`
	TenantID       string `json:"tenantId"`
	Username       string `json:"username"`
	Name           string `json:"name"`
}

// SavedDiagram is a modeler diagram kept by id.
type SavedDiagram struct {
	ID        string    `json:"id"`
	XML       string    `json:"xml"`
	UpdatedAt time.Time `json:"updatedAt"`
}
