// Package state holds the per-session view state of the dashboard.
package state

import (
	"sync"

	"github.com/vicodes/process-flow-canvas-dream/pkg/models"
)

type session struct {
	filter   models.Filter
	instance string
}

// Sessions keeps the process filter and the selected instance of every session.
// Updates to one session are serialised; last write wins.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]*session
}

// NewSessions creates an empty store.
func NewSessions() *Sessions {
	return &Sessions{sessions: map[string]*session{}}
}

func (s *Sessions) get(id string) *session {
	sess, ok := s.sessions[id]
	if !ok {
		sess = &session{}
		s.sessions[id] = sess
	}
	return sess
}

// Filter returns the session's current filter.
func (s *Sessions) Filter(id string) models.Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(id).filter
}

// SetFilter merges the non-nil fields of u into the session's filter.
// Changing the process clears the version, since versions belong to a process.
func (s *Sessions) SetFilter(id string, u models.FilterUpdate) models.Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := &s.get(id).filter
	if u.Process != nil {
		if *u.Process != f.Process && u.Version == nil {
			f.Version = ""
		}
		f.Process = *u.Process
	}
	if u.Version != nil {
		f.Version = *u.Version
	}
	if u.SearchText != nil {
		f.SearchText = *u.SearchText
	}
	return *f
}

// ClearFilter resets the session's filter.
func (s *Sessions) ClearFilter(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(id).filter = models.Filter{}
}

// ActiveInstance returns the instance last opened in the session.
func (s *Sessions) ActiveInstance(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(id).instance
}

// SetActiveInstance records the instance opened in the session.
func (s *Sessions) SetActiveInstance(id, instanceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(id).instance = instanceID
}

// Forget drops everything kept for the session.
func (s *Sessions) Forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}
