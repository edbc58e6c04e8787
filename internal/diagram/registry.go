package diagram

import (
	"context"
	"sync"
	"time"

	"github.com/vicodes/process-flow-canvas-dream/internal/logging"
)

// ModelerRegistry keeps at most one modeler per session.
type ModelerRegistry struct {
	mu        sync.Mutex
	modelers  map[string]*Modeler
	newCanvas func() Canvas
	idleTTL   time.Duration
	now       func() time.Time
	logger    *logging.Logger
}

// NewModelerRegistry creates a registry. Modelers idle for longer than idleTTL are
// destroyed by Reap; a zero TTL disables reaping.
func NewModelerRegistry(newCanvas func() Canvas, idleTTL time.Duration, logger *logging.Logger) *ModelerRegistry {
	if logger == nil {
		logger = logging.Nop()
	}
	return &ModelerRegistry{
		modelers:  map[string]*Modeler{},
		newCanvas: newCanvas,
		idleTTL:   idleTTL,
		now:       time.Now,
		logger:    logger,
	}
}

// Open destroys the session's current modeler, if any, and returns a new one.
func (r *ModelerRegistry) Open(session string, onSave SaveFunc) *Modeler {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.modelers[session]; ok {
		old.Destroy()
	}
	m := NewModeler(r.newCanvas(), onSave, r.logger.With("session", session))
	m.lastUsed = r.now()
	r.modelers[session] = m
	return m
}

// Get returns the session's modeler.
func (r *ModelerRegistry) Get(session string) (*Modeler, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.modelers[session]
	return m, ok
}

// Close destroys the session's modeler.
func (r *ModelerRegistry) Close(session string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.modelers[session]; ok {
		m.Destroy()
		delete(r.modelers, session)
	}
}

// Len returns the number of live modelers.
func (r *ModelerRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.modelers)
}

// Reap destroys idle modelers and returns how many were removed.
func (r *ModelerRegistry) Reap() int {
	if r.idleTTL <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.idleTTL)
	n := 0
	for session, m := range r.modelers {
		if m.LastUsed().Before(cutoff) {
			m.Destroy()
			delete(r.modelers, session)
			n++
		}
	}
	if n > 0 {
		r.logger.Info("reaped idle modelers", "count", n)
	}
	return n
}

// Run reaps on every tick until ctx is done, then destroys every modeler.
func (r *ModelerRegistry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return
		case <-ticker.C:
			r.Reap()
		}
	}
}

func (r *ModelerRegistry) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for session, m := range r.modelers {
		m.Destroy()
		delete(r.modelers, session)
	}
}
