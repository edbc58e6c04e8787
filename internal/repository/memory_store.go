package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vicodes/process-flow-canvas-dream/pkg/models"
)

// MemoryDiagramStore keeps diagrams in process memory; they are lost on restart.
type MemoryDiagramStore struct {
	mu       sync.RWMutex
	diagrams map[string]models.SavedDiagram
	now      func() time.Time
}

// NewMemoryDiagramStore creates an empty store.
func NewMemoryDiagramStore() *MemoryDiagramStore {
	return &MemoryDiagramStore{diagrams: map[string]models.SavedDiagram{}, now: time.Now}
}

func (s *MemoryDiagramStore) Save(ctx context.Context, id, xml string) (*models.SavedDiagram, error) {
	if id == "" {
		return nil, fmt.Errorf("diagram id is required")
	}
	d := models.SavedDiagram{ID: id, XML: xml, UpdatedAt: s.now().UTC()}
	s.mu.Lock()
	s.diagrams[id] = d
	s.mu.Unlock()
	return &d, nil
}

func (s *MemoryDiagramStore) Get(ctx context.Context, id string) (*models.SavedDiagram, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.diagrams[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return &d, nil
}

func (s *MemoryDiagramStore) List(ctx context.Context) ([]models.SavedDiagram, error) {
	s.mu.RLock()
	out := make([]models.SavedDiagram, 0, len(s.diagrams))
	for _, d := range s.diagrams {
		out = append(out, d)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryDiagramStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.diagrams[id]; !ok {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	delete(s.diagrams, id)
	return nil
}
