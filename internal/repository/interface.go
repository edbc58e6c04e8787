// Package repository stores diagrams saved from the modeler.
package repository

import (
	"context"
	"errors"

	"github.com/vicodes/process-flow-canvas-dream/pkg/models"
)

// ErrNotFound is returned when no diagram has the requested id.
var ErrNotFound = errors.New("diagram not found")

// DiagramStore is an interface for storing and retrieving modeler diagrams.
type DiagramStore interface {
	// Save creates or replaces the diagram with the given id.
	Save(ctx context.Context, id, xml string) (*models.SavedDiagram, error)
	// Get retrieves a diagram by its ID.
	Get(ctx context.Context, id string) (*models.SavedDiagram, error)
	// List returns every diagram ordered by id.
	List(ctx context.Context) ([]models.SavedDiagram, error)
	// Remove deletes a diagram. Removing an unknown id returns ErrNotFound.
	Remove(ctx context.Context, id string) error
}
