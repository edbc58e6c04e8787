package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vicodes/process-flow-canvas-dream/pkg/models"
)

const createDiagramsTable = `CREATE TABLE IF NOT EXISTS diagrams (
	id TEXT PRIMARY KEY,
	xml TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresDiagramStore is a PostgreSQL implementation of the DiagramStore interface.
type PostgresDiagramStore struct {
	db *pgxpool.Pool
}

// NewPostgresDiagramStore creates a new PostgresDiagramStore.
func NewPostgresDiagramStore(db *pgxpool.Pool) *PostgresDiagramStore {
	return &PostgresDiagramStore{db: db}
}

// Migrate creates the diagrams table when it does not exist.
func (s *PostgresDiagramStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createDiagramsTable); err != nil {
		return fmt.Errorf("failed to create diagrams table: %w", err)
	}
	return nil
}

// Save upserts a diagram.
func (s *PostgresDiagramStore) Save(ctx context.Context, id, xml string) (*models.SavedDiagram, error) {
	if id == "" {
		return nil, fmt.Errorf("diagram id is required")
	}
	d := models.SavedDiagram{ID: id, XML: xml}
	err := s.db.QueryRow(ctx,
		`INSERT INTO diagrams (id, xml, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (id) DO UPDATE SET xml = EXCLUDED.xml, updated_at = now()
		 RETURNING updated_at`, id, xml).Scan(&d.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save diagram %s: %w", id, err)
	}
	return &d, nil
}

// Get retrieves a diagram by its ID.
func (s *PostgresDiagramStore) Get(ctx context.Context, id string) (*models.SavedDiagram, error) {
	var d models.SavedDiagram
	err := s.db.QueryRow(ctx, "SELECT id, xml, updated_at FROM diagrams WHERE id = $1", id).Scan(&d.ID, &d.XML, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get diagram %s: %w", id, err)
	}
	return &d, nil
}

// List returns every diagram ordered by id.
func (s *PostgresDiagramStore) List(ctx context.Context) ([]models.SavedDiagram, error) {
	rows, err := s.db.Query(ctx, "SELECT id, xml, updated_at FROM diagrams ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list diagrams: %w", err)
	}
	defer rows.Close()

	diagrams := []models.SavedDiagram{}
	for rows.Next() {
		var d models.SavedDiagram
		if err := rows.Scan(&d.ID, &d.XML, &d.UpdatedAt); err != nil {
			return nil, err
		}
		diagrams = append(diagrams, d)
	}
	return diagrams, rows.Err()
}

// Remove deletes a diagram.
func (s *PostgresDiagramStore) Remove(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM diagrams WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to remove diagram %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return nil
}
