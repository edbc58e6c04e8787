// Command seed stores the sample BPMN diagrams in the configured diagram
// store so the modeler has something to open.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vicodes/process-flow-canvas-dream/internal/config"
	"github.com/vicodes/process-flow-canvas-dream/internal/diagram"
	"github.com/vicodes/process-flow-canvas-dream/internal/logging"
	"github.com/vicodes/process-flow-canvas-dream/internal/repository"
)

func main() {
	ctx := context.Background()
	logger := logging.NewLogger()

	configPath := flag.String("config", "", "Path to config file")
	overwrite := flag.Bool("overwrite", false, "Replace diagrams that already exist")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Diagrams.Store != "postgres" {
		log.Fatalf("Seeding needs diagrams.store=postgres, got %q", cfg.Diagrams.Store)
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresDSN())
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pool.Close()

	store := repository.NewPostgresDiagramStore(pool)
	if err := store.Migrate(ctx); err != nil {
		log.Fatalf("Failed to migrate: %v", err)
	}

	samples := diagram.Samples()
	ids := make([]string, 0, len(samples))
	for id := range samples {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		_, err := store.Get(ctx, id)
		switch {
		case err == nil && !*overwrite:
			logger.Info("Skipping existing diagram", "id", id)
			continue
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			log.Fatalf("Failed to look up diagram %s: %v", id, err)
		}

		if _, err := store.Save(ctx, id, samples[id]); err != nil {
			logger.Error("Failed to seed diagram", "id", id, "error", err)
			continue
		}
		logger.Info("Seeded diagram", "id", id)
	}
	logger.Info("Seeding complete!")
}
