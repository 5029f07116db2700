package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/kozaktomas/photo-dupes/internal/config"
	"github.com/kozaktomas/photo-dupes/internal/database"
	"github.com/kozaktomas/photo-dupes/internal/database/mariadb"
	"github.com/kozaktomas/photo-dupes/internal/database/postgres"
	"github.com/kozaktomas/photo-dupes/internal/database/sqlite"
	"github.com/kozaktomas/photo-dupes/internal/fingerprint"
	"github.com/kozaktomas/photo-dupes/internal/imagefile"
	"github.com/kozaktomas/photo-dupes/internal/search"
)

// engineDeps holds the initialized stores and engine of a command.
type engineDeps struct {
	cfg        *config.Config
	engine     *search.Engine
	signatures database.SignatureWriter
	collection database.CollectionWriter
	importer   database.CollectionImporter // nil for a digiKam collection
	closers    []func() error
	backend    string
}

// initEngine opens the signature store (PostgreSQL or SQLite) and the
// collection, and builds the engine over them.
func initEngine(ctx context.Context) (*engineDeps, error) {
	cfg := config.Load()
	deps := &engineDeps{cfg: cfg}

	if cfg.Database.URL != "" {
		pool, err := postgres.Open(ctx, &cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		deps.closers = append(deps.closers, pool.Close)
		collection := postgres.NewCollectionRepository(pool)
		deps.signatures = postgres.NewSignatureRepository(pool)
		deps.collection = collection
		deps.importer = collection
		deps.backend = "PostgreSQL"
	} else {
		store, err := sqlite.NewStore(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite database: %w", err)
		}
		deps.closers = append(deps.closers, store.Close)
		collection := store.Collection()
		deps.signatures = store.Signatures()
		deps.collection = collection
		deps.importer = collection
		deps.backend = "SQLite (" + store.Path() + ")"
	}

	if cfg.Collection.DatabaseURL != "" {
		pool, err := mariadb.NewPool(cfg.Collection.DatabaseURL)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("failed to connect to collection database: %w", err)
		}
		deps.closers = append(deps.closers, pool.Close)
		deps.collection = mariadb.NewCollection(pool)
		deps.importer = nil
	}

	weights, err := cfg.Similarity.Weights()
	if err != nil {
		deps.Close()
		return nil, err
	}

	opts := []search.Option{
		search.WithCollection(deps.collection),
		search.WithPixelSource(imagefile.NewPathSource(deps.collection, "")),
		search.WithScorer(fingerprint.NewScorer(weights)),
	}
	if verbose {
		opts = append(opts, search.WithLogger(log.New(os.Stderr, "", log.LstdFlags)))
	}
	deps.engine = search.New(deps.signatures, opts...)
	return deps, nil
}

// requireImporter returns the collection importer or an error when the
// collection is managed by digiKam.
func (d *engineDeps) requireImporter() (database.CollectionImporter, error) {
	if d.importer == nil {
		return nil, errors.New("importing is not available while COLLECTION_DATABASE_URL points to a digiKam collection")
	}
	return d.importer, nil
}

// Close releases the stores in reverse order of opening.
func (d *engineDeps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			log.Printf("closing database: %v", err)
		}
	}
}
