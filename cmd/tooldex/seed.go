package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/tooldex/tooldex/pkg/catalog"
	"github.com/tooldex/tooldex/pkg/config"
	"github.com/tooldex/tooldex/pkg/embedders"
	"github.com/tooldex/tooldex/pkg/indexer"
	"github.com/tooldex/tooldex/pkg/logger"
	"github.com/tooldex/tooldex/pkg/model"
	"github.com/tooldex/tooldex/pkg/vectordb"
)

// SeedCmd seeds the vector store from the catalog.
type SeedCmd struct {
	Limit       int    `help:"Seed at most N records (0 = all)." default:"0"`
	Clear       bool   `help:"Empty all vector collections before seeding."`
	Verbose     bool   `help:"Debug-level seeding logs."`
	VectorTypes string `name:"vector-types" help:"Comma-separated space names to seed (default: all)."`
	BatchSize   int    `name:"batch-size" help:"Records per batch." default:"25"`
}

func (c *SeedCmd) Run(cfg *config.Config) error {
	if c.Verbose {
		logger.Init(slog.LevelDebug, os.Stderr, "verbose")
	}
	log := logger.GetLogger()

	spaces, err := parseVectorTypes(c.VectorTypes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "argument error: %v\n", err)
		os.Exit(exitConfig)
	}
	if c.BatchSize <= 0 {
		fmt.Fprintln(os.Stderr, "argument error: batch size must be positive")
		os.Exit(exitConfig)
	}

	embedder, err := embedders.NewFromConfig(&cfg.Embedder)
	if err != nil {
		return fmt.Errorf("failed to build embedder: %w", err)
	}
	defer embedder.Close()

	store, err := newVectorStore(&cfg.VectorStore)
	if err != nil {
		return fmt.Errorf("failed to build vector store: %w", err)
	}
	defer store.Close()

	docs, err := catalog.NewSQLStore(&cfg.DocumentStore)
	if err != nil {
		return fmt.Errorf("failed to build catalog: %w", err)
	}
	defer docs.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	seeder := indexer.NewSeeder(docs, embedder, store, log)
	stats, err := seeder.Run(ctx, indexer.Options{
		Limit:       c.Limit,
		Clear:       c.Clear,
		VectorTypes: spaces,
		BatchSize:   c.BatchSize,
	})
	if err != nil {
		return err
	}

	log.Info("seeding finished",
		"processed", stats.Processed,
		"successful", stats.Succeeded,
		"failed", stats.Failed,
		"vectors", stats.VectorsWritten,
		"elapsed", stats.Elapsed)
	return nil
}

func parseVectorTypes(raw string) ([]model.VectorSpace, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var spaces []model.VectorSpace
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		if !model.ValidSpace(name) {
			return nil, fmt.Errorf("unknown vector space %q", name)
		}
		spaces = append(spaces, model.VectorSpace(name))
	}
	return spaces, nil
}

func newVectorStore(cfg *config.VectorStoreConfig) (vectordb.Store, error) {
	return vectordb.NewQdrantStore(cfg)
}
