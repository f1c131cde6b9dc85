package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tooldex/tooldex/pkg/catalog"
	"github.com/tooldex/tooldex/pkg/config"
	"github.com/tooldex/tooldex/pkg/embedders"
	"github.com/tooldex/tooldex/pkg/enrichment"
	"github.com/tooldex/tooldex/pkg/llms"
	"github.com/tooldex/tooldex/pkg/logger"
	"github.com/tooldex/tooldex/pkg/observability"
	"github.com/tooldex/tooldex/pkg/pipeline"
	"github.com/tooldex/tooldex/pkg/planner"
	"github.com/tooldex/tooldex/pkg/search"
	"github.com/tooldex/tooldex/pkg/server"
)

// ServeCmd starts the search API server.
type ServeCmd struct {
	Host string `help:"Bind host (overrides SERVER_HOST)."`
	Port int    `help:"Bind port (overrides SERVER_PORT)."`
}

func (c *ServeCmd) Run(cfg *config.Config) error {
	if c.Host != "" {
		cfg.Server.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	log := logger.GetLogger()

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

	llm, err := llms.NewFromConfig(&cfg.LLM)
	if err != nil {
		return fmt.Errorf("failed to build LLM provider: %w", err)
	}
	defer llm.Close()

	retriever := search.NewRetriever(store, cfg.VectorStore.SearchTimeout, log)
	enricher := enrichment.NewService(embedder, store, cfg.Enrichment, log)
	executor := pipeline.NewExecutor(embedder, retriever, docs, enricher,
		cfg.Fusion, cfg.Dedup, cfg.Pipeline.PerSourceTimeout, log)
	extractor := planner.NewExtractor(llm, log)
	queryPlanner := planner.NewPlanner(llm, planner.Options{}, log)
	orchestrator := pipeline.NewOrchestrator(extractor, queryPlanner, executor,
		cfg.Pipeline.RequestTimeout, log)

	metrics := observability.NewMetrics()
	srv := server.New(orchestrator, metrics, cfg.Server, log)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
