package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/tooldex/tooldex/pkg/catalog"
	"github.com/tooldex/tooldex/pkg/embedders"
	"github.com/tooldex/tooldex/pkg/model"
	"github.com/tooldex/tooldex/pkg/vectordb"
)

// Options tunes one seeding run.
type Options struct {
	// Limit caps the number of records seeded; zero means everything.
	Limit int

	// Clear empties all named-vector collections before seeding.
	Clear bool

	// VectorTypes restricts seeding to the named spaces. Empty means all.
	VectorTypes []model.VectorSpace

	// BatchSize is the number of records per batch (default 25). Batches
	// run sequentially; the embedding call inside a batch is the
	// pipelined part.
	BatchSize int
}

// Stats summarises a seeding run.
type Stats struct {
	Processed      int
	Succeeded      int
	Failed         int
	VectorsWritten int
	Elapsed        time.Duration
}

// Seeder reads records from the catalog, assembles the per-space texts,
// embeds them and upserts the named vectors. Per-record failures are
// logged and skipped; only infrastructure failures abort the run.
type Seeder struct {
	catalog  catalog.Store
	embedder embedders.Provider
	store    vectordb.Store
	logger   *slog.Logger
}

func NewSeeder(store catalog.Store, embedder embedders.Provider, vectors vectordb.Store, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		catalog:  store,
		embedder: embedder,
		store:    vectors,
		logger:   logger,
	}
}

// Run executes one seeding pass and reports its statistics.
func (s *Seeder) Run(ctx context.Context, opts Options) (*Stats, error) {
	started := time.Now()
	if opts.BatchSize <= 0 {
		opts.BatchSize = 25
	}

	if opts.Clear {
		s.logger.Info("clearing vector collections before seeding")
		if err := s.store.ClearAll(ctx); err != nil {
			return nil, fmt.Errorf("failed to clear collections: %w", err)
		}
	} else if err := s.store.EnsureCollections(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure collections: %w", err)
	}

	records, err := s.loadRecords(ctx, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	s.logger.Info("seeding records", "count", len(records), "batch_size", opts.BatchSize)

	stats := &Stats{}
	for start := 0; start < len(records); start += opts.BatchSize {
		end := start + opts.BatchSize
		if end > len(records) {
			end = len(records)
		}
		s.seedBatch(ctx, records[start:end], opts, stats)

		s.logger.Info("batch completed",
			"processed", stats.Processed,
			"successful", stats.Succeeded,
			"failed", stats.Failed)
	}

	stats.Elapsed = time.Since(started)
	s.validateCounts(ctx, stats)
	return stats, nil
}

func (s *Seeder) loadRecords(ctx context.Context, limit int) ([]model.Record, error) {
	var records []model.Record
	err := s.catalog.All(ctx, func(r model.Record) error {
		records = append(records, r)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Deterministic seeding order regardless of store iteration order.
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// seedBatch embeds one batch in a single pipelined call and upserts each
// record's named vectors. A failed record is logged and skipped; the
// batch continues.
func (s *Seeder) seedBatch(ctx context.Context, batch []model.Record, opts Options, stats *Stats) {
	type pending struct {
		record *model.Record
		spaces []model.VectorSpace
		texts  []string
	}

	items := make([]pending, 0, len(batch))
	var allTexts []string
	for i := range batch {
		assembled := AssembleAll(&batch[i], opts.VectorTypes)
		if len(assembled) == 0 {
			stats.Processed++
			stats.Failed++
			s.logger.Warn("record has no indexable content, skipping", "record", batch[i].ID)
			continue
		}

		spaces := make([]model.VectorSpace, 0, len(assembled))
		for space := range assembled {
			spaces = append(spaces, space)
		}
		sort.Slice(spaces, func(a, b int) bool { return spaces[a] < spaces[b] })

		texts := make([]string, len(spaces))
		for j, space := range spaces {
			texts[j] = assembled[space]
			allTexts = append(allTexts, assembled[space])
		}
		items = append(items, pending{record: &batch[i], spaces: spaces, texts: texts})
	}
	if len(items) == 0 {
		return
	}

	embedded, err := s.embedder.EmbedBatch(ctx, allTexts)
	if err != nil {
		// The whole batch shares one embedding call; fall back to
		// per-record embedding so one poisoned text cannot sink the rest.
		s.logger.Warn("batch embedding failed, retrying per record", "error", err)
		for _, item := range items {
			stats.Processed++
			if err := s.seedOne(ctx, item.record, item.spaces, item.texts, stats); err != nil {
				stats.Failed++
				s.logger.Error("record seeding failed", "record", item.record.ID, "error", err)
			} else {
				stats.Succeeded++
			}
		}
		return
	}

	offset := 0
	for _, item := range items {
		stats.Processed++
		vectors := make(model.NamedVector, len(item.spaces))
		for j, space := range item.spaces {
			vectors[space] = embedded[offset+j]
		}
		offset += len(item.spaces)

		payload := model.ProjectPayload(item.record, time.Now())
		if err := s.store.UpsertNamed(ctx, item.record.ID, vectors, payload); err != nil {
			stats.Failed++
			s.logger.Error("record upsert failed", "record", item.record.ID, "error", err)
			continue
		}
		stats.Succeeded++
		stats.VectorsWritten += len(vectors)
	}
}

func (s *Seeder) seedOne(ctx context.Context, record *model.Record, spaces []model.VectorSpace, texts []string, stats *Stats) error {
	embedded, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}
	vectors := make(model.NamedVector, len(spaces))
	for j, space := range spaces {
		vectors[space] = embedded[j]
	}
	if err := s.store.UpsertNamed(ctx, record.ID, vectors, model.ProjectPayload(record, time.Now())); err != nil {
		return err
	}
	stats.VectorsWritten += len(vectors)
	return nil
}

// validateCounts compares stored point counts with what the run wrote.
// Mismatch is a warning, not a failure: soft deletes and partial reseeds
// are legal.
func (s *Seeder) validateCounts(ctx context.Context, stats *Stats) {
	for _, space := range model.AllSpaces() {
		info, err := s.store.CollectionInfo(ctx, space)
		if err != nil {
			s.logger.Warn("post-seed count check failed", "space", string(space), "error", err)
			continue
		}
		if info.PointsCount < uint64(stats.Succeeded) {
			s.logger.Warn("collection holds fewer points than seeded",
				"collection", info.Name,
				"points", info.PointsCount,
				"seeded", stats.Succeeded)
		}
	}
}
