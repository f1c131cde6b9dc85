package catalog

import (
	"context"

	"github.com/tooldex/tooldex/pkg/model"
)

// Store is the document-store adapter. It owns the records; results are
// unordered and the caller ranks them.
type Store interface {
	// FindByIDs fetches records in one batch. Missing IDs are skipped,
	// not an error.
	FindByIDs(ctx context.Context, ids []string) ([]model.Record, error)

	// Search runs a conjunction of abstract predicates against the
	// catalog.
	Search(ctx context.Context, filters []model.FieldFilter, limit int) ([]model.Record, error)

	// All streams every record to fn in unspecified order; a non-nil
	// return from fn stops the scan.
	All(ctx context.Context, fn func(model.Record) error) error

	// Upsert writes a record. Only the seeder and fixtures use this; the
	// query path treats the catalog as read-only.
	Upsert(ctx context.Context, record model.Record) error

	Close() error
}
