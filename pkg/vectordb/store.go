package vectordb

import (
	"context"

	"github.com/tooldex/tooldex/pkg/model"
)

// Hit is one raw search result from a vector space, before ranking and
// fusion.
type Hit struct {
	RecordID string
	Score    float64
	Payload  model.Payload
}

// CollectionInfo summarises one space's backing collection.
type CollectionInfo struct {
	Name        string
	PointsCount uint64
	Dimension   int
}

// Store is the vector-store adapter. Implementations route between the
// legacy layout (one collection per space) and the enhanced layout (one
// collection with named vectors); callers never see the difference.
type Store interface {
	// EnsureCollections creates any missing backing collections with the
	// configured dimension. Dimensions are fixed at create time.
	EnsureCollections(ctx context.Context) error

	// UpsertNamed writes every vector in vectors for one record,
	// atomically per point.
	UpsertNamed(ctx context.Context, recordID string, vectors model.NamedVector, payload model.Payload) error

	// Search runs a single-space similarity query. Filters are the
	// abstract conjunction; translation to the store's filter language
	// happens here.
	Search(ctx context.Context, space model.VectorSpace, queryVec []float32, topK int, filters []model.FieldFilter) ([]Hit, error)

	// RetrieveVector fetches the stored vector for one record in one
	// space.
	RetrieveVector(ctx context.Context, recordID string, space model.VectorSpace) ([]float32, error)

	// Delete removes a record's points. With no spaces given, every
	// space is cleared.
	Delete(ctx context.Context, recordID string, spaces ...model.VectorSpace) error

	// CollectionInfo reports the backing collection for a space.
	CollectionInfo(ctx context.Context, space model.VectorSpace) (CollectionInfo, error)

	// ClearAll drops and recreates every backing collection.
	ClearAll(ctx context.Context) error

	Close() error
}
