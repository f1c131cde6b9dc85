package vectordb

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/qdrant/go-client/qdrant"
	"github.com/tooldex/tooldex/pkg/config"
	"github.com/tooldex/tooldex/pkg/model"
)

// QdrantStore implements Store against Qdrant's gRPC API. Depending on
// configuration it uses the legacy layout (one single-vector collection
// per space) or the enhanced layout (one collection holding named
// vectors on one point per record).
type QdrantStore struct {
	client *qdrant.Client
	cfg    *config.VectorStoreConfig
	ids    *PointIDMapper
}

func NewQdrantStore(cfg *config.VectorStoreConfig) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	return &QdrantStore{
		client: client,
		cfg:    cfg,
		ids:    NewPointIDMapper(cfg.PointIDNamespace),
	}, nil
}

// PointID exposes the deterministic record-to-point mapping so the seeder
// and tests can verify it.
func (s *QdrantStore) PointID(recordID string) string {
	return s.ids.PointID(recordID)
}

// collectionFor resolves the backing collection of a space.
func (s *QdrantStore) collectionFor(space model.VectorSpace) string {
	if s.cfg.Enhanced {
		return s.cfg.EnhancedCollection
	}
	return s.cfg.CollectionPrefix + "_" + strings.ReplaceAll(string(space), ".", "_")
}

func (s *QdrantStore) EnsureCollections(ctx context.Context) error {
	if s.cfg.Enhanced {
		return s.ensureEnhancedCollection(ctx)
	}
	for _, space := range model.AllSpaces() {
		if err := s.ensureLegacyCollection(ctx, space); err != nil {
			return err
		}
	}
	return nil
}

func (s *QdrantStore) ensureEnhancedCollection(ctx context.Context) error {
	name := s.cfg.EnhancedCollection
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return s.transportError("EnsureCollections", "failed to check collection", err)
	}
	if exists {
		return nil
	}

	params := make(map[string]*qdrant.VectorParams, len(model.AllSpaces()))
	for _, space := range model.AllSpaces() {
		params[string(space)] = &qdrant.VectorParams{
			Size:     uint64(s.cfg.Dimension),
			Distance: qdrant.Distance_Cosine,
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_ParamsMap{
				ParamsMap: &qdrant.VectorParamsMap{Map: params},
			},
		},
	})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return s.transportError("EnsureCollections", "failed to create enhanced collection", err)
	}
	return nil
}

func (s *QdrantStore) ensureLegacyCollection(ctx context.Context, space model.VectorSpace) error {
	name := s.collectionFor(space)
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return s.transportError("EnsureCollections", "failed to check collection", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.cfg.Dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return s.transportError("EnsureCollections", "failed to create collection", err)
	}
	return nil
}

func (s *QdrantStore) UpsertNamed(ctx context.Context, recordID string, vectors model.NamedVector, payload model.Payload) error {
	for space, vec := range vectors {
		if len(vec) != s.cfg.Dimension {
			return model.NewError(model.CodeEmbeddingDimensionMismatch,
				"QdrantStore", "UpsertNamed",
				fmt.Sprintf("vector for space %s has length %d, collection dimension is %d",
					space, len(vec), s.cfg.Dimension), nil)
		}
	}

	qp, err := payloadToQdrant(payload)
	if err != nil {
		return model.NewStoreError(model.CodeVectorStoreError, model.StoreSchemaMismatch,
			"QdrantStore", "UpsertNamed", "payload conversion failed", err)
	}
	pointID := s.ids.PointID(recordID)

	if s.cfg.Enhanced {
		named := make(map[string]*qdrant.Vector, len(vectors))
		for space, vec := range vectors {
			named[string(space)] = &qdrant.Vector{Data: vec}
		}
		point := &qdrant.PointStruct{
			Id: &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: pointID}},
			Vectors: &qdrant.Vectors{
				VectorsOptions: &qdrant.Vectors_Vectors{
					Vectors: &qdrant.NamedVectors{Vectors: named},
				},
			},
			Payload: qp,
		}
		_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.cfg.EnhancedCollection,
			Points:         []*qdrant.PointStruct{point},
		})
		if err != nil {
			return s.transportError("UpsertNamed", "failed to upsert point", err)
		}
		return nil
	}

	for space, vec := range vectors {
		point := &qdrant.PointStruct{
			Id:      &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: pointID}},
			Vectors: qdrant.NewVectors(vec...),
			Payload: qp,
		}
		_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collectionFor(space),
			Points:         []*qdrant.PointStruct{point},
		})
		if err != nil {
			return s.transportError("UpsertNamed",
				fmt.Sprintf("failed to upsert point into space %s", space), err)
		}
	}
	return nil
}

func (s *QdrantStore) Search(ctx context.Context, space model.VectorSpace, queryVec []float32, topK int, filters []model.FieldFilter) ([]Hit, error) {
	filter, err := translateFilters(filters)
	if err != nil {
		return nil, model.NewStoreError(model.CodeVectorStoreError, model.StoreSchemaMismatch,
			"QdrantStore", "Search", "filter translation failed", err)
	}

	req := &qdrant.SearchPoints{
		CollectionName: s.collectionFor(space),
		Vector:         queryVec,
		Limit:          uint64(topK),
		Filter:         filter,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if s.cfg.Enhanced {
		name := string(space)
		req.VectorName = &name
	}

	resp, err := s.client.GetPointsClient().Search(ctx, req)
	if err != nil {
		return nil, s.transportError("Search",
			fmt.Sprintf("search in space %s failed", space), err)
	}

	hits := make([]Hit, 0, len(resp.Result))
	for _, point := range resp.Result {
		payload := payloadFromQdrant(point.Payload)
		if payload.RecordID == "" {
			slog.Warn("point missing record_id payload, skipping",
				"space", string(space), "collection", req.CollectionName)
			continue
		}
		hits = append(hits, Hit{
			RecordID: payload.RecordID,
			Score:    float64(point.Score),
			Payload:  payload,
		})
	}
	return hits, nil
}

func (s *QdrantStore) RetrieveVector(ctx context.Context, recordID string, space model.VectorSpace) ([]float32, error) {
	pointID := s.ids.PointID(recordID)

	resp, err := s.client.GetPointsClient().Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collectionFor(space),
		Ids: []*qdrant.PointId{
			{PointIdOptions: &qdrant.PointId_Uuid{Uuid: pointID}},
		},
		WithVectors: qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, s.transportError("RetrieveVector", "point fetch failed", err)
	}
	if len(resp.Result) == 0 {
		return nil, model.NewStoreError(model.CodeVectorStoreError, model.StoreNotFound,
			"QdrantStore", "RetrieveVector",
			fmt.Sprintf("no point for record %s in space %s", recordID, space), nil)
	}

	vectors := resp.Result[0].Vectors
	if vectors == nil {
		return nil, model.NewStoreError(model.CodeVectorStoreError, model.StoreSchemaMismatch,
			"QdrantStore", "RetrieveVector", "point has no vectors", nil)
	}

	if s.cfg.Enhanced {
		named := vectors.GetVectors()
		if named == nil {
			return nil, model.NewStoreError(model.CodeVectorStoreError, model.StoreSchemaMismatch,
				"QdrantStore", "RetrieveVector", "expected named vectors on enhanced point", nil)
		}
		vec, ok := named.Vectors[string(space)]
		if !ok {
			return nil, model.NewStoreError(model.CodeVectorStoreError, model.StoreNotFound,
				"QdrantStore", "RetrieveVector",
				fmt.Sprintf("record %s has no vector in space %s", recordID, space), nil)
		}
		return vec.Data, nil
	}

	vec := vectors.GetVector()
	if vec == nil {
		return nil, model.NewStoreError(model.CodeVectorStoreError, model.StoreSchemaMismatch,
			"QdrantStore", "RetrieveVector", "expected a dense vector", nil)
	}
	return vec.Data, nil
}

func (s *QdrantStore) Delete(ctx context.Context, recordID string, spaces ...model.VectorSpace) error {
	pointID := s.ids.PointID(recordID)
	selector := &qdrant.PointsSelector{
		PointsSelectorOneOf: &qdrant.PointsSelector_Points{
			Points: &qdrant.PointsIdsList{
				Ids: []*qdrant.PointId{
					{PointIdOptions: &qdrant.PointId_Uuid{Uuid: pointID}},
				},
			},
		},
	}

	if s.cfg.Enhanced {
		if len(spaces) == 0 {
			_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
				CollectionName: s.cfg.EnhancedCollection,
				Points:         selector,
			})
			if err != nil {
				return s.transportError("Delete", "failed to delete point", err)
			}
			return nil
		}

		names := make([]string, len(spaces))
		for i, space := range spaces {
			names[i] = string(space)
		}
		_, err := s.client.GetPointsClient().DeleteVectors(ctx, &qdrant.DeletePointVectors{
			CollectionName: s.cfg.EnhancedCollection,
			PointsSelector: selector,
			Vectors:        &qdrant.VectorsSelector{Names: names},
		})
		if err != nil {
			return s.transportError("Delete", "failed to delete named vectors", err)
		}
		return nil
	}

	targets := spaces
	if len(targets) == 0 {
		targets = model.AllSpaces()
	}
	for _, space := range targets {
		_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: s.collectionFor(space),
			Points:         selector,
		})
		if err != nil {
			return s.transportError("Delete",
				fmt.Sprintf("failed to delete point from space %s", space), err)
		}
	}
	return nil
}

func (s *QdrantStore) CollectionInfo(ctx context.Context, space model.VectorSpace) (CollectionInfo, error) {
	name := s.collectionFor(space)

	resp, err := s.client.GetPointsClient().Count(ctx, &qdrant.CountPoints{
		CollectionName: name,
	})
	if err != nil {
		return CollectionInfo{}, s.transportError("CollectionInfo", "count failed", err)
	}

	info := CollectionInfo{
		Name:      name,
		Dimension: s.cfg.Dimension,
	}
	if resp.Result != nil {
		info.PointsCount = resp.Result.Count
	}
	return info, nil
}

func (s *QdrantStore) ClearAll(ctx context.Context) error {
	names := make(map[string]struct{})
	if s.cfg.Enhanced {
		names[s.cfg.EnhancedCollection] = struct{}{}
	} else {
		for _, space := range model.AllSpaces() {
			names[s.collectionFor(space)] = struct{}{}
		}
	}

	for name := range names {
		exists, err := s.client.CollectionExists(ctx, name)
		if err != nil {
			return s.transportError("ClearAll", "failed to check collection", err)
		}
		if !exists {
			continue
		}
		if err := s.client.DeleteCollection(ctx, name); err != nil {
			return s.transportError("ClearAll",
				fmt.Sprintf("failed to delete collection %s", name), err)
		}
	}
	return s.EnsureCollections(ctx)
}

func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func (s *QdrantStore) transportError(op, message string, err error) error {
	return model.NewStoreError(model.CodeVectorStoreError, model.StoreTransport,
		"QdrantStore", op, message, err)
}
