package vectordb

import (
	"github.com/google/uuid"
)

// PointIDMapper derives deterministic point UUIDs from record IDs. The
// mapping is part of the on-disk format: the indexer and every reader
// must be constructed with the same namespace, and changing the
// namespace is a reindex.
type PointIDMapper struct {
	namespace uuid.UUID
}

// NewPointIDMapper folds the namespace string into a UUID via SHA-1 in
// the OID namespace, then derives point IDs from it. Stable across hosts
// and processes.
func NewPointIDMapper(namespace string) *PointIDMapper {
	return &PointIDMapper{
		namespace: uuid.NewSHA1(uuid.NameSpaceOID, []byte(namespace)),
	}
}

// PointID maps a record ID to its point UUID (SHA-1 name-based, RFC 4122
// version 5 layout).
func (m *PointIDMapper) PointID(recordID string) string {
	return uuid.NewSHA1(m.namespace, []byte(recordID)).String()
}
