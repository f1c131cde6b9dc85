package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tooldex/tooldex/pkg/config"
	"github.com/tooldex/tooldex/pkg/model"
)

// SQLStore implements Store over database/sql. PostgreSQL backs
// production; SQLite backs local development and tests. List-valued
// record fields are stored as JSON text columns.
type SQLStore struct {
	db       *sql.DB
	table    string
	postgres bool
}

func NewSQLStore(cfg *config.DocumentStoreConfig) (*SQLStore, error) {
	driver := cfg.Driver
	if driver == "sqlite" {
		driver = "sqlite3"
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open document store: %w", err)
	}

	return &SQLStore{db: db, table: cfg.Table, postgres: driver == "postgres"}, nil
}

// NewSQLStoreFromDB wraps an existing handle; used by tests and fixtures.
func NewSQLStoreFromDB(db *sql.DB, table string) *SQLStore {
	return &SQLStore{db: db, table: table}
}

// rebind converts ?-placeholders to the $n form postgres expects.
func (s *SQLStore) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const recordColumns = `id, name, description, long_description, categories,
	functionality, search_keywords, use_cases, interfaces, deployment,
	languages, integrations, semantic_tags, pricing, has_free_tier, url`

// EnsureSchema creates the records table when missing. The DDL sticks to
// the SQL subset both postgres and sqlite accept.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		long_description TEXT NOT NULL DEFAULT '',
		categories TEXT NOT NULL DEFAULT '[]',
		functionality TEXT NOT NULL DEFAULT '[]',
		search_keywords TEXT NOT NULL DEFAULT '[]',
		use_cases TEXT NOT NULL DEFAULT '[]',
		interfaces TEXT NOT NULL DEFAULT '[]',
		deployment TEXT NOT NULL DEFAULT '[]',
		languages TEXT NOT NULL DEFAULT '[]',
		integrations TEXT NOT NULL DEFAULT '[]',
		semantic_tags TEXT NOT NULL DEFAULT '[]',
		pricing TEXT NOT NULL DEFAULT '{}',
		has_free_tier INTEGER NOT NULL DEFAULT 0,
		url TEXT NOT NULL DEFAULT ''
	)`, s.table)

	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return s.storeError("EnsureSchema", "failed to create table", err)
	}
	return nil
}

func (s *SQLStore) FindByIDs(ctx context.Context, ids []string) ([]model.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE id IN (%s)",
		recordColumns, s.table, strings.Join(placeholders, ", "))

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, s.storeError("FindByIDs", "query failed", err)
	}
	defer rows.Close()

	return s.scanRecords(rows)
}

func (s *SQLStore) Search(ctx context.Context, filters []model.FieldFilter, limit int) ([]model.Record, error) {
	where, args, err := buildWhere(filters)
	if err != nil {
		return nil, model.NewStoreError(model.CodeDocumentStoreError, model.StoreSchemaMismatch,
			"SQLStore", "Search", "filter translation failed", err)
	}

	query := fmt.Sprintf("SELECT %s FROM %s", recordColumns, s.table)
	if where != "" {
		query += " WHERE " + where
	}
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, s.storeError("Search", "query failed", err)
	}
	defer rows.Close()

	return s.scanRecords(rows)
}

func (s *SQLStore) All(ctx context.Context, fn func(model.Record) error) error {
	query := fmt.Sprintf("SELECT %s FROM %s", recordColumns, s.table)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return s.storeError("All", "query failed", err)
	}
	defer rows.Close()

	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return s.storeError("All", "row scan failed", err)
		}
		if err := fn(record); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *SQLStore) Upsert(ctx context.Context, record model.Record) error {
	if record.ID == "" {
		return model.NewStoreError(model.CodeDocumentStoreError, model.StoreSchemaMismatch,
			"SQLStore", "Upsert", "record ID cannot be empty", nil)
	}

	lists := make([]string, 0, 9)
	for _, field := range [][]string{
		record.Categories, record.Functionality, record.SearchKeywords,
		record.UseCases, record.Interfaces, record.Deployment,
		record.Languages, record.Integrations, record.SemanticTags,
	} {
		encoded, err := json.Marshal(emptyIfNil(field))
		if err != nil {
			return s.storeError("Upsert", "list encoding failed", err)
		}
		lists = append(lists, string(encoded))
	}

	pricing, err := json.Marshal(record.Pricing)
	if err != nil {
		return s.storeError("Upsert", "pricing encoding failed", err)
	}
	if record.Pricing == nil {
		pricing = []byte("{}")
	}

	hasFree := 0
	if record.HasFreeTier() {
		hasFree = 1
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
		name = excluded.name,
		description = excluded.description,
		long_description = excluded.long_description,
		categories = excluded.categories,
		functionality = excluded.functionality,
		search_keywords = excluded.search_keywords,
		use_cases = excluded.use_cases,
		interfaces = excluded.interfaces,
		deployment = excluded.deployment,
		languages = excluded.languages,
		integrations = excluded.integrations,
		semantic_tags = excluded.semantic_tags,
		pricing = excluded.pricing,
		has_free_tier = excluded.has_free_tier,
		url = excluded.url`, s.table, recordColumns)

	_, err = s.db.ExecContext(ctx, s.rebind(query),
		record.ID, record.Name, record.Description, record.LongDescription,
		lists[0], lists[1], lists[2], lists[3], lists[4], lists[5],
		lists[6], lists[7], lists[8],
		string(pricing), hasFree, record.URL)
	if err != nil {
		return s.storeError("Upsert", "write failed", err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *SQLStore) scanRecords(rows *sql.Rows) ([]model.Record, error) {
	var records []model.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, s.storeError("scan", "row scan failed", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, s.storeError("scan", "row iteration failed", err)
	}
	return records, nil
}

func scanRecord(row rowScanner) (model.Record, error) {
	var (
		r       model.Record
		lists   [9]string
		pricing string
		hasFree int
	)

	err := row.Scan(&r.ID, &r.Name, &r.Description, &r.LongDescription,
		&lists[0], &lists[1], &lists[2], &lists[3], &lists[4], &lists[5],
		&lists[6], &lists[7], &lists[8],
		&pricing, &hasFree, &r.URL)
	if err != nil {
		return model.Record{}, err
	}

	targets := []*[]string{
		&r.Categories, &r.Functionality, &r.SearchKeywords, &r.UseCases,
		&r.Interfaces, &r.Deployment, &r.Languages, &r.Integrations,
		&r.SemanticTags,
	}
	for i, target := range targets {
		if lists[i] == "" {
			continue
		}
		if err := json.Unmarshal([]byte(lists[i]), target); err != nil {
			return model.Record{}, fmt.Errorf("list column %d: %w", i, err)
		}
	}
	if pricing != "" && pricing != "{}" {
		if err := json.Unmarshal([]byte(pricing), &r.Pricing); err != nil {
			return model.Record{}, fmt.Errorf("pricing column: %w", err)
		}
	}
	return r, nil
}

func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func (s *SQLStore) storeError(op, message string, err error) error {
	return model.NewStoreError(model.CodeDocumentStoreError, model.StoreTransport,
		"SQLStore", op, message, err)
}
