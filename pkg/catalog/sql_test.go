package catalog

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tooldex/tooldex/pkg/model"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := NewSQLStoreFromDB(db, "tools")
	require.NoError(t, store.EnsureSchema(context.Background()))
	return store
}

func fixtureRecords() []model.Record {
	return []model.Record{
		{
			ID:            "figma",
			Name:          "Figma",
			Description:   "collaborative design tool",
			Categories:    []string{"design", "prototyping"},
			Functionality: []string{"vector editing"},
			Interfaces:    []string{"web"},
			Pricing:       map[string]float64{"free": 0, "pro": 12},
			URL:           "https://figma.com",
		},
		{
			ID:          "sketch",
			Name:        "Sketch",
			Description: "mac design toolkit",
			Categories:  []string{"design"},
			Interfaces:  []string{"desktop"},
			Pricing:     map[string]float64{"standard": 9},
		},
		{
			ID:          "postgres",
			Name:        "PostgreSQL",
			Description: "relational database",
			Categories:  []string{"database"},
			Interfaces:  []string{"cli"},
		},
	}
}

func seedStore(t *testing.T, store *SQLStore) {
	t.Helper()
	for _, r := range fixtureRecords() {
		require.NoError(t, store.Upsert(context.Background(), r))
	}
}

func TestUpsertRoundTrip(t *testing.T) {
	store := newTestStore(t)
	seedStore(t, store)

	records, err := store.FindByIDs(context.Background(), []string{"figma"})
	require.NoError(t, err)
	require.Len(t, records, 1)

	got := records[0]
	assert.Equal(t, "Figma", got.Name)
	assert.Equal(t, []string{"design", "prototyping"}, got.Categories)
	assert.Equal(t, []string{"vector editing"}, got.Functionality)
	assert.Equal(t, map[string]float64{"free": 0, "pro": 12}, got.Pricing)
	assert.Equal(t, "https://figma.com", got.URL)
	assert.True(t, got.HasFreeTier())
}

func TestUpsertOverwrites(t *testing.T) {
	store := newTestStore(t)
	seedStore(t, store)

	updated := fixtureRecords()[0]
	updated.Description = "design tool, now updated"
	require.NoError(t, store.Upsert(context.Background(), updated))

	records, err := store.FindByIDs(context.Background(), []string{"figma"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "design tool, now updated", records[0].Description)
}

func TestUpsertRejectsEmptyID(t *testing.T) {
	store := newTestStore(t)
	err := store.Upsert(context.Background(), model.Record{Name: "nameless"})
	require.Error(t, err)
	assert.Equal(t, model.CodeDocumentStoreError, model.CodeOf(err))
}

func TestFindByIDsSkipsMissing(t *testing.T) {
	store := newTestStore(t)
	seedStore(t, store)

	records, err := store.FindByIDs(context.Background(), []string{"figma", "ghost"})
	require.NoError(t, err)
	assert.Len(t, records, 1)

	none, err := store.FindByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestSearchByListMembership(t *testing.T) {
	store := newTestStore(t)
	seedStore(t, store)

	records, err := store.Search(context.Background(), []model.FieldFilter{
		{Field: "categories", Operator: model.OpContains, Value: "design"},
	}, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	var ids []string
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	assert.ElementsMatch(t, []string{"figma", "sketch"}, ids)
}

func TestSearchByFreeTier(t *testing.T) {
	store := newTestStore(t)
	seedStore(t, store)

	records, err := store.Search(context.Background(), []model.FieldFilter{
		{Field: "pricing.hasFreeTier", Operator: model.OpEqual, Value: true},
	}, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "figma", records[0].ID)
}

func TestSearchConjunction(t *testing.T) {
	store := newTestStore(t)
	seedStore(t, store)

	records, err := store.Search(context.Background(), []model.FieldFilter{
		{Field: "categories", Operator: model.OpContains, Value: "design"},
		{Field: "interfaces", Operator: model.OpContains, Value: "web"},
	}, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "figma", records[0].ID)
}

func TestSearchLimit(t *testing.T) {
	store := newTestStore(t)
	seedStore(t, store)

	records, err := store.Search(context.Background(), nil, 2)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestSearchUnknownField(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Search(context.Background(), []model.FieldFilter{
		{Field: "popularity", Operator: model.OpEqual, Value: 5},
	}, 10)
	require.Error(t, err)
	assert.Equal(t, model.CodeDocumentStoreError, model.CodeOf(err))
}

func TestAllStreamsEveryRecord(t *testing.T) {
	store := newTestStore(t)
	seedStore(t, store)

	var seen []string
	err := store.All(context.Background(), func(r model.Record) error {
		seen = append(seen, r.ID)
		return nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"figma", "sketch", "postgres"}, seen)
}

func TestAllStopsOnCallbackError(t *testing.T) {
	store := newTestStore(t)
	seedStore(t, store)

	count := 0
	err := store.All(context.Background(), func(r model.Record) error {
		count++
		return context.Canceled
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, count)
}

func TestBuildWhere(t *testing.T) {
	where, args, err := buildWhere([]model.FieldFilter{
		{Field: "categories", Operator: model.OpContains, Value: "design"},
		{Field: "pricing.hasFreeTier", Operator: model.OpEqual, Value: true},
		{Field: "name", Operator: model.OpEqual, Value: "Figma"},
	})
	require.NoError(t, err)
	assert.Equal(t, `categories LIKE ? AND has_free_tier = ? AND name = ?`, where)
	assert.Equal(t, []interface{}{`%"design"%`, 1, "Figma"}, args)
}

func TestRebindPostgres(t *testing.T) {
	store := &SQLStore{postgres: true}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2",
		store.rebind("SELECT * FROM t WHERE a = ? AND b = ?"))

	sqlite := &SQLStore{postgres: false}
	assert.Equal(t, "a = ?", sqlite.rebind("a = ?"))
}
