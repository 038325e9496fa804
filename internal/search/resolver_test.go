package search

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"granthalaya/internal/catalog"
	"granthalaya/pkg/database"
)

type fakePlanner struct {
	resp  string
	err   error
	calls int
}

func (p *fakePlanner) Plan(context.Context, string) (string, error) {
	p.calls++
	return p.resp, p.err
}

func newTestResolver(t *testing.T, planner Planner) (*Resolver, *sql.DB) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`PRAGMA foreign_keys = ON;`)
	require.NoError(t, err)
	require.NoError(t, database.MigrateFrom(db, "../../docs/schema.sql"))

	seedCatalog(t, db)
	return NewResolver(db, catalog.NewRepo(db), planner, zap.NewNop()), db
}

func seedCatalog(t *testing.T, db *sql.DB) {
	t.Helper()

	stmts := []struct {
		sql  string
		args []any
	}{
		{`INSERT INTO authors (id, name) VALUES (?, ?)`, []any{"a1", "Kalidasa"}},
		{`INSERT INTO languages (id, name) VALUES (?, ?)`, []any{"l1", "Sanskrit"}},
		{`INSERT INTO decks (id, name, owner_name, length_cm, stitch_type, physical_condition)
		  VALUES (?, ?, ?, ?, ?, ?)`,
			[]any{"DECK-100", "Mackenzie Collection", "Sharma Family", 33.5, "double", "good"}},
		// A second deck whose display name contains the first deck's code.
		{`INSERT INTO decks (id, name) VALUES (?, ?)`,
			[]any{"DECK-200", "Copies of DECK-100"}},
		{`INSERT INTO granthas (id, deck_id, name, author_id, language_id)
		  VALUES (?, ?, ?, ?, ?)`,
			[]any{"G-100", "DECK-100", "Raghuvamsa", "a1", "l1"}},
	}
	for _, s := range stmts {
		_, err := db.Exec(s.sql, s.args...)
		require.NoError(t, err)
	}
}

func TestResolve_ExactDeckIDBeatsNameMatch(t *testing.T) {
	planner := &fakePlanner{}
	r, _ := newTestResolver(t, planner)

	// "Copies of DECK-100" also contains the code; the exact match must win
	// and must be the only result.
	resp := r.Resolve(context.Background(), "DECK-100")

	require.Equal(t, 1, resp.Count)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "deck", resp.Results[0].Type)
	assert.Equal(t, "DECK-100", resp.Results[0].Deck.ID)
	assert.False(t, resp.Fallback)
	assert.Zero(t, planner.calls, "identifier shortcut must not consult the model")

	// The tree comes back populated.
	require.Len(t, resp.Results[0].Deck.Granthas, 1)
	assert.Equal(t, "Raghuvamsa", resp.Results[0].Deck.Granthas[0].Name)
}

func TestResolve_ExactGranthaID(t *testing.T) {
	planner := &fakePlanner{}
	r, _ := newTestResolver(t, planner)

	resp := r.Resolve(context.Background(), "G-100")

	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "grantha", resp.Results[0].Type)
	assert.Equal(t, "G-100", resp.Results[0].Grantha.ID)
	assert.Equal(t, "Kalidasa", resp.Results[0].Grantha.Author.Name)
	assert.Zero(t, planner.calls)
}

func TestResolve_DeckNameShortcut(t *testing.T) {
	planner := &fakePlanner{}
	r, _ := newTestResolver(t, planner)

	resp := r.Resolve(context.Background(), "Mackenzie")

	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "DECK-100", resp.Results[0].Deck.ID)
	assert.Zero(t, planner.calls, "name shortcut must not consult the model")
}

func TestResolve_PlanExecuted(t *testing.T) {
	planner := &fakePlanner{resp: `{
		"searchType": "grantha",
		"filters": {"author": "Kalidasa"},
		"searchFields": ["author"]
	}`}
	r, _ := newTestResolver(t, planner)

	resp := r.Resolve(context.Background(), "works by the poet kalidasa")

	assert.Equal(t, 1, planner.calls)
	assert.False(t, resp.Fallback)
	require.NotNil(t, resp.SearchStrategy)
	assert.Equal(t, "grantha", resp.SearchStrategy.SearchType)

	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "grantha", resp.Results[0].Type)
	assert.Equal(t, "G-100", resp.Results[0].Grantha.ID)
}

func TestResolve_PlannerErrorFallsBack(t *testing.T) {
	planner := &fakePlanner{err: errors.New("model unavailable")}
	r, _ := newTestResolver(t, planner)

	resp := r.Resolve(context.Background(), "kalidasa")

	assert.True(t, resp.Fallback)
	assert.NotEmpty(t, resp.Error)

	// The substring fallback still finds the grantha through its author.
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "grantha", resp.Results[0].Type)
	assert.Equal(t, "G-100", resp.Results[0].Grantha.ID)
}

func TestResolve_BadPlanJSONFallsBack(t *testing.T) {
	planner := &fakePlanner{resp: "I do not understand the question."}
	r, _ := newTestResolver(t, planner)

	resp := r.Resolve(context.Background(), "sanskrit")

	assert.True(t, resp.Fallback)
	assert.NotEmpty(t, resp.Error)
	// Fallback matches the language name.
	assert.Equal(t, 1, resp.Count)
}

func TestResolve_FallbackNeverErrorsOut(t *testing.T) {
	planner := &fakePlanner{err: errors.New("model unavailable")}
	r, _ := newTestResolver(t, planner)

	resp := r.Resolve(context.Background(), "query matching absolutely nothing xyzzy")

	assert.True(t, resp.Fallback)
	assert.NotNil(t, resp.Results)
	assert.Zero(t, resp.Count)
}

func TestResolve_EmptyQuery(t *testing.T) {
	planner := &fakePlanner{}
	r, _ := newTestResolver(t, planner)

	resp := r.Resolve(context.Background(), "   ")

	assert.Zero(t, resp.Count)
	assert.Empty(t, resp.Results)
	assert.Zero(t, planner.calls)
}

func TestIDShaped(t *testing.T) {
	assert.True(t, idShaped("DECK-100"))
	assert.True(t, idShaped("G_12:3"))
	assert.False(t, idShaped("Mackenzie"), "no digits")
	assert.False(t, idShaped("palm leaf 100"), "spaces")
	assert.False(t, idShaped("works by kalidasa"))
}
