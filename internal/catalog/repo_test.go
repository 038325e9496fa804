package catalog

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"granthalaya/pkg/database"
)

func newTestRepo(t *testing.T) (*Repo, *sql.DB) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`PRAGMA foreign_keys = ON;`)
	require.NoError(t, err)
	require.NoError(t, database.MigrateFrom(db, "../../docs/schema.sql"))

	seed := []string{
		`INSERT INTO authors (id, name) VALUES ('a1', 'Valmiki')`,
		`INSERT INTO languages (id, name) VALUES ('l1', 'Sanskrit')`,
		`INSERT INTO decks (id, name, owner_name, length_cm, stitch_type, physical_condition)
		 VALUES ('DECK-001', 'Ramayana Collection', 'Sharma Family', 33.5, 'double', 'good')`,
		`INSERT INTO decks (id, name, physical_condition)
		 VALUES ('DECK-002', 'Loose Leaves', 'fragile')`,
		`INSERT INTO granthas (id, deck_id, name, author_id, language_id)
		 VALUES ('G-001', 'DECK-001', 'Bala Kanda', 'a1', 'l1')`,
		`INSERT INTO scanned_images (id, grantha_id, name, image_url)
		 VALUES ('img1', 'G-001', 'leaf_001.tif', 'https://archive.test/leaf_001.tif')`,
		`INSERT INTO scan_properties (image_id, file_format) VALUES ('img1', 'TIFF')`,
	}
	for _, s := range seed {
		_, err := db.Exec(s)
		require.NoError(t, err)
	}
	return NewRepo(db), db
}

func TestGetDeckTree(t *testing.T) {
	repo, _ := newTestRepo(t)

	d, err := repo.GetDeckTree(context.Background(), "DECK-001")
	require.NoError(t, err)
	require.NotNil(t, d)

	assert.Equal(t, "Ramayana Collection", d.Name)
	require.NotNil(t, d.LengthCM)
	assert.Equal(t, 33.5, *d.LengthCM)

	require.Len(t, d.Granthas, 1)
	g := d.Granthas[0]
	assert.Equal(t, "Bala Kanda", g.Name)
	require.NotNil(t, g.Author)
	assert.Equal(t, "Valmiki", g.Author.Name)
	require.NotNil(t, g.Language)
	assert.Equal(t, "Sanskrit", g.Language.Name)

	require.Len(t, g.Images, 1)
	require.NotNil(t, g.Images[0].Properties)
	assert.Equal(t, "TIFF", g.Images[0].Properties.FileFormat)
}

func TestGetDeck_Missing(t *testing.T) {
	repo, _ := newTestRepo(t)

	d, err := repo.GetDeck(context.Background(), "DECK-999")
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestGetGrantha_Missing(t *testing.T) {
	repo, _ := newTestRepo(t)

	g, err := repo.GetGrantha(context.Background(), "G-999")
	require.NoError(t, err)
	assert.Nil(t, g)
}

func TestListImages_WithoutProperties(t *testing.T) {
	repo, db := newTestRepo(t)

	_, err := db.Exec(`INSERT INTO scanned_images (id, grantha_id, name, image_url)
		VALUES ('img2', 'G-001', 'leaf_002.tif', 'https://archive.test/leaf_002.tif')`)
	require.NoError(t, err)

	images, err := repo.ListImages(context.Background(), "G-001")
	require.NoError(t, err)
	require.Len(t, images, 2)

	// leaf_002 has no scan_properties row; Properties stays nil.
	assert.Nil(t, images[1].Properties)
}

func TestListAndCount(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	decks, err := repo.List(ctx, ListQuery{})
	require.NoError(t, err)
	assert.Len(t, decks, 2)

	total, err := repo.Count(ctx, ListQuery{Condition: "fragile"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	decks, err = repo.List(ctx, ListQuery{Q: "sharma"})
	require.NoError(t, err)
	require.Len(t, decks, 1)
	assert.Equal(t, "DECK-001", decks[0].ID)
}

func TestUpdateDeck(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	owner := "Archive Trust"
	leaves := 150
	ok, err := repo.UpdateDeck(ctx, "DECK-001", DeckUpdate{OwnerName: &owner, TotalLeaves: &leaves})
	require.NoError(t, err)
	assert.True(t, ok)

	d, err := repo.GetDeck(ctx, "DECK-001")
	require.NoError(t, err)
	assert.Equal(t, "Archive Trust", d.OwnerName)
	require.NotNil(t, d.TotalLeaves)
	assert.Equal(t, 150, *d.TotalLeaves)

	// No fields set: nothing happens, no error.
	ok, err = repo.UpdateDeck(ctx, "DECK-001", DeckUpdate{})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.UpdateDeck(ctx, "DECK-999", DeckUpdate{OwnerName: &owner})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteDeck_Cascades(t *testing.T) {
	repo, db := newTestRepo(t)

	ok, err := repo.DeleteDeck(context.Background(), "DECK-001")
	require.NoError(t, err)
	assert.True(t, ok)

	for _, table := range []string{"granthas", "scanned_images", "scan_properties"} {
		var n int
		require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
		assert.Zero(t, n, table)
	}
}

func TestUpdateAuthor_FillsInMetadata(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	bio := "Author of the Ramayana."
	ok, err := repo.UpdateAuthor(ctx, "a1", AuthorUpdate{Bio: &bio})
	require.NoError(t, err)
	assert.True(t, ok)

	authors, err := repo.ListAuthors(ctx)
	require.NoError(t, err)
	require.Len(t, authors, 1)
	assert.Equal(t, bio, authors[0].Bio)
}

func TestFindDecksByName(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	ids, err := repo.FindDecksByName(ctx, "ramayana")
	require.NoError(t, err)
	assert.Equal(t, []string{"DECK-001"}, ids)

	ids, err = repo.FindDecksByName(ctx, "nothing like this")
	require.NoError(t, err)
	assert.Empty(t, ids)
}
