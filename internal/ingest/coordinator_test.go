package ingest

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"granthalaya/pkg/database"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`PRAGMA foreign_keys = ON;`)
	require.NoError(t, err)

	require.NoError(t, database.MigrateFrom(db, "../../docs/schema.sql"))
	return db
}

func testCoordinator(t *testing.T) (*Coordinator, *sql.DB) {
	t.Helper()
	db := openTestDB(t)
	return NewCoordinator(db, zap.NewNop(), 10*time.Second), db
}

func sampleBatch() *Batch {
	return &Batch{
		Deck: DeckInput{
			ID:          "DECK-001",
			Name:        "Ramayana Collection",
			OwnerName:   "Sharma Family",
			LengthCM:    33.5,
			WidthCM:     4.2,
			TotalLeaves: 120,
			StitchType:  "double",
			Condition:   "good",
		},
		Granthas: []GranthaInput{
			{
				ID:       "G-001",
				Name:     "Bala Kanda",
				Author:   "Valmiki",
				Language: "Sanskrit",
				Images: []ImageInput{
					{
						Name: "leaf_001.tif",
						URL:  "https://archive.test/leaf_001.tif",
						Props: PropsInput{
							FileFormat:   "TIFF",
							ScannerModel: "Epson V850",
							OperatorName: "ravi",
						},
					},
				},
			},
			{
				ID:       "G-002",
				Name:     "Ayodhya Kanda",
				Author:   "Valmiki",
				Language: "Sanskrit",
			},
		},
	}
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}

func TestIngest_FullBatch(t *testing.T) {
	co, db := testCoordinator(t)

	res, err := co.Ingest(context.Background(), sampleBatch())
	require.NoError(t, err)

	assert.Equal(t, "DECK-001", res.DeckID)
	assert.Equal(t, 2, res.Granthas)
	assert.Equal(t, 1, res.Images)
	assert.Equal(t, 1, res.AuthorsCreated)
	assert.Equal(t, 1, res.LanguagesCreated)

	assert.Equal(t, 1, countRows(t, db, "decks"))
	assert.Equal(t, 2, countRows(t, db, "granthas"))
	assert.Equal(t, 1, countRows(t, db, "scanned_images"))
	assert.Equal(t, 1, countRows(t, db, "scan_properties"))

	// Linkage survives the round trip.
	var author, language string
	require.NoError(t, db.QueryRow(`
		SELECT a.name, l.name FROM granthas g
		JOIN authors a ON a.id = g.author_id
		JOIN languages l ON l.id = g.language_id
		WHERE g.id = 'G-001'
	`).Scan(&author, &language))
	assert.Equal(t, "Valmiki", author)
	assert.Equal(t, "Sanskrit", language)
}

func TestIngest_BadImageReferenceRollsBackEverything(t *testing.T) {
	co, db := testCoordinator(t)

	batch := sampleBatch()
	batch.ExtraImages = append(batch.ExtraImages, ImageInput{
		Name:      "leaf_999.tif",
		URL:       "https://archive.test/leaf_999.tif",
		GranthaID: "G-999",
	})

	_, err := co.Ingest(context.Background(), batch)
	require.ErrorIs(t, err, ErrMissingRef)

	// Nothing from the failed batch may remain, the valid rows included.
	assert.Zero(t, countRows(t, db, "decks"))
	assert.Zero(t, countRows(t, db, "granthas"))
	assert.Zero(t, countRows(t, db, "scanned_images"))
	assert.Zero(t, countRows(t, db, "authors"))
	assert.Zero(t, countRows(t, db, "languages"))
}

func TestIngest_DuplicateDeckID(t *testing.T) {
	co, db := testCoordinator(t)

	_, err := co.Ingest(context.Background(), sampleBatch())
	require.NoError(t, err)

	second := sampleBatch()
	second.Deck.Name = "Another Name"
	second.Granthas = nil

	_, err = co.Ingest(context.Background(), second)
	require.ErrorIs(t, err, ErrDuplicate)

	assert.Equal(t, 1, countRows(t, db, "decks"))
}

func TestIngest_AuthorDedupIsCaseInsensitive(t *testing.T) {
	co, db := testCoordinator(t)

	first := sampleBatch()
	first.Granthas = []GranthaInput{{ID: "G-001", Author: "Kalidasa", Language: "Sanskrit"}}
	res, err := co.Ingest(context.Background(), first)
	require.NoError(t, err)
	assert.Equal(t, 1, res.AuthorsCreated)

	second := sampleBatch()
	second.Deck.ID = "DECK-002"
	second.Granthas = []GranthaInput{{ID: "G-101", Author: " kalidasa ", Language: "Sanskrit"}}
	res, err = co.Ingest(context.Background(), second)
	require.NoError(t, err)
	assert.Zero(t, res.AuthorsCreated)
	assert.Zero(t, res.LanguagesCreated)

	assert.Equal(t, 1, countRows(t, db, "authors"))

	// Both granthas point at the same author row.
	var n int
	require.NoError(t, db.QueryRow(`
		SELECT COUNT(DISTINCT author_id) FROM granthas
	`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestIngest_LanguageNameNormalized(t *testing.T) {
	co, db := testCoordinator(t)

	batch := sampleBatch()
	batch.Granthas = []GranthaInput{
		{ID: "G-001", Author: "Valmiki", Language: `"sanskrit"`},
		{ID: "G-002", Author: "Valmiki", Language: "Sanskrit"},
	}

	res, err := co.Ingest(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 1, res.LanguagesCreated)

	var name string
	require.NoError(t, db.QueryRow(`SELECT name FROM languages`).Scan(&name))
	assert.Equal(t, "Sanskrit", name)
}

func TestIngest_MissingAuthorLanguageSubstituted(t *testing.T) {
	co, db := testCoordinator(t)

	batch := sampleBatch()
	batch.Granthas = []GranthaInput{{ID: "G-001"}}

	_, err := co.Ingest(context.Background(), batch)
	require.NoError(t, err)

	var author, language string
	require.NoError(t, db.QueryRow(`
		SELECT a.name, l.name FROM granthas g
		JOIN authors a ON a.id = g.author_id
		JOIN languages l ON l.id = g.language_id
		WHERE g.id = 'G-001'
	`).Scan(&author, &language))
	assert.Equal(t, UnknownName, author)
	assert.Equal(t, UnknownName, language)
}

func TestIngest_SubworksLandUnderSameDeck(t *testing.T) {
	co, db := testCoordinator(t)

	batch := sampleBatch()
	batch.Granthas = []GranthaInput{
		{
			ID:       "G-001",
			Author:   "Valmiki",
			Language: "Sanskrit",
			Subworks: []GranthaInput{
				{ID: "G-001A", Name: "Commentary", Author: "Govindaraja", Language: "Sanskrit"},
			},
		},
	}

	res, err := co.Ingest(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Granthas)

	var deckID string
	require.NoError(t, db.QueryRow(`SELECT deck_id FROM granthas WHERE id = 'G-001A'`).Scan(&deckID))
	assert.Equal(t, "DECK-001", deckID)
}

func TestIngest_EmptyPropsGetDefaults(t *testing.T) {
	co, db := testCoordinator(t)

	batch := sampleBatch()
	batch.Granthas[0].Images[0].Props = PropsInput{}

	_, err := co.Ingest(context.Background(), batch)
	require.NoError(t, err)

	var format, model, scanDate, operator string
	require.NoError(t, db.QueryRow(`
		SELECT file_format, scanner_model, scan_date, operator_name FROM scan_properties
	`).Scan(&format, &model, &scanDate, &operator))
	assert.Equal(t, "UNKNOWN", format)
	assert.Equal(t, "UNKNOWN", model)
	assert.Empty(t, scanDate)
	assert.Empty(t, operator)
}

func TestIngest_ValidatesBeforeTouchingStore(t *testing.T) {
	co, db := testCoordinator(t)

	batch := sampleBatch()
	batch.Deck.ID = "   "

	_, err := co.Ingest(context.Background(), batch)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "grantha_deck_id", verr.Column)
	assert.Zero(t, countRows(t, db, "decks"))
}

func TestNormalizeLanguageName(t *testing.T) {
	assert.Equal(t, "Sanskrit", normalizeLanguageName(` "sanskrit" `))
	assert.Equal(t, "Telugu", normalizeLanguageName("telugu"))
	assert.Equal(t, "Old Kannada", normalizeLanguageName("old Kannada"))
	assert.Empty(t, normalizeLanguageName(`""`))
}
