package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// UnknownName is substituted for missing author/language names.
const UnknownName = "Unknown"

// Coordinator materializes one batch as a single transaction: the deck, its
// granthas and subworks, authors/languages (reused on a case-insensitive name
// match, created as bare-name rows otherwise) and all scanned images with
// their properties.
type Coordinator struct {
	DB      *sql.DB
	Log     *zap.Logger
	Timeout time.Duration
}

func NewCoordinator(db *sql.DB, log *zap.Logger, timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Coordinator{DB: db, Log: log, Timeout: timeout}
}

func (co *Coordinator) Ingest(ctx context.Context, batch *Batch) (*Result, error) {
	if err := validateBatch(batch); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, co.Timeout)
	defer cancel()

	tx, err := co.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin ingest: %w", err)
	}

	res, err := co.ingestTx(ctx, tx, batch)
	if err != nil {
		_ = tx.Rollback()
		return nil, classifyErr(err)
	}

	if err := tx.Commit(); err != nil {
		_ = tx.Rollback()
		return nil, classifyErr(fmt.Errorf("commit ingest: %w", err))
	}
	return res, nil
}

func validateBatch(batch *Batch) error {
	if strings.TrimSpace(batch.Deck.ID) == "" {
		return &ValidationError{File: "batch", Column: "grantha_deck_id", Msg: "required"}
	}
	if strings.TrimSpace(batch.Deck.Name) == "" {
		return &ValidationError{File: "batch", Column: "grantha_deck_name", Msg: "required"}
	}
	return validateGranthas(batch.Granthas)
}

func validateGranthas(granthas []GranthaInput) error {
	for _, g := range granthas {
		if strings.TrimSpace(g.ID) == "" {
			return &ValidationError{File: "batch", Column: "grantha_id", Msg: "required"}
		}
		for _, img := range g.Images {
			if img.Name == "" || img.URL == "" {
				return &ValidationError{File: "batch", Column: "image_name", Msg: "image name and url required"}
			}
		}
		if err := validateGranthas(g.Subworks); err != nil {
			return err
		}
	}
	return nil
}

func (co *Coordinator) ingestTx(ctx context.Context, tx *sql.Tx, batch *Batch) (*Result, error) {
	res := &Result{DeckID: batch.Deck.ID}

	d := batch.Deck
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO decks (id, name, owner_name, source_address, length_cm, width_cm,
			total_leaves, total_images, stitch_type, physical_condition, user_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, d.ID, d.Name, d.OwnerName, d.SourceAddress, d.LengthCM, d.WidthCM,
		d.TotalLeaves, d.TotalImages, d.StitchType, d.Condition, nullString(d.UserID),
	); err != nil {
		return nil, fmt.Errorf("insert deck %s: %w", d.ID, err)
	}

	if err := co.insertGranthas(ctx, tx, d.ID, batch.Granthas, res); err != nil {
		return nil, err
	}

	for _, img := range batch.ExtraImages {
		if err := co.insertImage(ctx, tx, img.GranthaID, img, res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (co *Coordinator) insertGranthas(ctx context.Context, tx *sql.Tx, deckID string, granthas []GranthaInput, res *Result) error {
	for _, g := range granthas {
		// Resolution is per grantha and uncached: repeated names hit the
		// same stored row via the case-insensitive lookup anyway.
		authorID, err := co.resolveAuthor(ctx, tx, g.Author, g.ID, res)
		if err != nil {
			return err
		}
		languageID, err := co.resolveLanguage(ctx, tx, g.Language, g.ID, res)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO granthas (id, deck_id, name, author_id, language_id, description, remarks)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, g.ID, deckID, g.Name, authorID, languageID, g.Description, g.Remarks); err != nil {
			return fmt.Errorf("insert grantha %s: %w", g.ID, err)
		}
		res.Granthas++

		for _, img := range g.Images {
			if err := co.insertImage(ctx, tx, g.ID, img, res); err != nil {
				return err
			}
		}

		// Subworks repeat the same sequence under the same deck.
		if err := co.insertGranthas(ctx, tx, deckID, g.Subworks, res); err != nil {
			return err
		}
	}
	return nil
}

func (co *Coordinator) insertImage(ctx context.Context, tx *sql.Tx, granthaID string, img ImageInput, res *Result) error {
	imageID := uuid.NewString()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO scanned_images (id, grantha_id, name, image_url)
		VALUES (?, ?, ?, ?)
	`, imageID, granthaID, img.Name, img.URL); err != nil {
		return fmt.Errorf("insert image %s: %w", img.Name, err)
	}

	p := img.Props
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO scan_properties (image_id, file_format, scanner_model, resolution,
			scan_date, post_process_date, lighting, color_depth, orientation, operator_name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, imageID,
		orUnknown(p.FileFormat), orUnknown(p.ScannerModel), orUnknown(p.Resolution),
		p.ScanDate, p.PostProcessDate,
		orUnknown(p.Lighting), orUnknown(p.ColorDepth), orUnknown(p.Orientation),
		p.OperatorName,
	); err != nil {
		return fmt.Errorf("insert scan properties for %s: %w", img.Name, err)
	}

	res.Images++
	return nil
}

// resolveAuthor returns the id of an existing author whose name matches
// case-insensitively, creating a bare-name row on a miss. Only the name is
// populated on auto-create; the remaining metadata is filled in later through
// the author update endpoint.
func (co *Coordinator) resolveAuthor(ctx context.Context, tx *sql.Tx, name, granthaID string, res *Result) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		co.Log.Warn("grantha has no author, substituting placeholder",
			zap.String("grantha_id", granthaID),
			zap.String("author", UnknownName))
		name = UnknownName
	}

	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM authors WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("lookup author %q: %w", name, err)
	}

	id = uuid.NewString()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO authors (id, name) VALUES (?, ?)
	`, id, name); err != nil {
		return "", fmt.Errorf("create author %q: %w", name, err)
	}
	res.AuthorsCreated++
	return id, nil
}

func (co *Coordinator) resolveLanguage(ctx context.Context, tx *sql.Tx, name, granthaID string, res *Result) (string, error) {
	name = normalizeLanguageName(name)
	if name == "" {
		co.Log.Warn("grantha has no language, substituting placeholder",
			zap.String("grantha_id", granthaID),
			zap.String("language", UnknownName))
		name = UnknownName
	}

	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM languages WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("lookup language %q: %w", name, err)
	}

	id = uuid.NewString()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO languages (id, name) VALUES (?, ?)
	`, id, name); err != nil {
		return "", fmt.Errorf("create language %q: %w", name, err)
	}
	res.LanguagesCreated++
	return id, nil
}

// normalizeLanguageName strips surrounding quotes and capitalizes the first
// letter. Author names keep their original casing; language names are the one
// place the source data was messy enough to need this.
func normalizeLanguageName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.Trim(name, `"'`)
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	runes := []rune(name)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// classifyErr maps store constraint failures onto the ingest error taxonomy.
// Anything unrecognized passes through with its message.
func classifyErr(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %v", ErrDuplicate, err)
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%w: %v", ErrMissingRef, err)
		}
	}
	return err
}

func orUnknown(v string) string {
	if strings.TrimSpace(v) == "" {
		return "UNKNOWN"
	}
	return v
}

func nullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}
