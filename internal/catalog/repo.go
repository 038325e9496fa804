package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"granthalaya/pkg/models"
)

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

type ListQuery struct {
	Q          string // keyword search in deck name/owner
	StitchType string
	Condition  string
	Limit      int
	Offset     int
}

const deckColumns = `id, name, owner_name, source_address, length_cm, width_cm,
	total_leaves, total_images, stitch_type, physical_condition, user_id,
	created_at, updated_at`

func scanDeck(scan func(dest ...any) error) (*models.Deck, error) {
	var (
		d          models.Deck
		owner      sql.NullString
		source     sql.NullString
		length     sql.NullFloat64
		width      sql.NullFloat64
		leaves     sql.NullInt64
		images     sql.NullInt64
		stitch     sql.NullString
		condition  sql.NullString
		userID     sql.NullString
	)

	if err := scan(
		&d.ID, &d.Name, &owner, &source, &length, &width,
		&leaves, &images, &stitch, &condition, &userID,
		&d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		return nil, err
	}

	d.OwnerName = owner.String
	d.SourceAddress = source.String
	if length.Valid {
		v := length.Float64
		d.LengthCM = &v
	}
	if width.Valid {
		v := width.Float64
		d.WidthCM = &v
	}
	if leaves.Valid {
		v := int(leaves.Int64)
		d.TotalLeaves = &v
	}
	if images.Valid {
		v := int(images.Int64)
		d.TotalImages = &v
	}
	d.StitchType = stitch.String
	d.Condition = condition.String
	d.UserID = userID.String
	return &d, nil
}

func (r *Repo) GetDeck(ctx context.Context, id string) (*models.Deck, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+deckColumns+` FROM decks WHERE id = ?`, id)
	d, err := scanDeck(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get deck: %w", err)
	}
	return d, nil
}

// GetDeckTree loads a deck with its granthas, their author/language rows and
// scanned images (with scan properties) attached.
func (r *Repo) GetDeckTree(ctx context.Context, id string) (*models.Deck, error) {
	d, err := r.GetDeck(ctx, id)
	if err != nil || d == nil {
		return d, err
	}
	if err := r.attachGranthas(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// LoadDeckTrees loads full trees for the given deck ids, preserving order and
// skipping ids that no longer exist.
func (r *Repo) LoadDeckTrees(ctx context.Context, ids []string) ([]models.Deck, error) {
	out := make([]models.Deck, 0, len(ids))
	for _, id := range ids {
		d, err := r.GetDeckTree(ctx, id)
		if err != nil {
			return nil, err
		}
		if d != nil {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r *Repo) attachGranthas(ctx context.Context, d *models.Deck) error {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT g.id, g.deck_id, g.name, g.author_id, g.language_id,
		       g.description, g.remarks, g.created_at, g.updated_at,
		       a.name, l.name
		FROM granthas g
		JOIN authors a ON a.id = g.author_id
		JOIN languages l ON l.id = g.language_id
		WHERE g.deck_id = ?
		ORDER BY g.id
	`, d.ID)
	if err != nil {
		return fmt.Errorf("load granthas: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			g        models.Grantha
			author   models.Author
			language models.Language
		)
		if err := rows.Scan(
			&g.ID, &g.DeckID, &g.Name, &g.AuthorID, &g.LanguageID,
			&g.Description, &g.Remarks, &g.CreatedAt, &g.UpdatedAt,
			&author.Name, &language.Name,
		); err != nil {
			return fmt.Errorf("scan grantha: %w", err)
		}
		author.ID = g.AuthorID
		language.ID = g.LanguageID
		g.Author = &author
		g.Language = &language
		d.Granthas = append(d.Granthas, g)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("granthas rows: %w", err)
	}

	for i := range d.Granthas {
		images, err := r.ListImages(ctx, d.Granthas[i].ID)
		if err != nil {
			return err
		}
		d.Granthas[i].Images = images
	}
	return nil
}

func (r *Repo) GetGrantha(ctx context.Context, id string) (*models.Grantha, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT g.id, g.deck_id, g.name, g.author_id, g.language_id,
		       g.description, g.remarks, g.created_at, g.updated_at,
		       a.name, l.name
		FROM granthas g
		JOIN authors a ON a.id = g.author_id
		JOIN languages l ON l.id = g.language_id
		WHERE g.id = ?
	`, id)

	var (
		g        models.Grantha
		author   models.Author
		language models.Language
	)
	if err := row.Scan(
		&g.ID, &g.DeckID, &g.Name, &g.AuthorID, &g.LanguageID,
		&g.Description, &g.Remarks, &g.CreatedAt, &g.UpdatedAt,
		&author.Name, &language.Name,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get grantha: %w", err)
	}
	author.ID = g.AuthorID
	language.ID = g.LanguageID
	g.Author = &author
	g.Language = &language

	images, err := r.ListImages(ctx, g.ID)
	if err != nil {
		return nil, err
	}
	g.Images = images
	return &g, nil
}

func (r *Repo) ListImages(ctx context.Context, granthaID string) ([]models.ScannedImage, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT i.id, i.grantha_id, i.name, i.image_url, i.created_at,
		       p.file_format, p.scanner_model, p.resolution, p.scan_date,
		       p.post_process_date, p.lighting, p.color_depth, p.orientation,
		       p.operator_name
		FROM scanned_images i
		LEFT JOIN scan_properties p ON p.image_id = i.id
		WHERE i.grantha_id = ?
		ORDER BY i.name
	`, granthaID)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()

	var out []models.ScannedImage
	for rows.Next() {
		var (
			img   models.ScannedImage
			props [9]sql.NullString
		)
		if err := rows.Scan(
			&img.ID, &img.GranthaID, &img.Name, &img.ImageURL, &img.CreatedAt,
			&props[0], &props[1], &props[2], &props[3], &props[4],
			&props[5], &props[6], &props[7], &props[8],
		); err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		if props[0].Valid {
			img.Properties = &models.ScanProperties{
				ImageID:         img.ID,
				FileFormat:      props[0].String,
				ScannerModel:    props[1].String,
				Resolution:      props[2].String,
				ScanDate:        props[3].String,
				PostProcessDate: props[4].String,
				Lighting:        props[5].String,
				ColorDepth:      props[6].String,
				Orientation:     props[7].String,
				OperatorName:    props[8].String,
			}
		}
		out = append(out, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("images rows: %w", err)
	}
	return out, nil
}

func (r *Repo) Count(ctx context.Context, q ListQuery) (int, error) {
	sqlStr, args := buildListSQL(q, true)
	var total int
	if err := r.DB.QueryRowContext(ctx, sqlStr, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count decks: %w", err)
	}
	return total, nil
}

func (r *Repo) List(ctx context.Context, q ListQuery) ([]models.Deck, error) {
	sqlStr, args := buildListSQL(q, false)

	rows, err := r.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list decks: %w", err)
	}
	defer rows.Close()

	out := make([]models.Deck, 0, q.Limit)
	for rows.Next() {
		d, err := scanDeck(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan deck: %w", err)
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("decks rows: %w", err)
	}
	return out, nil
}

// buildListSQL builds either COUNT(*) or the SELECT list for deck listing.
func buildListSQL(q ListQuery, countOnly bool) (string, []any) {
	baseSelect := `SELECT ` + deckColumns + ` FROM decks`
	if countOnly {
		baseSelect = `SELECT COUNT(*) FROM decks`
	}

	var where []string
	var args []any

	if strings.TrimSpace(q.Q) != "" {
		where = append(where, "(LOWER(name) LIKE ? OR LOWER(owner_name) LIKE ?)")
		kw := "%" + strings.ToLower(strings.TrimSpace(q.Q)) + "%"
		args = append(args, kw, kw)
	}
	if strings.TrimSpace(q.StitchType) != "" {
		where = append(where, "LOWER(stitch_type) = ?")
		args = append(args, strings.ToLower(strings.TrimSpace(q.StitchType)))
	}
	if strings.TrimSpace(q.Condition) != "" {
		where = append(where, "LOWER(physical_condition) = ?")
		args = append(args, strings.ToLower(strings.TrimSpace(q.Condition)))
	}

	sqlStr := baseSelect
	if len(where) > 0 {
		sqlStr += " WHERE " + strings.Join(where, " AND ")
	}

	if !countOnly {
		sqlStr += " ORDER BY name ASC"
		sqlStr += " LIMIT ? OFFSET ?"
		limit := q.Limit
		if limit <= 0 || limit > 100 {
			limit = 20
		}
		offset := q.Offset
		if offset < 0 {
			offset = 0
		}
		args = append(args, limit, offset)
	}

	return sqlStr, args
}

type DeckUpdate struct {
	Name          *string  `json:"name"`
	OwnerName     *string  `json:"owner_name"`
	SourceAddress *string  `json:"source_address"`
	LengthCM      *float64 `json:"length_cm"`
	WidthCM       *float64 `json:"width_cm"`
	TotalLeaves   *int     `json:"total_leaves"`
	TotalImages   *int     `json:"total_images"`
	StitchType    *string  `json:"stitch_type"`
	Condition     *string  `json:"condition"`
}

// UpdateDeck applies the non-nil fields of upd to one deck row.
func (r *Repo) UpdateDeck(ctx context.Context, id string, upd DeckUpdate) (bool, error) {
	var sets []string
	var args []any

	set := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if upd.Name != nil {
		set("name", *upd.Name)
	}
	if upd.OwnerName != nil {
		set("owner_name", *upd.OwnerName)
	}
	if upd.SourceAddress != nil {
		set("source_address", *upd.SourceAddress)
	}
	if upd.LengthCM != nil {
		set("length_cm", *upd.LengthCM)
	}
	if upd.WidthCM != nil {
		set("width_cm", *upd.WidthCM)
	}
	if upd.TotalLeaves != nil {
		set("total_leaves", *upd.TotalLeaves)
	}
	if upd.TotalImages != nil {
		set("total_images", *upd.TotalImages)
	}
	if upd.StitchType != nil {
		set("stitch_type", *upd.StitchType)
	}
	if upd.Condition != nil {
		set("physical_condition", *upd.Condition)
	}
	if len(sets) == 0 {
		return false, nil
	}

	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)

	res, err := r.DB.ExecContext(ctx,
		"UPDATE decks SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return false, fmt.Errorf("update deck: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// DeleteDeck removes a deck; granthas, images and scan properties go with it
// via the schema's cascade rules.
func (r *Repo) DeleteDeck(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM decks WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete deck: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

type GranthaUpdate struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Remarks     *string `json:"remarks"`
}

func (r *Repo) UpdateGrantha(ctx context.Context, id string, upd GranthaUpdate) (bool, error) {
	var sets []string
	var args []any

	if upd.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *upd.Name)
	}
	if upd.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *upd.Description)
	}
	if upd.Remarks != nil {
		sets = append(sets, "remarks = ?")
		args = append(args, *upd.Remarks)
	}
	if len(sets) == 0 {
		return false, nil
	}

	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)

	res, err := r.DB.ExecContext(ctx,
		"UPDATE granthas SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return false, fmt.Errorf("update grantha: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *Repo) DeleteGrantha(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM granthas WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete grantha: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *Repo) ListAuthors(ctx context.Context) ([]models.Author, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, name, birth_year, death_year, bio, scribe_name, created_at, updated_at
		FROM authors
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list authors: %w", err)
	}
	defer rows.Close()

	var out []models.Author
	for rows.Next() {
		var (
			a      models.Author
			birth  sql.NullInt64
			death  sql.NullInt64
			bio    sql.NullString
			scribe sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.Name, &birth, &death, &bio, &scribe, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan author: %w", err)
		}
		if birth.Valid {
			v := int(birth.Int64)
			a.BirthYear = &v
		}
		if death.Valid {
			v := int(death.Int64)
			a.DeathYear = &v
		}
		a.Bio = bio.String
		a.ScribeName = scribe.String
		out = append(out, a)
	}
	return out, rows.Err()
}

type AuthorUpdate struct {
	Name       *string `json:"name"`
	BirthYear  *int    `json:"birth_year"`
	DeathYear  *int    `json:"death_year"`
	Bio        *string `json:"bio"`
	ScribeName *string `json:"scribe_name"`
}

// UpdateAuthor fills in metadata on an author row, typically one auto-created
// as a bare name during ingestion.
func (r *Repo) UpdateAuthor(ctx context.Context, id string, upd AuthorUpdate) (bool, error) {
	var sets []string
	var args []any

	if upd.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, strings.TrimSpace(*upd.Name))
	}
	if upd.BirthYear != nil {
		sets = append(sets, "birth_year = ?")
		args = append(args, *upd.BirthYear)
	}
	if upd.DeathYear != nil {
		sets = append(sets, "death_year = ?")
		args = append(args, *upd.DeathYear)
	}
	if upd.Bio != nil {
		sets = append(sets, "bio = ?")
		args = append(args, *upd.Bio)
	}
	if upd.ScribeName != nil {
		sets = append(sets, "scribe_name = ?")
		args = append(args, *upd.ScribeName)
	}
	if len(sets) == 0 {
		return false, nil
	}

	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)

	res, err := r.DB.ExecContext(ctx,
		"UPDATE authors SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return false, fmt.Errorf("update author: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *Repo) ListLanguages(ctx context.Context) ([]models.Language, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, name, created_at, updated_at
		FROM languages
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list languages: %w", err)
	}
	defer rows.Close()

	var out []models.Language
	for rows.Next() {
		var l models.Language
		if err := rows.Scan(&l.ID, &l.Name, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan language: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// FindDecksByName returns ids of decks whose display name contains the given
// string, case-insensitively.
func (r *Repo) FindDecksByName(ctx context.Context, substr string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id FROM decks
		WHERE LOWER(name) LIKE ?
		ORDER BY name
	`, "%"+strings.ToLower(substr)+"%")
	if err != nil {
		return nil, fmt.Errorf("find decks by name: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan deck id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
