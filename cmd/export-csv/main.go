package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"granthalaya/pkg/database"
)

// Exports one deck as the same three-file CSV layout the importer reads, so a
// dump can be re-ingested elsewhere.
func main() {
	var (
		deckID = flag.String("deck", "", "deck id to export (required)")
		outDir = flag.String("out", "data", "output directory for the three CSV files")
	)
	flag.Parse()

	if *deckID == "" {
		log.Fatal("missing -deck: deck id to export")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("create output dir: %v", err)
	}

	if err := exportDeck(ctx, db, *deckID, filepath.Join(*outDir, "deck.csv")); err != nil {
		log.Fatalf("export deck failed: %v", err)
	}
	if err := exportGranthas(ctx, db, *deckID, filepath.Join(*outDir, "granthas.csv")); err != nil {
		log.Fatalf("export granthas failed: %v", err)
	}
	if err := exportImages(ctx, db, *deckID, filepath.Join(*outDir, "images.csv")); err != nil {
		log.Fatalf("export images failed: %v", err)
	}

	log.Printf("✅ exported deck %s to %s", *deckID, *outDir)
}

func exportDeck(ctx context.Context, db *sql.DB, deckID, outPath string) error {
	var (
		id, name, owner, address, stitch, condition string
		length, width                               sql.NullFloat64
		leaves, images                              sql.NullInt64
	)
	err := db.QueryRowContext(ctx, `
		SELECT id, name, owner_name, source_address, length_cm, width_cm,
			total_leaves, total_images, stitch_type, physical_condition
		FROM decks WHERE id = ?
	`, deckID).Scan(&id, &name, &owner, &address, &length, &width, &leaves, &images, &stitch, &condition)
	if err == sql.ErrNoRows {
		return fmt.Errorf("deck %s not found", deckID)
	}
	if err != nil {
		return err
	}

	return writeCSV(outPath, [][]string{
		{"grantha_deck_id", "grantha_deck_name", "owner", "address", "length_in_cms",
			"width_in_cms", "total_leaves", "total_images", "stitch_type", "condition"},
		{id, name, owner, address,
			formatFloat(length), formatFloat(width),
			formatInt(leaves), formatInt(images),
			stitch, condition},
	})
}

func exportGranthas(ctx context.Context, db *sql.DB, deckID, outPath string) error {
	rows, err := db.QueryContext(ctx, `
		SELECT g.id, g.name, a.name, l.name, g.description, g.remarks
		FROM granthas g
		JOIN authors a ON a.id = g.author_id
		JOIN languages l ON l.id = g.language_id
		WHERE g.deck_id = ?
		ORDER BY g.id
	`, deckID)
	if err != nil {
		return err
	}
	defer rows.Close()

	records := [][]string{
		{"grantha_id", "grantha_name", "author", "language", "description", "remarks"},
	}
	for rows.Next() {
		var id, name, author, language, description, remarks string
		if err := rows.Scan(&id, &name, &author, &language, &description, &remarks); err != nil {
			return err
		}
		records = append(records, []string{id, name, author, language, description, remarks})
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return writeCSV(outPath, records)
}

func exportImages(ctx context.Context, db *sql.DB, deckID, outPath string) error {
	rows, err := db.QueryContext(ctx, `
		SELECT i.name, i.image_url, i.grantha_id,
			p.file_format, p.scanner_model, p.resolution, p.scan_date,
			p.post_process_date, p.lighting, p.color_depth, p.orientation, p.operator_name
		FROM scanned_images i
		JOIN granthas g ON g.id = i.grantha_id
		LEFT JOIN scan_properties p ON p.image_id = i.id
		WHERE g.deck_id = ?
		ORDER BY i.grantha_id, i.name
	`, deckID)
	if err != nil {
		return err
	}
	defer rows.Close()

	records := [][]string{
		{"image_name", "image_url", "grantha_id", "file_format", "scanner_model",
			"resolution", "scan_date", "post_process_date", "lighting",
			"color_depth", "orientation", "operator"},
	}
	for rows.Next() {
		var name, url, granthaID string
		var props [9]sql.NullString
		dest := []any{&name, &url, &granthaID}
		for i := range props {
			dest = append(dest, &props[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return err
		}

		record := []string{name, url, granthaID}
		for _, p := range props {
			record = append(record, p.String)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return writeCSV(outPath, records)
}

func writeCSV(path string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		return err
	}
	return w.Error()
}

func formatFloat(v sql.NullFloat64) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Float64, 'f', -1, 64)
}

func formatInt(v sql.NullInt64) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatInt(v.Int64, 10)
}
