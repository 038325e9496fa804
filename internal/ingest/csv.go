package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// The three upload files are identified by header signature, not by filename
// or order.
var (
	granthaSignature = []string{"grantha_id", "author", "language"}
	deckSignature    = []string{"grantha_deck_id", "grantha_deck_name"}
	imageSignature   = []string{"image_name", "image_url", "grantha_id"}
)

type csvFile struct {
	name   string
	header map[string]int
	rows   [][]string
}

// ParseBatch reads the deck/grantha/image CSV triple and assembles one Batch.
// names is parallel to files and only used in error messages.
func ParseBatch(names []string, files [][]byte) (*Batch, error) {
	if len(files) != 3 {
		return nil, &ValidationError{File: "upload", Msg: fmt.Sprintf("expected 3 CSV files, got %d", len(files))}
	}

	var deckFile, granthaFile, imageFile *csvFile
	for i, raw := range files {
		name := fmt.Sprintf("file %d", i+1)
		if i < len(names) && names[i] != "" {
			name = names[i]
		}
		f, err := readCSV(name, raw)
		if err != nil {
			return nil, err
		}

		switch {
		case hasColumns(f.header, imageSignature):
			imageFile = f
		case hasColumns(f.header, granthaSignature):
			granthaFile = f
		case hasColumns(f.header, deckSignature):
			deckFile = f
		default:
			return nil, &ValidationError{File: name, Msg: "header matches no known file type (deck, grantha or image)"}
		}
	}

	if deckFile == nil {
		return nil, &ValidationError{File: "upload", Column: "grantha_deck_id", Msg: "no deck file found"}
	}
	if granthaFile == nil {
		return nil, &ValidationError{File: "upload", Column: "grantha_id", Msg: "no grantha file found"}
	}
	if imageFile == nil {
		return nil, &ValidationError{File: "upload", Column: "image_name", Msg: "no image file found"}
	}

	batch := &Batch{}
	if err := parseDeck(deckFile, batch); err != nil {
		return nil, err
	}
	if err := parseGranthas(granthaFile, batch); err != nil {
		return nil, err
	}
	if err := parseImages(imageFile, batch); err != nil {
		return nil, err
	}
	return batch, nil
}

func readCSV(name string, raw []byte) (*csvFile, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &ValidationError{File: name, Msg: "file is empty"}
	}

	r := csv.NewReader(bytes.NewReader(raw))
	r.FieldsPerRecord = -1

	headerRow, err := r.Read()
	if err != nil {
		return nil, &ValidationError{File: name, Msg: "cannot read header: " + err.Error()}
	}
	header := make(map[string]int, len(headerRow))
	for idx, col := range headerRow {
		header[strings.TrimSpace(strings.ToLower(col))] = idx
	}

	f := &csvFile{name: name, header: header}
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ValidationError{File: name, Row: len(f.rows) + 2, Msg: "malformed row: " + err.Error()}
		}
		if rowEmpty(row) {
			continue
		}
		f.rows = append(f.rows, row)
	}
	if len(f.rows) == 0 {
		return nil, &ValidationError{File: name, Msg: "no data rows"}
	}
	return f, nil
}

func hasColumns(header map[string]int, cols []string) bool {
	for _, col := range cols {
		if _, ok := header[col]; !ok {
			return false
		}
	}
	return true
}

func rowEmpty(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func valueAt(f *csvFile, row []string, key string) string {
	idx, ok := f.header[key]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// parseFloatDefault and parseIntDefault apply the "non-numeric becomes 0"
// rule for deck dimensions and counts.
func parseFloatDefault(raw string) float64 {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseIntDefault(raw string) int {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return v
}

func parseDeck(f *csvFile, batch *Batch) error {
	if len(f.rows) > 1 {
		return &ValidationError{File: f.name, Row: 3, Msg: "a batch describes exactly one deck"}
	}
	row := f.rows[0]

	id := valueAt(f, row, "grantha_deck_id")
	if id == "" {
		return &ValidationError{File: f.name, Row: 2, Column: "grantha_deck_id", Msg: "required"}
	}
	name := valueAt(f, row, "grantha_deck_name")
	if name == "" {
		return &ValidationError{File: f.name, Row: 2, Column: "grantha_deck_name", Msg: "required"}
	}

	batch.Deck = DeckInput{
		ID:            id,
		Name:          name,
		OwnerName:     valueAt(f, row, "owner"),
		SourceAddress: valueAt(f, row, "address"),
		LengthCM:      parseFloatDefault(valueAt(f, row, "length_in_cms")),
		WidthCM:       parseFloatDefault(valueAt(f, row, "width_in_cms")),
		TotalLeaves:   parseIntDefault(valueAt(f, row, "total_leaves")),
		TotalImages:   parseIntDefault(valueAt(f, row, "total_images")),
		StitchType:    valueAt(f, row, "stitch_type"),
		Condition:     valueAt(f, row, "condition"),
	}
	return nil
}

func parseGranthas(f *csvFile, batch *Batch) error {
	for i, row := range f.rows {
		id := valueAt(f, row, "grantha_id")
		if id == "" {
			return &ValidationError{File: f.name, Row: i + 2, Column: "grantha_id", Msg: "required"}
		}

		// Missing author/language are not fatal here: the coordinator
		// substitutes "Unknown" and logs a warning.
		batch.Granthas = append(batch.Granthas, GranthaInput{
			ID:          id,
			Name:        valueAt(f, row, "grantha_name"),
			Author:      valueAt(f, row, "author"),
			Language:    valueAt(f, row, "language"),
			Description: valueAt(f, row, "description"),
			Remarks:     valueAt(f, row, "remarks"),
		})
	}
	return nil
}

func parseImages(f *csvFile, batch *Batch) error {
	byID := make(map[string]*GranthaInput, len(batch.Granthas))
	for i := range batch.Granthas {
		byID[batch.Granthas[i].ID] = &batch.Granthas[i]
	}

	for i, row := range f.rows {
		name := valueAt(f, row, "image_name")
		if name == "" {
			return &ValidationError{File: f.name, Row: i + 2, Column: "image_name", Msg: "required"}
		}
		url := valueAt(f, row, "image_url")
		if url == "" {
			return &ValidationError{File: f.name, Row: i + 2, Column: "image_url", Msg: "required"}
		}
		granthaID := valueAt(f, row, "grantha_id")
		if granthaID == "" {
			return &ValidationError{File: f.name, Row: i + 2, Column: "grantha_id", Msg: "required"}
		}

		img := ImageInput{
			Name:      name,
			URL:       url,
			GranthaID: granthaID,
			Props: PropsInput{
				FileFormat:      valueAt(f, row, "file_format"),
				ScannerModel:    valueAt(f, row, "scanner_model"),
				Resolution:      valueAt(f, row, "resolution"),
				ScanDate:        valueAt(f, row, "scan_date"),
				PostProcessDate: valueAt(f, row, "post_process_date"),
				Lighting:        valueAt(f, row, "lighting"),
				ColorDepth:      valueAt(f, row, "color_depth"),
				Orientation:     valueAt(f, row, "orientation"),
				OperatorName:    valueAt(f, row, "operator"),
			},
		}

		if g, ok := byID[granthaID]; ok {
			g.Images = append(g.Images, img)
		} else {
			batch.ExtraImages = append(batch.ExtraImages, img)
		}
	}
	return nil
}
