package report

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"
)

// Options select the reporting window and which optional columns appear.
type Options struct {
	TimeRange         string `json:"timeRange" form:"range"` // week|month|year|all
	IncludeGranthas   bool   `json:"includeGranthas" form:"include_granthas"`
	IncludeDimensions bool   `json:"includeDimensions" form:"include_dimensions"`
	IncludeOwners     bool   `json:"includeOwners" form:"include_owners"`
}

type deckRow struct {
	ID        string
	Name      string
	Owner     string
	LengthCM  sql.NullFloat64
	WidthCM   sql.NullFloat64
	Granthas  int
	Images    int
	CreatedAt time.Time
}

type summary struct {
	Decks     int
	Granthas  int
	Images    int
	Authors   int
	Languages int
}

type Generator struct {
	DB *sql.DB
}

func NewGenerator(db *sql.DB) *Generator {
	return &Generator{DB: db}
}

func cutoffModifier(timeRange string) (string, bool) {
	switch timeRange {
	case "week":
		return "-7 days", true
	case "month":
		return "-1 month", true
	case "year":
		return "-1 year", true
	case "all", "":
		return "", false
	default:
		return "", false
	}
}

// ValidRange reports whether the selector is one of week|month|year|all.
func ValidRange(timeRange string) bool {
	switch timeRange {
	case "week", "month", "year", "all", "":
		return true
	}
	return false
}

// Generate renders the inventory report as a PDF document. All aggregates
// are computed per call from the store.
func (g *Generator) Generate(ctx context.Context, opts Options) ([]byte, error) {
	sum, err := g.loadSummary(ctx, opts.TimeRange)
	if err != nil {
		return nil, err
	}
	rows, err := g.loadDecks(ctx, opts.TimeRange)
	if err != nil {
		return nil, err
	}
	return render(opts, sum, rows)
}

func (g *Generator) loadSummary(ctx context.Context, timeRange string) (*summary, error) {
	where := ""
	var args []any
	if mod, ok := cutoffModifier(timeRange); ok {
		where = ` WHERE d.created_at >= datetime('now', ?)`
		args = append(args, mod)
	}

	var s summary
	row := g.DB.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT d.id),
		       COUNT(DISTINCT g.id),
		       COUNT(DISTINCT i.id)
		FROM decks d
		LEFT JOIN granthas g ON g.deck_id = d.id
		LEFT JOIN scanned_images i ON i.grantha_id = g.id`+where, args...)
	if err := row.Scan(&s.Decks, &s.Granthas, &s.Images); err != nil {
		return nil, fmt.Errorf("report summary: %w", err)
	}

	if err := g.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM authors`).Scan(&s.Authors); err != nil {
		return nil, fmt.Errorf("count authors: %w", err)
	}
	if err := g.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM languages`).Scan(&s.Languages); err != nil {
		return nil, fmt.Errorf("count languages: %w", err)
	}
	return &s, nil
}

func (g *Generator) loadDecks(ctx context.Context, timeRange string) ([]deckRow, error) {
	where := ""
	var args []any
	if mod, ok := cutoffModifier(timeRange); ok {
		where = ` WHERE d.created_at >= datetime('now', ?)`
		args = append(args, mod)
	}

	rows, err := g.DB.QueryContext(ctx, `
		SELECT d.id, d.name, COALESCE(d.owner_name, ''),
		       d.length_cm, d.width_cm,
		       COUNT(DISTINCT g.id), COUNT(DISTINCT i.id),
		       d.created_at
		FROM decks d
		LEFT JOIN granthas g ON g.deck_id = d.id
		LEFT JOIN scanned_images i ON i.grantha_id = g.id`+where+`
		GROUP BY d.id
		ORDER BY d.created_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("report decks: %w", err)
	}
	defer rows.Close()

	var out []deckRow
	for rows.Next() {
		var r deckRow
		if err := rows.Scan(&r.ID, &r.Name, &r.Owner, &r.LengthCM, &r.WidthCM,
			&r.Granthas, &r.Images, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan report row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func render(opts Options, sum *summary, rows []deckRow) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Manuscript Collection Report", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Manuscript Collection Report")
	pdf.Ln(8)

	rangeLabel := opts.TimeRange
	if rangeLabel == "" {
		rangeLabel = "all"
	}
	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 8, fmt.Sprintf("Range: %s    Generated: %s",
		rangeLabel, time.Now().UTC().Format("2006-01-02 15:04 MST")))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Summary")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 10)
	for _, line := range []string{
		fmt.Sprintf("Decks: %d", sum.Decks),
		fmt.Sprintf("Granthas: %d", sum.Granthas),
		fmt.Sprintf("Scanned images: %d", sum.Images),
		fmt.Sprintf("Authors on record: %d", sum.Authors),
		fmt.Sprintf("Languages on record: %d", sum.Languages),
	} {
		pdf.Cell(0, 6, line)
		pdf.Ln(6)
	}
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Decks")
	pdf.Ln(8)

	headers := []string{"Code", "Name"}
	widths := []float64{28, 60}
	if opts.IncludeOwners {
		headers = append(headers, "Owner")
		widths = append(widths, 38)
	}
	if opts.IncludeDimensions {
		headers = append(headers, "L (cm)", "W (cm)")
		widths = append(widths, 16, 16)
	}
	if opts.IncludeGranthas {
		headers = append(headers, "Works", "Images")
		widths = append(widths, 16, 16)
	}

	pdf.SetFont("Helvetica", "B", 9)
	for i, hd := range headers {
		pdf.CellFormat(widths[i], 7, hd, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, r := range rows {
		cells := []string{r.ID, r.Name}
		if opts.IncludeOwners {
			cells = append(cells, r.Owner)
		}
		if opts.IncludeDimensions {
			cells = append(cells, nullFloat(r.LengthCM), nullFloat(r.WidthCM))
		}
		if opts.IncludeGranthas {
			cells = append(cells, strconv.Itoa(r.Granthas), strconv.Itoa(r.Images))
		}
		for i, cell := range cells {
			pdf.CellFormat(widths[i], 6, cell, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func nullFloat(v sql.NullFloat64) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Float64, 'f', 1, 64)
}
