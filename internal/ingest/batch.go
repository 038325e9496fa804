package ingest

import (
	"errors"
	"fmt"
)

// Batch describes one deck and everything ingested with it. A batch commits
// atomically: either the whole tree lands in the store or none of it does.
type Batch struct {
	Deck     DeckInput
	Granthas []GranthaInput

	// ExtraImages holds image rows that reference a grantha id not present
	// in the batch. They are still attempted inside the transaction so a bad
	// reference surfaces as a referenced-row-missing failure, not a silent
	// drop.
	ExtraImages []ImageInput
}

type DeckInput struct {
	ID            string
	Name          string
	OwnerName     string
	SourceAddress string
	LengthCM      float64
	WidthCM       float64
	TotalLeaves   int
	TotalImages   int
	StitchType    string
	Condition     string
	UserID        string
}

type GranthaInput struct {
	ID          string
	Name        string
	Author      string
	Language    string
	Description string
	Remarks     string
	Images      []ImageInput

	// Subworks are secondary works ingested under the same deck.
	Subworks []GranthaInput
}

type ImageInput struct {
	Name      string
	URL       string
	GranthaID string
	Props     PropsInput
}

// PropsInput fields left empty default to "UNKNOWN" (or empty string for the
// date/operator fields) at insert time.
type PropsInput struct {
	FileFormat      string
	ScannerModel    string
	Resolution      string
	ScanDate        string
	PostProcessDate string
	Lighting        string
	ColorDepth      string
	Orientation     string
	OperatorName    string
}

// Result summarizes a committed batch.
type Result struct {
	DeckID           string `json:"deck_id"`
	Granthas         int    `json:"granthas"`
	Images           int    `json:"images"`
	AuthorsCreated   int    `json:"authors_created"`
	LanguagesCreated int    `json:"languages_created"`
}

var (
	// ErrDuplicate marks a unique-constraint violation, e.g. reusing a deck id.
	ErrDuplicate = errors.New("duplicate identifier")

	// ErrMissingRef marks a foreign-key violation, e.g. an image row whose
	// grantha does not exist.
	ErrMissingRef = errors.New("referenced row missing")
)

// ValidationError reports a structural problem found before any mutation.
// Row is 1-based (counting the header as row 1) and zero when the problem is
// file-level.
type ValidationError struct {
	File   string
	Row    int
	Column string
	Msg    string
}

func (e *ValidationError) Error() string {
	switch {
	case e.Row > 0 && e.Column != "":
		return fmt.Sprintf("%s row %d, column %q: %s", e.File, e.Row, e.Column, e.Msg)
	case e.Row > 0:
		return fmt.Sprintf("%s row %d: %s", e.File, e.Row, e.Msg)
	case e.Column != "":
		return fmt.Sprintf("%s column %q: %s", e.File, e.Column, e.Msg)
	default:
		return fmt.Sprintf("%s: %s", e.File, e.Msg)
	}
}
