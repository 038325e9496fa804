package models

import "time"

// Grantha is a single manuscript work belonging to a Deck. Subworks are
// ordinary Grantha rows that were ingested nested under another work's
// descriptor; once stored they are indistinguishable from primary works.
type Grantha struct {
	ID          string    `json:"id"`
	DeckID      string    `json:"deck_id"`
	Name        string    `json:"name"`
	AuthorID    string    `json:"author_id"`
	LanguageID  string    `json:"language_id"`
	Description string    `json:"description,omitempty"`
	Remarks     string    `json:"remarks,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Populated on nested reads only.
	Author   *Author        `json:"author,omitempty"`
	Language *Language      `json:"language,omitempty"`
	Images   []ScannedImage `json:"images,omitempty"`
}

type Author struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	BirthYear  *int      `json:"birth_year,omitempty"`
	DeathYear  *int      `json:"death_year,omitempty"`
	Bio        string    `json:"bio,omitempty"`
	ScribeName string    `json:"scribe_name,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Language struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
