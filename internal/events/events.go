package events

import "time"

const (
	DeckCreated    = "deck.created"
	DeckDeleted    = "deck.deleted"
	GranthaUpdated = "grantha.updated"
)

// CatalogEvent is broadcast to all connected feed clients whenever the
// catalogue changes.
type CatalogEvent struct {
	Type      string    `json:"type"`
	DeckID    string    `json:"deck_id"`
	GranthaID string    `json:"grantha_id,omitempty"`
	Granthas  int       `json:"granthas,omitempty"` // batch size on deck.created
	Images    int       `json:"images,omitempty"`
	At        time.Time `json:"at"`
}
