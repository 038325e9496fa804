package models

import "time"

// Deck is a physical bundle of palm-leaf manuscripts grouped under one
// donor/owner record. The ID is the human-assigned deck code and is unique
// across the catalogue.
type Deck struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	OwnerName     string    `json:"owner_name,omitempty"`
	SourceAddress string    `json:"source_address,omitempty"`
	LengthCM      *float64  `json:"length_cm,omitempty"`
	WidthCM       *float64  `json:"width_cm,omitempty"`
	TotalLeaves   *int      `json:"total_leaves,omitempty"`
	TotalImages   *int      `json:"total_images,omitempty"`
	StitchType    string    `json:"stitch_type,omitempty"`
	Condition     string    `json:"condition,omitempty"`
	UserID        string    `json:"user_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	// Populated on nested reads only.
	Granthas []Grantha `json:"granthas,omitempty"`
}
