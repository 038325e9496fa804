package models

import "time"

type ScannedImage struct {
	ID        string    `json:"id"`
	GranthaID string    `json:"grantha_id"`
	Name      string    `json:"name"`
	ImageURL  string    `json:"image_url"`
	CreatedAt time.Time `json:"created_at"`

	Properties *ScanProperties `json:"properties,omitempty"`
}

// ScanProperties holds per-image capture metadata, one row per scanned image.
// Unset fields default to "UNKNOWN" (or empty string for dates/operator) at
// ingest time rather than NULL, matching the capture-sheet conventions.
type ScanProperties struct {
	ImageID         string `json:"image_id"`
	FileFormat      string `json:"file_format"`
	ScannerModel    string `json:"scanner_model"`
	Resolution      string `json:"resolution"`
	ScanDate        string `json:"scan_date,omitempty"`
	PostProcessDate string `json:"post_process_date,omitempty"`
	Lighting        string `json:"lighting"`
	ColorDepth      string `json:"color_depth"`
	Orientation     string `json:"orientation"`
	OperatorName    string `json:"operator_name,omitempty"`
}
