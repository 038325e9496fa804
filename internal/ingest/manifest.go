package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ManifestClient talks to the local folder preprocessor, a separate service
// that walks a scanned-image folder tree plus its index CSV and returns a
// structured manifest of decks, granthas, subworks and images.
type ManifestClient struct {
	BaseURL string
	Client  *http.Client
}

func NewManifestClient(baseURL string) *ManifestClient {
	return &ManifestClient{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type ManifestRequest struct {
	CSVPath  string `json:"csv_path"`
	BasePath string `json:"base_path"`
}

type Manifest struct {
	Decks []ManifestDeck `json:"decks"`
}

type ManifestDeck struct {
	DeckID        string            `json:"deck_id"`
	DeckName      string            `json:"deck_name"`
	Owner         string            `json:"owner"`
	Address       string            `json:"address"`
	LengthInCms   string            `json:"length_in_cms"`
	WidthInCms    string            `json:"width_in_cms"`
	TotalLeaves   string            `json:"total_leaves"`
	TotalImages   string            `json:"total_images"`
	StitchType    string            `json:"stitch_type"`
	Condition     string            `json:"condition"`
	Granthas      []ManifestGrantha `json:"granthas"`
}

type ManifestGrantha struct {
	GranthaID   string            `json:"grantha_id"`
	Name        string            `json:"name"`
	Author      string            `json:"author"`
	Language    string            `json:"language"`
	Description string            `json:"description"`
	Remarks     string            `json:"remarks"`
	Images      []ManifestImage   `json:"images"`
	Subworks    []ManifestGrantha `json:"subworks"`
}

type ManifestImage struct {
	Name       string            `json:"name"`
	URL        string            `json:"url"`
	Properties map[string]string `json:"properties"`
}

// Process submits the folder description and returns the parsed manifest.
func (mc *ManifestClient) Process(ctx context.Context, csvPath, basePath string) (*Manifest, error) {
	body, err := json.Marshal(ManifestRequest{CSVPath: csvPath, BasePath: basePath})
	if err != nil {
		return nil, fmt.Errorf("marshal manifest request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, mc.BaseURL+"/process", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build manifest request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := mc.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call manifest service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("manifest service returned %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}

	var m Manifest
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}

// Batches maps the manifest onto ingest batches, one per deck. Numeric fields
// arrive as strings from the preprocessor and default to 0 when non-numeric.
func (m *Manifest) Batches(userID string) []*Batch {
	out := make([]*Batch, 0, len(m.Decks))
	for _, d := range m.Decks {
		b := &Batch{
			Deck: DeckInput{
				ID:            d.DeckID,
				Name:          d.DeckName,
				OwnerName:     d.Owner,
				SourceAddress: d.Address,
				LengthCM:      parseFloatDefault(d.LengthInCms),
				WidthCM:       parseFloatDefault(d.WidthInCms),
				TotalLeaves:   parseIntDefault(d.TotalLeaves),
				TotalImages:   parseIntDefault(d.TotalImages),
				StitchType:    d.StitchType,
				Condition:     d.Condition,
				UserID:        userID,
			},
		}
		for _, g := range d.Granthas {
			b.Granthas = append(b.Granthas, manifestGrantha(g))
		}
		out = append(out, b)
	}
	return out
}

func manifestGrantha(g ManifestGrantha) GranthaInput {
	in := GranthaInput{
		ID:          g.GranthaID,
		Name:        g.Name,
		Author:      g.Author,
		Language:    g.Language,
		Description: g.Description,
		Remarks:     g.Remarks,
	}
	for _, img := range g.Images {
		in.Images = append(in.Images, ImageInput{
			Name:      img.Name,
			URL:       img.URL,
			GranthaID: g.GranthaID,
			Props: PropsInput{
				FileFormat:      img.Properties["file_format"],
				ScannerModel:    img.Properties["scanner_model"],
				Resolution:      img.Properties["resolution"],
				ScanDate:        img.Properties["scan_date"],
				PostProcessDate: img.Properties["post_process_date"],
				Lighting:        img.Properties["lighting"],
				ColorDepth:      img.Properties["color_depth"],
				Orientation:     img.Properties["orientation"],
				OperatorName:    img.Properties["operator"],
			},
		})
	}
	for _, sub := range g.Subworks {
		in.Subworks = append(in.Subworks, manifestGrantha(sub))
	}
	return in
}
