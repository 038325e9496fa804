package search

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Plan is the validated outcome of a model response: which entities to query
// and the typed conditions to apply.
type Plan struct {
	SearchType   string   // "deck", "grantha" or "combined"
	Conds        []Filter // flat conjunction, restricted per entity at execution
	Includes     []string
	SearchFields []string
}

const promptTemplate = `You translate a free-text question about a palm-leaf manuscript catalogue
into a JSON search plan. The catalogue has these entities:

- deck: id (string code), name, owner, source_address, length_cm (number),
  width_cm (number), total_leaves (number), total_images (number),
  stitch_type, condition. A deck bundles manuscripts from one donor.
- grantha: id (string code), deck_id, name, description, remarks,
  author (person name), language (language name). Each grantha belongs to
  one deck and has one author and one language.
- Each grantha has scanned images with capture metadata.

Respond with ONLY a JSON object, no prose, of this shape:
{
  "searchType": "deck" | "grantha" | "combined",
  "filters": { "<field>": <string value>
               | {"min": <number>, "max": <number>} },
  "includes": ["granthas", "images"],
  "searchFields": ["<field>", ...]
}

Rules:
- Use field names exactly as listed above.
- String values are matched as case-insensitive substrings.
- Use min/max objects only for the numeric deck fields.
- "combined" searches decks and granthas together.

Question: %s`

func buildPrompt(query string) string {
	return fmt.Sprintf(promptTemplate, query)
}

type rawPlan struct {
	SearchType   string         `json:"searchType"`
	Filters      map[string]any `json:"filters"`
	Includes     []string       `json:"includes"`
	SearchFields []string       `json:"searchFields"`
}

// ParsePlan turns raw model output into a validated Plan. Any shape problem
// is an error; the caller downgrades to the fallback tier on error, never
// executes a partially understood plan.
//
// Non-scalar values on identifier fields are forced back to the literal
// query string: models occasionally emit nested match objects there, and the
// literal is always the safer interpretation.
func ParsePlan(raw, query string) (*Plan, error) {
	raw = stripFences(raw)
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("empty model response")
	}

	var rp rawPlan
	if err := json.Unmarshal([]byte(raw), &rp); err != nil {
		return nil, fmt.Errorf("model response is not valid JSON: %w", err)
	}

	switch rp.SearchType {
	case "deck", "grantha", "combined":
	default:
		return nil, fmt.Errorf("unknown searchType %q", rp.SearchType)
	}

	plan := &Plan{
		SearchType:   rp.SearchType,
		Includes:     rp.Includes,
		SearchFields: rp.SearchFields,
	}

	for field, value := range rp.Filters {
		cond, err := condFor(field, value, query)
		if err != nil {
			return nil, err
		}
		plan.Conds = append(plan.Conds, cond)
	}
	return plan, nil
}

func condFor(field string, value any, query string) (Filter, error) {
	_, deckOK := deckFields[field]
	_, granthaOK := granthaFields[field]
	if !deckOK && !granthaOK {
		return nil, fmt.Errorf("filter references unknown field %q", field)
	}

	switch v := value.(type) {
	case string:
		if identifierFields[field] {
			return Eq{Field: field, Value: v}, nil
		}
		return Contains{Field: field, Value: v}, nil

	case float64:
		if numericFields[field] {
			return Eq{Field: field, Value: v}, nil
		}
		return Contains{Field: field, Value: strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", v), "0"), ".")}, nil

	case map[string]any:
		if identifierFields[field] {
			// force back to the literal query
			return Eq{Field: field, Value: strings.TrimSpace(query)}, nil
		}
		if !numericFields[field] {
			return nil, fmt.Errorf("field %q got an object value", field)
		}
		r := Range{Field: field}
		if min, ok := numberAt(v, "min"); ok {
			r.Min = &min
		}
		if max, ok := numberAt(v, "max"); ok {
			r.Max = &max
		}
		if r.Min == nil && r.Max == nil {
			return nil, fmt.Errorf("range for %q has no min or max", field)
		}
		return r, nil

	default:
		if identifierFields[field] {
			return Eq{Field: field, Value: strings.TrimSpace(query)}, nil
		}
		return nil, fmt.Errorf("field %q has unsupported value type %T", field, value)
	}
}

func numberAt(m map[string]any, key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	n, ok := v.(float64)
	return n, ok
}

// stripFences removes a markdown code fence wrapper, with or without a
// language tag, if the model added one.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		// drop the language tag line ("json", "JSON" or empty)
		first := strings.TrimSpace(s[:idx])
		if len(first) <= 8 {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
