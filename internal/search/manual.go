package search

import (
	"context"
	"strconv"
	"strings"
)

// ManualParams are the explicit query-string filters of the non-model search
// endpoint. It reuses the same filter AST and execution as the planned
// search, just built deterministically from parameters.
type ManualParams struct {
	Name       string
	Owner      string
	Author     string
	Language   string
	Condition  string
	StitchType string
	MinLength  string
	MaxLength  string
	MinWidth   string
	MaxWidth   string
	Operator   string // "and" (default) or "or"
}

type ManualResponse struct {
	Query   string            `json:"query"`
	Results []Result          `json:"results"`
	Count   int               `json:"count"`
	Filters map[string]string `json:"filters"`
}

func (p ManualParams) conds() ([]Filter, map[string]string) {
	var conds []Filter
	applied := map[string]string{}

	text := func(field, value string) {
		value = strings.TrimSpace(value)
		if value == "" {
			return
		}
		conds = append(conds, Contains{Field: field, Value: value})
		applied[field] = value
	}
	text("name", p.Name)
	text("owner", p.Owner)
	text("author", p.Author)
	text("language", p.Language)
	text("condition", p.Condition)
	text("stitch_type", p.StitchType)

	rangeCond := func(field, rawMin, rawMax string) {
		r := Range{Field: field}
		if v, err := strconv.ParseFloat(strings.TrimSpace(rawMin), 64); err == nil {
			r.Min = &v
			applied["min_"+field] = rawMin
		}
		if v, err := strconv.ParseFloat(strings.TrimSpace(rawMax), 64); err == nil {
			r.Max = &v
			applied["max_"+field] = rawMax
		}
		if r.Min != nil || r.Max != nil {
			conds = append(conds, r)
		}
	}
	rangeCond("length_cm", p.MinLength, p.MaxLength)
	rangeCond("width_cm", p.MinWidth, p.MaxWidth)

	return conds, applied
}

// ManualSearch runs the explicit-parameter search: deck-applicable
// conditions against decks, grantha-applicable ones against granthas,
// results concatenated like a combined planned search.
func (r *Resolver) ManualSearch(ctx context.Context, p ManualParams) (*ManualResponse, error) {
	conds, applied := p.conds()
	op := strings.ToLower(strings.TrimSpace(p.Operator))
	if op != "or" {
		op = "and"
	}
	applied["operator"] = op

	resp := &ManualResponse{Results: []Result{}, Filters: applied}
	if len(conds) == 0 {
		return resp, nil
	}

	if deckFilter := restrictWith(conds, deckFields, op); deckFilter != nil {
		deckResults, err := r.queryDecks(ctx, deckFilter)
		if err != nil {
			return nil, err
		}
		resp.Results = append(resp.Results, deckResults...)
	}

	if granthaFilter := restrictWith(conds, granthaFields, op); granthaFilter != nil {
		where, args, err := buildWhere(granthaFilter, granthaFields)
		if err != nil {
			return nil, err
		}
		ids, err := r.queryIDs(ctx, `
			SELECT g.id FROM granthas g
			JOIN authors a ON a.id = g.author_id
			JOIN languages l ON l.id = g.language_id
			WHERE `+where+` ORDER BY g.id`, args)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			g, err := r.Catalog.GetGrantha(ctx, id)
			if err != nil {
				return nil, err
			}
			if g != nil {
				resp.Results = append(resp.Results, Result{Type: "grantha", Grantha: g})
			}
		}
	}

	resp.Count = len(resp.Results)
	return resp, nil
}

// restrictWith is restrict with a caller-chosen combinator.
func restrictWith(conds []Filter, columns map[string]string, op string) Filter {
	var kept []Filter
	for _, c := range conds {
		ok := true
		for _, field := range fieldsOf(c) {
			if _, known := columns[field]; !known {
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, c)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	if op == "or" {
		return Or{Filters: kept}
	}
	return And{Filters: kept}
}
