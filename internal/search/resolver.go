package search

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"granthalaya/internal/catalog"
	"granthalaya/pkg/models"
)

type Result struct {
	Type    string          `json:"type"` // "deck" or "grantha"
	Deck    *models.Deck    `json:"deck,omitempty"`
	Grantha *models.Grantha `json:"grantha,omitempty"`
}

// Strategy echoes the executed plan so callers can see how the query was
// interpreted. Absent when a shortcut tier answered.
type Strategy struct {
	SearchType   string   `json:"searchType"`
	Includes     []string `json:"includes,omitempty"`
	SearchFields []string `json:"searchFields,omitempty"`
}

type Response struct {
	Query          string    `json:"query"`
	SearchStrategy *Strategy `json:"searchStrategy,omitempty"`
	Results        []Result  `json:"results"`
	Count          int       `json:"count"`
	Fallback       bool      `json:"fallback,omitempty"`
	Error          string    `json:"error,omitempty"`
}

// Resolver answers free-text queries in three tiers: identity shortcuts
// (exact identifier, then deck-name substring), a model-planned structured
// search, and a fixed substring fallback that absorbs every tier-2 failure.
type Resolver struct {
	DB      *sql.DB
	Catalog *catalog.Repo
	Planner Planner
	Log     *zap.Logger
}

func NewResolver(db *sql.DB, repo *catalog.Repo, planner Planner, log *zap.Logger) *Resolver {
	return &Resolver{DB: db, Catalog: repo, Planner: planner, Log: log}
}

// identifier-shaped: letters/digits/underscore/colon/hyphen with at least
// one digit.
var idShapedRe = regexp.MustCompile(`^[A-Za-z0-9_:-]+$`)

func idShaped(q string) bool {
	return idShapedRe.MatchString(q) && strings.ContainsAny(q, "0123456789")
}

func (r *Resolver) Resolve(ctx context.Context, query string) *Response {
	resp := &Response{Query: query, Results: []Result{}}
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return resp
	}

	// Tier 1b: exact identifier lookup. Runs before the name scan so a
	// deck whose display name happens to contain some other record's code
	// cannot shadow the exact match.
	if idShaped(trimmed) {
		if done := r.exactLookup(ctx, trimmed, resp); done {
			return resp
		}
	}

	// Tier 1a: deck display-name substring.
	norm := normalizeQuery(trimmed)
	ids, err := r.Catalog.FindDecksByName(ctx, norm)
	if err != nil {
		return r.fallback(ctx, trimmed, resp, fmt.Errorf("deck name scan: %w", err))
	}
	if len(ids) > 0 {
		decks, err := r.Catalog.LoadDeckTrees(ctx, ids)
		if err != nil {
			return r.fallback(ctx, trimmed, resp, fmt.Errorf("load decks: %w", err))
		}
		for i := range decks {
			resp.Results = append(resp.Results, Result{Type: "deck", Deck: &decks[i]})
		}
		resp.Count = len(resp.Results)
		return resp
	}

	// Tier 2: model-planned structured search.
	raw, err := r.Planner.Plan(ctx, buildPrompt(trimmed))
	if err != nil {
		return r.fallback(ctx, trimmed, resp, fmt.Errorf("plan query: %w", err))
	}
	plan, err := ParsePlan(raw, trimmed)
	if err != nil {
		return r.fallback(ctx, trimmed, resp, err)
	}
	results, err := r.executePlan(ctx, plan, trimmed)
	if err != nil {
		return r.fallback(ctx, trimmed, resp, err)
	}

	resp.SearchStrategy = &Strategy{
		SearchType:   plan.SearchType,
		Includes:     plan.Includes,
		SearchFields: plan.SearchFields,
	}
	resp.Results = results
	resp.Count = len(results)
	return resp
}

// exactLookup tries deck id then grantha id. Returns true when it produced a
// final response (hit, or a store error already downgraded to fallback).
func (r *Resolver) exactLookup(ctx context.Context, trimmed string, resp *Response) bool {
	deck, err := r.Catalog.GetDeckTree(ctx, trimmed)
	if err != nil {
		*resp = *r.fallback(ctx, trimmed, resp, fmt.Errorf("deck lookup: %w", err))
		return true
	}
	if deck != nil {
		resp.Results = append(resp.Results, Result{Type: "deck", Deck: deck})
		resp.Count = 1
		return true
	}

	grantha, err := r.Catalog.GetGrantha(ctx, trimmed)
	if err != nil {
		*resp = *r.fallback(ctx, trimmed, resp, fmt.Errorf("grantha lookup: %w", err))
		return true
	}
	if grantha != nil {
		resp.Results = append(resp.Results, Result{Type: "grantha", Grantha: grantha})
		resp.Count = 1
		return true
	}
	return false
}

func (r *Resolver) executePlan(ctx context.Context, plan *Plan, query string) ([]Result, error) {
	var results []Result

	if plan.SearchType == "deck" || plan.SearchType == "combined" {
		deckFilter := restrict(plan.Conds, deckFields)
		if deckFilter == nil && plan.SearchType == "deck" {
			return nil, fmt.Errorf("plan has no usable deck conditions")
		}
		if deckFilter != nil {
			deckResults, err := r.queryDecks(ctx, deckFilter)
			if err != nil {
				return nil, err
			}
			results = append(results, deckResults...)
		}
	}

	if plan.SearchType == "grantha" || plan.SearchType == "combined" {
		granthaResults, err := r.queryGranthas(ctx, plan, query)
		if err != nil {
			return nil, err
		}
		results = append(results, granthaResults...)
	}
	return results, nil
}

func (r *Resolver) queryDecks(ctx context.Context, f Filter) ([]Result, error) {
	where, args, err := buildWhere(f, deckFields)
	if err != nil {
		return nil, err
	}

	ids, err := r.queryIDs(ctx, `SELECT d.id FROM decks d WHERE `+where+` ORDER BY d.name`, args)
	if err != nil {
		return nil, fmt.Errorf("query decks: %w", err)
	}

	decks, err := r.Catalog.LoadDeckTrees(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(decks))
	for i := range decks {
		out = append(out, Result{Type: "deck", Deck: &decks[i]})
	}
	return out, nil
}

// queryGranthas ORs the plan's conditions with two substring probes on the
// work name — the query as typed and a hyphens-to-spaces variant — to
// tolerate punctuation variance in manuscript names.
func (r *Resolver) queryGranthas(ctx context.Context, plan *Plan, query string) ([]Result, error) {
	nameProbe := strings.ToLower(strings.TrimSpace(query))
	ors := []Filter{
		Contains{Field: "name", Value: nameProbe},
	}
	if variant := strings.ReplaceAll(nameProbe, "-", " "); variant != nameProbe {
		ors = append(ors, Contains{Field: "name", Value: variant})
	}
	if gf := restrict(plan.Conds, granthaFields); gf != nil {
		ors = append([]Filter{gf}, ors...)
	}

	where, args, err := buildWhere(Or{Filters: ors}, granthaFields)
	if err != nil {
		return nil, err
	}

	ids, err := r.queryIDs(ctx, `
		SELECT g.id FROM granthas g
		JOIN authors a ON a.id = g.author_id
		JOIN languages l ON l.id = g.language_id
		WHERE `+where+` ORDER BY g.id`, args)
	if err != nil {
		return nil, fmt.Errorf("query granthas: %w", err)
	}

	out := make([]Result, 0, len(ids))
	for _, id := range ids {
		g, err := r.Catalog.GetGrantha(ctx, id)
		if err != nil {
			return nil, err
		}
		if g != nil {
			out = append(out, Result{Type: "grantha", Grantha: g})
		}
	}
	return out, nil
}

func (r *Resolver) queryIDs(ctx context.Context, sqlStr string, args []any) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// fallback runs the fixed substring search across deck name/owner/condition/
// stitch type and grantha name/author/language. It never fails the request:
// a store error here leaves the results empty with both messages attached.
func (r *Resolver) fallback(ctx context.Context, trimmed string, resp *Response, cause error) *Response {
	r.Log.Warn("search downgraded to fallback",
		zap.String("query", trimmed),
		zap.Error(cause))

	resp.Fallback = true
	resp.Error = cause.Error()
	resp.SearchStrategy = nil
	resp.Results = []Result{}
	resp.Count = 0

	kw := "%" + strings.ToLower(trimmed) + "%"

	deckIDs, err := r.queryIDs(ctx, `
		SELECT d.id FROM decks d
		WHERE LOWER(d.name) LIKE ?
		   OR LOWER(d.owner_name) LIKE ?
		   OR LOWER(d.physical_condition) LIKE ?
		   OR LOWER(d.stitch_type) LIKE ?
		ORDER BY d.name`, []any{kw, kw, kw, kw})
	if err != nil {
		resp.Error = fmt.Sprintf("%s; fallback: %v", resp.Error, err)
		return resp
	}
	decks, err := r.Catalog.LoadDeckTrees(ctx, deckIDs)
	if err != nil {
		resp.Error = fmt.Sprintf("%s; fallback: %v", resp.Error, err)
		return resp
	}
	for i := range decks {
		resp.Results = append(resp.Results, Result{Type: "deck", Deck: &decks[i]})
	}

	granthaIDs, err := r.queryIDs(ctx, `
		SELECT g.id FROM granthas g
		JOIN authors a ON a.id = g.author_id
		JOIN languages l ON l.id = g.language_id
		WHERE LOWER(g.name) LIKE ?
		   OR LOWER(a.name) LIKE ?
		   OR LOWER(l.name) LIKE ?
		ORDER BY g.id`, []any{kw, kw, kw})
	if err != nil {
		resp.Error = fmt.Sprintf("%s; fallback: %v", resp.Error, err)
		return resp
	}
	for _, id := range granthaIDs {
		g, err := r.Catalog.GetGrantha(ctx, id)
		if err != nil {
			continue
		}
		if g != nil {
			resp.Results = append(resp.Results, Result{Type: "grantha", Grantha: g})
		}
	}

	resp.Count = len(resp.Results)
	return resp
}

// normalizeQuery lowercases, folds punctuation to spaces and collapses runs
// of whitespace.
func normalizeQuery(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))

	prevSpace := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			prevSpace = false
			continue
		}
		if !prevSpace {
			b.WriteRune(' ')
			prevSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}
