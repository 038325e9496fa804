package search

import (
	"fmt"
	"strings"
)

// Filter is a small tagged AST for store queries: field equality, substring
// containment, numeric range and boolean combinators. Filters are validated
// against a per-entity field allowlist when rendered to SQL, so nothing
// loosely typed ever reaches the store.
type Filter interface {
	isFilter()
}

type Eq struct {
	Field string
	Value any
}

type Contains struct {
	Field string
	Value string
}

type Range struct {
	Field string
	Min   *float64
	Max   *float64
}

type And struct {
	Filters []Filter
}

type Or struct {
	Filters []Filter
}

func (Eq) isFilter()       {}
func (Contains) isFilter() {}
func (Range) isFilter()    {}
func (And) isFilter()      {}
func (Or) isFilter()       {}

// Column allowlists. Logical field names (what callers and the model see)
// map to the SQL expression used in the deck and grantha queries.
var deckFields = map[string]string{
	"id":             "d.id",
	"name":           "d.name",
	"owner":          "d.owner_name",
	"owner_name":     "d.owner_name",
	"source_address": "d.source_address",
	"length_cm":      "d.length_cm",
	"width_cm":       "d.width_cm",
	"total_leaves":   "d.total_leaves",
	"total_images":   "d.total_images",
	"stitch_type":    "d.stitch_type",
	"condition":      "d.physical_condition",
}

var granthaFields = map[string]string{
	"id":          "g.id",
	"deck_id":     "g.deck_id",
	"name":        "g.name",
	"description": "g.description",
	"remarks":     "g.remarks",
	"author":      "a.name",
	"language":    "l.name",
}

// numericFields are the only fields a Range may target.
var numericFields = map[string]bool{
	"length_cm":    true,
	"width_cm":     true,
	"total_leaves": true,
	"total_images": true,
}

// identifierFields get the forced-literal treatment during plan parsing.
var identifierFields = map[string]bool{
	"id":      true,
	"deck_id": true,
}

// buildWhere renders a filter to a SQL condition against the given column
// allowlist. Fields outside the allowlist are an error, not a passthrough.
func buildWhere(f Filter, columns map[string]string) (string, []any, error) {
	switch v := f.(type) {
	case Eq:
		col, ok := columns[v.Field]
		if !ok {
			return "", nil, fmt.Errorf("unknown field %q", v.Field)
		}
		if s, isStr := v.Value.(string); isStr {
			return "LOWER(" + col + ") = ?", []any{strings.ToLower(s)}, nil
		}
		return col + " = ?", []any{v.Value}, nil

	case Contains:
		col, ok := columns[v.Field]
		if !ok {
			return "", nil, fmt.Errorf("unknown field %q", v.Field)
		}
		return "LOWER(" + col + ") LIKE ?", []any{"%" + strings.ToLower(v.Value) + "%"}, nil

	case Range:
		col, ok := columns[v.Field]
		if !ok {
			return "", nil, fmt.Errorf("unknown field %q", v.Field)
		}
		if !numericFields[v.Field] {
			return "", nil, fmt.Errorf("field %q does not support ranges", v.Field)
		}
		var parts []string
		var args []any
		if v.Min != nil {
			parts = append(parts, col+" >= ?")
			args = append(args, *v.Min)
		}
		if v.Max != nil {
			parts = append(parts, col+" <= ?")
			args = append(args, *v.Max)
		}
		if len(parts) == 0 {
			return "", nil, fmt.Errorf("range on %q has no bounds", v.Field)
		}
		return "(" + strings.Join(parts, " AND ") + ")", args, nil

	case And:
		return combine(v.Filters, " AND ", columns)
	case Or:
		return combine(v.Filters, " OR ", columns)
	default:
		return "", nil, fmt.Errorf("unsupported filter %T", f)
	}
}

func combine(filters []Filter, sep string, columns map[string]string) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, fmt.Errorf("empty combinator")
	}
	var parts []string
	var args []any
	for _, f := range filters {
		sqlStr, a, err := buildWhere(f, columns)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sqlStr)
		args = append(args, a...)
	}
	if len(parts) == 1 {
		return parts[0], args, nil
	}
	return "(" + strings.Join(parts, sep) + ")", args, nil
}

// fieldsOf lists the logical fields a filter touches.
func fieldsOf(f Filter) []string {
	switch v := f.(type) {
	case Eq:
		return []string{v.Field}
	case Contains:
		return []string{v.Field}
	case Range:
		return []string{v.Field}
	case And:
		var out []string
		for _, sub := range v.Filters {
			out = append(out, fieldsOf(sub)...)
		}
		return out
	case Or:
		var out []string
		for _, sub := range v.Filters {
			out = append(out, fieldsOf(sub)...)
		}
		return out
	}
	return nil
}

// restrict keeps only the parts of a flat conjunction that apply to the given
// entity. Returns nil when nothing remains.
func restrict(conds []Filter, columns map[string]string) Filter {
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
	if len(kept) == 0 {
		return nil
	}
	if len(kept) == 1 {
		return kept[0]
	}
	return And{Filters: kept}
}
