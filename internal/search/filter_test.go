package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fptr(v float64) *float64 { return &v }

func TestBuildWhere_EqString(t *testing.T) {
	where, args, err := buildWhere(Eq{Field: "stitch_type", Value: "Double"}, deckFields)
	require.NoError(t, err)
	assert.Equal(t, "LOWER(d.stitch_type) = ?", where)
	assert.Equal(t, []any{"double"}, args)
}

func TestBuildWhere_EqNumber(t *testing.T) {
	where, args, err := buildWhere(Eq{Field: "total_leaves", Value: 120.0}, deckFields)
	require.NoError(t, err)
	assert.Equal(t, "d.total_leaves = ?", where)
	assert.Equal(t, []any{120.0}, args)
}

func TestBuildWhere_Contains(t *testing.T) {
	where, args, err := buildWhere(Contains{Field: "author", Value: "Kali"}, granthaFields)
	require.NoError(t, err)
	assert.Equal(t, "LOWER(a.name) LIKE ?", where)
	assert.Equal(t, []any{"%kali%"}, args)
}

func TestBuildWhere_Range(t *testing.T) {
	where, args, err := buildWhere(Range{Field: "length_cm", Min: fptr(30), Max: fptr(40)}, deckFields)
	require.NoError(t, err)
	assert.Equal(t, "(d.length_cm >= ? AND d.length_cm <= ?)", where)
	assert.Equal(t, []any{30.0, 40.0}, args)

	where, args, err = buildWhere(Range{Field: "length_cm", Min: fptr(30)}, deckFields)
	require.NoError(t, err)
	assert.Equal(t, "d.length_cm >= ?", where)
	assert.Equal(t, []any{30.0}, args)
}

func TestBuildWhere_RangeOnTextFieldRejected(t *testing.T) {
	_, _, err := buildWhere(Range{Field: "name", Min: fptr(1)}, deckFields)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not support ranges")
}

func TestBuildWhere_RangeWithoutBoundsRejected(t *testing.T) {
	_, _, err := buildWhere(Range{Field: "length_cm"}, deckFields)
	require.Error(t, err)
}

func TestBuildWhere_UnknownFieldRejected(t *testing.T) {
	_, _, err := buildWhere(Eq{Field: "password_hash", Value: "x"}, deckFields)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown field")

	// grantha-only field against the deck allowlist
	_, _, err = buildWhere(Contains{Field: "author", Value: "x"}, deckFields)
	require.Error(t, err)
}

func TestBuildWhere_Combinators(t *testing.T) {
	f := And{Filters: []Filter{
		Contains{Field: "name", Value: "ramayana"},
		Or{Filters: []Filter{
			Eq{Field: "condition", Value: "good"},
			Eq{Field: "condition", Value: "fair"},
		}},
	}}

	where, args, err := buildWhere(f, deckFields)
	require.NoError(t, err)
	assert.Equal(t, "(LOWER(d.name) LIKE ? AND (LOWER(d.physical_condition) = ? OR LOWER(d.physical_condition) = ?))", where)
	assert.Equal(t, []any{"%ramayana%", "good", "fair"}, args)
}

func TestBuildWhere_EmptyCombinatorRejected(t *testing.T) {
	_, _, err := buildWhere(And{}, deckFields)
	require.Error(t, err)
}

func TestRestrict_KeepsOnlyApplicableConditions(t *testing.T) {
	conds := []Filter{
		Contains{Field: "owner", Value: "sharma"},   // deck only
		Contains{Field: "author", Value: "valmiki"}, // grantha only
		Contains{Field: "name", Value: "kanda"},     // both
	}

	deckSide := restrict(conds, deckFields)
	require.NotNil(t, deckSide)
	assert.ElementsMatch(t, []string{"owner", "name"}, fieldsOf(deckSide))

	granthaSide := restrict(conds, granthaFields)
	require.NotNil(t, granthaSide)
	assert.ElementsMatch(t, []string{"author", "name"}, fieldsOf(granthaSide))
}

func TestRestrict_NothingApplicable(t *testing.T) {
	conds := []Filter{Contains{Field: "owner", Value: "sharma"}}
	assert.Nil(t, restrict(conds, granthaFields))
}

func TestRestrict_SingleConditionNotWrapped(t *testing.T) {
	conds := []Filter{Contains{Field: "name", Value: "x"}}
	f := restrict(conds, deckFields)
	_, isContains := f.(Contains)
	assert.True(t, isContains)
}
