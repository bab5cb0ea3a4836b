package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePathAndResolve(t *testing.T) {
	t.Parallel()

	tree := map[string]any{
		"children": []any{
			map[string]any{"standings": map[string]any{"entries": []any{"east"}}},
			map[string]any{"standings": map[string]any{"entries": []any{"west"}}},
		},
		"stats": map[string]any{"vs. Div.": "8-4", "wins": float64(0)},
		"cells": []any{"Boston", "48"},
		"nil":   nil,
	}

	cases := []struct {
		path string
		want any
		ok   bool
	}{
		{"children[1].standings.entries[0]", "west", true},
		{"children.0.standings.entries.0", "east", true},
		{`stats["vs. Div."]`, "8-4", true},
		{"stats['vs. Div.']", "8-4", true},
		{"stats.wins", float64(0), true},
		{"cells[1]", "48", true},
		{"cells[2]", nil, false},
		{"cells.name", nil, false},
		{"stats.wins.deeper", nil, false},
		{"missing", nil, false},
		{"nil", nil, false},
		{"children", nil, false},
	}

	for _, tc := range cases {
		p, err := ParsePath(tc.path)
		require.NoError(t, err, tc.path)
		got, ok := Lookup(tree, p)
		assert.Equal(t, tc.ok, ok, tc.path)
		assert.Equal(t, tc.want, got, tc.path)
	}

	v, ok := Resolve(tree, MustParsePath("nil"))
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestParsePathRejectsMalformed(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", ".a", "a.", "a..b", "a[", "a[x]", `a["b]`, `a["b"`, "a[-1]"} {
		_, err := ParsePath(raw)
		assert.Error(t, err, raw)
	}
}

func TestLookupHelpers(t *testing.T) {
	t.Parallel()

	tree := map[string]any{
		"team":     map[string]any{"id": float64(13), "abbreviation": "LAL"},
		"athletes": []any{map[string]any{"id": "1"}},
	}

	assert.Equal(t, "13", LookupString(tree, "team.id"))
	assert.Equal(t, "", LookupString(tree, "team.missing"))
	assert.Equal(t, "LAL", LookupMap(tree, "team")["abbreviation"])
	assert.Nil(t, LookupMap(tree, "athletes"))
	assert.Len(t, LookupSlice(tree, "athletes"), 1)
	assert.Nil(t, LookupSlice(tree, "team"))
}
