package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dims(elems ...any) []Dim {
	out := make([]Dim, len(elems))
	for i, e := range elems {
		switch v := e.(type) {
		case int:
			out[i] = DimOf(v)
		case string:
			out[i] = DimVar(v)
		}
	}
	return out
}

func TestMatchDimList_ConcreteEqual(t *testing.T) {
	subst, ok := MatchDimList(dims(3, 4, 5), dims(3, 4, 5), nil)
	require.True(t, ok)
	assert.Empty(t, subst)
}

func TestMatchDimList_ConcreteMismatch(t *testing.T) {
	_, ok := MatchDimList(dims(3, 4, 5), dims(3, 5, 4), nil)
	assert.False(t, ok)

	_, ok = MatchDimList(dims(3, 4), dims(3, 4, 5), nil)
	assert.False(t, ok)
}

func TestMatchDimList_WildcardMiddleAbsent(t *testing.T) {
	subst, ok := MatchDimList(dims(3, "w*", 5), dims(3, 5), nil)
	require.True(t, ok)
	assert.Empty(t, subst)
}

func TestMatchDimList_WildcardMiddleAbsorbs(t *testing.T) {
	subst, ok := MatchDimList(dims(3, "w*", 5), dims(3, 7, 8, 5), nil)
	require.True(t, ok)
	assert.Empty(t, subst)
}

func TestMatchDimList_BindThenUse(t *testing.T) {
	subst, ok := MatchDimList(dims("d", "d"), dims(4, 4), nil)
	require.True(t, ok)
	assert.Equal(t, map[string]Dim{"d": DimOf(4)}, subst)

	_, ok = MatchDimList(dims("d", "d"), dims(4, 5), nil)
	assert.False(t, ok)
}

func TestMatchDimList_RespectsExistingBinding(t *testing.T) {
	_, ok := MatchDimList(dims("d"), dims(4), map[string]Dim{"d": DimOf(7)})
	assert.False(t, ok)

	subst, ok := MatchDimList(dims("d"), dims(7), map[string]Dim{"d": DimOf(7)})
	require.True(t, ok)
	assert.Equal(t, DimOf(7), subst["d"])
}

func TestMatchDimList_DoesNotMutateInput(t *testing.T) {
	in := map[string]Dim{"a": DimOf(2)}
	subst, ok := MatchDimList(dims("a", "b"), dims(2, 3), in)
	require.True(t, ok)
	assert.Equal(t, map[string]Dim{"a": DimOf(2)}, in)
	assert.Equal(t, DimOf(3), subst["b"])
}

func TestMatchDimList_OptionalWildcard(t *testing.T) {
	// '?' skips zero or one source element.
	_, ok := MatchDimList(dims("w?", 5), dims(5), nil)
	assert.True(t, ok)

	_, ok = MatchDimList(dims("w?", 5), dims(3, 5), nil)
	assert.True(t, ok)

	_, ok = MatchDimList(dims("w?", 5), dims(3, 4, 5), nil)
	assert.False(t, ok)
}

func TestMatchDimList_PlusWildcard(t *testing.T) {
	// '+' requires at least one source element.
	_, ok := MatchDimList(dims("w+", 5), dims(5), nil)
	assert.False(t, ok)

	_, ok = MatchDimList(dims("w+", 5), dims(3, 5), nil)
	assert.True(t, ok)

	_, ok = MatchDimList(dims("w+", 5), dims(3, 4, 7, 5), nil)
	assert.True(t, ok)
}

func TestMatchDimList_SourceWildcard(t *testing.T) {
	// A skippable wildcard on the source side can be left unmatched, but a
	// concrete destination integer never binds to a source name.
	_, ok := MatchDimList(dims(3, 5), dims(3, "w*", 5), nil)
	assert.True(t, ok)

	_, ok = MatchDimList(dims(3, 4, 5), dims(3, "w*", 5), nil)
	assert.False(t, ok)
}

func TestMatchDimList_VariableBindsToName(t *testing.T) {
	// A plain destination variable can bind to a source-side name.
	subst, ok := MatchDimList(dims("d"), dims("n"), nil)
	require.True(t, ok)
	assert.Equal(t, DimVar("n"), subst["d"])
}

func TestMatchDimList_BothEmpty(t *testing.T) {
	subst, ok := MatchDimList(nil, nil, nil)
	require.True(t, ok)
	assert.Empty(t, subst)
}

func TestNextPerm_LexicographicOrder(t *testing.T) {
	perm := []string{"a", "b", "c"}
	var seen [][]string
	for {
		seen = append(seen, append([]string(nil), perm...))
		if !nextPerm(perm) {
			break
		}
	}
	require.Len(t, seen, 6)
	assert.Equal(t, []string{"a", "b", "c"}, seen[0])
	assert.Equal(t, []string{"a", "c", "b"}, seen[1])
	assert.Equal(t, []string{"c", "b", "a"}, seen[5])
}
