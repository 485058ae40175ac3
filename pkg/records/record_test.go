package records

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordString(t *testing.T) {
	t.Parallel()

	rec := Record{"a": "  hi  ", "b": nil, "c": 7}

	s, ok := rec.String("a")
	require.True(t, ok)
	assert.Equal(t, "hi", s)

	_, ok = rec.String("b")
	assert.False(t, ok)
	_, ok = rec.String("c")
	assert.False(t, ok)
	_, ok = rec.String("missing")
	assert.False(t, ok)
}

func TestRecordFirstString(t *testing.T) {
	t.Parallel()

	rec := Record{"x": nil, "y": "", "z": "value"}
	assert.Equal(t, "value", rec.FirstString("x", "y", "z"))
	assert.Equal(t, "", rec.FirstString("x", "missing"))
}

func TestFromMapConvertsNested(t *testing.T) {
	t.Parallel()

	rec := FromMap(map[string]any{
		"flat": "v",
		"nested": map[string]any{
			"inner": map[string]any{"deep": 1},
		},
	})

	nested, ok := rec["nested"].(Record)
	require.True(t, ok)
	_, ok = nested["inner"].(Record)
	assert.True(t, ok)
}

func TestClone(t *testing.T) {
	t.Parallel()

	orig := Record{"k": "v"}
	cp := orig.Clone()
	cp["k"] = "changed"
	assert.Equal(t, "v", orig["k"])
}
