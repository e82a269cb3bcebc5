package keyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		name   string
		keys   int
		lowest uint8
		ok     bool
	}{
		{"88", 88, 21, true},
		{"88-key", 88, 21, true},
		{" 61 ", 61, 36, true},
		{"76-KEY", 76, 28, true},
		{"25", 25, 48, true},
		{"64", 0, 0, false},
		{"grand", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, ok := Lookup(tt.name)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.keys, spec.Keys)
				assert.Equal(t, tt.lowest, spec.LowestNote)
				assert.NoError(t, spec.Validate())
			}
		})
	}
}

func TestSizes(t *testing.T) {
	assert.Equal(t, []int{25, 37, 49, 61, 76, 88}, Sizes())
	assert.Equal(t, "25-key", Names()[0])
}

func TestWhiteKeyCounts(t *testing.T) {
	expected := map[int]int{25: 15, 37: 22, 49: 29, 61: 36, 76: 45, 88: 52}
	for size, whites := range expected {
		spec, ok := BySize(size)
		require.True(t, ok)
		assert.Equal(t, whites, spec.WhiteKeys(), "size %d", size)
	}
}

func TestKeyIndex(t *testing.T) {
	spec, _ := BySize(88)

	idx, ok := spec.KeyIndex(21)
	assert.True(t, ok)
	assert.Equal(t, 0, idx)

	idx, ok = spec.KeyIndex(108)
	assert.True(t, ok)
	assert.Equal(t, 87, idx)

	_, ok = spec.KeyIndex(20)
	assert.False(t, ok)
	_, ok = spec.KeyIndex(109)
	assert.False(t, ok)
}

func TestComputeGeometries88(t *testing.T) {
	spec, _ := BySize(88)
	keys := ComputeGeometries(spec, DefaultDimensions())
	require.Len(t, keys, 88)

	// A0 white, A#0 black, B0 white, C1 white
	assert.Equal(t, White, keys[0].Kind)
	assert.Equal(t, Black, keys[1].Kind)
	assert.Equal(t, White, keys[2].Kind)
	assert.Equal(t, White, keys[3].Kind)

	assert.InDelta(t, 0.0, keys[0].Span.Start, 1e-9)
	assert.InDelta(t, 23.5, keys[0].Span.End, 1e-9)
	assert.InDelta(t, 24.5, keys[2].Span.Start, 1e-9)

	// A#0 is centred on the A0/B0 boundary
	assert.InDelta(t, 24.0, keys[1].Span.Center(), 1e-9)
	assert.InDelta(t, 13.7, keys[1].Span.Width(), 1e-9)
	assert.InDelta(t, 17.15, keys[1].Span.Start, 1e-9)

	// Last key is C8, a white key closing the keyboard
	last := keys[87]
	assert.Equal(t, White, last.Kind)
	assert.Equal(t, uint8(108), last.Note)
	assert.InDelta(t, 52*24.5-1.0, Width(keys), 1e-9)
}

func TestComputeGeometriesBlackWidth(t *testing.T) {
	spec, _ := BySize(25)
	keys := ComputeGeometries(spec, DefaultDimensions().WithBlackWidth(13.5))

	// C3 C#3 ...
	require.Equal(t, Black, keys[1].Kind)
	assert.InDelta(t, 13.5, keys[1].Span.Width(), 1e-9)
	assert.InDelta(t, 24.0, keys[1].Span.Center(), 1e-9)
}

func TestComputeGeometriesBlackFirstKey(t *testing.T) {
	// A keyboard that starts on a black key still produces geometry.
	keys := ComputeGeometries(Spec{Name: "test", Keys: 3, LowestNote: 22}, DefaultDimensions())
	require.Len(t, keys, 3)

	assert.Equal(t, Black, keys[0].Kind)
	assert.InDelta(t, -0.5, keys[0].Span.Center(), 1e-9)
	assert.Equal(t, White, keys[1].Kind)
	assert.InDelta(t, 0.0, keys[1].Span.Start, 1e-9)
}

func TestWhiteKeysStrictlyOrdered(t *testing.T) {
	for _, size := range Sizes() {
		spec, _ := BySize(size)
		keys := ComputeGeometries(spec, DefaultDimensions())
		prev := -1.0
		for _, k := range keys {
			if k.Kind != White {
				continue
			}
			assert.Greater(t, k.Span.Start, prev, "size %d key %d", size, k.Index)
			prev = k.Span.End
		}
	}
}
