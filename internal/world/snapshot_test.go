package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupPresence(t *testing.T) {
	s := NewSnapshot(map[string]any{
		"lightLevel": 0,
		"night":      false,
		"biome":      "",
		"carrying":   nil,
	})

	tests := []struct {
		name      string
		path      string
		wantValue any
		wantFound bool
	}{
		{name: "zero is present", path: "lightLevel", wantValue: 0, wantFound: true},
		{name: "false is present", path: "night", wantValue: false, wantFound: true},
		{name: "empty string is present", path: "biome", wantValue: "", wantFound: true},
		{name: "explicit null is present", path: "carrying", wantValue: nil, wantFound: true},
		{name: "missing field", path: "health", wantValue: nil, wantFound: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, found := s.Lookup(tt.path)
			assert.Equal(t, tt.wantFound, found)
			assert.Equal(t, tt.wantValue, value)
		})
	}
}

func TestLookupNestedPath(t *testing.T) {
	s := NewSnapshot(map[string]any{
		"inventory": map[string]any{
			"torch": 12,
			"wood":  0,
		},
	})

	value, found := s.Lookup("inventory.torch")
	require.True(t, found)
	assert.Equal(t, 12, value)

	_, found = s.Lookup("inventory.stone")
	assert.False(t, found)

	_, found = s.Lookup("equipment.helmet")
	assert.False(t, found)
}

func TestParseSnapshot(t *testing.T) {
	s, err := ParseSnapshot([]byte(`{"lightLevel": 0, "position": {"x": 4.5}}`))
	require.NoError(t, err)

	n, found := s.Number("lightLevel")
	require.True(t, found)
	assert.Equal(t, 0.0, n)

	x, found := s.Number("position.x")
	require.True(t, found)
	assert.Equal(t, 4.5, x)

	_, err = ParseSnapshot([]byte(`{not json`))
	assert.Error(t, err)
}

func TestTypedAccessors(t *testing.T) {
	s := NewSnapshot(map[string]any{
		"count": 3,
		"ratio": 0.25,
		"name":  "overworld",
		"safe":  false,
	})

	n, ok := s.Number("count")
	require.True(t, ok)
	assert.Equal(t, 3.0, n)

	r, ok := s.Number("ratio")
	require.True(t, ok)
	assert.Equal(t, 0.25, r)

	// Present but wrong type.
	_, ok = s.Number("name")
	assert.False(t, ok)

	str, ok := s.String("name")
	require.True(t, ok)
	assert.Equal(t, "overworld", str)

	b, ok := s.Bool("safe")
	require.True(t, ok)
	assert.False(t, b)

	_, ok = s.Bool("missing")
	assert.False(t, ok)
}

func TestNilSnapshot(t *testing.T) {
	var s *Snapshot

	_, found := s.Lookup("anything")
	assert.False(t, found)
	assert.Equal(t, map[string]any{}, s.Data())
}
