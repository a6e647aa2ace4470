package canonical

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal(t *testing.T) {
	t.Run("sorts keys and drops nil entries", func(t *testing.T) {
		got, err := Marshal(map[string]any{"b": 1, "a": "x", "c": nil})
		require.NoError(t, err)
		assert.Equal(t, `{"a":"x","b":1}`, string(got))
	})

	t.Run("normalizes strings to NFC", func(t *testing.T) {
		decomposed := "Jose\u0301"
		composed := "Jos\u00e9"
		a, err := Marshal(decomposed)
		require.NoError(t, err)
		b, err := Marshal(composed)
		require.NoError(t, err)
		assert.Equal(t, b, a)
	})

	t.Run("rejects floats", func(t *testing.T) {
		_, err := Marshal(map[string]any{"score": 0.5})
		assert.ErrorIs(t, err, ErrFloatNotAllowed)
		_, err = Marshal(json.Number("1.5"))
		assert.ErrorIs(t, err, ErrFloatNotAllowed)
	})

	t.Run("nil slices in maps are dropped", func(t *testing.T) {
		var ids []string
		got, err := Marshal(map[string]any{"ids": ids, "n": []int{1, 2}})
		require.NoError(t, err)
		assert.Equal(t, `{"n":[1,2]}`, string(got))

		got, err = Marshal(ids)
		require.NoError(t, err)
		assert.Equal(t, `[]`, string(got))
	})
}

func TestDigest_IsOrderIndependentForMaps(t *testing.T) {
	a, err := Digest(map[string]any{"x": true, "y": []int{3}})
	require.NoError(t, err)
	b, err := Digest(map[string]any{"y": []int{3}, "x": true})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}
