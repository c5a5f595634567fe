package schemaconv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConvertScalarTypes(t *testing.T) {
	require.Equal(t, KindString, Convert(map[string]any{"type": "string"}).Kind)
	require.Equal(t, KindNumber, Convert(map[string]any{"type": "number"}).Kind)
	require.Equal(t, KindBoolean, Convert(map[string]any{"type": "boolean"}).Kind)
}

func TestConvertUnknownTypeIsAny(t *testing.T) {
	require.Equal(t, KindAny, Convert(map[string]any{"type": "oneOf"}).Kind)
	require.Equal(t, KindAny, Convert(nil).Kind)
}

func TestConvertArrayOfStrings(t *testing.T) {
	v := Convert(map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "string"},
	})
	require.Equal(t, KindArray, v.Kind)
	require.Equal(t, KindString, v.Items.Kind)
}

func TestConvertObjectWithProperties(t *testing.T) {
	v := Convert(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{"type": "string"},
		},
	})
	require.Equal(t, KindObject, v.Kind)
	require.Equal(t, KindString, v.Properties["message"].Kind)
}

func TestCheckRejectsWrongShape(t *testing.T) {
	v := Convert(map[string]any{"type": "string"})
	require.NoError(t, v.Check("hello"))
	require.Error(t, v.Check(42))
}

func TestCheckObjectIgnoresExtraFields(t *testing.T) {
	v := Convert(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{"type": "string"},
		},
	})
	require.NoError(t, v.Check(map[string]any{"message": "hi", "extra": 1}))
}
