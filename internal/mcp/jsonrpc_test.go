package mcp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequestIDRoundTrip(t *testing.T) {
	for _, v := range []any{"abc", float64(42), nil} {
		id := NewRequestID(v)
		data, err := json.Marshal(id)
		require.NoError(t, err)

		var decoded RequestID
		require.NoError(t, json.Unmarshal(data, &decoded))
		require.Equal(t, v, decoded.Value())
	}
}

func TestNewResponsePreservesID(t *testing.T) {
	id := NewRequestID(float64(7))
	resp, err := NewResponse(id, &ListToolsResult{Tools: []Tool{{Name: "echo"}}})
	require.NoError(t, err)
	require.Equal(t, id.Value(), resp.Id.Value())
	require.Nil(t, resp.Error)

	var result ListToolsResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.Len(t, result.Tools, 1)
	require.Equal(t, "echo", result.Tools[0].Name)
}

func TestErrorConstructors(t *testing.T) {
	err := NewMethodNotFound("tool not found", "echo")
	require.Equal(t, CodeMethodNotFound, err.Code)
	require.Contains(t, err.Error(), "tool not found")
}
