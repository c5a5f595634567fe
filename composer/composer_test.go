package composer

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/mcgravity/mcgravity/internal/mcp"
	"github.com/mcgravity/mcgravity/registry"
	"github.com/mcgravity/mcgravity/upstream"
)

func newTestComposer() *Composer {
	return New(mcp.Implementation{Name: "mcgravity", Version: "test"}, registry.New(), zerolog.Nop())
}

func TestInstallAggregatesToolsAcrossUpstreams(t *testing.T) {
	c := newTestComposer()
	c.install("upstream-a", &upstream.Capabilities{Tools: []mcp.Tool{{Name: "echo"}}})
	c.install("upstream-b", &upstream.Capabilities{Tools: []mcp.Tool{{Name: "translate"}}})

	result := c.handleListTools()
	names := make([]string, 0, len(result.Tools))
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
	}
	require.ElementsMatch(t, []string{"echo", "translate"}, names)
}

func TestInstallLastWriterWinsOnCollision(t *testing.T) {
	c := newTestComposer()
	c.install("upstream-a", &upstream.Capabilities{Tools: []mcp.Tool{{Name: "echo", Description: "first"}}})
	c.install("upstream-b", &upstream.Capabilities{Tools: []mcp.Tool{{Name: "echo", Description: "second"}}})

	owner, ok := c.toolOwners.Get("echo")
	require.True(t, ok)
	require.Equal(t, "upstream-b", owner)

	desc, ok := c.toolDescs.Get("echo")
	require.True(t, ok)
	require.Equal(t, "second", desc.Description)
}

func TestCallToolUnknownReturnsMethodNotFound(t *testing.T) {
	c := newTestComposer()
	req := &mcp.Request{Jsonrpc: mcp.Version, Id: mcp.NewRequestID(float64(1)), Method: mcp.MethodToolsCall,
		Params: mustMarshal(t, mcp.CallToolParams{Name: "missing"})}

	resp := c.Dispatch(context.Background(), req)
	require.NotNil(t, resp.Error)
	require.Equal(t, mcp.CodeMethodNotFound, resp.Error.Code)
}

func TestCallToolOnLostUpstreamReturnsClientNotFound(t *testing.T) {
	c := newTestComposer()
	c.install("http://gone/sse", &upstream.Capabilities{Tools: []mcp.Tool{{Name: "echo"}}})
	// no registry.Put: the owner is installed but was never (or no longer) registered

	req := &mcp.Request{Jsonrpc: mcp.Version, Id: mcp.NewRequestID(float64(2)), Method: mcp.MethodToolsCall,
		Params: mustMarshal(t, mcp.CallToolParams{Name: "echo"})}

	resp := c.Dispatch(context.Background(), req)
	require.NotNil(t, resp.Error)
	require.Contains(t, resp.Error.Message, "ClientNotFound")
}

func TestInitializeReturnsServerInfo(t *testing.T) {
	c := newTestComposer()
	req := &mcp.Request{Jsonrpc: mcp.Version, Id: mcp.NewRequestID(float64(3)), Method: mcp.MethodInitialize}

	resp := c.Dispatch(context.Background(), req)
	require.Nil(t, resp.Error)

	var result mcp.InitializeResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.Equal(t, "mcgravity", result.ServerInfo.Name)
}

func TestSetLevelUpdatesSubscriberThreshold(t *testing.T) {
	c := newTestComposer()
	var received []mcp.LoggingMessageParams
	c.Subscribe("session-1", func(note *mcp.Notification) {
		var params mcp.LoggingMessageParams
		require.NoError(t, json.Unmarshal(note.Params, &params))
		received = append(received, params)
	})

	ctx := WithSessionID(context.Background(), "session-1")
	req := &mcp.Request{Jsonrpc: mcp.Version, Id: mcp.NewRequestID(float64(4)), Method: mcp.MethodLoggingSetLevel,
		Params: mustMarshal(t, mcp.SetLevelParams{Level: mcp.LoggingLevelError})}
	resp := c.Dispatch(ctx, req)
	require.Nil(t, resp.Error)

	c.broadcastLog(mcp.LoggingLevelWarning, "composer", "should be suppressed below error threshold")
	c.broadcastLog(mcp.LoggingLevelError, "composer", "should be delivered")

	require.Len(t, received, 1)
	require.Equal(t, "should be delivered", received[0].Data)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	c := newTestComposer()
	delivered := 0
	c.Subscribe("session-2", func(*mcp.Notification) { delivered++ })
	c.Unsubscribe("session-2")

	c.broadcastLog(mcp.LoggingLevelInfo, "composer", "nobody listening")
	require.Equal(t, 0, delivered)
}

func TestRegisterUpstreamUnreachableLeavesListTargetsEmpty(t *testing.T) {
	c := newTestComposer()
	desc := registry.Descriptor{URL: "http://127.0.0.1:1/sse", Name: "unreachable"}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c.RegisterUpstream(ctx, desc.URL, desc)

	require.Empty(t, c.ListTargets())
}

func mustMarshal(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
