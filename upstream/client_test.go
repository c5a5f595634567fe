package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mcgravity/mcgravity/internal/mcp"
)

func TestDialReadsEndpointEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "event: endpoint\ndata: /messages\n\n")
		w.(http.Flusher).Flush()
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	sess, err := c.dial(context.Background())
	require.NoError(t, err)
	defer sess.Close()
	require.Equal(t, srv.URL+"/messages", sess.postURL)
}

func TestHandshakeRoundTrip(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sse", func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "event: endpoint\ndata: /messages\n\n")
		flusher.Flush()

		initResult := mcp.InitializeResult{
			ProtocolVersion: mcp.ProtocolVersion,
			ServerInfo:      mcp.Implementation{Name: "fake", Version: "0.0.1"},
			Capabilities:    mcp.ServerCapabilities{Tools: &mcp.ToolsCapability{}},
		}
		resultData, _ := json.Marshal(initResult)
		resp := mcp.Response{Jsonrpc: mcp.Version, Id: mcp.NewRequestID(float64(1)), Result: resultData}
		data, _ := json.Marshal(resp)
		fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
		flusher.Flush()

		<-r.Context().Done()
	})
	mux.HandleFunc("/messages", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL+"/sse", srv.Client())
	sess, initResult, err := c.handshake(context.Background())
	require.NoError(t, err)
	defer sess.Close()
	require.Equal(t, "fake", initResult.ServerInfo.Name)
}
