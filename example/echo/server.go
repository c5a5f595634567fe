package echo

import (
	"net/http"

	"github.com/mcgravity/mcgravity/internal/collection"
	"github.com/mcgravity/mcgravity/internal/mcp"
	"github.com/mcgravity/mcgravity/transport/sse"
)

// Handler returns an http.Handler serving the echo upstream over the same
// legacy SSE transport mcgravity itself speaks, so it can be pointed at
// directly by the aggregator or by an MCP client.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /sse", handleOpenSession)
	mux.HandleFunc("POST /messages", handlePost)
	return mux
}

var sessions = collection.NewSyncMap[string, *sse.Transport]()

func handleOpenSession(w http.ResponseWriter, r *http.Request) {
	tr := sse.New("/messages")
	tr.OnMessage = func(req *mcp.Request) {
		if resp := Dispatch(r.Context(), req); resp != nil {
			_ = tr.Send(resp)
		}
	}
	tr.OnClose = func() { sessions.Delete(tr.SessionID) }

	sessions.Put(tr.SessionID, tr)
	defer tr.Close()

	if err := tr.Open(w); err != nil {
		sessions.Delete(tr.SessionID)
		return
	}
	<-r.Context().Done()
}

func handlePost(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	tr, ok := sessions.Get(sessionID)
	if !ok {
		http.Error(w, "Invalid session ID", http.StatusBadRequest)
		return
	}
	status, body := tr.HandlePost(r)
	if body == "" {
		w.WriteHeader(status)
		return
	}
	http.Error(w, body, status)
}
