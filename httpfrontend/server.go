// Package httpfrontend implements the HTTP frontend (spec component C5):
// it binds a listener, opens SSE sessions, routes client POSTs to the
// matching session's transport, and serves the health/list-targets
// auxiliary endpoints.
package httpfrontend

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/mcgravity/mcgravity/composer"
	"github.com/mcgravity/mcgravity/internal/collection"
	"github.com/mcgravity/mcgravity/internal/mcp"
	"github.com/mcgravity/mcgravity/registry"
	"github.com/mcgravity/mcgravity/transport/sse"
)

// postPath is the POST endpoint advertised in the SSE "endpoint" event.
// /messages is canonical; /sessions is accepted as an alias (spec §13).
const postPath = "/messages"

// Frontend binds the exposed MCP server (via Composer) to an HTTP mux.
type Frontend struct {
	composer *composer.Composer
	cors     *Cors
	log      zerolog.Logger

	sessions *collection.SyncMap[string, *sse.Transport]
}

// New creates a Frontend dispatching through comp. If cors is nil, no CORS
// headers are set.
func New(comp *composer.Composer, cors *Cors, log zerolog.Logger) *Frontend {
	return &Frontend{
		composer: comp,
		cors:     cors,
		log:      log,
		sessions: collection.NewSyncMap[string, *sse.Transport](),
	}
}

// Handler builds the mux serving the spec's canonical HTTP surface.
func (f *Frontend) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", f.handleOpenSession)
	mux.HandleFunc("GET /sse", f.handleOpenSession)
	mux.HandleFunc("POST /messages", f.handlePost)
	mux.HandleFunc("POST /sessions", f.handlePost)
	mux.HandleFunc("GET /health", f.handleHealth)
	mux.HandleFunc("GET /api/list-targets", f.handleListTargets)

	var handler http.Handler = mux
	if f.cors != nil {
		handler = f.cors.Middleware(mux)
	}
	return handler
}

func (f *Frontend) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	tr := sse.New(postPath)
	tr.OnMessage = func(req *mcp.Request) {
		ctx := composer.WithSessionID(r.Context(), tr.SessionID)
		resp := f.composer.Dispatch(ctx, req)
		if err := tr.Send(resp); err != nil {
			f.log.Warn().Str("session", tr.SessionID).Err(err).Msg("failed to send response")
		}
	}
	tr.OnNotification = func(note *mcp.Notification) {
		ctx := composer.WithSessionID(r.Context(), tr.SessionID)
		f.composer.HandleNotification(ctx, note)
	}
	tr.OnError = func(err error) {
		f.log.Warn().Str("session", tr.SessionID).Err(err).Msg("transport error")
	}
	tr.OnClose = func() {
		f.sessions.Delete(tr.SessionID)
		f.composer.Unsubscribe(tr.SessionID)
		f.log.Info().Str("session", tr.SessionID).Msg("session closed")
	}

	f.composer.Subscribe(tr.SessionID, func(note *mcp.Notification) {
		if err := tr.Send(note); err != nil {
			f.log.Warn().Str("session", tr.SessionID).Err(err).Msg("failed to push log notification")
		}
	})
	f.sessions.Put(tr.SessionID, tr)
	defer tr.Close()

	if err := tr.Open(w); err != nil {
		f.sessions.Delete(tr.SessionID)
		f.log.Warn().Err(err).Msg("failed to open sse session")
		return
	}
	f.log.Info().Str("session", tr.SessionID).Msg("session opened")

	<-r.Context().Done()
}

func (f *Frontend) handlePost(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		http.Error(w, "Invalid session ID", http.StatusBadRequest)
		return
	}
	tr, ok := f.sessions.Get(sessionID)
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

func (f *Frontend) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("OK"))
}

func (f *Frontend) handleListTargets(w http.ResponseWriter, r *http.Request) {
	targets := f.composer.ListTargets()
	if kind := r.URL.Query().Get("kind"); kind != "" {
		targets = filterTargetsByKind(targets, kind)
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(targets); err != nil {
		f.log.Error().Err(err).Msg("failed to encode list-targets response")
	}
}

// filterTargetsByKind keeps only targets that advertise at least one
// capability of the given kind (spec §12 supplemented ?kind= filter). A kind
// other than tools, resources or prompts leaves the list unfiltered.
func filterTargetsByKind(targets []registry.ListTarget, kind string) []registry.ListTarget {
	out := make([]registry.ListTarget, 0, len(targets))
	for _, t := range targets {
		var count int
		switch kind {
		case "tools":
			count = t.ToolCount
		case "resources":
			count = t.ResourceCount
		case "prompts":
			count = t.PromptCount
		default:
			out = append(out, t)
			continue
		}
		if count > 0 {
			out = append(out, t)
		}
	}
	return out
}
