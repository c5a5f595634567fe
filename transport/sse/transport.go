// Package sse implements the SSE session transport (spec component C1): a
// single HTTP response body carries server-to-client JSON-RPC framing as
// Server-Sent Events, paired with a separate POST channel for
// client-to-server messages. Session id is handed to the client as the
// data of the first "endpoint" event.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/mcgravity/mcgravity/internal/mcp"
)

// State is the lifecycle state of a Transport. Transitions are monotonic:
// Opening -> Open -> Closed, never reopened (spec §3).
type State int

const (
	Opening State = iota
	Open
	Closed
)

// ErrNotConnected is returned by Send when the transport is not Open.
var ErrNotConnected = fmt.Errorf("sse transport: not connected")

// RequestHandler receives a parsed inbound JSON-RPC request.
type RequestHandler func(req *mcp.Request)

// NotificationHandler receives a parsed inbound JSON-RPC notification.
type NotificationHandler func(note *mcp.Notification)

// Transport is one downstream session: it owns the SSE response writer and
// the client-visible POST endpoint path for this session id.
type Transport struct {
	SessionID    string
	postEndpoint string

	mu      sync.Mutex
	state   State
	writer  http.ResponseWriter
	flusher http.Flusher

	closeOnce sync.Once

	OnMessage      RequestHandler
	OnNotification NotificationHandler
	OnClose        func()
	OnError        func(error)
}

// New constructs a Transport with a fresh, cryptographically-unguessable
// session id (spec §9) and the given POST endpoint path (e.g. "/messages").
func New(postEndpoint string) *Transport {
	return &Transport{
		SessionID:    uuid.NewString(),
		postEndpoint: postEndpoint,
		state:        Opening,
	}
}

// PostPath returns the full path clients must POST to for this session,
// e.g. "/messages?sessionId=<id>".
func (t *Transport) PostPath() string {
	return fmt.Sprintf("%s?sessionId=%s", t.postEndpoint, t.SessionID)
}

// Open binds the transport to the response writer of an SSE GET request,
// writes the response headers and the initial "endpoint" event, and
// transitions Opening -> Open. The caller is expected to keep the request
// alive (e.g. block on request context Done) after calling Open.
func (t *Transport) Open(w http.ResponseWriter) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("sse transport: response writer does not support flushing")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Opening {
		return fmt.Errorf("sse transport: open called in state %v", t.state)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	t.writer = w
	t.flusher = flusher
	t.state = Open

	if _, err := fmt.Fprintf(w, "event: endpoint\ndata: %s\n\n", t.PostPath()); err != nil {
		t.state = Closed
		return fmt.Errorf("sse transport: write endpoint event: %w", err)
	}
	flusher.Flush()
	return nil
}

// Send writes one JSON-RPC message as an SSE "message" event.
func (t *Transport) Send(message any) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("sse transport: marshal message: %w", err)
	}

	t.mu.Lock()
	if t.state != Open {
		t.mu.Unlock()
		return ErrNotConnected
	}
	_, writeErr := fmt.Fprintf(t.writer, "event: message\ndata: %s\n\n", data)
	if writeErr == nil {
		t.flusher.Flush()
	}
	t.mu.Unlock()

	if writeErr != nil {
		wrapped := fmt.Errorf("sse transport: write message: %w", writeErr)
		t.fireError(wrapped)
		t.Close()
		return wrapped
	}
	return nil
}

// HandlePost parses one inbound JSON-RPC payload and dispatches it to
// OnMessage (requests) or OnNotification (notifications), per spec §4.1.
// It returns the HTTP status the caller should respond with.
func (t *Transport) HandlePost(r *http.Request) (status int, body string) {
	if ct := r.Header.Get("Content-Type"); ct != "" && !isJSONContentType(ct) {
		t.fireError(fmt.Errorf("sse transport: unexpected content-type %q", ct))
		return http.StatusBadRequest, "Unsupported content type"
	}

	t.mu.Lock()
	closed := t.state != Open
	t.mu.Unlock()
	if closed {
		return http.StatusBadRequest, "Invalid session ID"
	}

	decoder := json.NewDecoder(r.Body)
	var raw json.RawMessage
	if err := decoder.Decode(&raw); err != nil {
		t.fireError(fmt.Errorf("sse transport: decode body: %w", err))
		return http.StatusBadRequest, "Invalid JSON-RPC message"
	}

	var probe struct {
		Method string         `json:"method"`
		Id     *mcp.RequestID `json:"id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		t.fireError(fmt.Errorf("sse transport: parse envelope: %w", err))
		return http.StatusBadRequest, "Invalid JSON-RPC message"
	}

	if probe.Id == nil {
		var note mcp.Notification
		if err := json.Unmarshal(raw, &note); err != nil {
			t.fireError(fmt.Errorf("sse transport: parse notification: %w", err))
			return http.StatusBadRequest, "Invalid JSON-RPC message"
		}
		if t.OnNotification != nil {
			t.OnNotification(&note)
		}
		return http.StatusAccepted, ""
	}

	var req mcp.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		t.fireError(fmt.Errorf("sse transport: parse request: %w", err))
		return http.StatusBadRequest, "Invalid JSON-RPC message"
	}
	if t.OnMessage != nil {
		t.OnMessage(&req)
	}
	return http.StatusAccepted, ""
}

// Close flushes and closes the transport. Idempotent: OnClose fires exactly
// once regardless of how many times Close is called (spec §8 Idempotence).
func (t *Transport) Close() {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		if t.state == Open && t.flusher != nil {
			t.flusher.Flush()
		}
		t.state = Closed
		t.mu.Unlock()
		if t.OnClose != nil {
			t.OnClose()
		}
	})
}

// IsOpen reports whether the transport can currently accept Send calls.
func (t *Transport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == Open
}

func (t *Transport) fireError(err error) {
	if t.OnError != nil {
		t.OnError(err)
	}
}

func isJSONContentType(ct string) bool {
	for i := 0; i < len(ct); i++ {
		if ct[i] == ';' {
			ct = ct[:i]
			break
		}
	}
	return ct == "application/json" || ct == "application/json-rpc"
}
