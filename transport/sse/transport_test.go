package sse

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mcgravity/mcgravity/internal/mcp"
)

func TestOpenWritesEndpointEventFirst(t *testing.T) {
	tr := New("/messages")
	rec := httptest.NewRecorder()

	require.NoError(t, tr.Open(rec))

	body := rec.Body.String()
	require.True(t, strings.HasPrefix(body, "event: endpoint\ndata: "))
	require.Contains(t, body, "/messages?sessionId="+tr.SessionID)
	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
}

func TestOpenTwiceFails(t *testing.T) {
	tr := New("/messages")
	rec := httptest.NewRecorder()
	require.NoError(t, tr.Open(rec))
	require.Error(t, tr.Open(rec))
}

func TestSendBeforeOpenFails(t *testing.T) {
	tr := New("/messages")
	err := tr.Send(map[string]string{"hello": "world"})
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestSendAfterOpenWritesMessageEvent(t *testing.T) {
	tr := New("/messages")
	rec := httptest.NewRecorder()
	require.NoError(t, tr.Open(rec))

	require.NoError(t, tr.Send(map[string]string{"hello": "world"}))
	require.Contains(t, rec.Body.String(), "event: message\ndata: {\"hello\":\"world\"}")
}

func TestHandlePostRejectsBadContentType(t *testing.T) {
	tr := New("/messages")
	rec := httptest.NewRecorder()
	require.NoError(t, tr.Open(rec))

	var gotErr error
	tr.OnError = func(err error) { gotErr = err }

	req := httptest.NewRequest(http.MethodPost, "/messages", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "text/plain")

	status, _ := tr.HandlePost(req)
	require.Equal(t, http.StatusBadRequest, status)
	require.Error(t, gotErr)
}

func TestHandlePostRejectsWhenClosed(t *testing.T) {
	tr := New("/messages")
	rec := httptest.NewRecorder()
	require.NoError(t, tr.Open(rec))
	tr.Close()

	req := httptest.NewRequest(http.MethodPost, "/messages", bytes.NewBufferString(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
	req.Header.Set("Content-Type", "application/json")

	status, _ := tr.HandlePost(req)
	require.Equal(t, http.StatusBadRequest, status)
}

func TestHandlePostDispatchesRequestAndNotification(t *testing.T) {
	tr := New("/messages")
	rec := httptest.NewRecorder()
	require.NoError(t, tr.Open(rec))

	var gotMethod string
	tr.OnMessage = func(req *mcp.Request) { gotMethod = req.Method }

	var notified bool
	tr.OnNotification = func(note *mcp.Notification) { notified = true }

	// notification: no "id" field
	req := httptest.NewRequest(http.MethodPost, "/messages", bytes.NewBufferString(`{"jsonrpc":"2.0","method":"notifications/initialized"}`))
	req.Header.Set("Content-Type", "application/json")
	status, _ := tr.HandlePost(req)
	require.Equal(t, http.StatusAccepted, status)
	require.True(t, notified)

	// request: carries an "id" field
	req = httptest.NewRequest(http.MethodPost, "/messages", bytes.NewBufferString(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
	req.Header.Set("Content-Type", "application/json")
	status, _ = tr.HandlePost(req)
	require.Equal(t, http.StatusAccepted, status)
	require.Equal(t, "ping", gotMethod)
}

func TestCloseIsIdempotent(t *testing.T) {
	tr := New("/messages")
	var calls int
	var mu sync.Mutex
	tr.OnClose = func() {
		mu.Lock()
		calls++
		mu.Unlock()
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Close()
		}()
	}
	wg.Wait()

	require.Equal(t, 1, calls)
}

func TestPostPathIncludesSessionID(t *testing.T) {
	tr := New("/sessions")
	require.Equal(t, "/sessions?sessionId="+tr.SessionID, tr.PostPath())
}
