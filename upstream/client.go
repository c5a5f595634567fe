// Package upstream implements the upstream MCP client (spec component C2):
// a short-lived, connect-per-invocation SSE client that opens a GET stream
// to an upstream MCP server, performs the initialize handshake, sends one
// JSON-RPC request over the session's POST endpoint, and reads the matching
// response off the GET stream before closing. Nothing is pooled or kept
// warm between calls — deliberately, so a slow or wedged upstream can never
// block traffic meant for another upstream (spec §5).
package upstream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mcgravity/mcgravity/internal/mcp"
)

// Client talks to one upstream MCP server over legacy HTTP+SSE transport.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	ClientName    string
	ClientVersion string

	idSeq atomic.Int64
}

// New creates a Client for baseURL. If httpClient is nil, a client with no
// timeout is used since the GET leg is a long-lived stream.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{BaseURL: baseURL, HTTPClient: httpClient}
}

func (c *Client) nextID() mcp.RequestID {
	return mcp.NewRequestID(c.idSeq.Add(1))
}

// session is one open GET stream plus the POST endpoint the server handed
// back in its initial "endpoint" event.
type session struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	postURL string
}

func (c *Client) dial(ctx context.Context) (*session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("upstream: build handshake request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream: handshake request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("upstream: handshake status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	postPath, err := readEndpointEvent(scanner)
	if err != nil {
		resp.Body.Close()
		return nil, err
	}

	postURL := postPath
	if strings.HasPrefix(postPath, "/") {
		postURL = joinURL(c.BaseURL, postPath)
	}

	return &session{body: resp.Body, scanner: scanner, postURL: postURL}, nil
}

func (s *session) Close() {
	s.body.Close()
}

// readEndpointEvent scans an SSE stream for the first "endpoint" event and
// returns its data line, per the legacy handshake spec §4.1 requires.
func readEndpointEvent(scanner *bufio.Scanner) (string, error) {
	sawEvent := false
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "event: endpoint"):
			sawEvent = true
		case sawEvent && strings.HasPrefix(line, "data: "):
			return strings.TrimPrefix(line, "data: "), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("upstream: read handshake stream: %w", err)
	}
	return "", fmt.Errorf("upstream: no endpoint event in handshake stream")
}

// readMessageEvent scans for the next "message" event carrying a JSON-RPC
// envelope and returns its raw data.
func readMessageEvent(scanner *bufio.Scanner) (json.RawMessage, error) {
	sawEvent := false
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "event: message"):
			sawEvent = true
		case strings.HasPrefix(line, "event:"):
			sawEvent = false
		case sawEvent && strings.HasPrefix(line, "data: "):
			return json.RawMessage(strings.TrimPrefix(line, "data: ")), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("upstream: read message stream: %w", err)
	}
	return nil, io.EOF
}

func (c *Client) post(ctx context.Context, postURL string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("upstream: marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, postURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("upstream: build post request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("upstream: post request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("upstream: post rejected with status %d", resp.StatusCode)
	}
	return nil
}

// call performs one request/response round trip over a freshly dialed
// session: POST the request, then read the matching response off the GET
// stream. It discards any unrelated notifications that arrive first.
func (c *Client) call(ctx context.Context, sess *session, method string, params any) (json.RawMessage, error) {
	id := c.nextID()
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	req := mcp.Request{Jsonrpc: mcp.Version, Id: id, Method: method, Params: raw}
	if err := c.post(ctx, sess.postURL, req); err != nil {
		return nil, err
	}

	for {
		data, err := readMessageEvent(sess.scanner)
		if err != nil {
			return nil, err
		}
		var resp mcp.Response
		if err := json.Unmarshal(data, &resp); err != nil {
			continue
		}
		if resp.Id.IsZero() || fmt.Sprint(resp.Id.Value()) != fmt.Sprint(id.Value()) {
			continue
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	}
}

func (c *Client) notify(ctx context.Context, sess *session, method string, params any) error {
	raw, err := marshalParams(params)
	if err != nil {
		return err
	}
	note := mcp.Notification{Jsonrpc: mcp.Version, Method: method, Params: raw}
	return c.post(ctx, sess.postURL, note)
}

func marshalParams(params any) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("upstream: marshal params: %w", err)
	}
	return data, nil
}

// handshake opens a session and performs the initialize/initialized
// exchange required before any other method call (spec §4.2).
func (c *Client) handshake(ctx context.Context) (*session, *mcp.InitializeResult, error) {
	sess, err := c.dial(ctx)
	if err != nil {
		return nil, nil, err
	}

	name := c.ClientName
	if name == "" {
		name = "mcgravity"
	}
	version := c.ClientVersion
	if version == "" {
		version = "1.0.0"
	}

	initParams := mcp.InitializeParams{
		ProtocolVersion: mcp.ProtocolVersion,
		ClientInfo:      mcp.Implementation{Name: name, Version: version},
		Capabilities:    mcp.ClientCapabilities{},
	}

	result, err := c.call(ctx, sess, mcp.MethodInitialize, initParams)
	if err != nil {
		sess.Close()
		return nil, nil, fmt.Errorf("upstream: initialize: %w", err)
	}
	var initResult mcp.InitializeResult
	if err := json.Unmarshal(result, &initResult); err != nil {
		sess.Close()
		return nil, nil, fmt.Errorf("upstream: decode initialize result: %w", err)
	}

	if err := c.notify(ctx, sess, mcp.MethodNotificationInitialized, struct{}{}); err != nil {
		sess.Close()
		return nil, nil, fmt.Errorf("upstream: send initialized notification: %w", err)
	}

	return sess, &initResult, nil
}

// Discover opens one connection, performs the handshake, lists every
// capability kind the upstream advertises, and closes. Used during
// registration (spec §4.3).
func (c *Client) Discover(ctx context.Context) (*Capabilities, error) {
	sess, initResult, err := c.handshake(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	caps := &Capabilities{Server: initResult.ServerInfo}

	if initResult.Capabilities.Tools != nil {
		data, err := c.call(ctx, sess, mcp.MethodToolsList, mcp.ListToolsParams{})
		if err != nil {
			return nil, fmt.Errorf("upstream: tools/list: %w", err)
		}
		var result mcp.ListToolsResult
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, fmt.Errorf("upstream: decode tools/list: %w", err)
		}
		caps.Tools = result.Tools
	}

	if initResult.Capabilities.Resources != nil {
		data, err := c.call(ctx, sess, mcp.MethodResourcesList, mcp.ListResourcesParams{})
		if err != nil {
			return nil, fmt.Errorf("upstream: resources/list: %w", err)
		}
		var result mcp.ListResourcesResult
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, fmt.Errorf("upstream: decode resources/list: %w", err)
		}
		caps.Resources = result.Resources
	}

	if initResult.Capabilities.Prompts != nil {
		data, err := c.call(ctx, sess, mcp.MethodPromptsList, mcp.ListPromptsParams{})
		if err != nil {
			return nil, fmt.Errorf("upstream: prompts/list: %w", err)
		}
		var result mcp.ListPromptsResult
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, fmt.Errorf("upstream: decode prompts/list: %w", err)
		}
		caps.Prompts = result.Prompts
	}

	return caps, nil
}

// Capabilities is the discovered capability set of one upstream.
type Capabilities struct {
	Server    mcp.Implementation
	Tools     []mcp.Tool
	Resources []mcp.Resource
	Prompts   []mcp.Prompt
}

// CallTool opens a fresh connection, performs the handshake, invokes
// tools/call, and closes (spec §4.5 dispatch, connection-per-invocation).
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	sess, _, err := c.handshake(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	params := mcp.CallToolParams{Name: name, Arguments: args}
	data, err := c.call(ctx, sess, mcp.MethodToolsCall, params)
	if err != nil {
		return nil, err
	}
	var result mcp.CallToolResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("upstream: decode tools/call result: %w", err)
	}
	return &result, nil
}

// ReadResource opens a fresh connection, performs the handshake, invokes
// resources/read, and closes. meta is forwarded as-is to the upstream (spec
// §4.4: the resource handler forwards the resource's _meta as the
// upstream's ResourceMetadata).
func (c *Client) ReadResource(ctx context.Context, uri string, meta map[string]any) (*mcp.ReadResourceResult, error) {
	sess, _, err := c.handshake(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	params := mcp.ReadResourceParams{Uri: uri, Meta: meta}
	data, err := c.call(ctx, sess, mcp.MethodResourcesRead, params)
	if err != nil {
		return nil, err
	}
	var result mcp.ReadResourceResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("upstream: decode resources/read result: %w", err)
	}
	return &result, nil
}

// GetPrompt opens a fresh connection, performs the handshake, invokes
// prompts/get, and closes.
func (c *Client) GetPrompt(ctx context.Context, name string, args map[string]string) (*mcp.GetPromptResult, error) {
	sess, _, err := c.handshake(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	params := mcp.GetPromptParams{Name: name, Arguments: args}
	data, err := c.call(ctx, sess, mcp.MethodPromptsGet, params)
	if err != nil {
		return nil, err
	}
	var result mcp.GetPromptResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("upstream: decode prompts/get result: %w", err)
	}
	return &result, nil
}

// Ping opens a connection, performs the handshake and closes, used by the
// composer's reconnect loop to probe whether a registered upstream is still
// reachable (spec §4.4).
func (c *Client) Ping(ctx context.Context, timeout time.Duration) error {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	sess, _, err := c.handshake(cctx)
	if err != nil {
		return err
	}
	sess.Close()
	return nil
}

func joinURL(base, path string) string {
	i := strings.Index(base, "://")
	if i < 0 {
		return strings.TrimSuffix(base, "/") + path
	}
	rest := base[i+3:]
	slash := strings.Index(rest, "/")
	if slash < 0 {
		return base + path
	}
	return base[:i+3+slash] + path
}
