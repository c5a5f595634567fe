// Package composer implements the capability composer and JSON-RPC
// dispatcher (spec component C4): it runs the registration/reconnect loop
// for every configured upstream, installs proxy handlers for each
// discovered tool/resource/prompt, and routes inbound aggregator requests
// to whichever upstream currently owns the requested capability.
package composer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/mcgravity/mcgravity/internal/collection"
	"github.com/mcgravity/mcgravity/internal/mcp"
	"github.com/mcgravity/mcgravity/internal/schemaconv"
	"github.com/mcgravity/mcgravity/registry"
	"github.com/mcgravity/mcgravity/upstream"
)

// ReconnectInterval is the fixed interval the spec mandates between
// registration attempts against an unreachable upstream (spec §4.4).
const ReconnectInterval = 10 * time.Second

// Composer owns the aggregated capability indexes and dispatches JSON-RPC
// requests from downstream sessions to upstream servers.
type Composer struct {
	Info mcp.Implementation

	registry   *registry.Registry
	httpClient *http.Client
	log        zerolog.Logger

	reconnectInterval time.Duration

	toolOwners     *collection.SyncMap[string, string]
	toolDescs      *collection.SyncMap[string, mcp.Tool]
	toolValidators *collection.SyncMap[string, *schemaconv.Validator]
	resourceOwners *collection.SyncMap[string, string]
	resourceDescs  *collection.SyncMap[string, mcp.Resource]
	promptOwners   *collection.SyncMap[string, string]
	promptDescs    *collection.SyncMap[string, mcp.Prompt]

	subscribers *collection.SyncMap[string, *logSubscriber]
}

// logSubscriber is one downstream session's logging/setLevel threshold and
// its delivery callback, adapted from the teacher's per-logger notifier
// (server/logger.go) onto mcgravity's per-session transports.
type logSubscriber struct {
	level mcp.LoggingLevel
	send  func(*mcp.Notification)
}

type sessionIDKeyType struct{}

var sessionIDKey = sessionIDKeyType{}

// WithSessionID attaches the downstream session id a dispatched request
// arrived on, so handlers like logging/setLevel can find their subscriber.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

func sessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDKey).(string)
	return id, ok && id != ""
}

// New creates a Composer backed by reg. info is the identity the composer
// advertises to downstream clients on initialize.
func New(info mcp.Implementation, reg *registry.Registry, log zerolog.Logger) *Composer {
	return &Composer{
		Info:              info,
		registry:          reg,
		httpClient:        &http.Client{},
		log:               log,
		reconnectInterval: ReconnectInterval,
		toolOwners:        collection.NewSyncMap[string, string](),
		toolDescs:         collection.NewSyncMap[string, mcp.Tool](),
		toolValidators:    collection.NewSyncMap[string, *schemaconv.Validator](),
		resourceOwners:    collection.NewSyncMap[string, string](),
		resourceDescs:     collection.NewSyncMap[string, mcp.Resource](),
		promptOwners:      collection.NewSyncMap[string, string](),
		promptDescs:       collection.NewSyncMap[string, mcp.Prompt](),
		subscribers:       collection.NewSyncMap[string, *logSubscriber](),
	}
}

// Subscribe registers a downstream session to receive notifications/message
// pushes, defaulting its threshold to info until the client raises or lowers
// it with logging/setLevel.
func (c *Composer) Subscribe(sessionID string, send func(*mcp.Notification)) {
	c.subscribers.Put(sessionID, &logSubscriber{level: mcp.LoggingLevelInfo, send: send})
}

// Unsubscribe drops a session's log subscription, called as its transport
// closes.
func (c *Composer) Unsubscribe(sessionID string) {
	c.subscribers.Delete(sessionID)
}

// broadcastLog pushes a notifications/message frame to every subscriber
// whose threshold admits level, mirroring server/logger.go's ordinal gate.
func (c *Composer) broadcastLog(level mcp.LoggingLevel, logger string, message string) {
	note, err := mcp.NewNotification(mcp.MethodNotificationMessage, mcp.LoggingMessageParams{
		Level:  level,
		Logger: logger,
		Data:   message,
	})
	if err != nil {
		c.log.Error().Err(err).Msg("failed to build log notification")
		return
	}
	c.subscribers.Range(func(_ string, sub *logSubscriber) bool {
		if level.Ordinal() >= sub.level.Ordinal() {
			sub.send(note)
		}
		return true
	})
}

// RegisterUpstream starts the registration loop for one upstream URL. Per
// spec §3, an UpstreamHandle is only inserted into the Capability Registry
// on successful registration — a not-yet-connected or failed upstream never
// appears in the registry, so /api/list-targets stays empty until an
// upstream actually connects (spec §8 scenario 5). It blocks until the
// first attempt (success or failure) completes. Then, on the fixed interval
// in a background goroutine until ctx is cancelled, it retries registration
// while the upstream is absent from the registry, and probes it while it is
// present, removing the registry entry when the probe fails.
func (c *Composer) RegisterUpstream(ctx context.Context, url string, desc registry.Descriptor) {
	key := desc.Key()
	c.attemptRegister(ctx, key, desc)

	go func() {
		ticker := time.NewTicker(c.reconnectInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := c.registry.Get(key); err == nil {
					if pingErr := c.probe(ctx, desc.URL); pingErr == nil {
						continue
					}
					c.log.Warn().Str("upstream", key).Msg("upstream unreachable, removing registry entry")
					c.registry.Remove(key)
					c.broadcastLog(mcp.LoggingLevelWarning, "composer", fmt.Sprintf("upstream %q unreachable, removing registry entry", key))
					continue
				}
				c.attemptRegister(ctx, key, desc)
			}
		}
	}()
}

func (c *Composer) probe(ctx context.Context, url string) error {
	cl := upstream.New(url, c.httpClient)
	return cl.Ping(ctx, 5*time.Second)
}

func (c *Composer) attemptRegister(ctx context.Context, key string, desc registry.Descriptor) {
	cl := upstream.New(desc.URL, c.httpClient)
	cl.ClientName = c.Info.Name
	cl.ClientVersion = c.Info.Version

	caps, err := cl.Discover(ctx)
	if err != nil {
		c.log.Warn().Str("upstream", key).Err(err).Msg("upstream registration failed, will retry")
		c.broadcastLog(mcp.LoggingLevelWarning, "composer", fmt.Sprintf("upstream %q registration failed: %s", key, err.Error()))
		return
	}

	c.install(key, caps)
	c.registry.Put(key, registry.Entry{
		Descriptor:    desc,
		State:         registry.StateRegistered,
		ToolCount:     len(caps.Tools),
		ResourceCount: len(caps.Resources),
		PromptCount:   len(caps.Prompts),
	})
	c.log.Info().Str("upstream", key).
		Int("tools", len(caps.Tools)).Int("resources", len(caps.Resources)).Int("prompts", len(caps.Prompts)).
		Msg("upstream registered")
	c.broadcastLog(mcp.LoggingLevelInfo, "composer", fmt.Sprintf("upstream %q registered with %d tools, %d resources, %d prompts", key, len(caps.Tools), len(caps.Resources), len(caps.Prompts)))
}

// install records every capability an upstream advertised, overwriting any
// prior owner of the same name (spec §4.4 last-writer-wins collision
// policy). Collisions are logged at warn level but never rejected.
func (c *Composer) install(key string, caps *upstream.Capabilities) {
	for _, tool := range caps.Tools {
		if prev, ok := c.toolOwners.Get(tool.Name); ok && prev != key {
			c.log.Warn().Str("tool", tool.Name).Str("previousOwner", prev).Str("newOwner", key).Msg("tool name collision, last writer wins")
		}
		c.toolOwners.Put(tool.Name, key)
		c.toolDescs.Put(tool.Name, tool)
		c.toolValidators.Put(tool.Name, schemaconv.Convert(tool.InputSchema))
	}
	for _, res := range caps.Resources {
		if prev, ok := c.resourceOwners.Get(res.Uri); ok && prev != key {
			c.log.Warn().Str("resource", res.Uri).Str("previousOwner", prev).Str("newOwner", key).Msg("resource uri collision, last writer wins")
		}
		c.resourceOwners.Put(res.Uri, key)
		c.resourceDescs.Put(res.Uri, res)
	}
	for _, prompt := range caps.Prompts {
		if prev, ok := c.promptOwners.Get(prompt.Name); ok && prev != key {
			c.log.Warn().Str("prompt", prompt.Name).Str("previousOwner", prev).Str("newOwner", key).Msg("prompt name collision, last writer wins")
		}
		c.promptOwners.Put(prompt.Name, key)
		c.promptDescs.Put(prompt.Name, prompt)
	}
}

// ListTargets returns a snapshot for GET /api/list-targets.
func (c *Composer) ListTargets() []registry.ListTarget {
	entries := c.registry.List()
	out := make([]registry.ListTarget, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.MarshalListTarget())
	}
	return out
}

// errClientNotFound marks a capability whose owning upstream is no longer
// in the registry (spec §13: handlers stay installed, registry entry does
// not — dispatch fails per-call rather than uninstalling the handler).
type errClientNotFound struct {
	upstreamKey string
}

func (e *errClientNotFound) Error() string {
	return fmt.Sprintf("ClientNotFound: upstream %q is not currently connected", e.upstreamKey)
}

func (c *Composer) resolveUpstream(key string) (registry.Entry, error) {
	entry, err := c.registry.Get(key)
	if err != nil {
		return registry.Entry{}, &errClientNotFound{upstreamKey: key}
	}
	return entry, nil
}

// Dispatch routes one JSON-RPC request and returns the response to send
// back over the originating transport (spec §4.1/§4.5).
func (c *Composer) Dispatch(ctx context.Context, req *mcp.Request) *mcp.Response {
	result, rpcErr := c.handle(ctx, req)
	if rpcErr != nil {
		return mcp.NewErrorResponse(req.Id, rpcErr)
	}
	resp, err := mcp.NewResponse(req.Id, result)
	if err != nil {
		return mcp.NewErrorResponse(req.Id, mcp.NewInternalError(err.Error(), nil))
	}
	return resp
}

func (c *Composer) handle(ctx context.Context, req *mcp.Request) (any, *mcp.Error) {
	switch req.Method {
	case mcp.MethodInitialize:
		return c.handleInitialize(req)
	case mcp.MethodPing:
		return struct{}{}, nil
	case mcp.MethodToolsList:
		return c.handleListTools(), nil
	case mcp.MethodToolsCall:
		return c.handleCallTool(ctx, req)
	case mcp.MethodResourcesList:
		return c.handleListResources(), nil
	case mcp.MethodResourcesRead:
		return c.handleReadResource(ctx, req)
	case mcp.MethodPromptsList:
		return c.handleListPrompts(), nil
	case mcp.MethodPromptsGet:
		return c.handleGetPrompt(ctx, req)
	case mcp.MethodLoggingSetLevel:
		return c.handleSetLevel(ctx, req)
	default:
		return nil, mcp.NewMethodNotFound(fmt.Sprintf("method %v not found", req.Method), nil)
	}
}

func (c *Composer) handleInitialize(req *mcp.Request) (*mcp.InitializeResult, *mcp.Error) {
	var params mcp.InitializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, mcp.NewInvalidParamsError(err.Error(), nil)
		}
	}
	return &mcp.InitializeResult{
		ProtocolVersion: mcp.ProtocolVersion,
		ServerInfo:      c.Info,
		Capabilities: mcp.ServerCapabilities{
			Tools:     &mcp.ToolsCapability{},
			Resources: &mcp.ResourcesCapability{},
			Prompts:   &mcp.PromptsCapability{},
			Logging:   &struct{}{},
		},
	}, nil
}

// handleSetLevel adjusts the calling session's notifications/message
// threshold, adapted from server/logger.go's ordinal-filtered Logger onto a
// per-session subscriber rather than a per-server-instance one.
func (c *Composer) handleSetLevel(ctx context.Context, req *mcp.Request) (*struct{}, *mcp.Error) {
	var params mcp.SetLevelParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, mcp.NewInvalidParamsError(err.Error(), nil)
	}
	sessionID, ok := sessionIDFromContext(ctx)
	if !ok {
		return nil, mcp.NewInternalError("no session bound to this request", nil)
	}
	sub, ok := c.subscribers.Get(sessionID)
	if !ok {
		return nil, mcp.NewInternalError("session is not subscribed to logging", nil)
	}
	sub.level = params.Level
	c.subscribers.Put(sessionID, sub)
	return &struct{}{}, nil
}

func (c *Composer) handleListTools() *mcp.ListToolsResult {
	tools := make([]mcp.Tool, 0, c.toolDescs.Len())
	c.toolDescs.Range(func(_ string, tool mcp.Tool) bool {
		tools = append(tools, tool)
		return true
	})
	return &mcp.ListToolsResult{Tools: tools}
}

func (c *Composer) handleListResources() *mcp.ListResourcesResult {
	resources := make([]mcp.Resource, 0, c.resourceDescs.Len())
	c.resourceDescs.Range(func(_ string, res mcp.Resource) bool {
		resources = append(resources, res)
		return true
	})
	return &mcp.ListResourcesResult{Resources: resources}
}

func (c *Composer) handleListPrompts() *mcp.ListPromptsResult {
	prompts := make([]mcp.Prompt, 0, c.promptDescs.Len())
	c.promptDescs.Range(func(_ string, p mcp.Prompt) bool {
		prompts = append(prompts, p)
		return true
	})
	return &mcp.ListPromptsResult{Prompts: prompts}
}

func (c *Composer) handleCallTool(ctx context.Context, req *mcp.Request) (*mcp.CallToolResult, *mcp.Error) {
	var params mcp.CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, mcp.NewInvalidParamsError(err.Error(), nil)
	}

	key, ok := c.toolOwners.Get(params.Name)
	if !ok {
		return nil, mcp.NewMethodNotFound(fmt.Sprintf("tool %q not found", params.Name), nil)
	}
	entry, err := c.resolveUpstream(key)
	if err != nil {
		return nil, mcp.NewInternalError(err.Error(), nil)
	}

	if validator, ok := c.toolValidators.Get(params.Name); ok && params.Arguments != nil {
		if shapeErr := validator.Check(params.Arguments); shapeErr != nil {
			c.log.Debug().Str("tool", params.Name).Err(shapeErr).Msg("argument shape mismatch, forwarding anyway")
		}
	}

	cl := upstream.New(entry.Descriptor.URL, c.httpClient)
	cl.ClientName, cl.ClientVersion = c.Info.Name, c.Info.Version
	result, callErr := cl.CallTool(ctx, params.Name, params.Arguments)
	if callErr != nil {
		return nil, mcp.NewInternalError(callErr.Error(), nil)
	}
	return result, nil
}

func (c *Composer) handleReadResource(ctx context.Context, req *mcp.Request) (*mcp.ReadResourceResult, *mcp.Error) {
	var params mcp.ReadResourceParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, mcp.NewInvalidParamsError(err.Error(), nil)
	}

	key, ok := c.resourceOwners.Get(params.Uri)
	if !ok {
		return nil, mcp.NewMethodNotFound(fmt.Sprintf("resource %q not found", params.Uri), nil)
	}
	entry, err := c.resolveUpstream(key)
	if err != nil {
		return nil, mcp.NewInternalError(err.Error(), nil)
	}

	cl := upstream.New(entry.Descriptor.URL, c.httpClient)
	cl.ClientName, cl.ClientVersion = c.Info.Name, c.Info.Version
	result, readErr := cl.ReadResource(ctx, params.Uri, params.Meta)
	if readErr != nil {
		return nil, mcp.NewInternalError(readErr.Error(), nil)
	}
	return result, nil
}

func (c *Composer) handleGetPrompt(ctx context.Context, req *mcp.Request) (*mcp.GetPromptResult, *mcp.Error) {
	var params mcp.GetPromptParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, mcp.NewInvalidParamsError(err.Error(), nil)
	}

	key, ok := c.promptOwners.Get(params.Name)
	if !ok {
		return nil, mcp.NewMethodNotFound(fmt.Sprintf("prompt %q not found", params.Name), nil)
	}
	entry, err := c.resolveUpstream(key)
	if err != nil {
		return nil, mcp.NewInternalError(err.Error(), nil)
	}

	cl := upstream.New(entry.Descriptor.URL, c.httpClient)
	cl.ClientName, cl.ClientVersion = c.Info.Name, c.Info.Version
	result, getErr := cl.GetPrompt(ctx, params.Name, params.Arguments)
	if getErr != nil {
		return nil, mcp.NewInternalError(getErr.Error(), nil)
	}
	return result, nil
}

// HandleNotification processes an inbound notification from a downstream
// session. mcgravity has no per-session state tied to "initialized", so
// this is presently a no-op placeholder for future session bookkeeping.
func (c *Composer) HandleNotification(_ context.Context, _ *mcp.Notification) {}
