// Package registry implements the capability registry (spec component C3):
// the mapping from an upstream key to the descriptor of the upstream that
// advertised it. The registry never holds live connections, only
// descriptors — dispatch re-opens an upstream client per invocation (see
// package upstream).
package registry

import (
	"fmt"

	"github.com/mcgravity/mcgravity/internal/collection"
)

// RegistrationState is the lifecycle state of an UpstreamHandle.
type RegistrationState string

const (
	StatePending    RegistrationState = "pending"
	StateRegistered RegistrationState = "registered"
	StateFailed     RegistrationState = "failed"
)

// Descriptor describes one upstream MCP server.
type Descriptor struct {
	URL         string   `json:"url"`
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Key returns the stringified URL used as the registry key, per spec §4.3.
func (d Descriptor) Key() string {
	return d.URL
}

// Entry is what the registry stores and what /api/list-targets reports:
// the descriptor plus its current registration state (spec §3
// UpstreamHandle, flattened for external reporting). Counts are filled in
// by the composer once a registration pass completes.
type Entry struct {
	Descriptor    Descriptor        `json:"descriptor"`
	State         RegistrationState `json:"registered"`
	LastError     string            `json:"lastError,omitempty"`
	ToolCount     int               `json:"toolCount"`
	ResourceCount int               `json:"resourceCount"`
	PromptCount   int               `json:"promptCount"`
}

func (e Entry) MarshalListTarget() ListTarget {
	return ListTarget{
		URL:           e.Descriptor.URL,
		Name:          e.Descriptor.Name,
		Version:       e.Descriptor.Version,
		Description:   e.Descriptor.Description,
		Tags:          e.Descriptor.Tags,
		Registered:    string(e.State),
		LastError:     e.LastError,
		ToolCount:     e.ToolCount,
		ResourceCount: e.ResourceCount,
		PromptCount:   e.PromptCount,
	}
}

// ListTarget is the flattened JSON shape returned by GET /api/list-targets.
type ListTarget struct {
	URL           string   `json:"url"`
	Name          string   `json:"name"`
	Version       string   `json:"version"`
	Description   string   `json:"description,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Registered    string   `json:"registered"`
	LastError     string   `json:"lastError,omitempty"`
	ToolCount     int      `json:"toolCount"`
	ResourceCount int      `json:"resourceCount"`
	PromptCount   int      `json:"promptCount"`
}

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = fmt.Errorf("upstream not found in registry")

// Registry is the concurrency-safe upstreamKey -> Entry map.
type Registry struct {
	entries *collection.SyncMap[string, Entry]
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{entries: collection.NewSyncMap[string, Entry]()}
}

// Put inserts or replaces the entry for upstreamKey. Last writer wins,
// silently, per spec §4.4 collision policy.
func (r *Registry) Put(upstreamKey string, entry Entry) {
	r.entries.Put(upstreamKey, entry)
}

// Get returns the entry for upstreamKey, or ErrNotFound.
func (r *Registry) Get(upstreamKey string) (Entry, error) {
	entry, ok := r.entries.Get(upstreamKey)
	if !ok {
		return Entry{}, ErrNotFound
	}
	return entry, nil
}

// Remove deletes the entry for upstreamKey. Used on permanent upstream loss
// (spec §4.4 reconnect policy removes the descriptor while leaving
// installed capability handlers in place).
func (r *Registry) Remove(upstreamKey string) {
	r.entries.Delete(upstreamKey)
}

// List returns a snapshot of all entries, for GET /api/list-targets.
func (r *Registry) List() []Entry {
	return r.entries.Values()
}
