// Package mcp defines the JSON-RPC 2.0 envelope and the subset of the Model
// Context Protocol schema that mcgravity needs to speak as both a server (to
// downstream clients) and a client (to upstream MCP servers): initialize,
// tools, resources and prompts.
//
// The types here are self-contained rather than imported from an external
// MCP SDK; see DESIGN.md for why.
package mcp
