// Package echo implements a minimal upstream MCP server exposing a single
// "echo" tool, used in integration tests and as the reference upstream for
// manual exercising of the aggregator.
package echo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mcgravity/mcgravity/internal/mcp"
)

// Info is the identity this upstream advertises on initialize.
var Info = mcp.Implementation{Name: "echo-upstream", Version: "1.0.0"}

// Tool returns the tool descriptor this upstream advertises.
func Tool() mcp.Tool {
	return mcp.Tool{
		Name:        "echo",
		Description: "Echoes the given message back, prefixed by \"Tool echo: \".",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"message": map[string]any{"type": "string"},
			},
			"required": []any{"message"},
		},
	}
}

// Dispatch implements the JSON-RPC methods this upstream supports: just
// enough of the protocol to satisfy mcgravity's registration pass and a
// single tools/call.
func Dispatch(_ context.Context, req *mcp.Request) *mcp.Response {
	switch req.Method {
	case mcp.MethodInitialize:
		result := mcp.InitializeResult{
			ProtocolVersion: mcp.ProtocolVersion,
			ServerInfo:      Info,
			Capabilities:    mcp.ServerCapabilities{Tools: &mcp.ToolsCapability{}},
		}
		resp, _ := mcp.NewResponse(req.Id, result)
		return resp
	case mcp.MethodPing:
		resp, _ := mcp.NewResponse(req.Id, struct{}{})
		return resp
	case mcp.MethodToolsList:
		resp, _ := mcp.NewResponse(req.Id, mcp.ListToolsResult{Tools: []mcp.Tool{Tool()}})
		return resp
	case mcp.MethodToolsCall:
		return callTool(req)
	default:
		return mcp.NewErrorResponse(req.Id, mcp.NewMethodNotFound(fmt.Sprintf("method %v not found", req.Method), nil))
	}
}

func callTool(req *mcp.Request) *mcp.Response {
	var params mcp.CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return mcp.NewErrorResponse(req.Id, mcp.NewInvalidParamsError(err.Error(), nil))
	}
	if params.Name != "echo" {
		return mcp.NewErrorResponse(req.Id, mcp.NewMethodNotFound(fmt.Sprintf("tool %q not found", params.Name), nil))
	}
	message, _ := params.Arguments["message"].(string)
	result := mcp.CallToolResult{
		Content: []mcp.ContentBlock{{Type: "text", Text: "Tool echo: " + message}},
	}
	resp, _ := mcp.NewResponse(req.Id, result)
	return resp
}
