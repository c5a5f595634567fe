package mcp

// JSON-RPC method names used by the Model Context Protocol, mirroring the
// schema.MethodXxx constants of the upstream MCP protocol packages.
const (
	MethodInitialize             = "initialize"
	MethodPing                   = "ping"
	MethodResourcesList          = "resources/list"
	MethodResourcesTemplatesList = "resources/templates/list"
	MethodResourcesRead          = "resources/read"
	MethodSubscribe              = "resources/subscribe"
	MethodUnsubscribe            = "resources/unsubscribe"
	MethodPromptsList            = "prompts/list"
	MethodPromptsGet             = "prompts/get"
	MethodToolsList              = "tools/list"
	MethodToolsCall              = "tools/call"
	MethodComplete               = "completion/complete"
	MethodLoggingSetLevel        = "logging/setLevel"

	MethodNotificationInitialized = "notifications/initialized"
	MethodNotificationCancel      = "notifications/cancelled"
	MethodNotificationMessage     = "notifications/message"
)
