package llms

// Message roles in a model conversation.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry in a flat, ordered model conversation. Assistant
// entries may carry tool calls; tool entries carry the result for a single
// call, identified by ToolCallID.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	ToolName   string
}

// ToolCall is a model-initiated invocation of a named tool with parsed
// arguments.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]interface{}
}

// ToolDefinition describes a callable tool advertised to the model.
// Parameters is a JSON Schema object.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// Stream chunk types emitted by GenerateStreaming.
const (
	ChunkTypeText     = "text"
	ChunkTypeToolCall = "tool_call"
	ChunkTypeDone     = "done"
	ChunkTypeError    = "error"
)

// StreamChunk is one unit of upstream output. Exactly one of the payload
// fields is set, selected by Type; a "done" or "error" chunk is always the
// last one on the channel.
type StreamChunk struct {
	Type     string
	Text     string
	ToolCall *ToolCall
	Tokens   int
	Error    error
}
