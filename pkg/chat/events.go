package chat

import "encoding/json"

// Stream event types, the closed union written to clients.
const (
	EventTypeTextDelta  = "text-delta"
	EventTypeToolCall   = "tool-call"
	EventTypeToolResult = "tool-result"
	EventTypeFinish     = "finish"
	EventTypeError      = "error"
)

// maxErrorLength bounds user-visible error text. Anything longer is
// internal detail that belongs in logs, not on the wire.
const maxErrorLength = 500

// StreamEvent is one output event. The field order is fixed so that parsing
// an emitted event and re-serializing it reproduces the same bytes; Args and
// Result stay raw for the same reason.
type StreamEvent struct {
	Type       string          `json:"type"`
	TextDelta  string          `json:"textDelta,omitempty"`
	ToolCallID string          `json:"toolCallId,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	Args       json.RawMessage `json:"args,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// NewTextDelta builds a text-delta event.
func NewTextDelta(text string) StreamEvent {
	return StreamEvent{Type: EventTypeTextDelta, TextDelta: text}
}

// NewToolCall builds a tool-call event carrying finalized arguments.
func NewToolCall(toolCallID, toolName string, args json.RawMessage) StreamEvent {
	return StreamEvent{
		Type:       EventTypeToolCall,
		ToolCallID: toolCallID,
		ToolName:   toolName,
		Args:       args,
	}
}

// NewToolResult builds a tool-result event.
func NewToolResult(toolCallID string, result json.RawMessage) StreamEvent {
	return StreamEvent{
		Type:       EventTypeToolResult,
		ToolCallID: toolCallID,
		Result:     result,
	}
}

// NewFinish builds the success terminator.
func NewFinish() StreamEvent {
	return StreamEvent{Type: EventTypeFinish}
}

// NewError builds the failure terminator. The message is truncated to
// maxErrorLength characters.
func NewError(message string) StreamEvent {
	return StreamEvent{Type: EventTypeError, Error: TruncateError(message)}
}

// TruncateError caps an error message, keeping the total length within
// maxErrorLength including the trailing ellipsis.
func TruncateError(message string) string {
	runes := []rune(message)
	if len(runes) <= maxErrorLength {
		return message
	}
	return string(runes[:maxErrorLength-3]) + "..."
}

// IsTerminal reports whether the event ends a stream. Every stream carries
// exactly one terminal event.
func (e StreamEvent) IsTerminal() bool {
	return e.Type == EventTypeFinish || e.Type == EventTypeError
}
