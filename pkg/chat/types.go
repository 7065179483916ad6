// Package chat defines the client-facing message model, its conversion to
// the flat conversation format the completion API consumes, and the output
// event taxonomy written to clients.
package chat

import (
	"fmt"
	"strings"
)

// Message roles accepted from clients.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message part types understood by the converter. The tool-call and
// tool-result forms are the AI SDK's split representation of a
// tool-invocation and are accepted interchangeably.
const (
	PartTypeText           = "text"
	PartTypeToolInvocation = "tool-invocation"
	PartTypeToolCall       = "tool-call"
	PartTypeToolResult     = "tool-result"
)

// Lifecycle part types the AI SDK attaches for UI rendering (step
// boundaries, reasoning traces, sources). They carry no conversation
// content and are dropped before validation.
var lifecyclePartTypes = map[string]bool{
	"step-start": true,
	"reasoning":  true,
	"source-url": true,
}

// MessagePart is one element of a UIMessage. Type selects which of the
// remaining fields are meaningful: text parts carry Text, tool parts carry
// the call id, name, arguments, and optionally an embedded result.
type MessagePart struct {
	Type       string                 `json:"type"`
	Text       string                 `json:"text,omitempty"`
	ToolCallID string                 `json:"toolCallId,omitempty"`
	ToolName   string                 `json:"toolName,omitempty"`
	Args       map[string]interface{} `json:"args,omitempty"`
	Result     interface{}            `json:"result,omitempty"`
}

// UIMessage is a client-side message composed of ordered typed parts.
type UIMessage struct {
	ID    string        `json:"id"`
	Role  string        `json:"role"`
	Parts []MessagePart `json:"parts"`
}

// ChatRequest is the body of POST /chat. Agent distinguishes absent from
// explicit null; both select the default chat path.
type ChatRequest struct {
	Messages []UIMessage `json:"messages"`
	Model    string      `json:"model"`
	Tools    []string    `json:"tools,omitempty"`
	Agent    *string     `json:"agent,omitempty"`
}

// Validate checks the request schema ahead of conversion.
func (r *ChatRequest) Validate() error {
	if len(r.Messages) == 0 {
		return fmt.Errorf("messages must not be empty")
	}
	if r.Model == "" {
		return fmt.Errorf("model is required")
	}
	for _, msg := range r.Messages {
		switch msg.Role {
		case RoleUser, RoleAssistant, RoleSystem:
		default:
			return fmt.Errorf("message %q has unsupported role %q", msg.ID, msg.Role)
		}
	}
	return nil
}

// ExtractModelName strips a provider prefix from a model identifier:
// "openai/gpt-4o" becomes "gpt-4o". Identifiers without a prefix pass
// through unchanged.
func ExtractModelName(model string) string {
	if _, name, found := strings.Cut(model, "/"); found && name != "" {
		return name
	}
	return model
}
