package chat

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kadirpekel/mamba/pkg/llms"
)

// InvalidMessageError reports a message list that cannot be converted into
// the upstream conversation format. It surfaces as a 422 before any stream
// opens.
type InvalidMessageError struct {
	MessageID string
	Reason    string
}

func (e *InvalidMessageError) Error() string {
	if e.MessageID == "" {
		return fmt.Sprintf("invalid message: %s", e.Reason)
	}
	return fmt.Sprintf("invalid message %q: %s", e.MessageID, e.Reason)
}

// converter tracks tool-call declarations across one conversation so that
// ids stay unique and results always resolve a known call.
type converter struct {
	out      []llms.Message
	declared map[string]string // toolCallId -> toolName
	resolved map[string]bool
}

// Convert translates UI messages into the flat ordered conversation the
// completion API consumes. Text parts of one message join with newlines;
// assistant tool invocations become tool calls, with embedded results
// emitted as immediately following tool entries; results relayed on a user
// turn become tool entries directly.
func Convert(messages []UIMessage) ([]llms.Message, error) {
	c := &converter{
		declared: make(map[string]string),
		resolved: make(map[string]bool),
	}

	for i := range messages {
		msg := &messages[i]
		parts := contentParts(msg.Parts)
		if len(parts) == 0 {
			return nil, &InvalidMessageError{MessageID: msg.ID, Reason: "message has no content parts"}
		}

		var err error
		switch msg.Role {
		case RoleSystem:
			err = c.convertSystem(msg, parts)
		case RoleUser:
			err = c.convertUser(msg, parts)
		case RoleAssistant:
			err = c.convertAssistant(msg, parts)
		default:
			err = &InvalidMessageError{MessageID: msg.ID, Reason: fmt.Sprintf("unsupported role %q", msg.Role)}
		}
		if err != nil {
			return nil, err
		}
	}

	return c.out, nil
}

// contentParts drops lifecycle parts before validation.
func contentParts(parts []MessagePart) []MessagePart {
	filtered := make([]MessagePart, 0, len(parts))
	for _, part := range parts {
		if lifecyclePartTypes[part.Type] {
			continue
		}
		filtered = append(filtered, part)
	}
	return filtered
}

// convertSystem folds a system message's text parts into one entry. No
// other part type is allowed on a system turn.
func (c *converter) convertSystem(msg *UIMessage, parts []MessagePart) error {
	texts := make([]string, 0, len(parts))
	for _, part := range parts {
		if part.Type != PartTypeText {
			return &InvalidMessageError{
				MessageID: msg.ID,
				Reason:    fmt.Sprintf("part type %q is not allowed in a system message", part.Type),
			}
		}
		texts = append(texts, part.Text)
	}
	c.out = append(c.out, llms.Message{Role: llms.RoleSystem, Content: strings.Join(texts, "\n")})
	return nil
}

// convertUser handles user turns: text parts join into one user entry, and
// tool results relayed from the UI become tool entries in part order. A
// pending (result-less) tool invocation cannot live on a user turn.
func (c *converter) convertUser(msg *UIMessage, parts []MessagePart) error {
	var texts []string
	flushText := func() {
		if len(texts) == 0 {
			return
		}
		c.out = append(c.out, llms.Message{Role: llms.RoleUser, Content: strings.Join(texts, "\n")})
		texts = nil
	}

	for _, part := range parts {
		switch part.Type {
		case PartTypeText:
			texts = append(texts, part.Text)

		case PartTypeToolInvocation:
			if part.Result == nil {
				return &InvalidMessageError{
					MessageID: msg.ID,
					Reason:    fmt.Sprintf("tool invocation %q in a user message requires a result", part.ToolCallID),
				}
			}
			flushText()
			if err := c.appendToolResult(msg, part); err != nil {
				return err
			}

		case PartTypeToolResult:
			flushText()
			if err := c.appendToolResult(msg, part); err != nil {
				return err
			}

		default:
			return &InvalidMessageError{
				MessageID: msg.ID,
				Reason:    fmt.Sprintf("unsupported part type %q", part.Type),
			}
		}
	}

	flushText()
	return nil
}

// convertAssistant walks parts in order, combining text and tool calls into
// assistant entries. An embedded result closes the current entry so the
// result can immediately follow its call; later parts open a new entry.
func (c *converter) convertAssistant(msg *UIMessage, parts []MessagePart) error {
	var texts []string
	var calls []llms.ToolCall

	flush := func() {
		content := strings.Join(texts, "\n")
		if content == "" && len(calls) == 0 {
			return
		}
		c.out = append(c.out, llms.Message{
			Role:      llms.RoleAssistant,
			Content:   content,
			ToolCalls: calls,
		})
		texts, calls = nil, nil
	}

	for _, part := range parts {
		switch part.Type {
		case PartTypeText:
			texts = append(texts, part.Text)

		case PartTypeToolInvocation, PartTypeToolCall:
			if err := c.declareCall(msg, part); err != nil {
				return err
			}
			calls = append(calls, llms.ToolCall{
				ID:   part.ToolCallID,
				Name: part.ToolName,
				Args: callArgs(part.Args),
			})
			if part.Type == PartTypeToolInvocation && part.Result != nil {
				flush()
				if err := c.appendToolResult(msg, part); err != nil {
					return err
				}
			}

		case PartTypeToolResult:
			flush()
			if err := c.appendToolResult(msg, part); err != nil {
				return err
			}

		default:
			return &InvalidMessageError{
				MessageID: msg.ID,
				Reason:    fmt.Sprintf("unsupported part type %q", part.Type),
			}
		}
	}

	flush()
	return nil
}

// declareCall registers a tool call id, rejecting duplicates across the
// whole conversation.
func (c *converter) declareCall(msg *UIMessage, part MessagePart) error {
	if part.ToolCallID == "" {
		return &InvalidMessageError{MessageID: msg.ID, Reason: "tool call is missing toolCallId"}
	}
	if _, exists := c.declared[part.ToolCallID]; exists {
		return &InvalidMessageError{
			MessageID: msg.ID,
			Reason:    fmt.Sprintf("duplicate toolCallId %q", part.ToolCallID),
		}
	}
	if part.ToolName == "" {
		return &InvalidMessageError{
			MessageID: msg.ID,
			Reason:    fmt.Sprintf("tool call %q is missing toolName", part.ToolCallID),
		}
	}
	c.declared[part.ToolCallID] = part.ToolName
	return nil
}

// appendToolResult emits a tool entry for a result-bearing part. The id
// must refer to a declared, still-unresolved call.
func (c *converter) appendToolResult(msg *UIMessage, part MessagePart) error {
	name, ok := c.declared[part.ToolCallID]
	if !ok {
		return &InvalidMessageError{
			MessageID: msg.ID,
			Reason:    fmt.Sprintf("tool result references unknown call %q", part.ToolCallID),
		}
	}
	if c.resolved[part.ToolCallID] {
		return &InvalidMessageError{
			MessageID: msg.ID,
			Reason:    fmt.Sprintf("duplicate tool result for call %q", part.ToolCallID),
		}
	}
	if part.ToolName != "" {
		name = part.ToolName
	}

	content, err := json.Marshal(part.Result)
	if err != nil {
		return &InvalidMessageError{
			MessageID: msg.ID,
			Reason:    fmt.Sprintf("tool result for %q is not serializable", part.ToolCallID),
		}
	}

	c.resolved[part.ToolCallID] = true
	c.out = append(c.out, llms.Message{
		Role:       llms.RoleTool,
		Content:    string(content),
		ToolCallID: part.ToolCallID,
		ToolName:   name,
	})
	return nil
}

// callArgs normalizes absent arguments (the AI SDK's tool-call form leaves
// them optional) to an empty object.
func callArgs(args map[string]interface{}) map[string]interface{} {
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}
