package chat

import (
	"errors"
	"testing"

	"github.com/kadirpekel/mamba/pkg/llms"
)

func textPart(text string) MessagePart {
	return MessagePart{Type: PartTypeText, Text: text}
}

func TestConvertText(t *testing.T) {
	tests := []struct {
		name     string
		messages []UIMessage
		want     []llms.Message
	}{
		{
			name: "single user message",
			messages: []UIMessage{
				{ID: "m1", Role: RoleUser, Parts: []MessagePart{textPart("hello")}},
			},
			want: []llms.Message{
				{Role: llms.RoleUser, Content: "hello"},
			},
		},
		{
			name: "multiple text parts join with newline",
			messages: []UIMessage{
				{ID: "m1", Role: RoleUser, Parts: []MessagePart{textPart("line one"), textPart("line two")}},
			},
			want: []llms.Message{
				{Role: llms.RoleUser, Content: "line one\nline two"},
			},
		},
		{
			name: "system and assistant turns",
			messages: []UIMessage{
				{ID: "m1", Role: RoleSystem, Parts: []MessagePart{textPart("be brief")}},
				{ID: "m2", Role: RoleUser, Parts: []MessagePart{textPart("hi")}},
				{ID: "m3", Role: RoleAssistant, Parts: []MessagePart{textPart("hello")}},
			},
			want: []llms.Message{
				{Role: llms.RoleSystem, Content: "be brief"},
				{Role: llms.RoleUser, Content: "hi"},
				{Role: llms.RoleAssistant, Content: "hello"},
			},
		},
		{
			name: "lifecycle parts are dropped",
			messages: []UIMessage{
				{ID: "m1", Role: RoleAssistant, Parts: []MessagePart{
					{Type: "step-start"},
					textPart("answer"),
					{Type: "reasoning", Text: "thinking aloud"},
				}},
			},
			want: []llms.Message{
				{Role: llms.RoleAssistant, Content: "answer"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Convert(tt.messages)
			if err != nil {
				t.Fatalf("Convert() error = %v", err)
			}
			assertMessages(t, got, tt.want)
		})
	}
}

func TestConvertToolInvocationWithResult(t *testing.T) {
	// An embedded result splits the assistant turn: the call closes its
	// entry so the tool entry can immediately follow.
	messages := []UIMessage{
		{ID: "m1", Role: RoleUser, Parts: []MessagePart{textPart("draw a chart")}},
		{ID: "m2", Role: RoleAssistant, Parts: []MessagePart{
			{
				Type:       PartTypeToolInvocation,
				ToolCallID: "call_1",
				ToolName:   "generate_chart",
				Args:       map[string]interface{}{"kind": "bar"},
				Result:     map[string]interface{}{"ok": true},
			},
			textPart("here it is"),
		}},
	}

	got, err := Convert(messages)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}

	if len(got) != 4 {
		t.Fatalf("Convert() produced %d messages, want 4", len(got))
	}
	if got[1].Role != llms.RoleAssistant || len(got[1].ToolCalls) != 1 {
		t.Errorf("message 1 = %+v, want assistant with one tool call", got[1])
	}
	if got[1].ToolCalls[0].ID != "call_1" || got[1].ToolCalls[0].Name != "generate_chart" {
		t.Errorf("tool call = %+v", got[1].ToolCalls[0])
	}
	if got[2].Role != llms.RoleTool || got[2].ToolCallID != "call_1" {
		t.Errorf("message 2 = %+v, want tool entry for call_1", got[2])
	}
	if got[2].Content != `{"ok":true}` {
		t.Errorf("tool result content = %q", got[2].Content)
	}
	if got[3].Role != llms.RoleAssistant || got[3].Content != "here it is" {
		t.Errorf("message 3 = %+v, want trailing assistant text", got[3])
	}
}

func TestConvertUserToolResult(t *testing.T) {
	// Results relayed on a user turn resolve calls declared on a previous
	// assistant turn.
	messages := []UIMessage{
		{ID: "m1", Role: RoleAssistant, Parts: []MessagePart{
			{Type: PartTypeToolCall, ToolCallID: "call_1", ToolName: "search_notes"},
		}},
		{ID: "m2", Role: RoleUser, Parts: []MessagePart{
			{Type: PartTypeToolResult, ToolCallID: "call_1", Result: "found 3 notes"},
			textPart("summarize them"),
		}},
	}

	got, err := Convert(messages)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("Convert() produced %d messages, want 3", len(got))
	}
	if got[1].Role != llms.RoleTool || got[1].ToolName != "search_notes" {
		t.Errorf("message 1 = %+v, want tool entry named search_notes", got[1])
	}
	if got[2].Role != llms.RoleUser || got[2].Content != "summarize them" {
		t.Errorf("message 2 = %+v, want trailing user text", got[2])
	}
}

func TestConvertInvalid(t *testing.T) {
	tests := []struct {
		name     string
		messages []UIMessage
	}{
		{
			name: "empty parts",
			messages: []UIMessage{
				{ID: "m1", Role: RoleUser, Parts: nil},
			},
		},
		{
			name: "only lifecycle parts",
			messages: []UIMessage{
				{ID: "m1", Role: RoleAssistant, Parts: []MessagePart{{Type: "step-start"}}},
			},
		},
		{
			name: "unknown part type",
			messages: []UIMessage{
				{ID: "m1", Role: RoleUser, Parts: []MessagePart{{Type: "image", Text: "x"}}},
			},
		},
		{
			name: "duplicate toolCallId",
			messages: []UIMessage{
				{ID: "m1", Role: RoleAssistant, Parts: []MessagePart{
					{Type: PartTypeToolCall, ToolCallID: "call_1", ToolName: "a"},
					{Type: PartTypeToolCall, ToolCallID: "call_1", ToolName: "b"},
				}},
			},
		},
		{
			name: "tool call without id",
			messages: []UIMessage{
				{ID: "m1", Role: RoleAssistant, Parts: []MessagePart{
					{Type: PartTypeToolCall, ToolName: "a"},
				}},
			},
		},
		{
			name: "result for unknown call",
			messages: []UIMessage{
				{ID: "m1", Role: RoleUser, Parts: []MessagePart{
					{Type: PartTypeToolResult, ToolCallID: "call_missing", Result: "x"},
				}},
			},
		},
		{
			name: "pending invocation on user turn",
			messages: []UIMessage{
				{ID: "m1", Role: RoleUser, Parts: []MessagePart{
					{Type: PartTypeToolInvocation, ToolCallID: "call_1", ToolName: "a"},
				}},
			},
		},
		{
			name: "tool part in system message",
			messages: []UIMessage{
				{ID: "m1", Role: RoleSystem, Parts: []MessagePart{
					{Type: PartTypeToolCall, ToolCallID: "call_1", ToolName: "a"},
				}},
			},
		},
		{
			name: "duplicate result",
			messages: []UIMessage{
				{ID: "m1", Role: RoleAssistant, Parts: []MessagePart{
					{Type: PartTypeToolCall, ToolCallID: "call_1", ToolName: "a"},
				}},
				{ID: "m2", Role: RoleUser, Parts: []MessagePart{
					{Type: PartTypeToolResult, ToolCallID: "call_1", Result: "x"},
					{Type: PartTypeToolResult, ToolCallID: "call_1", Result: "y"},
				}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Convert(tt.messages)
			if err == nil {
				t.Fatal("Convert() expected error, got nil")
			}
			var invalidErr *InvalidMessageError
			if !errors.As(err, &invalidErr) {
				t.Errorf("Convert() error type = %T, want *InvalidMessageError", err)
			}
		})
	}
}

func assertMessages(t *testing.T, got, want []llms.Message) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d messages, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Role != want[i].Role || got[i].Content != want[i].Content {
			t.Errorf("message %d = {%s %q}, want {%s %q}",
				i, got[i].Role, got[i].Content, want[i].Role, want[i].Content)
		}
	}
}
