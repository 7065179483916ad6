package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kadirpekel/mamba/pkg/chat"
	"github.com/kadirpekel/mamba/pkg/llms"
	"github.com/kadirpekel/mamba/pkg/tools"
)

// fakeProvider replays a scripted chunk sequence or a collected response.
type fakeProvider struct {
	chunks []llms.StreamChunk
	text   string
	calls  []llms.ToolCall
	err    error

	gotModel    string
	gotMessages []llms.Message
	gotTools    []llms.ToolDefinition
}

func (f *fakeProvider) Generate(ctx context.Context, model string, messages []llms.Message, defs []llms.ToolDefinition) (string, []llms.ToolCall, int, error) {
	f.gotModel, f.gotMessages, f.gotTools = model, messages, defs
	return f.text, f.calls, 0, f.err
}

func (f *fakeProvider) GenerateStreaming(ctx context.Context, model string, messages []llms.Message, defs []llms.ToolDefinition) (<-chan llms.StreamChunk, error) {
	f.gotModel, f.gotMessages, f.gotTools = model, messages, defs
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan llms.StreamChunk)
	go func() {
		defer close(ch)
		for _, chunk := range f.chunks {
			select {
			case ch <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func collect(t *testing.T, events <-chan chat.StreamEvent) []chat.StreamEvent {
	t.Helper()
	var out []chat.StreamEvent
	timeout := time.After(2 * time.Second)
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, event)
		case <-timeout:
			t.Fatal("timed out collecting events")
		}
	}
}

func TestRunStreaming(t *testing.T) {
	tests := []struct {
		name   string
		chunks []llms.StreamChunk
		want   []string // event types in order
	}{
		{
			name: "text then done",
			chunks: []llms.StreamChunk{
				{Type: llms.ChunkTypeText, Text: "He"},
				{Type: llms.ChunkTypeText, Text: "llo"},
				{Type: llms.ChunkTypeDone},
			},
			want: []string{chat.EventTypeTextDelta, chat.EventTypeTextDelta, chat.EventTypeFinish},
		},
		{
			name: "empty text chunks are skipped",
			chunks: []llms.StreamChunk{
				{Type: llms.ChunkTypeText, Text: ""},
				{Type: llms.ChunkTypeText, Text: "hi"},
				{Type: llms.ChunkTypeDone},
			},
			want: []string{chat.EventTypeTextDelta, chat.EventTypeFinish},
		},
		{
			name: "upstream error becomes terminal error event",
			chunks: []llms.StreamChunk{
				{Type: llms.ChunkTypeText, Text: "partial"},
				{Type: llms.ChunkTypeError, Error: errors.New("stream broke")},
			},
			want: []string{chat.EventTypeTextDelta, chat.EventTypeError},
		},
		{
			name: "producer close without terminator ends the channel",
			chunks: []llms.StreamChunk{
				{Type: llms.ChunkTypeText, Text: "cut"},
			},
			want: []string{chat.EventTypeTextDelta},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeProvider{chunks: tt.chunks}
			a := New(provider, "gpt-4o")

			events, err := a.Run(context.Background(), []llms.Message{{Role: llms.RoleUser, Content: "hi"}})
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			got := collect(t, events)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d events, want %d: %+v", len(got), len(tt.want), got)
			}
			for i, wantType := range tt.want {
				if got[i].Type != wantType {
					t.Errorf("event %d type = %s, want %s", i, got[i].Type, wantType)
				}
			}
		})
	}
}

func TestRunConnectionError(t *testing.T) {
	provider := &fakeProvider{err: errors.New("connect refused")}
	a := New(provider, "gpt-4o")

	if _, err := a.Run(context.Background(), nil); err == nil {
		t.Fatal("Run() expected connection error")
	}
}

func TestRunToolCallWithRegisteredTool(t *testing.T) {
	registry, err := tools.NewDisplayRegistry()
	if err != nil {
		t.Fatalf("NewDisplayRegistry() error = %v", err)
	}

	provider := &fakeProvider{chunks: []llms.StreamChunk{
		{Type: llms.ChunkTypeToolCall, ToolCall: &llms.ToolCall{
			ID:   "call_1",
			Name: tools.ToolGenerateCode,
			Args: map[string]interface{}{"language": "go", "code": "package main"},
		}},
		{Type: llms.ChunkTypeDone},
	}}

	a := New(provider, "gpt-4o", WithTools(registry))
	events, err := a.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got := collect(t, events)
	want := []string{chat.EventTypeToolCall, chat.EventTypeToolResult, chat.EventTypeFinish}
	if len(got) != len(want) {
		t.Fatalf("got %d events, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i].Type != want[i] {
			t.Errorf("event %d type = %s, want %s", i, got[i].Type, want[i])
		}
	}
	if got[0].ToolCallID != "call_1" || got[0].ToolName != tools.ToolGenerateCode {
		t.Errorf("tool-call event = %+v", got[0])
	}
	if got[1].ToolCallID != "call_1" || len(got[1].Result) == 0 {
		t.Errorf("tool-result event = %+v", got[1])
	}
}

func TestRunToolCallUnregistered(t *testing.T) {
	// No handler means no result event; the stream continues to finish.
	provider := &fakeProvider{chunks: []llms.StreamChunk{
		{Type: llms.ChunkTypeToolCall, ToolCall: &llms.ToolCall{ID: "call_1", Name: "unknown_tool"}},
		{Type: llms.ChunkTypeDone},
	}}

	a := New(provider, "gpt-4o")
	events, err := a.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got := collect(t, events)
	want := []string{chat.EventTypeToolCall, chat.EventTypeFinish}
	if len(got) != len(want) {
		t.Fatalf("got %d events, want %d: %+v", len(got), len(want), got)
	}
}

func TestRunDuplicateToolCallDropped(t *testing.T) {
	provider := &fakeProvider{chunks: []llms.StreamChunk{
		{Type: llms.ChunkTypeToolCall, ToolCall: &llms.ToolCall{ID: "call_1", Name: "a"}},
		{Type: llms.ChunkTypeToolCall, ToolCall: &llms.ToolCall{ID: "call_1", Name: "a"}},
		{Type: llms.ChunkTypeDone},
	}}

	a := New(provider, "gpt-4o")
	events, err := a.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got := collect(t, events)
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2 (tool-call, finish): %+v", len(got), got)
	}
}

func TestRunToolFailureTerminatesStream(t *testing.T) {
	registry, err := tools.NewDisplayRegistry()
	if err != nil {
		t.Fatalf("NewDisplayRegistry() error = %v", err)
	}

	// Arguments failing validation abort the stream with an error event.
	provider := &fakeProvider{chunks: []llms.StreamChunk{
		{Type: llms.ChunkTypeToolCall, ToolCall: &llms.ToolCall{
			ID:   "call_1",
			Name: tools.ToolGenerateChart,
			Args: map[string]interface{}{"chartType": "scatter"},
		}},
		{Type: llms.ChunkTypeDone},
	}}

	a := New(provider, "gpt-4o", WithTools(registry))
	events, err := a.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got := collect(t, events)
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2: %+v", len(got), got)
	}
	if got[1].Type != chat.EventTypeError {
		t.Errorf("last event type = %s, want error", got[1].Type)
	}
}

func TestRunCollected(t *testing.T) {
	provider := &fakeProvider{text: "full answer"}
	a := New(provider, "gpt-4o", WithStreaming(false))

	events, err := a.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got := collect(t, events)
	want := []string{chat.EventTypeTextDelta, chat.EventTypeFinish}
	if len(got) != len(want) {
		t.Fatalf("got %d events, want %d: %+v", len(got), len(want), got)
	}
	if got[0].TextDelta != "full answer" {
		t.Errorf("text delta = %q, want the full response", got[0].TextDelta)
	}
}

func TestSystemPromptPrepended(t *testing.T) {
	provider := &fakeProvider{chunks: []llms.StreamChunk{{Type: llms.ChunkTypeDone}}}
	a := New(provider, "gpt-4o", WithSystemPrompt("be helpful"))

	events, err := a.Run(context.Background(), []llms.Message{{Role: llms.RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	collect(t, events)

	if len(provider.gotMessages) != 2 {
		t.Fatalf("provider received %d messages, want 2", len(provider.gotMessages))
	}
	if provider.gotMessages[0].Role != llms.RoleSystem || provider.gotMessages[0].Content != "be helpful" {
		t.Errorf("first message = %+v, want the system prompt", provider.gotMessages[0])
	}
}

func TestFromDescriptor(t *testing.T) {
	provider := &fakeProvider{}

	tests := []struct {
		name      string
		desc      *Descriptor
		reqModel  string
		wantModel string
	}{
		{
			name:      "descriptor model wins",
			desc:      &Descriptor{Model: "gpt-4o", Tools: tools.NewRegistry()},
			reqModel:  "gpt-4o-mini",
			wantModel: "gpt-4o",
		},
		{
			name:      "empty descriptor model inherits request",
			desc:      &Descriptor{Tools: tools.NewRegistry()},
			reqModel:  "gpt-4o-mini",
			wantModel: "gpt-4o-mini",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := FromDescriptor(provider, tt.desc, tt.reqModel)
			if a.model != tt.wantModel {
				t.Errorf("model = %q, want %q", a.model, tt.wantModel)
			}
		})
	}
}
