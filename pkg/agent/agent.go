// Package agent runs conversations against the upstream model and projects
// the upstream chunk stream into the output event taxonomy. One ChatAgent
// serves one request; the registry of named agents is process-wide and
// read-only.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kadirpekel/mamba/pkg/chat"
	"github.com/kadirpekel/mamba/pkg/llms"
	"github.com/kadirpekel/mamba/pkg/tools"
)

// Provider is the upstream completion surface the agent drives.
type Provider interface {
	Generate(ctx context.Context, model string, messages []llms.Message, tools []llms.ToolDefinition) (string, []llms.ToolCall, int, error)
	GenerateStreaming(ctx context.Context, model string, messages []llms.Message, tools []llms.ToolDefinition) (<-chan llms.StreamChunk, error)
}

// ChatAgent wraps one request's upstream call. It owns the event
// projection: text chunks become text-delta events, finalized tool calls
// become tool-call events followed by the executed tool's result, and the
// completion marker becomes finish.
type ChatAgent struct {
	provider     Provider
	model        string
	systemPrompt string
	tools        *tools.Registry
	streaming    bool
	logger       *slog.Logger
}

// Option configures a ChatAgent.
type Option func(*ChatAgent)

// WithSystemPrompt prepends a system message to every conversation.
func WithSystemPrompt(prompt string) Option {
	return func(a *ChatAgent) {
		a.systemPrompt = prompt
	}
}

// WithTools sets the enabled tool subset.
func WithTools(registry *tools.Registry) Option {
	return func(a *ChatAgent) {
		a.tools = registry
	}
}

// WithStreaming toggles streaming mode. When disabled the agent collects
// the full upstream response and replays it as events.
func WithStreaming(streaming bool) Option {
	return func(a *ChatAgent) {
		a.streaming = streaming
	}
}

// WithLogger sets the agent's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *ChatAgent) {
		a.logger = logger
	}
}

// New creates an agent for a single request.
func New(provider Provider, model string, opts ...Option) *ChatAgent {
	agent := &ChatAgent{
		provider:  provider,
		model:     model,
		streaming: true,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(agent)
	}
	if agent.tools == nil {
		agent.tools = tools.NewRegistry()
	}
	return agent
}

// FromDescriptor builds the agent a descriptor describes, inheriting the
// request's model when the descriptor carries no override.
func FromDescriptor(provider Provider, desc *Descriptor, model string) *ChatAgent {
	if desc.Model != "" {
		model = desc.Model
	}
	return New(provider, model,
		WithSystemPrompt(desc.SystemPrompt),
		WithTools(desc.Tools),
		WithStreaming(desc.Streaming),
	)
}

// Run starts the upstream call and returns the event stream. The upstream
// connection is established before Run returns, so connection-phase
// failures surface here and can still map to an HTTP status. The returned
// channel is unbuffered: the consumer paces upstream reads, and a consumer
// that stops reading must cancel ctx.
func (a *ChatAgent) Run(ctx context.Context, messages []llms.Message) (<-chan chat.StreamEvent, error) {
	conversation := a.conversation(messages)
	defs := a.tools.Definitions()

	if !a.streaming {
		return a.runCollected(ctx, conversation, defs)
	}

	chunks, err := a.provider.GenerateStreaming(ctx, a.model, conversation, defs)
	if err != nil {
		return nil, err
	}

	events := make(chan chat.StreamEvent)
	go a.project(ctx, chunks, events)

	return events, nil
}

// conversation prepends the agent's system prompt, when it has one, to the
// converted message list.
func (a *ChatAgent) conversation(messages []llms.Message) []llms.Message {
	if a.systemPrompt == "" {
		return messages
	}
	conversation := make([]llms.Message, 0, len(messages)+1)
	conversation = append(conversation, llms.Message{Role: llms.RoleSystem, Content: a.systemPrompt})
	return append(conversation, messages...)
}

// project consumes upstream chunks and emits output events until a
// terminal chunk arrives or the consumer goes away. A producer panic is
// converted into a terminal error event rather than tearing down the
// process.
func (a *ChatAgent) project(ctx context.Context, chunks <-chan llms.StreamChunk, events chan<- chat.StreamEvent) {
	defer close(events)

	send := func(event chat.StreamEvent) bool {
		select {
		case events <- event:
			return true
		case <-ctx.Done():
			return false
		}
	}

	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("panic during event projection", "panic", r)
			send(chat.NewError("internal error"))
		}
	}()

	seen := make(map[string]bool)

	for chunk := range chunks {
		switch chunk.Type {
		case llms.ChunkTypeText:
			if chunk.Text == "" {
				continue
			}
			if !send(chat.NewTextDelta(chunk.Text)) {
				return
			}

		case llms.ChunkTypeToolCall:
			if !a.emitToolEvents(ctx, chunk.ToolCall, seen, send) {
				return
			}

		case llms.ChunkTypeDone:
			send(chat.NewFinish())
			return

		case llms.ChunkTypeError:
			send(chat.NewError(errorMessage(chunk.Error)))
			return
		}
	}
}

// runCollected executes the conversation without streaming and replays the
// complete response as events: the full text as one delta, then tool
// events, then finish.
func (a *ChatAgent) runCollected(ctx context.Context, conversation []llms.Message, defs []llms.ToolDefinition) (<-chan chat.StreamEvent, error) {
	text, toolCalls, _, err := a.provider.Generate(ctx, a.model, conversation, defs)
	if err != nil {
		return nil, err
	}

	events := make(chan chat.StreamEvent)

	go func() {
		defer close(events)

		send := func(event chat.StreamEvent) bool {
			select {
			case events <- event:
				return true
			case <-ctx.Done():
				return false
			}
		}

		defer func() {
			if r := recover(); r != nil {
				a.logger.Error("panic during event replay", "panic", r)
				send(chat.NewError("internal error"))
			}
		}()

		if text != "" {
			if !send(chat.NewTextDelta(text)) {
				return
			}
		}

		seen := make(map[string]bool)
		for i := range toolCalls {
			if !a.emitToolEvents(ctx, &toolCalls[i], seen, send) {
				return
			}
		}

		send(chat.NewFinish())
	}()

	return events, nil
}

// emitToolEvents writes the tool-call event for a finalized call and, when
// the tool is registered, executes it and writes the tool-result. A tool
// failure terminates the stream with an error event. The return value
// reports whether the stream may continue.
func (a *ChatAgent) emitToolEvents(ctx context.Context, call *llms.ToolCall, seen map[string]bool, send func(chat.StreamEvent) bool) bool {
	if call == nil {
		return true
	}
	if seen[call.ID] {
		a.logger.Debug("duplicate tool call dropped", "tool_call_id", call.ID)
		return true
	}
	seen[call.ID] = true

	args, err := json.Marshal(call.Args)
	if err != nil {
		send(chat.NewError(fmt.Sprintf("tool %s arguments are not serializable", call.Name)))
		return false
	}

	if !send(chat.NewToolCall(call.ID, call.Name, args)) {
		return false
	}

	tool, registered := a.tools.Get(call.Name)
	if !registered {
		// The model called something we never advertised; there is no
		// handler, so no result follows.
		a.logger.Warn("model called unregistered tool", "tool", call.Name)
		return true
	}

	result, err := tool.Call(ctx, call.Args)
	if err != nil {
		a.logger.Error("tool execution failed", "tool", call.Name, "error", err)
		send(chat.NewError(fmt.Sprintf("tool %s failed: %v", call.Name, err)))
		return false
	}

	payload, err := json.Marshal(result)
	if err != nil {
		send(chat.NewError(fmt.Sprintf("tool %s returned an unserializable result", call.Name)))
		return false
	}

	return send(chat.NewToolResult(call.ID, payload))
}

func errorMessage(err error) string {
	if err == nil {
		return "upstream stream failed"
	}
	return err.Error()
}
