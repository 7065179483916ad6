// Package llms implements the upstream completion client. A single
// OpenAIProvider is shared across requests; the model identifier is chosen
// per call so one provider serves every configured model.
package llms

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/kadirpekel/mamba/pkg/config"
	"github.com/kadirpekel/mamba/pkg/httpclient"
)

type OpenAIRequest struct {
	Model      string          `json:"model"`
	Messages   []OpenAIMessage `json:"messages"`
	Stream     bool            `json:"stream"`
	Tools      []OpenAITool    `json:"tools,omitempty"`
	ToolChoice string          `json:"tool_choice,omitempty"`
}

type OpenAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []OpenAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type OpenAITool struct {
	Type     string             `json:"type"`
	Function OpenAIToolFunction `json:"function"`
}

type OpenAIToolFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type OpenAIToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function OpenAIFunctionCall `json:"function"`
}

type OpenAIFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type OpenAIResponse struct {
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
	Error   *Error   `json:"error,omitempty"`
}

type OpenAIStreamResponse struct {
	Choices []StreamChoice `json:"choices"`
	Usage   *Usage         `json:"usage,omitempty"`
	Error   *Error         `json:"error,omitempty"`
}

type Choice struct {
	Message      OpenAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type StreamChoice struct {
	Delta        Delta  `json:"delta"`
	FinishReason string `json:"finish_reason"`
}

type Delta struct {
	Content   string           `json:"content,omitempty"`
	ToolCalls []OpenAIToolCall `json:"tool_calls,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type Error struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// OpenAIProvider talks to an OpenAI-compatible chat completions API.
type OpenAIProvider struct {
	config     *config.OpenAIConfig
	httpClient *httpclient.Client
	logger     *slog.Logger
}

// NewOpenAIProvider creates a provider from config. The underlying
// http.Client carries no overall timeout: that would cut long streams short.
// The connection phase is bounded by ResponseHeaderTimeout instead, and
// callers bound streams through their context.
func NewOpenAIProvider(cfg *config.OpenAIConfig) *OpenAIProvider {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.Timeout()

	return &OpenAIProvider{
		config: cfg,
		httpClient: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Transport: transport}),
			httpclient.WithMaxAttempts(cfg.MaxRetries),
			httpclient.WithHeaderParser(httpclient.ParseOpenAIHeaders),
		),
		logger: slog.Default(),
	}
}

// DefaultModel returns the configured fallback model identifier.
func (p *OpenAIProvider) DefaultModel() string {
	return p.config.DefaultModel
}

// Generate runs a non-streaming completion and returns the assistant text,
// any tool calls, and total token usage.
func (p *OpenAIProvider) Generate(ctx context.Context, model string, messages []Message, tools []ToolDefinition) (string, []ToolCall, int, error) {
	request := p.buildRequest(model, messages, false, tools)

	response, err := p.makeRequest(ctx, request)
	if err != nil {
		return "", nil, 0, err
	}

	if response.Error != nil {
		return "", nil, 0, fmt.Errorf("OpenAI API error: %s", response.Error.Message)
	}
	if len(response.Choices) == 0 {
		return "", nil, 0, fmt.Errorf("no response choices returned")
	}

	choice := response.Choices[0]
	tokensUsed := response.Usage.TotalTokens

	var toolCalls []ToolCall
	if len(choice.Message.ToolCalls) > 0 {
		toolCalls, err = parseToolCalls(choice.Message.ToolCalls)
		if err != nil {
			return choice.Message.Content, nil, tokensUsed, err
		}
	}

	return choice.Message.Content, toolCalls, tokensUsed, nil
}

// GenerateStreaming runs a streaming completion. The upstream connection is
// established before the channel is returned, so connection-phase failures
// (after retries) surface here rather than in-band. The returned channel is
// unbuffered: the reader only advances when the consumer takes the previous
// chunk, and a consumer that stops reading must cancel ctx.
func (p *OpenAIProvider) GenerateStreaming(ctx context.Context, model string, messages []Message, tools []ToolDefinition) (<-chan StreamChunk, error) {
	request := p.buildRequest(model, messages, true, tools)

	resp, err := p.openStream(ctx, request)
	if err != nil {
		return nil, err
	}

	outputCh := make(chan StreamChunk)

	go func() {
		defer close(outputCh)
		defer resp.Body.Close()

		if err := p.consumeStream(ctx, resp.Body, outputCh); err != nil {
			emit(ctx, outputCh, StreamChunk{Type: ChunkTypeError, Error: err})
		}
	}()

	return outputCh, nil
}

func (p *OpenAIProvider) buildRequest(model string, messages []Message, stream bool, tools []ToolDefinition) OpenAIRequest {
	if model == "" {
		model = p.config.DefaultModel
	}

	request := OpenAIRequest{
		Model:    model,
		Messages: buildMessages(messages),
		Stream:   stream,
	}

	if len(tools) > 0 {
		request.Tools = make([]OpenAITool, len(tools))
		for i, tool := range tools {
			request.Tools[i] = OpenAITool{
				Type: "function",
				Function: OpenAIToolFunction{
					Name:        tool.Name,
					Description: tool.Description,
					Parameters:  tool.Parameters,
				},
			}
		}
		request.ToolChoice = "auto"
	}

	return request
}

func buildMessages(messages []Message) []OpenAIMessage {
	result := make([]OpenAIMessage, len(messages))
	for i, m := range messages {
		wire := OpenAIMessage{Role: m.Role, Content: m.Content}

		switch m.Role {
		case RoleAssistant:
			for _, tc := range m.ToolCalls {
				args, _ := json.Marshal(tc.Args)
				wire.ToolCalls = append(wire.ToolCalls, OpenAIToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: OpenAIFunctionCall{
						Name:      tc.Name,
						Arguments: string(args),
					},
				})
			}
		case RoleTool:
			wire.ToolCallID = m.ToolCallID
		}

		result[i] = wire
	}
	return result
}

func (p *OpenAIProvider) newRequest(ctx context.Context, request OpenAIRequest) (*http.Request, error) {
	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/chat/completions", bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	return req, nil
}

func (p *OpenAIProvider) makeRequest(ctx context.Context, request OpenAIRequest) (*OpenAIResponse, error) {
	req, err := p.newRequest(ctx, request)
	if err != nil {
		return nil, err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, p.upstreamError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var response OpenAIResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &response, nil
}

func (p *OpenAIProvider) openStream(ctx context.Context, request OpenAIRequest) (*http.Response, error) {
	req, err := p.newRequest(ctx, request)
	if err != nil {
		return nil, err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, p.upstreamError(err)
	}

	return resp, nil
}

// upstreamError logs the raw upstream failure and wraps it in a concise
// message. Status information stays in the chain so callers can classify
// the failure.
func (p *OpenAIProvider) upstreamError(err error) error {
	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) && len(statusErr.Body) > 0 {
		if apiErr := parseErrorResponse(statusErr.Body); apiErr != nil {
			p.logger.Error("OpenAI API error",
				"status", statusErr.StatusCode,
				"error_type", apiErr.Type,
				"error_code", apiErr.Code,
				"message", apiErr.Message)
		} else {
			p.logger.Error("OpenAI API error",
				"status", statusErr.StatusCode,
				"body", string(statusErr.Body))
		}
	}
	return fmt.Errorf("completion request failed: %w", err)
}

// consumeStream reads SSE lines from the upstream body and emits chunks.
// Tool-call deltas are accumulated by index until the upstream reports a
// finish reason (or the stream ends), then parsed and emitted in order.
func (p *OpenAIProvider) consumeStream(ctx context.Context, body io.Reader, outputCh chan<- StreamChunk) error {
	reader := bufio.NewReader(body)

	toolCallsMap := make(map[int]*OpenAIToolCall)
	flushed := false
	totalTokens := 0

	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to read stream: %w", err)
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if !bytes.HasPrefix(line, []byte("data: ")) {
			continue
		}
		line = line[6:]

		if bytes.Equal(line, []byte("[DONE]")) {
			break
		}

		var streamResp OpenAIStreamResponse
		if err := json.Unmarshal(line, &streamResp); err != nil {
			// Skip malformed keepalive or comment payloads.
			continue
		}

		if streamResp.Error != nil {
			return fmt.Errorf("OpenAI API error: %s", streamResp.Error.Message)
		}

		if streamResp.Usage != nil {
			totalTokens = streamResp.Usage.TotalTokens
		}

		if len(streamResp.Choices) == 0 {
			continue
		}

		choice := streamResp.Choices[0]

		if choice.Delta.Content != "" {
			if !emit(ctx, outputCh, StreamChunk{Type: ChunkTypeText, Text: choice.Delta.Content}) {
				return ctx.Err()
			}
		}

		for _, deltaCall := range choice.Delta.ToolCalls {
			if deltaCall.ID != "" {
				// A delta with an id opens a new call; later deltas
				// append argument fragments to the most recent one.
				toolCallsMap[len(toolCallsMap)] = &OpenAIToolCall{
					ID:       deltaCall.ID,
					Type:     deltaCall.Type,
					Function: deltaCall.Function,
				}
			} else if len(toolCallsMap) > 0 {
				last := toolCallsMap[len(toolCallsMap)-1]
				last.Function.Arguments += deltaCall.Function.Arguments
			}
		}

		if choice.FinishReason != "" {
			if err := flushToolCalls(ctx, toolCallsMap, outputCh); err != nil {
				return err
			}
			flushed = true
			break
		}
	}

	// Streams that end without a finish reason still flush whatever calls
	// were accumulated.
	if !flushed {
		if err := flushToolCalls(ctx, toolCallsMap, outputCh); err != nil {
			return err
		}
	}

	if !emit(ctx, outputCh, StreamChunk{Type: ChunkTypeDone, Tokens: totalTokens}) {
		return ctx.Err()
	}

	return nil
}

func flushToolCalls(ctx context.Context, toolCallsMap map[int]*OpenAIToolCall, outputCh chan<- StreamChunk) error {
	for i := 0; i < len(toolCallsMap); i++ {
		accumulated, ok := toolCallsMap[i]
		if !ok {
			continue
		}

		toolCall, err := parseToolCall(*accumulated)
		if err != nil {
			return err
		}

		if !emit(ctx, outputCh, StreamChunk{Type: ChunkTypeToolCall, ToolCall: toolCall}) {
			return ctx.Err()
		}
	}
	return nil
}

// parseToolCall validates accumulated arguments. Models occasionally stop
// mid-argument; the partial JSON surfaces as an error rather than an empty
// call. Calls without an id (some compatible backends omit them) get a
// generated one.
func parseToolCall(tc OpenAIToolCall) (*ToolCall, error) {
	args := make(map[string]interface{})
	if raw := strings.TrimSpace(tc.Function.Arguments); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return nil, fmt.Errorf("invalid arguments for tool %q: %w", tc.Function.Name, err)
		}
	}

	id := tc.ID
	if id == "" {
		id = "call_" + uuid.NewString()
	}

	return &ToolCall{ID: id, Name: tc.Function.Name, Args: args}, nil
}

func parseToolCalls(openaiToolCalls []OpenAIToolCall) ([]ToolCall, error) {
	result := make([]ToolCall, len(openaiToolCalls))
	for i, tc := range openaiToolCalls {
		parsed, err := parseToolCall(tc)
		if err != nil {
			return nil, err
		}
		result[i] = *parsed
	}
	return result, nil
}

// parseErrorResponse extracts error information from OpenAI API error bodies.
func parseErrorResponse(body []byte) *Error {
	if len(body) == 0 {
		return nil
	}
	var errorResp struct {
		Error Error `json:"error"`
	}
	if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Error.Message != "" {
		return &errorResp.Error
	}
	return nil
}

// emit sends a chunk unless ctx is done; it reports whether the send
// happened.
func emit(ctx context.Context, ch chan<- StreamChunk, chunk StreamChunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}
