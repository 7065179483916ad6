package title

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kadirpekel/mamba/pkg/config"
	"github.com/kadirpekel/mamba/pkg/llms"
)

// stubProvider returns a fixed collected response.
type stubProvider struct {
	text      string
	err       error
	gotModel  string
	gotPrompt string
}

func (s *stubProvider) Generate(ctx context.Context, model string, messages []llms.Message, tools []llms.ToolDefinition) (string, []llms.ToolCall, int, error) {
	s.gotModel = model
	if len(messages) > 0 {
		s.gotPrompt = messages[0].Content
	}
	return s.text, nil, 0, s.err
}

func (s *stubProvider) GenerateStreaming(ctx context.Context, model string, messages []llms.Message, tools []llms.ToolDefinition) (<-chan llms.StreamChunk, error) {
	return nil, errors.New("title generation must not stream")
}

func titleConfig() *config.TitleConfig {
	cfg := &config.TitleConfig{Model: "openai/gpt-4o-mini"}
	cfg.SetDefaults()
	return cfg
}

func TestGenerate(t *testing.T) {
	provider := &stubProvider{text: "\"Trip planning for Japan\"\n"}
	svc := NewService(provider, titleConfig(), nil)

	got, err := svc.Generate(context.Background(), "help me plan a trip to Japan")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "Trip planning for Japan" {
		t.Errorf("Generate() = %q", got)
	}

	if provider.gotModel != "gpt-4o-mini" {
		t.Errorf("model = %q, want the provider prefix stripped", provider.gotModel)
	}
	if !strings.Contains(provider.gotPrompt, "help me plan a trip to Japan") {
		t.Errorf("prompt does not embed the user message: %q", provider.gotPrompt)
	}
	if !strings.Contains(provider.gotPrompt, "max 50 characters") {
		t.Errorf("prompt does not carry the length limit: %q", provider.gotPrompt)
	}
}

func TestGenerateTruncates(t *testing.T) {
	provider := &stubProvider{text: strings.Repeat("word ", 30)}
	svc := NewService(provider, titleConfig(), nil)

	got, err := svc.Generate(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len([]rune(got)) > 50 {
		t.Errorf("Generate() = %q, exceeds the configured limit", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("Generate() = %q, want truncation ellipsis", got)
	}
}

func TestGenerateUpstreamFailure(t *testing.T) {
	provider := &stubProvider{err: errors.New("model unavailable")}
	svc := NewService(provider, titleConfig(), nil)

	if _, err := svc.Generate(context.Background(), "anything"); err == nil {
		t.Fatal("Generate() expected error")
	}
}
