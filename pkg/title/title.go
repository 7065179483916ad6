// Package title generates short conversation titles from the first user
// message. Generation runs the completion API in non-streaming mode; the
// caller is expected to degrade gracefully when it fails.
package title

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kadirpekel/mamba/pkg/agent"
	"github.com/kadirpekel/mamba/pkg/chat"
	"github.com/kadirpekel/mamba/pkg/config"
	"github.com/kadirpekel/mamba/pkg/llms"
)

const titlePrompt = `Generate a concise title (max %d characters) for this conversation based on the user's first message.
The title should:
- Capture the main topic or intent
- Be descriptive but brief
- Not include quotes or special characters
- Be in sentence case

User message: %s

Respond with ONLY the title, nothing else.`

// Service generates titles with a dedicated (typically small) model.
type Service struct {
	provider agent.Provider
	cfg      *config.TitleConfig
	logger   *slog.Logger
}

// NewService creates a title service.
func NewService(provider agent.Provider, cfg *config.TitleConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{provider: provider, cfg: cfg, logger: logger}
}

// Generate produces a cleaned title for the given user message. The call
// is bounded by the configured timeout; any failure is returned to the
// caller, which falls back to a client-side title.
func (s *Service) Generate(ctx context.Context, userMessage string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout())
	defer cancel()

	prompt := fmt.Sprintf(titlePrompt, s.cfg.MaxLength, userMessage)

	a := agent.New(s.provider, chat.ExtractModelName(s.cfg.Model), agent.WithStreaming(false))
	events, err := a.Run(ctx, []llms.Message{{Role: llms.RoleUser, Content: prompt}})
	if err != nil {
		return "", fmt.Errorf("title generation failed: %w", err)
	}

	var text strings.Builder
	for event := range events {
		switch event.Type {
		case chat.EventTypeTextDelta:
			text.WriteString(event.TextDelta)
		case chat.EventTypeError:
			return "", fmt.Errorf("title generation failed: %s", event.Error)
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	return Clean(text.String(), s.cfg.MaxLength), nil
}
