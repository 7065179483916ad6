package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kadirpekel/mamba/pkg/agent"
	"github.com/kadirpekel/mamba/pkg/chat"
)

// handleChat runs one chat completion: parse and validate, pick the agent
// path, convert the conversation, open the stream, and pump events until a
// terminal frame or disconnect. Every failure after the stream opens is an
// in-band error event; HTTP status codes only exist before the first byte.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chat.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeInvalidRequest, "malformed JSON body")
		return
	}

	if err := req.Validate(); err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, CodeValidationError, err.Error())
		return
	}

	converted, err := chat.Convert(req.Messages)
	if err != nil {
		var invalidErr *chat.InvalidMessageError
		if errors.As(err, &invalidErr) {
			writeError(w, r, http.StatusUnprocessableEntity, CodeValidationError, err.Error())
			return
		}
		logError(s.logger, r, "message conversion failed", err)
		writeError(w, r, http.StatusInternalServerError, CodeInternalError, "An unexpected error occurred")
		return
	}

	model := chat.ExtractModelName(req.Model)

	s.logger.Info("chat request",
		"request_id", RequestIDFrom(r.Context()),
		"model", req.Model,
		"messages", len(req.Messages),
		"tools", len(req.Tools),
		"agent", agentName(req.Agent))

	ctx, cancel := context.WithCancel(r.Context())

	var a *agent.ChatAgent
	if name := agentName(req.Agent); name != "" {
		desc, found := s.agents.Get(name)
		if !found {
			// The stream still opens: unknown agent is an in-band error on
			// a 200 response, carrying the available names.
			defer cancel()
			flusher, ok := openSSE(w)
			if !ok {
				return
			}
			msg := fmt.Sprintf("unknown agent '%s'; available: [%s]",
				name, strings.Join(s.agents.Names(), ", "))
			_ = writeSSEEvent(w, flusher, chat.NewError(msg))
			return
		}
		// A named agent overrides prompt, tools, model, and streaming; the
		// client's tool whitelist is ignored.
		a = agent.FromDescriptor(s.provider, desc, model)
	} else {
		a = agent.New(s.provider, model,
			agent.WithTools(s.displayTools.Subset(req.Tools)),
			agent.WithLogger(s.logger))
	}

	events, err := a.Run(ctx, converted)
	if err != nil {
		cancel()
		logError(s.logger, r, "upstream call failed", err)
		status, code, detail := classifyUpstream(err)
		writeError(w, r, status, code, detail)
		return
	}

	streamSSE(w, r, events, s.cfg.Server.StreamTimeout(), cancel, s.logger)
}

// agentName unwraps the request's optional agent field. Absent and
// explicit null both select the default path.
func agentName(agent *string) string {
	if agent == nil {
		return ""
	}
	return *agent
}
