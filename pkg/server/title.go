package server

import (
	"encoding/json"
	"net/http"
)

// maxTitleMessageLength bounds the user message accepted by the title
// endpoint.
const maxTitleMessageLength = 10000

// TitleRequest is the body of POST /title/generate.
type TitleRequest struct {
	UserMessage    string `json:"userMessage"`
	ConversationID string `json:"conversationId"`
}

// TitleResponse is the title endpoint's answer. UseFallback tells the
// client to derive its own title when generation failed.
type TitleResponse struct {
	Title       string `json:"title"`
	UseFallback bool   `json:"useFallback"`
}

// handleTitle generates a conversation title. Generation failures and
// timeouts degrade gracefully: the response is still 200, with an empty
// title and the fallback flag set.
func (s *Server) handleTitle(w http.ResponseWriter, r *http.Request) {
	var req TitleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeInvalidRequest, "malformed JSON body")
		return
	}

	if req.UserMessage == "" {
		writeError(w, r, http.StatusUnprocessableEntity, CodeValidationError, "userMessage is required")
		return
	}
	if req.ConversationID == "" {
		writeError(w, r, http.StatusUnprocessableEntity, CodeValidationError, "conversationId is required")
		return
	}
	if len(req.UserMessage) > maxTitleMessageLength {
		writeError(w, r, http.StatusUnprocessableEntity, CodeValidationError, "userMessage is too long")
		return
	}

	generated, err := s.titles.Generate(r.Context(), req.UserMessage)
	if err != nil {
		s.logger.Warn("title generation failed",
			"request_id", RequestIDFrom(r.Context()),
			"conversation_id", req.ConversationID,
			"error", err)
		writeJSON(w, http.StatusOK, TitleResponse{Title: "", UseFallback: true})
		return
	}

	s.logger.Debug("title generated",
		"request_id", RequestIDFrom(r.Context()),
		"conversation_id", req.ConversationID,
		"title", generated)

	writeJSON(w, http.StatusOK, TitleResponse{Title: generated, UseFallback: false})
}
