package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/atlasdesk/atlas/internal/model"
	"github.com/atlasdesk/atlas/internal/orchestrator"
	"github.com/atlasdesk/atlas/internal/tools"
)

// defaultConversationID keys the conversation when auth is disabled and
// the client supplies no session id.
const defaultConversationID = "default"

// maxQuestionLength bounds the accepted question size.
const maxQuestionLength = 8_000

// Asker answers one question within a conversation. Implemented by
// orchestrator.Orchestrator.
type Asker interface {
	Ask(ctx context.Context, conversationID, question string, rc tools.RequestContext) (*orchestrator.Result, error)
}

// askRequest is the POST /api/v1/ask payload.
type askRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"sessionId,omitempty"`
}

// askResponse is the success payload: the answer plus the audit trail of
// every tool call made while producing it.
type askResponse struct {
	Answer    string                        `json:"answer"`
	ToolCalls []orchestrator.ToolCallRecord `json:"tool_calls_made"`
}

type askHandler struct {
	asker  Asker
	logger *slog.Logger
}

// ask handles POST /api/v1/ask.
func (h *askHandler) ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be JSON with a question field", h.logger)
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "question must not be empty", h.logger)
		return
	}
	if len(req.Question) > maxQuestionLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "question too long", h.logger)
		return
	}

	ctx := r.Context()
	rc := tools.RequestContextFrom(ctx)
	conversationID := h.conversationID(ctx, req)

	h.logger.Info("processing question",
		"conversation_id", conversationID,
		"request_id", requestIDFromContext(ctx),
		"question_len", len(req.Question))

	result, err := h.asker.Ask(ctx, conversationID, req.Question, rc)
	if err != nil {
		if errors.Is(err, model.ErrModelUnavailable) {
			writeError(w, http.StatusBadGateway, "model_unavailable", "the assistant is temporarily unavailable", h.logger)
			return
		}
		h.logger.Error("question processing failed",
			"conversation_id", conversationID,
			"error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", h.logger)
		return
	}

	resp := askResponse{
		Answer:    result.Answer,
		ToolCalls: result.ToolCalls,
	}
	if resp.ToolCalls == nil {
		resp.ToolCalls = []orchestrator.ToolCallRecord{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// conversationID picks the history key: an explicit session id from the
// client wins, then the authenticated subject, then the shared default.
func (h *askHandler) conversationID(ctx context.Context, req askRequest) string {
	if req.SessionID != "" {
		return req.SessionID
	}
	if p, ok := principalFromContext(ctx); ok && p.Subject != "" {
		return p.Subject
	}
	return defaultConversationID
}
