package rag

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag"
	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag/ask"
	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag/rewrite"
)

type historyTurnPayload struct {
	Query  string `json:"query"`
	Answer string `json:"answer"`
}

type askPayload struct {
	Query          string               `json:"query"`
	ConversationID string               `json:"conversationId"`
	History        []historyTurnPayload `json:"history"`
}

func (p askPayload) toRequest(workspaceID uuid.UUID) (ask.Request, error) {
	var conversationID uuid.UUID
	if p.ConversationID != "" {
		parsed, err := uuid.Parse(p.ConversationID)
		if err != nil {
			return ask.Request{}, fmt.Errorf("invalid conversationId: %w", err)
		}
		conversationID = parsed
	}
	history := make([]rewrite.HistoryTurn, 0, len(p.History))
	for _, turn := range p.History {
		history = append(history, rewrite.HistoryTurn{Query: turn.Query, Answer: turn.Answer})
	}
	return ask.Request{WorkspaceID: workspaceID, ConversationID: conversationID, Query: p.Query, History: history}, nil
}

// AskQuestion runs the full retrieval and answering pipeline and returns
// the complete answer in one response.
func (h *Handler) AskQuestion(w http.ResponseWriter, r *http.Request) {
	workspaceID, err := uuid.Parse(chi.URLParam(r, "workspaceID"))
	if err != nil {
		writeError(w, h.logger, NewHTTPError(http.StatusBadRequest, "invalid_request", "invalid workspace id", err))
		return
	}
	var payload askPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, h.logger, NewHTTPError(http.StatusBadRequest, "invalid_request", "invalid request body", err))
		return
	}
	req, err := payload.toRequest(workspaceID)
	if err != nil {
		writeError(w, h.logger, NewHTTPError(http.StatusBadRequest, "invalid_request", err.Error(), err))
		return
	}
	resp, err := h.ask.Ask(r.Context(), actorFromContext(r.Context()), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

// AskQuestionStream runs the same pipeline but streams the answer to the
// caller as Server-Sent Events, one frame per rag.StreamEvent.
func (h *Handler) AskQuestionStream(w http.ResponseWriter, r *http.Request) {
	workspaceID, err := uuid.Parse(chi.URLParam(r, "workspaceID"))
	if err != nil {
		writeError(w, h.logger, NewHTTPError(http.StatusBadRequest, "invalid_request", "invalid workspace id", err))
		return
	}
	var payload askPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, h.logger, NewHTTPError(http.StatusBadRequest, "invalid_request", "invalid request body", err))
		return
	}
	req, err := payload.toRequest(workspaceID)
	if err != nil {
		writeError(w, h.logger, NewHTTPError(http.StatusBadRequest, "invalid_request", err.Error(), err))
		return
	}
	events, err := h.ask.AskStream(r.Context(), actorFromContext(r.Context()), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, h.logger, NewHTTPError(http.StatusInternalServerError, "internal_error", "streaming unsupported", nil))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for event := range events {
		writeSSEEvent(w, h, event)
		flusher.Flush()
	}
}

func writeSSEEvent(w http.ResponseWriter, h *Handler, event rag.StreamEvent) {
	body := sseBody(event)
	data, err := json.Marshal(body)
	if err != nil {
		h.logger.Error("failed to encode stream event", "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
}

func sseBody(event rag.StreamEvent) map[string]any {
	switch event.Type {
	case rag.StreamEventSources:
		return map[string]any{"sources": event.Sources}
	case rag.StreamEventToken:
		return map[string]any{"token": event.Token}
	case rag.StreamEventError:
		return map[string]any{"message": errMessage(event.Err)}
	default:
		return map[string]any{}
	}
}
