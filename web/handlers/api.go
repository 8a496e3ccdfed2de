// Package handlers provides the HTTP handlers and middleware for the Coref
// API: turn processing, reference resolution, context retrieval, and the
// full chat loop.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/tessary/coref/internal/llm"
	"github.com/tessary/coref/internal/session"
	"github.com/tessary/coref/internal/storage"
)

// APIHandlers contains the HTTP handlers for the REST API.
type APIHandlers struct {
	sessions  *session.Manager
	generator llm.TextGenerator
	hub       *WebSocketHub
}

// NewAPIHandlers creates an APIHandlers instance. generator and hub are
// optional: without a generator, POST /api/chat responds 503; without a
// hub, no events are broadcast.
func NewAPIHandlers(sessions *session.Manager, generator llm.TextGenerator, hub *WebSocketHub) *APIHandlers {
	return &APIHandlers{
		sessions:  sessions,
		generator: generator,
		hub:       hub,
	}
}

// ProcessTurn handles POST /api/turn: fold one completed exchange into the
// session's memory and return the new context summary.
func (h *APIHandlers) ProcessTurn(w http.ResponseWriter, r *http.Request) {
	var req TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "BAD_REQUEST")
		return
	}
	if req.UserMessage == "" && req.AssistantMessage == "" {
		writeError(w, http.StatusBadRequest, "user_message or assistant_message is required", "BAD_REQUEST")
		return
	}

	result, err := h.sessions.ProcessTurn(r.Context(), req.SessionID, req.UserMessage, req.AssistantMessage)
	if err != nil {
		log.Printf("api: failed to process turn: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to process turn", "INTERNAL")
		return
	}

	h.broadcastTurn(result.SessionID, result.Turn)

	writeJSON(w, http.StatusOK, TurnResponse{
		SessionID:  result.SessionID,
		Turn:       result.Turn,
		Summary:    result.Summary,
		Resolution: result.Resolution,
	})
}

// Resolve handles POST /api/resolve: ground a reference phrase against the
// session's state without advancing the turn.
func (h *APIHandlers) Resolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "BAD_REQUEST")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required", "BAD_REQUEST")
		return
	}

	res, err := h.sessions.Resolve(r.Context(), req.SessionID, req.Text)
	if err != nil {
		log.Printf("api: failed to resolve reference: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to resolve reference", "INTERNAL")
		return
	}

	writeJSON(w, http.StatusOK, ResolveResponse{
		SessionID:  req.SessionID,
		Resolution: res,
	})
}

// GetContext handles GET /api/context/{id}: the session's current turn and
// context summary.
func (h *APIHandlers) GetContext(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session id is required", "BAD_REQUEST")
		return
	}

	summary, err := h.sessions.Summary(r.Context(), sessionID)
	if err != nil {
		log.Printf("api: failed to load context: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load context", "INTERNAL")
		return
	}
	turn, err := h.sessions.Turn(r.Context(), sessionID)
	if err != nil {
		log.Printf("api: failed to load context: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load context", "INTERNAL")
		return
	}

	writeJSON(w, http.StatusOK, ContextResponse{
		SessionID: sessionID,
		Turn:      turn,
		Summary:   summary,
	})
}

// DeleteSession handles DELETE /api/session/{id}: drop the session's
// memory entirely.
func (h *APIHandlers) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session id is required", "BAD_REQUEST")
		return
	}

	if err := h.sessions.Reset(r.Context(), sessionID); err != nil {
		if errors.Is(err, storage.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, "session id is required", "BAD_REQUEST")
			return
		}
		log.Printf("api: failed to delete session: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to delete session", "INTERNAL")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Chat handles POST /api/chat: the full loop. The current context summary
// and any grounded reference are spliced into the prompt, the model
// generates a reply, and the completed exchange is folded back into the
// session's memory.
func (h *APIHandlers) Chat(w http.ResponseWriter, r *http.Request) {
	if h.generator == nil {
		writeError(w, http.StatusServiceUnavailable, "no LLM provider configured", "NO_PROVIDER")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "BAD_REQUEST")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required", "BAD_REQUEST")
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = h.sessions.NewSessionID()
	}

	summary, err := h.sessions.Summary(r.Context(), sessionID)
	if err != nil {
		log.Printf("api: failed to load context for chat: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load context", "INTERNAL")
		return
	}

	// Grounding an ambiguous reference before the model sees the message
	// makes "tell me more about item 2" unambiguous for the prompt.
	prompt := llm.BuildChatPrompt(summary, req.Message)
	if res, err := h.sessions.Resolve(r.Context(), sessionID, req.Message); err == nil && res != nil {
		prompt = llm.BuildChatPrompt(
			summary+fmt.Sprintf("\nThe customer is referring to: %s\n", res.Value),
			req.Message,
		)
	}

	reply, err := h.generator.Complete(r.Context(), prompt)
	if err != nil {
		if errors.Is(err, llm.ErrCircuitOpen) {
			writeError(w, http.StatusServiceUnavailable, "LLM temporarily unavailable", "LLM_UNAVAILABLE")
			return
		}
		log.Printf("api: reply generation failed: %v", err)
		writeError(w, http.StatusBadGateway, "reply generation failed", "LLM_ERROR")
		return
	}

	result, err := h.sessions.ProcessTurn(r.Context(), sessionID, req.Message, reply)
	if err != nil {
		log.Printf("api: failed to record turn: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to record turn", "INTERNAL")
		return
	}

	h.broadcastTurn(result.SessionID, result.Turn)

	writeJSON(w, http.StatusOK, ChatResponse{
		SessionID:  result.SessionID,
		Turn:       result.Turn,
		Reply:      reply,
		Resolution: result.Resolution,
	})
}

// Health handles GET /healthz.
func (h *APIHandlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *APIHandlers) broadcastTurn(sessionID string, turn int) {
	if h.hub == nil {
		return
	}
	h.hub.Broadcast(TurnEvent{
		Type:      "turn_processed",
		SessionID: sessionID,
		Turn:      turn,
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: failed to encode response: %v", err)
	}
}

// writeError writes a standard error response.
func writeError(w http.ResponseWriter, status int, msg, code string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code})
}
