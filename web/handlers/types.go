package handlers

import "github.com/tessary/coref/internal/metadata"

// ErrorResponse is the standard error response format for the API.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// TurnRequest is the body for POST /api/turn: one already-completed
// exchange to fold into the session's memory. AssistantMessage may be empty
// when the assistant has not replied yet.
type TurnRequest struct {
	SessionID        string `json:"session_id"`
	UserMessage      string `json:"user_message"`
	AssistantMessage string `json:"assistant_message"`
}

// TurnResponse is the response for POST /api/turn.
type TurnResponse struct {
	SessionID  string               `json:"session_id"`
	Turn       int                  `json:"turn"`
	Summary    string               `json:"summary"`
	Resolution *metadata.Resolution `json:"resolution,omitempty"`
}

// ResolveRequest is the body for POST /api/resolve.
type ResolveRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

// ResolveResponse is the response for POST /api/resolve. Resolution is null
// when the text did not match anything; that is a 200, not an error.
type ResolveResponse struct {
	SessionID  string               `json:"session_id"`
	Resolution *metadata.Resolution `json:"resolution"`
}

// ContextResponse is the response for GET /api/context/{id}.
type ContextResponse struct {
	SessionID string `json:"session_id"`
	Turn      int    `json:"turn"`
	Summary   string `json:"summary"`
}

// ChatRequest is the body for POST /api/chat: the full loop including the
// reply-generation call.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// ChatResponse is the response for POST /api/chat.
type ChatResponse struct {
	SessionID  string               `json:"session_id"`
	Turn       int                  `json:"turn"`
	Reply      string               `json:"reply"`
	Resolution *metadata.Resolution `json:"resolution,omitempty"`
}

// TurnEvent is broadcast to WebSocket listeners after each processed turn,
// so dashboards can follow live conversations.
type TurnEvent struct {
	Type      string `json:"type"` // always "turn_processed"
	SessionID string `json:"session_id"`
	Turn      int    `json:"turn"`
}
