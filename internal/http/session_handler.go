package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

type SessionHandler struct {
	sessions Sessions
}

func NewSessionHandler(sessions Sessions) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

type StartSessionRequestDTO struct {
	Token string `json:"token"`
}

type SessionResponseDTO struct {
	SessionID string    `json:"session_id"`
	StartedAt time.Time `json:"started_at"`
}

// Start opens a session for the bearer token in the Authorization header or,
// failing that, in the body.
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	if token == "" && r.Body != nil && r.ContentLength != 0 {
		var req StartSessionRequestDTO
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
		token = req.Token
	}
	if token == "" {
		respondError(w, r, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	s, err := h.sessions.Start(token)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, SessionResponseDTO{SessionID: s.ID, StartedAt: s.StartedAt})
}

func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	s := sessionFromContext(r.Context())
	if err := h.sessions.End(s.ID); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
