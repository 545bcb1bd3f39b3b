package api

import (
	"log/slog"
	"net/http"

	"github.com/carelane/carelane/internal/chat"
	"github.com/carelane/carelane/internal/identity"
	"github.com/go-chi/chi/v5"
)

// ChatHandler exposes the health-assistant chat endpoint.
type ChatHandler struct {
	svc *chat.Service
}

// NewChatHandler creates a chat handler.
func NewChatHandler(svc *chat.Service) *ChatHandler {
	return &ChatHandler{svc: svc}
}

// RegisterRoutes registers the chat routes.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/chat", h.Chat)
}

type chatRequest struct {
	Message string `json:"message"`
}

// Chat answers a patient message.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())

	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}
	if req.Message == "" {
		Error(w, http.StatusBadRequest, "message is required")
		return
	}

	reply, err := h.svc.Reply(r.Context(), userID, req.Message)
	if err != nil {
		// A fallback reply was already produced; log the underlying failure.
		slog.Warn("Chat reply degraded to fallback",
			"user_id", userID,
			"session_id", identity.SessionIDFromContext(r.Context()),
			"error", err,
		)
	}

	JSON(w, http.StatusOK, map[string]string{"response": reply})
}
