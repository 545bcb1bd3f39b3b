package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/carelane/carelane/internal/domain"
	"github.com/carelane/carelane/internal/identity"
	"github.com/carelane/carelane/internal/store"
	"github.com/go-chi/chi/v5"
)

// ProfileHandler serves the onboarding profile and the call history view.
type ProfileHandler struct {
	repo         store.Repository
	historyLimit int
}

// NewProfileHandler creates a profile handler.
func NewProfileHandler(repo store.Repository, historyLimit int) *ProfileHandler {
	if historyLimit <= 0 {
		historyLimit = 20
	}
	return &ProfileHandler{repo: repo, historyLimit: historyLimit}
}

// RegisterRoutes registers the profile and history routes.
func (h *ProfileHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/profile", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Post("/", h.Update)
	})
	r.Get("/api/call/history", h.History)
}

// Get returns the caller's profile.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())

	user, err := h.repo.GetUser(r.Context(), userID)
	if err != nil || user == nil {
		slog.Error("Failed to load profile", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	JSON(w, http.StatusOK, user)
}

type profileUpdateRequest struct {
	FullName        string `json:"full_name"`
	DateOfBirth     string `json:"date_of_birth"`
	Conditions      string `json:"conditions"`
	PreferredClinic string `json:"preferred_clinic"`
}

// Update stores the onboarding form fields.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())

	var req profileUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	user, err := h.repo.GetUser(r.Context(), userID)
	if err != nil || user == nil {
		slog.Error("Failed to load profile for update", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	user.FullName = req.FullName
	user.DateOfBirth = req.DateOfBirth
	user.Conditions = req.Conditions
	user.PreferredClinic = req.PreferredClinic
	user.LastSeenAt = time.Now()
	user.UpdatedAt = time.Now()

	if err := h.repo.UpsertUser(r.Context(), user); err != nil {
		slog.Error("Failed to save profile", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to save profile")
		return
	}

	JSON(w, http.StatusOK, user)
}

// History returns the caller's recent finished calls.
func (h *ProfileHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())

	records, err := h.repo.ListCallRecords(r.Context(), userID, h.historyLimit)
	if err != nil {
		slog.Error("Failed to list call records", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load call history")
		return
	}
	if records == nil {
		records = []*domain.CallRecord{}
	}

	JSON(w, http.StatusOK, map[string]any{"calls": records})
}
