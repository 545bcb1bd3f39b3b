package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/carelane/carelane/internal/domain"
	"github.com/carelane/carelane/internal/identity"
	"github.com/carelane/carelane/internal/relay"
	"github.com/go-chi/chi/v5"
)

// CallHandler exposes the call-relay orchestrator over HTTP: UI-initiated
// actions plus the provider's webhook surface, including the long-poll
// endpoints the provider holds open while waiting for a patient decision.
type CallHandler struct {
	orc *relay.Orchestrator
}

// NewCallHandler creates a call handler.
func NewCallHandler(orc *relay.Orchestrator) *CallHandler {
	return &CallHandler{orc: orc}
}

// RegisterRoutes registers the call routes.
func (h *CallHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/call", func(r chi.Router) {
		r.Post("/initiate", h.Initiate)
		r.Post("/respond", h.Respond)
		r.Get("/status", h.Status)
		r.Post("/hold", h.Hold)
		r.Post("/resume", h.Resume)
		r.Post("/end", h.End)
		r.Post("/emergency", h.Emergency)
		r.Post("/show-calendar", h.ShowCalendar)
		r.Post("/ask-user", h.AskUser)
		r.Post("/transcript-webhook", h.TranscriptWebhook)
		r.Post("/webhook", h.Webhook)
	})
}

type initiateRequest struct {
	Phone      string `json:"phone"`
	ClinicName string `json:"clinic_name"`
	Reason     string `json:"reason"`
	Type       string `json:"type"`
	Context    string `json:"context"`
}

// Initiate starts an outbound call.
func (h *CallHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	var req initiateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}
	if req.Phone == "" {
		Error(w, http.StatusBadRequest, "phone is required")
		return
	}

	reason := req.Reason
	if reason == "" {
		reason = req.Type
	}

	session, err := h.orc.InitiateCall(r.Context(), relay.InitiateRequest{
		Phone:         req.Phone,
		Reason:        reason,
		ClinicName:    req.ClinicName,
		CallerContext: req.Context,
		UserID:        identity.UserIDFromContext(r.Context()),
		SessionID:     identity.SessionIDFromContext(r.Context()),
	})
	switch {
	case errors.Is(err, relay.ErrEmptyPhone):
		Error(w, http.StatusBadRequest, "phone is required")
		return
	case errors.Is(err, relay.ErrCallInFlight):
		Error(w, http.StatusConflict, "a call is already in progress")
		return
	case err != nil:
		slog.Error("Call initiation failed", "error", err)
		Error(w, http.StatusBadGateway, "call provider error: "+err.Error())
		return
	}

	JSON(w, http.StatusOK, map[string]any{
		"call_id": session.ID,
		"status":  session.State,
	})
}

type respondRequest struct {
	Response string `json:"response"`
}

// Respond delivers the patient's answer to whichever side is waiting for it.
func (h *CallHandler) Respond(w http.ResponseWriter, r *http.Request) {
	var req respondRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}
	if req.Response == "" {
		Error(w, http.StatusBadRequest, "response is required")
		return
	}

	delivered, err := h.orc.SubmitUserResponse(r.Context(), req.Response)
	if !delivered {
		if err != nil && !errors.Is(err, relay.ErrNoActiveCall) {
			slog.Warn("Response relay failed", "error", err)
		}
		Error(w, http.StatusBadRequest, "no active call or pending webhook to respond to")
		return
	}

	JSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

// Status returns a snapshot of the current call session.
func (h *CallHandler) Status(w http.ResponseWriter, r *http.Request) {
	session := h.orc.Status()
	if session == nil {
		JSON(w, http.StatusOK, map[string]string{"status": "no_active_call"})
		return
	}
	JSON(w, http.StatusOK, session)
}

// Hold manually pauses the active call.
func (h *CallHandler) Hold(w http.ResponseWriter, r *http.Request) {
	h.orc.Hold()
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}

type resumeRequest struct {
	Slot string `json:"slot"`
}

// Resume returns an on-hold call to active, optionally resolving the pending
// request with the chosen slot.
func (h *CallHandler) Resume(w http.ResponseWriter, r *http.Request) {
	var req resumeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}
	h.orc.Resume(req.Slot)
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// End terminates the active call.
func (h *CallHandler) End(w http.ResponseWriter, r *http.Request) {
	h.orc.EndCall(r.Context())
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Emergency broadcasts the emergency directive.
func (h *CallHandler) Emergency(w http.ResponseWriter, r *http.Request) {
	msg := h.orc.Emergency()
	JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": msg,
	})
}

type showCalendarRequest struct {
	Slots []json.RawMessage `json:"slots"`
}

// ShowCalendar is the provider's long-poll webhook for calendar selection.
// It blocks until the patient picks a slot or the response timeout elapses.
func (h *CallHandler) ShowCalendar(w http.ResponseWriter, r *http.Request) {
	var req showCalendarRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	outcome, err := h.orc.AwaitCalendarSelection(r.Context(), h.decodeSlots(req.Slots))
	if err != nil {
		// The provider went away before the patient answered.
		Error(w, http.StatusRequestTimeout, "caller disconnected before a selection arrived")
		return
	}

	JSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"user_selection": outcome.Value,
		"message":        outcome.Message,
		"timed_out":      outcome.TimedOut,
	})
}

type askUserRequest struct {
	Question string `json:"question"`
}

// AskUser is the provider's long-poll webhook for free-form questions.
func (h *CallHandler) AskUser(w http.ResponseWriter, r *http.Request) {
	var req askUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}
	if req.Question == "" {
		Error(w, http.StatusBadRequest, "question is required")
		return
	}

	outcome, err := h.orc.AwaitUserAnswer(r.Context(), req.Question)
	if err != nil {
		Error(w, http.StatusRequestTimeout, "caller disconnected before an answer arrived")
		return
	}

	JSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"user_response": outcome.Value,
		"message":       outcome.Message,
		"timed_out":     outcome.TimedOut,
	})
}

type transcriptWebhookRequest struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// TranscriptWebhook ingests a transcript line pushed by the provider.
func (h *CallHandler) TranscriptWebhook(w http.ResponseWriter, r *http.Request) {
	var req transcriptWebhookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}
	if req.Text == "" {
		Error(w, http.StatusBadRequest, "text is required")
		return
	}

	h.orc.HandleTranscript(relay.ParseSpeaker(req.Speaker), req.Text)
	JSON(w, http.StatusOK, map[string]bool{"received": true})
}

// Webhook ingests a generic provider lifecycle event.
func (h *CallHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	var evt relay.ProviderEvent
	if err := decodeJSON(w, r, &evt); err != nil {
		return
	}

	h.orc.HandleProviderEvent(r.Context(), evt)
	JSON(w, http.StatusOK, map[string]bool{"received": true})
}

// decodeSlots accepts both canonical {day,date,time} objects, which pass
// through untouched, and freeform strings, which go through the parser.
func (h *CallHandler) decodeSlots(raws []json.RawMessage) []domain.ScheduleSlot {
	parser := h.orc.Parser()
	var slots []domain.ScheduleSlot
	for _, raw := range raws {
		var structured domain.ScheduleSlot
		if err := json.Unmarshal(raw, &structured); err == nil && structured.Valid() {
			slots = append(slots, structured)
			continue
		}
		var freeform string
		if err := json.Unmarshal(raw, &freeform); err == nil {
			if slot, ok := parser.ParseSlot(freeform); ok {
				slots = append(slots, slot)
			}
		}
	}
	return slots
}
