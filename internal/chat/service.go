package chat

import (
	"context"
	"log/slog"
	"strings"

	"github.com/carelane/carelane/internal/events"
	"github.com/carelane/carelane/internal/metrics"
)

// emergencyKeywords trigger the emergency directive before the model is
// consulted. Substring matching on lowered text is deliberate: recall beats
// precision here.
var emergencyKeywords = []string{
	"chest pain",
	"can't breathe",
	"cannot breathe",
	"unconscious",
	"severe bleeding",
	"stroke",
	"overdose",
	"suicidal",
	"heart attack",
}

// clinicKeywords trigger the clinic list directive.
var clinicKeywords = []string{
	"find a clinic",
	"clinic near",
	"clinics near",
	"doctor near",
	"find a doctor",
	"where can i go",
}

// Service answers patient chat messages and publishes UI directives.
type Service struct {
	llm  Client
	sink events.Sink
}

// NewService constructs a chat service.
func NewService(llm Client, sink events.Sink) *Service {
	return &Service{llm: llm, sink: sink}
}

// Reply generates the assistant's reply for a patient message and publishes
// the matching events. On reasoning-service failure a generic fallback is
// returned together with the error so the handler can log it.
func (s *Service) Reply(ctx context.Context, userID, message string) (string, error) {
	metrics.ChatRequests.Inc()
	lower := strings.ToLower(message)

	for _, kw := range emergencyKeywords {
		if strings.Contains(lower, kw) {
			slog.Warn("Emergency keyword in chat message", "user_id", userID, "keyword", kw)
			s.sink.Publish(events.EventEmergencyTrigger, map[string]any{
				"message": EmergencyResponse,
			})
			s.publishResponse(EmergencyResponse)
			return EmergencyResponse, nil
		}
	}

	for _, kw := range clinicKeywords {
		if strings.Contains(lower, kw) {
			s.sink.Publish(events.EventShowClinics, map[string]any{
				"clinics": Clinics(),
			})
			s.publishResponse(ClinicsResponse)
			return ClinicsResponse, nil
		}
	}

	resp, err := s.llm.Chat(ctx, []Message{
		{Role: "system", Content: SystemPrompt},
		{Role: "user", Content: message},
	})
	if err != nil {
		s.publishResponse(FallbackResponse)
		return FallbackResponse, err
	}

	s.publishResponse(resp)
	return resp, nil
}

func (s *Service) publishResponse(text string) {
	s.sink.Publish(events.EventChatResponse, map[string]any{"text": text})
}
