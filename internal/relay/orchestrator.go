package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/carelane/carelane/internal/domain"
	"github.com/carelane/carelane/internal/events"
	"github.com/carelane/carelane/internal/metrics"
	"github.com/carelane/carelane/internal/provider"
	"github.com/carelane/carelane/internal/schedule"
	"github.com/google/uuid"
)

var (
	// ErrCallInFlight is returned when a call is initiated while another one
	// has not ended. Overlapping calls are rejected, never merged.
	ErrCallInFlight = errors.New("relay: a call is already in flight")
	// ErrNoActiveCall is returned when an operation needs a live provider
	// conversation and none exists.
	ErrNoActiveCall = errors.New("relay: no active call")
	// ErrEmptyPhone is returned by InitiateCall without a target number.
	ErrEmptyPhone = errors.New("relay: target phone number is required")
)

// Recorder persists finished calls. Implemented by the store; optional.
type Recorder interface {
	SaveCallRecord(ctx context.Context, record *domain.CallRecord) error
}

// Options tunes orchestrator behavior. Zero values fall back to the defaults
// the system shipped with.
type Options struct {
	ResponseTimeout   time.Duration
	DefaultSlotAnswer string
	DefaultOpenAnswer string
	HoldKeywords      []string
}

// InitiateRequest carries the parameters of an outbound call.
type InitiateRequest struct {
	Phone         string
	Reason        string
	ClinicName    string
	CallerContext string
	UserID        string
	// SessionID is the browser tab that initiated the call; it tags the
	// session, its log lines, and the persisted record.
	SessionID string
}

// PendingOutcome is the result of a long-poll wait for patient input.
type PendingOutcome struct {
	// Value is the patient's answer, or the default after timeout.
	Value string
	// Message is the text handed back to the call provider.
	Message string
	// TimedOut is true when the default answer was used.
	TimedOut bool
}

// Orchestrator is the call-relay state machine. It owns the active call
// registry and the pending response slot, publishes lifecycle events to the
// sink, and talks to the call provider through the Caller boundary.
type Orchestrator struct {
	registry *Registry
	pending  *Pending
	sink     events.Sink
	caller   provider.Caller
	recorder Recorder
	parser   *schedule.Parser
	clock    Clock
	opts     Options
}

// New creates an orchestrator. recorder may be nil when persistence is
// disabled.
func New(sink events.Sink, caller provider.Caller, recorder Recorder, clock Clock, opts Options) *Orchestrator {
	if clock == nil {
		clock = RealClock{}
	}
	if opts.ResponseTimeout <= 0 {
		opts.ResponseTimeout = 60 * time.Second
	}
	if opts.DefaultSlotAnswer == "" {
		opts.DefaultSlotAnswer = "the first available appointment slot"
	}
	if opts.DefaultOpenAnswer == "" {
		opts.DefaultOpenAnswer = "The patient did not provide an answer to that question."
	}
	if len(opts.HoldKeywords) == 0 {
		opts.HoldKeywords = []string{
			"available", "appointment", "slot", "opening", "schedule", "am", "pm",
			"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday",
		}
	}
	parser := schedule.NewParser()
	parser.Now = clock.Now
	return &Orchestrator{
		registry: NewRegistry(),
		pending:  NewPending(clock),
		sink:     sink,
		caller:   caller,
		recorder: recorder,
		parser:   parser,
		clock:    clock,
		opts:     opts,
	}
}

// Parser exposes the orchestrator's slot parser so the HTTP layer can parse
// freeform slot strings with the same reference clock.
func (o *Orchestrator) Parser() *schedule.Parser {
	return o.parser
}

// Status returns a snapshot of the current call session, or nil.
func (o *Orchestrator) Status() *domain.CallSession {
	return o.registry.Get()
}

// InitiateCall creates a call session, asks the provider to dial out, and
// transitions the session to active on acceptance. A live session causes the
// request to be rejected with ErrCallInFlight.
func (o *Orchestrator) InitiateCall(ctx context.Context, req InitiateRequest) (*domain.CallSession, error) {
	if strings.TrimSpace(req.Phone) == "" {
		return nil, ErrEmptyPhone
	}
	if cur := o.registry.Get(); cur != nil && !cur.Ended() {
		return nil, fmt.Errorf("%w: call %s is %s", ErrCallInFlight, cur.ID, cur.State)
	}

	session := &domain.CallSession{
		ID:         uuid.NewString(),
		UserID:     req.UserID,
		SessionID:  req.SessionID,
		State:      domain.CallStateConnecting,
		Phone:      req.Phone,
		ClinicName: req.ClinicName,
		Reason:     req.Reason,
		StartedAt:  o.clock.Now(),
	}
	o.registry.Set(session)
	metrics.CallsStarted.Inc()
	metrics.ActiveCalls.Inc()

	o.sink.Publish(events.EventCallStarted, map[string]any{
		"call_id":     session.ID,
		"clinic_name": session.ClinicName,
		"reason":      session.Reason,
	})

	slog.Info("Initiating outbound call",
		"call_id", session.ID,
		"session_id", session.SessionID,
		"clinic", session.ClinicName,
		"provider", o.caller.Name(),
	)

	result, err := o.caller.StartCall(ctx, provider.StartCallRequest{
		Phone:         req.Phone,
		Reason:        req.Reason,
		ClinicName:    req.ClinicName,
		CallerContext: req.CallerContext,
	})
	if err != nil {
		o.failCall(ctx, fmt.Sprintf("Call failed to start: %v", err))
		return nil, fmt.Errorf("start call: %w", err)
	}

	o.registry.Update(func(s *domain.CallSession) {
		s.State = domain.CallStateActive
		s.ProviderConversationID = result.ConversationID
	})

	return o.registry.Get(), nil
}

// HandleTranscript appends a transcript line pushed by the provider, and runs
// the scheduling-offer heuristic. Lines arriving outside active or on-hold
// states are dropped.
func (o *Orchestrator) HandleTranscript(speaker domain.Speaker, text string) {
	var admitted bool
	var wasActive bool
	o.registry.Update(func(s *domain.CallSession) {
		if !s.AdmitsTranscript() {
			return
		}
		admitted = true
		wasActive = s.State == domain.CallStateActive
		s.Transcript = append(s.Transcript, domain.TranscriptLine{Speaker: speaker, Text: text})
	})
	if !admitted {
		slog.Warn("Dropping transcript line outside live call", "speaker", speaker)
		return
	}

	o.sink.Publish(events.EventTranscriptUpdate, map[string]any{
		"speaker": speaker,
		"text":    text,
	})

	// Keyword detection is lossy: a false positive on ordinary conversation
	// still opens a calendar prompt. Known limitation of the fixed vocabulary.
	if wasActive && o.mentionsScheduling(text) {
		slots := o.parser.ParseText(text)
		if len(slots) == 0 {
			slots = o.parser.FallbackSlots()
		}
		o.holdWithCalendar(slots)
	}
}

// ProviderEvent is a lifecycle or transcript push from the call provider.
type ProviderEvent struct {
	Type           string `json:"type"`
	Speaker        string `json:"speaker,omitempty"`
	Text           string `json:"text,omitempty"`
	Status         string `json:"status,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// HandleProviderEvent dispatches a generic provider webhook by event kind.
func (o *Orchestrator) HandleProviderEvent(ctx context.Context, evt ProviderEvent) {
	switch {
	case evt.Type == "transcript":
		o.HandleTranscript(ParseSpeaker(evt.Speaker), evt.Text)
	case evt.Type == "call_started" || evt.Status == "in-progress":
		o.registry.Update(func(s *domain.CallSession) {
			if s.State == domain.CallStateConnecting {
				s.State = domain.CallStateActive
			}
			if evt.ConversationID != "" {
				s.ProviderConversationID = evt.ConversationID
			}
		})
	case evt.Type == "call_ended" || isEndedStatus(evt.Status):
		o.EndCall(ctx)
	default:
		slog.Debug("Ignoring unknown provider event", "type", evt.Type, "status", evt.Status)
	}
}

// AwaitCalendarSelection pauses the call, shows the calendar prompt, and
// blocks until the patient picks a slot or the response timeout elapses.
// Called from the provider's long-poll webhook; the returned message is what
// the webhook hands back to the agent.
func (o *Orchestrator) AwaitCalendarSelection(ctx context.Context, slots []domain.ScheduleSlot) (PendingOutcome, error) {
	if len(slots) == 0 {
		slots = o.parser.FallbackSlots()
	}
	o.holdWithCalendar(slots)

	value, timedOut, err := o.await(ctx, o.opts.DefaultSlotAnswer)
	if err != nil {
		return PendingOutcome{}, err
	}

	o.resume()
	return PendingOutcome{
		Value: value,
		Message: fmt.Sprintf(
			"The patient has selected: %s. Please confirm this appointment time with the receptionist.", value),
		TimedOut: timedOut,
	}, nil
}

// AwaitUserAnswer pauses the call and blocks until the patient answers the
// agent's free-form question, or the timeout default is used. The answer is
// relayed verbatim.
func (o *Orchestrator) AwaitUserAnswer(ctx context.Context, question string) (PendingOutcome, error) {
	o.registry.Update(func(s *domain.CallSession) {
		if s.State == domain.CallStateActive {
			s.State = domain.CallStateOnHold
		}
		s.PendingUserResponse = true
	})
	o.sink.Publish(events.EventCallOnHold, map[string]any{"reason": "question"})
	o.sink.Publish(events.EventAgentNeedsInput, map[string]any{
		"mode":     "question",
		"question": question,
	})

	value, timedOut, err := o.await(ctx, o.opts.DefaultOpenAnswer)
	if err != nil {
		return PendingOutcome{}, err
	}

	o.resume()
	return PendingOutcome{Value: value, Message: value, TimedOut: timedOut}, nil
}

// SubmitUserResponse resolves the pending request with the patient's answer.
// With no request open it falls back to sending the text straight into the
// provider conversation; delivered is false when that also fails.
func (o *Orchestrator) SubmitUserResponse(ctx context.Context, value string) (bool, error) {
	if o.pending.Resolve(value) {
		o.sink.Publish(events.EventAgentInput, map[string]any{"value": value})
		return true, nil
	}

	session := o.registry.Get()
	if session == nil || session.Ended() || session.ProviderConversationID == "" {
		return false, ErrNoActiveCall
	}
	if err := o.caller.SendMessage(ctx, session.ProviderConversationID, value); err != nil {
		return false, fmt.Errorf("relay response to provider: %w", err)
	}
	o.sink.Publish(events.EventAgentInput, map[string]any{"value": value, "relayed": true})
	return true, nil
}

// Hold manually pauses an active call.
func (o *Orchestrator) Hold() {
	var changed bool
	o.registry.Update(func(s *domain.CallSession) {
		if s.State == domain.CallStateActive {
			s.State = domain.CallStateOnHold
			changed = true
		}
	})
	if changed {
		o.sink.Publish(events.EventCallOnHold, map[string]any{"reason": "manual"})
	}
}

// Resume returns an on-hold call to active. If a pending request is open the
// given slot text resolves it, unblocking the waiting webhook.
func (o *Orchestrator) Resume(slotText string) {
	if slotText != "" && o.pending.Resolve(slotText) {
		o.sink.Publish(events.EventAgentInput, map[string]any{"value": slotText})
		// resume() runs on the webhook goroutine once its wait returns.
		return
	}
	o.resume()
}

// Emergency broadcasts the emergency directive to every viewer.
func (o *Orchestrator) Emergency() string {
	const msg = "If this is a medical emergency, call 911 immediately."
	o.sink.Publish(events.EventEmergencyTrigger, map[string]any{"message": msg})
	return msg
}

// EndCall transitions the session to its terminal state, unblocks any open
// pending request with its default answer, broadcasts the final transcript,
// and persists the call record.
func (o *Orchestrator) EndCall(ctx context.Context) {
	var ended *domain.CallSession
	o.registry.Update(func(s *domain.CallSession) {
		if s.Ended() {
			return
		}
		s.State = domain.CallStateEnded
		s.PendingUserResponse = false
		s.EndedAt = o.clock.Now()
		ended = s.Clone()
	})
	if ended == nil {
		return
	}

	if o.pending.Cancel() {
		slog.Info("Call ended with a pending request open, resolved with default")
	}

	metrics.ActiveCalls.Dec()
	metrics.CallsEnded.WithLabelValues("completed").Inc()

	o.sink.Publish(events.EventCallEnded, map[string]any{
		"call_id":    ended.ID,
		"transcript": ended.Transcript,
	})

	o.persistRecord(ctx, ended)
	slog.Info("Call ended", "call_id", ended.ID, "lines", len(ended.Transcript))
}

// failCall marks the session ended after the provider rejected the call.
func (o *Orchestrator) failCall(ctx context.Context, reason string) {
	var failed *domain.CallSession
	o.registry.Update(func(s *domain.CallSession) {
		s.State = domain.CallStateEnded
		s.EndedAt = o.clock.Now()
		s.Transcript = append(s.Transcript, domain.TranscriptLine{
			Speaker: domain.SpeakerUnknown,
			Text:    reason,
		})
		failed = s.Clone()
	})
	if failed == nil {
		return
	}

	metrics.ActiveCalls.Dec()
	metrics.CallsEnded.WithLabelValues("failed").Inc()

	o.sink.Publish(events.EventError, map[string]any{"message": reason})
	o.sink.Publish(events.EventCallEnded, map[string]any{
		"call_id":    failed.ID,
		"error":      reason,
		"transcript": failed.Transcript,
	})
	o.persistRecord(ctx, failed)
}

// holdWithCalendar transitions to on-hold and shows the calendar prompt.
// The hold event is published strictly before any pending request opens so
// the UI renders the prompt before the webhook blocks.
func (o *Orchestrator) holdWithCalendar(slots []domain.ScheduleSlot) {
	o.registry.Update(func(s *domain.CallSession) {
		if s.State == domain.CallStateActive {
			s.State = domain.CallStateOnHold
		}
		s.PendingUserResponse = true
	})
	o.sink.Publish(events.EventCallOnHold, map[string]any{"reason": "scheduling"})
	o.sink.Publish(events.EventShowCalendar, map[string]any{"slots": slots})
	o.sink.Publish(events.EventAgentNeedsInput, map[string]any{"mode": "calendar"})
}

// await opens the pending slot and blocks until it resolves. If the caller
// disconnects first, the slot is closed and the hold released so the call is
// not stuck waiting for an answer nobody can deliver.
func (o *Orchestrator) await(ctx context.Context, fallback string) (value string, timedOut bool, err error) {
	ch := o.pending.Open(o.opts.ResponseTimeout, fallback)
	select {
	case res := <-ch:
		return res.Value, res.ByTimeout, nil
	case <-ctx.Done():
		if o.pending.Cancel() {
			slog.Warn("Webhook caller disconnected with a pending request open")
		}
		o.resume()
		return "", false, ctx.Err()
	}
}

// resume flips the session back to active after patient input arrived.
func (o *Orchestrator) resume() {
	var changed bool
	o.registry.Update(func(s *domain.CallSession) {
		if s.State == domain.CallStateOnHold {
			s.State = domain.CallStateActive
			changed = true
		}
		s.PendingUserResponse = false
	})
	if changed {
		o.sink.Publish(events.EventCallResumed, nil)
	}
}

func (o *Orchestrator) persistRecord(ctx context.Context, s *domain.CallSession) {
	if o.recorder == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	record := &domain.CallRecord{
		ID:         s.ID,
		UserID:     s.UserID,
		SessionID:  s.SessionID,
		ClinicName: s.ClinicName,
		Reason:     s.Reason,
		Phone:      s.Phone,
		FinalState: s.State,
		Transcript: s.Transcript,
		StartedAt:  s.StartedAt,
		EndedAt:    s.EndedAt,
	}
	if err := o.recorder.SaveCallRecord(saveCtx, record); err != nil {
		slog.Warn("Failed to persist call record", "call_id", s.ID, "error", err)
	}
}

// mentionsScheduling runs the fixed-vocabulary keyword check against a
// transcript line.
func (o *Orchestrator) mentionsScheduling(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range o.opts.HoldKeywords {
		if containsWord(lower, kw) {
			return true
		}
	}
	return false
}

// containsWord does a whole-word match so "am" does not fire on "ambulance".
func containsWord(text, word string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		beforeOK := start == 0 || !isWordChar(text[start-1])
		afterOK := end == len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

// isEndedStatus reports whether a provider call status is terminal.
func isEndedStatus(status string) bool {
	switch strings.ToLower(status) {
	case "completed", "busy", "failed", "no-answer", "canceled", "done":
		return true
	}
	return false
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// ParseSpeaker maps a provider speaker label onto the transcript speaker.
func ParseSpeaker(s string) domain.Speaker {
	switch strings.ToLower(s) {
	case "agent", "assistant", "ai":
		return domain.SpeakerAgent
	case "receptionist", "user", "human", "callee":
		return domain.SpeakerReceptionist
	default:
		return domain.SpeakerUnknown
	}
}
