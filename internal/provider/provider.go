// Package provider contains adapters for the external services that place
// and conduct outbound phone calls. No provider SDK or HTTP calls happen
// outside these adapters; the orchestrator only sees the Caller interface.
package provider

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by the unconfigured caller when call features
// are disabled because credentials are missing.
var ErrNotConfigured = errors.New("provider: call provider not configured")

// ErrMidCallMessagesUnsupported is returned by transports that cannot relay
// text into a call already in progress.
var ErrMidCallMessagesUnsupported = errors.New("provider: transport does not support mid-call messages")

// StartCallRequest carries everything needed to brief the agent and dial out.
type StartCallRequest struct {
	Phone         string
	Reason        string
	ClinicName    string
	CallerContext string
}

// StartCallResult reports provider acceptance of an outbound call.
type StartCallResult struct {
	// ConversationID is the provider's identifier for the accepted call.
	ConversationID string
	// CallSID is set by the Twilio transport; empty for the voice API.
	CallSID string
}

// Caller places outbound calls and relays mid-call messages.
type Caller interface {
	Name() string
	StartCall(ctx context.Context, req StartCallRequest) (StartCallResult, error)
	SendMessage(ctx context.Context, conversationID, text string) error
}

// Unconfigured is the Caller used when no provider credentials are present.
// Call routes stay registered so status and webhook endpoints keep working,
// but every outbound action fails with ErrNotConfigured.
type Unconfigured struct{}

func (Unconfigured) Name() string { return "unconfigured" }

func (Unconfigured) StartCall(ctx context.Context, req StartCallRequest) (StartCallResult, error) {
	return StartCallResult{}, ErrNotConfigured
}

func (Unconfigured) SendMessage(ctx context.Context, conversationID, text string) error {
	return ErrNotConfigured
}
