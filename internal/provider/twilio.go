package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/carelane/carelane/internal/config"
	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioCaller is the legacy stream-bridge transport: it dials out through
// the Twilio REST API and points the call at a TwiML answer URL that bridges
// audio to the voice agent. It reports the Twilio call SID as the
// conversation id and cannot inject text into a call in progress.
type TwilioCaller struct {
	client    *twilio.RestClient
	from      string
	answerURL string
}

// NewTwilioCaller creates the legacy Twilio transport.
func NewTwilioCaller(cfg config.ProviderConfig) *TwilioCaller {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.TwilioAccountSID,
		Password: cfg.TwilioAuthToken,
	})
	return &TwilioCaller{
		client:    client,
		from:      cfg.TwilioFromNumber,
		answerURL: cfg.TwilioAnswerURL,
	}
}

func (c *TwilioCaller) Name() string { return "twilio" }

// StartCall places an outbound call through Twilio.
func (c *TwilioCaller) StartCall(ctx context.Context, req StartCallRequest) (StartCallResult, error) {
	params := &twilioapi.CreateCallParams{}
	params.SetTo(req.Phone)
	params.SetFrom(c.from)
	params.SetUrl(c.answerURL)

	call, err := c.client.Api.CreateCall(params)
	if err != nil {
		return StartCallResult{}, fmt.Errorf("twilio create call: %w", err)
	}
	if call.Sid == nil || *call.Sid == "" {
		return StartCallResult{}, fmt.Errorf("twilio create call: empty call sid")
	}

	slog.Info("Twilio call created", "call_sid", *call.Sid, "to", req.Phone)
	return StartCallResult{
		ConversationID: *call.Sid,
		CallSID:        *call.Sid,
	}, nil
}

// SendMessage is unsupported on the stream bridge; the agent audio path has
// no text inject endpoint.
func (c *TwilioCaller) SendMessage(ctx context.Context, conversationID, text string) error {
	return ErrMidCallMessagesUnsupported
}
