package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/carelane/carelane/internal/config"
)

// VoiceAPIClient drives the conversational-voice API's native outbound-call
// flow. This is the canonical transport: the provider assigns a conversation
// id on acceptance and pushes transcript and lifecycle webhooks back to us.
type VoiceAPIClient struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	agentID      string
	agentPhoneID string
}

// NewVoiceAPIClient creates a client for the conversational-voice API.
func NewVoiceAPIClient(cfg config.ProviderConfig) *VoiceAPIClient {
	return &VoiceAPIClient{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		baseURL:      strings.TrimSuffix(cfg.VoiceBaseURL, "/"),
		apiKey:       cfg.VoiceAPIKey,
		agentID:      cfg.VoiceAgentID,
		agentPhoneID: cfg.VoiceAgentPhoneID,
	}
}

func (c *VoiceAPIClient) Name() string { return "voice" }

type outboundCallRequest struct {
	AgentID            string         `json:"agent_id"`
	AgentPhoneNumberID string         `json:"agent_phone_number_id"`
	ToNumber           string         `json:"to_number"`
	ClientData         map[string]any `json:"conversation_initiation_client_data,omitempty"`
}

type outboundCallResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
	CallSID        string `json:"callSid"`
}

// StartCall asks the voice API to place an outbound call, briefing the agent
// with the visit reason, clinic name, and any caller context.
func (c *VoiceAPIClient) StartCall(ctx context.Context, req StartCallRequest) (StartCallResult, error) {
	payload := outboundCallRequest{
		AgentID:            c.agentID,
		AgentPhoneNumberID: c.agentPhoneID,
		ToNumber:           req.Phone,
		ClientData: map[string]any{
			"conversation_config_override": map[string]any{
				"agent": map[string]any{
					"prompt": map[string]any{
						"prompt": buildBriefing(req),
					},
					"first_message": firstMessage(req),
				},
			},
		},
	}

	var resp outboundCallResponse
	if err := c.post(ctx, "/v1/convai/twilio/outbound-call", payload, &resp); err != nil {
		return StartCallResult{}, err
	}
	if !resp.Success || resp.ConversationID == "" {
		return StartCallResult{}, fmt.Errorf("voice api rejected call: %s", resp.Message)
	}

	slog.Info("Outbound call accepted", "conversation_id", resp.ConversationID, "call_sid", resp.CallSID)
	return StartCallResult{
		ConversationID: resp.ConversationID,
		CallSID:        resp.CallSID,
	}, nil
}

// SendMessage relays text into an in-progress conversation. Used by the
// fallback path when a patient responds without a pending webhook waiting.
func (c *VoiceAPIClient) SendMessage(ctx context.Context, conversationID, text string) error {
	path := fmt.Sprintf("/v1/convai/conversations/%s/message", conversationID)
	return c.post(ctx, path, map[string]string{"text": text}, nil)
}

func (c *VoiceAPIClient) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("voice api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("voice api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(excerpt)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func buildBriefing(req StartCallRequest) string {
	var b strings.Builder
	b.WriteString("You are a patient-care assistant calling ")
	if req.ClinicName != "" {
		b.WriteString(req.ClinicName)
	} else {
		b.WriteString("a medical clinic")
	}
	b.WriteString(" on behalf of a patient to book an appointment. ")
	if req.Reason != "" {
		b.WriteString("The reason for the visit: " + req.Reason + ". ")
	}
	if req.CallerContext != "" {
		b.WriteString("Patient context: " + req.CallerContext + ". ")
	}
	b.WriteString("When the receptionist offers appointment times, pause and ask the patient which slot works. ")
	b.WriteString("Be polite and concise, and confirm the chosen time before ending the call.")
	return b.String()
}

func firstMessage(req StartCallRequest) string {
	if req.ClinicName != "" {
		return fmt.Sprintf("Hello, I'm calling %s to book an appointment for a patient.", req.ClinicName)
	}
	return "Hello, I'm calling to book an appointment for a patient."
}
