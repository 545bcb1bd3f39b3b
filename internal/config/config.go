// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port         string
	FrontendURL  string
	DBPath       string
	HistoryLimit int
	OpenAI       OpenAIConfig
	Provider     ProviderConfig
	Relay        RelayConfig
}

// OpenAIConfig configures the chat/reasoning service.
type OpenAIConfig struct {
	APIKey    string
	ChatModel string
}

// ProviderConfig configures the outbound call provider.
// Name selects the transport: "voice" for the conversational-voice API,
// "twilio" for the legacy Twilio stream bridge.
type ProviderConfig struct {
	Name string

	VoiceBaseURL      string
	VoiceAPIKey       string
	VoiceAgentID      string
	VoiceAgentPhoneID string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	TwilioAnswerURL  string
}

// RelayConfig tunes the call-relay orchestrator.
type RelayConfig struct {
	// ResponseTimeout bounds how long a blocked provider webhook waits for a
	// patient decision before the default answer is used.
	ResponseTimeout time.Duration
	// DefaultSlotAnswer is the answer used when a calendar prompt times out.
	DefaultSlotAnswer string
	// DefaultOpenAnswer is the answer used when a free-form question times out.
	DefaultOpenAnswer string
	// HoldKeywords is the fixed vocabulary used to detect that the clinic
	// started offering appointment times.
	HoldKeywords []string
}

// DefaultSlotAnswer is the calendar-prompt timeout answer.
const DefaultSlotAnswer = "the first available appointment slot"

// DefaultOpenAnswer is the free-form-question timeout answer.
const DefaultOpenAnswer = "The patient did not provide an answer to that question."

func defaultHoldKeywords() []string {
	return []string{
		"available", "appointment", "slot", "opening", "schedule",
		"am", "pm",
		"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday",
	}
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		FrontendURL:  getEnv("FRONTEND_URL", ""),
		DBPath:       getEnv("DB_PATH", "./data/carelane.db"),
		HistoryLimit: getEnvInt("CALL_HISTORY_LIMIT", 20),
		OpenAI: OpenAIConfig{
			APIKey:    getEnv("OPENAI_API_KEY", ""),
			ChatModel: getEnv("OPENAI_MODEL_CHAT", "gpt-4o-mini"),
		},
		Provider: ProviderConfig{
			Name:              getEnv("CALL_PROVIDER", "voice"),
			VoiceBaseURL:      getEnv("VOICE_API_BASE_URL", "https://api.elevenlabs.io"),
			VoiceAPIKey:       getEnv("VOICE_API_KEY", ""),
			VoiceAgentID:      getEnv("VOICE_AGENT_ID", ""),
			VoiceAgentPhoneID: getEnv("VOICE_AGENT_PHONE_ID", ""),
			TwilioAccountSID:  getEnv("TWILIO_ACCOUNT_SID", ""),
			TwilioAuthToken:   getEnv("TWILIO_AUTH_TOKEN", ""),
			TwilioFromNumber:  getEnv("TWILIO_FROM_NUMBER", ""),
			TwilioAnswerURL:   getEnv("TWILIO_ANSWER_URL", ""),
		},
		Relay: RelayConfig{
			ResponseTimeout:   getEnvDuration("RELAY_RESPONSE_TIMEOUT", 60*time.Second),
			DefaultSlotAnswer: getEnv("RELAY_DEFAULT_SLOT_ANSWER", DefaultSlotAnswer),
			DefaultOpenAnswer: getEnv("RELAY_DEFAULT_OPEN_ANSWER", DefaultOpenAnswer),
			HoldKeywords:      defaultHoldKeywords(),
		},
	}

	if kw := getEnv("RELAY_HOLD_KEYWORDS", ""); kw != "" {
		cfg.Relay.HoldKeywords = splitCSV(kw)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("CALL_HISTORY_LIMIT must be > 0")
	}
	if c.Relay.ResponseTimeout <= 0 {
		return fmt.Errorf("RELAY_RESPONSE_TIMEOUT must be > 0")
	}
	if len(c.Relay.HoldKeywords) == 0 {
		return fmt.Errorf("RELAY_HOLD_KEYWORDS cannot be empty")
	}
	switch c.Provider.Name {
	case "voice", "twilio":
	default:
		return fmt.Errorf("CALL_PROVIDER must be \"voice\" or \"twilio\", got %q", c.Provider.Name)
	}
	return nil
}

// ChatEnabled returns true if the chat/reasoning service is configured.
func (c *Config) ChatEnabled() bool {
	return c.OpenAI.APIKey != ""
}

// CallsEnabled returns true if the selected call provider has credentials.
func (c *Config) CallsEnabled() bool {
	switch c.Provider.Name {
	case "twilio":
		return c.Provider.TwilioAccountSID != "" && c.Provider.TwilioAuthToken != "" &&
			c.Provider.TwilioFromNumber != "" && c.Provider.TwilioAnswerURL != ""
	default:
		return c.Provider.VoiceAPIKey != "" && c.Provider.VoiceAgentID != "" &&
			c.Provider.VoiceAgentPhoneID != ""
	}
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}
