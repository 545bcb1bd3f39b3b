package chat

// prompts.go holds the assistant persona and canned responses.

const (
	// SystemPrompt frames the assistant as a health concierge, not a doctor.
	SystemPrompt = "You are a friendly health-assistant concierge. You help patients describe " +
		"their symptoms, find nearby clinics, and arrange appointments. You never diagnose or " +
		"prescribe. Keep replies short and warm, ask one follow-up question at a time, and when " +
		"the patient seems ready to book, offer to call the clinic on their behalf. If anything " +
		"sounds like a medical emergency, tell them to call 911 immediately."

	// EmergencyResponse is returned without consulting the model when the
	// emergency keyword check fires.
	EmergencyResponse = "This sounds like it could be a medical emergency. Please call 911 or go " +
		"to the nearest emergency room right now. I've put emergency information on your screen."

	// FallbackResponse is returned when the reasoning service fails.
	FallbackResponse = "I'm sorry, I'm having trouble responding right now. Please try again in a moment."

	// ClinicsResponse accompanies the clinic list directive.
	ClinicsResponse = "Here are some clinics near you. Tap one and I can call them to book an appointment for you."
)
