package domain

// ScheduleSlot is the canonical appointment-time value exchanged between the
// parser, the UI calendar prompt, and the message composed back to the call
// provider.
type ScheduleSlot struct {
	// Day is the three-letter uppercase weekday code, SUN through SAT.
	Day string `json:"day"`
	// Date is the day of month as a numeric string.
	Date string `json:"date"`
	// Time is an HH:MM AM/PM string with a zero-padded hour.
	Time string `json:"time"`
}

// Valid reports whether the slot carries the minimum fields the UI needs.
func (s ScheduleSlot) Valid() bool {
	return s.Day != "" && s.Time != ""
}
