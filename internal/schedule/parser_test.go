package schedule

import (
	"testing"
	"time"

	"github.com/carelane/carelane/internal/domain"
)

// Monday, March 10 2025. Tomorrow is Tuesday the 11th.
func newTestParser() *Parser {
	return &Parser{Now: func() time.Time {
		return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	}}
}

func TestParseSlot(t *testing.T) {
	p := newTestParser()

	tests := []struct {
		name string
		in   string
		want domain.ScheduleSlot
		ok   bool
	}{
		{
			name: "weekday and time",
			in:   "We have Tuesday at 2pm open",
			want: domain.ScheduleSlot{Day: "TUE", Date: "11", Time: "02:00 PM"},
			ok:   true,
		},
		{
			name: "time with minutes",
			in:   "how about wednesday 9:30 AM",
			want: domain.ScheduleSlot{Day: "WED", Date: "11", Time: "09:30 AM"},
			ok:   true,
		},
		{
			name: "weekday only defaults to morning",
			in:   "Friday works for us",
			want: domain.ScheduleSlot{Day: "FRI", Date: "11", Time: "10:00 AM"},
			ok:   true,
		},
		{
			name: "time only defaults to today's weekday",
			in:   "anytime after 3 pm",
			want: domain.ScheduleSlot{Day: "MON", Date: "11", Time: "03:00 PM"},
			ok:   true,
		},
		{
			name: "nothing parsable",
			in:   "please hold while I check",
			ok:   false,
		},
		{
			name: "out of range hour falls back",
			in:   "Tuesday at 13pm",
			want: domain.ScheduleSlot{Day: "TUE", Date: "11", Time: "10:00 AM"},
			ok:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := p.ParseSlot(tt.in)
			if ok != tt.ok {
				t.Fatalf("ParseSlot(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("ParseSlot(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseTextMultipleOffers(t *testing.T) {
	p := newTestParser()

	slots := p.ParseText("We could do Tuesday at 2pm, or Wednesday at 10am")
	if len(slots) != 2 {
		t.Fatalf("Expected 2 slots, got %d: %+v", len(slots), slots)
	}
	if slots[0] != (domain.ScheduleSlot{Day: "TUE", Date: "11", Time: "02:00 PM"}) {
		t.Errorf("Unexpected first slot: %+v", slots[0])
	}
	if slots[1] != (domain.ScheduleSlot{Day: "WED", Date: "11", Time: "10:00 AM"}) {
		t.Errorf("Unexpected second slot: %+v", slots[1])
	}
}

func TestParseTextDeduplicates(t *testing.T) {
	p := newTestParser()

	slots := p.ParseText("Tuesday at 2pm, and again Tuesday at 2pm")
	if len(slots) != 1 {
		t.Errorf("Expected duplicates collapsed, got %d slots", len(slots))
	}
}

func TestParseTextNothingFound(t *testing.T) {
	p := newTestParser()

	if slots := p.ParseText("let me transfer you"); len(slots) != 0 {
		t.Errorf("Expected no slots, got %+v", slots)
	}
}

func TestParseStringsDropsUnparsable(t *testing.T) {
	p := newTestParser()

	slots := p.ParseStrings([]string{"Thursday at 11am", "gibberish", ""})
	if len(slots) != 1 {
		t.Fatalf("Expected 1 slot, got %d", len(slots))
	}
	if slots[0].Day != "THU" || slots[0].Time != "11:00 AM" {
		t.Errorf("Unexpected slot: %+v", slots[0])
	}
}

func TestFallbackSlots(t *testing.T) {
	p := newTestParser()

	slots := p.FallbackSlots()
	if len(slots) != 2 {
		t.Fatalf("Expected 2 fallback slots, got %d", len(slots))
	}
	if slots[0] != (domain.ScheduleSlot{Day: "TUE", Date: "11", Time: "10:00 AM"}) {
		t.Errorf("Unexpected first fallback: %+v", slots[0])
	}
	if slots[1] != (domain.ScheduleSlot{Day: "WED", Date: "12", Time: "02:00 PM"}) {
		t.Errorf("Unexpected second fallback: %+v", slots[1])
	}
}
