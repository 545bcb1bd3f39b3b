// Package schedule converts loosely structured appointment-time text into
// canonical schedule slots.
package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/carelane/carelane/internal/domain"
)

var dayCodes = map[string]string{
	"sunday":    "SUN",
	"monday":    "MON",
	"tuesday":   "TUE",
	"wednesday": "WED",
	"thursday":  "THU",
	"friday":    "FRI",
	"saturday":  "SAT",
}

var weekdayCodes = [7]string{"SUN", "MON", "TUE", "WED", "THU", "FRI", "SAT"}

var (
	dayPattern      = regexp.MustCompile(`(?i)\b(sunday|monday|tuesday|wednesday|thursday|friday|saturday)\b`)
	timePattern     = regexp.MustCompile(`(?i)\b(\d{1,2})(?:[:.](\d{2}))?\s*(am|pm)\b`)
	fragmentPattern = regexp.MustCompile(`(?i)[,;]|\bor\b|\band\b`)
)

// defaultTime is used when a weekday was mentioned without a time of day.
const defaultTime = "10:00 AM"

// Parser extracts schedule slots from free text. Now is injectable so parsing
// is deterministic in tests; aside from the reference time the parser is pure.
type Parser struct {
	Now func() time.Time
}

// NewParser creates a parser using real time.
func NewParser() *Parser {
	return &Parser{Now: time.Now}
}

// ParseSlot extracts a single slot from free text. The weekday defaults to
// today's weekday when absent, the date always defaults to tomorrow's day of
// month, and the time is normalized to a zero-padded HH:MM AM/PM. Returns
// false when neither a weekday nor a time can be found.
func (p *Parser) ParseSlot(raw string) (domain.ScheduleSlot, bool) {
	dayMatch := dayPattern.FindString(raw)
	timeMatch := timePattern.FindStringSubmatch(raw)
	if dayMatch == "" && timeMatch == nil {
		return domain.ScheduleSlot{}, false
	}

	now := p.now()

	day := weekdayCodes[now.Weekday()]
	if dayMatch != "" {
		day = dayCodes[strings.ToLower(dayMatch)]
	}

	timeOfDay := defaultTime
	if timeMatch != nil {
		timeOfDay = normalizeTime(timeMatch)
	}

	return domain.ScheduleSlot{
		Day:  day,
		Date: strconv.Itoa(now.AddDate(0, 0, 1).Day()),
		Time: timeOfDay,
	}, true
}

// ParseText extracts every slot mentioned in a transcript line. Fragments
// that yield nothing are dropped, and duplicate slots are collapsed.
func (p *Parser) ParseText(text string) []domain.ScheduleSlot {
	fragments := splitFragments(text)

	var slots []domain.ScheduleSlot
	seen := make(map[domain.ScheduleSlot]struct{})
	for _, frag := range fragments {
		slot, ok := p.ParseSlot(frag)
		if !ok {
			continue
		}
		if _, dup := seen[slot]; dup {
			continue
		}
		seen[slot] = struct{}{}
		slots = append(slots, slot)
	}
	return slots
}

// ParseStrings parses a list of freeform slot descriptions, dropping the
// unparsable ones.
func (p *Parser) ParseStrings(raws []string) []domain.ScheduleSlot {
	var slots []domain.ScheduleSlot
	for _, raw := range raws {
		if slot, ok := p.ParseSlot(raw); ok {
			slots = append(slots, slot)
		}
	}
	return slots
}

// FallbackSlots returns the fixed slot pair offered when scheduling text
// could not be parsed at all: tomorrow morning and the day after in the
// afternoon. Callers are never blocked by unparsable scheduling text.
func (p *Parser) FallbackSlots() []domain.ScheduleSlot {
	now := p.now()
	first := now.AddDate(0, 0, 1)
	second := now.AddDate(0, 0, 2)
	return []domain.ScheduleSlot{
		{
			Day:  weekdayCodes[first.Weekday()],
			Date: strconv.Itoa(first.Day()),
			Time: "10:00 AM",
		},
		{
			Day:  weekdayCodes[second.Weekday()],
			Date: strconv.Itoa(second.Day()),
			Time: "02:00 PM",
		},
	}
}

func (p *Parser) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// normalizeTime converts a timePattern match into "HH:MM AM" form.
func normalizeTime(m []string) string {
	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	if hour < 1 || hour > 12 || minute > 59 {
		return defaultTime
	}
	return fmt.Sprintf("%02d:%02d %s", hour, minute, strings.ToUpper(m[3]))
}

// splitFragments breaks a sentence into independently parsable pieces so
// "Tuesday at 2pm, or Wednesday at 10am" yields two slots.
func splitFragments(text string) []string {
	parts := fragmentPattern.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
