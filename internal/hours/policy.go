// Package hours decides how order confirmations are worded: immediate
// inside the daily service window, deferred outside it. It never blocks
// order placement or approval.
package hours

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Policy is a fixed daily window at a fixed UTC offset. No DST handling.
// Open and Close are offsets from local midnight; Open must be before Close.
type Policy struct {
	Open   time.Duration
	Close  time.Duration
	Offset time.Duration
}

func (p Policy) zone() *time.Location {
	return time.FixedZone(formatOffset(p.Offset), int(p.Offset/time.Second))
}

func (p Policy) bounds(now time.Time) (local, open, closeAt time.Time) {
	local = now.In(p.zone())
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
	return local, midnight.Add(p.Open), midnight.Add(p.Close)
}

func (p Policy) IsWithinServiceWindow(now time.Time) bool {
	local, open, closeAt := p.bounds(now)
	return !local.Before(open) && local.Before(closeAt)
}

// NextWindowOpen returns today's opening if now is before it, tomorrow's if
// now is past closing. Inside the window it returns now unchanged.
func (p Policy) NextWindowOpen(now time.Time) time.Time {
	local, open, closeAt := p.bounds(now)
	switch {
	case local.Before(open):
		return open
	case !local.Before(closeAt):
		return open.AddDate(0, 0, 1)
	default:
		return local
	}
}

// ParseClock parses "HH:MM" into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", s, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// ParseOffset parses a UTC offset such as "+07:00", "-03:30" or "7".
func ParseOffset(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	sign := time.Duration(1)
	switch {
	case strings.HasPrefix(s, "-"):
		sign, s = -1, s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	hh, mm, _ := strings.Cut(s, ":")
	// hanya satu tanda di depan; Atoi sendiri menerima tanda kedua
	h, err := strconv.Atoi(hh)
	if err != nil || strings.ContainsAny(hh, "+-") || h < 0 || h > 14 {
		return 0, fmt.Errorf("parse offset %q: bad hours", s)
	}
	m := 0
	if mm != "" {
		if m, err = strconv.Atoi(mm); err != nil || strings.ContainsAny(mm, "+-") || m < 0 || m > 59 {
			return 0, fmt.Errorf("parse offset %q: bad minutes", s)
		}
	}
	return sign * (time.Duration(h)*time.Hour + time.Duration(m)*time.Minute), nil
}

func formatOffset(d time.Duration) string {
	sign := "+"
	if d < 0 {
		sign, d = "-", -d
	}
	return fmt.Sprintf("UTC%s%02d:%02d", sign, int(d/time.Hour), int(d%time.Hour/time.Minute))
}
