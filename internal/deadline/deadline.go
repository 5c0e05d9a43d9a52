// Package deadline converts user-chosen job deadlines into picker constraints and
// the epoch-seconds encoding the marketplace module stores.
package deadline

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrMissing     = errors.New("deadline: required")
	ErrInPast      = errors.New("deadline: must be in the future")
	ErrUnparseable = errors.New("deadline: unrecognised time format")
)

// EndOfDay returns the last representable instant of t's calendar day in t's location.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}

// IsDateSelectable reports whether a picker may offer candidate. Anything before the
// end of now's day is disabled.
func IsDateSelectable(candidate, now time.Time) bool {
	return !candidate.Before(EndOfDay(now))
}

// DisabledHours returns [0, now.Hour()).
func DisabledHours(now time.Time) []int {
	return upTo(now.Hour())
}

// DisabledMinutes returns [0, now.Minute()) when selectedHour is the current hour.
func DisabledMinutes(selectedHour int, now time.Time) []int {
	if selectedHour != now.Hour() {
		return []int{}
	}
	return upTo(now.Minute())
}

// DisabledSeconds returns [0, now.Second()) when both selectedHour and selectedMinute
// match the current moment.
func DisabledSeconds(selectedHour, selectedMinute int, now time.Time) []int {
	if selectedHour != now.Hour() || selectedMinute != now.Minute() {
		return []int{}
	}
	return upTo(now.Second())
}

func upTo(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// Constraints is the picker view of the current moment.
type Constraints struct {
	Now             time.Time `json:"now"`
	FirstSelectable time.Time `json:"first_selectable"`
	DisabledHours   []int     `json:"disabled_hours"`
	DisabledMinutes []int     `json:"disabled_minutes"`
	DisabledSeconds []int     `json:"disabled_seconds"`
}

// ConstraintsAt builds the constraint set for now. The minute and second sets are the
// ones that apply while the picker sits on now's hour and minute.
func ConstraintsAt(now time.Time) Constraints {
	return Constraints{
		Now:             now,
		FirstSelectable: EndOfDay(now),
		DisabledHours:   DisabledHours(now),
		DisabledMinutes: DisabledMinutes(now.Hour(), now),
		DisabledSeconds: DisabledSeconds(now.Hour(), now.Minute(), now),
	}
}

// Validate rejects deadlines that are zero or not strictly after now.
func Validate(deadline, now time.Time) error {
	if deadline.IsZero() {
		return ErrMissing
	}
	if !deadline.After(now) {
		return ErrInPast
	}
	return nil
}

// EpochSeconds encodes t as whole seconds since the Unix epoch, dropping any
// sub-second component.
func EpochSeconds(t time.Time) int64 {
	return t.UnixMilli() / 1000
}

// FromEpochSeconds decodes an on-chain deadline.
func FromEpochSeconds(s int64) time.Time {
	return time.Unix(s, 0)
}

var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// Parse reads a deadline entered as RFC 3339 or a local "2006-01-02 15:04:05" string.
func Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrMissing
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseable, s)
}
