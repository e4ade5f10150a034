package services

import (
	"time"

	"habit-challenge-system/models"
)

// Calendar math for challenge windows. Everything here is date-granularity:
// timestamps are truncated to UTC midnight before any arithmetic, so a
// check-in at 23:59 and one at 00:01 of the same day land on the same
// challenge day regardless of wall-clock time.

// DateOnly truncates t to midnight UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole-day offset from one date to another.
// Negative when to is before from.
func DaysBetween(from, to time.Time) int {
	return int(DateOnly(to).Sub(DateOnly(from)).Hours() / 24)
}

// DayIndex maps an event date to a 1-based day index within the challenge
// window, clamped to [1, durationDays].
func DayIndex(calendarStart, eventDate time.Time, durationDays int) int {
	idx := DaysBetween(calendarStart, eventDate) + 1
	if idx < 1 {
		return 1
	}
	if durationDays >= 1 && idx > durationDays {
		return durationDays
	}
	return idx
}

// AnchorDate returns the effective "today" for accounting: min(now,
// calendarEnd). Keeps future dates from inflating stats and stats from
// running past challenge end.
func AnchorDate(now, calendarEnd time.Time) time.Time {
	n, e := DateOnly(now), DateOnly(calendarEnd)
	if n.After(e) {
		return e
	}
	return n
}

// IsWithinWindow reports whether date is an acceptable check-in date:
// retroactive check-ins are allowed back to calendarStart but never before
// it, and never after the anchor (no future-dated check-ins), even when the
// calendar end is still ahead.
func IsWithinWindow(calendarStart, anchor, date time.Time) bool {
	d := DateOnly(date)
	return !d.Before(DateOnly(calendarStart)) && !d.After(DateOnly(anchor))
}

// ValidDays is the number of elapsed in-window days as of the anchor,
// clamped to [0, durationDays]. Used as the completion-rate denominator
// factor.
func ValidDays(calendarStart, anchor time.Time, durationDays int) int {
	n := DaysBetween(calendarStart, anchor) + 1
	if n < 0 {
		return 0
	}
	if n > durationDays {
		return durationDays
	}
	return n
}

// CalendarWindow is the resolved calendar for one participation: the
// challenge's explicit dates when set, otherwise the participation's own
// started_at date.
type CalendarWindow struct {
	Start        time.Time
	End          time.Time
	DurationDays int
}

// ResolveWindow computes the effective calendar window for a participation.
func ResolveWindow(challenge *models.Challenge, participation *models.Participation) CalendarWindow {
	duration := challenge.DurationDays
	if duration < 1 {
		duration = 1
	}

	var start time.Time
	if challenge.StartDate != nil {
		start = DateOnly(*challenge.StartDate)
	} else {
		start = DateOnly(participation.StartedAt)
	}

	var end time.Time
	if challenge.EndDate != nil {
		end = DateOnly(*challenge.EndDate)
	} else {
		end = start.AddDate(0, 0, duration-1)
	}

	return CalendarWindow{Start: start, End: end, DurationDays: duration}
}

// ElapsedDays is the real (unclamped) 1-based day count since the window
// start. Values above DurationDays mean the window has fully elapsed.
func (w CalendarWindow) ElapsedDays(now time.Time) int {
	return DaysBetween(w.Start, now) + 1
}
