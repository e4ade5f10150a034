package services

import (
	"testing"
	"time"

	"habit-challenge-system/models"

	"github.com/stretchr/testify/assert"
)

func TestDaysBetweenIgnoresTimeOfDay(t *testing.T) {
	from := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	to := time.Date(2026, 3, 2, 0, 1, 0, 0, time.UTC)
	assert.Equal(t, 1, DaysBetween(from, to))
	assert.Equal(t, -1, DaysBetween(to, from))
	assert.Equal(t, 0, DaysBetween(from, from))
}

func TestDayIndexClamping(t *testing.T) {
	start := date(2026, 3, 1)

	assert.Equal(t, 1, DayIndex(start, date(2026, 3, 1), 7))
	assert.Equal(t, 4, DayIndex(start, date(2026, 3, 4), 7))
	assert.Equal(t, 7, DayIndex(start, date(2026, 3, 7), 7))
	// Before the window clamps up, past the window clamps down.
	assert.Equal(t, 1, DayIndex(start, date(2026, 2, 27), 7))
	assert.Equal(t, 7, DayIndex(start, date(2026, 3, 20), 7))
}

func TestAnchorDateNeverPassesCalendarEnd(t *testing.T) {
	end := date(2026, 3, 7)
	assert.Equal(t, date(2026, 3, 4), AnchorDate(date(2026, 3, 4), end))
	assert.Equal(t, end, AnchorDate(date(2026, 3, 15), end))
	assert.Equal(t, end, AnchorDate(end, end))
}

func TestIsWithinWindow(t *testing.T) {
	start := date(2026, 3, 1)
	anchor := date(2026, 3, 4)

	// Retroactive back to the start is fine, never before it.
	assert.True(t, IsWithinWindow(start, anchor, date(2026, 3, 1)))
	assert.True(t, IsWithinWindow(start, anchor, date(2026, 3, 4)))
	assert.False(t, IsWithinWindow(start, anchor, date(2026, 2, 28)))
	// Future-dated is rejected even though the calendar end is ahead.
	assert.False(t, IsWithinWindow(start, anchor, date(2026, 3, 5)))
}

func TestValidDays(t *testing.T) {
	start := date(2026, 3, 1)
	assert.Equal(t, 4, ValidDays(start, date(2026, 3, 4), 7))
	assert.Equal(t, 7, ValidDays(start, date(2026, 3, 30), 7))
	assert.Equal(t, 0, ValidDays(start, date(2026, 2, 1), 7))
}

func TestResolveWindowFallsBackToStartedAt(t *testing.T) {
	started := date(2026, 5, 10)
	p := &models.Participation{StartedAt: started}

	w := ResolveWindow(&models.Challenge{DurationDays: 21}, p)
	assert.Equal(t, started, w.Start)
	assert.Equal(t, started.AddDate(0, 0, 20), w.End)
	assert.Equal(t, 21, w.DurationDays)

	explicitStart := date(2026, 6, 1)
	explicitEnd := date(2026, 6, 7)
	w = ResolveWindow(&models.Challenge{StartDate: &explicitStart, EndDate: &explicitEnd, DurationDays: 7}, p)
	assert.Equal(t, explicitStart, w.Start)
	assert.Equal(t, explicitEnd, w.End)
}

func TestElapsedDaysUnclamped(t *testing.T) {
	w := CalendarWindow{Start: date(2026, 3, 1), End: date(2026, 3, 7), DurationDays: 7}
	assert.Equal(t, 1, w.ElapsedDays(date(2026, 3, 1)))
	assert.Equal(t, 7, w.ElapsedDays(date(2026, 3, 7)))
	assert.Equal(t, 8, w.ElapsedDays(date(2026, 3, 8)))
}
