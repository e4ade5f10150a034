package services

import (
	"testing"

	"habit-challenge-system/models"

	"github.com/stretchr/testify/assert"
)

func checkinOn(taskID uint, day int) models.Checkin {
	return models.Checkin{
		TaskID:       taskID,
		ChallengeDay: day,
		CheckedAt:    date(2026, 3, 1).AddDate(0, 0, day-1),
	}
}

// Seven-day challenge with one required task, check-ins on days 1, 2 and 4,
// computed as of day 4: the current streak is just day 4, the best run is
// days 1-2, and 3 of the 4 elapsed days are covered.
func TestRecomputeProgressPartialWeek(t *testing.T) {
	w := CalendarWindow{Start: date(2026, 3, 1), End: date(2026, 3, 7), DurationDays: 7}
	checkins := []models.Checkin{checkinOn(1, 1), checkinOn(1, 2), checkinOn(1, 4)}

	stats := RecomputeProgress(w, checkins, []uint{1}, 0, date(2026, 3, 4))

	assert.Equal(t, 4, stats.CurrentDay)
	assert.Equal(t, int64(3), stats.TotalCheckins)
	assert.Equal(t, 1, stats.StreakDays)
	assert.Equal(t, 2, stats.BestStreak)
	assert.Equal(t, 75.0, stats.CompletionRate)
}

func TestRecomputeProgressMultiTaskDayNeedsAllRequired(t *testing.T) {
	w := CalendarWindow{Start: date(2026, 3, 1), End: date(2026, 3, 7), DurationDays: 7}
	// Day 1 has both required tasks, day 2 only one.
	checkins := []models.Checkin{checkinOn(1, 1), checkinOn(2, 1), checkinOn(1, 2)}

	stats := RecomputeProgress(w, checkins, []uint{1, 2}, 0, date(2026, 3, 2))

	assert.Equal(t, 0, stats.StreakDays) // day 2 incomplete
	assert.Equal(t, 1, stats.BestStreak)
	assert.Equal(t, 75.0, stats.CompletionRate) // 3 of 2x2
}

func TestRecomputeProgressOptionalTasksDoNotCount(t *testing.T) {
	w := CalendarWindow{Start: date(2026, 3, 1), End: date(2026, 3, 7), DurationDays: 7}
	// Task 9 is not required: it adds to total but never to streaks or rate.
	checkins := []models.Checkin{checkinOn(1, 1), checkinOn(9, 2)}

	stats := RecomputeProgress(w, checkins, []uint{1}, 0, date(2026, 3, 2))

	assert.Equal(t, int64(2), stats.TotalCheckins)
	assert.Equal(t, 0, stats.StreakDays)
	assert.Equal(t, 1, stats.BestStreak)
	assert.Equal(t, 50.0, stats.CompletionRate)
}

func TestRecomputeProgressBestStreakNeverDecreases(t *testing.T) {
	w := CalendarWindow{Start: date(2026, 3, 1), End: date(2026, 3, 7), DurationDays: 7}
	checkins := []models.Checkin{checkinOn(1, 4)}

	stats := RecomputeProgress(w, checkins, []uint{1}, 5, date(2026, 3, 4))

	assert.Equal(t, 5, stats.BestStreak)
	assert.Equal(t, 1, stats.StreakDays)
}

func TestRecomputeProgressNoRequiredTasks(t *testing.T) {
	w := CalendarWindow{Start: date(2026, 3, 1), End: date(2026, 3, 7), DurationDays: 7}

	stats := RecomputeProgress(w, nil, nil, 0, date(2026, 3, 3))

	// Every elapsed day counts as complete when nothing is required; the
	// rate stays zero because its denominator is zero.
	assert.Equal(t, 3, stats.StreakDays)
	assert.Equal(t, 3, stats.BestStreak)
	assert.Equal(t, 0.0, stats.CompletionRate)
}

func TestRecomputeProgressBeforeWindowStart(t *testing.T) {
	w := CalendarWindow{Start: date(2026, 3, 10), End: date(2026, 3, 16), DurationDays: 7}

	stats := RecomputeProgress(w, nil, []uint{1}, 0, date(2026, 3, 1))

	assert.Equal(t, 0, stats.StreakDays)
	assert.Equal(t, 0, stats.BestStreak)
	assert.Equal(t, 0.0, stats.CompletionRate)
}

func TestHasCompletedAllRequiredCheckins(t *testing.T) {
	w := CalendarWindow{Start: date(2026, 3, 1), End: date(2026, 3, 3), DurationDays: 3}

	full := []models.Checkin{checkinOn(1, 1), checkinOn(1, 2), checkinOn(1, 3)}
	assert.True(t, HasCompletedAllRequiredCheckins(w, full, []uint{1}))

	partial := full[:2]
	assert.False(t, HasCompletedAllRequiredCheckins(w, partial, []uint{1}))

	// Vacuously true with no required tasks.
	assert.True(t, HasCompletedAllRequiredCheckins(w, nil, nil))
}

func TestRequiredTaskIDs(t *testing.T) {
	tasks := []models.Task{
		{ID: 1, IsRequired: true},
		{ID: 2, IsRequired: false},
		{ID: 3, IsRequired: true},
	}
	assert.Equal(t, []uint{1, 3}, RequiredTaskIDs(tasks))
}
