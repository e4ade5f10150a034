package services

import (
	"math"
	"time"

	"habit-challenge-system/models"
)

// ProgressStats is the full set of derived participation fields. All five
// values are recomputed together on every mutating event; recomputation is
// a pure function of (window, live check-ins, stored best streak, now) and
// is never incremental. A participation's check-in history is bounded by
// durationDays x taskCount, so full scans are cheap.
type ProgressStats struct {
	CurrentDay     int
	TotalCheckins  int64
	StreakDays     int
	BestStreak     int
	CompletionRate float64
}

// RecomputeProgress derives all cached participation fields from an
// immutable snapshot. checkins must contain only live (non-deleted) rows.
//
// Zero-required-task challenges use vacuous truth: every elapsed in-window
// day counts as fully completed for both streak walks. The completion rate
// stays 0 because its denominator is zero.
func RecomputeProgress(w CalendarWindow, checkins []models.Checkin, requiredTaskIDs []uint, storedBestStreak int, now time.Time) ProgressStats {
	anchor := AnchorDate(now, w.End)
	currentDay := DayIndex(w.Start, anchor, w.DurationDays)

	required := make(map[uint]bool, len(requiredTaskIDs))
	for _, id := range requiredTaskIDs {
		required[id] = true
	}

	// Distinct required tasks checked per challenge day, up to the anchor.
	requiredByDay := make(map[int]map[uint]bool)
	var requiredCheckins int64
	for _, c := range checkins {
		if !required[c.TaskID] || DateOnly(c.CheckedAt).After(anchor) {
			continue
		}
		requiredCheckins++
		day := requiredByDay[c.ChallengeDay]
		if day == nil {
			day = make(map[uint]bool)
			requiredByDay[c.ChallengeDay] = day
		}
		day[c.TaskID] = true
	}

	dayComplete := func(day int) bool {
		if len(required) == 0 {
			return true
		}
		return len(requiredByDay[day]) == len(required)
	}

	stats := ProgressStats{
		CurrentDay:    currentDay,
		TotalCheckins: int64(len(checkins)),
	}

	elapsed := ValidDays(w.Start, anchor, w.DurationDays)
	if elapsed > 0 {
		// Current streak: walk backward from the anchor day, stop at the
		// first day that is not fully completed.
		for day := currentDay; day >= 1; day-- {
			if !dayComplete(day) {
				break
			}
			stats.StreakDays++
		}

		// Best streak: longest run of consecutive fully-completed days in
		// the whole elapsed window.
		run := 0
		for day := 1; day <= currentDay; day++ {
			if dayComplete(day) {
				run++
				if run > stats.BestStreak {
					stats.BestStreak = run
				}
			} else {
				run = 0
			}
		}

		if denom := int64(len(required)) * int64(elapsed); denom > 0 {
			rate := float64(requiredCheckins) / float64(denom) * 100
			stats.CompletionRate = math.Round(rate*100) / 100
		}
	}

	// Best streak never decreases, even across retroactive edits that lower
	// the current computation.
	if storedBestStreak > stats.BestStreak {
		stats.BestStreak = storedBestStreak
	}

	return stats
}

// HasCompletedAllRequiredCheckins reports whether, across the full challenge
// window, the participation holds enough required-task check-ins to count
// as finished: requiredTasksCount x durationDays. Decides completed vs
// expired when the window elapses. Vacuously true with no required tasks.
func HasCompletedAllRequiredCheckins(w CalendarWindow, checkins []models.Checkin, requiredTaskIDs []uint) bool {
	required := make(map[uint]bool, len(requiredTaskIDs))
	for _, id := range requiredTaskIDs {
		required[id] = true
	}
	var count int64
	for _, c := range checkins {
		if required[c.TaskID] {
			count++
		}
	}
	return count >= int64(len(required))*int64(w.DurationDays)
}

// RequiredTaskIDs filters a challenge's task list down to required task ids.
func RequiredTaskIDs(tasks []models.Task) []uint {
	var ids []uint
	for _, t := range tasks {
		if t.IsRequired {
			ids = append(ids, t.ID)
		}
	}
	return ids
}
