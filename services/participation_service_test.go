package services

import (
	"testing"
	"time"

	"habit-challenge-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	user := models.User{ExternalUserID: "ext-" + uuid.New().String(), Name: "Joiner"}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func insertCheckin(t *testing.T, db *gorm.DB, p *models.Participation, taskID uint, day int) *models.Checkin {
	t.Helper()
	c := models.Checkin{
		ParticipationID: p.ID,
		TaskID:          taskID,
		CheckedAt:       date(2026, 3, 1).AddDate(0, 0, day-1),
		ChallengeDay:    day,
		Source:          models.CheckinSourceWeb,
		Status:          models.CheckinApproved,
	}
	require.NoError(t, db.Create(&c).Error)
	return &c
}

func TestJoinCreatesParticipation(t *testing.T) {
	db := setupTestDB(t)
	svc := NewParticipationService(db, fakeClockAt(date(2026, 3, 1)))
	challenge, _ := seedChallenge(t, db, date(2026, 3, 1), 7, "run")
	user := seedUser(t, db)

	p, err := svc.Join(user.ID, challenge.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ParticipationActive, p.Status)
	assert.Equal(t, 1, p.CurrentDay)

	var fresh models.Challenge
	require.NoError(t, db.First(&fresh, challenge.ID).Error)
	assert.Equal(t, int64(2), fresh.ParticipantsCount) // seed participation + joiner

	_, err = svc.Join(user.ID, challenge.ID)
	assert.ErrorIs(t, err, ErrAlreadyParticipating)
}

func TestJoinMissingChallenge(t *testing.T) {
	db := setupTestDB(t)
	svc := NewParticipationService(db, fakeClockAt(date(2026, 3, 1)))
	user := seedUser(t, db)

	_, err := svc.Join(user.ID, 9999)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRejoinResetsAccountingEpoch(t *testing.T) {
	db := setupTestDB(t)
	svc := NewParticipationService(db, fakeClockAt(date(2026, 3, 10)))
	challenge, p := seedChallenge(t, db, date(2026, 3, 1), 7, "run")
	taskID := challenge.Tasks[0].ID

	insertCheckin(t, db, p, taskID, 1)
	require.NoError(t, db.Model(p).Updates(map[string]interface{}{
		"status": models.ParticipationAbandoned, "total_checkins": 1, "streak_days": 1, "best_streak": 1, "completion_rate": 100,
	}).Error)

	rejoined, err := svc.Join(p.UserID, challenge.ID)
	require.NoError(t, err)

	// Same row, fresh epoch.
	assert.Equal(t, p.ID, rejoined.ID)
	assert.Equal(t, models.ParticipationActive, rejoined.Status)
	assert.Equal(t, int64(0), rejoined.TotalCheckins)
	assert.Equal(t, 0, rejoined.BestStreak)
	assert.Equal(t, 0.0, rejoined.CompletionRate)
	assert.Equal(t, date(2026, 3, 10), DateOnly(rejoined.StartedAt))

	var live int64
	require.NoError(t, db.Model(&models.Checkin{}).Where("participation_id = ?", p.ID).Count(&live).Error)
	assert.Equal(t, int64(0), live)
}

func TestPauseResumeShiftsPersonalCalendar(t *testing.T) {
	db := setupTestDB(t)
	clock := fakeClockAt(date(2026, 3, 3))
	svc := NewParticipationService(db, clock)

	// No explicit challenge dates: the participation's started_at is the
	// calendar start and must not be penalized by paused time.
	user := seedUser(t, db)
	challenge := models.Challenge{Title: "Personal", DurationDays: 7, Visibility: models.VisibilityPrivate, OwnerID: user.ID}
	require.NoError(t, db.Create(&challenge).Error)
	p := models.Participation{
		UserID: user.ID, ChallengeID: challenge.ID,
		Status: models.ParticipationActive, StartedAt: date(2026, 3, 1), CurrentDay: 1,
	}
	require.NoError(t, db.Create(&p).Error)

	paused, err := svc.Pause(p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ParticipationPaused, paused.Status)
	require.NotNil(t, paused.PausedAt)

	clock.Advance(3 * 24 * time.Hour) // resumes on March 6

	resumed, err := svc.Resume(p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ParticipationActive, resumed.Status)
	assert.Nil(t, resumed.PausedAt)
	assert.Equal(t, date(2026, 3, 4), DateOnly(resumed.StartedAt))
}

func TestTransitionRules(t *testing.T) {
	db := setupTestDB(t)
	svc := NewParticipationService(db, fakeClockAt(date(2026, 3, 2)))
	_, p := seedChallenge(t, db, date(2026, 3, 1), 7, "run")

	_, err := svc.Resume(p.ID) // active -> active is not a resume
	assert.ErrorIs(t, err, ErrIllegalTransition)

	_, err = svc.Abandon(p.ID)
	require.NoError(t, err)

	_, err = svc.Pause(p.ID)
	assert.ErrorIs(t, err, ErrIllegalTransition)
	_, err = svc.Abandon(p.ID)
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestRolloverCompleted(t *testing.T) {
	db := setupTestDB(t)
	svc := NewParticipationService(db, fakeClockAt(date(2026, 3, 5)))
	challenge, p := seedChallenge(t, db, date(2026, 3, 1), 3, "run")
	taskID := challenge.Tasks[0].ID

	for day := 1; day <= 3; day++ {
		insertCheckin(t, db, p, taskID, day)
	}

	refreshed, err := svc.RefreshDay(p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ParticipationCompleted, refreshed.Status)
	assert.Equal(t, 3, refreshed.CurrentDay)
	require.NotNil(t, refreshed.CompletedAt)
	assert.Equal(t, 100.0, refreshed.CompletionRate)
}

func TestRolloverExpired(t *testing.T) {
	db := setupTestDB(t)
	svc := NewParticipationService(db, fakeClockAt(date(2026, 3, 5)))
	challenge, p := seedChallenge(t, db, date(2026, 3, 1), 3, "run")

	insertCheckin(t, db, p, challenge.Tasks[0].ID, 1)

	refreshed, err := svc.RefreshDay(p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ParticipationExpired, refreshed.Status)
	require.NotNil(t, refreshed.CompletedAt)
}

func TestRolloverLeavesRunningWindowAlone(t *testing.T) {
	db := setupTestDB(t)
	svc := NewParticipationService(db, fakeClockAt(date(2026, 3, 3)))
	_, p := seedChallenge(t, db, date(2026, 3, 1), 7, "run")

	refreshed, err := svc.RefreshDay(p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ParticipationActive, refreshed.Status)
	assert.Equal(t, 3, refreshed.CurrentDay)
}

func TestSummary(t *testing.T) {
	db := setupTestDB(t)
	svc := NewParticipationService(db, fakeClockAt(date(2026, 3, 4)))
	challenge, p := seedChallenge(t, db, date(2026, 3, 1), 7, "run")
	taskID := challenge.Tasks[0].ID

	for _, day := range []int{1, 2, 4} {
		insertCheckin(t, db, p, taskID, day)
	}

	summary, err := svc.Summary(p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ParticipationActive, summary.Status)
	assert.Equal(t, 4, summary.CurrentDay)
	assert.Equal(t, 3, summary.DaysRemaining)
	assert.Equal(t, 1, summary.StreakDays)
	assert.Equal(t, 2, summary.BestStreak)
	assert.Equal(t, 75.0, summary.CompletionRate)
	assert.Equal(t, int64(3), summary.TotalCheckins)
}

func TestDailyBreakdown(t *testing.T) {
	db := setupTestDB(t)
	svc := NewParticipationService(db, fakeClockAt(date(2026, 3, 3)))
	challenge, p := seedChallenge(t, db, date(2026, 3, 1), 7, "run", "read")
	runID := challenge.Tasks[0].ID

	insertCheckin(t, db, p, runID, 1)

	days, err := svc.DailyBreakdown(p.ID)
	require.NoError(t, err)
	require.Len(t, days, 3)

	assert.Equal(t, date(2026, 3, 1), days[0].Date)
	assert.Equal(t, 1, days[0].CompletedCount)
	assert.Equal(t, 2, days[0].TotalCount)
	assert.Equal(t, 0, days[1].CompletedCount)

	var gotRun bool
	for _, state := range days[0].Tasks {
		if state.TaskID == runID {
			gotRun = state.Completed
			require.NotNil(t, state.Checkin)
		}
	}
	assert.True(t, gotRun)
}
