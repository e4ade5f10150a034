package services

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"habit-challenge-system/models"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Team{},
		&models.Challenge{},
		&models.Task{},
		&models.Participation{},
		&models.Checkin{},
	))
	return db
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// seedChallenge creates a challenge with explicit dates and one required task
// per given hashtag, plus an active participation for a fresh user.
func seedChallenge(t *testing.T, db *gorm.DB, start time.Time, durationDays int, hashtags ...string) (*models.Challenge, *models.Participation) {
	t.Helper()

	user := models.User{ExternalUserID: "ext-" + uuid.New().String(), Name: "Test User"}
	require.NoError(t, db.Create(&user).Error)

	end := start.AddDate(0, 0, durationDays-1)
	challenge := models.Challenge{
		Title:        "Test Challenge",
		StartDate:    &start,
		EndDate:      &end,
		DurationDays: durationDays,
		Visibility:   models.VisibilityPrivate,
		OwnerID:      user.ID,
	}
	require.NoError(t, db.Create(&challenge).Error)

	for _, tag := range hashtags {
		task := models.Task{
			ChallengeID: challenge.ID,
			Hashtag:     tag,
			Name:        tag,
			IsRequired:  true,
			ScopeID:     challenge.TaskScopeID(),
		}
		require.NoError(t, db.Create(&task).Error)
	}
	require.NoError(t, db.Preload("Tasks").First(&challenge, challenge.ID).Error)

	p := models.Participation{
		UserID:      user.ID,
		ChallengeID: challenge.ID,
		Status:      models.ParticipationActive,
		StartedAt:   start,
		CurrentDay:  1,
	}
	require.NoError(t, db.Create(&p).Error)

	return &challenge, &p
}

func fakeClockAt(t time.Time) *clockwork.FakeClock {
	return clockwork.NewFakeClockAt(t)
}
