package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"habit-challenge-system/models"

	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

var (
	ErrAlreadyParticipating = errors.New("user already has a live participation in this challenge")
	ErrIllegalTransition    = errors.New("illegal participation status transition")
)

type ParticipationService struct {
	DB    *gorm.DB
	Clock clockwork.Clock
}

func NewParticipationService(db *gorm.DB, clock clockwork.Clock) *ParticipationService {
	return &ParticipationService{DB: db, Clock: clock}
}

// Join enrolls a user in a challenge. If a prior terminal participation
// exists for the (user, challenge) pair it is reactivated in place — a
// fresh accounting epoch: derived fields reset, prior check-ins discarded —
// instead of creating a second row; the uniqueness constraint on the pair
// forbids two.
func (s *ParticipationService) Join(userID, challengeID uint) (*models.Participation, error) {
	var joined *models.Participation
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var challenge models.Challenge
		if err := tx.First(&challenge, challengeID).Error; err != nil {
			return fmt.Errorf("challenge %d: %w", challengeID, err)
		}

		now := s.Clock.Now()
		var existing models.Participation
		err := tx.Where("user_id = ? AND challenge_id = ?", userID, challengeID).First(&existing).Error
		switch {
		case err == nil:
			if !existing.Terminal() {
				return ErrAlreadyParticipating
			}
			// Rejoin: discard the old epoch's check-ins and reset.
			if err := tx.Where("participation_id = ?", existing.ID).Delete(&models.Checkin{}).Error; err != nil {
				return err
			}
			updates := map[string]interface{}{
				"status":          models.ParticipationActive,
				"started_at":      now,
				"paused_at":       nil,
				"completed_at":    nil,
				"current_day":     1,
				"total_checkins":  0,
				"streak_days":     0,
				"best_streak":     0,
				"completion_rate": 0,
			}
			if err := tx.Model(&existing).Updates(updates).Error; err != nil {
				return err
			}
			if err := tx.First(&existing, existing.ID).Error; err != nil {
				return err
			}
			joined = &existing
		case errors.Is(err, gorm.ErrRecordNotFound):
			p := models.Participation{
				UserID:      userID,
				ChallengeID: challengeID,
				Status:      models.ParticipationActive,
				StartedAt:   now,
				CurrentDay:  1,
			}
			if err := tx.Create(&p).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return ErrAlreadyParticipating
				}
				return err
			}
			joined = &p
		default:
			return err
		}

		return refreshChallengeParticipants(tx, challengeID)
	})
	if err != nil {
		return nil, err
	}
	return joined, nil
}

// Pause suspends an active participation. No day or streak recompute; the
// clock simply stops being consulted until resume.
func (s *ParticipationService) Pause(participationID uint) (*models.Participation, error) {
	return s.transition(participationID, func(p *models.Participation, now time.Time) error {
		if p.Status != models.ParticipationActive {
			return fmt.Errorf("%w: %s -> paused", ErrIllegalTransition, p.Status)
		}
		p.Status = models.ParticipationPaused
		p.PausedAt = &now
		return nil
	})
}

// Resume reactivates a paused participation and shifts started_at forward
// by the paused duration, so the personal fallback calendar does not
// penalize paused time. Challenges with explicit global dates are
// unaffected by the shift: their calendar start is the challenge's own.
func (s *ParticipationService) Resume(participationID uint) (*models.Participation, error) {
	return s.transition(participationID, func(p *models.Participation, now time.Time) error {
		if p.Status != models.ParticipationPaused {
			return fmt.Errorf("%w: %s -> active", ErrIllegalTransition, p.Status)
		}
		if p.PausedAt != nil {
			if days := DaysBetween(*p.PausedAt, now); days > 0 {
				p.StartedAt = p.StartedAt.AddDate(0, 0, days)
			}
		}
		p.Status = models.ParticipationActive
		p.PausedAt = nil
		return nil
	})
}

// Abandon is the user-initiated exit. Terminal for this epoch's accounting;
// distinct from expired, which is the automatic outcome of an incomplete
// elapsed window.
func (s *ParticipationService) Abandon(participationID uint) (*models.Participation, error) {
	return s.transition(participationID, func(p *models.Participation, now time.Time) error {
		if p.Status != models.ParticipationActive && p.Status != models.ParticipationPaused {
			return fmt.Errorf("%w: %s -> abandoned", ErrIllegalTransition, p.Status)
		}
		p.Status = models.ParticipationAbandoned
		p.PausedAt = nil
		return nil
	})
}

func (s *ParticipationService) transition(participationID uint, apply func(*models.Participation, time.Time) error) (*models.Participation, error) {
	var out *models.Participation
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var p models.Participation
		if err := tx.First(&p, participationID).Error; err != nil {
			return err
		}
		if err := apply(&p, s.Clock.Now()); err != nil {
			return err
		}
		if err := tx.Save(&p).Error; err != nil {
			return err
		}
		if p.Terminal() {
			if err := refreshChallengeParticipants(tx, p.ChallengeID); err != nil {
				return err
			}
		}
		out = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RefreshDay is the explicit "refresh current day" entry: recomputes the
// derived fields and runs the rollover check. Invoked on every check-in, by
// the scheduler sweep, and by read paths that must not serve stale status.
func (s *ParticipationService) RefreshDay(participationID uint) (*models.Participation, error) {
	var out *models.Participation
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var p models.Participation
		if err := tx.Preload("Challenge.Tasks").First(&p, participationID).Error; err != nil {
			return err
		}
		if err := refreshProgress(tx, &p, &p.Challenge, s.Clock.Now()); err != nil {
			return err
		}
		out = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// refreshProgress recomputes every derived field from the live check-ins
// and evaluates the rollover transition. Must run inside the caller's
// transaction, next to whatever mutation made the cache stale.
func refreshProgress(tx *gorm.DB, p *models.Participation, challenge *models.Challenge, now time.Time) error {
	if challenge.DurationDays < 1 {
		return fmt.Errorf("%w: challenge %d has duration %d", ErrInvariant, challenge.ID, challenge.DurationDays)
	}

	var checkins []models.Checkin
	if err := tx.Where("participation_id = ?", p.ID).Find(&checkins).Error; err != nil {
		return err
	}

	w := ResolveWindow(challenge, p)
	requiredIDs := RequiredTaskIDs(challenge.Tasks)
	stats := RecomputeProgress(w, checkins, requiredIDs, p.BestStreak, now)

	p.CurrentDay = stats.CurrentDay
	p.TotalCheckins = stats.TotalCheckins
	p.StreakDays = stats.StreakDays
	p.BestStreak = stats.BestStreak
	p.CompletionRate = stats.CompletionRate

	// Rollover: once the real-world window has elapsed for this
	// participation, an active row settles into its terminal outcome.
	if p.Status == models.ParticipationActive && w.ElapsedDays(now) > w.DurationDays {
		completedAt := now
		p.CompletedAt = &completedAt
		p.CurrentDay = w.DurationDays
		if HasCompletedAllRequiredCheckins(w, checkins, requiredIDs) {
			p.Status = models.ParticipationCompleted
		} else {
			p.Status = models.ParticipationExpired
		}
	}

	if err := tx.Save(p).Error; err != nil {
		return err
	}
	if p.Terminal() {
		if err := refreshChallengeParticipants(tx, p.ChallengeID); err != nil {
			// Cached counter only; log and move on.
			log.Printf("[Progress] participant count refresh failed for challenge %d: %v", p.ChallengeID, err)
		}
	}
	return nil
}

// refreshChallengeParticipants recounts live (active/paused) participations
// into the challenge's cached counter. Best-effort consistency.
func refreshChallengeParticipants(tx *gorm.DB, challengeID uint) error {
	var count int64
	if err := tx.Model(&models.Participation{}).
		Where("challenge_id = ? AND status IN ?", challengeID, []string{models.ParticipationActive, models.ParticipationPaused}).
		Count(&count).Error; err != nil {
		return err
	}
	return tx.Model(&models.Challenge{}).
		Where("id = ?", challengeID).
		Update("participants_count", count).Error
}

// ParticipationSummary is the read shape consumed by the presentation layer.
type ParticipationSummary struct {
	ParticipationID uint    `json:"participation_id"`
	Status          string  `json:"status"`
	CurrentDay      int     `json:"current_day"`
	DaysRemaining   int     `json:"days_remaining"`
	StreakDays      int     `json:"streak_days"`
	BestStreak      int     `json:"best_streak"`
	CompletionRate  float64 `json:"completion_rate"`
	TotalCheckins   int64   `json:"total_checkins"`
}

// Summary refreshes the participation (rollover included — a stale "active"
// must never be served) and returns the derived fields.
func (s *ParticipationService) Summary(participationID uint) (*ParticipationSummary, error) {
	p, err := s.RefreshDay(participationID)
	if err != nil {
		return nil, err
	}
	remaining := p.Challenge.DurationDays - p.CurrentDay
	if remaining < 0 {
		remaining = 0
	}
	return &ParticipationSummary{
		ParticipationID: p.ID,
		Status:          p.Status,
		CurrentDay:      p.CurrentDay,
		DaysRemaining:   remaining,
		StreakDays:      p.StreakDays,
		BestStreak:      p.BestStreak,
		CompletionRate:  p.CompletionRate,
		TotalCheckins:   p.TotalCheckins,
	}, nil
}

// DayBreakdown is one row of the per-day task grid.
type DayBreakdown struct {
	Day            int            `json:"day"`
	Date           time.Time      `json:"date"`
	Tasks          []DayTaskState `json:"tasks"`
	CompletedCount int            `json:"completed_count"`
	TotalCount     int            `json:"total_count"`
}

type DayTaskState struct {
	TaskID    uint            `json:"task_id"`
	Hashtag   string          `json:"hashtag"`
	Completed bool            `json:"completed"`
	Checkin   *models.Checkin `json:"checkin,omitempty"`
}

// DailyBreakdown returns the day-by-day task grid up to the current day.
// Recomputed on demand from the live check-ins; never cached.
func (s *ParticipationService) DailyBreakdown(participationID uint) ([]DayBreakdown, error) {
	p, err := s.RefreshDay(participationID)
	if err != nil {
		return nil, err
	}

	var checkins []models.Checkin
	if err := s.DB.Where("participation_id = ?", p.ID).Find(&checkins).Error; err != nil {
		return nil, err
	}
	byDayTask := make(map[int]map[uint]*models.Checkin, p.CurrentDay)
	for i := range checkins {
		c := &checkins[i]
		if byDayTask[c.ChallengeDay] == nil {
			byDayTask[c.ChallengeDay] = make(map[uint]*models.Checkin)
		}
		byDayTask[c.ChallengeDay][c.TaskID] = c
	}

	w := ResolveWindow(&p.Challenge, p)
	days := make([]DayBreakdown, 0, p.CurrentDay)
	for day := 1; day <= p.CurrentDay; day++ {
		row := DayBreakdown{
			Day:        day,
			Date:       w.Start.AddDate(0, 0, day-1),
			TotalCount: len(p.Challenge.Tasks),
		}
		for _, task := range p.Challenge.Tasks {
			state := DayTaskState{TaskID: task.ID, Hashtag: task.Hashtag}
			if c, ok := byDayTask[day][task.ID]; ok {
				state.Completed = true
				state.Checkin = c
				row.CompletedCount++
			}
			row.Tasks = append(row.Tasks, state)
		}
		days = append(days, row)
	}
	return days, nil
}
