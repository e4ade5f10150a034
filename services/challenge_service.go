package services

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"habit-challenge-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gosimple/slug"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

type ChallengeService struct {
	DB    *gorm.DB
	Clock clockwork.Clock
	Cache *ChallengeCache
}

func NewChallengeService(db *gorm.DB, clock clockwork.Clock) *ChallengeService {
	return &ChallengeService{
		DB:    db,
		Clock: clock,
		Cache: NewChallengeCache(30*time.Second, clock),
	}
}

// NormalizeHashtag canonicalizes a task hashtag: lowercase slug with
// accents transliterated, so "#Água" and "agua" match the same task.
func NormalizeHashtag(raw string) string {
	return slug.Make(strings.TrimPrefix(strings.TrimSpace(raw), "#"))
}

// deriveDuration recomputes duration_days from a date pair, clamped to
// [1, MaxDurationDays]. Must be called whenever the dates change.
func deriveDuration(start, end *time.Time, fallback int) int {
	if start == nil || end == nil {
		if fallback < 1 {
			return 1
		}
		if fallback > models.MaxDurationDays {
			return models.MaxDurationDays
		}
		return fallback
	}
	days := DaysBetween(*start, *end) + 1
	if days < 1 {
		return 1
	}
	if days > models.MaxDurationDays {
		return models.MaxDurationDays
	}
	return days
}

func parseDateField(c *fiber.Ctx, field string) (*time.Time, error) {
	v := c.FormValue(field)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, err
	}
	t = DateOnly(t)
	return &t, nil
}

func (s *ChallengeService) CreateChallenge(c *fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return c.Status(401).JSON(fiber.Map{"error": "missing user context"})
	}

	title := strings.TrimSpace(c.FormValue("title"))
	if title == "" {
		return c.Status(400).JSON(fiber.Map{"error": "title is required"})
	}

	startDate, err := parseDateField(c, "start_date")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid start_date (use YYYY-MM-DD)"})
	}
	endDate, err := parseDateField(c, "end_date")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid end_date (use YYYY-MM-DD)"})
	}
	if startDate != nil && endDate != nil && endDate.Before(*startDate) {
		return c.Status(400).JSON(fiber.Map{"error": "end_date must not be before start_date"})
	}

	visibility := c.FormValue("visibility", models.VisibilityPrivate)
	var teamID *uint
	switch visibility {
	case models.VisibilityPrivate, models.VisibilityGlobal:
		if c.FormValue("team_id") != "" {
			return c.Status(400).JSON(fiber.Map{"error": "team_id is only valid for team visibility"})
		}
	case models.VisibilityTeam:
		n, convErr := strconv.Atoi(c.FormValue("team_id"))
		if convErr != nil || n <= 0 {
			return c.Status(400).JSON(fiber.Map{"error": "team_id is required for team visibility"})
		}
		var team models.Team
		if err := s.DB.First(&team, n).Error; err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "team not found"})
		}
		id := uint(n)
		teamID = &id
	default:
		return c.Status(400).JSON(fiber.Map{"error": "visibility must be private, team or global"})
	}

	fallbackDuration := 30
	if v := c.FormValue("duration_days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			fallbackDuration = n
		} else {
			return c.Status(400).JSON(fiber.Map{"error": "duration_days must be a positive integer"})
		}
	}
	duration := deriveDuration(startDate, endDate, fallbackDuration)

	challenge := &models.Challenge{
		Title:        title,
		Description:  c.FormValue("description"),
		StartDate:    startDate,
		EndDate:      endDate,
		DurationDays: duration,
		Visibility:   visibility,
		OwnerID:      userID,
		TeamID:       teamID,
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(challenge).Error; err != nil {
			return err
		}
		// Tasks come as parallel form arrays: tasks[i][hashtag], tasks[i][required].
		scope := challenge.TaskScopeID()
		for i := 0; ; i++ {
			raw := c.FormValue(taskField(i, "hashtag"))
			if raw == "" {
				break
			}
			task := models.Task{
				ChallengeID: challenge.ID,
				Hashtag:     NormalizeHashtag(raw),
				Name:        c.FormValue(taskField(i, "name")),
				IsRequired:  c.FormValue(taskField(i, "required"), "true") != "false",
				ScopeID:     scope,
			}
			if err := tx.Create(&task).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return fiber.NewError(409, "hashtag '"+task.Hashtag+"' already used in this scope")
				}
				return err
			}
			challenge.Tasks = append(challenge.Tasks, task)
		}
		return nil
	})
	if err != nil {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
		}
		log.Printf("ERROR creating challenge: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "DB insert failed"})
	}
	return c.Status(201).JSON(challenge)
}

func (s *ChallengeService) GetChallengeByID(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid challenge id"})
	}
	challenge, err := s.Cache.Get(uint(id), func(id uint) (*models.Challenge, error) {
		var fresh models.Challenge
		if err := s.DB.Preload("Tasks").First(&fresh, id).Error; err != nil {
			return nil, err
		}
		return &fresh, nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "challenge not found"})
		}
		log.Printf("ERROR fetching challenge %d: %v", id, err)
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(challenge)
}

func (s *ChallengeService) GetChallenges(c *fiber.Ctx) error {
	query := s.DB.Preload("Tasks").Order("created_at DESC")
	if v := c.Query("visibility"); v != "" {
		query = query.Where("visibility = ?", v)
	}
	var challenges []models.Challenge
	if err := query.Find(&challenges).Error; err != nil {
		log.Printf("ERROR fetching challenges: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to fetch challenges"})
	}
	return c.JSON(challenges)
}

// UpdateChallenge edits a challenge. Date changes are "sensitive": they
// shift every participant's day math, so they require confirm=true and
// discard all existing check-ins plus every participation's derived fields.
func (s *ChallengeService) UpdateChallenge(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid challenge id"})
	}
	var challenge models.Challenge
	if err := s.DB.First(&challenge, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "challenge not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}

	updates := map[string]interface{}{}
	if v := strings.TrimSpace(c.FormValue("title")); v != "" {
		updates["title"] = v
	}
	if v := c.FormValue("description"); v != "" {
		updates["description"] = v
	}

	startDate, err := parseDateField(c, "start_date")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid start_date (use YYYY-MM-DD)"})
	}
	endDate, err := parseDateField(c, "end_date")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid end_date (use YYYY-MM-DD)"})
	}

	datesChanged := (startDate != nil && !equalDatePtr(startDate, challenge.StartDate)) ||
		(endDate != nil && !equalDatePtr(endDate, challenge.EndDate))
	if datesChanged {
		if c.FormValue("confirm") != "true" {
			return c.Status(409).JSON(fiber.Map{
				"error": "changing challenge dates discards all existing check-ins; retry with confirm=true",
			})
		}
		newStart := challenge.StartDate
		if startDate != nil {
			newStart = startDate
			updates["start_date"] = startDate
		}
		newEnd := challenge.EndDate
		if endDate != nil {
			newEnd = endDate
			updates["end_date"] = endDate
		}
		if newStart != nil && newEnd != nil && newEnd.Before(*newStart) {
			return c.Status(400).JSON(fiber.Map{"error": "end_date must not be before start_date"})
		}
		updates["duration_days"] = deriveDuration(newStart, newEnd, challenge.DurationDays)
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(&challenge).Updates(updates).Error; err != nil {
				return err
			}
		}
		if !datesChanged {
			return nil
		}
		// Sensitive edit: wipe the slate for every participant.
		var participationIDs []uint
		if err := tx.Model(&models.Participation{}).
			Where("challenge_id = ?", challenge.ID).
			Pluck("id", &participationIDs).Error; err != nil {
			return err
		}
		if len(participationIDs) == 0 {
			return nil
		}
		if err := tx.Where("participation_id IN ?", participationIDs).Delete(&models.Checkin{}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Participation{}).
			Where("id IN ?", participationIDs).
			Updates(map[string]interface{}{
				"current_day":     1,
				"total_checkins":  0,
				"streak_days":     0,
				"best_streak":     0,
				"completion_rate": 0,
			}).Error
	})
	if err != nil {
		log.Printf("ERROR updating challenge %d: %v", id, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to update challenge"})
	}
	s.Cache.Invalidate(challenge.ID)

	s.DB.Preload("Tasks").First(&challenge, challenge.ID)
	return c.JSON(challenge)
}

func (s *ChallengeService) DeleteChallenge(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid challenge id"})
	}
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		var participationIDs []uint
		if err := tx.Model(&models.Participation{}).
			Where("challenge_id = ?", id).
			Pluck("id", &participationIDs).Error; err != nil {
			return err
		}
		if len(participationIDs) > 0 {
			if err := tx.Where("participation_id IN ?", participationIDs).Delete(&models.Checkin{}).Error; err != nil {
				return err
			}
			if err := tx.Where("challenge_id = ?", id).Delete(&models.Participation{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("challenge_id = ?", id).Delete(&models.Task{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Challenge{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fiber.NewError(404, "challenge not found")
		}
		return nil
	})
	if err != nil {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
		}
		return c.Status(500).JSON(fiber.Map{"error": "delete failed"})
	}
	s.Cache.Invalidate(uint(id))
	return c.JSON(fiber.Map{"message": "challenge deleted"})
}

func (s *ChallengeService) AddTask(c *fiber.Ctx) error {
	challengeID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid challenge id"})
	}
	var challenge models.Challenge
	if err := s.DB.First(&challenge, challengeID).Error; err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "challenge not found"})
	}

	hashtag := NormalizeHashtag(c.FormValue("hashtag"))
	if hashtag == "" {
		return c.Status(400).JSON(fiber.Map{"error": "hashtag is required"})
	}
	task := models.Task{
		ChallengeID: challenge.ID,
		Hashtag:     hashtag,
		Name:        c.FormValue("name"),
		IsRequired:  c.FormValue("required", "true") != "false",
		ScopeID:     challenge.TaskScopeID(),
	}
	if err := s.DB.Create(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return c.Status(409).JSON(fiber.Map{"error": "hashtag '" + hashtag + "' already used in this scope"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "failed to create task"})
	}
	s.Cache.Invalidate(challenge.ID)
	return c.Status(201).JSON(task)
}

func (s *ChallengeService) DeleteTask(c *fiber.Ctx) error {
	id, err := c.ParamsInt("task_id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid task id"})
	}
	var task models.Task
	if err := s.DB.First(&task, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "task not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	if err := s.DB.Delete(&task).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	s.Cache.Invalidate(task.ChallengeID)
	return c.JSON(fiber.Map{"message": "task deleted"})
}

func taskField(i int, field string) string {
	return fmt.Sprintf("tasks[%d][%s]", i, field)
}

func equalDatePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return DateOnly(*a).Equal(DateOnly(*b))
}
