package handlers

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"habit-challenge-system/middleware"
	"habit-challenge-system/models"
	"habit-challenge-system/services"
	"habit-challenge-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func SetupCheckinRoutes(app *fiber.App, checkinService *services.CheckinService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Post("/checkins", func(c *fiber.Ctx) error {
		pid, err := parseFormUint(c, "participation_id")
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "participation_id is required"})
		}
		taskID, err := parseFormUint(c, "task_id")
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "task_id is required"})
		}

		occurredAt := checkinService.Clock.Now()
		if raw := c.FormValue("date"); raw != "" {
			parsed, err := time.Parse("2006-01-02", raw)
			if err != nil {
				return c.Status(400).JSON(fiber.Map{"error": "date must be YYYY-MM-DD"})
			}
			occurredAt = parsed
		}

		ev := services.CheckinEvent{
			ParticipationID: pid,
			TaskID:          taskID,
			OccurredAt:      occurredAt,
			Source:          models.CheckinSourceWeb,
		}
		if msg := c.FormValue("message"); msg != "" {
			ev.Message = &msg
		}

		if fileHeader, err := c.FormFile("image"); err == nil && fileHeader != nil {
			key := fmt.Sprintf("checkins/%s%s", uuid.New().String(), filepath.Ext(fileHeader.Filename))
			url, err := utils.UploadFileToR2(fileHeader, key)
			if err != nil {
				return c.Status(500).JSON(fiber.Map{"error": "failed to upload proof image", "cause": err.Error()})
			}
			ev.ImageURL = &url
		}

		result, err := checkinService.Record(ev)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrOutsideWindow):
				return c.Status(422).JSON(fiber.Map{"error": "date is outside the challenge window"})
			case errors.Is(err, services.ErrParticipationNotActive):
				return c.Status(409).JSON(fiber.Map{"error": "participation is not active"})
			case errors.Is(err, gorm.ErrRecordNotFound):
				return c.Status(404).JSON(fiber.Map{"error": "participation not found"})
			default:
				return c.Status(500).JSON(fiber.Map{"error": "check-in failed", "cause": err.Error()})
			}
		}

		status := 201
		if result.Outcome == services.RecordDuplicate {
			status = 200
		}
		return c.Status(status).JSON(fiber.Map{
			"outcome": result.Outcome,
			"checkin": result.Checkin,
		})
	})

	secured.Delete("/checkins/:id", func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid check-in id"})
		}
		if err := checkinService.Delete(uint(id)); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(404).JSON(fiber.Map{"error": "check-in not found"})
			}
			return c.Status(500).JSON(fiber.Map{"error": "delete failed", "cause": err.Error()})
		}
		return c.JSON(fiber.Map{"message": "check-in deleted"})
	})

	secured.Put("/checkins/:id/status", func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid check-in id"})
		}
		checkin, err := checkinService.SetStatus(uint(id), c.FormValue("status"))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(404).JSON(fiber.Map{"error": "check-in not found"})
			}
			return c.Status(400).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(checkin)
	})
}

func parseFormUint(c *fiber.Ctx, field string) (uint, error) {
	v, err := strconv.Atoi(c.FormValue(field))
	if err != nil || v < 1 {
		return 0, fmt.Errorf("invalid %s", field)
	}
	return uint(v), nil
}
