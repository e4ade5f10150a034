package handlers

import (
	"errors"

	"habit-challenge-system/middleware"
	"habit-challenge-system/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func SetupParticipationRoutes(app *fiber.App, participationService *services.ParticipationService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Post("/challenges/:id/join", func(c *fiber.Ctx) error {
		userID, ok := c.Locals("user_id").(uint)
		if !ok {
			return c.Status(401).JSON(fiber.Map{"error": "missing user context"})
		}
		challengeID, err := c.ParamsInt("id")
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid challenge id"})
		}

		p, err := participationService.Join(userID, uint(challengeID))
		if err != nil {
			switch {
			case errors.Is(err, services.ErrAlreadyParticipating):
				return c.Status(409).JSON(fiber.Map{"error": "already participating in this challenge"})
			case errors.Is(err, gorm.ErrRecordNotFound):
				return c.Status(404).JSON(fiber.Map{"error": "challenge not found"})
			default:
				return c.Status(500).JSON(fiber.Map{"error": "join failed", "cause": err.Error()})
			}
		}
		return c.Status(201).JSON(p)
	})

	transition := func(action func(uint) (interface{}, error)) fiber.Handler {
		return func(c *fiber.Ctx) error {
			id, err := c.ParamsInt("id")
			if err != nil {
				return c.Status(400).JSON(fiber.Map{"error": "invalid participation id"})
			}
			out, err := action(uint(id))
			if err != nil {
				switch {
				case errors.Is(err, services.ErrIllegalTransition):
					return c.Status(409).JSON(fiber.Map{"error": err.Error()})
				case errors.Is(err, gorm.ErrRecordNotFound):
					return c.Status(404).JSON(fiber.Map{"error": "participation not found"})
				default:
					return c.Status(500).JSON(fiber.Map{"error": "transition failed", "cause": err.Error()})
				}
			}
			return c.JSON(out)
		}
	}

	secured.Post("/participations/:id/pause", transition(func(id uint) (interface{}, error) {
		return participationService.Pause(id)
	}))
	secured.Post("/participations/:id/resume", transition(func(id uint) (interface{}, error) {
		return participationService.Resume(id)
	}))
	secured.Post("/participations/:id/abandon", transition(func(id uint) (interface{}, error) {
		return participationService.Abandon(id)
	}))

	// Read paths refresh first: a stale "active" past the window must
	// settle into completed/expired before it is served.
	secured.Get("/participations/:id/summary", func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid participation id"})
		}
		summary, err := participationService.Summary(uint(id))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(404).JSON(fiber.Map{"error": "participation not found"})
			}
			return c.Status(500).JSON(fiber.Map{"error": "failed to build summary", "cause": err.Error()})
		}
		return c.JSON(summary)
	})

	secured.Get("/participations/:id/days", func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid participation id"})
		}
		days, err := participationService.DailyBreakdown(uint(id))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(404).JSON(fiber.Map{"error": "participation not found"})
			}
			return c.Status(500).JSON(fiber.Map{"error": "failed to build breakdown", "cause": err.Error()})
		}
		return c.JSON(days)
	})
}
