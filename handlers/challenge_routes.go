package handlers

import (
	"habit-challenge-system/middleware"
	"habit-challenge-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupChallengeRoutes(app *fiber.App, challengeService *services.ChallengeService) {
	// Public: global challenges are browsable without user context
	app.Get("/challenges", challengeService.GetChallenges)
	app.Get("/challenges/:id", challengeService.GetChallengeByID)

	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Post("/challenges", challengeService.CreateChallenge)
	secured.Put("/challenges/:id", challengeService.UpdateChallenge)
	secured.Delete("/challenges/:id", challengeService.DeleteChallenge)

	secured.Post("/challenges/:id/tasks", challengeService.AddTask)
	secured.Delete("/challenges/:id/tasks/:task_id", challengeService.DeleteTask)
}
