package handlers

import (
	"log"
	"time"

	"habit-challenge-system/middleware"
	"habit-challenge-system/workers"

	"github.com/gofiber/fiber/v2"
)

type whatsappWebhookPayload struct {
	Messages []struct {
		ID        string `json:"id"`
		From      string `json:"from"`
		Text      string `json:"text"`
		MediaURL  string `json:"media_url"`
		Timestamp int64  `json:"timestamp"`
	} `json:"messages"`
}

// SetupWebhookRoutes exposes the provider-facing ingestion endpoint. The
// handler only parses and enqueues; it always answers 200 so the provider
// does not retry a payload we already accepted. Redelivered messages are
// deduplicated downstream by message id.
func SetupWebhookRoutes(app *fiber.App, ingest *workers.WhatsAppIngestWorker) {
	webhook := app.Group("/webhooks", middleware.GatewayAuthMiddleware())

	webhook.Post("/whatsapp", func(c *fiber.Ctx) error {
		var payload whatsappWebhookPayload
		if err := c.BodyParser(&payload); err != nil {
			log.Printf("[WEBHOOK] unparseable payload: %v", err)
			return c.Status(400).JSON(fiber.Map{"error": "invalid payload"})
		}

		accepted := 0
		for _, m := range payload.Messages {
			if m.ID == "" || m.From == "" {
				continue
			}
			ts := time.Unix(m.Timestamp, 0).UTC()
			if m.Timestamp == 0 {
				ts = time.Now().UTC()
			}
			if ingest.Enqueue(workers.InboundMessage{
				MessageID: m.ID,
				From:      m.From,
				Text:      m.Text,
				MediaURL:  m.MediaURL,
				Timestamp: ts,
			}) {
				accepted++
			}
		}

		return c.JSON(fiber.Map{"accepted": accepted})
	})
}
