package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"habit-challenge-system/handlers"
	"habit-challenge-system/models"
	"habit-challenge-system/services"
	"habit-challenge-system/utils"
	"habit-challenge-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 16 * 1024 * 1024, // proof images
	})

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("ALLOWED_ORIGINS not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	// TranslateError so a unique-constraint race surfaces as
	// gorm.ErrDuplicatedKey and the check-in engine can treat it as a
	// duplicate delivery.
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Team{},
		&models.Challenge{},
		&models.Task{},
		&models.Participation{},
		&models.Checkin{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	clock := clockwork.NewRealClock()
	challengeService := services.NewChallengeService(db, clock)
	participationService := services.NewParticipationService(db, clock)
	checkinService := services.NewCheckinService(db, clock)

	syncServiceURL := os.Getenv("SYNC_SERVICE_URL")
	if syncServiceURL == "" {
		log.Fatal("SYNC_SERVICE_URL environment variable not set")
	}
	serviceToken := os.Getenv("HABIT_SERVICE_TOKEN")
	if serviceToken == "" {
		log.Fatal("HABIT_SERVICE_TOKEN environment variable not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	contactSync := workers.NewContactSyncWorker(db, syncServiceURL, "/api/v1/public/profiles", serviceToken)
	go contactSync.Start(ctx)

	gateway := workers.NewMessagingGateway()
	ingestWorker := workers.NewWhatsAppIngestWorker(db, checkinService, gateway)
	ingestWorker.Start(ctx)

	participationService.StartRolloverSweep()

	handlers.SetupChallengeRoutes(app, challengeService)
	handlers.SetupParticipationRoutes(app, participationService)
	handlers.SetupCheckinRoutes(app, checkinService)
	handlers.SetupWebhookRoutes(app, ingestWorker)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("Server running on http://localhost:5300")
	log.Println("Contact Sync Worker running")
	log.Println("WhatsApp Ingest Worker running")
	log.Println("Rollover sweep scheduled")
	log.Printf("CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
