package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gamification-engine/handlers"
	"gamification-engine/models"
	"gamification-engine/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New()

	// CORS — comma-separated origin list from the environment
	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
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
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-API-Key",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Organisation{},
		&models.Role{},
		&models.Player{},
		&models.PlayerGroup{},
		&models.Task{},
		&models.GoalRule{},
		&models.Goal{},
		&models.FinishedGoal{},
		&models.FinishedTask{},
		&models.Reward{},
		&models.EarnedReward{},
		&models.MarketPlace{},
		&models.Offer{},
		&models.Bid{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	// One lock table for the whole engine so goal completion and marketplace
	// settlement serialize on the same per-entity locks.
	locks := services.NewKeyedLocks()

	catalogService := services.NewCatalogService(db)
	playerService := services.NewPlayerService(db)
	goalService := services.NewGoalService(db, locks)
	rewardService := services.NewRewardService(db, locks)
	marketService := services.NewMarketService(db, locks, goalService)
	marketService.RetriggerOnPayout = os.Getenv("POINTS_RETRIGGER_ON_PAYOUT") == "true"

	sweepInterval := 1 * time.Minute
	if raw := os.Getenv("OFFER_SWEEP_INTERVAL"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			log.Fatalf("invalid OFFER_SWEEP_INTERVAL %q: %v", raw, err)
		}
		sweepInterval = parsed
	}
	marketService.StartExpirySweeper(sweepInterval)

	handlers.SetupCatalogRoutes(app, catalogService, db)
	handlers.SetupPlayerRoutes(app, playerService, goalService, rewardService, catalogService, db)
	handlers.SetupMarketplaceRoutes(app, marketService, playerService, db)

	port := os.Getenv("PORT")
	if port == "" {
		port = "5300"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Printf("✅ Offer expiry sweeper running (every %s)", sweepInterval)
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)
	if marketService.RetriggerOnPayout {
		log.Println("✅ Points re-trigger on marketplace payout enabled")
	}

	<-ctx.Done()
	log.Println("Shutting down server...")
}
