package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"agent-mission-system/handlers"
	"agent-mission-system/middleware"
	"agent-mission-system/models"
	"agent-mission-system/services"
	"agent-mission-system/utils"
	"agent-mission-system/workers"

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

	app := fiber.New(fiber.Config{
		BodyLimit: 50 * 1024 * 1024, // 50MB, covers briefing uploads
	})

	// 🔐 GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(allowedOriginsList, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-Agent-ID, X-Agent-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	// TranslateError so unique violations surface as gorm.ErrDuplicatedKey —
	// the claim constraint is the whole at-most-once story.
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Agent{},
		&models.Claim{},
		&models.Mission{},
		&models.MissionParticipation{},
		&models.PointsTransaction{},
		&models.Achievement{},
		&models.AgentAchievement{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	ledger := services.NewGormLedger(db)
	creditFlow := services.NewCreditFlow(ledger)
	achievementService := services.NewAchievementService(db)
	missionService := services.NewMissionService(db, creditFlow, achievementService)
	agentService := services.NewAgentService(db, ledger, creditFlow)

	if err := achievementService.SeedAchievements(); err != nil {
		log.Fatal("failed to seed achievements:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Balance reconciler: repairs the claim-recorded-but-balance-stale window
	reconciler := workers.NewBalanceReconciler(db)
	go workers.PollBalances(ctx, reconciler, 30*time.Second)

	missionService.StartExpiryScheduler()

	handlers.SetupAgentRoutes(app, agentService)
	handlers.SetupMissionRoutes(app, missionService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Balance reconciler running (every 30s)")
	log.Println("✅ Mission expiry scheduler running")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")

	<-ctx.Done()
	log.Println("Shutting down server...")
	// Drain in-flight requests; a credit cut mid-flow leaves a claim for the
	// reconciler to repair, but there is no reason to create that work.
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}
