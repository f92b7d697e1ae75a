// handlers/agent_routes.go
package handlers

import (
	"agent-mission-system/middleware"
	"agent-mission-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupAgentRoutes(app *fiber.App, agentService *services.AgentService) {
	// Wallet connect — the only unauthenticated mutation; creation is
	// idempotent per wallet address.
	app.Post("/auth/connect", agentService.Connect)

	app.Get("/leaderboard", agentService.GetLeaderboard)

	// 🔐 Agent routes
	secured := app.Group("/s", middleware.AgentContextMiddleware())
	secured.Get("/agent/me", agentService.Me)
	secured.Get("/agent/transactions", agentService.GetTransactions)
	secured.Get("/agent/achievements", agentService.GetAchievements)
	secured.Post("/agent/avatar", agentService.UploadAvatar)

	// Admin routes
	admin := app.Group("/s/admin", middleware.AgentContextMiddleware(), middleware.RequireRole("admin"))
	admin.Post("/credits/grant", agentService.GrantCredit)
	admin.Post("/agents/:id/claims/reset", agentService.ResetClaims) // debug affordance
}
