// handlers/mission_routes.go
package handlers

import (
	"agent-mission-system/middleware"
	"agent-mission-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupMissionRoutes(app *fiber.App, missionService *services.MissionService) {
	// Public catalog
	app.Get("/missions", missionService.ListMissions)
	app.Get("/missions/:code", missionService.GetMission)

	// 🔐 Agent routes — require agent context from Gateway
	secured := app.Group("/s", middleware.AgentContextMiddleware())
	secured.Post("/missions/:code/join", missionService.JoinMission)
	secured.Post("/missions/:code/complete", missionService.CompleteMission)
	secured.Get("/agent/missions", missionService.GetAgentMissions)

	// Admin catalog management
	admin := app.Group("/s/admin", middleware.AgentContextMiddleware(), middleware.RequireRole("admin"))
	admin.Post("/missions", missionService.CreateMission)
	admin.Put("/missions/:id", missionService.UpdateMission)
	admin.Delete("/missions/:id", missionService.DeleteMission)
	admin.Post("/missions/:id/briefing", missionService.UploadBriefing)
}
