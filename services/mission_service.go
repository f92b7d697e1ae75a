// services/mission_service.go
package services

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"agent-mission-system/models"
	"agent-mission-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

type MissionService struct {
	DB           *gorm.DB
	Credit       *CreditFlow
	Achievements *AchievementService
}

func NewMissionService(db *gorm.DB, credit *CreditFlow, achievements *AchievementService) *MissionService {
	return &MissionService{DB: db, Credit: credit, Achievements: achievements}
}

// --- Public Handlers ---

// ListMissions returns active missions, highest reward first
func (s *MissionService) ListMissions(c *fiber.Ctx) error {
	var missions []models.Mission
	if err := s.DB.Where("status = ?", models.MissionStatusActive).
		Order("points_reward DESC").
		Find(&missions).Error; err != nil {
		log.Printf("DB Error fetching missions: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch missions"})
	}
	return c.JSON(missions)
}

// GetMission returns one mission by code
func (s *MissionService) GetMission(c *fiber.Ctx) error {
	code := c.Params("code")

	var mission models.Mission
	if err := s.DB.Where("code = ?", code).First(&mission).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Mission not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(mission)
}

// --- Agent Handlers ---

// JoinMission enrolls the authenticated agent in a mission. Joining twice is a
// conflict, not a crash.
func (s *MissionService) JoinMission(c *fiber.Ctx) error {
	agentID := c.Locals("agent_id").(string)
	code := c.Params("code")

	var mission models.Mission
	if err := s.DB.Where("code = ?", code).First(&mission).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Mission not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	if mission.Status != models.MissionStatusActive {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Mission is not open for enrollment"})
	}
	if mission.ExpiresAt != nil && mission.ExpiresAt.Before(time.Now()) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Mission has expired"})
	}

	participation := models.MissionParticipation{
		AgentID:   agentID,
		MissionID: mission.ID,
		Status:    models.ParticipationJoined,
	}
	if err := s.DB.Create(&participation).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Already joined this mission"})
		}
		log.Printf("DB Error joining mission: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to join mission"})
	}

	return c.Status(fiber.StatusCreated).JSON(participation)
}

// CompleteMission routes the reward through the crediting flow with the
// mission code as the action code, so completion pays at most once no matter
// how often it is replayed.
func (s *MissionService) CompleteMission(c *fiber.Ctx) error {
	agentID := c.Locals("agent_id").(string)
	code := c.Params("code")

	var mission models.Mission
	if err := s.DB.Where("code = ?", code).First(&mission).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Mission not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	var participation models.MissionParticipation
	if err := s.DB.Where("agent_id = ? AND mission_id = ?", agentID, mission.ID).
		First(&participation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Join the mission before completing it"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	result := s.Credit.CreditAction(c.Context(), agentID, mission.Code, mission.PointsReward,
		fmt.Sprintf("Completed mission: %s", mission.Code))

	switch result.Status {
	case CreditStatusFailed:
		return c.Status(fiber.StatusBadGateway).JSON(result)
	case CreditStatusCredited:
		// Participation bookkeeping rides behind the credit; the claim is the
		// guarantee, this is display state.
		now := time.Now()
		participation.Status = models.ParticipationCompleted
		participation.PointsEarned = mission.PointsReward
		participation.CompletedAt = &now
		if err := s.DB.Save(&participation).Error; err != nil {
			log.Printf("⚠️  Failed to update participation %s: %v", participation.ID, err)
		}
		if err := s.Achievements.EvaluateAchievements(agentID); err != nil {
			log.Printf("⚠️  Achievement evaluation failed for %s: %v", agentID, err)
		}
	}

	return c.JSON(result)
}

// GetAgentMissions lists the authenticated agent's participations, newest first
func (s *MissionService) GetAgentMissions(c *fiber.Ctx) error {
	agentID := c.Locals("agent_id").(string)

	var participations []models.MissionParticipation
	if err := s.DB.Where("agent_id = ?", agentID).
		Preload("Mission").
		Order("joined_at DESC").
		Find(&participations).Error; err != nil {
		log.Printf("DB Error fetching agent missions: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch missions"})
	}
	return c.JSON(participations)
}

// --- Admin Handlers ---

// CreateMission creates a new mission (Admin only)
func (s *MissionService) CreateMission(c *fiber.Ctx) error {
	var req struct {
		Code            string                   `json:"code"`
		Title           string                   `json:"title" validate:"required"`
		Description     string                   `json:"description"`
		Type            models.MissionType       `json:"type" validate:"required"`
		Location        string                   `json:"location"`
		Difficulty      models.MissionDifficulty `json:"difficulty"`
		PointsReward    int64                    `json:"points_reward" validate:"required,min=0"`
		MaxParticipants int                      `json:"max_participants"`
		Status          models.MissionStatus     `json:"status"`
		ExpiresAt       *time.Time               `json:"expires_at"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Title is required"})
	}
	if req.PointsReward < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Reward must be non-negative"})
	}

	// Derive a stable action code from the title when none is given,
	// e.g. "Midnight Extraction" → "MIDNIGHT-EXTRACTION"
	code := req.Code
	if code == "" {
		code = strings.ToUpper(slug.Make(req.Title))
	}

	status := req.Status
	if status == "" {
		status = models.MissionStatusPending
	}
	difficulty := req.Difficulty
	if difficulty == "" {
		difficulty = models.MissionDifficultyMedium
	}

	mission := models.Mission{
		Code:            code,
		Title:           cases.Title(language.English).String(req.Title),
		Description:     req.Description,
		Type:            req.Type,
		Location:        req.Location,
		Difficulty:      difficulty,
		PointsReward:    req.PointsReward,
		MaxParticipants: req.MaxParticipants,
		Status:          status,
		ExpiresAt:       req.ExpiresAt,
	}
	if err := s.DB.Create(&mission).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Mission code already exists"})
		}
		log.Printf("DB Error creating mission: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create mission"})
	}

	return c.Status(fiber.StatusCreated).JSON(mission)
}

// UpdateMission updates an existing mission (Admin only)
func (s *MissionService) UpdateMission(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid mission ID"})
	}

	var mission models.Mission
	if err := s.DB.First(&mission, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Mission not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	var req struct {
		Title           *string                   `json:"title"`
		Description     *string                   `json:"description"`
		Type            *models.MissionType       `json:"type"`
		Location        *string                   `json:"location"`
		Difficulty      *models.MissionDifficulty `json:"difficulty"`
		PointsReward    *int64                    `json:"points_reward"`
		MaxParticipants *int                      `json:"max_participants"`
		Status          *models.MissionStatus     `json:"status"`
		ExpiresAt       *time.Time                `json:"expires_at"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if req.Title != nil {
		mission.Title = *req.Title
	}
	if req.Description != nil {
		mission.Description = *req.Description
	}
	if req.Type != nil {
		mission.Type = *req.Type
	}
	if req.Location != nil {
		mission.Location = *req.Location
	}
	if req.Difficulty != nil {
		mission.Difficulty = *req.Difficulty
	}
	if req.PointsReward != nil {
		if *req.PointsReward < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Reward must be non-negative"})
		}
		mission.PointsReward = *req.PointsReward
	}
	if req.MaxParticipants != nil {
		mission.MaxParticipants = *req.MaxParticipants
	}
	if req.Status != nil {
		mission.Status = *req.Status
	}
	if req.ExpiresAt != nil {
		mission.ExpiresAt = req.ExpiresAt
	}

	if err := s.DB.Save(&mission).Error; err != nil {
		log.Printf("DB Error updating mission: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update mission"})
	}
	return c.JSON(mission)
}

// DeleteMission soft-deletes a mission (Admin only)
func (s *MissionService) DeleteMission(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid mission ID"})
	}

	var mission models.Mission
	if err := s.DB.First(&mission, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Mission not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	if err := s.DB.Delete(&mission).Error; err != nil {
		log.Printf("DB Error deleting mission: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete mission"})
	}
	return c.JSON(fiber.Map{"message": "Mission deleted successfully"})
}

// UploadBriefing attaches a briefing asset (image/pdf) to a mission via R2 (Admin only)
func (s *MissionService) UploadBriefing(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid mission ID"})
	}

	var mission models.Mission
	if err := s.DB.First(&mission, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Mission not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	fileHeader, err := c.FormFile("briefing")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "briefing file is required"})
	}

	key := fmt.Sprintf("briefings/%s%s", mission.ID, filepath.Ext(fileHeader.Filename))
	url, err := utils.UploadFileToR2(fileHeader, key)
	if err != nil {
		log.Printf("R2 upload failed for mission %s: %v", mission.ID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Failed to upload briefing"})
	}

	mission.BriefingURL = url
	if err := s.DB.Save(&mission).Error; err != nil {
		log.Printf("DB Error saving briefing URL: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save briefing URL"})
	}

	return c.JSON(fiber.Map{"message": "Briefing uploaded", "briefing_url": url})
}
