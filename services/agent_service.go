// services/agent_service.go
package services

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strconv"

	"agent-mission-system/models"
	"agent-mission-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AgentService struct {
	DB     *gorm.DB
	Ledger Ledger
	Credit *CreditFlow
}

func NewAgentService(db *gorm.DB, ledger Ledger, credit *CreditFlow) *AgentService {
	return &AgentService{DB: db, Ledger: ledger, Credit: credit}
}

// Connect resolves the wallet address into an identity, creating the record
// (with the one-time welcome grant) on first connect. Losing a concurrent
// creation race just means someone else created it — re-fetch and proceed.
func (s *AgentService) Connect(c *fiber.Ctx) error {
	var req struct {
		WalletAddress string `json:"wallet_address" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	resolved, err := ResolveIdentity(req.WalletAddress)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid wallet address"})
	}

	agent, err := s.Ledger.FetchIdentity(c.Context(), resolved.WalletAddress)
	if err != nil {
		log.Printf("Ledger error fetching identity: %v", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Ledger unavailable"})
	}

	created := false
	if agent == nil {
		agent, err = s.Ledger.CreateIdentity(c.Context(), resolved.WalletAddress, resolved.Codename)
		if errors.Is(err, ErrDuplicateIdentity) {
			// Another tab or caller won the creation race.
			agent, err = s.Ledger.FetchIdentity(c.Context(), resolved.WalletAddress)
			if err == nil && agent == nil {
				err = ErrRemoteUnavailable
			}
		} else if err == nil {
			created = true
			log.Printf("✅ New agent enrolled: %s (%s)", agent.Codename, agent.ID)
		}
		if err != nil {
			log.Printf("Ledger error creating identity: %v", err)
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Ledger unavailable"})
		}
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(agent)
}

// Me returns the authoritative identity for the authenticated agent — the
// explicit resync read that repairs a stale client cache.
func (s *AgentService) Me(c *fiber.Ctx) error {
	agentID := c.Locals("agent_id").(string)

	agent, err := s.Ledger.FetchIdentityByID(c.Context(), agentID)
	if err != nil {
		log.Printf("Ledger error fetching agent %s: %v", agentID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Ledger unavailable"})
	}
	if agent == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Agent not found"})
	}
	return c.JSON(agent)
}

// GetTransactions returns the agent's points history, newest first
func (s *AgentService) GetTransactions(c *fiber.Ctx) error {
	agentID := c.Locals("agent_id").(string)

	limit := 10
	if limitStr := c.Query("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l <= 0 || l > 100 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid limit parameter"})
		}
		limit = l
	}

	var transactions []models.PointsTransaction
	if err := s.DB.Where("agent_id = ?", agentID).
		Order("created_at DESC").
		Limit(limit).
		Find(&transactions).Error; err != nil {
		log.Printf("DB Error fetching transactions: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch transactions"})
	}
	return c.JSON(transactions)
}

// GetAchievements returns the agent's earned achievements
func (s *AgentService) GetAchievements(c *fiber.Ctx) error {
	agentID := c.Locals("agent_id").(string)

	var awards []models.AgentAchievement
	if err := s.DB.Where("agent_id = ?", agentID).
		Preload("Achievement").
		Order("earned_at DESC").
		Find(&awards).Error; err != nil {
		log.Printf("DB Error fetching achievements: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch achievements"})
	}
	return c.JSON(awards)
}

// UploadAvatar stores the agent's avatar in R2 and records its public URL
func (s *AgentService) UploadAvatar(c *fiber.Ctx) error {
	agentID := c.Locals("agent_id").(string)

	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "avatar file is required"})
	}

	key := fmt.Sprintf("avatars/%s%s", agentID, filepath.Ext(fileHeader.Filename))
	url, err := utils.UploadFileToR2(fileHeader, key)
	if err != nil {
		log.Printf("R2 upload failed for agent %s: %v", agentID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Failed to upload avatar"})
	}

	if err := s.DB.Model(&models.Agent{}).Where("id = ?", agentID).
		Update("avatar_url", url).Error; err != nil {
		log.Printf("DB Error saving avatar URL: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save avatar URL"})
	}

	return c.JSON(fiber.Map{"message": "Avatar uploaded", "avatar_url": url})
}

// ResetClaims bulk-deletes one agent's claim set (Admin only).
// Debug/testing affordance — not a production guarantee.
func (s *AgentService) ResetClaims(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid agent ID"})
	}

	result := s.DB.Where("agent_id = ?", id).Delete(&models.Claim{})
	if result.Error != nil {
		log.Printf("DB Error resetting claims for %s: %v", id, result.Error)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to reset claims"})
	}

	log.Printf("🧹 Claims reset for agent %s (%d removed)", id, result.RowsAffected)
	return c.JSON(fiber.Map{"message": "Claims reset", "removed": result.RowsAffected})
}

// GrantCredit lets an admin credit an agent for an arbitrary action code
// (Admin only). Runs through the same flow as mission completion, so granting
// the same action twice is AlreadyClaimed, not a double payment.
func (s *AgentService) GrantCredit(c *fiber.Ctx) error {
	var req struct {
		AgentID    string `json:"agent_id" validate:"required,uuid"`
		ActionCode string `json:"action_code" validate:"required"`
		Amount     int64  `json:"amount" validate:"required,min=0"`
		Reason     string `json:"reason" validate:"max=255"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if _, err := uuid.Parse(req.AgentID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid agent ID"})
	}
	if req.ActionCode == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Action code is required"})
	}
	if req.Amount < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Amount must be non-negative"})
	}

	description := req.Reason
	if description == "" {
		description = "Admin grant: " + req.ActionCode
	}

	result := s.Credit.CreditAction(c.Context(), req.AgentID, req.ActionCode, req.Amount, description)
	if result.Status == CreditStatusFailed {
		return c.Status(fiber.StatusBadGateway).JSON(result)
	}
	return c.JSON(result)
}

// GetLeaderboard returns the top agents by total points
func (s *AgentService) GetLeaderboard(c *fiber.Ctx) error {
	limit := 10
	if limitStr := c.Query("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l <= 0 || l > 100 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid limit parameter"})
		}
		limit = l
	}

	type LeaderboardEntry struct {
		Codename    string `json:"codename"`
		TotalPoints int64  `json:"total_points"`
		Level       int    `json:"level"`
		Position    int    `json:"position"`
	}

	var agents []models.Agent
	if err := s.DB.Order("total_points DESC, created_at ASC").
		Limit(limit).
		Find(&agents).Error; err != nil {
		log.Printf("DB Error fetching leaderboard: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch leaderboard"})
	}

	entries := make([]LeaderboardEntry, len(agents))
	for i, a := range agents {
		entries[i] = LeaderboardEntry{
			Codename:    a.Codename,
			TotalPoints: a.TotalPoints,
			Level:       a.Level,
			Position:    i + 1,
		}
	}
	return c.JSON(entries)
}
