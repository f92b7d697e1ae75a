package services

import (
	"errors"
	"log"
	"math"

	"agent-mission-system/models"

	"gorm.io/gorm"
)

// LevelConfig: XP needed for *next* level (level n → n+1 costs BaseXPPerLevel * n^1.2)
const BaseXPPerLevel = 100

// levelCap keeps the curve loop bounded for absurd XP totals
const levelCap = 500

// xpForNextLevel returns XP required to go from currentLevel to currentLevel+1
func xpForNextLevel(currentLevel int) int64 {
	if currentLevel < 1 {
		currentLevel = 1
	}
	return int64(float64(BaseXPPerLevel) * math.Pow(float64(currentLevel), 1.2))
}

// LevelForXP maps cumulative XP onto the level curve. Monotonic: more XP never
// yields a lower level.
func LevelForXP(xp int64) int {
	level := 1
	remaining := xp
	for level < levelCap {
		cost := xpForNextLevel(level)
		if remaining < cost {
			break
		}
		remaining -= cost
		level++
	}
	return level
}

// AchievementService auto-awards threshold achievements after credits.
type AchievementService struct {
	DB *gorm.DB
}

func NewAchievementService(db *gorm.DB) *AchievementService {
	return &AchievementService{DB: db}
}

// SeedAchievements inserts the static achievement set, skipping codes that
// already exist. Safe to run on every boot.
func (s *AchievementService) SeedAchievements() error {
	for _, a := range models.AchievementSeed {
		var count int64
		if err := s.DB.Model(&models.Achievement{}).Where("code = ?", a.Code).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			if err := s.DB.Create(&a).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// EvaluateAchievements checks all active achievement conditions for the agent
// and awards anything newly met. The unique index on (agent, achievement)
// absorbs concurrent evaluations.
func (s *AchievementService) EvaluateAchievements(agentID string) error {
	var agent models.Agent
	if err := s.DB.Where("id = ?", agentID).First(&agent).Error; err != nil {
		return err
	}

	var missionsCompleted int64
	if err := s.DB.Model(&models.MissionParticipation{}).
		Where("agent_id = ? AND status = ?", agentID, models.ParticipationCompleted).
		Count(&missionsCompleted).Error; err != nil {
		return err
	}

	var achievements []models.Achievement
	if err := s.DB.Where("is_active = ?", true).Find(&achievements).Error; err != nil {
		return err
	}

	var earnedIDs []string
	if err := s.DB.Model(&models.AgentAchievement{}).
		Where("agent_id = ?", agentID).
		Pluck("achievement_id", &earnedIDs).Error; err != nil {
		return err
	}
	earned := make(map[string]bool, len(earnedIDs))
	for _, id := range earnedIDs {
		earned[id] = true
	}

	for _, a := range achievements {
		if earned[a.ID] {
			continue
		}
		if !conditionMet(&a, &agent, missionsCompleted) {
			continue
		}
		award := models.AgentAchievement{
			AgentID:       agentID,
			AchievementID: a.ID,
		}
		if err := s.DB.Create(&award).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				continue // concurrent evaluation won
			}
			return err
		}
		log.Printf("🎖️ Achievement earned: %s → %s", a.Name, agentID)
	}
	return nil
}

func conditionMet(a *models.Achievement, agent *models.Agent, missionsCompleted int64) bool {
	switch a.ConditionType {
	case "points":
		return agent.TotalPoints >= a.ConditionValue
	case "level":
		return int64(agent.Level) >= a.ConditionValue
	case "missions_completed":
		return missionsCompleted >= a.ConditionValue
	default:
		return false
	}
}
