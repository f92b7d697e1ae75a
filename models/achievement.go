package models

import "time"

// Achievement: static config (seeded at startup)
type Achievement struct {
	ID             string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Code           string    `gorm:"uniqueIndex;not null" json:"code"` // e.g., "FIRST_CONTACT"
	Name           string    `gorm:"not null" json:"name"`
	Description    string    `json:"description"`
	IconURL        string    `gorm:"type:text" json:"icon_url"`
	ConditionType  string    `gorm:"not null" json:"condition_type"` // points, level, missions_completed
	ConditionValue int64     `gorm:"not null" json:"condition_value"`
	IsActive       bool      `gorm:"default:true" json:"is_active"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// AgentAchievement: awarded instance. The composite unique index keeps each
// achievement at-most-once per agent, same mechanism as claims.
type AgentAchievement struct {
	ID            string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	AgentID       string    `gorm:"not null;uniqueIndex:idx_agent_achievement" json:"agent_id"`
	AchievementID string    `gorm:"not null;uniqueIndex:idx_agent_achievement" json:"achievement_id"`
	EarnedAt      time.Time `json:"earned_at" gorm:"autoCreateTime"`

	Achievement *Achievement `gorm:"foreignKey:AchievementID" json:"achievement,omitempty"`
}

// Seed achievements (example set)
var AchievementSeed = []Achievement{
	{
		Code:           "FIRST_CONTACT",
		Name:           "First Contact",
		Description:    "Connected a wallet and joined the agency",
		ConditionType:  "points",
		ConditionValue: 1,
	},
	{
		Code:           "FIELD_AGENT",
		Name:           "Field Agent",
		Description:    "Completed your first mission",
		ConditionType:  "missions_completed",
		ConditionValue: 1,
	},
	{
		Code:           "OPERATIVE_10",
		Name:           "Seasoned Operative",
		Description:    "Completed 10 missions",
		ConditionType:  "missions_completed",
		ConditionValue: 10,
	},
	{
		Code:           "POINTS_100",
		Name:           "Century Club",
		Description:    "Earned 100 total points",
		ConditionType:  "points",
		ConditionValue: 100,
	},
	{
		Code:           "LEVEL_10",
		Name:           "Section Chief",
		Description:    "Reached level 10",
		ConditionType:  "level",
		ConditionValue: 10,
	},
}
