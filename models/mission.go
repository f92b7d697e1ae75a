package models

import (
	"time"

	"gorm.io/gorm"
)

// MissionStatus indicates the lifecycle state of a mission
type MissionStatus string

const (
	MissionStatusActive    MissionStatus = "active"
	MissionStatusPending   MissionStatus = "pending"
	MissionStatusCompleted MissionStatus = "completed"
	MissionStatusCancelled MissionStatus = "cancelled"
)

// MissionDifficulty buckets
type MissionDifficulty string

const (
	MissionDifficultyMedium   MissionDifficulty = "Medium"
	MissionDifficultyHigh     MissionDifficulty = "High"
	MissionDifficultyCritical MissionDifficulty = "Critical"
)

// MissionType categorizes the operation
type MissionType string

const (
	MissionTypeIntelligence MissionType = "Intelligence"
	MissionTypeCyber        MissionType = "Cyber"
	MissionTypeSurveillance MissionType = "Surveillance"
	MissionTypeExtraction   MissionType = "Extraction"
	MissionTypeInterception MissionType = "Interception"
	MissionTypeCounterIntel MissionType = "Counter-Intel"
)

// Mission is a reward-able operation in the catalog. Its Code doubles as the
// action code of the claim written when an agent completes it.
type Mission struct {
	ID              string            `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Code            string            `gorm:"uniqueIndex;not null" json:"code"` // e.g., "CLICK_MISSION"
	Title           string            `gorm:"not null" json:"title"`
	Description     string            `gorm:"type:text" json:"description"`
	Type            MissionType       `gorm:"not null" json:"type"`
	Location        string            `json:"location"`
	Difficulty      MissionDifficulty `gorm:"not null;default:'Medium'" json:"difficulty"`
	PointsReward    int64             `gorm:"not null" json:"points_reward"`
	MaxParticipants int               `json:"max_participants"`
	BriefingURL     string            `gorm:"type:text" json:"briefing_url"`
	Status          MissionStatus     `gorm:"not null;default:'pending';index" json:"status"`
	ExpiresAt       *time.Time        `json:"expires_at,omitempty"`
	CreatedAt       time.Time         `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time         `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt       gorm.DeletedAt    `gorm:"index" json:"-"`
}

// ParticipationStatus for an agent's enrollment in a mission
type ParticipationStatus string

const (
	ParticipationJoined    ParticipationStatus = "joined"
	ParticipationCompleted ParticipationStatus = "completed"
)

// MissionParticipation records that an agent joined (and possibly finished)
// a mission. One row per agent per mission.
type MissionParticipation struct {
	ID           string              `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	AgentID      string              `gorm:"not null;uniqueIndex:idx_participation_agent_mission" json:"agent_id"`
	MissionID    string              `gorm:"not null;uniqueIndex:idx_participation_agent_mission" json:"mission_id"`
	Status       ParticipationStatus `gorm:"not null;default:'joined'" json:"status"`
	PointsEarned int64               `json:"points_earned" gorm:"default:0"`
	JoinedAt     time.Time           `json:"joined_at" gorm:"autoCreateTime"`
	CompletedAt  *time.Time          `json:"completed_at,omitempty"`

	Mission *Mission `gorm:"foreignKey:MissionID" json:"mission,omitempty"`
}
