package models

import "time"

// Claim = proof that an agent was already credited for an action.
// The composite unique index on (agent_id, action_code) is the single
// mechanism that makes crediting at-most-once under concurrent callers.
type Claim struct {
	ID            string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	AgentID       string    `gorm:"not null;uniqueIndex:idx_claims_agent_action" json:"agent_id"`
	ActionCode    string    `gorm:"not null;uniqueIndex:idx_claims_agent_action" json:"action_code"` // e.g., "CLICK_MISSION"
	PointsAwarded int64     `gorm:"not null" json:"points_awarded"`
	ClaimedAt     time.Time `json:"claimed_at" gorm:"autoCreateTime"`
}
