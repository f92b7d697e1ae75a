package models

import "time"

// TransactionType classifies a points ledger entry
type TransactionType string

const (
	TransactionEarned  TransactionType = "earned"
	TransactionSpent   TransactionType = "spent"
	TransactionBonus   TransactionType = "bonus"
	TransactionPenalty TransactionType = "penalty"
	TransactionRefund  TransactionType = "refund"
)

// PointsTransaction is an append-only ledger entry. Rows are written alongside
// credits (best-effort) and the one-time welcome bonus; they are never mutated.
type PointsTransaction struct {
	ID          string          `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	AgentID     string          `gorm:"index;not null" json:"agent_id"`
	MissionID   *string         `gorm:"index" json:"mission_id,omitempty"`
	Amount      int64           `gorm:"not null" json:"amount"`
	Type        TransactionType `gorm:"not null" json:"type"`
	Description string          `gorm:"type:text" json:"description"`
	CreatedAt   time.Time       `json:"created_at" gorm:"autoCreateTime"`
}
