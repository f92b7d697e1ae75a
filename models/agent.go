package models

import (
	"time"

	"gorm.io/gorm"
)

// Agent is the durable identity record for one connected wallet.
// The remote ledger (this table) is authoritative; client caches are not.
type Agent struct {
	ID            string  `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	WalletAddress string  `gorm:"uniqueIndex;not null" json:"wallet_address"`
	Codename      string  `gorm:"index;not null" json:"codename"`
	AvatarURL     *string `json:"avatar_url,omitempty"`

	TotalPoints      int64 `json:"total_points" gorm:"default:0"`
	ExperiencePoints int64 `json:"experience_points" gorm:"default:0"`
	Level            int   `json:"level" gorm:"default:1"`

	// Version guards balance writes (optimistic lock). Every balance update
	// must match the version it read and bump it by one.
	Version int64 `json:"-" gorm:"default:0"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
