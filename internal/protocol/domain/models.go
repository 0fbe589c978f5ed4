// Package domain contains the global protocol configuration record.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// GlobalConfig is the singleton protocol record. Every mutating operation
// loads it and checks the pause flag before touching any other state.
type GlobalConfig struct {
	ID                   snowflake.ID `gorm:"primaryKey"`
	AuthorityWallet      string       `gorm:"type:text;not null;uniqueIndex"`
	ProtocolFeeBps       int64        `gorm:"not null"`
	IsPaused             bool         `gorm:"not null;default:false"`
	OracleFeed           string       `gorm:"type:text;not null"`
	FeeMint              string       `gorm:"type:text;not null"`
	StakePool            string       `gorm:"type:text;not null"`
	TotalServices        int64        `gorm:"not null;default:0"`
	LastBatchProcessedAt *time.Time   `gorm:""`
	CreatedAt            time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt            time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (GlobalConfig) TableName() string { return "global_config" }
