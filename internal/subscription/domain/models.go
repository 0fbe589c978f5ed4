// Package domain contains the subscription lifecycle models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// UserSubscription is one wallet's active or terminated subscription to
// a catalog offering. Terminated rows are never reactivated; each
// resubscribe creates a new row.
type UserSubscription struct {
	ID                snowflake.ID `gorm:"primaryKey"`
	Wallet            string       `gorm:"type:text;not null;index:ix_sub_wallet"`
	ServiceRowID      snowflake.ID `gorm:"not null;index"`
	ProviderWallet    string       `gorm:"type:text;not null;index"`
	ServiceID         int64        `gorm:"not null"`
	StartDate         time.Time    `gorm:"not null"`
	LastPaymentAt     *time.Time   `gorm:""`
	NextPaymentDue    time.Time    `gorm:"not null;index:ix_sub_due"`
	TotalPaymentsMade int64        `gorm:"not null;default:0"`
	LockedAmount      int64        `gorm:"not null;default:0"`
	IsActive          bool         `gorm:"not null;default:true;index:ix_sub_due"`
	UnsubscribedAt    *time.Time   `gorm:""`
	CreatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (UserSubscription) TableName() string { return "user_subscriptions" }
