// Package domain contains persistence models for custodial user balances.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// UserAccount tracks one wallet's custodial funds, in smallest native
// units. Invariant: 0 <= Locked <= Deposited after every operation.
type UserAccount struct {
	ID                snowflake.ID `gorm:"primaryKey"`
	Wallet            string       `gorm:"type:text;not null;uniqueIndex"`
	Deposited         int64        `gorm:"not null;default:0"`
	Locked            int64        `gorm:"not null;default:0"`
	Staked            int64        `gorm:"not null;default:0"`
	SubscriptionCount int64        `gorm:"not null;default:0"`
	CreatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (UserAccount) TableName() string { return "user_accounts" }

// Available is the withdrawable portion of the balance.
func (u UserAccount) Available() int64 {
	if u.Locked >= u.Deposited {
		return 0
	}
	return u.Deposited - u.Locked
}

// StakeAccount tracks one wallet's position in the external yield pool.
type StakeAccount struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	Wallet           string       `gorm:"type:text;not null;uniqueIndex"`
	StakedAmount     int64        `gorm:"not null;default:0"`
	PoolTokenAmount  int64        `gorm:"not null;default:0"`
	StakeDate        time.Time    `gorm:"not null"`
	LastYieldClaim   *time.Time   `gorm:""`
	TotalYieldEarned int64        `gorm:"not null;default:0"`
	IsActive         bool         `gorm:"not null;default:true"`
	CreatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (StakeAccount) TableName() string { return "stake_accounts" }
