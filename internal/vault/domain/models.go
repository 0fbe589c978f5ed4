// Package domain contains custodial vault accounts. Vaults hold the value
// backing user balances, the protocol treasury, and provider payouts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type AccountKind string

const (
	KindUserVault      AccountKind = "user_vault"
	KindTreasury       AccountKind = "treasury"
	KindProviderPayout AccountKind = "provider_payout"
)

// TreasuryOwner is the well-known owner key of the protocol treasury vault.
const TreasuryOwner = "treasury"

// Account is one custodial vault. NativeBalance is in the smallest
// value-transfer unit, FeeBalance in the smallest fee-denomination unit.
type Account struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	OwnerWallet   string       `gorm:"type:text;not null;uniqueIndex:ux_vault_owner_kind,priority:1"`
	Kind          AccountKind  `gorm:"type:text;not null;uniqueIndex:ux_vault_owner_kind,priority:2"`
	NativeBalance int64        `gorm:"not null;default:0"`
	FeeBalance    int64        `gorm:"not null;default:0"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Account) TableName() string { return "vault_accounts" }
