// Package domain contains the settled-payment record model.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// PaymentRecord is an immutable settlement entry. One row per executed
// billing cycle.
type PaymentRecord struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	SubscriptionID snowflake.ID `gorm:"not null;index"`
	Wallet         string       `gorm:"type:text;not null;index"`
	ProviderWallet string       `gorm:"type:text;not null;index"`
	ServiceID      int64        `gorm:"not null"`
	FeeUSDCents    int64        `gorm:"not null"`
	PriceCents     int64        `gorm:"not null"`
	AmountNative   int64        `gorm:"not null"`
	ProtocolFee    int64        `gorm:"not null"`
	ProviderAmount int64        `gorm:"not null"`
	FeeBps         int64        `gorm:"not null"`
	PaidAt         time.Time    `gorm:"not null;index"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (PaymentRecord) TableName() string { return "payment_records" }
