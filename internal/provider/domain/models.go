// Package domain contains provider and service catalog models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	MaxNameLength        = 64
	MaxDescriptionLength = 200
	MaxURLLength         = 200
)

// Provider is a merchant identity keyed by wallet.
type Provider struct {
	ID           snowflake.ID      `gorm:"primaryKey"`
	Wallet       string            `gorm:"type:text;not null;uniqueIndex"`
	Name         string            `gorm:"type:text;not null"`
	IsActive     bool              `gorm:"not null;default:true"`
	TotalRevenue int64             `gorm:"not null;default:0"`
	FeesEarned   int64             `gorm:"not null;default:0"`
	ServiceCount int64             `gorm:"not null;default:0"`
	Metadata     datatypes.JSONMap `gorm:"type:jsonb"`
	JoinedAt     time.Time         `gorm:"not null"`
	UpdatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Provider) TableName() string { return "providers" }

// SubscriptionService is one billable offering. ServiceID is a
// per-provider sequence assigned at registration.
type SubscriptionService struct {
	ID                   snowflake.ID `gorm:"primaryKey"`
	ProviderID           snowflake.ID `gorm:"not null;index;uniqueIndex:ux_provider_service_seq,priority:1"`
	ServiceID            int64        `gorm:"not null;uniqueIndex:ux_provider_service_seq,priority:2"`
	ProviderWallet       string       `gorm:"type:text;not null;index"`
	Name                 string       `gorm:"type:text;not null"`
	Description          string       `gorm:"type:text;not null"`
	URL                  string       `gorm:"type:text;not null"`
	FeeUSDCents          int64        `gorm:"not null"`
	BillingFrequencyDays int64        `gorm:"not null"`
	SubscriberCap        *int64       `gorm:""`
	IsActive             bool         `gorm:"not null;default:true"`
	TotalSubscribers     int64        `gorm:"not null;default:0"`
	CreatedAt            time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt            time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (SubscriptionService) TableName() string { return "subscription_services" }

// Period is the billing interval as a duration.
func (s SubscriptionService) Period() time.Duration {
	return time.Duration(s.BillingFrequencyDays) * 24 * time.Hour
}
