// Package domain contains issued membership certificates.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Kind string

const (
	KindProviderBadge           Kind = "provider_badge"
	KindServiceBadge            Kind = "service_badge"
	KindSubscriptionCertificate Kind = "subscription_certificate"
)

// Certificate is a non-transferable proof row issued asynchronously
// after a registration or subscription settles. RefKey carries the
// originating event's dedupe key so reprocessing is harmless.
type Certificate struct {
	ID       snowflake.ID      `gorm:"primaryKey"`
	Kind     Kind              `gorm:"type:text;not null;index"`
	Wallet   string            `gorm:"type:text;not null;index"`
	RefKey   string            `gorm:"type:text;not null;uniqueIndex"`
	Details  datatypes.JSONMap `gorm:"type:jsonb"`
	IssuedAt time.Time         `gorm:"not null"`
}

// TableName sets the database table name.
func (Certificate) TableName() string { return "certificates" }
