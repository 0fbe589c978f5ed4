// Package domain defines the transactional event outbox.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type EventType string

const (
	EventProviderRegistered EventType = "provider.registered"
	EventServiceRegistered  EventType = "service.registered"
	EventSubscribed         EventType = "subscription.created"
	EventUnsubscribed       EventType = "subscription.cancelled"
	EventPaymentExecuted    EventType = "payment.executed"
)

// Event is an outbox row written in the same transaction as the state
// change it describes and consumed asynchronously by the scheduler.
type Event struct {
	ID          snowflake.ID      `gorm:"primaryKey"`
	Type        EventType         `gorm:"type:text;not null;index"`
	DedupeKey   string            `gorm:"type:text;not null;uniqueIndex"`
	Payload     datatypes.JSONMap `gorm:"type:jsonb"`
	ProcessedAt *time.Time        `gorm:"index"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Event) TableName() string { return "events" }
