// Package domain contains oracle price quotes. Quotes are written by an
// external feeder process; the core only ever reads the latest row per feed.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Quote is a raw price reading: value = Price x 10^Exponent, in the fee
// denomination per one native unit.
type Quote struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	Feed        string       `gorm:"type:text;not null;uniqueIndex"`
	Price       int64        `gorm:"not null"`
	Exponent    int32        `gorm:"not null"`
	PublishedAt time.Time    `gorm:"not null"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Quote) TableName() string { return "oracle_quotes" }

type Service interface {
	// Put upserts the latest quote for a feed (feeder/test surface).
	Put(ctx context.Context, feed string, price int64, exponent int32, publishedAt time.Time) error

	// GetPriceCents returns the feed's price normalized to integer cents,
	// rejecting stale readings and values outside the sanity band. It
	// reads through tx so settlement prices against the transaction's
	// own snapshot.
	GetPriceCents(ctx context.Context, tx *gorm.DB, feed string, now time.Time) (int64, error)
}

var (
	ErrPriceNotAvailable = errors.New("price_not_available")
	ErrInvalidPrice      = errors.New("invalid_price")
)
