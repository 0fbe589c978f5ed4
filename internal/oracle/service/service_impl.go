package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"github.com/sublyhq/subly/internal/clock"
	oracledomain "github.com/sublyhq/subly/internal/oracle/domain"
	"github.com/sublyhq/subly/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// MaxQuoteAge bounds how old a reading may be before payments reject it.
	MaxQuoteAge = time.Hour

	// Sanity band for the normalized price, in cents per native unit.
	minPriceCents = 1_000
	maxPriceCents = 100_000

	cacheTTL       = 30 * time.Second
	cacheKeyPrefix = "oracle:cents:"
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	redis *redis.Client
}

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Redis *redis.Client `optional:"true"`
}

func NewService(p Params) oracledomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("oracle.service"),
		genID: p.GenID,
		clock: p.Clock,
		redis: p.Redis,
	}
}

func (s *Service) Put(ctx context.Context, feed string, price int64, exponent int32, publishedAt time.Time) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "feed"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"price", "exponent", "published_at", "updated_at",
		}),
	}).Create(&oracledomain.Quote{
		ID:          s.genID.Generate(),
		Feed:        feed,
		Price:       price,
		Exponent:    exponent,
		PublishedAt: publishedAt.UTC(),
		UpdatedAt:   s.clock.Now().UTC(),
	}).Error
	if err != nil {
		return err
	}

	if s.redis != nil {
		s.redis.Del(ctx, cacheKeyPrefix+feed)
	}
	return nil
}

// GetPriceCents reads through the caller's transaction so the quote is
// part of the same atomic step as the settlement that prices against it.
func (s *Service) GetPriceCents(ctx context.Context, tx *gorm.DB, feed string, now time.Time) (int64, error) {
	if cents, ok := s.cachedCents(ctx, feed, now); ok {
		return cents, nil
	}

	var quote oracledomain.Quote
	err := tx.WithContext(ctx).Where("feed = ?", feed).Limit(1).Find(&quote).Error
	if err != nil {
		return 0, err
	}
	if quote.ID == 0 {
		return 0, oracledomain.ErrPriceNotAvailable
	}

	if now.Sub(quote.PublishedAt) > MaxQuoteAge {
		s.log.Warn("stale oracle quote",
			zap.String("feed", feed),
			zap.Time("published_at", quote.PublishedAt),
		)
		return 0, oracledomain.ErrPriceNotAvailable
	}

	cents, err := normalizeCents(quote.Price, quote.Exponent)
	if err != nil {
		return 0, err
	}
	if cents < minPriceCents || cents > maxPriceCents {
		return 0, oracledomain.ErrInvalidPrice
	}

	if s.redis != nil {
		entry := fmt.Sprintf("%d|%d", cents, quote.PublishedAt.Unix())
		s.redis.Set(ctx, cacheKeyPrefix+feed, entry, cacheTTL)
	}
	return cents, nil
}

// cachedCents returns a cached normalized price only when the cached
// reading is still fresh against the caller's now. Entries carry the
// quote's publish time so a cached value is held to the same staleness
// bound as a database read.
func (s *Service) cachedCents(ctx context.Context, feed string, now time.Time) (int64, bool) {
	if s.redis == nil {
		return 0, false
	}
	entry, err := s.redis.Get(ctx, cacheKeyPrefix+feed).Result()
	if err != nil {
		return 0, false
	}
	parts := strings.SplitN(entry, "|", 2)
	if len(parts) != 2 {
		return 0, false
	}
	cents, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, false
	}
	published, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, false
	}
	if now.Sub(time.Unix(published, 0)) > MaxQuoteAge {
		return 0, false
	}
	return cents, true
}

// normalizeCents converts price x 10^exponent (fee units per native unit)
// into integer cents, widening intermediates and failing on overflow.
func normalizeCents(price int64, exponent int32) (int64, error) {
	if price <= 0 {
		return 0, oracledomain.ErrInvalidPrice
	}

	if exponent >= 0 {
		scale, err := pow10(exponent)
		if err != nil {
			return 0, err
		}
		scaled, err := money.Mul(price, scale)
		if err != nil {
			return 0, err
		}
		return money.Mul(scaled, 100)
	}

	divisor, err := pow10(-exponent)
	if err != nil {
		return 0, err
	}
	return money.MulDiv(price, 100, divisor)
}

func pow10(n int32) (int64, error) {
	// 10^19 overflows int64.
	if n < 0 || n > 18 {
		return 0, money.ErrOverflow
	}
	result := int64(1)
	for i := int32(0); i < n; i++ {
		result *= 10
	}
	return result, nil
}
