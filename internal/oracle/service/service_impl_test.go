package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sublyhq/subly/internal/clock"
	oracledomain "github.com/sublyhq/subly/internal/oracle/domain"
)

func newTestService(t *testing.T) (*gorm.DB, oracledomain.Service) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&oracledomain.Quote{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return db, NewService(Params{DB: db, Log: zap.NewNop(), GenID: node, Clock: clk})
}

func TestGetPriceCents_Normalization(t *testing.T) {
	db, svc := newTestService(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// 100 x 10^0 dollars per unit = 10000 cents.
	require.NoError(t, svc.Put(ctx, "native-usd", 100, 0, now))
	cents, err := svc.GetPriceCents(ctx, db, "native-usd", now)
	require.NoError(t, err)
	require.Equal(t, int64(10_000), cents)

	// 1500 x 10^-2 dollars per unit = 1500 cents.
	require.NoError(t, svc.Put(ctx, "alt-usd", 1_500, -2, now))
	cents, err = svc.GetPriceCents(ctx, db, "alt-usd", now)
	require.NoError(t, err)
	require.Equal(t, int64(1_500), cents)
}

func TestGetPriceCents_Upsert(t *testing.T) {
	db, svc := newTestService(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, svc.Put(ctx, "native-usd", 100, 0, now))
	require.NoError(t, svc.Put(ctx, "native-usd", 120, 0, now.Add(time.Minute)))

	cents, err := svc.GetPriceCents(ctx, db, "native-usd", now.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, int64(12_000), cents)
}

func TestGetPriceCents_MissingFeed(t *testing.T) {
	db, svc := newTestService(t)

	_, err := svc.GetPriceCents(context.Background(), db, "unknown-feed", time.Now().UTC())
	require.ErrorIs(t, err, oracledomain.ErrPriceNotAvailable)
}

func TestGetPriceCents_Stale(t *testing.T) {
	db, svc := newTestService(t)
	ctx := context.Background()
	published := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, svc.Put(ctx, "native-usd", 100, 0, published))

	// Just inside the freshness window.
	_, err := svc.GetPriceCents(ctx, db, "native-usd", published.Add(59*time.Minute))
	require.NoError(t, err)

	_, err = svc.GetPriceCents(ctx, db, "native-usd", published.Add(2*time.Hour))
	require.ErrorIs(t, err, oracledomain.ErrPriceNotAvailable)
}

func TestGetPriceCents_SanityBand(t *testing.T) {
	db, svc := newTestService(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// 500 cents is below the accepted band.
	require.NoError(t, svc.Put(ctx, "too-low", 5, 0, now))
	_, err := svc.GetPriceCents(ctx, db, "too-low", now)
	require.ErrorIs(t, err, oracledomain.ErrInvalidPrice)

	// 200000 cents is above it.
	require.NoError(t, svc.Put(ctx, "too-high", 2_000, 0, now))
	_, err = svc.GetPriceCents(ctx, db, "too-high", now)
	require.ErrorIs(t, err, oracledomain.ErrInvalidPrice)

	// Band edges are accepted.
	require.NoError(t, svc.Put(ctx, "floor", 10, 0, now))
	cents, err := svc.GetPriceCents(ctx, db, "floor", now)
	require.NoError(t, err)
	require.Equal(t, int64(1_000), cents)
}

// A settlement transaction holds the pool's only connection here; the
// quote read must go through that same transaction or the lookup would
// wait on the pool forever.
func TestGetPriceCents_InsideTransaction(t *testing.T) {
	db, svc := newTestService(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, svc.Put(ctx, "native-usd", 100, 0, now))

	err := db.Transaction(func(tx *gorm.DB) error {
		cents, err := svc.GetPriceCents(ctx, tx, "native-usd", now)
		if err != nil {
			return err
		}
		require.Equal(t, int64(10_000), cents)
		return nil
	})
	require.NoError(t, err)
}

func TestNormalizeCents_InvalidInputs(t *testing.T) {
	_, err := normalizeCents(0, 0)
	require.ErrorIs(t, err, oracledomain.ErrInvalidPrice)

	_, err = normalizeCents(-5, 0)
	require.ErrorIs(t, err, oracledomain.ErrInvalidPrice)

	// Exponent far outside the representable range.
	_, err = normalizeCents(1, 19)
	require.Error(t, err)
}
