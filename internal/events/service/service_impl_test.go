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
	"github.com/sublyhq/subly/internal/events/domain"
)

func newTestOutbox(t *testing.T) (*gorm.DB, domain.Publisher, domain.Consumer) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&domain.Event{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	publisher, consumer := NewOutbox(Params{DB: db, Log: zap.NewNop(), GenID: node, Clock: clk})
	return db, publisher, consumer
}

func TestPublishTx_Dedupe(t *testing.T) {
	db, publisher, consumer := newTestOutbox(t)
	ctx := context.Background()

	require.NoError(t, publisher.PublishTx(ctx, db, domain.EventSubscribed, "subscribe:1", map[string]any{"wallet": "alice"}))
	// A retried transaction republishes the same key; the second row is
	// dropped silently.
	require.NoError(t, publisher.PublishTx(ctx, db, domain.EventSubscribed, "subscribe:1", map[string]any{"wallet": "alice"}))
	require.NoError(t, publisher.PublishTx(ctx, db, domain.EventSubscribed, "subscribe:2", map[string]any{"wallet": "bob"}))

	batch, err := consumer.PollUnprocessed(ctx, []domain.EventType{domain.EventSubscribed}, 10)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	require.Equal(t, "alice", batch[0].Payload["wallet"])
}

func TestPollUnprocessed_FiltersTypeAndProcessed(t *testing.T) {
	db, publisher, consumer := newTestOutbox(t)
	ctx := context.Background()

	require.NoError(t, publisher.PublishTx(ctx, db, domain.EventProviderRegistered, "provider:prov", map[string]any{"wallet": "prov"}))
	require.NoError(t, publisher.PublishTx(ctx, db, domain.EventPaymentExecuted, "payment:1:1", map[string]any{"wallet": "alice"}))

	batch, err := consumer.PollUnprocessed(ctx, []domain.EventType{domain.EventProviderRegistered}, 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	require.Equal(t, domain.EventProviderRegistered, batch[0].Type)

	require.NoError(t, consumer.MarkProcessed(ctx, batch[0].ID))

	batch, err = consumer.PollUnprocessed(ctx, []domain.EventType{domain.EventProviderRegistered}, 10)
	require.NoError(t, err)
	require.Empty(t, batch)
}
