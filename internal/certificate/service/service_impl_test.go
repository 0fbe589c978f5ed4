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
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/sublyhq/subly/internal/certificate/domain"
	"github.com/sublyhq/subly/internal/clock"
	eventsdomain "github.com/sublyhq/subly/internal/events/domain"
)

func newTestService(t *testing.T) (*gorm.DB, domain.Service, *snowflake.Node) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&domain.Certificate{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	svc := NewService(Params{DB: db, Log: zap.NewNop(), GenID: node, Clock: clk})
	return db, svc, node
}

func TestIssueFromEvent(t *testing.T) {
	db, svc, node := newTestService(t)
	ctx := context.Background()

	ev := eventsdomain.Event{
		ID:        node.Generate(),
		Type:      eventsdomain.EventProviderRegistered,
		DedupeKey: "provider:prov",
		Payload:   datatypes.JSONMap{"wallet": "prov", "name": "Acme"},
	}
	cert, err := svc.IssueFromEvent(ctx, ev)
	require.NoError(t, err)
	require.Equal(t, domain.KindProviderBadge, cert.Kind)
	require.Equal(t, "prov", cert.Wallet)
	require.Equal(t, "provider:prov", cert.RefKey)

	// Reprocessing the same event is a no-op.
	_, err = svc.IssueFromEvent(ctx, ev)
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&domain.Certificate{}).Count(&count).Error)
	require.Equal(t, int64(1), count)

	certs, err := svc.ListByWallet(ctx, "prov")
	require.NoError(t, err)
	require.Len(t, certs, 1)
}

func TestIssueFromEvent_UnsupportedType(t *testing.T) {
	_, svc, node := newTestService(t)

	_, err := svc.IssueFromEvent(context.Background(), eventsdomain.Event{
		ID:        node.Generate(),
		Type:      eventsdomain.EventPaymentExecuted,
		DedupeKey: "payment:1:1",
	})
	require.ErrorIs(t, err, domain.ErrUnsupportedEvent)
}
