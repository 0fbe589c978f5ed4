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
	eventsdomain "github.com/sublyhq/subly/internal/events/domain"
	eventsservice "github.com/sublyhq/subly/internal/events/service"
	protocoldomain "github.com/sublyhq/subly/internal/protocol/domain"
	protocolservice "github.com/sublyhq/subly/internal/protocol/service"
	"github.com/sublyhq/subly/internal/provider/domain"
	vaultdomain "github.com/sublyhq/subly/internal/vault/domain"
	vaultservice "github.com/sublyhq/subly/internal/vault/service"
)

type harness struct {
	db       *gorm.DB
	svc      domain.Service
	protocol protocoldomain.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&protocoldomain.GlobalConfig{},
		&vaultdomain.Account{},
		&domain.Provider{},
		&domain.SubscriptionService{},
		&eventsdomain.Event{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zap.NewNop()
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))

	protocol := protocolservice.NewService(protocolservice.Params{DB: db, Log: log, GenID: node, Clock: clk})
	_, err = protocol.Initialize(context.Background(), protocoldomain.InitializeRequest{
		AuthorityWallet: "authority",
		ProtocolFeeBps:  100,
		OracleFeed:      "native-usd",
	})
	require.NoError(t, err)

	vault := vaultservice.NewService(vaultservice.Params{Log: log, GenID: node, Clock: clk})
	publisher, _ := eventsservice.NewOutbox(eventsservice.Params{DB: db, Log: log, GenID: node, Clock: clk})

	svc := NewService(Params{
		DB: db, Log: log, GenID: node, Clock: clk,
		Protocol: protocol, Vault: vault, Events: publisher,
	})
	return &harness{db: db, svc: svc, protocol: protocol}
}

func TestRegisterProvider(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	p, err := h.svc.RegisterProvider(ctx, domain.RegisterProviderRequest{
		Wallet:   "prov",
		Name:     "Acme Streaming",
		Metadata: map[string]any{"tier": "gold"},
	})
	require.NoError(t, err)
	require.True(t, p.IsActive)
	require.Equal(t, int64(0), p.ServiceCount)

	_, err = h.svc.RegisterProvider(ctx, domain.RegisterProviderRequest{Wallet: "prov", Name: "Again"})
	require.ErrorIs(t, err, domain.ErrProviderAlreadyExists)

	// The payout vault is opened at registration.
	var vaultCount int64
	require.NoError(t, h.db.Model(&vaultdomain.Account{}).
		Where("owner_wallet = ? AND kind = ?", "prov", vaultdomain.KindProviderPayout).
		Count(&vaultCount).Error)
	require.Equal(t, int64(1), vaultCount)

	var eventCount int64
	require.NoError(t, h.db.Model(&eventsdomain.Event{}).
		Where("type = ?", eventsdomain.EventProviderRegistered).
		Count(&eventCount).Error)
	require.Equal(t, int64(1), eventCount)
}

func TestRegisterProvider_NameValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.RegisterProvider(ctx, domain.RegisterProviderRequest{Wallet: "p1", Name: ""})
	require.ErrorIs(t, err, domain.ErrNameEmpty)

	_, err = h.svc.RegisterProvider(ctx, domain.RegisterProviderRequest{
		Wallet: "p2",
		Name:   strings.Repeat("x", domain.MaxNameLength+1),
	})
	require.ErrorIs(t, err, domain.ErrNameTooLong)
}

func TestRegisterService(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.RegisterProvider(ctx, domain.RegisterProviderRequest{Wallet: "prov", Name: "Acme"})
	require.NoError(t, err)

	first, err := h.svc.RegisterService(ctx, domain.RegisterServiceRequest{
		Wallet:               "prov",
		Name:                 "Basic",
		FeeUSDCents:          500,
		BillingFrequencyDays: 30,
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), first.ServiceID)
	require.Equal(t, 30*24*time.Hour, first.Period())

	second, err := h.svc.RegisterService(ctx, domain.RegisterServiceRequest{
		Wallet:               "prov",
		Name:                 "Premium",
		FeeUSDCents:          1_500,
		BillingFrequencyDays: 7,
	})
	require.NoError(t, err)
	require.Equal(t, int64(2), second.ServiceID)

	p, err := h.svc.GetProvider(ctx, "prov")
	require.NoError(t, err)
	require.Equal(t, int64(2), p.ServiceCount)

	cfg, err := h.protocol.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), cfg.TotalServices)

	services, err := h.svc.ListServices(ctx, "prov")
	require.NoError(t, err)
	require.Len(t, services, 2)
}

func TestRegisterService_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.RegisterProvider(ctx, domain.RegisterProviderRequest{Wallet: "prov", Name: "Acme"})
	require.NoError(t, err)

	cases := []struct {
		name string
		req  domain.RegisterServiceRequest
		want error
	}{
		{"zero fee", domain.RegisterServiceRequest{Wallet: "prov", Name: "S", FeeUSDCents: 0, BillingFrequencyDays: 30}, domain.ErrInvalidFee},
		{"zero frequency", domain.RegisterServiceRequest{Wallet: "prov", Name: "S", FeeUSDCents: 500, BillingFrequencyDays: 0}, domain.ErrInvalidBillingFrequency},
		{"long description", domain.RegisterServiceRequest{Wallet: "prov", Name: "S", Description: strings.Repeat("d", domain.MaxDescriptionLength+1), FeeUSDCents: 500, BillingFrequencyDays: 30}, domain.ErrDescriptionTooLong},
		{"long url", domain.RegisterServiceRequest{Wallet: "prov", Name: "S", URL: strings.Repeat("u", domain.MaxURLLength+1), FeeUSDCents: 500, BillingFrequencyDays: 30}, domain.ErrURLTooLong},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.svc.RegisterService(ctx, tc.req)
			require.ErrorIs(t, err, tc.want)
		})
	}

	zero := int64(0)
	_, err = h.svc.RegisterService(ctx, domain.RegisterServiceRequest{
		Wallet:               "prov",
		Name:                 "S",
		FeeUSDCents:          500,
		BillingFrequencyDays: 30,
		SubscriberCap:        &zero,
	})
	require.ErrorIs(t, err, domain.ErrInvalidSubscriberCap)

	_, err = h.svc.RegisterService(ctx, domain.RegisterServiceRequest{
		Wallet:               "ghost",
		Name:                 "S",
		FeeUSDCents:          500,
		BillingFrequencyDays: 30,
	})
	require.ErrorIs(t, err, domain.ErrProviderNotFound)
}

func TestSetServiceActive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.RegisterProvider(ctx, domain.RegisterProviderRequest{Wallet: "prov", Name: "Acme"})
	require.NoError(t, err)
	_, err = h.svc.RegisterService(ctx, domain.RegisterServiceRequest{
		Wallet:               "prov",
		Name:                 "Basic",
		FeeUSDCents:          500,
		BillingFrequencyDays: 30,
	})
	require.NoError(t, err)

	svc, err := h.svc.SetServiceActive(ctx, domain.SetServiceActiveRequest{Wallet: "prov", ServiceID: 1, IsActive: false})
	require.NoError(t, err)
	require.False(t, svc.IsActive)

	svc, err = h.svc.SetServiceActive(ctx, domain.SetServiceActiveRequest{Wallet: "prov", ServiceID: 1, IsActive: true})
	require.NoError(t, err)
	require.True(t, svc.IsActive)

	_, err = h.svc.SetServiceActive(ctx, domain.SetServiceActiveRequest{Wallet: "prov", ServiceID: 99, IsActive: false})
	require.ErrorIs(t, err, domain.ErrServiceNotFound)
}

func TestCreditRevenue(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.RegisterProvider(ctx, domain.RegisterProviderRequest{Wallet: "prov", Name: "Acme"})
	require.NoError(t, err)

	require.NoError(t, h.svc.CreditRevenue(ctx, h.db, "prov", 49_500_000, 4_950_000))
	require.NoError(t, h.svc.CreditRevenue(ctx, h.db, "prov", 500_000, 50_000))

	p, err := h.svc.GetProvider(ctx, "prov")
	require.NoError(t, err)
	require.Equal(t, int64(50_000_000), p.TotalRevenue)
	require.Equal(t, int64(5_000_000), p.FeesEarned)
}
