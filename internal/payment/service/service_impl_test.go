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

	balancedomain "github.com/sublyhq/subly/internal/balance/domain"
	balanceservice "github.com/sublyhq/subly/internal/balance/service"
	"github.com/sublyhq/subly/internal/clock"
	eventsdomain "github.com/sublyhq/subly/internal/events/domain"
	eventsservice "github.com/sublyhq/subly/internal/events/service"
	oracledomain "github.com/sublyhq/subly/internal/oracle/domain"
	oracleservice "github.com/sublyhq/subly/internal/oracle/service"
	"github.com/sublyhq/subly/internal/payment/domain"
	protocoldomain "github.com/sublyhq/subly/internal/protocol/domain"
	protocolservice "github.com/sublyhq/subly/internal/protocol/service"
	providerdomain "github.com/sublyhq/subly/internal/provider/domain"
	providerservice "github.com/sublyhq/subly/internal/provider/service"
	subscriptiondomain "github.com/sublyhq/subly/internal/subscription/domain"
	subscriptionservice "github.com/sublyhq/subly/internal/subscription/service"
	vaultdomain "github.com/sublyhq/subly/internal/vault/domain"
	vaultservice "github.com/sublyhq/subly/internal/vault/service"
)

const oracleFeed = "native-usd"

type fakePool struct{}

func (fakePool) Deposit(amount int64) (int64, error) { return amount, nil }

func (fakePool) Withdraw(poolTokens int64) (int64, error) { return poolTokens, nil }

type harness struct {
	db           *gorm.DB
	clk          *clock.FakeClock
	svc          domain.Service
	protocol     protocoldomain.Service
	oracle       oracledomain.Service
	provider     providerdomain.Service
	balance      balancedomain.Service
	subscription subscriptiondomain.Service
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
		&oracledomain.Quote{},
		&balancedomain.UserAccount{},
		&balancedomain.StakeAccount{},
		&providerdomain.Provider{},
		&providerdomain.SubscriptionService{},
		&subscriptiondomain.UserSubscription{},
		&domain.PaymentRecord{},
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
		OracleFeed:      oracleFeed,
	})
	require.NoError(t, err)

	vault := vaultservice.NewService(vaultservice.Params{Log: log, GenID: node, Clock: clk})
	oracle := oracleservice.NewService(oracleservice.Params{DB: db, Log: log, GenID: node, Clock: clk})
	publisher, _ := eventsservice.NewOutbox(eventsservice.Params{DB: db, Log: log, GenID: node, Clock: clk})
	balance := balanceservice.NewService(balanceservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk,
		Protocol: protocol, Vault: vault, StakePool: fakePool{},
	})
	provider := providerservice.NewService(providerservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk,
		Protocol: protocol, Vault: vault, Events: publisher,
	})
	subscription := subscriptionservice.NewService(subscriptionservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk,
		Protocol: protocol, Provider: provider, Balance: balance, Events: publisher,
	})
	svc := NewService(Params{
		DB: db, Log: log, GenID: node, Clock: clk,
		Protocol: protocol, Oracle: oracle, Provider: provider,
		Balance: balance, Subscription: subscription, Vault: vault,
		Events: publisher,
	})

	return &harness{
		db:           db,
		clk:          clk,
		svc:          svc,
		protocol:     protocol,
		oracle:       oracle,
		provider:     provider,
		balance:      balance,
		subscription: subscription,
	}
}

// subscribe registers a 500 cent / 30 day offering for "prov", deposits
// 10e9 native units for "alice" and subscribes her.
func (h *harness) subscribe(t *testing.T) *subscriptiondomain.UserSubscription {
	t.Helper()
	ctx := context.Background()

	_, err := h.provider.RegisterProvider(ctx, providerdomain.RegisterProviderRequest{Wallet: "prov", Name: "Acme"})
	require.NoError(t, err)
	_, err = h.provider.RegisterService(ctx, providerdomain.RegisterServiceRequest{
		Wallet:               "prov",
		Name:                 "Premium",
		FeeUSDCents:          500,
		BillingFrequencyDays: 30,
	})
	require.NoError(t, err)

	_, err = h.balance.Deposit(ctx, balancedomain.DepositRequest{Wallet: "alice", Amount: 10_000_000_000})
	require.NoError(t, err)

	sub, err := h.subscription.Subscribe(ctx, subscriptiondomain.SubscribeRequest{
		Wallet:         "alice",
		ProviderWallet: "prov",
		ServiceID:      1,
	})
	require.NoError(t, err)
	return sub
}

func (h *harness) putFreshQuote(t *testing.T) {
	t.Helper()
	// 100 dollars per native unit, quoted in whole dollars.
	require.NoError(t, h.oracle.Put(context.Background(), oracleFeed, 100, 0, h.clk.Now()))
}

func TestExecutePayment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sub := h.subscribe(t)

	h.clk.Advance(30 * 24 * time.Hour)
	h.putFreshQuote(t)

	record, err := h.svc.ExecutePayment(ctx, domain.ExecuteRequest{SubscriptionID: sub.ID})
	require.NoError(t, err)

	// 500 cents at 10000 cents/unit is 50M native units; 100 bps of
	// that goes to the treasury.
	require.Equal(t, int64(10_000), record.PriceCents)
	require.Equal(t, int64(50_000_000), record.AmountNative)
	require.Equal(t, int64(500_000), record.ProtocolFee)
	require.Equal(t, int64(49_500_000), record.ProviderAmount)
	require.Equal(t, int64(100), record.FeeBps)

	acc, err := h.balance.Get(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, int64(9_950_000_000), acc.Deposited)
	require.Equal(t, int64(5_950_000_000), acc.Locked)

	got, err := h.subscription.Get(ctx, sub.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), got.TotalPaymentsMade)
	require.NotNil(t, got.LastPaymentAt)
	require.True(t, got.NextPaymentDue.Equal(sub.NextPaymentDue.Add(30*24*time.Hour)))
	require.Equal(t, int64(5_950_000_000), got.LockedAmount)

	p, err := h.provider.GetProvider(ctx, "prov")
	require.NoError(t, err)
	require.Equal(t, int64(49_500_000), p.TotalRevenue)
	// 495 settled cents booked at 10000 fee units per cent.
	require.Equal(t, int64(4_950_000), p.FeesEarned)

	var treasury vaultdomain.Account
	require.NoError(t, h.db.
		Where("owner_wallet = ? AND kind = ?", vaultdomain.TreasuryOwner, vaultdomain.KindTreasury).
		First(&treasury).Error)
	require.Equal(t, int64(500_000), treasury.NativeBalance)

	var payout vaultdomain.Account
	require.NoError(t, h.db.
		Where("owner_wallet = ? AND kind = ?", "prov", vaultdomain.KindProviderPayout).
		First(&payout).Error)
	require.Equal(t, int64(49_500_000), payout.NativeBalance)
	require.Equal(t, int64(4_950_000), payout.FeeBalance)

	records, err := h.svc.ListBySubscription(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestExecutePayment_FullFeeTake(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sub := h.subscribe(t)

	// 10000 bps routes the whole amount to the treasury and leaves the
	// provider with a zero share, which must settle cleanly.
	require.NoError(t, h.protocol.SetProtocolFee(ctx, "authority", 10_000))

	h.clk.Advance(30 * 24 * time.Hour)
	h.putFreshQuote(t)

	record, err := h.svc.ExecutePayment(ctx, domain.ExecuteRequest{SubscriptionID: sub.ID})
	require.NoError(t, err)
	require.Equal(t, int64(50_000_000), record.AmountNative)
	require.Equal(t, int64(50_000_000), record.ProtocolFee)
	require.Equal(t, int64(0), record.ProviderAmount)

	var treasury vaultdomain.Account
	require.NoError(t, h.db.
		Where("owner_wallet = ? AND kind = ?", vaultdomain.TreasuryOwner, vaultdomain.KindTreasury).
		First(&treasury).Error)
	require.Equal(t, int64(50_000_000), treasury.NativeBalance)

	var payout vaultdomain.Account
	require.NoError(t, h.db.
		Where("owner_wallet = ? AND kind = ?", "prov", vaultdomain.KindProviderPayout).
		First(&payout).Error)
	require.Equal(t, int64(0), payout.NativeBalance)
	require.Equal(t, int64(0), payout.FeeBalance)

	p, err := h.provider.GetProvider(ctx, "prov")
	require.NoError(t, err)
	require.Equal(t, int64(0), p.TotalRevenue)
	require.Equal(t, int64(0), p.FeesEarned)
}

func TestExecutePayment_NotDue(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sub := h.subscribe(t)
	h.putFreshQuote(t)

	_, err := h.svc.ExecutePayment(ctx, domain.ExecuteRequest{SubscriptionID: sub.ID})
	require.ErrorIs(t, err, domain.ErrPaymentNotDue)

	// A rejected attempt leaves every balance untouched.
	acc, err := h.balance.Get(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, int64(10_000_000_000), acc.Deposited)
	require.Equal(t, int64(6_000_000_000), acc.Locked)

	got, err := h.subscription.Get(ctx, sub.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), got.TotalPaymentsMade)
	require.True(t, got.NextPaymentDue.Equal(sub.NextPaymentDue))
}

func TestExecutePayment_DueDateAdvancesFromSchedule(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sub := h.subscribe(t)

	// Settle three days late; the next due date still lands on the
	// original 60-day mark, not 63.
	h.clk.Advance(33 * 24 * time.Hour)
	h.putFreshQuote(t)

	_, err := h.svc.ExecutePayment(ctx, domain.ExecuteRequest{SubscriptionID: sub.ID})
	require.NoError(t, err)

	got, err := h.subscription.Get(ctx, sub.ID)
	require.NoError(t, err)
	require.True(t, got.NextPaymentDue.Equal(sub.StartDate.Add(60*24*time.Hour)))

	_, err = h.svc.ExecutePayment(ctx, domain.ExecuteRequest{SubscriptionID: sub.ID})
	require.ErrorIs(t, err, domain.ErrPaymentNotDue)
}

func TestExecutePayment_StaleOracle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sub := h.subscribe(t)
	h.putFreshQuote(t)

	h.clk.Advance(30 * 24 * time.Hour)

	_, err := h.svc.ExecutePayment(ctx, domain.ExecuteRequest{SubscriptionID: sub.ID})
	require.ErrorIs(t, err, oracledomain.ErrPriceNotAvailable)
}

func TestExecutePayment_Paused(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sub := h.subscribe(t)

	h.clk.Advance(30 * 24 * time.Hour)
	h.putFreshQuote(t)
	require.NoError(t, h.protocol.Pause(ctx, "authority"))

	_, err := h.svc.ExecutePayment(ctx, domain.ExecuteRequest{SubscriptionID: sub.ID})
	require.ErrorIs(t, err, protocoldomain.ErrProtocolPaused)
}

func TestExecutePayment_InactiveSubscription(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sub := h.subscribe(t)

	_, err := h.subscription.Unsubscribe(ctx, subscriptiondomain.UnsubscribeRequest{
		Wallet:         "alice",
		SubscriptionID: sub.ID,
	})
	require.NoError(t, err)

	h.clk.Advance(30 * 24 * time.Hour)
	h.putFreshQuote(t)

	_, err = h.svc.ExecutePayment(ctx, domain.ExecuteRequest{SubscriptionID: sub.ID})
	require.ErrorIs(t, err, subscriptiondomain.ErrSubscriptionNotActive)
}

func TestExecutePayment_InactiveService(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sub := h.subscribe(t)

	_, err := h.provider.SetServiceActive(ctx, providerdomain.SetServiceActiveRequest{
		Wallet:    "prov",
		ServiceID: 1,
		IsActive:  false,
	})
	require.NoError(t, err)

	h.clk.Advance(30 * 24 * time.Hour)
	h.putFreshQuote(t)

	_, err = h.svc.ExecutePayment(ctx, domain.ExecuteRequest{SubscriptionID: sub.ID})
	require.ErrorIs(t, err, providerdomain.ErrServiceInactive)
}
