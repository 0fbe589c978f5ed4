package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	balancedomain "github.com/sublyhq/subly/internal/balance/domain"
	"github.com/sublyhq/subly/internal/clock"
	eventsdomain "github.com/sublyhq/subly/internal/events/domain"
	oracledomain "github.com/sublyhq/subly/internal/oracle/domain"
	"github.com/sublyhq/subly/internal/payment/domain"
	protocoldomain "github.com/sublyhq/subly/internal/protocol/domain"
	providerdomain "github.com/sublyhq/subly/internal/provider/domain"
	subscriptiondomain "github.com/sublyhq/subly/internal/subscription/domain"
	vaultdomain "github.com/sublyhq/subly/internal/vault/domain"
	"github.com/sublyhq/subly/pkg/money"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Protocol     protocoldomain.Service
	Oracle       oracledomain.Service
	Provider     providerdomain.Service
	Balance      balancedomain.Service
	Subscription subscriptiondomain.Service
	Vault        vaultdomain.Service
	Events       eventsdomain.Publisher
}

type paymentService struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	protocol     protocoldomain.Service
	oracle       oracledomain.Service
	provider     providerdomain.Service
	balance      balancedomain.Service
	subscription subscriptiondomain.Service
	vault        vaultdomain.Service
	events       eventsdomain.Publisher
}

func NewService(p Params) domain.Service {
	return &paymentService{
		db:           p.DB,
		log:          p.Log.Named("payment.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		protocol:     p.Protocol,
		oracle:       p.Oracle,
		provider:     p.Provider,
		balance:      p.Balance,
		subscription: p.Subscription,
		vault:        p.Vault,
		events:       p.Events,
	}
}

func (s *paymentService) ExecutePayment(ctx context.Context, req domain.ExecuteRequest) (*domain.PaymentRecord, error) {
	var record *domain.PaymentRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cfg, err := s.protocol.EnsureActive(ctx, tx)
		if err != nil {
			return err
		}

		sub, err := s.subscription.GetForUpdate(ctx, tx, req.SubscriptionID)
		if err != nil {
			return err
		}
		if !sub.IsActive {
			return subscriptiondomain.ErrSubscriptionNotActive
		}

		now := s.clock.Now().UTC()
		if now.Before(sub.NextPaymentDue) {
			return domain.ErrPaymentNotDue
		}

		svc, err := s.provider.GetServiceForUpdate(ctx, tx, sub.ProviderWallet, sub.ServiceID)
		if err != nil {
			return err
		}
		if !svc.IsActive {
			return providerdomain.ErrServiceInactive
		}

		priceCents, err := s.oracle.GetPriceCents(ctx, tx, cfg.OracleFeed, now)
		if err != nil {
			return err
		}

		amount, err := money.MulDiv(svc.FeeUSDCents, domain.UnitScale, priceCents)
		if err != nil {
			return err
		}
		protocolFee, err := money.MulDiv(amount, cfg.ProtocolFeeBps, 10_000)
		if err != nil {
			return err
		}
		providerAmount := amount - protocolFee

		if err := s.balance.Spend(ctx, tx, sub.Wallet, amount); err != nil {
			return err
		}
		if protocolFee > 0 {
			if _, err := s.vault.EnsureAccount(ctx, tx, vaultdomain.TreasuryOwner, vaultdomain.KindTreasury); err != nil {
				return err
			}
			if err := s.vault.TransferNative(ctx, tx,
				sub.Wallet, vaultdomain.KindUserVault,
				vaultdomain.TreasuryOwner, vaultdomain.KindTreasury,
				protocolFee); err != nil {
				return err
			}
		}
		if providerAmount > 0 {
			if err := s.vault.TransferNative(ctx, tx,
				sub.Wallet, vaultdomain.KindUserVault,
				sub.ProviderWallet, vaultdomain.KindProviderPayout,
				providerAmount); err != nil {
				return err
			}
		}

		// Book the provider's revenue in fee-denomination units at the
		// settlement price.
		valueCents, err := money.MulDiv(providerAmount, priceCents, domain.UnitScale)
		if err != nil {
			return err
		}
		feeUnits, err := money.Mul(valueCents, domain.FeeUnitsPerCent)
		if err != nil {
			return err
		}
		if feeUnits > 0 {
			if err := s.vault.CreditFee(ctx, tx, sub.ProviderWallet, vaultdomain.KindProviderPayout, feeUnits); err != nil {
				return err
			}
		}
		if err := s.provider.CreditRevenue(ctx, tx, sub.ProviderWallet, providerAmount, feeUnits); err != nil {
			return err
		}

		if err := s.subscription.AdvanceCycle(ctx, tx, sub, now, svc.Period(), amount); err != nil {
			return err
		}

		record = &domain.PaymentRecord{
			ID:             s.genID.Generate(),
			SubscriptionID: sub.ID,
			Wallet:         sub.Wallet,
			ProviderWallet: sub.ProviderWallet,
			ServiceID:      sub.ServiceID,
			FeeUSDCents:    svc.FeeUSDCents,
			PriceCents:     priceCents,
			AmountNative:   amount,
			ProtocolFee:    protocolFee,
			ProviderAmount: providerAmount,
			FeeBps:         cfg.ProtocolFeeBps,
			PaidAt:         now,
			CreatedAt:      now,
		}
		if err := tx.Create(record).Error; err != nil {
			return err
		}

		return s.events.PublishTx(ctx, tx, eventsdomain.EventPaymentExecuted,
			fmt.Sprintf("payment:%s:%d", sub.ID, sub.TotalPaymentsMade+1),
			map[string]any{
				"subscription_id": sub.ID.String(),
				"wallet":          sub.Wallet,
				"provider_wallet": sub.ProviderWallet,
				"amount_native":   amount,
				"protocol_fee":    protocolFee,
				"price_cents":     priceCents,
			})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("payment executed",
		zap.String("subscription_id", record.SubscriptionID.String()),
		zap.String("wallet", record.Wallet),
		zap.Int64("amount_native", record.AmountNative),
		zap.Int64("protocol_fee", record.ProtocolFee),
		zap.Int64("price_cents", record.PriceCents),
	)
	return record, nil
}

func (s *paymentService) ListBySubscription(ctx context.Context, subscriptionID snowflake.ID) ([]domain.PaymentRecord, error) {
	var out []domain.PaymentRecord
	err := s.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("paid_at ASC").
		Find(&out).Error
	return out, err
}

func (s *paymentService) ListByWallet(ctx context.Context, wallet string, limit int) ([]domain.PaymentRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []domain.PaymentRecord
	err := s.db.WithContext(ctx).
		Where("wallet = ?", wallet).
		Order("paid_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
