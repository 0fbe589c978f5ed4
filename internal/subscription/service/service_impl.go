package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	balancedomain "github.com/sublyhq/subly/internal/balance/domain"
	"github.com/sublyhq/subly/internal/clock"
	eventsdomain "github.com/sublyhq/subly/internal/events/domain"
	protocoldomain "github.com/sublyhq/subly/internal/protocol/domain"
	providerdomain "github.com/sublyhq/subly/internal/provider/domain"
	"github.com/sublyhq/subly/internal/subscription/domain"
	"github.com/sublyhq/subly/pkg/db"
	"github.com/sublyhq/subly/pkg/money"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Protocol protocoldomain.Service
	Provider providerdomain.Service
	Balance  balancedomain.Service
	Events   eventsdomain.Publisher
}

type subscriptionService struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	protocol protocoldomain.Service
	provider providerdomain.Service
	balance  balancedomain.Service
	events   eventsdomain.Publisher
}

func NewService(p Params) domain.Service {
	return &subscriptionService{
		db:       p.DB,
		log:      p.Log.Named("subscription.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		protocol: p.Protocol,
		provider: p.Provider,
		balance:  p.Balance,
		events:   p.Events,
	}
}

func (s *subscriptionService) Subscribe(ctx context.Context, req domain.SubscribeRequest) (*domain.UserSubscription, error) {
	if req.Wallet == req.ProviderWallet {
		return nil, domain.ErrCannotSubscribeToOwn
	}

	var sub *domain.UserSubscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.protocol.EnsureActive(ctx, tx); err != nil {
			return err
		}

		svc, err := s.provider.GetServiceForUpdate(ctx, tx, req.ProviderWallet, req.ServiceID)
		if err != nil {
			return err
		}
		if !svc.IsActive {
			return providerdomain.ErrServiceInactive
		}
		if svc.SubscriberCap != nil && svc.TotalSubscribers >= *svc.SubscriberCap {
			return domain.ErrSubscriberLimitReached
		}

		var existing domain.UserSubscription
		err = tx.Where("wallet = ? AND service_row_id = ? AND is_active = ?", req.Wallet, svc.ID, true).
			First(&existing).Error
		if err == nil {
			return domain.ErrAlreadySubscribed
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if _, err := s.balance.EnsureAccount(ctx, tx, req.Wallet); err != nil {
			return err
		}

		requiredLock, ok := domain.RequiredLock(svc.FeeUSDCents)
		if !ok {
			return money.ErrOverflow
		}
		if err := s.balance.Lock(ctx, tx, req.Wallet, requiredLock); err != nil {
			return err
		}

		now := s.clock.Now().UTC()
		sub = &domain.UserSubscription{
			ID:             s.genID.Generate(),
			Wallet:         req.Wallet,
			ServiceRowID:   svc.ID,
			ProviderWallet: svc.ProviderWallet,
			ServiceID:      svc.ServiceID,
			StartDate:      now,
			NextPaymentDue: now.Add(svc.Period()),
			LockedAmount:   requiredLock,
			IsActive:       true,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.Create(sub).Error; err != nil {
			return err
		}

		if err := s.provider.AdjustSubscribers(ctx, tx, svc.ID, 1); err != nil {
			return err
		}
		if err := s.balance.AdjustSubscriptionCount(ctx, tx, req.Wallet, 1); err != nil {
			return err
		}

		return s.events.PublishTx(ctx, tx, eventsdomain.EventSubscribed,
			fmt.Sprintf("subscribe:%s", sub.ID),
			map[string]any{
				"wallet":          req.Wallet,
				"provider_wallet": svc.ProviderWallet,
				"service_id":      svc.ServiceID,
				"subscription_id": sub.ID.String(),
			})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("subscribed",
		zap.String("wallet", sub.Wallet),
		zap.String("provider_wallet", sub.ProviderWallet),
		zap.Int64("service_id", sub.ServiceID),
		zap.Int64("locked_amount", sub.LockedAmount),
	)
	return sub, nil
}

func (s *subscriptionService) Unsubscribe(ctx context.Context, req domain.UnsubscribeRequest) (*domain.UserSubscription, error) {
	var sub *domain.UserSubscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.protocol.EnsureActive(ctx, tx); err != nil {
			return err
		}

		found, err := s.GetForUpdate(ctx, tx, req.SubscriptionID)
		if err != nil {
			return err
		}
		if found.Wallet != req.Wallet {
			return domain.ErrNotSubscriptionOwner
		}
		if !found.IsActive {
			return domain.ErrSubscriptionNotActive
		}

		if err := s.balance.Unlock(ctx, tx, found.Wallet, found.LockedAmount); err != nil {
			return err
		}

		now := s.clock.Now().UTC()
		found.IsActive = false
		found.UnsubscribedAt = &now
		found.LockedAmount = 0
		found.UpdatedAt = now
		if err := tx.Model(&domain.UserSubscription{}).
			Where("id = ?", found.ID).
			Updates(map[string]any{
				"is_active":       false,
				"unsubscribed_at": now,
				"locked_amount":   0,
				"updated_at":      now,
			}).Error; err != nil {
			return err
		}

		if err := s.provider.AdjustSubscribers(ctx, tx, found.ServiceRowID, -1); err != nil {
			return err
		}
		if err := s.balance.AdjustSubscriptionCount(ctx, tx, found.Wallet, -1); err != nil {
			return err
		}

		sub = found
		return s.events.PublishTx(ctx, tx, eventsdomain.EventUnsubscribed,
			fmt.Sprintf("unsubscribe:%s", found.ID),
			map[string]any{
				"wallet":          found.Wallet,
				"subscription_id": found.ID.String(),
			})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("unsubscribed",
		zap.String("wallet", sub.Wallet),
		zap.String("subscription_id", sub.ID.String()),
	)
	return sub, nil
}

func (s *subscriptionService) Get(ctx context.Context, id snowflake.ID) (*domain.UserSubscription, error) {
	var sub domain.UserSubscription
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *subscriptionService) ListByWallet(ctx context.Context, wallet string) ([]domain.UserSubscription, error) {
	var out []domain.UserSubscription
	err := s.db.WithContext(ctx).
		Where("wallet = ?", wallet).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

func (s *subscriptionService) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.UserSubscription, error) {
	var out []domain.UserSubscription
	err := s.db.WithContext(ctx).
		Where("is_active = ? AND next_payment_due <= ?", true, now).
		Order("next_payment_due ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (s *subscriptionService) GetForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.UserSubscription, error) {
	var sub domain.UserSubscription
	err := db.LockForUpdate(tx.WithContext(ctx)).
		Where("id = ?", id).
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *subscriptionService) AdvanceCycle(ctx context.Context, tx *gorm.DB, sub *domain.UserSubscription, paidAt time.Time, period time.Duration, spent int64) error {
	// Due date advances from the previous due date, not from paidAt,
	// so late runs do not drift the schedule.
	next := sub.NextPaymentDue.Add(period)
	return tx.WithContext(ctx).
		Model(&domain.UserSubscription{}).
		Where("id = ?", sub.ID).
		Updates(map[string]any{
			"last_payment_at":     paidAt,
			"total_payments_made": sub.TotalPaymentsMade + 1,
			"next_payment_due":    next,
			"locked_amount":       money.SaturatingSub(sub.LockedAmount, spent),
			"updated_at":          paidAt,
		}).Error
}
