package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/sublyhq/subly/internal/clock"
	eventsdomain "github.com/sublyhq/subly/internal/events/domain"
	protocoldomain "github.com/sublyhq/subly/internal/protocol/domain"
	"github.com/sublyhq/subly/internal/provider/domain"
	vaultdomain "github.com/sublyhq/subly/internal/vault/domain"
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
	Vault    vaultdomain.Service
	Events   eventsdomain.Publisher
}

type providerService struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	protocol protocoldomain.Service
	vault    vaultdomain.Service
	events   eventsdomain.Publisher
}

func NewService(p Params) domain.Service {
	return &providerService{
		db:       p.DB,
		log:      p.Log.Named("provider.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		protocol: p.Protocol,
		vault:    p.Vault,
		events:   p.Events,
	}
}

func (s *providerService) RegisterProvider(ctx context.Context, req domain.RegisterProviderRequest) (*domain.Provider, error) {
	if err := validateName(req.Name); err != nil {
		return nil, err
	}

	var provider *domain.Provider
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.protocol.EnsureActive(ctx, tx); err != nil {
			return err
		}

		var existing domain.Provider
		err := tx.Where("wallet = ?", req.Wallet).First(&existing).Error
		if err == nil {
			return domain.ErrProviderAlreadyExists
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		now := s.clock.Now().UTC()
		provider = &domain.Provider{
			ID:        s.genID.Generate(),
			Wallet:    req.Wallet,
			Name:      req.Name,
			IsActive:  true,
			Metadata:  datatypes.JSONMap(req.Metadata),
			JoinedAt:  now,
			UpdatedAt: now,
		}
		if err := tx.Create(provider).Error; err != nil {
			return err
		}

		if _, err := s.vault.EnsureAccount(ctx, tx, req.Wallet, vaultdomain.KindProviderPayout); err != nil {
			return err
		}

		return s.events.PublishTx(ctx, tx, eventsdomain.EventProviderRegistered,
			fmt.Sprintf("provider:%s", req.Wallet),
			map[string]any{
				"wallet": req.Wallet,
				"name":   req.Name,
			})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("provider registered",
		zap.String("wallet", provider.Wallet),
		zap.String("name", provider.Name),
	)
	return provider, nil
}

func (s *providerService) RegisterService(ctx context.Context, req domain.RegisterServiceRequest) (*domain.SubscriptionService, error) {
	if err := validateName(req.Name); err != nil {
		return nil, err
	}
	if len(req.Description) > domain.MaxDescriptionLength {
		return nil, domain.ErrDescriptionTooLong
	}
	if len(req.URL) > domain.MaxURLLength {
		return nil, domain.ErrURLTooLong
	}
	if req.FeeUSDCents <= 0 {
		return nil, domain.ErrInvalidFee
	}
	if req.BillingFrequencyDays <= 0 {
		return nil, domain.ErrInvalidBillingFrequency
	}
	if req.SubscriberCap != nil && *req.SubscriberCap <= 0 {
		return nil, domain.ErrInvalidSubscriberCap
	}

	var svc *domain.SubscriptionService
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.protocol.EnsureActive(ctx, tx); err != nil {
			return err
		}

		provider, err := s.findProviderForUpdate(ctx, tx, req.Wallet)
		if err != nil {
			return err
		}
		if !provider.IsActive {
			return domain.ErrProviderInactive
		}

		now := s.clock.Now().UTC()
		serviceID := provider.ServiceCount + 1
		svc = &domain.SubscriptionService{
			ID:                   s.genID.Generate(),
			ProviderID:           provider.ID,
			ServiceID:            serviceID,
			ProviderWallet:       provider.Wallet,
			Name:                 req.Name,
			Description:          req.Description,
			URL:                  req.URL,
			FeeUSDCents:          req.FeeUSDCents,
			BillingFrequencyDays: req.BillingFrequencyDays,
			SubscriberCap:        req.SubscriberCap,
			IsActive:             true,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		if err := tx.Create(svc).Error; err != nil {
			return err
		}

		if err := tx.Model(&domain.Provider{}).
			Where("id = ?", provider.ID).
			Updates(map[string]any{
				"service_count": serviceID,
				"updated_at":    now,
			}).Error; err != nil {
			return err
		}

		if err := s.protocol.BumpTotalServices(ctx, tx); err != nil {
			return err
		}

		return s.events.PublishTx(ctx, tx, eventsdomain.EventServiceRegistered,
			fmt.Sprintf("service:%s:%d", provider.Wallet, serviceID),
			map[string]any{
				"provider_wallet": provider.Wallet,
				"service_id":      serviceID,
				"name":            req.Name,
			})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("service registered",
		zap.String("provider_wallet", svc.ProviderWallet),
		zap.Int64("service_id", svc.ServiceID),
		zap.Int64("fee_usd_cents", svc.FeeUSDCents),
	)
	return svc, nil
}

func (s *providerService) SetServiceActive(ctx context.Context, req domain.SetServiceActiveRequest) (*domain.SubscriptionService, error) {
	var svc *domain.SubscriptionService
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.protocol.EnsureActive(ctx, tx); err != nil {
			return err
		}

		found, err := s.GetServiceForUpdate(ctx, tx, req.Wallet, req.ServiceID)
		if err != nil {
			return err
		}
		found.IsActive = req.IsActive
		found.UpdatedAt = s.clock.Now().UTC()
		if err := tx.Model(&domain.SubscriptionService{}).
			Where("id = ?", found.ID).
			Updates(map[string]any{
				"is_active":  found.IsActive,
				"updated_at": found.UpdatedAt,
			}).Error; err != nil {
			return err
		}
		svc = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func (s *providerService) GetProvider(ctx context.Context, wallet string) (*domain.Provider, error) {
	var p domain.Provider
	err := s.db.WithContext(ctx).Where("wallet = ?", wallet).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrProviderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *providerService) GetService(ctx context.Context, providerWallet string, serviceID int64) (*domain.SubscriptionService, error) {
	var svc domain.SubscriptionService
	err := s.db.WithContext(ctx).
		Where("provider_wallet = ? AND service_id = ?", providerWallet, serviceID).
		First(&svc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrServiceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

func (s *providerService) ListServices(ctx context.Context, providerWallet string) ([]domain.SubscriptionService, error) {
	var out []domain.SubscriptionService
	err := s.db.WithContext(ctx).
		Where("provider_wallet = ?", providerWallet).
		Order("service_id ASC").
		Find(&out).Error
	return out, err
}

func (s *providerService) GetServiceForUpdate(ctx context.Context, tx *gorm.DB, providerWallet string, serviceID int64) (*domain.SubscriptionService, error) {
	var svc domain.SubscriptionService
	err := db.LockForUpdate(tx.WithContext(ctx)).
		Where("provider_wallet = ? AND service_id = ?", providerWallet, serviceID).
		First(&svc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrServiceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

func (s *providerService) AdjustSubscribers(ctx context.Context, tx *gorm.DB, id snowflake.ID, delta int64) error {
	var svc domain.SubscriptionService
	err := db.LockForUpdate(tx.WithContext(ctx)).
		Where("id = ?", id).
		First(&svc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrServiceNotFound
	}
	if err != nil {
		return err
	}

	count := svc.TotalSubscribers + delta
	if count < 0 {
		count = 0
	}
	return tx.Model(&domain.SubscriptionService{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"total_subscribers": count,
			"updated_at":        s.clock.Now().UTC(),
		}).Error
}

func (s *providerService) CreditRevenue(ctx context.Context, tx *gorm.DB, wallet string, nativeAmount, feeUnits int64) error {
	p, err := s.findProviderForUpdate(ctx, tx, wallet)
	if err != nil {
		return err
	}

	revenue, err := money.Add(p.TotalRevenue, nativeAmount)
	if err != nil {
		return err
	}
	fees, err := money.Add(p.FeesEarned, feeUnits)
	if err != nil {
		return err
	}
	return tx.Model(&domain.Provider{}).
		Where("id = ?", p.ID).
		Updates(map[string]any{
			"total_revenue": revenue,
			"fees_earned":   fees,
			"updated_at":    s.clock.Now().UTC(),
		}).Error
}

func (s *providerService) findProviderForUpdate(ctx context.Context, tx *gorm.DB, wallet string) (*domain.Provider, error) {
	var p domain.Provider
	err := db.LockForUpdate(tx.WithContext(ctx)).
		Where("wallet = ?", wallet).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrProviderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func validateName(name string) error {
	if name == "" {
		return domain.ErrNameEmpty
	}
	if len(name) > domain.MaxNameLength {
		return domain.ErrNameTooLong
	}
	return nil
}
