package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sublyhq/subly/internal/balance/domain"
	"github.com/sublyhq/subly/internal/clock"
	protocoldomain "github.com/sublyhq/subly/internal/protocol/domain"
	stakepooldomain "github.com/sublyhq/subly/internal/stakepool/domain"
	vaultdomain "github.com/sublyhq/subly/internal/vault/domain"
	"github.com/sublyhq/subly/pkg/db"
	"github.com/sublyhq/subly/pkg/money"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Protocol  protocoldomain.Service
	Vault     vaultdomain.Service
	StakePool stakepooldomain.Adapter
}

type balanceService struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	protocol  protocoldomain.Service
	vault     vaultdomain.Service
	stakePool stakepooldomain.Adapter
}

func NewService(p Params) domain.Service {
	return &balanceService{
		db:        p.DB,
		log:       p.Log.Named("balance.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		protocol:  p.Protocol,
		vault:     p.Vault,
		stakePool: p.StakePool,
	}
}

func (s *balanceService) Deposit(ctx context.Context, req domain.DepositRequest) (*domain.UserAccount, error) {
	if req.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	var account *domain.UserAccount
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.protocol.EnsureActive(ctx, tx); err != nil {
			return err
		}

		acc, err := s.ensureAccountLocked(ctx, tx, req.Wallet)
		if err != nil {
			return err
		}

		deposited, err := money.Add(acc.Deposited, req.Amount)
		if err != nil {
			return err
		}
		acc.Deposited = deposited
		acc.UpdatedAt = s.clock.Now().UTC()

		if err := tx.Model(&domain.UserAccount{}).
			Where("id = ?", acc.ID).
			Updates(map[string]any{
				"deposited":  acc.Deposited,
				"updated_at": acc.UpdatedAt,
			}).Error; err != nil {
			return err
		}

		if _, err := s.vault.EnsureAccount(ctx, tx, req.Wallet, vaultdomain.KindUserVault); err != nil {
			return err
		}
		if err := s.vault.CreditNative(ctx, tx, req.Wallet, vaultdomain.KindUserVault, req.Amount); err != nil {
			return err
		}

		account = acc
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("deposit",
		zap.String("wallet", req.Wallet),
		zap.Int64("amount", req.Amount),
		zap.Int64("deposited", account.Deposited),
	)
	return account, nil
}

func (s *balanceService) Withdraw(ctx context.Context, req domain.WithdrawRequest) (*domain.UserAccount, error) {
	if req.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	var account *domain.UserAccount
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.protocol.EnsureActive(ctx, tx); err != nil {
			return err
		}

		acc, err := s.findForUpdate(ctx, tx, req.Wallet)
		if err != nil {
			return err
		}
		if acc.Deposited < req.Amount {
			return domain.ErrInsufficientBalance
		}
		if acc.Available() < req.Amount {
			return domain.ErrInsufficientAvailableBalance
		}

		deposited, err := money.Sub(acc.Deposited, req.Amount)
		if err != nil {
			return domain.ErrInsufficientBalance
		}
		acc.Deposited = deposited
		acc.UpdatedAt = s.clock.Now().UTC()

		if err := tx.Model(&domain.UserAccount{}).
			Where("id = ?", acc.ID).
			Updates(map[string]any{
				"deposited":  acc.Deposited,
				"updated_at": acc.UpdatedAt,
			}).Error; err != nil {
			return err
		}

		if err := s.vault.DebitNative(ctx, tx, req.Wallet, vaultdomain.KindUserVault, req.Amount); err != nil {
			return err
		}

		account = acc
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("withdraw",
		zap.String("wallet", req.Wallet),
		zap.Int64("amount", req.Amount),
		zap.Int64("deposited", account.Deposited),
	)
	return account, nil
}

func (s *balanceService) Stake(ctx context.Context, req domain.StakeRequest) (*domain.StakeAccount, error) {
	if req.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	var stake *domain.StakeAccount
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.protocol.EnsureActive(ctx, tx); err != nil {
			return err
		}

		acc, err := s.findForUpdate(ctx, tx, req.Wallet)
		if err != nil {
			return err
		}
		if acc.Available() < req.Amount {
			return domain.ErrInsufficientAvailableBalance
		}

		sa, err := s.findStakeForUpdate(ctx, tx, req.Wallet)
		if err != nil && !errors.Is(err, domain.ErrStakeAccountNotFound) {
			return err
		}
		if sa == nil && req.Amount < domain.MinimumStakeAmount {
			return domain.ErrMinimumStakeNotMet
		}

		tokens, err := s.stakePool.Deposit(req.Amount)
		if err != nil {
			return err
		}

		now := s.clock.Now().UTC()
		if sa == nil {
			sa = &domain.StakeAccount{
				ID:        s.genID.Generate(),
				Wallet:    req.Wallet,
				StakeDate: now,
				IsActive:  true,
				CreatedAt: now,
			}
			if err := tx.Create(sa).Error; err != nil {
				return err
			}
		}

		stakedAmount, err := money.Add(sa.StakedAmount, req.Amount)
		if err != nil {
			return err
		}
		poolTokens, err := money.Add(sa.PoolTokenAmount, tokens)
		if err != nil {
			return err
		}
		sa.StakedAmount = stakedAmount
		sa.PoolTokenAmount = poolTokens
		sa.StakeDate = now
		sa.IsActive = true
		sa.UpdatedAt = now

		if err := tx.Model(&domain.StakeAccount{}).
			Where("id = ?", sa.ID).
			Updates(map[string]any{
				"staked_amount":     sa.StakedAmount,
				"pool_token_amount": sa.PoolTokenAmount,
				"stake_date":        sa.StakeDate,
				"is_active":         sa.IsActive,
				"updated_at":        sa.UpdatedAt,
			}).Error; err != nil {
			return err
		}

		deposited, err := money.Sub(acc.Deposited, req.Amount)
		if err != nil {
			return domain.ErrInsufficientBalance
		}
		staked, err := money.Add(acc.Staked, req.Amount)
		if err != nil {
			return err
		}
		if err := tx.Model(&domain.UserAccount{}).
			Where("id = ?", acc.ID).
			Updates(map[string]any{
				"deposited":  deposited,
				"staked":     staked,
				"updated_at": now,
			}).Error; err != nil {
			return err
		}

		if err := s.vault.DebitNative(ctx, tx, req.Wallet, vaultdomain.KindUserVault, req.Amount); err != nil {
			return err
		}

		stake = sa
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("stake",
		zap.String("wallet", req.Wallet),
		zap.Int64("amount", req.Amount),
		zap.Int64("pool_tokens", stake.PoolTokenAmount),
	)
	return stake, nil
}

func (s *balanceService) Unstake(ctx context.Context, req domain.UnstakeRequest) (*domain.StakeAccount, error) {
	if req.PoolTokenAmount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	var stake *domain.StakeAccount
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.protocol.EnsureActive(ctx, tx); err != nil {
			return err
		}

		sa, err := s.findStakeForUpdate(ctx, tx, req.Wallet)
		if err != nil {
			return err
		}
		if !sa.IsActive || sa.PoolTokenAmount < req.PoolTokenAmount {
			return domain.ErrInsufficientStakedFunds
		}

		native, err := s.stakePool.Withdraw(req.PoolTokenAmount)
		if err != nil {
			return err
		}

		// Principal attributed to the redeemed tokens, pro rata. The
		// remainder over principal is realized yield.
		principal, err := money.MulDiv(sa.StakedAmount, req.PoolTokenAmount, sa.PoolTokenAmount)
		if err != nil {
			return err
		}
		yield := int64(0)
		if native > principal {
			yield = native - principal
		}

		now := s.clock.Now().UTC()
		sa.StakedAmount = money.SaturatingSub(sa.StakedAmount, principal)
		sa.PoolTokenAmount -= req.PoolTokenAmount
		sa.TotalYieldEarned, err = money.Add(sa.TotalYieldEarned, yield)
		if err != nil {
			return err
		}
		if yield > 0 {
			sa.LastYieldClaim = &now
		}
		if sa.PoolTokenAmount == 0 {
			sa.IsActive = false
		}
		sa.UpdatedAt = now

		if err := tx.Model(&domain.StakeAccount{}).
			Where("id = ?", sa.ID).
			Updates(map[string]any{
				"staked_amount":      sa.StakedAmount,
				"pool_token_amount":  sa.PoolTokenAmount,
				"total_yield_earned": sa.TotalYieldEarned,
				"last_yield_claim":   sa.LastYieldClaim,
				"is_active":          sa.IsActive,
				"updated_at":         sa.UpdatedAt,
			}).Error; err != nil {
			return err
		}

		acc, err := s.findForUpdate(ctx, tx, req.Wallet)
		if err != nil {
			return err
		}
		deposited, err := money.Add(acc.Deposited, native)
		if err != nil {
			return err
		}
		if err := tx.Model(&domain.UserAccount{}).
			Where("id = ?", acc.ID).
			Updates(map[string]any{
				"deposited":  deposited,
				"staked":     money.SaturatingSub(acc.Staked, principal),
				"updated_at": now,
			}).Error; err != nil {
			return err
		}

		if err := s.vault.CreditNative(ctx, tx, req.Wallet, vaultdomain.KindUserVault, native); err != nil {
			return err
		}

		stake = sa
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("unstake",
		zap.String("wallet", req.Wallet),
		zap.Int64("pool_tokens", req.PoolTokenAmount),
		zap.Int64("remaining", stake.PoolTokenAmount),
	)
	return stake, nil
}

func (s *balanceService) Get(ctx context.Context, wallet string) (*domain.UserAccount, error) {
	var acc domain.UserAccount
	err := s.db.WithContext(ctx).
		Where("wallet = ?", wallet).
		First(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (s *balanceService) GetStake(ctx context.Context, wallet string) (*domain.StakeAccount, error) {
	var sa domain.StakeAccount
	err := s.db.WithContext(ctx).
		Where("wallet = ?", wallet).
		First(&sa).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrStakeAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sa, nil
}

func (s *balanceService) EnsureAccount(ctx context.Context, tx *gorm.DB, wallet string) (*domain.UserAccount, error) {
	return s.ensureAccountLocked(ctx, tx, wallet)
}

func (s *balanceService) Lock(ctx context.Context, tx *gorm.DB, wallet string, amount int64) error {
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}
	acc, err := s.findForUpdate(ctx, tx, wallet)
	if err != nil {
		return err
	}
	if acc.Available() < amount {
		return domain.ErrInsufficientAvailableBalance
	}
	locked, err := money.Add(acc.Locked, amount)
	if err != nil {
		return err
	}
	return tx.Model(&domain.UserAccount{}).
		Where("id = ?", acc.ID).
		Updates(map[string]any{
			"locked":     locked,
			"updated_at": s.clock.Now().UTC(),
		}).Error
}

func (s *balanceService) Unlock(ctx context.Context, tx *gorm.DB, wallet string, amount int64) error {
	if amount < 0 {
		return domain.ErrInvalidAmount
	}
	acc, err := s.findForUpdate(ctx, tx, wallet)
	if err != nil {
		return err
	}
	return tx.Model(&domain.UserAccount{}).
		Where("id = ?", acc.ID).
		Updates(map[string]any{
			"locked":     money.SaturatingSub(acc.Locked, amount),
			"updated_at": s.clock.Now().UTC(),
		}).Error
}

func (s *balanceService) Spend(ctx context.Context, tx *gorm.DB, wallet string, amount int64) error {
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}
	acc, err := s.findForUpdate(ctx, tx, wallet)
	if err != nil {
		return err
	}
	if acc.Deposited < amount {
		return domain.ErrInsufficientBalance
	}
	deposited, err := money.Sub(acc.Deposited, amount)
	if err != nil {
		return domain.ErrInsufficientBalance
	}
	return tx.Model(&domain.UserAccount{}).
		Where("id = ?", acc.ID).
		Updates(map[string]any{
			"deposited":  deposited,
			"locked":     money.SaturatingSub(acc.Locked, amount),
			"updated_at": s.clock.Now().UTC(),
		}).Error
}

func (s *balanceService) AdjustSubscriptionCount(ctx context.Context, tx *gorm.DB, wallet string, delta int64) error {
	acc, err := s.findForUpdate(ctx, tx, wallet)
	if err != nil {
		return err
	}
	count := acc.SubscriptionCount + delta
	if count < 0 {
		count = 0
	}
	return tx.Model(&domain.UserAccount{}).
		Where("id = ?", acc.ID).
		Updates(map[string]any{
			"subscription_count": count,
			"updated_at":         s.clock.Now().UTC(),
		}).Error
}

func (s *balanceService) ensureAccountLocked(ctx context.Context, tx *gorm.DB, wallet string) (*domain.UserAccount, error) {
	acc, err := s.findForUpdate(ctx, tx, wallet)
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, err
	}

	now := s.clock.Now().UTC()
	acc = &domain.UserAccount{
		ID:        s.genID.Generate(),
		Wallet:    wallet,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.Create(acc).Error; err != nil {
		return nil, err
	}
	return acc, nil
}

func (s *balanceService) findForUpdate(ctx context.Context, tx *gorm.DB, wallet string) (*domain.UserAccount, error) {
	var acc domain.UserAccount
	err := db.LockForUpdate(tx.WithContext(ctx)).
		Where("wallet = ?", wallet).
		First(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (s *balanceService) findStakeForUpdate(ctx context.Context, tx *gorm.DB, wallet string) (*domain.StakeAccount, error) {
	var sa domain.StakeAccount
	err := db.LockForUpdate(tx.WithContext(ctx)).
		Where("wallet = ?", wallet).
		First(&sa).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrStakeAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sa, nil
}
