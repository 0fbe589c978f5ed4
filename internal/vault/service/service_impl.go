package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/sublyhq/subly/internal/clock"
	vaultdomain "github.com/sublyhq/subly/internal/vault/domain"
	"github.com/sublyhq/subly/pkg/db"
	"github.com/sublyhq/subly/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

type Params struct {
	fx.In

	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

func NewService(p Params) vaultdomain.Service {
	return &Service{
		log:   p.Log.Named("vault.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) EnsureAccount(ctx context.Context, tx *gorm.DB, owner string, kind vaultdomain.AccountKind) (*vaultdomain.Account, error) {
	account, err := s.Get(ctx, tx, owner, kind)
	if err != nil {
		return nil, err
	}
	if account != nil {
		return account, nil
	}

	now := s.clock.Now()
	created := vaultdomain.Account{
		ID:          s.genID.Generate(),
		OwnerWallet: owner,
		Kind:        kind,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tx.WithContext(ctx).Create(&created).Error; err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *Service) Get(ctx context.Context, tx *gorm.DB, owner string, kind vaultdomain.AccountKind) (*vaultdomain.Account, error) {
	var account vaultdomain.Account
	err := tx.WithContext(ctx).
		Where("owner_wallet = ? AND kind = ?", owner, kind).
		Limit(1).
		Find(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, nil
	}
	return &account, nil
}

// TransferNative debits one vault and credits another as a single pair of
// row updates. It fails loudly when the source is short.
func (s *Service) TransferNative(ctx context.Context, tx *gorm.DB, fromOwner string, fromKind vaultdomain.AccountKind, toOwner string, toKind vaultdomain.AccountKind, amount int64) error {
	if err := s.DebitNative(ctx, tx, fromOwner, fromKind, amount); err != nil {
		return err
	}
	return s.CreditNative(ctx, tx, toOwner, toKind, amount)
}

func (s *Service) CreditNative(ctx context.Context, tx *gorm.DB, owner string, kind vaultdomain.AccountKind, amount int64) error {
	return s.adjust(ctx, tx, owner, kind, "native_balance", amount)
}

func (s *Service) DebitNative(ctx context.Context, tx *gorm.DB, owner string, kind vaultdomain.AccountKind, amount int64) error {
	return s.adjust(ctx, tx, owner, kind, "native_balance", -amount)
}

func (s *Service) CreditFee(ctx context.Context, tx *gorm.DB, owner string, kind vaultdomain.AccountKind, amount int64) error {
	return s.adjust(ctx, tx, owner, kind, "fee_balance", amount)
}

func (s *Service) DebitFee(ctx context.Context, tx *gorm.DB, owner string, kind vaultdomain.AccountKind, amount int64) error {
	return s.adjust(ctx, tx, owner, kind, "fee_balance", -amount)
}

func (s *Service) adjust(ctx context.Context, tx *gorm.DB, owner string, kind vaultdomain.AccountKind, column string, delta int64) error {
	if delta == 0 {
		return vaultdomain.ErrInvalidAmount
	}

	var account vaultdomain.Account
	err := db.LockForUpdate(tx.WithContext(ctx)).
		Where("owner_wallet = ? AND kind = ?", owner, kind).
		Limit(1).
		Find(&account).Error
	if err != nil {
		return err
	}
	if account.ID == 0 {
		return vaultdomain.ErrAccountNotFound
	}

	balance := account.NativeBalance
	if column == "fee_balance" {
		balance = account.FeeBalance
	}

	var next int64
	if delta > 0 {
		next, err = money.Add(balance, delta)
		if err != nil {
			return err
		}
	} else {
		next, err = money.Sub(balance, -delta)
		if err != nil {
			return vaultdomain.ErrInsufficientVaultBalance
		}
	}

	return tx.WithContext(ctx).Model(&vaultdomain.Account{}).
		Where("id = ?", account.ID).
		Updates(map[string]any{
			column:       next,
			"updated_at": s.clock.Now(),
		}).Error
}
