package domain

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Service moves value between custodial vaults. Every method runs inside
// the caller's transaction so a failed business operation rolls the
// transfer back with it.
type Service interface {
	EnsureAccount(ctx context.Context, tx *gorm.DB, owner string, kind AccountKind) (*Account, error)
	Get(ctx context.Context, tx *gorm.DB, owner string, kind AccountKind) (*Account, error)

	TransferNative(ctx context.Context, tx *gorm.DB, fromOwner string, fromKind AccountKind, toOwner string, toKind AccountKind, amount int64) error
	CreditNative(ctx context.Context, tx *gorm.DB, owner string, kind AccountKind, amount int64) error
	DebitNative(ctx context.Context, tx *gorm.DB, owner string, kind AccountKind, amount int64) error

	CreditFee(ctx context.Context, tx *gorm.DB, owner string, kind AccountKind, amount int64) error
	DebitFee(ctx context.Context, tx *gorm.DB, owner string, kind AccountKind, amount int64) error
}

var (
	ErrAccountNotFound          = errors.New("vault_account_not_found")
	ErrInvalidAmount            = errors.New("invalid_amount")
	ErrInsufficientVaultBalance = errors.New("insufficient_vault_balance")
)
