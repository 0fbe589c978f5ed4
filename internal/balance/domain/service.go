package domain

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var (
	ErrAccountNotFound              = errors.New("user_account_not_found")
	ErrStakeAccountNotFound         = errors.New("stake_account_not_found")
	ErrInvalidAmount                = errors.New("invalid_amount")
	ErrInsufficientBalance          = errors.New("insufficient_balance")
	ErrInsufficientAvailableBalance = errors.New("insufficient_available_balance")
	ErrInsufficientStakedFunds      = errors.New("insufficient_staked_funds")
	ErrMinimumStakeNotMet           = errors.New("minimum_stake_not_met")
)

// MinimumStakeAmount is the smallest first-time stake the pool accepts,
// in smallest native units.
const MinimumStakeAmount int64 = 100_000_000

// DepositRequest moves external funds into a wallet's custodial balance.
type DepositRequest struct {
	Wallet string `json:"wallet"`
	Amount int64  `json:"amount" binding:"required"`
}

// WithdrawRequest releases unlocked custodial funds back to the wallet.
type WithdrawRequest struct {
	Wallet string `json:"wallet"`
	Amount int64  `json:"amount" binding:"required"`
}

// StakeRequest moves available custodial funds into the yield pool.
type StakeRequest struct {
	Wallet string `json:"wallet"`
	Amount int64  `json:"amount" binding:"required"`
}

// UnstakeRequest redeems pool tokens back into the custodial balance.
type UnstakeRequest struct {
	Wallet          string `json:"wallet"`
	PoolTokenAmount int64  `json:"pool_token_amount" binding:"required"`
}

// Service owns all mutations of UserAccount and StakeAccount rows.
//
// Deposit, Withdraw, Stake and Unstake open their own transaction and
// gate on the protocol pause flag. The tx-scoped methods are building
// blocks for the subscription and payment engines and run inside the
// caller's transaction without re-checking the gate.
type Service interface {
	Deposit(ctx context.Context, req DepositRequest) (*UserAccount, error)
	Withdraw(ctx context.Context, req WithdrawRequest) (*UserAccount, error)
	Stake(ctx context.Context, req StakeRequest) (*StakeAccount, error)
	Unstake(ctx context.Context, req UnstakeRequest) (*StakeAccount, error)

	Get(ctx context.Context, wallet string) (*UserAccount, error)
	GetStake(ctx context.Context, wallet string) (*StakeAccount, error)

	// EnsureAccount returns the wallet's account, creating a zeroed row
	// on first use. Runs in the caller's transaction.
	EnsureAccount(ctx context.Context, tx *gorm.DB, wallet string) (*UserAccount, error)

	// Lock reserves part of the deposited balance. Fails with
	// ErrInsufficientAvailableBalance when deposited-locked < amount.
	Lock(ctx context.Context, tx *gorm.DB, wallet string, amount int64) error

	// Unlock releases a reservation, saturating at zero. Funds already
	// consumed by payments are not double-released.
	Unlock(ctx context.Context, tx *gorm.DB, wallet string, amount int64) error

	// Spend consumes deposited funds for a payment, reducing the lock
	// by the same amount (saturating).
	Spend(ctx context.Context, tx *gorm.DB, wallet string, amount int64) error

	// AdjustSubscriptionCount moves the active-subscription counter by
	// delta, never below zero.
	AdjustSubscriptionCount(ctx context.Context, tx *gorm.DB, wallet string, delta int64) error
}
