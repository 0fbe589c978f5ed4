// Package domain defines the external yield-pool boundary. The pool
// converts native value into a yield-bearing receipt token and back at its
// current exchange rate; both legs are synchronous and atomic from the
// caller's point of view.
package domain

import "errors"

type Adapter interface {
	// Deposit stakes native value and returns the pool tokens received.
	Deposit(amount int64) (int64, error)

	// Withdraw burns pool tokens and returns the native value received.
	Withdraw(poolTokens int64) (int64, error)
}

var (
	ErrInvalidAmount  = errors.New("invalid_stake_amount")
	ErrStakePoolError = errors.New("stake_pool_error")
)
