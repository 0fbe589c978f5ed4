package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrSubscriptionNotFound   = errors.New("subscription_not_found")
	ErrSubscriptionNotActive  = errors.New("subscription_not_active")
	ErrAlreadySubscribed      = errors.New("already_subscribed")
	ErrCannotSubscribeToOwn   = errors.New("cannot_subscribe_to_own_service")
	ErrSubscriberLimitReached = errors.New("subscriber_limit_reached")
	ErrNotSubscriptionOwner   = errors.New("not_subscription_owner")
)

const (
	// LockUnitsPerCent values one USD cent of fee at a fixed number of
	// smallest native units for reservation purposes. The reservation
	// is deliberately oracle-independent so unlock releases exactly
	// what lock reserved.
	LockUnitsPerCent int64 = 1_000_000

	// PrelockPeriods is the look-ahead window the reservation covers,
	// so a payment run is never blocked by a suddenly-short balance.
	PrelockPeriods int64 = 12
)

// RequiredLock is the reservation taken at subscribe time for a fee in
// USD cents.
func RequiredLock(feeUSDCents int64) (int64, bool) {
	per := feeUSDCents * LockUnitsPerCent
	if feeUSDCents != 0 && per/feeUSDCents != LockUnitsPerCent {
		return 0, false
	}
	total := per * PrelockPeriods
	if per != 0 && total/per != PrelockPeriods {
		return 0, false
	}
	return total, true
}

// SubscribeRequest opens a subscription for the caller's wallet.
type SubscribeRequest struct {
	Wallet         string `json:"wallet"`
	ProviderWallet string `json:"provider_wallet" binding:"required"`
	ServiceID      int64  `json:"service_id" binding:"required"`
}

// UnsubscribeRequest terminates one of the caller's subscriptions.
type UnsubscribeRequest struct {
	Wallet         string
	SubscriptionID snowflake.ID
}

// Service drives the subscription state machine.
type Service interface {
	Subscribe(ctx context.Context, req SubscribeRequest) (*UserSubscription, error)
	Unsubscribe(ctx context.Context, req UnsubscribeRequest) (*UserSubscription, error)

	Get(ctx context.Context, id snowflake.ID) (*UserSubscription, error)
	ListByWallet(ctx context.Context, wallet string) ([]UserSubscription, error)

	// ListDue pages active subscriptions whose next_payment_due is at
	// or before now, ordered by due date.
	ListDue(ctx context.Context, now time.Time, limit int) ([]UserSubscription, error)

	// GetForUpdate row-locks a subscription in the caller's
	// transaction.
	GetForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*UserSubscription, error)

	// AdvanceCycle records a settled payment: stamps last_payment_at,
	// bumps total_payments_made and moves next_payment_due forward by
	// period from the previous due date.
	AdvanceCycle(ctx context.Context, tx *gorm.DB, sub *UserSubscription, paidAt time.Time, period time.Duration, spent int64) error
}
