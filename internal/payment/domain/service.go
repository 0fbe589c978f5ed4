package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var ErrPaymentNotDue = errors.New("payment_not_due")

// UnitScale converts USD cents into smallest native units at a quoted
// price: amount = fee_cents * UnitScale / price_cents.
const UnitScale int64 = 1_000_000_000

// FeeUnitsPerCent expresses one USD cent in smallest fee-denomination
// units when booking a provider's settled revenue.
const FeeUnitsPerCent int64 = 10_000

// ExecuteRequest settles one due billing cycle.
type ExecuteRequest struct {
	SubscriptionID snowflake.ID `json:"subscription_id"`
}

// Service is the payment execution engine. ExecutePayment applies the
// whole cycle, debit, split, transfer and bookkeeping, as one atomic
// transaction.
type Service interface {
	ExecutePayment(ctx context.Context, req ExecuteRequest) (*PaymentRecord, error)
	ListBySubscription(ctx context.Context, subscriptionID snowflake.ID) ([]PaymentRecord, error)
	ListByWallet(ctx context.Context, wallet string, limit int) ([]PaymentRecord, error)
}
