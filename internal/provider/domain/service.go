package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrProviderNotFound        = errors.New("provider_not_found")
	ErrProviderAlreadyExists   = errors.New("provider_already_exists")
	ErrProviderInactive        = errors.New("provider_inactive")
	ErrServiceNotFound         = errors.New("service_not_found")
	ErrServiceInactive         = errors.New("service_inactive")
	ErrNameTooLong             = errors.New("name_too_long")
	ErrNameEmpty               = errors.New("name_empty")
	ErrDescriptionTooLong      = errors.New("description_too_long")
	ErrURLTooLong              = errors.New("url_too_long")
	ErrInvalidFee              = errors.New("invalid_fee")
	ErrInvalidBillingFrequency = errors.New("invalid_billing_frequency")
	ErrInvalidSubscriberCap    = errors.New("invalid_subscriber_cap")
)

// RegisterProviderRequest creates a merchant identity for a wallet.
type RegisterProviderRequest struct {
	Wallet   string         `json:"wallet"`
	Name     string         `json:"name" binding:"required"`
	Metadata map[string]any `json:"metadata"`
}

// RegisterServiceRequest adds a billable offering under the caller's
// provider. Fee is in USD cents, billing frequency in whole days.
type RegisterServiceRequest struct {
	Wallet               string `json:"wallet"`
	Name                 string `json:"name" binding:"required"`
	Description          string `json:"description"`
	URL                  string `json:"url"`
	FeeUSDCents          int64  `json:"fee_usd_cents" binding:"required"`
	BillingFrequencyDays int64  `json:"billing_frequency_days" binding:"required"`
	SubscriberCap        *int64 `json:"subscriber_cap"`
}

// SetServiceActiveRequest toggles an offering on or off.
type SetServiceActiveRequest struct {
	Wallet    string `json:"wallet"`
	ServiceID int64  `json:"service_id"`
	IsActive  bool   `json:"is_active"`
}

// Service owns the provider and catalog tables. The tx-scoped methods
// run inside another engine's transaction.
type Service interface {
	RegisterProvider(ctx context.Context, req RegisterProviderRequest) (*Provider, error)
	RegisterService(ctx context.Context, req RegisterServiceRequest) (*SubscriptionService, error)
	SetServiceActive(ctx context.Context, req SetServiceActiveRequest) (*SubscriptionService, error)

	GetProvider(ctx context.Context, wallet string) (*Provider, error)
	GetService(ctx context.Context, providerWallet string, serviceID int64) (*SubscriptionService, error)
	ListServices(ctx context.Context, providerWallet string) ([]SubscriptionService, error)

	// GetServiceForUpdate row-locks an offering in the caller's
	// transaction.
	GetServiceForUpdate(ctx context.Context, tx *gorm.DB, providerWallet string, serviceID int64) (*SubscriptionService, error)

	// AdjustSubscribers moves an offering's subscriber counter by
	// delta, never below zero.
	AdjustSubscribers(ctx context.Context, tx *gorm.DB, id snowflake.ID, delta int64) error

	// CreditRevenue adds a settled payment's provider share and fee
	// units to the provider row.
	CreditRevenue(ctx context.Context, tx *gorm.DB, wallet string, nativeAmount, feeUnits int64) error
}
