package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type InitializeRequest struct {
	AuthorityWallet string `json:"authority_wallet"`
	ProtocolFeeBps  int64  `json:"protocol_fee_bps"`
	OracleFeed      string `json:"oracle_feed"`
	FeeMint         string `json:"fee_mint"`
	StakePool       string `json:"stake_pool"`
}

type Service interface {
	Initialize(ctx context.Context, req InitializeRequest) (*GlobalConfig, error)
	Get(ctx context.Context) (*GlobalConfig, error)
	Pause(ctx context.Context, caller string) error
	Resume(ctx context.Context, caller string) error
	SetProtocolFee(ctx context.Context, caller string, feeBps int64) error

	// EnsureActive loads the config inside tx and fails when the protocol
	// is paused. Core engines call it first in their transactions.
	EnsureActive(ctx context.Context, tx *gorm.DB) (*GlobalConfig, error)

	// BumpTotalServices increments the global service counter inside tx.
	BumpTotalServices(ctx context.Context, tx *gorm.DB) error

	// MarkBatchProcessed stamps the last payment-batch run.
	MarkBatchProcessed(ctx context.Context, at time.Time) error
}

var (
	ErrNotInitialized        = errors.New("protocol_not_initialized")
	ErrAlreadyInitialized    = errors.New("protocol_already_initialized")
	ErrProtocolPaused        = errors.New("protocol_paused")
	ErrUnauthorizedAuthority = errors.New("unauthorized_authority")
	ErrInvalidProtocolFee    = errors.New("invalid_protocol_fee")
)
