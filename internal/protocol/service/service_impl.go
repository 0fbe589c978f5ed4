package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/sublyhq/subly/internal/clock"
	protocoldomain "github.com/sublyhq/subly/internal/protocol/domain"
	"github.com/sublyhq/subly/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxFeeBps = 10_000

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

func NewService(p Params) protocoldomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("protocol.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) Initialize(ctx context.Context, req protocoldomain.InitializeRequest) (*protocoldomain.GlobalConfig, error) {
	authority := strings.TrimSpace(req.AuthorityWallet)
	if authority == "" {
		return nil, protocoldomain.ErrUnauthorizedAuthority
	}
	if req.ProtocolFeeBps < 0 || req.ProtocolFeeBps > maxFeeBps {
		return nil, protocoldomain.ErrInvalidProtocolFee
	}

	now := s.clock.Now()
	cfg := protocoldomain.GlobalConfig{
		ID:              s.genID.Generate(),
		AuthorityWallet: authority,
		ProtocolFeeBps:  req.ProtocolFeeBps,
		OracleFeed:      strings.TrimSpace(req.OracleFeed),
		FeeMint:         strings.TrimSpace(req.FeeMint),
		StakePool:       strings.TrimSpace(req.StakePool),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.load(ctx, tx)
		if err != nil {
			return err
		}
		if existing != nil {
			return protocoldomain.ErrAlreadyInitialized
		}
		return tx.WithContext(ctx).Create(&cfg).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("protocol initialized",
		zap.String("authority", authority),
		zap.Int64("fee_bps", req.ProtocolFeeBps),
	)
	return &cfg, nil
}

func (s *Service) Get(ctx context.Context) (*protocoldomain.GlobalConfig, error) {
	cfg, err := s.load(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, protocoldomain.ErrNotInitialized
	}
	return cfg, nil
}

func (s *Service) Pause(ctx context.Context, caller string) error {
	return s.setPaused(ctx, caller, true)
}

func (s *Service) Resume(ctx context.Context, caller string) error {
	return s.setPaused(ctx, caller, false)
}

func (s *Service) SetProtocolFee(ctx context.Context, caller string, feeBps int64) error {
	if feeBps < 0 || feeBps > maxFeeBps {
		return protocoldomain.ErrInvalidProtocolFee
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cfg, err := s.loadForUpdate(ctx, tx)
		if err != nil {
			return err
		}
		if cfg.AuthorityWallet != caller {
			return protocoldomain.ErrUnauthorizedAuthority
		}
		return tx.WithContext(ctx).Model(&protocoldomain.GlobalConfig{}).
			Where("id = ?", cfg.ID).
			Updates(map[string]any{
				"protocol_fee_bps": feeBps,
				"updated_at":       s.clock.Now(),
			}).Error
	})
}

// EnsureActive implements the governance gate: the first check of every
// mutating operation's transaction.
func (s *Service) EnsureActive(ctx context.Context, tx *gorm.DB) (*protocoldomain.GlobalConfig, error) {
	cfg, err := s.load(ctx, tx)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, protocoldomain.ErrNotInitialized
	}
	if cfg.IsPaused {
		return nil, protocoldomain.ErrProtocolPaused
	}
	return cfg, nil
}

func (s *Service) BumpTotalServices(ctx context.Context, tx *gorm.DB) error {
	return tx.WithContext(ctx).Model(&protocoldomain.GlobalConfig{}).
		Where("1 = 1").
		UpdateColumn("total_services", gorm.Expr("total_services + 1")).Error
}

func (s *Service) MarkBatchProcessed(ctx context.Context, at time.Time) error {
	return s.db.WithContext(ctx).Model(&protocoldomain.GlobalConfig{}).
		Where("1 = 1").
		Updates(map[string]any{
			"last_batch_processed_at": at.UTC(),
			"updated_at":              s.clock.Now(),
		}).Error
}

func (s *Service) setPaused(ctx context.Context, caller string, paused bool) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cfg, err := s.loadForUpdate(ctx, tx)
		if err != nil {
			return err
		}
		if cfg.AuthorityWallet != caller {
			return protocoldomain.ErrUnauthorizedAuthority
		}
		return tx.WithContext(ctx).Model(&protocoldomain.GlobalConfig{}).
			Where("id = ?", cfg.ID).
			Updates(map[string]any{
				"is_paused":  paused,
				"updated_at": s.clock.Now(),
			}).Error
	})
	if err != nil {
		return err
	}
	s.log.Info("protocol pause flag changed", zap.Bool("paused", paused))
	return nil
}

func (s *Service) load(ctx context.Context, tx *gorm.DB) (*protocoldomain.GlobalConfig, error) {
	var cfg protocoldomain.GlobalConfig
	err := tx.WithContext(ctx).Limit(1).Find(&cfg).Error
	if err != nil {
		return nil, err
	}
	if cfg.ID == 0 {
		return nil, nil
	}
	return &cfg, nil
}

func (s *Service) loadForUpdate(ctx context.Context, tx *gorm.DB) (*protocoldomain.GlobalConfig, error) {
	var cfg protocoldomain.GlobalConfig
	err := db.LockForUpdate(tx.WithContext(ctx)).Limit(1).Find(&cfg).Error
	if err != nil {
		return nil, err
	}
	if cfg.ID == 0 {
		return nil, protocoldomain.ErrNotInitialized
	}
	return &cfg, nil
}
