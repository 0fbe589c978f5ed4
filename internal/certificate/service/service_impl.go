package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sublyhq/subly/internal/certificate/domain"
	"github.com/sublyhq/subly/internal/clock"
	eventsdomain "github.com/sublyhq/subly/internal/events/domain"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type certificateService struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func NewService(p Params) domain.Service {
	return &certificateService{
		db:    p.DB,
		log:   p.Log.Named("certificate.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *certificateService) IssueFromEvent(ctx context.Context, ev eventsdomain.Event) (*domain.Certificate, error) {
	var kind domain.Kind
	var wallet string
	switch ev.Type {
	case eventsdomain.EventProviderRegistered:
		kind = domain.KindProviderBadge
		wallet, _ = ev.Payload["wallet"].(string)
	case eventsdomain.EventServiceRegistered:
		kind = domain.KindServiceBadge
		wallet, _ = ev.Payload["provider_wallet"].(string)
	case eventsdomain.EventSubscribed:
		kind = domain.KindSubscriptionCertificate
		wallet, _ = ev.Payload["wallet"].(string)
	default:
		return nil, domain.ErrUnsupportedEvent
	}

	cert := domain.Certificate{
		ID:       s.genID.Generate(),
		Kind:     kind,
		Wallet:   wallet,
		RefKey:   ev.DedupeKey,
		Details:  datatypes.JSONMap(ev.Payload),
		IssuedAt: s.clock.Now().UTC(),
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "ref_key"}},
			DoNothing: true,
		}).
		Create(&cert).Error
	if err != nil {
		return nil, err
	}

	s.log.Info("certificate issued",
		zap.String("kind", string(kind)),
		zap.String("wallet", wallet),
		zap.String("ref_key", ev.DedupeKey),
	)
	return &cert, nil
}

func (s *certificateService) ListByWallet(ctx context.Context, wallet string) ([]domain.Certificate, error) {
	var out []domain.Certificate
	err := s.db.WithContext(ctx).
		Where("wallet = ?", wallet).
		Order("issued_at DESC").
		Find(&out).Error
	return out, err
}
