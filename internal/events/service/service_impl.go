package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sublyhq/subly/internal/clock"
	"github.com/sublyhq/subly/internal/events/domain"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type outbox struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func NewOutbox(p Params) (domain.Publisher, domain.Consumer) {
	o := &outbox{
		db:    p.DB,
		log:   p.Log.Named("events.outbox"),
		genID: p.GenID,
		clock: p.Clock,
	}
	return o, o
}

func (o *outbox) PublishTx(ctx context.Context, tx *gorm.DB, typ domain.EventType, dedupeKey string, payload map[string]any) error {
	ev := domain.Event{
		ID:        o.genID.Generate(),
		Type:      typ,
		DedupeKey: dedupeKey,
		Payload:   datatypes.JSONMap(payload),
		CreatedAt: o.clock.Now().UTC(),
	}
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "dedupe_key"}},
			DoNothing: true,
		}).
		Create(&ev).Error
}

func (o *outbox) PollUnprocessed(ctx context.Context, types []domain.EventType, limit int) ([]domain.Event, error) {
	var out []domain.Event
	err := o.db.WithContext(ctx).
		Where("processed_at IS NULL AND type IN ?", types).
		Order("id ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (o *outbox) MarkProcessed(ctx context.Context, id snowflake.ID) error {
	now := o.clock.Now().UTC()
	return o.db.WithContext(ctx).
		Model(&domain.Event{}).
		Where("id = ?", id).
		Update("processed_at", now).Error
}
