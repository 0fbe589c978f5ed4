package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Publisher appends events inside the caller's transaction. A repeated
// dedupe key is silently ignored so retried transactions stay clean.
type Publisher interface {
	PublishTx(ctx context.Context, tx *gorm.DB, typ EventType, dedupeKey string, payload map[string]any) error
}

// Consumer drains unprocessed events of the given types.
type Consumer interface {
	PollUnprocessed(ctx context.Context, types []EventType, limit int) ([]Event, error)
	MarkProcessed(ctx context.Context, id snowflake.ID) error
}
