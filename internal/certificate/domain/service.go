package domain

import (
	"context"
	"errors"

	eventsdomain "github.com/sublyhq/subly/internal/events/domain"
)

var ErrUnsupportedEvent = errors.New("unsupported_event_type")

// Service turns registration and subscription events into certificate
// rows.
type Service interface {
	// IssueFromEvent issues the certificate matching one outbox event.
	// Issuing the same event twice is a no-op.
	IssueFromEvent(ctx context.Context, ev eventsdomain.Event) (*Certificate, error)

	ListByWallet(ctx context.Context, wallet string) ([]Certificate, error)
}
