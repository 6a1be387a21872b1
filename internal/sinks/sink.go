package sinks

import (
	"context"

	"github.com/anonto42/loopline/backend/internal/models"
)

// Sink is an off-channel delivery mechanism (email, push). Delivery is
// best-effort: the persisted notification never depends on a sink.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, n *models.Notification) error
}

// RecipientDirectory resolves the contact coordinates a sink needs.
// Account storage is an external collaborator; this is its boundary.
type RecipientDirectory interface {
	EmailAddress(ctx context.Context, userID uint) (string, error)
	DeviceTokens(ctx context.Context, userID uint) ([]string, error)
}
