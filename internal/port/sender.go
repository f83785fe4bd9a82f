package port

import (
	"context"

	"github.com/shopengine/orderflow/internal/core/domain"
)

type PushSender interface {
	// Send delivers a push message carrying the notification payload.
	Send(ctx context.Context, pushToken, title string, data domain.NotificationData) error
}

type EmailSender interface {
	Send(ctx context.Context, toAddress, subject, htmlBody string) error
}

type DispatchGuard interface {
	// Acquire claims an idempotency key, returning false when the key was
	// already claimed by an earlier dispatch.
	Acquire(ctx context.Context, key string) (bool, error)
}
