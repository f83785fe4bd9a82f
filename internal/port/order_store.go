package port

import (
	"context"

	"github.com/shopengine/orderflow/internal/core/domain"
)

type OrderStore interface {
	// InsertOrder persists a new order together with its line snapshot.
	InsertOrder(ctx context.Context, order domain.Order) error

	// GetOrder returns domain.ErrOrderNotFound when no such order exists.
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)

	// UpdateOrderStatus applies status and patch as one persisted update,
	// conditional on the order still being at fromVersion. Returns false on
	// a version conflict.
	UpdateOrderStatus(ctx context.Context, orderID string, fromVersion int, newStatus domain.OrderStatus, patch domain.ShippingPatch) (bool, error)
}

type NotificationStore interface {
	InsertNotification(ctx context.Context, n domain.Notification) error
}

type UserDirectory interface {
	// GetUser returns domain.ErrUserNotFound when no such user exists.
	GetUser(ctx context.Context, userID string) (domain.User, error)
}
