package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransitionTo enforces the fixed lifecycle
// pending -> processing -> shipped -> delivered, with cancellation
// reachable from any non-terminal status.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case OrderStatusPending:
		return next == OrderStatusProcessing || next == OrderStatusCancelled
	case OrderStatusProcessing:
		return next == OrderStatusShipped || next == OrderStatusCancelled
	case OrderStatusShipped:
		return next == OrderStatusDelivered || next == OrderStatusCancelled
	default:
		return false
	}
}

// OrderLine snapshots a (product, quantity) pair at order-creation time.
// Later product price changes never alter historical orders.
type OrderLine struct {
	ProductID string
	Quantity  int
	Price     Money
}

type ShippingInfo struct {
	Method           string
	Fee              Money
	StartShipDate    time.Time
	ExpectedShipDate time.Time
	ShippedDate      *time.Time
}

type PaymentInfo struct {
	Method string
	Status string
}

const PaymentStatusPending = "pending"

// Order is immutable once created except for its status, shipped date and
// version. Cancellation is a status, not a deletion.
type Order struct {
	ID       string
	UserID   string
	Lines    []OrderLine
	Shipping ShippingInfo
	Payment  PaymentInfo
	SubTotal Money
	Total    Money
	Status   OrderStatus
	Version  int // optimistic locking

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ShippingPatch is the mutable shipping slice applied together with a status
// change as a single persisted update.
type ShippingPatch struct {
	ShippedDate *time.Time
}
