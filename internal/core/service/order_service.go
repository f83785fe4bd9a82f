package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shopengine/orderflow/internal/core/domain"
	"github.com/shopengine/orderflow/internal/port"
)

// OrderService assembles cart lines into immutable orders and advances them
// through the status lifecycle.
type OrderService struct {
	orders     port.OrderStore
	carts      port.CartStore
	users      port.UserDirectory
	ledger     *StockLedger
	dispatcher *Dispatcher
	shipping   domain.ShippingTable
	logger     *zap.Logger
}

func NewOrderService(
	orders port.OrderStore,
	carts port.CartStore,
	users port.UserDirectory,
	ledger *StockLedger,
	dispatcher *Dispatcher,
	shipping domain.ShippingTable,
	logger *zap.Logger,
) *OrderService {
	return &OrderService{
		orders:     orders,
		carts:      carts,
		users:      users,
		ledger:     ledger,
		dispatcher: dispatcher,
		shipping:   shipping,
		logger:     logger,
	}
}

// CreateOrder snapshots the given cart lines plus shipping and payment
// selection into a pending order, consumes exactly those cart lines, and
// emits a best-effort confirmation email. No stock is reserved here; the
// shipped transition is the enforcement point.
func (s *OrderService) CreateOrder(ctx context.Context, userID string, lines []domain.CartLine, shippingMethod, paymentMethod string) (domain.Order, error) {
	if userID == "" {
		return domain.Order{}, fmt.Errorf("userID is empty")
	}
	if len(lines) == 0 {
		return domain.Order{}, fmt.Errorf("no cart lines to order")
	}

	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return domain.Order{}, fmt.Errorf("get user %s: %w", userID, err)
	}

	opt, err := s.shipping.Lookup(shippingMethod)
	if err != nil {
		return domain.Order{}, err
	}

	subTotal := domain.ZeroMoney(opt.Fee.Currency)
	orderLines := make([]domain.OrderLine, 0, len(lines))
	productIDs := make([]string, 0, len(lines))
	for _, line := range lines {
		lineTotal := line.Price.Mul(line.Quantity)
		subTotal, err = subTotal.Add(lineTotal)
		if err != nil {
			return domain.Order{}, fmt.Errorf("sum line %s: %w", line.ProductID, err)
		}
		orderLines = append(orderLines, domain.OrderLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Price:     line.Price,
		})
		productIDs = append(productIDs, line.ProductID)
	}

	total, err := subTotal.Add(opt.Fee)
	if err != nil {
		return domain.Order{}, fmt.Errorf("add shipping fee: %w", err)
	}

	now := time.Now().UTC()
	order := domain.Order{
		ID:     uuid.NewString(),
		UserID: userID,
		Lines:  orderLines,
		Shipping: domain.ShippingInfo{
			Method:           shippingMethod,
			Fee:              opt.Fee,
			StartShipDate:    now,
			ExpectedShipDate: now.AddDate(0, 0, opt.TransitDays),
		},
		Payment: domain.PaymentInfo{
			Method: paymentMethod,
			Status: domain.PaymentStatusPending,
		},
		SubTotal:  subTotal,
		Total:     total,
		Status:    domain.OrderStatusPending,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.orders.InsertOrder(ctx, order); err != nil {
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}

	// Delete only the consumed lines; unrelated in-progress lines added
	// concurrently stay in the cart. The order already exists, so a delete
	// failure is logged rather than failing the creation.
	if err := s.carts.DeleteLines(ctx, userID, productIDs); err != nil {
		s.logger.Warn("failed to delete consumed cart lines",
			zap.String("user_id", userID),
			zap.String("order_id", order.ID),
			zap.Error(err))
	}

	s.dispatcher.DispatchCreated(order)

	return order, nil
}

// Transition validates and applies a status change, reserving stock when the
// target is shipped. Transitions for a single order are strictly serialized
// through an optimistic version check; stale writes are retried a bounded
// number of times.
func (s *OrderService) Transition(ctx context.Context, orderID string, newStatus domain.OrderStatus, patch domain.ShippingPatch) (domain.Order, error) {
	if !newStatus.Valid() {
		return domain.Order{}, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidTransition, newStatus)
	}

	for attempt := 0; attempt < writeRetryLimit; attempt++ {
		order, err := s.orders.GetOrder(ctx, orderID)
		if err != nil {
			return domain.Order{}, fmt.Errorf("get order %s: %w", orderID, err)
		}

		if !order.Status.CanTransitionTo(newStatus) {
			return domain.Order{}, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, order.Status, newStatus)
		}

		reserved := false
		if newStatus == domain.OrderStatusShipped {
			if err := s.ledger.ReserveAll(ctx, order.Lines); err != nil {
				return domain.Order{}, fmt.Errorf("reserve order %s stock: %w", orderID, err)
			}
			reserved = true
			if patch.ShippedDate == nil {
				shipped := time.Now().UTC()
				patch.ShippedDate = &shipped
			}
		}

		applied, err := s.orders.UpdateOrderStatus(ctx, orderID, order.Version, newStatus, patch)
		if err != nil {
			if reserved {
				s.ledger.releaseApplied(ctx, order.Lines)
			}
			return domain.Order{}, fmt.Errorf("update order %s status: %w", orderID, err)
		}
		if !applied {
			// The order moved under us; release any reservation and retry
			// against the fresh version.
			if reserved {
				s.ledger.releaseApplied(ctx, order.Lines)
			}
			continue
		}

		oldStatus := order.Status
		order.Status = newStatus
		order.Version++
		order.UpdatedAt = time.Now().UTC()
		if patch.ShippedDate != nil {
			order.Shipping.ShippedDate = patch.ShippedDate
		}

		s.dispatcher.Dispatch(order, oldStatus, newStatus)

		return order, nil
	}

	return domain.Order{}, fmt.Errorf("transition order %s to %s: %w", orderID, newStatus, domain.ErrStaleWrite)
}

func (s *OrderService) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	return s.orders.GetOrder(ctx, orderID)
}
