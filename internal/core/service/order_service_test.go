package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shopengine/orderflow/internal/core/domain"
)

type orderRig struct {
	svc      *OrderService
	products *fakeProductStore
	carts    *fakeCartStore
	orders   *fakeOrderStore
	notifs   *fakeNotificationStore
	push     *fakePushSender
	email    *fakeEmailSender

	dispatcher *Dispatcher
	drainOnce  sync.Once
}

func newOrderRig(t *testing.T, products ...domain.Product) *orderRig {
	t.Helper()

	rig := &orderRig{
		products: newFakeProductStore(products...),
		carts:    newFakeCartStore(),
		orders:   newFakeOrderStore(),
		notifs:   &fakeNotificationStore{},
		push:     &fakePushSender{},
		email:    &fakeEmailSender{},
	}

	users := newFakeUserDirectory(domain.User{
		ID:        "u1",
		Email:     "u1@example.com",
		Username:  "u1",
		PushToken: "token-u1",
	})

	logger := zap.NewNop()
	rig.dispatcher = NewDispatcher(rig.notifs, users, newFakeGuard(), rig.push, rig.email,
		100, time.Second, logger)
	rig.dispatcher.Start(2)
	t.Cleanup(rig.drain)

	ledger := NewStockLedger(rig.products, logger)
	rig.svc = NewOrderService(rig.orders, rig.carts, users, ledger, rig.dispatcher,
		testShippingTable(), logger)

	return rig
}

// drain waits until all queued side effects have been processed.
func (r *orderRig) drain() {
	r.drainOnce.Do(r.dispatcher.Close)
}

func cartLine(userID, productID string, quantity int, unitPrice int64) domain.CartLine {
	price := usd(unitPrice)
	return domain.CartLine{
		ID:        userID + "-" + productID,
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
		Price:     price,
		Total:     price.Mul(quantity),
	}
}

func TestCreateOrder_Totals(t *testing.T) {
	rig := newOrderRig(t)

	order, err := rig.svc.CreateOrder(context.Background(), "u1",
		[]domain.CartLine{
			cartLine("u1", "a", 2, 10),
			cartLine("u1", "b", 3, 5),
		}, "exp", "cod")
	require.NoError(t, err)

	assert.True(t, order.SubTotal.Amount.Equal(decimal.NewFromInt(35)), "subTotal, got %s", order.SubTotal)
	assert.True(t, order.Total.Amount.Equal(decimal.NewFromInt(235)), "total, got %s", order.Total)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, "exp", order.Shipping.Method)
	assert.Equal(t, 3*24*time.Hour, order.Shipping.ExpectedShipDate.Sub(order.Shipping.StartShipDate))
	assert.Nil(t, order.Shipping.ShippedDate)
	assert.Equal(t, "cod", order.Payment.Method)
	assert.Equal(t, domain.PaymentStatusPending, order.Payment.Status)

	stored, err := rig.orders.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Lines, 2)
}

func TestCreateOrder_ConsumesOnlyOrderedLines(t *testing.T) {
	rig := newOrderRig(t)

	ordered := cartLine("u1", "a", 2, 10)
	unrelated := cartLine("u1", "b", 1, 5)
	require.NoError(t, rig.carts.InsertLine(context.Background(), ordered))
	require.NoError(t, rig.carts.InsertLine(context.Background(), unrelated))

	_, err := rig.svc.CreateOrder(context.Background(), "u1",
		[]domain.CartLine{ordered}, "std", "cod")
	require.NoError(t, err)

	_, err = rig.carts.GetLine(context.Background(), "u1", "a")
	require.ErrorIs(t, err, domain.ErrCartLineNotFound, "consumed line must be deleted")

	remaining, err := rig.carts.GetLine(context.Background(), "u1", "b")
	require.NoError(t, err, "unrelated line must survive")
	assert.Equal(t, 1, remaining.Quantity)
}

func TestCreateOrder_UserNotFound(t *testing.T) {
	rig := newOrderRig(t)

	_, err := rig.svc.CreateOrder(context.Background(), "ghost",
		[]domain.CartLine{cartLine("ghost", "a", 1, 10)}, "std", "cod")
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestCreateOrder_UnknownShippingMethod(t *testing.T) {
	rig := newOrderRig(t)

	_, err := rig.svc.CreateOrder(context.Background(), "u1",
		[]domain.CartLine{cartLine("u1", "a", 1, 10)}, "teleport", "cod")
	require.ErrorIs(t, err, domain.ErrUnknownShippingMethod)
}

func TestCreateOrder_NoLines(t *testing.T) {
	rig := newOrderRig(t)

	_, err := rig.svc.CreateOrder(context.Background(), "u1", nil, "std", "cod")
	require.Error(t, err)
}

func TestCreateOrder_SendsConfirmationEmail(t *testing.T) {
	rig := newOrderRig(t)

	order, err := rig.svc.CreateOrder(context.Background(), "u1",
		[]domain.CartLine{cartLine("u1", "a", 2, 10)}, "std", "cod")
	require.NoError(t, err)

	rig.drain()

	emails := rig.email.calls()
	require.Len(t, emails, 1)
	assert.Equal(t, "u1@example.com", emails[0].to)
	assert.Contains(t, emails[0].subject, order.ID)

	// creation is an email-only side effect
	assert.Empty(t, rig.notifs.all())
	assert.Empty(t, rig.push.calls())
}

func TestTransition_LegalChain(t *testing.T) {
	rig := newOrderRig(t, domain.Product{ID: "a", Price: usd(10), Stock: 5})

	order, err := rig.svc.CreateOrder(context.Background(), "u1",
		[]domain.CartLine{cartLine("u1", "a", 2, 10)}, "std", "cod")
	require.NoError(t, err)

	order, err = rig.svc.Transition(context.Background(), order.ID, domain.OrderStatusProcessing, domain.ShippingPatch{})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusProcessing, order.Status)

	order, err = rig.svc.Transition(context.Background(), order.ID, domain.OrderStatusShipped, domain.ShippingPatch{})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusShipped, order.Status)
	require.NotNil(t, order.Shipping.ShippedDate)
	assert.Equal(t, 3, rig.products.stock("a"), "shipping reserves stock")

	order, err = rig.svc.Transition(context.Background(), order.ID, domain.OrderStatusDelivered, domain.ShippingPatch{})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusDelivered, order.Status)
}

func TestTransition_IllegalTargetRejected(t *testing.T) {
	rig := newOrderRig(t)

	order, err := rig.svc.CreateOrder(context.Background(), "u1",
		[]domain.CartLine{cartLine("u1", "a", 1, 10)}, "std", "cod")
	require.NoError(t, err)

	_, err = rig.svc.Transition(context.Background(), order.ID, domain.OrderStatusDelivered, domain.ShippingPatch{})
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	assert.Equal(t, domain.OrderStatusPending, rig.orders.status(order.ID), "status unchanged")
}

func TestTransition_TerminalStateRejected(t *testing.T) {
	rig := newOrderRig(t)

	order, err := rig.svc.CreateOrder(context.Background(), "u1",
		[]domain.CartLine{cartLine("u1", "a", 1, 10)}, "std", "cod")
	require.NoError(t, err)

	_, err = rig.svc.Transition(context.Background(), order.ID, domain.OrderStatusCancelled, domain.ShippingPatch{})
	require.NoError(t, err)

	_, err = rig.svc.Transition(context.Background(), order.ID, domain.OrderStatusProcessing, domain.ShippingPatch{})
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestTransition_UnknownStatus(t *testing.T) {
	rig := newOrderRig(t)

	_, err := rig.svc.Transition(context.Background(), "any", domain.OrderStatus("lost"), domain.ShippingPatch{})
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestTransition_OrderNotFound(t *testing.T) {
	rig := newOrderRig(t)

	_, err := rig.svc.Transition(context.Background(), "missing", domain.OrderStatusProcessing, domain.ShippingPatch{})
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestTransition_ShippedDrainsStock(t *testing.T) {
	rig := newOrderRig(t, domain.Product{ID: "a", Price: usd(10), Stock: 2})

	ship := func(t *testing.T, orderID string) error {
		t.Helper()
		_, err := rig.svc.Transition(context.Background(), orderID, domain.OrderStatusProcessing, domain.ShippingPatch{})
		require.NoError(t, err)
		_, err = rig.svc.Transition(context.Background(), orderID, domain.OrderStatusShipped, domain.ShippingPatch{})
		return err
	}

	first, err := rig.svc.CreateOrder(context.Background(), "u1",
		[]domain.CartLine{cartLine("u1", "a", 2, 10)}, "std", "cod")
	require.NoError(t, err)

	second, err := rig.svc.CreateOrder(context.Background(), "u1",
		[]domain.CartLine{cartLine("u1", "a", 1, 10)}, "std", "cod")
	require.NoError(t, err)

	require.NoError(t, ship(t, first.ID))
	assert.Equal(t, 0, rig.products.stock("a"))

	// the second order references stock the first already committed
	err = ship(t, second.ID)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, 0, rig.products.stock("a"))
	assert.Equal(t, domain.OrderStatusProcessing, rig.orders.status(second.ID))
}

func TestTransition_ShippedRollsBackPartialReservation(t *testing.T) {
	rig := newOrderRig(t,
		domain.Product{ID: "a", Price: usd(10), Stock: 5},
		domain.Product{ID: "b", Price: usd(5), Stock: 1},
	)

	order, err := rig.svc.CreateOrder(context.Background(), "u1",
		[]domain.CartLine{
			cartLine("u1", "a", 3, 10),
			cartLine("u1", "b", 2, 5),
		}, "std", "cod")
	require.NoError(t, err)

	_, err = rig.svc.Transition(context.Background(), order.ID, domain.OrderStatusProcessing, domain.ShippingPatch{})
	require.NoError(t, err)

	_, err = rig.svc.Transition(context.Background(), order.ID, domain.OrderStatusShipped, domain.ShippingPatch{})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	assert.Equal(t, 5, rig.products.stock("a"), "partial reservation released")
	assert.Equal(t, 1, rig.products.stock("b"))
	assert.Equal(t, domain.OrderStatusProcessing, rig.orders.status(order.ID))
}

func TestTransition_RetriesStaleWrite(t *testing.T) {
	rig := newOrderRig(t, domain.Product{ID: "a", Price: usd(10), Stock: 5})

	order, err := rig.svc.CreateOrder(context.Background(), "u1",
		[]domain.CartLine{cartLine("u1", "a", 2, 10)}, "std", "cod")
	require.NoError(t, err)

	_, err = rig.svc.Transition(context.Background(), order.ID, domain.OrderStatusProcessing, domain.ShippingPatch{})
	require.NoError(t, err)

	rig.orders.staleWrites = 1

	updated, err := rig.svc.Transition(context.Background(), order.ID, domain.OrderStatusShipped, domain.ShippingPatch{})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusShipped, updated.Status)
	assert.Equal(t, 3, rig.products.stock("a"), "stock reserved exactly once across retries")
}

func TestTransition_SurfacesStaleWriteAfterRetries(t *testing.T) {
	rig := newOrderRig(t, domain.Product{ID: "a", Price: usd(10), Stock: 5})

	order, err := rig.svc.CreateOrder(context.Background(), "u1",
		[]domain.CartLine{cartLine("u1", "a", 2, 10)}, "std", "cod")
	require.NoError(t, err)

	rig.orders.staleWrites = 10

	_, err = rig.svc.Transition(context.Background(), order.ID, domain.OrderStatusProcessing, domain.ShippingPatch{})
	require.ErrorIs(t, err, domain.ErrStaleWrite)
}

func TestTransition_DispatchesSideEffects(t *testing.T) {
	rig := newOrderRig(t)

	order, err := rig.svc.CreateOrder(context.Background(), "u1",
		[]domain.CartLine{cartLine("u1", "a", 2, 10)}, "std", "cod")
	require.NoError(t, err)

	_, err = rig.svc.Transition(context.Background(), order.ID, domain.OrderStatusProcessing, domain.ShippingPatch{})
	require.NoError(t, err)

	rig.drain()

	notifs := rig.notifs.all()
	require.Len(t, notifs, 1)
	assert.Equal(t, "u1", notifs[0].UserID)
	assert.Equal(t, domain.NotificationTypeOrder, notifs[0].Type)
	assert.Equal(t, domain.NotificationStatusActive, notifs[0].Status)
	assert.Equal(t, order.ID, notifs[0].Data.ID)
	assert.Equal(t, string(domain.OrderStatusProcessing), notifs[0].Data.Status)

	pushes := rig.push.calls()
	require.Len(t, pushes, 1)
	assert.Equal(t, "token-u1", pushes[0].token)
	assert.Equal(t, notifs[0].Data, pushes[0].data)

	// one creation email plus one transition email
	assert.Len(t, rig.email.calls(), 2)
}
