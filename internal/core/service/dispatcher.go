package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shopengine/orderflow/internal/core/domain"
	"github.com/shopengine/orderflow/internal/port"
)

// tab index on the client's order screen per status.
var statusTabs = map[domain.OrderStatus]int{
	domain.OrderStatusPending:    0,
	domain.OrderStatusProcessing: 1,
	domain.OrderStatusShipped:    2,
	domain.OrderStatusDelivered:  3,
	domain.OrderStatusCancelled:  4,
}

type dispatchJob struct {
	order     domain.Order
	oldStatus domain.OrderStatus
	newStatus domain.OrderStatus
	created   bool
}

// Dispatcher fans out the side effects of an order event through a bounded
// in-process queue and a worker pool, decoupling transition latency from
// provider latency. Persisting the notification, sending the push and sending
// the email are independent best-effort steps: failures are logged, never
// propagated, and never roll anything back.
type Dispatcher struct {
	notifications port.NotificationStore
	users         port.UserDirectory
	guard         port.DispatchGuard
	push          port.PushSender
	email         port.EmailSender
	logger        *zap.Logger

	queue      chan dispatchJob
	wg         sync.WaitGroup
	jobTimeout time.Duration
}

func NewDispatcher(
	notifications port.NotificationStore,
	users port.UserDirectory,
	guard port.DispatchGuard,
	push port.PushSender,
	email port.EmailSender,
	queueSize int,
	jobTimeout time.Duration,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		notifications: notifications,
		users:         users,
		guard:         guard,
		push:          push,
		email:         email,
		logger:        logger,
		queue:         make(chan dispatchJob, queueSize),
		jobTimeout:    jobTimeout,
	}
}

// Start launches the worker pool.
func (d *Dispatcher) Start(workers int) {
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for job := range d.queue {
				d.process(job)
			}
		}()
	}
}

// Close stops accepting jobs and waits until queued jobs are drained.
func (d *Dispatcher) Close() {
	close(d.queue)
	d.wg.Wait()
}

// Dispatch enqueues the side effects of a committed status transition. It
// never blocks the caller: when the queue is full the job is dropped with a
// logged error, since the transition itself has already committed.
func (d *Dispatcher) Dispatch(order domain.Order, oldStatus, newStatus domain.OrderStatus) {
	d.enqueue(dispatchJob{order: order, oldStatus: oldStatus, newStatus: newStatus})
}

// DispatchCreated enqueues the order-creation confirmation email.
func (d *Dispatcher) DispatchCreated(order domain.Order) {
	d.enqueue(dispatchJob{order: order, newStatus: order.Status, created: true})
}

func (d *Dispatcher) enqueue(job dispatchJob) {
	select {
	case d.queue <- job:
	default:
		d.logger.Error("dispatch queue full, dropping side effects",
			zap.String("order_id", job.order.ID),
			zap.String("status", string(job.newStatus)))
	}
}

func (d *Dispatcher) process(job dispatchJob) {
	ctx, cancel := context.WithTimeout(context.Background(), d.jobTimeout)
	defer cancel()

	order := job.order
	key := dispatchKey(job)

	claimed, err := d.guard.Acquire(ctx, key)
	if err != nil {
		// Prefer a rare duplicate notification over a lost one.
		d.logger.Warn("dispatch guard unavailable, proceeding",
			zap.String("key", key), zap.Error(err))
	} else if !claimed {
		d.logger.Debug("side effects already dispatched", zap.String("key", key))
		return
	}

	user, err := d.users.GetUser(ctx, order.UserID)
	if err != nil {
		d.logger.Error("user lookup failed, skipping side effects",
			zap.String("order_id", order.ID),
			zap.String("user_id", order.UserID),
			zap.Error(err))
		return
	}

	if !job.created {
		d.notify(ctx, order, user, job.newStatus)
	}

	subject, body := composeOrderEmail(job)
	if err := d.email.Send(ctx, user.Email, subject, body); err != nil {
		d.logger.Error("email delivery failed",
			zap.String("order_id", order.ID),
			zap.String("to", user.Email),
			zap.Error(err))
	}
}

func (d *Dispatcher) notify(ctx context.Context, order domain.Order, user domain.User, status domain.OrderStatus) {
	data := domain.NotificationData{
		Type:   domain.NotificationTypeOrder,
		ID:     order.ID,
		Status: string(status),
		Screen: domain.NotificationScreenOrders,
		Tab:    statusTabs[status],
	}
	title := "Order update"
	body := fmt.Sprintf("Your order %s is now %s.", order.ID, status)

	n := domain.Notification{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Title:     title,
		Body:      body,
		Data:      data,
		Type:      domain.NotificationTypeOrder,
		Status:    domain.NotificationStatusActive,
		CreatedAt: time.Now().UTC(),
	}
	if err := d.notifications.InsertNotification(ctx, n); err != nil {
		d.logger.Error("notification record failed",
			zap.String("order_id", order.ID),
			zap.Error(err))
	}

	if user.PushToken == "" {
		return
	}
	if err := d.push.Send(ctx, user.PushToken, title, data); err != nil {
		d.logger.Error("push delivery failed",
			zap.String("order_id", order.ID),
			zap.Error(err))
	}
}

func dispatchKey(job dispatchJob) string {
	if job.created {
		return "notify:" + job.order.ID + ":created"
	}
	return "notify:" + job.order.ID + ":" + string(job.newStatus)
}

func composeOrderEmail(job dispatchJob) (subject, body string) {
	order := job.order

	if job.created {
		subject = fmt.Sprintf("Order %s confirmed", order.ID)
	} else {
		subject = fmt.Sprintf("Order %s is now %s", order.ID, job.newStatus)
	}

	var b strings.Builder
	b.WriteString("<html><body>")
	if job.created {
		fmt.Fprintf(&b, "<p>Thank you for your order <b>%s</b>.</p>", order.ID)
	} else {
		fmt.Fprintf(&b, "<p>Your order <b>%s</b> is now <b>%s</b>.</p>", order.ID, job.newStatus)
	}
	b.WriteString("<table><tr><th>Product</th><th>Quantity</th><th>Price</th></tr>")
	for _, line := range order.Lines {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%d</td><td>%s</td></tr>",
			line.ProductID, line.Quantity, line.Price)
	}
	b.WriteString("</table>")
	fmt.Fprintf(&b, "<p>Subtotal: %s<br>Shipping (%s): %s<br>Total: %s</p>",
		order.SubTotal, order.Shipping.Method, order.Shipping.Fee, order.Total)
	b.WriteString("</body></html>")

	return subject, b.String()
}
