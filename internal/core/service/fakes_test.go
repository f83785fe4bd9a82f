package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/shopengine/orderflow/internal/core/domain"
)

func usd(amount int64) domain.Money {
	return domain.NewMoney(decimal.NewFromInt(amount), currency.USD)
}

func testShippingTable() domain.ShippingTable {
	return domain.ShippingTable{
		"std": {Fee: usd(100), TransitDays: 7},
		"exp": {Fee: usd(200), TransitDays: 3},
		"smd": {Fee: usd(300), TransitDays: 1},
	}
}

// fakeProductStore is a mutex-guarded in-memory ProductStore.
type fakeProductStore struct {
	mu       sync.Mutex
	products map[string]domain.Product
}

func newFakeProductStore(products ...domain.Product) *fakeProductStore {
	s := &fakeProductStore{products: make(map[string]domain.Product)}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *fakeProductStore) GetProduct(_ context.Context, productID string) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return domain.Product{}, fmt.Errorf("product %s: %w", productID, domain.ErrProductNotFound)
	}
	return p, nil
}

func (s *fakeProductStore) DecrementStock(_ context.Context, productID string, quantity int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok || p.Stock < quantity {
		return false, nil
	}
	p.Stock -= quantity
	p.Version++
	s.products[productID] = p
	return true, nil
}

func (s *fakeProductStore) IncrementStock(_ context.Context, productID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return fmt.Errorf("product %s: %w", productID, domain.ErrProductNotFound)
	}
	p.Stock += quantity
	p.Version++
	s.products[productID] = p
	return nil
}

func (s *fakeProductStore) stock(productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[productID].Stock
}

// fakeCartStore keys lines by (user, product) and enforces the pair's
// uniqueness the way the unique index does.
type fakeCartStore struct {
	mu    sync.Mutex
	lines map[string]domain.CartLine
}

func newFakeCartStore() *fakeCartStore {
	return &fakeCartStore{lines: make(map[string]domain.CartLine)}
}

func cartKey(userID, productID string) string {
	return userID + "|" + productID
}

func (s *fakeCartStore) GetCart(_ context.Context, userID string) (domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart := domain.Cart{UserID: userID}
	for _, line := range s.lines {
		if line.UserID == userID {
			cart.Lines = append(cart.Lines, line)
		}
	}
	return cart, nil
}

func (s *fakeCartStore) GetLine(_ context.Context, userID, productID string) (domain.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	line, ok := s.lines[cartKey(userID, productID)]
	if !ok {
		return domain.CartLine{}, fmt.Errorf("cart line %s/%s: %w", userID, productID, domain.ErrCartLineNotFound)
	}
	return line, nil
}

func (s *fakeCartStore) GetLineByID(_ context.Context, lineID string) (domain.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, line := range s.lines {
		if line.ID == lineID {
			return line, nil
		}
	}
	return domain.CartLine{}, fmt.Errorf("cart line %s: %w", lineID, domain.ErrCartLineNotFound)
}

func (s *fakeCartStore) InsertLine(_ context.Context, line domain.CartLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := cartKey(line.UserID, line.ProductID)
	if _, ok := s.lines[key]; ok {
		return fmt.Errorf("cart line %s/%s exists: %w", line.UserID, line.ProductID, domain.ErrStaleWrite)
	}
	s.lines[key] = line
	return nil
}

func (s *fakeCartStore) IncrementLine(_ context.Context, userID, productID string, delta, maxQuantity int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := cartKey(userID, productID)
	line, ok := s.lines[key]
	if !ok || line.Quantity+delta > maxQuantity {
		return false, nil
	}
	line.Quantity += delta
	line.Total = line.Price.Mul(line.Quantity)
	line.UpdatedAt = time.Now().UTC()
	s.lines[key] = line
	return true, nil
}

func (s *fakeCartStore) ReplaceLineQuantity(_ context.Context, lineID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, line := range s.lines {
		if line.ID == lineID {
			line.Quantity = quantity
			line.Total = line.Price.Mul(quantity)
			line.UpdatedAt = time.Now().UTC()
			s.lines[key] = line
			return nil
		}
	}
	return fmt.Errorf("cart line %s: %w", lineID, domain.ErrCartLineNotFound)
}

func (s *fakeCartStore) DeleteLine(_ context.Context, userID, productID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := cartKey(userID, productID)
	if _, ok := s.lines[key]; !ok {
		return false, nil
	}
	delete(s.lines, key)
	return true, nil
}

func (s *fakeCartStore) DeleteLines(_ context.Context, userID string, productIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, productID := range productIDs {
		delete(s.lines, cartKey(userID, productID))
	}
	return nil
}

func (s *fakeCartStore) ClearCart(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, line := range s.lines {
		if line.UserID == userID {
			delete(s.lines, key)
		}
	}
	return nil
}

// fakeOrderStore applies version-conditional updates; staleWrites forces the
// next N updates to report a conflict.
type fakeOrderStore struct {
	mu          sync.Mutex
	orders      map[string]domain.Order
	staleWrites int
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{orders: make(map[string]domain.Order)}
}

func (s *fakeOrderStore) InsertOrder(_ context.Context, order domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders[order.ID] = order
	return nil
}

func (s *fakeOrderStore) GetOrder(_ context.Context, orderID string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return domain.Order{}, fmt.Errorf("order %s: %w", orderID, domain.ErrOrderNotFound)
	}
	order.Lines = append([]domain.OrderLine(nil), order.Lines...)
	return order, nil
}

func (s *fakeOrderStore) UpdateOrderStatus(_ context.Context, orderID string, fromVersion int, newStatus domain.OrderStatus, patch domain.ShippingPatch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.staleWrites > 0 {
		s.staleWrites--
		return false, nil
	}

	order, ok := s.orders[orderID]
	if !ok || order.Version != fromVersion {
		return false, nil
	}
	order.Status = newStatus
	if patch.ShippedDate != nil {
		order.Shipping.ShippedDate = patch.ShippedDate
	}
	order.Version++
	order.UpdatedAt = time.Now().UTC()
	s.orders[orderID] = order
	return true, nil
}

func (s *fakeOrderStore) status(orderID string) domain.OrderStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[orderID].Status
}

type fakeUserDirectory struct {
	users map[string]domain.User
}

func newFakeUserDirectory(users ...domain.User) *fakeUserDirectory {
	d := &fakeUserDirectory{users: make(map[string]domain.User)}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func (d *fakeUserDirectory) GetUser(_ context.Context, userID string) (domain.User, error) {
	u, ok := d.users[userID]
	if !ok {
		return domain.User{}, fmt.Errorf("user %s: %w", userID, domain.ErrUserNotFound)
	}
	return u, nil
}

type fakeNotificationStore struct {
	mu            sync.Mutex
	notifications []domain.Notification
	err           error
}

func (s *fakeNotificationStore) InsertNotification(_ context.Context, n domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	s.notifications = append(s.notifications, n)
	return nil
}

func (s *fakeNotificationStore) all() []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Notification(nil), s.notifications...)
}

type fakeGuard struct {
	mu   sync.Mutex
	keys map[string]bool
	err  error
}

func newFakeGuard() *fakeGuard {
	return &fakeGuard{keys: make(map[string]bool)}
}

func (g *fakeGuard) Acquire(_ context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.err != nil {
		return false, g.err
	}
	if g.keys[key] {
		return false, nil
	}
	g.keys[key] = true
	return true, nil
}

type pushCall struct {
	token string
	title string
	data  domain.NotificationData
}

type fakePushSender struct {
	mu   sync.Mutex
	sent []pushCall
	err  error
}

func (s *fakePushSender) Send(_ context.Context, pushToken, title string, data domain.NotificationData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sent = append(s.sent, pushCall{token: pushToken, title: title, data: data})
	if s.err != nil {
		return s.err
	}
	return nil
}

func (s *fakePushSender) calls() []pushCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pushCall(nil), s.sent...)
}

type emailCall struct {
	to      string
	subject string
	body    string
}

type fakeEmailSender struct {
	mu   sync.Mutex
	sent []emailCall
	err  error
}

func (s *fakeEmailSender) Send(_ context.Context, toAddress, subject, htmlBody string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sent = append(s.sent, emailCall{to: toAddress, subject: subject, body: htmlBody})
	if s.err != nil {
		return s.err
	}
	return nil
}

func (s *fakeEmailSender) calls() []emailCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]emailCall(nil), s.sent...)
}
