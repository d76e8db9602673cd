package usecase_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"telegram-subscription-payments/internal/domain"
	"telegram-subscription-payments/internal/domain/model"
	"telegram-subscription-payments/internal/domain/ports/adapter"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// memOrderStore is a small in-memory OrderStore used by unit tests.
type memOrderStore struct {
	mu     sync.Mutex
	orders map[string]*model.Order
	putErr error // simulate save failures
}

func newMemOrderStore() *memOrderStore {
	return &memOrderStore{orders: make(map[string]*model.Order)}
}

func (m *memOrderStore) Get(ctx context.Context, orderID string) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrderStore) Put(ctx context.Context, order *model.Order) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *order
	m.orders[order.OrderID] = &cp
	return nil
}

func (m *memOrderStore) CompareAndSwapStatus(ctx context.Context, orderID string, from, to model.OrderStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return false, domain.ErrOrderNotFound
	}
	if o.Status != from {
		return false, nil
	}
	o.Status = to
	o.UpdatedAt = time.Now()
	return true, nil
}

func (m *memOrderStore) MarkActivated(ctx context.Context, orderID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return false, domain.ErrOrderNotFound
	}
	if o.Activated {
		return false, nil
	}
	o.Activated = true
	return true, nil
}

func (m *memOrderStore) ListPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Order
	for _, o := range m.orders {
		if o.Status == model.OrderStatusPending && o.CreatedAt.Before(cutoff) {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memOrderStore) List(ctx context.Context) ([]*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Order, 0, len(m.orders))
	for _, o := range m.orders {
		cp := *o
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memOrderStore) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = make(map[string]*model.Order)
	return nil
}

// mockGateway lets tests script provider behavior and count calls.
type mockGateway struct {
	mu          sync.Mutex
	createCalls int
	queryCalls  int
	CreateFunc  func(ctx context.Context, amountKopeks int64, description, returnURL string, meta map[string]string) (*adapter.PaymentHandle, error)
	QueryFunc   func(ctx context.Context, orderID string) (model.OrderStatus, error)
}

func (g *mockGateway) Name() string { return "mock" }

func (g *mockGateway) CreatePayment(ctx context.Context, amountKopeks int64, description, returnURL string, meta map[string]string) (*adapter.PaymentHandle, error) {
	g.mu.Lock()
	g.createCalls++
	g.mu.Unlock()
	if g.CreateFunc != nil {
		return g.CreateFunc(ctx, amountKopeks, description, returnURL, meta)
	}
	return &adapter.PaymentHandle{
		OrderID:     "order-1",
		Status:      model.OrderStatusPending,
		RedirectURL: "https://pay.example/order-1",
	}, nil
}

func (g *mockGateway) QueryPayment(ctx context.Context, orderID string) (model.OrderStatus, error) {
	g.mu.Lock()
	g.queryCalls++
	g.mu.Unlock()
	if g.QueryFunc != nil {
		return g.QueryFunc(ctx, orderID)
	}
	return model.OrderStatusPending, nil
}

func (g *mockGateway) CreateCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.createCalls
}

func (g *mockGateway) QueryCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.queryCalls
}

// mockActivator counts activation attempts and can be made to fail.
type mockActivator struct {
	mu    sync.Mutex
	calls int
	last  adapter.ActivationRequest
	err   error
}

func (a *mockActivator) Activate(ctx context.Context, req adapter.ActivationRequest) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	a.last = req
	return a.err
}

func (a *mockActivator) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func (a *mockActivator) Last() adapter.ActivationRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

func (a *mockActivator) SetErr(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.err = err
}

// mockNotifier records which notifications were sent.
type mockNotifier struct {
	mu        sync.Mutex
	activated []string
	failed    []string
	prompts   []string
}

func (n *mockNotifier) NotifyActivated(ctx context.Context, userID, planName string, durationDays int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.activated = append(n.activated, userID)
	return nil
}

func (n *mockNotifier) NotifyActivationFailed(ctx context.Context, userID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, userID)
	return nil
}

func (n *mockNotifier) PromptManualConfirm(ctx context.Context, userID, orderID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.prompts = append(n.prompts, orderID)
	return nil
}

func (n *mockNotifier) Prompts() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.prompts))
	copy(out, n.prompts)
	return out
}
