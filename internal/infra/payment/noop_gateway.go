package payment

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"telegram-subscription-payments/internal/domain"
	"telegram-subscription-payments/internal/domain/model"
	"telegram-subscription-payments/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopGateway)(nil)

// NoopGateway is a stand-in provider for dev mode: every created payment
// gets a fake redirect URL and reports succeeded on the first query.
type NoopGateway struct {
	mu     sync.Mutex
	orders map[string]model.OrderStatus
}

func NewNoopGateway() *NoopGateway {
	return &NoopGateway{orders: make(map[string]model.OrderStatus)}
}

func (n *NoopGateway) Name() string { return "noop" }

func (n *NoopGateway) CreatePayment(ctx context.Context, amountKopeks int64, description, returnURL string, meta map[string]string) (*adapter.PaymentHandle, error) {
	id := uuid.NewString()
	n.mu.Lock()
	n.orders[id] = model.OrderStatusSucceeded
	n.mu.Unlock()
	return &adapter.PaymentHandle{
		OrderID:     id,
		Status:      model.OrderStatusPending,
		RedirectURL: "https://example.invalid/pay/" + id,
	}, nil
}

func (n *NoopGateway) QueryPayment(ctx context.Context, orderID string) (model.OrderStatus, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	s, ok := n.orders[orderID]
	if !ok {
		return "", domain.ErrOrderNotFound
	}
	return s, nil
}
