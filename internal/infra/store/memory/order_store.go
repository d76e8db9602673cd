package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"telegram-subscription-payments/internal/domain"
	"telegram-subscription-payments/internal/domain/model"
	"telegram-subscription-payments/internal/domain/ports/repository"
)

var _ repository.OrderStore = (*OrderStore)(nil)

// OrderStore keeps orders for the lifetime of the process. Single-instance
// deployments use it as the default driver; the webhook's synthesize-on-
// unknown path covers restarts.
type OrderStore struct {
	mu     sync.RWMutex
	orders map[string]*model.Order
}

func NewOrderStore() *OrderStore {
	return &OrderStore{orders: make(map[string]*model.Order)}
}

func (s *OrderStore) Get(ctx context.Context, orderID string) (*model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *OrderStore) Put(ctx context.Context, order *model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *order
	s.orders[order.OrderID] = &cp
	return nil
}

func (s *OrderStore) CompareAndSwapStatus(ctx context.Context, orderID string, from, to model.OrderStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
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

func (s *OrderStore) MarkActivated(ctx context.Context, orderID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return false, domain.ErrOrderNotFound
	}
	if o.Activated {
		return false, nil
	}
	o.Activated = true
	o.UpdatedAt = time.Now()
	return true, nil
}

func (s *OrderStore) ListPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Order
	for _, o := range s.orders {
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

func (s *OrderStore) List(ctx context.Context) ([]*model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Order, 0, len(s.orders))
	for _, o := range s.orders {
		cp := *o
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *OrderStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = make(map[string]*model.Order)
	return nil
}
