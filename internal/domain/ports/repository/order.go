package repository

import (
	"context"
	"time"

	"telegram-subscription-payments/internal/domain/model"
)

// OrderStore is the narrow persistence port for orders. Implementations
// must make CompareAndSwapStatus and MarkActivated atomic so that
// multi-process deployments keep the sticky-success and activate-once
// guarantees.
type OrderStore interface {
	// Get returns the order or domain.ErrOrderNotFound.
	Get(ctx context.Context, orderID string) (*model.Order, error)
	// Put inserts or replaces the order record.
	Put(ctx context.Context, order *model.Order) error
	// CompareAndSwapStatus transitions status from->to and reports whether
	// the swap happened. A missing order returns domain.ErrOrderNotFound.
	CompareAndSwapStatus(ctx context.Context, orderID string, from, to model.OrderStatus) (bool, error)
	// MarkActivated flips the activated flag false->true exactly once and
	// reports whether this call performed the flip.
	MarkActivated(ctx context.Context, orderID string) (bool, error)
	// ListPendingOlderThan returns up to limit pending orders created
	// before cutoff, oldest first.
	ListPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*model.Order, error)
	// List returns all stored orders (debug surface).
	List(ctx context.Context) ([]*model.Order, error)
	// Reset drops all stored orders (debug surface).
	Reset(ctx context.Context) error
}
