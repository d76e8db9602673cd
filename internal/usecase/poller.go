package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"telegram-subscription-payments/internal/domain/model"
	"telegram-subscription-payments/internal/domain/ports/adapter"
	"telegram-subscription-payments/internal/infra/metrics"
)

// PollConfig fixes the polling cadence. Interval drives the regular query
// loop, Checkpoints fire supplementary one-shot queries, and Budget bounds
// the loop's total wall-clock time.
type PollConfig struct {
	Interval    time.Duration
	Budget      time.Duration
	Checkpoints []time.Duration
}

// Reconciler is the narrow view of the orchestrator the poller needs.
type Reconciler interface {
	Reconcile(ctx context.Context, orderID string, source model.SignalSource, status model.OrderStatus) (*model.Order, error)
}

// StatusPoller runs one cancellable polling task per order. A task ends on
// the first terminal reconciliation, on explicit Stop, or when the budget
// runs out; in the last case the user is prompted to confirm manually and
// the order is left untouched.
type StatusPoller struct {
	gateway  adapter.PaymentGateway
	rec      Reconciler
	notifier adapter.UserNotifier
	cfg      PollConfig
	log      *zerolog.Logger

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

func NewStatusPoller(gateway adapter.PaymentGateway, rec Reconciler, notifier adapter.UserNotifier, cfg PollConfig, logger *zerolog.Logger) *StatusPoller {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.Budget <= 0 {
		cfg.Budget = 180 * time.Second
	}
	return &StatusPoller{
		gateway:  gateway,
		rec:      rec,
		notifier: notifier,
		cfg:      cfg,
		log:      logger,
		active:   make(map[string]context.CancelFunc),
	}
}

// Start launches the polling task for an order. Starting an order that is
// already being polled is a no-op.
func (p *StatusPoller) Start(ctx context.Context, order *model.Order) {
	p.mu.Lock()
	if _, running := p.active[order.OrderID]; running {
		p.mu.Unlock()
		return
	}
	cctx, cancel := context.WithCancel(ctx)
	p.active[order.OrderID] = cancel
	p.mu.Unlock()

	snapshot := *order
	go p.run(cctx, &snapshot)
}

// Stop cancels an order's polling task. Safe to call for orders that are
// not being polled.
func (p *StatusPoller) Stop(orderID string) {
	p.mu.Lock()
	cancel, ok := p.active[orderID]
	if ok {
		delete(p.active, orderID)
	}
	p.mu.Unlock()
	if ok {
		cancel()
	}
}

// Active reports whether a polling task currently exists for the order.
func (p *StatusPoller) Active(orderID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.active[orderID]
	return ok
}

func (p *StatusPoller) run(ctx context.Context, order *model.Order) {
	defer p.Stop(order.OrderID)

	budget := time.NewTimer(p.cfg.Budget)
	defer budget.Stop()
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Supplementary checkpoint queries on top of the regular interval.
	extra := make(chan struct{}, len(p.cfg.Checkpoints))
	timers := make([]*time.Timer, 0, len(p.cfg.Checkpoints))
	for _, cp := range p.cfg.Checkpoints {
		if cp <= 0 || cp >= p.cfg.Budget {
			continue
		}
		timers = append(timers, time.AfterFunc(cp, func() {
			select {
			case extra <- struct{}{}:
			default:
			}
		}))
	}
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			metrics.IncPollOutcome("stopped")
			p.log.Debug().Str("order_id", order.OrderID).Msg("polling stopped")
			return
		case <-budget.C:
			// Budget spent without a terminal answer: leave the order as it
			// is and hand the decision to the user.
			metrics.IncPollOutcome("exhausted")
			p.log.Warn().Str("order_id", order.OrderID).Dur("budget", p.cfg.Budget).
				Msg("polling budget exhausted, status undetermined")
			if order.UserID != "" {
				if err := p.notifier.PromptManualConfirm(ctx, order.UserID, order.OrderID); err != nil {
					p.log.Warn().Err(err).Str("order_id", order.OrderID).Msg("manual confirm prompt not delivered")
				}
			}
			return
		case <-ticker.C:
		case <-extra:
		}

		if p.check(ctx, order.OrderID) {
			metrics.IncPollOutcome("terminal")
			return
		}
	}
}

// check performs one gateway query and reports whether the order reached a
// terminal state. Query failures are swallowed; the next tick retries.
func (p *StatusPoller) check(ctx context.Context, orderID string) bool {
	status, err := p.gateway.QueryPayment(ctx, orderID)
	if err != nil {
		p.log.Debug().Err(err).Str("order_id", orderID).Msg("poll query failed, will retry")
		return false
	}
	if !status.Terminal() {
		return false
	}
	if _, err := p.rec.Reconcile(ctx, orderID, model.SignalPoll, status); err != nil {
		p.log.Error().Err(err).Str("order_id", orderID).Msg("poll reconcile failed")
	}
	return true
}
