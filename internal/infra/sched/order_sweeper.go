package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-subscription-payments/internal/domain/model"
	"telegram-subscription-payments/internal/domain/ports/repository"
	"telegram-subscription-payments/internal/usecase"
)

// OrderSweeper periodically scans for stale pending orders and asks the
// gateway for their final status. This covers payments whose webhook was
// missed or whose polling budget ran out before the provider settled.
type OrderSweeper struct {
	uc         usecase.PaymentUseCase
	orders     repository.OrderStore
	interval   time.Duration // how often to scan
	staleAfter time.Duration // how old a pending order must be to recheck
	log        *zerolog.Logger
}

func NewOrderSweeper(uc usecase.PaymentUseCase, orders repository.OrderStore, interval, staleAfter time.Duration, logger *zerolog.Logger) *OrderSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	return &OrderSweeper{uc: uc, orders: orders, interval: interval, staleAfter: staleAfter, log: logger}
}

func (w *OrderSweeper) Start(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *OrderSweeper) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	pending, err := w.orders.ListPendingOlderThan(ctx, cutoff, 200)
	if err != nil {
		w.log.Error().Err(err).Msg("order-sweeper: list pending failed")
		return
	}
	for _, o := range pending {
		resolved, err := w.uc.ForceCheck(ctx, o.OrderID, model.SignalPoll)
		if err != nil {
			w.log.Warn().Err(err).Str("order_id", o.OrderID).Msg("order-sweeper: force check failed")
			continue
		}
		if resolved {
			w.log.Info().Str("order_id", o.OrderID).Msg("order-sweeper: reconciled stale order")
		}
	}
}
