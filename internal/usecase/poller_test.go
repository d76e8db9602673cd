package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"telegram-subscription-payments/internal/domain/model"
	"telegram-subscription-payments/internal/usecase"
)

// mockReconciler records the signals the poller feeds back.
type mockReconciler struct {
	mu    sync.Mutex
	calls []model.OrderStatus
}

func (r *mockReconciler) Reconcile(ctx context.Context, orderID string, source model.SignalSource, status model.OrderStatus) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, status)
	return &model.Order{OrderID: orderID, Status: status}, nil
}

func (r *mockReconciler) Calls() []model.OrderStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.OrderStatus, len(r.calls))
	copy(out, r.calls)
	return out
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestStatusPoller(t *testing.T) {
	order := &model.Order{OrderID: "order-1", UserID: "42", Status: model.OrderStatusPending}

	t.Run("stops on terminal status and reconciles it", func(t *testing.T) {
		gw := &mockGateway{QueryFunc: func(ctx context.Context, orderID string) (model.OrderStatus, error) {
			return model.OrderStatusSucceeded, nil
		}}
		rec := &mockReconciler{}
		p := usecase.NewStatusPoller(gw, rec, &mockNotifier{}, usecase.PollConfig{
			Interval: 10 * time.Millisecond,
			Budget:   2 * time.Second,
		}, newTestLogger())

		p.Start(context.Background(), order)
		waitFor(t, time.Second, func() bool { return !p.Active(order.OrderID) })

		calls := rec.Calls()
		if len(calls) != 1 || calls[0] != model.OrderStatusSucceeded {
			t.Fatalf("reconcile calls = %v, want one succeeded", calls)
		}
	})

	t.Run("query errors are retried until a terminal answer", func(t *testing.T) {
		var mu sync.Mutex
		attempts := 0
		gw := &mockGateway{QueryFunc: func(ctx context.Context, orderID string) (model.OrderStatus, error) {
			mu.Lock()
			defer mu.Unlock()
			attempts++
			if attempts < 3 {
				return "", errors.New("gateway flake")
			}
			return model.OrderStatusCanceled, nil
		}}
		rec := &mockReconciler{}
		p := usecase.NewStatusPoller(gw, rec, &mockNotifier{}, usecase.PollConfig{
			Interval: 10 * time.Millisecond,
			Budget:   2 * time.Second,
		}, newTestLogger())

		p.Start(context.Background(), order)
		waitFor(t, time.Second, func() bool { return !p.Active(order.OrderID) })

		calls := rec.Calls()
		if len(calls) != 1 || calls[0] != model.OrderStatusCanceled {
			t.Fatalf("reconcile calls = %v, want one canceled", calls)
		}
	})

	t.Run("stop cancels the task", func(t *testing.T) {
		gw := &mockGateway{QueryFunc: func(ctx context.Context, orderID string) (model.OrderStatus, error) {
			return model.OrderStatusPending, nil
		}}
		rec := &mockReconciler{}
		p := usecase.NewStatusPoller(gw, rec, &mockNotifier{}, usecase.PollConfig{
			Interval: 10 * time.Millisecond,
			Budget:   2 * time.Second,
		}, newTestLogger())

		p.Start(context.Background(), order)
		if !p.Active(order.OrderID) {
			t.Fatal("expected polling task to be active")
		}
		p.Stop(order.OrderID)
		waitFor(t, time.Second, func() bool { return !p.Active(order.OrderID) })
		if calls := rec.Calls(); len(calls) != 0 {
			t.Fatalf("reconcile calls after stop = %v, want none", calls)
		}

		// Stopping again must not panic.
		p.Stop(order.OrderID)
	})

	t.Run("starting twice keeps a single task", func(t *testing.T) {
		gw := &mockGateway{QueryFunc: func(ctx context.Context, orderID string) (model.OrderStatus, error) {
			return model.OrderStatusPending, nil
		}}
		p := usecase.NewStatusPoller(gw, &mockReconciler{}, &mockNotifier{}, usecase.PollConfig{
			Interval: 10 * time.Millisecond,
			Budget:   2 * time.Second,
		}, newTestLogger())

		p.Start(context.Background(), order)
		p.Start(context.Background(), order)
		if !p.Active(order.OrderID) {
			t.Fatal("expected polling task to be active")
		}
		p.Stop(order.OrderID)
		waitFor(t, time.Second, func() bool { return !p.Active(order.OrderID) })
	})

	t.Run("budget exhaustion prompts manual confirmation", func(t *testing.T) {
		gw := &mockGateway{QueryFunc: func(ctx context.Context, orderID string) (model.OrderStatus, error) {
			return model.OrderStatusPending, nil
		}}
		rec := &mockReconciler{}
		notifier := &mockNotifier{}
		p := usecase.NewStatusPoller(gw, rec, notifier, usecase.PollConfig{
			Interval: 10 * time.Millisecond,
			Budget:   60 * time.Millisecond,
		}, newTestLogger())

		p.Start(context.Background(), order)
		waitFor(t, time.Second, func() bool { return !p.Active(order.OrderID) })

		prompts := notifier.Prompts()
		if len(prompts) != 1 || prompts[0] != order.OrderID {
			t.Fatalf("prompts = %v, want [%s]", prompts, order.OrderID)
		}
		if calls := rec.Calls(); len(calls) != 0 {
			t.Fatalf("reconcile calls = %v, want none on exhaustion", calls)
		}
	})

	t.Run("checkpoints fire ahead of the regular interval", func(t *testing.T) {
		gw := &mockGateway{QueryFunc: func(ctx context.Context, orderID string) (model.OrderStatus, error) {
			return model.OrderStatusSucceeded, nil
		}}
		rec := &mockReconciler{}
		p := usecase.NewStatusPoller(gw, rec, &mockNotifier{}, usecase.PollConfig{
			Interval:    time.Minute, // never ticks inside the test
			Budget:      2 * time.Second,
			Checkpoints: []time.Duration{10 * time.Millisecond},
		}, newTestLogger())

		p.Start(context.Background(), order)
		waitFor(t, time.Second, func() bool { return !p.Active(order.OrderID) })

		if calls := rec.Calls(); len(calls) != 1 {
			t.Fatalf("reconcile calls = %v, want one via checkpoint", calls)
		}
	})
}
