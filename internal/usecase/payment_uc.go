package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"telegram-subscription-payments/internal/domain"
	"telegram-subscription-payments/internal/domain/model"
	"telegram-subscription-payments/internal/domain/ports/adapter"
	"telegram-subscription-payments/internal/domain/ports/repository"
	"telegram-subscription-payments/internal/infra/metrics"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

type PaymentUseCase interface {
	// CreateOrder opens a payment with the gateway for the chosen plan and
	// persists the order awaiting confirmation. The returned handle carries
	// exactly one of redirect URL or embedded confirmation token.
	CreateOrder(ctx context.Context, planID, userID, description, returnURL string) (*model.Order, *adapter.PaymentHandle, error)
	// Reconcile merges one observed status signal into the order under the
	// sticky-success rule. The first succeeded signal triggers activation.
	Reconcile(ctx context.Context, orderID string, source model.SignalSource, status model.OrderStatus) (*model.Order, error)
	// ForceCheck queries the gateway once, reconciles the answer, and
	// reports whether the order resolved to succeeded.
	ForceCheck(ctx context.Context, orderID string, source model.SignalSource) (bool, error)
	// Status returns the order's status, falling back to a gateway query
	// when the order is not cached locally or still pending.
	Status(ctx context.Context, orderID string) (model.OrderStatus, error)
	// StopPolling cancels the background polling task for an order, used
	// when the user closes the payment UI.
	StopPolling(orderID string)
}

type paymentUC struct {
	orders    repository.OrderStore
	catalog   *model.PlanCatalog
	gateway   adapter.PaymentGateway
	activator adapter.SubscriptionActivator
	notifier  adapter.UserNotifier
	poller    *StatusPoller
	locks     keyedMutex
	log       *zerolog.Logger
}

func NewPaymentUseCase(
	orders repository.OrderStore,
	catalog *model.PlanCatalog,
	gateway adapter.PaymentGateway,
	activator adapter.SubscriptionActivator,
	notifier adapter.UserNotifier,
	logger *zerolog.Logger,
) *paymentUC {
	return &paymentUC{
		orders:    orders,
		catalog:   catalog,
		gateway:   gateway,
		activator: activator,
		notifier:  notifier,
		log:       logger,
	}
}

// AttachPoller wires the background poller in after construction; the
// poller itself reconciles through this use case.
func (u *paymentUC) AttachPoller(p *StatusPoller) { u.poller = p }

func (u *paymentUC) CreateOrder(ctx context.Context, planID, userID, description, returnURL string) (*model.Order, *adapter.PaymentHandle, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, nil, domain.ErrMissingUser
	}
	plan, ok := u.catalog.FindByID(planID)
	if !ok {
		return nil, nil, fmt.Errorf("plan %q: %w", planID, domain.ErrInvalidPlan)
	}
	if description == "" {
		description = fmt.Sprintf("Subscription %q for user %s", plan.Name, userID)
	}

	meta := map[string]string{
		"userId":   userID,
		"planId":   plan.ID,
		"planName": plan.Name,
	}
	handle, err := u.gateway.CreatePayment(ctx, plan.AmountKopeks(), description, returnURL, meta)
	if err != nil {
		return nil, nil, err
	}
	if handle.OrderID == "" || (handle.RedirectURL == "") == (handle.ConfirmationToken == "") {
		return nil, nil, domain.ErrGatewayResponseMalformed
	}

	now := time.Now()
	order := &model.Order{
		OrderID:          handle.OrderID,
		UserID:           userID,
		PlanID:           plan.ID,
		PlanName:         plan.Name,
		Amount:           plan.AmountKopeks(),
		PlanDurationDays: plan.DurationDays,
		Status:           model.OrderStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := u.orders.Put(ctx, order); err != nil {
		return nil, nil, err
	}
	metrics.IncOrder("created")
	u.log.Info().Str("order_id", order.OrderID).Str("user_id", userID).
		Str("plan_id", plan.ID).Int64("amount", order.Amount).Msg("order created")

	if u.poller != nil {
		u.poller.Start(context.WithoutCancel(ctx), order)
	}
	return order, handle, nil
}

func (u *paymentUC) Reconcile(ctx context.Context, orderID string, source model.SignalSource, status model.OrderStatus) (*model.Order, error) {
	if orderID == "" {
		return nil, domain.ErrOrderNotFound
	}
	unlock := u.locks.Lock(orderID)
	defer unlock()

	metrics.IncSignal(string(source), string(status))

	order, err := u.orders.Get(ctx, orderID)
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		// The webhook may arrive for an order this process never issued
		// (restart, or no persistent store). Accept the signal anyway.
		now := time.Now()
		order = &model.Order{
			OrderID:     orderID,
			Status:      model.OrderStatusPending,
			Synthesized: true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := u.orders.Put(ctx, order); err != nil {
			return nil, err
		}
		u.log.Info().Str("order_id", orderID).Str("source", string(source)).
			Msg("synthesized record for unknown order")
	case err != nil:
		return nil, err
	}

	switch status {
	case model.OrderStatusSucceeded:
		if order.Status == model.OrderStatusSucceeded {
			metrics.IncDuplicateSignal(string(source))
			if order.Activated {
				return order, nil
			}
			// Succeeded but not yet activated: an earlier activation
			// attempt failed, so this signal retries it.
			return order, u.activateOnce(ctx, order)
		}
		if source == model.SignalUserOverride {
			metrics.IncUserOverride()
			u.log.Warn().Str("order_id", orderID).
				Msg("user override: marking order succeeded without gateway confirmation")
		}
		swapped, err := u.orders.CompareAndSwapStatus(ctx, orderID, order.Status, model.OrderStatusSucceeded)
		if err != nil {
			return nil, err
		}
		if !swapped {
			// Another process moved the order first; reload its view.
			if order, err = u.orders.Get(ctx, orderID); err != nil {
				return nil, err
			}
			if order.Status != model.OrderStatusSucceeded {
				return order, nil
			}
		} else {
			order.Status = model.OrderStatusSucceeded
			order.UpdatedAt = time.Now()
			metrics.IncOrder("succeeded")
		}
		u.stopPolling(orderID)
		u.log.Info().Str("order_id", orderID).Str("source", string(source)).Msg("order succeeded")
		return order, u.activateOnce(ctx, order)

	case model.OrderStatusCanceled:
		if order.Status == model.OrderStatusSucceeded {
			// Succeeded is sticky: a late cancellation report never wins.
			u.log.Info().Str("order_id", orderID).Str("source", string(source)).
				Msg("ignoring cancellation for an already succeeded order")
			return order, nil
		}
		if order.Status == model.OrderStatusCanceled {
			metrics.IncDuplicateSignal(string(source))
			return order, nil
		}
		swapped, err := u.orders.CompareAndSwapStatus(ctx, orderID, order.Status, model.OrderStatusCanceled)
		if err != nil {
			return nil, err
		}
		if swapped {
			order.Status = model.OrderStatusCanceled
			order.UpdatedAt = time.Now()
			metrics.IncOrder("canceled")
			u.stopPolling(orderID)
			u.log.Info().Str("order_id", orderID).Str("source", string(source)).Msg("order canceled")
		}
		return order, nil

	default:
		// Absent or unknown status from a source is logged and ignored; it
		// must never regress the order.
		u.log.Debug().Str("order_id", orderID).Str("source", string(source)).
			Str("status", string(status)).Msg("ignoring non-actionable signal")
		return order, nil
	}
}

// activateOnce grants the subscription at most once per order. Callers must
// hold the order's lock.
func (u *paymentUC) activateOnce(ctx context.Context, order *model.Order) error {
	if order.Activated {
		metrics.IncActivation("duplicate")
		return nil
	}

	req := adapter.ActivationRequest{
		UserID:       order.UserID,
		OrderID:      order.OrderID,
		PlanName:     order.PlanName,
		DurationDays: order.PlanDurationDays,
	}
	if err := u.activator.Activate(ctx, req); err != nil {
		metrics.IncActivation("failure")
		u.log.Error().Err(err).Str("order_id", order.OrderID).Msg("activation failed")
		if order.UserID != "" {
			if nerr := u.notifier.NotifyActivationFailed(ctx, order.UserID); nerr != nil {
				u.log.Warn().Err(nerr).Str("order_id", order.OrderID).Msg("activation failure notice not delivered")
			}
		}
		return fmt.Errorf("order %s: %w: %v", order.OrderID, domain.ErrActivationFailed, err)
	}

	flipped, err := u.orders.MarkActivated(ctx, order.OrderID)
	if err != nil {
		return err
	}
	order.Activated = true
	if !flipped {
		// Another process activated concurrently; the activator is
		// idempotent by contract so the duplicate attempt had no effect.
		metrics.IncActivation("duplicate")
		return nil
	}
	metrics.IncActivation("success")
	u.log.Info().Str("order_id", order.OrderID).Str("user_id", order.UserID).
		Str("plan", order.PlanName).Msg("subscription activated")
	if order.UserID != "" {
		if nerr := u.notifier.NotifyActivated(ctx, order.UserID, order.PlanName, order.PlanDurationDays); nerr != nil {
			u.log.Warn().Err(nerr).Str("order_id", order.OrderID).Msg("activation notice not delivered")
		}
	}
	return nil
}

func (u *paymentUC) ForceCheck(ctx context.Context, orderID string, source model.SignalSource) (bool, error) {
	status, err := u.gateway.QueryPayment(ctx, orderID)
	if err != nil {
		return false, err
	}
	if !status.Terminal() {
		u.log.Debug().Str("order_id", orderID).Str("status", string(status)).Msg("force check: not terminal yet")
		return false, nil
	}
	order, err := u.Reconcile(ctx, orderID, source, status)
	if err != nil {
		return order != nil && order.Status == model.OrderStatusSucceeded, err
	}
	return order.Status == model.OrderStatusSucceeded, nil
}

func (u *paymentUC) Status(ctx context.Context, orderID string) (model.OrderStatus, error) {
	order, err := u.orders.Get(ctx, orderID)
	if err == nil && order.Status == model.OrderStatusSucceeded {
		return order.Status, nil
	}
	if err != nil && !errors.Is(err, domain.ErrOrderNotFound) {
		return "", err
	}

	status, qerr := u.gateway.QueryPayment(ctx, orderID)
	if qerr != nil {
		if order != nil {
			// Transient gateway trouble: answer with the local view.
			return order.Status, nil
		}
		return "", qerr
	}
	reconciled, rerr := u.Reconcile(ctx, orderID, model.SignalPoll, status)
	if rerr != nil && reconciled == nil {
		return "", rerr
	}
	if reconciled != nil {
		return reconciled.Status, nil
	}
	return status, nil
}

func (u *paymentUC) StopPolling(orderID string) { u.stopPolling(orderID) }

func (u *paymentUC) stopPolling(orderID string) {
	if u.poller != nil {
		u.poller.Stop(orderID)
	}
}
