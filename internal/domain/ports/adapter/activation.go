package adapter

import "context"

// ActivationRequest carries everything the entitlement service needs to
// grant a subscription.
type ActivationRequest struct {
	UserID       string
	OrderID      string
	PlanName     string
	DurationDays int
}

// SubscriptionActivator grants the user their subscription once payment is
// confirmed. Implementations must be idempotent: activating the same order
// twice has the effect of activating it once.
type SubscriptionActivator interface {
	Activate(ctx context.Context, req ActivationRequest) error
}
