package adapter

import (
	"context"

	"telegram-subscription-payments/internal/domain/model"
)

// PaymentHandle is the provider-side handle returned when a payment is
// created. Exactly one of RedirectURL and ConfirmationToken is set; the
// orchestrator treats any other shape as malformed.
type PaymentHandle struct {
	OrderID           string
	Status            model.OrderStatus
	RedirectURL       string // redirect confirmation (test mode)
	ConfirmationToken string // embedded widget confirmation (live mode)
}

// PaymentGateway is the hex port for payment providers. The orchestrator
// must never see a provider's wire shapes through this boundary.
type PaymentGateway interface {
	Name() string

	// CreatePayment opens a payment with the provider and returns its handle.
	CreatePayment(ctx context.Context, amountKopeks int64, description, returnURL string, meta map[string]string) (*PaymentHandle, error)
	// QueryPayment fetches the provider's current view of an order's status.
	QueryPayment(ctx context.Context, orderID string) (model.OrderStatus, error)
}
