package model

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"   // created with provider; awaiting confirmation
	OrderStatusSucceeded OrderStatus = "succeeded" // confirmed paid by at least one trusted signal
	OrderStatusCanceled  OrderStatus = "canceled"  // provider reported cancellation
	OrderStatusUnknown   OrderStatus = "unknown"   // signal carried no usable status
)

// Terminal reports whether no further automatic transition is expected.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusSucceeded || s == OrderStatusCanceled
}

// SignalSource identifies which of the racing observers reported a status.
type SignalSource string

const (
	SignalRedirect     SignalSource = "redirect"      // return-URL page load
	SignalWidget       SignalSource = "widget"        // payment widget success callback
	SignalPoll         SignalSource = "poll"          // timer-driven gateway query
	SignalWebhook      SignalSource = "webhook"       // provider push notification
	SignalUserOverride SignalSource = "user_override" // explicit manual confirmation after timeout
)

// Order records one subscription-purchase attempt. The id is issued by the
// payment provider at creation time. Plan fields are a snapshot taken when
// the order was created; catalog changes never alter an in-flight order.
type Order struct {
	OrderID          string      `json:"order_id"`
	UserID           string      `json:"user_id"` // Telegram chat id as string
	PlanID           string      `json:"plan_id"`
	PlanName         string      `json:"plan_name"`
	Amount           int64       `json:"amount"` // kopeks
	PlanDurationDays int         `json:"plan_duration_days"`
	Status           OrderStatus `json:"status"`
	Activated        bool        `json:"activated"`
	Synthesized      bool        `json:"synthesized"` // record created from a signal for an order this process never issued
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}
