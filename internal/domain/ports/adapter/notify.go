package adapter

import "context"

// UserNotifier delivers user-facing payment outcomes. It is a pure
// notification sink: nothing in the reconciliation state machine depends on
// a notification being delivered.
type UserNotifier interface {
	NotifyActivated(ctx context.Context, userID, planName string, durationDays int) error
	NotifyActivationFailed(ctx context.Context, userID string) error
	// PromptManualConfirm asks the user to confirm a payment whose status
	// could not be determined within the polling budget.
	PromptManualConfirm(ctx context.Context, userID, orderID string) error
}
