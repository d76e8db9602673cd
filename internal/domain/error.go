package domain

import "errors"

var (
	// Order creation errors
	ErrInvalidPlan = errors.New("unknown subscription plan")
	ErrMissingUser = errors.New("user id is required")

	// Gateway errors
	ErrGatewayUnavailable       = errors.New("payment gateway unreachable")
	ErrGatewayRejected          = errors.New("payment gateway rejected the request")
	ErrGatewayResponseMalformed = errors.New("payment gateway returned a malformed response")
	ErrGatewayUnconfigured      = errors.New("payment gateway is not configured")

	// Order lifecycle errors
	ErrOrderNotFound    = errors.New("order not found")
	ErrActivationFailed = errors.New("subscription activation failed")
	ErrWebhookMalformed = errors.New("malformed webhook payload")

	// Storage errors
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrOperationFailed = errors.New("storage operation failed")
)
