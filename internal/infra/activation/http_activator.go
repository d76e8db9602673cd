package activation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"telegram-subscription-payments/internal/domain"
	"telegram-subscription-payments/internal/domain/ports/adapter"
)

var _ adapter.SubscriptionActivator = (*HTTPActivator)(nil)

// HTTPActivator calls the bot-side entitlement endpoint. The endpoint is
// idempotent by contract, so re-activating an order is safe.
type HTTPActivator struct {
	url    string
	client *http.Client
	log    *zerolog.Logger
}

func NewHTTPActivator(url string, timeout time.Duration, logger *zerolog.Logger) *HTTPActivator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPActivator{
		url:    url,
		client: &http.Client{Timeout: timeout},
		log:    logger,
	}
}

type activateRequest struct {
	UserID           string `json:"userId"`
	OrderID          string `json:"orderId"`
	PlanName         string `json:"planName"`
	PlanDurationDays int    `json:"planDurationDays"`
}

type activateResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (a *HTTPActivator) Activate(ctx context.Context, req adapter.ActivationRequest) error {
	body, _ := json.Marshal(activateRequest{
		UserID:           req.UserID,
		OrderID:          req.OrderID,
		PlanName:         req.PlanName,
		PlanDurationDays: req.DurationDays,
	})
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("activation service: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("activation service returned http %d: %s", resp.StatusCode, raw)
	}
	var out activateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("activation service response: %w", err)
	}
	if !out.Success {
		if out.Error != "" {
			return fmt.Errorf("activation service: %s", out.Error)
		}
		return domain.ErrActivationFailed
	}
	a.log.Debug().Str("order_id", req.OrderID).Str("user_id", req.UserID).Msg("activation accepted")
	return nil
}
