package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"telegram-subscription-payments/internal/config"
	"telegram-subscription-payments/internal/domain"
	"telegram-subscription-payments/internal/domain/model"
	"telegram-subscription-payments/internal/domain/ports/adapter"
	"telegram-subscription-payments/internal/infra/metrics"
)

var _ adapter.PaymentGateway = (*YooKassaGateway)(nil)

const defaultBaseURL = "https://api.yookassa.ru/v3"

// YooKassaGateway implements adapter.PaymentGateway against the YooKassa
// REST v3 API. Test mode uses redirect confirmation; live mode uses the
// embedded widget and attaches a fiscal receipt.
type YooKassaGateway struct {
	shopID       string
	secretKey    string
	testMode     bool
	returnURL    string
	receiptEmail string
	baseURL      string
	client       *http.Client
	log          *zerolog.Logger
}

func NewYooKassaGateway(cfg config.YooKassaConfig, logger *zerolog.Logger) (*YooKassaGateway, error) {
	if cfg.ShopID == "" || cfg.SecretKey == "" {
		return nil, domain.ErrGatewayUnconfigured
	}
	return &YooKassaGateway{
		shopID:       cfg.ShopID,
		secretKey:    cfg.SecretKey,
		testMode:     cfg.TestMode,
		returnURL:    cfg.ReturnURL,
		receiptEmail: cfg.ReceiptEmail,
		baseURL:      defaultBaseURL,
		client:       &http.Client{Timeout: 15 * time.Second},
		log:          logger,
	}, nil
}

func (g *YooKassaGateway) Name() string { return "yookassa" }

type ykAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type ykConfirmation struct {
	Type              string `json:"type"`
	ReturnURL         string `json:"return_url,omitempty"`
	Locale            string `json:"locale,omitempty"`
	ConfirmationURL   string `json:"confirmation_url,omitempty"`
	ConfirmationToken string `json:"confirmation_token,omitempty"`
}

type ykPayment struct {
	ID           string          `json:"id"`
	Status       string          `json:"status"`
	Confirmation *ykConfirmation `json:"confirmation"`
}

type ykError struct {
	Type        string `json:"type"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (g *YooKassaGateway) CreatePayment(ctx context.Context, amountKopeks int64, description, returnURL string, meta map[string]string) (*adapter.PaymentHandle, error) {
	if returnURL == "" {
		returnURL = g.returnURL
	}

	payload := map[string]any{
		"amount":      ykAmount{Value: formatKopeks(amountKopeks), Currency: "RUB"},
		"capture":     true,
		"description": description,
	}
	if len(meta) > 0 {
		payload["metadata"] = meta
	}
	if g.testMode {
		payload["confirmation"] = ykConfirmation{Type: "redirect", ReturnURL: returnURL}
	} else {
		payload["confirmation"] = ykConfirmation{Type: "embedded", Locale: "ru_RU"}
		// Fiscal receipt is mandatory for live payments (54-FZ).
		email := meta["email"]
		if email == "" {
			email = g.receiptEmail
		}
		payload["receipt"] = map[string]any{
			"customer": map[string]string{"email": email},
			"items": []map[string]any{{
				"description":     description,
				"amount":          ykAmount{Value: formatKopeks(amountKopeks), Currency: "RUB"},
				"vat_code":        1,
				"quantity":        1,
				"payment_subject": "service",
				"payment_mode":    "full_payment",
			}},
		}
	}

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/payments", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(g.shopID, g.secretKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotence-Key", uuid.NewString())

	start := time.Now()
	resp, err := g.client.Do(req)
	metrics.ObserveGatewayCall("create", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, g.asError(resp)
	}

	var out ykPayment
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayResponseMalformed, err)
	}
	if out.ID == "" || out.Confirmation == nil {
		return nil, domain.ErrGatewayResponseMalformed
	}

	handle := &adapter.PaymentHandle{
		OrderID:           out.ID,
		Status:            mapProviderStatus(out.Status),
		RedirectURL:       out.Confirmation.ConfirmationURL,
		ConfirmationToken: out.Confirmation.ConfirmationToken,
	}
	g.log.Debug().Str("order_id", out.ID).Str("confirmation", out.Confirmation.Type).Msg("payment created with yookassa")
	return handle, nil
}

func (g *YooKassaGateway) QueryPayment(ctx context.Context, orderID string) (model.OrderStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/payments/"+orderID, nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(g.shopID, g.secretKey)

	start := time.Now()
	resp, err := g.client.Do(req)
	metrics.ObserveGatewayCall("query", time.Since(start).Seconds(), err)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", domain.ErrOrderNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", g.asError(resp)
	}

	var out ykPayment
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGatewayResponseMalformed, err)
	}
	return mapProviderStatus(out.Status), nil
}

func (g *YooKassaGateway) asError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	var ye ykError
	_ = json.Unmarshal(raw, &ye)
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: http %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}
	if ye.Description != "" {
		return fmt.Errorf("%w: %s (%s)", domain.ErrGatewayRejected, ye.Description, ye.Code)
	}
	return fmt.Errorf("%w: http %d", domain.ErrGatewayRejected, resp.StatusCode)
}

// mapProviderStatus folds YooKassa's payment states into the order status
// set. waiting_for_capture means the money is authorized but not captured,
// which is still pending from the subscription's point of view.
func mapProviderStatus(s string) model.OrderStatus {
	switch s {
	case "pending", "waiting_for_capture":
		return model.OrderStatusPending
	case "succeeded":
		return model.OrderStatusSucceeded
	case "canceled":
		return model.OrderStatusCanceled
	default:
		return model.OrderStatusUnknown
	}
}

func formatKopeks(k int64) string {
	return fmt.Sprintf("%d.%02d", k/100, k%100)
}
