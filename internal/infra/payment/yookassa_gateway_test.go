package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"telegram-subscription-payments/internal/config"
	"telegram-subscription-payments/internal/domain"
	"telegram-subscription-payments/internal/domain/model"
)

func newTestGateway(t *testing.T, testMode bool, handler http.HandlerFunc) (*YooKassaGateway, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := zerolog.Nop()
	g, err := NewYooKassaGateway(config.YooKassaConfig{
		ShopID:       "shop-1",
		SecretKey:    "sk-test",
		TestMode:     testMode,
		ReturnURL:    "https://example.com/api/payment/return",
		ReceiptEmail: "billing@example.com",
	}, &logger)
	if err != nil {
		t.Fatalf("gateway: %v", err)
	}
	g.baseURL = srv.URL
	return g, srv
}

func TestNewYooKassaGateway_RequiresCredentials(t *testing.T) {
	logger := zerolog.Nop()
	_, err := NewYooKassaGateway(config.YooKassaConfig{ShopID: "shop-1"}, &logger)
	if !errors.Is(err, domain.ErrGatewayUnconfigured) {
		t.Fatalf("err = %v, want ErrGatewayUnconfigured", err)
	}
}

func TestYooKassaGateway_CreatePayment(t *testing.T) {
	t.Run("test mode asks for redirect confirmation", func(t *testing.T) {
		var gotPayload map[string]any
		g, _ := newTestGateway(t, true, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/payments" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			if user, pass, ok := r.BasicAuth(); !ok || user != "shop-1" || pass != "sk-test" {
				t.Error("missing or wrong basic auth")
			}
			if r.Header.Get("Idempotence-Key") == "" {
				t.Error("missing Idempotence-Key header")
			}
			_ = json.NewDecoder(r.Body).Decode(&gotPayload)
			_ = json.NewEncoder(w).Encode(ykPayment{
				ID:           "pay-1",
				Status:       "pending",
				Confirmation: &ykConfirmation{Type: "redirect", ConfirmationURL: "https://yookassa.ru/checkout/pay-1"},
			})
		})

		handle, err := g.CreatePayment(context.Background(), 49900, "Standard plan", "", nil)
		if err != nil {
			t.Fatalf("CreatePayment: %v", err)
		}
		if handle.OrderID != "pay-1" || handle.Status != model.OrderStatusPending {
			t.Errorf("handle = %+v", handle)
		}
		if handle.RedirectURL != "https://yookassa.ru/checkout/pay-1" || handle.ConfirmationToken != "" {
			t.Errorf("confirmation = %q / %q, want redirect only", handle.RedirectURL, handle.ConfirmationToken)
		}

		amount := gotPayload["amount"].(map[string]any)
		if amount["value"] != "499.00" || amount["currency"] != "RUB" {
			t.Errorf("amount = %v", amount)
		}
		conf := gotPayload["confirmation"].(map[string]any)
		if conf["type"] != "redirect" || conf["return_url"] != "https://example.com/api/payment/return" {
			t.Errorf("confirmation = %v", conf)
		}
		if _, hasReceipt := gotPayload["receipt"]; hasReceipt {
			t.Error("test mode must not attach a receipt")
		}
	})

	t.Run("live mode embeds the widget and attaches a receipt", func(t *testing.T) {
		var gotPayload map[string]any
		g, _ := newTestGateway(t, false, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&gotPayload)
			_ = json.NewEncoder(w).Encode(ykPayment{
				ID:           "pay-2",
				Status:       "pending",
				Confirmation: &ykConfirmation{Type: "embedded", ConfirmationToken: "ct-token"},
			})
		})

		handle, err := g.CreatePayment(context.Background(), 2000, "Basic plan", "", map[string]string{"email": "user@example.com"})
		if err != nil {
			t.Fatalf("CreatePayment: %v", err)
		}
		if handle.ConfirmationToken != "ct-token" || handle.RedirectURL != "" {
			t.Errorf("confirmation = %q / %q, want token only", handle.RedirectURL, handle.ConfirmationToken)
		}

		conf := gotPayload["confirmation"].(map[string]any)
		if conf["type"] != "embedded" {
			t.Errorf("confirmation type = %v", conf["type"])
		}
		receipt, ok := gotPayload["receipt"].(map[string]any)
		if !ok {
			t.Fatal("live mode must attach a receipt")
		}
		customer := receipt["customer"].(map[string]any)
		if customer["email"] != "user@example.com" {
			t.Errorf("receipt email = %v, want the metadata email to win", customer["email"])
		}
	})

	t.Run("4xx maps to rejection with the provider description", func(t *testing.T) {
		g, _ := newTestGateway(t, true, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(ykError{Code: "invalid_request", Description: "amount too small"})
		})
		_, err := g.CreatePayment(context.Background(), 1, "x", "", nil)
		if !errors.Is(err, domain.ErrGatewayRejected) {
			t.Fatalf("err = %v, want ErrGatewayRejected", err)
		}
	})

	t.Run("5xx maps to unavailability", func(t *testing.T) {
		g, _ := newTestGateway(t, true, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		_, err := g.CreatePayment(context.Background(), 49900, "x", "", nil)
		if !errors.Is(err, domain.ErrGatewayUnavailable) {
			t.Fatalf("err = %v, want ErrGatewayUnavailable", err)
		}
	})

	t.Run("responses without id or confirmation are malformed", func(t *testing.T) {
		g, _ := newTestGateway(t, true, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(ykPayment{Status: "pending"})
		})
		_, err := g.CreatePayment(context.Background(), 49900, "x", "", nil)
		if !errors.Is(err, domain.ErrGatewayResponseMalformed) {
			t.Fatalf("err = %v, want ErrGatewayResponseMalformed", err)
		}
	})
}

func TestYooKassaGateway_QueryPayment(t *testing.T) {
	t.Run("returns the mapped status", func(t *testing.T) {
		g, _ := newTestGateway(t, true, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/payments/pay-1" {
				t.Errorf("path = %s", r.URL.Path)
			}
			_ = json.NewEncoder(w).Encode(ykPayment{ID: "pay-1", Status: "succeeded"})
		})
		status, err := g.QueryPayment(context.Background(), "pay-1")
		if err != nil || status != model.OrderStatusSucceeded {
			t.Fatalf("status = %v, err = %v", status, err)
		}
	})

	t.Run("waiting_for_capture is still pending", func(t *testing.T) {
		g, _ := newTestGateway(t, true, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(ykPayment{ID: "pay-1", Status: "waiting_for_capture"})
		})
		status, err := g.QueryPayment(context.Background(), "pay-1")
		if err != nil || status != model.OrderStatusPending {
			t.Fatalf("status = %v, err = %v", status, err)
		}
	})

	t.Run("404 means the order is unknown", func(t *testing.T) {
		g, _ := newTestGateway(t, true, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		_, err := g.QueryPayment(context.Background(), "pay-x")
		if !errors.Is(err, domain.ErrOrderNotFound) {
			t.Fatalf("err = %v, want ErrOrderNotFound", err)
		}
	})
}

func TestMapProviderStatus(t *testing.T) {
	cases := map[string]model.OrderStatus{
		"pending":             model.OrderStatusPending,
		"waiting_for_capture": model.OrderStatusPending,
		"succeeded":           model.OrderStatusSucceeded,
		"canceled":            model.OrderStatusCanceled,
		"refund_pending":      model.OrderStatusUnknown,
		"":                    model.OrderStatusUnknown,
	}
	for in, want := range cases {
		if got := mapProviderStatus(in); got != want {
			t.Errorf("mapProviderStatus(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFormatKopeks(t *testing.T) {
	cases := map[int64]string{
		49900: "499.00",
		2000:  "20.00",
		105:   "1.05",
		7:     "0.07",
	}
	for in, want := range cases {
		if got := formatKopeks(in); got != want {
			t.Errorf("formatKopeks(%d) = %q, want %q", in, got, want)
		}
	}
}
