package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"telegram-subscription-payments/internal/domain"
	"telegram-subscription-payments/internal/domain/model"
	"telegram-subscription-payments/internal/infra/logging"
	"telegram-subscription-payments/internal/infra/payment"
)

const maxBodyBytes = 64 << 10

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

// statusCode maps domain errors onto the HTTP surface.
func statusCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidPlan),
		errors.Is(err, domain.ErrMissingUser),
		errors.Is(err, domain.ErrWebhookMalformed):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrGatewayUnconfigured):
		return http.StatusInternalServerError
	case errors.Is(err, domain.ErrGatewayUnavailable),
		errors.Is(err, domain.ErrGatewayRejected),
		errors.Is(err, domain.ErrGatewayResponseMalformed),
		errors.Is(err, domain.ErrActivationFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ---- plans ----

func (s *Server) handlePlans(w http.ResponseWriter, r *http.Request) {
	type planOut struct {
		ID           string `json:"id"`
		Name         string `json:"name"`
		Price        int64  `json:"price"`
		Description  string `json:"description"`
		DurationDays int    `json:"durationDays"`
	}
	plans := s.catalog.List()
	out := make([]planOut, 0, len(plans))
	for _, p := range plans {
		out = append(out, planOut{
			ID:           p.ID,
			Name:         p.Name,
			Price:        p.PriceRUB,
			Description:  p.Description,
			DurationDays: p.DurationDays,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"plans": out})
}

// ---- create payment ----

type createPaymentRequest struct {
	Amount      int64  `json:"amount"` // informational; the catalog price wins
	PlanID      string `json:"planId"`
	UserID      string `json:"userId"`
	Description string `json:"description"`
	ReturnURL   string `json:"returnUrl"`
}

func (s *Server) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req createPaymentRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	if req.PlanID == "" {
		writeError(w, http.StatusBadRequest, "planId is required")
		return
	}

	ctx = logging.WithUserID(ctx, req.UserID)
	order, handle, err := s.uc.CreateOrder(ctx, req.PlanID, req.UserID, req.Description, req.ReturnURL)
	if err != nil {
		logging.With(ctx, s.log).Error().Err(err).Str("plan_id", req.PlanID).Msg("create payment failed")
		writeError(w, statusCode(err), err.Error())
		return
	}
	if req.Amount > 0 && req.Amount*100 != order.Amount {
		logging.With(ctx, s.log).Warn().Int64("client_amount", req.Amount).
			Int64("catalog_amount", order.Amount).Msg("client amount ignored in favor of catalog price")
	}

	resp := map[string]any{
		"orderId": order.OrderID,
		"status":  order.Status,
		"amount":  order.Amount / 100,
	}
	if handle.RedirectURL != "" {
		resp["redirectUrl"] = handle.RedirectURL
	} else {
		resp["confirmationToken"] = handle.ConfirmationToken
	}
	writeJSON(w, http.StatusOK, resp)
}

// ---- payment status ----

func (s *Server) handlePaymentStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	ctx := logging.WithOrderID(r.Context(), orderID)

	status, err := s.uc.Status(ctx, orderID)
	if err != nil {
		logging.With(ctx, s.log).Error().Err(err).Msg("payment status lookup failed")
		writeError(w, statusCode(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": status, "orderId": orderID})
}

// ---- webhook ----

type webhookEvent struct {
	Event  string `json:"event"`
	Object struct {
		ID string `json:"id"`
	} `json:"object"`
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	if !payment.VerifyWebhookSignature(s.webhookSecret, body, r.Header.Get("X-Webhook-Signature")) {
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	var ev webhookEvent
	if err := json.Unmarshal(body, &ev); err != nil || ev.Event == "" || ev.Object.ID == "" {
		writeError(w, http.StatusBadRequest, domain.ErrWebhookMalformed.Error())
		return
	}

	ctx := logging.WithOrderID(r.Context(), ev.Object.ID)
	log := logging.With(ctx, s.log)

	switch ev.Event {
	case "payment.succeeded":
		// An unknown order is an expected race here, never an error to the
		// provider; reconcile synthesizes the record.
		if _, err := s.uc.Reconcile(ctx, ev.Object.ID, model.SignalWebhook, model.OrderStatusSucceeded); err != nil {
			log.Error().Err(err).Msg("webhook reconcile failed; other signals will retry")
		}
	case "payment.canceled":
		if _, err := s.uc.Reconcile(ctx, ev.Object.ID, model.SignalWebhook, model.OrderStatusCanceled); err != nil {
			log.Error().Err(err).Msg("webhook reconcile failed")
		}
	default:
		log.Info().Str("event", ev.Event).Msg("ignoring webhook event type")
	}
	w.WriteHeader(http.StatusOK)
}

// ---- activate subscription (widget success callback) ----

type activateSubscriptionRequest struct {
	UserID           string `json:"userId"`
	OrderID          string `json:"orderId"`
	PlanName         string `json:"planName"`
	PlanDurationDays int    `json:"planDurationDays"`
}

func (s *Server) handleActivateSubscription(w http.ResponseWriter, r *http.Request) {
	var req activateSubscriptionRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.OrderID == "" {
		writeError(w, http.StatusBadRequest, "userId and orderId are required")
		return
	}

	ctx := logging.WithOrderID(logging.WithUserID(r.Context(), req.UserID), req.OrderID)
	s.backfillOrderDetails(ctx, req)

	order, err := s.uc.Reconcile(ctx, req.OrderID, model.SignalWidget, model.OrderStatusSucceeded)
	if err != nil {
		logging.With(ctx, s.log).Error().Err(err).Msg("widget activation failed")
		writeJSON(w, statusCode(err), map[string]any{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"orderId":   order.OrderID,
		"status":    order.Status,
		"activated": order.Activated,
	})
}

// backfillOrderDetails makes sure the order record carries the user and
// plan fields from the widget callback before reconciliation runs, whether
// the record was synthesized by an earlier webhook or lost entirely (a
// restart on the memory driver). Activation must never fire with an empty
// user when the callback named one.
func (s *Server) backfillOrderDetails(ctx context.Context, req activateSubscriptionRequest) {
	order, err := s.store.Get(ctx, req.OrderID)
	if errors.Is(err, domain.ErrOrderNotFound) {
		now := time.Now()
		order = &model.Order{
			OrderID:          req.OrderID,
			UserID:           req.UserID,
			PlanName:         req.PlanName,
			PlanDurationDays: req.PlanDurationDays,
			Status:           model.OrderStatusPending,
			Synthesized:      true,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if perr := s.store.Put(ctx, order); perr != nil {
			logging.With(ctx, s.log).Warn().Err(perr).Msg("order detail backfill failed")
		}
		return
	}
	if err != nil || order.UserID != "" {
		return
	}
	order.UserID = req.UserID
	order.PlanName = req.PlanName
	order.PlanDurationDays = req.PlanDurationDays
	order.UpdatedAt = time.Now()
	if err := s.store.Put(ctx, order); err != nil {
		logging.With(ctx, s.log).Warn().Err(err).Msg("order detail backfill failed")
	}
}

// ---- manual confirm (user override after poll timeout) ----

type confirmPaymentRequest struct {
	OrderID string `json:"orderId"`
}

func (s *Server) handleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req confirmPaymentRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil || req.OrderID == "" {
		writeError(w, http.StatusBadRequest, "orderId is required")
		return
	}
	ctx := logging.WithOrderID(r.Context(), req.OrderID)

	order, err := s.uc.Reconcile(ctx, req.OrderID, model.SignalUserOverride, model.OrderStatusSucceeded)
	if err != nil {
		logging.With(ctx, s.log).Error().Err(err).Msg("manual confirmation failed")
		writeJSON(w, statusCode(err), map[string]any{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"orderId":   order.OrderID,
		"status":    order.Status,
		"activated": order.Activated,
	})
}

// ---- redirect return page ----

func (s *Server) handlePaymentReturn(w http.ResponseWriter, r *http.Request) {
	orderID := r.URL.Query().Get("orderId")
	ctx := logging.WithOrderID(r.Context(), orderID)

	succeeded := false
	if orderID != "" {
		ok, err := s.uc.ForceCheck(ctx, orderID, model.SignalRedirect)
		if err != nil {
			logging.With(ctx, s.log).Warn().Err(err).Msg("return page force check failed")
		}
		succeeded = ok
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if succeeded {
		fmt.Fprint(w, returnSuccessHTML)
		return
	}
	fmt.Fprint(w, returnPendingHTML)
}

const returnSuccessHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Payment Successful</title>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <style>
        body { font-family: Arial, sans-serif; text-align: center; padding: 50px; }
        .success { color: #4CAF50; }
    </style>
</head>
<body>
    <h1 class="success">Payment Successful!</h1>
    <p>Your subscription has been activated. You can now return to the bot.</p>
</body>
</html>`

const returnPendingHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Payment Processing</title>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <style>
        body { font-family: Arial, sans-serif; text-align: center; padding: 50px; }
        .pending { color: #FF9800; }
    </style>
</head>
<body>
    <h1 class="pending">Payment Processing</h1>
    <p>We have not confirmed your payment yet. Return to the bot and check the status there.</p>
</body>
</html>`

// ---- admin/debug ----

type adminLoginRequest struct {
	Key string `json:"key"`
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if s.adminKey == "" || req.Key != s.adminKey {
		writeError(w, http.StatusUnauthorized, "invalid key")
		return
	}
	if s.auth == nil {
		writeError(w, http.StatusInternalServerError, "sessions not configured")
		return
	}
	if _, err := s.auth.Mint(w); err != nil {
		writeError(w, http.StatusInternalServerError, "session mint failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleAdminLogout(w http.ResponseWriter, r *http.Request) {
	if s.auth != nil {
		s.auth.Clear(w)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleDebugOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders, "count": len(orders)})
}

func (s *Server) handleDebugReset(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.log.Info().Msg("order store reset via debug endpoint")
	writeJSON(w, http.StatusOK, map[string]any{"message": "order store cleared"})
}
