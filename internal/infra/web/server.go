package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-subscription-payments/internal/domain/model"
	"telegram-subscription-payments/internal/domain/ports/repository"
	"telegram-subscription-payments/internal/usecase"
)

type Server struct {
	uc            usecase.PaymentUseCase
	store         repository.OrderStore
	catalog       *model.PlanCatalog
	webhookSecret string
	adminKey      string
	auth          *AuthManager
	log           *zerolog.Logger
}

func NewServer(
	uc usecase.PaymentUseCase,
	store repository.OrderStore,
	catalog *model.PlanCatalog,
	webhookSecret string,
	adminKey string,
	auth *AuthManager,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		uc:            uc,
		store:         store,
		catalog:       catalog,
		webhookSecret: webhookSecret,
		adminKey:      adminKey,
		auth:          auth,
		log:           logger,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.requestLogger)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/plans", s.handlePlans)
		r.Post("/create-payment", s.handleCreatePayment)
		r.Get("/payment-status/{orderID}", s.handlePaymentStatus)
		r.Post("/webhook", s.handleWebhook)
		r.Post("/activate-subscription", s.handleActivateSubscription)
		r.Post("/confirm-payment", s.handleConfirmPayment)
		r.Get("/payment/return", s.handlePaymentReturn)

		r.Post("/admin/login", s.handleAdminLogin)
		r.Post("/admin/logout", s.handleAdminLogout)
		r.Group(func(r chi.Router) {
			r.Use(s.adminAuth)
			r.Get("/debug/orders", s.handleDebugOrders)
			r.Post("/debug/reset-orders", s.handleDebugReset)
		})
	})

	return r
}

// adminAuth accepts either the raw API key as a Bearer token or a minted
// session cookie.
func (s *Server) adminAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.adminKey == "" {
			s.log.Error().Msg("admin api key is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		if bearerToken(r) == s.adminKey {
			next.ServeHTTP(w, r)
			return
		}
		if s.auth != nil && s.auth.Validate(r) == nil {
			next.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	})
}
