package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"rust-vip-platform/internal/config"
	"rust-vip-platform/internal/domain/model"
	"rust-vip-platform/internal/infra/payment"
	"rust-vip-platform/internal/usecase"
)

const maxBodyBytes = 1 << 20

type NotificationService interface {
	Handle(ctx context.Context, n model.Notification) (*usecase.NotificationOutcome, error)
	Reprocess(ctx context.Context, n model.Notification) (*usecase.NotificationOutcome, error)
}

type PendingSweeper interface {
	CheckPending(ctx context.Context) (*model.JobResult, error)
}

type ExpirySweeper interface {
	ExpireDue(ctx context.Context) (*model.JobResult, error)
}

type CheckoutService interface {
	Start(ctx context.Context, userID, planID string) (*usecase.CheckoutSession, error)
}

type ProvisioningStatus interface {
	Status(ctx context.Context, userID string) (*model.User, model.ProvisionSummary, error)
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Services are the use cases behind the routes. RateLimiter may be nil.
type Services struct {
	Notifications NotificationService
	Reconcile     PendingSweeper
	Expiry        ExpirySweeper
	Checkout      CheckoutService
	Users         usecase.UserUseCase
	Provisioning  ProvisioningStatus
	RateLimiter   RateLimiter
}

// Options carry the secrets and limits the handlers check.
type Options struct {
	Port           int
	RequestTimeout time.Duration
	CheckoutLimit  int
	Webhook        config.WebhookConfig
	AdminSecret    string
	Cron           config.CronConfig
	Dev            bool
}

// Server is the public HTTP surface: provider webhooks, admin and cron
// endpoints, checkout and account linking.
type Server struct {
	svc    Services
	auth   *AuthManager
	opts   Options
	parser *payment.Parser
	log    *zerolog.Logger
	server *http.Server
}

func NewServer(svc Services, auth *AuthManager, opts Options, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "HTTPServer").Logger()
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	s := &Server{svc: svc, auth: auth, opts: opts, parser: payment.NewParser(), log: &l}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      opts.RequestTimeout + 5*time.Second,
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), Recover(s.log), RequestLog(s.log), Timeout(s.opts.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(MaxBody(maxBodyBytes))

		r.HandleFunc("/webhooks/payment", s.handleWebhook)
		r.HandleFunc("/webhooks/mercadopago", s.handleWebhook)

		r.Get("/plans", s.handlePlans)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.RequireSession)
			r.Post("/checkout", s.handleCheckout)
			r.Get("/users/me", s.handleMe)
			r.Put("/users/me/links", s.handleLinkAccounts)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.auth.RequireAdmin, s.requireAdminSecret)
			r.Post("/payments/reprocess", s.handleReprocess)
			r.Get("/users/{id}/provisioning", s.handleProvisioningStatus)
		})

		r.Route("/cron", func(r chi.Router) {
			r.Use(s.requireCronAuth)
			r.Get("/expire-subscriptions", s.handleExpire)
			r.Post("/expire-subscriptions", s.handleExpire)
			r.Get("/check-pending", s.handleCheckPending)
			r.Post("/check-pending", s.handleCheckPending)
		})
	})
	return r
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
