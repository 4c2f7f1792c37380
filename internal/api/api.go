// Package api provides the HTTP surface of the financial assistant.
//
// It exposes the WhatsApp webhook (verification handshake and message
// ingestion), the Open Finance endpoints, a health check and the Prometheus
// metrics endpoint.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/joselpq/whatsapp-integration-sub000/internal/dedup"
	"github.com/joselpq/whatsapp-integration-sub000/internal/metrics"
	"github.com/joselpq/whatsapp-integration-sub000/internal/models"
	"github.com/joselpq/whatsapp-integration-sub000/internal/openfinance"
	"github.com/joselpq/whatsapp-integration-sub000/internal/store"
)

// ConversationEngine is the dispatch entry point consumed by the webhook
// handler.
type ConversationEngine interface {
	ProcessMessage(ctx context.Context, msg models.IncomingMessage) models.PhaseResult
}

// WindowRecorder is implemented by transports that track the 24-hour
// customer service window.
type WindowRecorder interface {
	RecordInbound(recipient string, at time.Time)
}

// OpenFinanceClient is the Pluggy surface exposed over HTTP.
type OpenFinanceClient interface {
	CreateConnectToken(ctx context.Context, itemID string) (string, error)
	ListAccounts(ctx context.Context, itemID string) ([]openfinance.Account, error)
	ListTransactions(ctx context.Context, accountID string, from, to time.Time) ([]openfinance.Transaction, error)
}

// Opts holds configuration options for the API server.
type Opts struct {
	Addr        string
	VerifyToken string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithVerifyToken sets the webhook verification token.
func WithVerifyToken(token string) Option {
	return func(o *Opts) { o.VerifyToken = token }
}

// Server wires the HTTP handlers to their collaborators.
type Server struct {
	addr        string
	verifyToken string

	store   store.Store
	engine  ConversationEngine
	window  WindowRecorder // nil when the transport has no window
	dedup   dedup.Deduplicator
	metrics *metrics.Metrics
	pluggy  OpenFinanceClient // nil when Open Finance is not configured
}

// NewServer creates an API server.
func NewServer(st store.Store, engine ConversationEngine, window WindowRecorder, dd dedup.Deduplicator, m *metrics.Metrics, pluggy OpenFinanceClient, opts ...Option) *Server {
	cfg := Opts{Addr: ":8080"}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		addr:        cfg.Addr,
		verifyToken: cfg.VerifyToken,
		store:       st,
		engine:      engine,
		window:      window,
		dedup:       dd,
		metrics:     m,
		pluggy:      pluggy,
	}
}

// Router builds the chi router with all routes registered.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/webhook", func(r chi.Router) {
		r.Get("/", s.handleWebhookVerify)
		r.Post("/", s.handleWebhook)
	})

	if s.pluggy != nil {
		r.Route("/openfinance", func(r chi.Router) {
			r.Post("/connect-token", s.handleConnectToken)
			r.Get("/accounts", s.handleListAccounts)
			r.Get("/transactions", s.handleListTransactions)
			r.Post("/webhook", s.handleOpenFinanceWebhook)
		})
	}

	return r
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"status": "healthy"}))
}
