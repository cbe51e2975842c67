// Package api provides the HTTP server for CatalogRelay.
//
// It terminates the WhatsApp Cloud API webhook (verification handshake and event delivery) and
// exposes liveness, health, receipts and Prometheus metrics endpoints.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/BTreeMap/CatalogRelay/internal/messaging"
	"github.com/BTreeMap/CatalogRelay/internal/metrics"
	"github.com/BTreeMap/CatalogRelay/internal/models"
	"github.com/BTreeMap/CatalogRelay/internal/store"
)

// Default server configuration.
const (
	DefaultAddr            = ":5000"
	DefaultShutdownTimeout = 15 * time.Second
	DefaultReadTimeout     = 15 * time.Second
	// DefaultWriteTimeout leaves room for a full turn: catalog lookup, completion and paired sends.
	DefaultWriteTimeout = 90 * time.Second
	// maxWebhookBodyBytes caps webhook request bodies.
	maxWebhookBodyBytes = 1 << 20
)

// MessageHandler handles one validated inbound message. *flow.Router satisfies it.
type MessageHandler interface {
	Handle(ctx context.Context, msg models.InboundMessage) []messaging.DispatchResult
}

// Opts holds configuration options for the API server.
type Opts struct {
	Addr            string
	VerifyToken     string
	ShutdownTimeout time.Duration
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithVerifyToken sets the webhook verification secret.
func WithVerifyToken(token string) Option {
	return func(o *Opts) { o.VerifyToken = token }
}

// WithShutdownTimeout bounds graceful shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *Opts) { o.ShutdownTimeout = d }
}

// Server serves the webhook and operational endpoints.
type Server struct {
	handler         MessageHandler
	st              store.Store
	greetings       store.GreetingRepo
	addr            string
	verifyToken     string
	shutdownTimeout time.Duration
	mux             *http.ServeMux
}

// NewServer creates a Server. The address falls back to $API_ADDR, then ":$PORT", then
// DefaultAddr; the verify token falls back to $VERIFY_TOKEN.
func NewServer(handler MessageHandler, st store.Store, greetings store.GreetingRepo, opts ...Option) *Server {
	cfg := Opts{ShutdownTimeout: DefaultShutdownTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = os.Getenv("API_ADDR")
	}
	if cfg.Addr == "" {
		if port := os.Getenv("PORT"); port != "" {
			cfg.Addr = ":" + port
		}
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.VerifyToken == "" {
		cfg.VerifyToken = os.Getenv("VERIFY_TOKEN")
	}
	if cfg.VerifyToken == "" {
		slog.Warn("api.NewServer: no verify token configured, webhook verification will always fail")
	}
	if st == nil {
		st = store.NewInMemoryStore()
	}
	if greetings == nil {
		greetings = store.NewInMemoryGreetingRepo()
	}

	s := &Server{
		handler:         handler,
		st:              st,
		greetings:       greetings,
		addr:            cfg.Addr,
		verifyToken:     cfg.VerifyToken,
		shutdownTimeout: cfg.ShutdownTimeout,
		mux:             http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.Handle("/webhook", withRequestID(http.HandlerFunc(s.webhookHandler)))
	s.mux.HandleFunc("/health", s.healthHandler)
	s.mux.HandleFunc("/receipts", s.receiptsHandler)
	s.mux.Handle("/metrics", metrics.Handler())
	s.mux.HandleFunc("/", s.rootHandler)
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.mux,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: CatalogRelay API listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		slog.Info("Server.Run: shutdown requested")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server.Run: graceful shutdown failed", "error", err)
		return err
	}
	slog.Info("Server.Run: server stopped")
	return nil
}
