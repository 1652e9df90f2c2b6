// Package api serves the dashboard over HTTP and a WebSocket stream.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/vietddude/breadwatch/internal/control"
	"github.com/vietddude/breadwatch/internal/core/domain"
	"github.com/vietddude/breadwatch/internal/health"
	"github.com/vietddude/breadwatch/internal/infra/pool"
	"github.com/vietddude/breadwatch/internal/transfer"
)

// Session is the application surface behind the dashboard routes.
type Session interface {
	Dashboard() control.Dashboard
	Events() control.LedgerView
	Connect(ctx context.Context, address string) (domain.Identity, error)
	Disconnect(ctx context.Context) error
	RefreshBalance(ctx context.Context) (control.BalanceView, error)
	Owner() (string, error)
	Subscribe() (<-chan control.Event, func())
}

// TransferForm is the transfer form owner.
type TransferForm interface {
	SetRecipient(v string)
	SetAmount(v string)
	Form() transfer.Form
	Submit(ctx context.Context) (common.Hash, error)
}

// NodeDirectory reports node status from the pool endpoint.
type NodeDirectory interface {
	Nodes(ctx context.Context, owner string) (*pool.NodesResponse, error)
	Continents(ctx context.Context) (*pool.ContinentsResponse, error)
}

// Config holds server settings.
type Config struct {
	Port          int
	SubmitTimeout time.Duration
}

// Server is the dashboard HTTP server.
type Server struct {
	cfg      Config
	session  Session
	transfer TransferForm
	nodes    NodeDirectory
	monitor  *health.Monitor
	hub      *Hub
	server   *http.Server
	log      *slog.Logger
}

// NewServer creates the server and its routes.
func NewServer(cfg Config, session Session, form TransferForm, nodes NodeDirectory, monitor *health.Monitor) *Server {
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = 3 * time.Minute
	}
	s := &Server{
		cfg:      cfg,
		session:  session,
		transfer: form,
		nodes:    nodes,
		monitor:  monitor,
		hub:      NewHub(session),
		log:      slog.Default().With("component", "api"),
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Routes returns the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/dashboard", s.handleDashboard)
		r.Post("/session", s.handleConnect)
		r.Delete("/session", s.handleDisconnect)
		r.Get("/events", s.handleEvents)
		r.Post("/balance/refresh", s.handleRefreshBalance)
		r.Get("/transfer", s.handleGetTransfer)
		r.Put("/transfer", s.handleSetTransfer)
		r.Post("/transfer", s.handleSubmitTransfer)
		r.Get("/nodes", s.handleNodes)
		r.Get("/continents", s.handleContinents)
	})
	r.Get("/ws", s.hub.ServeWS)

	if s.monitor != nil {
		health.Routes(r, s.monitor)
	}
	return r
}

// Start runs the hub and serves HTTP until Stop is called.
func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run(ctx)

	s.log.Info("API server listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.hub.Close()
	return s.server.Shutdown(ctx)
}

func requestID(r *http.Request) string {
	return chimw.GetReqID(r.Context())
}
