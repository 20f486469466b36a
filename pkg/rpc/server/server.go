// Package server exposes the relayer's health, readiness, cursor and metrics
// over plain HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"cosmossdk.io/log"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/rollkit/sequencer-relayer/relayer"
)

const contentTypeJSON = "application/json"

// Backend is the relayer state served by the API.
type Backend interface {
	Status() relayer.Status
	Ready() error
}

// Config configures the API server.
type Config struct {
	// ListenAddress is host:port. Empty disables the server.
	ListenAddress string
	// CORSAllowedOrigins enables CORS for the listed origins.
	CORSAllowedOrigins []string
	// Gatherer serves /metrics when set.
	Gatherer prometheus.Gatherer
}

// CursorResponse is the body of GET /cursor.
type CursorResponse struct {
	LastSubmittedHeight uint64 `json:"last_submitted_height"`
	LastConfirmedHeight uint64 `json:"last_confirmed_height"`
}

// Server serves the relayer API.
type Server struct {
	cfg     Config
	backend Backend
	logger  log.Logger
	router  *mux.Router
	srv     *http.Server
}

// New returns a server for backend. Routes are registered immediately.
func New(cfg Config, backend Backend, logger log.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		backend: backend,
		logger:  logger.With("module", "api"),
		router:  mux.NewRouter(),
	}
	s.registerRoutes()

	var handler http.Handler = s.router
	if len(cfg.CORSAllowedOrigins) > 0 {
		s.logger.Debug("CORS enabled", "origins", cfg.CORSAllowedOrigins)
		handler = cors.New(cors.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodHead},
		}).Handler(handler)
	}
	s.srv = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/healthz", s.Healthz).Methods(http.MethodGet, http.MethodHead)
	s.router.HandleFunc("/readyz", s.Readyz).Methods(http.MethodGet, http.MethodHead)
	s.router.HandleFunc("/cursor", s.Cursor).Methods(http.MethodGet)
	if s.cfg.Gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Run listens on ListenAddress and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	if s.cfg.ListenAddress == "" {
		s.logger.Info("listen address not specified, API will not be exposed")
		<-ctx.Done()
		return nil
	}
	listener, err := net.Listen("tcp", s.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddress, err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.logger.Info("serving HTTP", "listen_address", listener.Addr())
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(listener) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("error while shutting down API server", "error", err)
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Healthz reports that the process is up.
//
// method:
// - GET
// - /healthz
func (s *Server) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// Readyz returns 200 when the relayer is connected to the sequencer and the
// DA layer, and 503 with the reason otherwise.
//
// method:
// - GET
// - /readyz
func (s *Server) Readyz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if err := s.backend.Ready(); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintln(w, err.Error())
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// Cursor returns the submit and commit pointers.
//
// method:
// - GET
// - /cursor
//
// response:
// - CursorResponse
func (s *Server) Cursor(w http.ResponseWriter, _ *http.Request) {
	status := s.backend.Status()
	w.Header().Set("Content-Type", contentTypeJSON)
	if err := json.NewEncoder(w).Encode(CursorResponse{
		LastSubmittedHeight: status.LastSubmittedHeight,
		LastConfirmedHeight: status.LastConfirmedHeight,
	}); err != nil {
		s.logger.Error("failed to encode cursor response", "error", err)
	}
}
