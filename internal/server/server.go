package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/guessucla/campusguess/internal/auth"
	"github.com/guessucla/campusguess/internal/campusguess"
	"github.com/guessucla/campusguess/internal/landmark"
	"github.com/guessucla/campusguess/internal/metrics"
	"github.com/guessucla/campusguess/internal/tracing"
)

// Deps is everything the HTTP layer is built from.
type Deps struct {
	Store         Store
	Game          *campusguess.Game
	Registry      *Registry
	Broker        *Broker
	Leaderboard   *Leaderboard
	Landmarks     *landmark.Index
	Tokens        *auth.TokenIssuer
	Authenticator auth.Authenticator
	Metrics       *metrics.Game

	// Images is nil when no bucket is configured.
	Images ImageURLer

	Health         http.Handler
	MetricsHandler http.Handler

	PublicBaseURL string
	SPADir        string

	// TracingService names server spans; empty disables tracing.
	TracingService string
}

type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

func New(addr string, logger *slog.Logger, deps Deps) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           newHandler(logger, deps),
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

func newHandler(logger *slog.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(newStructuredLogger(logger))
	r.Use(middleware.Recoverer)

	addRoutes(r, logger, deps)

	if deps.TracingService == "" {
		return r
	}
	// Outermost, so the request logger sees the trace ID.
	return tracing.Middleware(deps.TracingService)(r)
}

func (s *Server) Run(_ context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.srv.Addr, err)
	}

	s.logger.Info("listening", "addr", ln.Addr().String())
	err = s.srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
