// Package server serves health probes and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/guimove/rmqscaler/internal/telemetry"
)

// Server exposes /healthz, /readyz and /metrics.
type Server struct {
	Router *chi.Mux
	Addr   string

	log        zerolog.Logger
	telemetry  *telemetry.Telemetry
	staleAfter time.Duration
	now        func() time.Time
}

// New builds the router. staleAfter bounds how old the last tick may be
// before /readyz fails; zero disables that check.
func New(addr string, tel *telemetry.Telemetry, staleAfter time.Duration, log zerolog.Logger) *Server {
	s := &Server{
		Router:     chi.NewRouter(),
		Addr:       addr,
		log:        log,
		telemetry:  tel,
		staleAfter: staleAfter,
		now:        time.Now,
	}

	s.Router.Use(middleware.RequestID)
	s.Router.Use(middleware.RealIP)
	s.Router.Use(s.requestLogger)
	s.Router.Use(middleware.Recoverer)
	s.Router.Use(middleware.Timeout(30 * time.Second))

	s.Router.Get("/healthz", s.handleHealth)
	s.Router.Get("/readyz", s.handleReady)
	s.Router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(tel.Registry, promhttp.HandlerOpts{}))

	return s
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.telemetry.Ready(s.now(), s.staleAfter) {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn().Err(err).Msg("http server shutdown")
		}
	}()

	s.log.Info().Str("addr", ln.Addr().String()).Msg("starting http server")
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
