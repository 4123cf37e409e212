// internal/monitoring/server.go
package monitoring

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// Server exposes /metrics and /healthz.
type Server struct {
	addr   string
	router *mux.Router
	logger *slog.Logger
}

// NewServer wires metrics and health handlers onto a gorilla/mux router.
func NewServer(addr string, metrics *Metrics, health *HealthManager, logger *slog.Logger) *Server {
	r := mux.NewRouter()
	if metrics != nil {
		r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	}
	if health != nil {
		r.HandleFunc("/healthz", health.HealthHandler()).Methods(http.MethodGet)
	}
	return &Server{addr: addr, router: r, logger: logger}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("monitoring server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
