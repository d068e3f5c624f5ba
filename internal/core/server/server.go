package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammed-shakir/geodb-places/internal/core/config"
	"github.com/mohammed-shakir/geodb-places/internal/core/health"
	middleware "github.com/mohammed-shakir/geodb-places/internal/core/middleware"
	"github.com/mohammed-shakir/geodb-places/internal/core/router"
)

// Handler builds the places HTTP API. rl and ready may be nil.
func Handler(logger *slog.Logger, cat router.Catalog, rl router.Reloader, ready health.ReadinessReporter) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	if ready != nil {
		r.Get("/readyz", health.Readiness(ready))
	}
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	router.Mount(r, logger, cat, rl)
	return r
}

// Run serves h on cfg.Addr until ctx ends.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, h http.Handler) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
