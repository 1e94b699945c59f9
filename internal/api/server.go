/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package api implements Sentinela's admin HTTP surface (spec.md §6):
// status/metrics reporting and the monitor/alert/issue management
// endpoints. The Controller role is the only one that serves it; the
// Executor applies the state transitions these endpoints enqueue.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/sentinela-io/sentinela/internal/loader"
	"github.com/sentinela-io/sentinela/internal/metrics"
	"github.com/sentinela-io/sentinela/internal/monitor"
	"github.com/sentinela-io/sentinela/internal/queue"
	"github.com/sentinela-io/sentinela/internal/store"
)

// Server wraps chi's router and an http.Server, mirroring the teacher's
// admin API bootstrap (internal/api/server.go) adapted from Kubernetes
// CronJob/AlertChannel routes to Sentinela's Monitor/Alert/Issue routes.
type Server struct {
	httpServer *http.Server
	log        zerolog.Logger
}

// NewServer builds the chi router and wraps it in an http.Server bound to
// addr. metricsRegistry may be nil, in which case /metrics is omitted
// (useful for tests that don't care about Prometheus wiring).
func NewServer(addr string, s store.Store, l loader.Loader, registry monitor.Registry, q queue.Queue, controllerStatus ControllerStatus, executorStatus ExecutorStatus, metricsRegistry *metrics.Registry, log zerolog.Logger) *Server {
	h := NewHandlers(s, l, registry, q, controllerStatus, executorStatus)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(loggingMiddleware(log))
	r.Use(corsMiddleware)

	r.Get("/", h.GetStatus)
	r.Get("/status", h.GetStatus)

	if metricsRegistry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(metricsRegistry.Gatherer(), promhttp.HandlerOpts{}))
	}

	r.Route("/monitor", func(r chi.Router) {
		r.Get("/list", h.ListMonitors)
		r.Get("/{name}", h.GetMonitor)
		r.Post("/validate", h.ValidateMonitor)
		r.Post("/register/{name}", h.RegisterMonitor)
		r.Post("/{name}/enable", h.EnableMonitor)
		r.Post("/{name}/disable", h.DisableMonitor)
	})

	r.Route("/alert", func(r chi.Router) {
		r.Post("/{id}/acknowledge", h.AlertAcknowledge)
		r.Post("/{id}/lock", h.AlertLock)
		r.Post("/{id}/solve", h.AlertSolve)
	})

	r.Route("/issue", func(r chi.Router) {
		r.Post("/{id}/drop", h.IssueDrop)
	})

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		log: log,
	}
}

// Run starts serving and blocks until ctx is cancelled, then gracefully
// shuts down the listener (spec.md's graceful-shutdown requirement).
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.httpServer.Addr).Msg("admin API listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

func loggingMiddleware(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("admin API request")
		})
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
