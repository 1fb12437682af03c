// Package adminapi serves GRASS's read-only admin HTTP surface: a
// liveness probe, Prometheus exposition, and a session-introspection
// endpoint, on a listener separate from the control port.
package adminapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/grassproto/grass/internal/dispatcher"
)

type apiOK struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

// SnapshotSource is satisfied by *dispatcher.Dispatcher; introduced so
// this package can be tested without a live dispatcher.
type SnapshotSource interface {
	Snapshot() []dispatcher.SessionSnapshot
}

// Config controls the admin surface. An empty Addr disables it.
type Config struct {
	Addr string
}

// DefaultConfigFromEnv reads ADMIN_ADDR, defaulting to
// "127.0.0.1:9090". An empty value is treated the same as an unset
// one and also yields the default, so the returned Config always has
// a non-empty Addr.
func DefaultConfigFromEnv(getenv func(string) string) Config {
	addr, ok := lookupEnv(getenv, "ADMIN_ADDR")
	if !ok {
		addr = "127.0.0.1:9090"
	}
	return Config{Addr: addr}
}

func lookupEnv(getenv func(string) string, key string) (string, bool) {
	v := getenv(key)
	return v, v != ""
}

// Start runs the admin surface on its own listener until ctx is
// cancelled. A zero-value Addr disables it entirely.
func Start(ctx context.Context, cfg Config, src SnapshotSource, gatherer prometheus.Gatherer) {
	if cfg.Addr == "" {
		log.Printf("admin surface disabled (empty Addr)")
		return
	}

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/sessions", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, apiOK{OK: true, Data: src.Snapshot()})
		})
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		log.Printf("admin surface listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("admin surface error: %v", err)
		}
	}()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
