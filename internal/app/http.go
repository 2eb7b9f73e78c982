package app

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"opschat/pkg/logger"
)

// startDebugListener serves /healthz, /metrics and a read-only /rooms dump
// of the directory cache. Disabled when no debug address is configured.
func (a *App) startDebugListener(ctx context.Context) <-chan error {
	errCh := make(chan error, 1)
	if a.cfg.Debug.Addr == "" {
		return errCh
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		status := "ok"
		if a.engine.Directory().Stale() {
			status = "stale"
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/rooms", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(a.engine.Directory().Rooms())
	}).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:              a.cfg.Debug.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("debug_listener_started", "addr", a.cfg.Debug.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()
	return errCh
}
