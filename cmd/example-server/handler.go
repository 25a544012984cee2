package main

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/manenim/distributed-rate-limiter/internal/obs"
	"github.com/manenim/distributed-rate-limiter/pkg/limiter"
	"github.com/manenim/distributed-rate-limiter/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type handlerConfig struct {
	health      func(context.Context) error
	gatherer    prometheus.Gatherer
	metricsPath string
	failClosed  bool
	logger      zerolog.Logger
}

type limitStatus struct {
	ID        string `json:"id"`
	Strategy  string `json:"strategy"`
	Allowed   bool   `json:"allowed"`
	Limit     int64  `json:"limit"`
	Remaining int64  `json:"remaining"`
	ResetAt   int64  `json:"resetAt"`
	ResetIn   int64  `json:"resetIn"`
}

func newHandler(l *limiter.Limiter, cfg handlerConfig) http.Handler {
	mux := http.NewServeMux()

	limited := middleware.RateLimit(l,
		middleware.WithFailClosed(cfg.failClosed),
		middleware.WithLogger(cfg.logger),
	)

	mux.Handle("GET /ping", limited(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("Pong!\n"))
	})))

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.health(r.Context()); err != nil {
			cfg.logger.Error().Err(err).Msg("healthcheck")
			writeJSON(w, http.StatusServiceUnavailable, map[string]bool{"ok": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})

	mux.Handle("GET "+cfg.metricsPath, promhttp.HandlerFor(cfg.gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("GET /limits/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		dec, err := l.Status(r.Context(), id)
		if err != nil {
			cfg.logger.Error().Err(err).Str("id", id).Msg("limit status")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, limitStatus{
			ID:        id,
			Strategy:  string(l.Strategy()),
			Allowed:   dec.Allowed,
			Limit:     dec.Limit,
			Remaining: dec.Remaining,
			ResetAt:   dec.ResetAt.Unix(),
			ResetIn:   int64(dec.ResetIn.Seconds()),
		})
	})

	mux.HandleFunc("DELETE /limits/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if err := l.Reset(r.Context(), id); err != nil {
			cfg.logger.Error().Err(err).Str("id", id).Msg("limit reset")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	return obs.Logger(cfg.logger)(mux)
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
