package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/manenim/distributed-rate-limiter/internal/config"
	"github.com/manenim/distributed-rate-limiter/internal/obs"
	"github.com/manenim/distributed-rate-limiter/pkg/limiter"
	"github.com/manenim/distributed-rate-limiter/pkg/redisconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath, ".env")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := obs.SetupLogger(cfg.Observability.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
	logger.Info().Msg("bye")
}

func run(ctx context.Context, cfg *config.Root, logger zerolog.Logger) error {
	client, err := redisconn.Connect(ctx, cfg.Redis)
	if err != nil {
		return err
	}

	store, err := limiter.NewRedisStore(ctx, client,
		limiter.WithScanCount(cfg.Redis.ScanCount),
		limiter.WithDeleteBatchSize(cfg.Redis.DeleteBatchSize),
	)
	if err != nil {
		_ = client.Close()
		return err
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	lcfg, err := cfg.Limiter.Config()
	if err != nil {
		return err
	}
	opts := append(cfg.Limiter.Options(),
		limiter.WithLogger(logger),
		limiter.WithRecorder(limiter.NewPrometheusRecorder(reg, cfg.Observability.MetricsNamespace)),
	)
	l, err := limiter.New(store, lcfg, opts...)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: newHandler(l, handlerConfig{
			health:      redisconn.Healthcheck(client),
			gatherer:    reg,
			metricsPath: cfg.Observability.MetricsPath,
			failClosed:  cfg.Limiter.FailClosed,
			logger:      logger,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().
			Str("addr", srv.Addr).
			Str("strategy", string(l.Strategy())).
			Int64("limit", l.Limit()).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown failed")
			return err
		}
		return nil
	})
	return g.Wait()
}
