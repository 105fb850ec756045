package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"emojifed/internal/federation/address"
	"emojifed/internal/federation/discovery"
	"emojifed/internal/federation/neighbor"
	"emojifed/internal/federation/registry"
	"emojifed/internal/federation/service"
	httpapi "emojifed/internal/http"
	"emojifed/internal/platform/config"
	"emojifed/internal/platform/httpserver"
	"emojifed/internal/platform/logger"
	"emojifed/internal/platform/metrics"
	"emojifed/internal/platform/tracing"
	"emojifed/pkg/platform/circuit"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Federation logic lives in internal/federation.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.Setup(cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warn("tracer shutdown failed", "error", err)
		}
	}()

	backend, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer backend.close()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	reg := registry.New(ctx, backend.store,
		registry.WithLogger(log),
		registry.WithMetrics(registry.NewMetrics(promReg)),
	)
	neighbors := neighbor.New(
		neighbor.WithTimeout(cfg.Federation.QueryTimeout),
		neighbor.WithNeighborhoodTTL(cfg.Federation.NeighborhoodTTL),
		neighbor.WithBreakerOptions(
			circuit.WithFailureThreshold(cfg.Federation.BreakerFailures),
			circuit.WithCooldown(cfg.Federation.BreakerCooldown),
		),
		neighbor.WithLogger(log),
		neighbor.WithMetrics(neighbor.NewMetrics(promReg)),
	)
	engine := discovery.New(neighbors, reg,
		discovery.WithLogger(log),
		discovery.WithMetrics(discovery.NewMetrics(promReg)),
	)
	svc, err := service.New(reg, engine,
		service.WithSelfURL(cfg.Federation.SelfURL),
		service.WithMaxHops(cfg.Federation.MaxHops),
		service.WithNeighbors(cfg.Federation.Neighbors),
		service.WithParser(address.NewParser(address.WithMarker(cfg.Federation.Marker))),
		service.WithLogger(log),
	)
	if err != nil {
		return err
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Federation:     svc,
		Logger:         log,
		Metrics:        metrics.New(promReg),
		Gatherer:       promReg,
		Health:         backend.health,
		Storage:        cfg.Storage.Backend,
		RequestTimeout: cfg.Server.RequestTimeout,
	})

	srv := httpserver.New(cfg.Server, router)

	log.Info("starting emojifed",
		"addr", cfg.Server.Addr,
		"self_url", cfg.Federation.SelfURL,
		"storage", cfg.Storage.Backend,
		"locations", len(reg.Locations()),
		"tracing", tp.Enabled(),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
