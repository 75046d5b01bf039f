// Command stromd is the pipeline graph runtime daemon: it loads the
// element catalog, wires the process-wide event bus and flow table, and
// serves Prometheus metrics until it receives SIGINT/SIGTERM, at which
// point every running flow is stopped before exit. Grounded on the
// teacher's cmd/daemon/main.go wiring order (logger configure, signal
// context, dependency construction, graceful shutdown).
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eyevinn-osaas/strom-sub002/internal/blocks"
	"github.com/eyevinn-osaas/strom-sub002/internal/bus"
	"github.com/eyevinn-osaas/strom-sub002/internal/catalog"
	"github.com/eyevinn-osaas/strom-sub002/internal/discovery"
	"github.com/eyevinn-osaas/strom-sub002/internal/engine"
	xglog "github.com/eyevinn-osaas/strom-sub002/internal/log"
	"github.com/eyevinn-osaas/strom-sub002/internal/runtime"
	"github.com/eyevinn-osaas/strom-sub002/internal/telemetry"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	catalogDir := flag.String("catalog-dir", "", "directory of element catalog YAML files (empty: start with no element types)")
	metricsAddr := flag.String("metrics-addr", ":9090", "address to serve /metrics on")
	parallelism := flag.Int64("parallelism", 8, "max concurrent flow start/stop/pause operations")
	flag.Parse()

	if *showVersion {
		fmt.Printf("stromd %s (commit %s)\n", version, commit)
		os.Exit(0)
	}

	logger := xglog.L().With().Str("component", "stromd").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, "stromd")
	if err != nil {
		logger.Fatal().Err(err).Msg("telemetry setup failed")
	}
	defer func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutCtx); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	elementCat, err := loadElementCatalog(*catalogDir)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", *catalogDir).Msg("failed to load element catalog")
	}
	elementHolder := catalog.NewHolder(elementCat)

	if *catalogDir != "" {
		watcher, err := catalog.NewWatcher(*catalogDir, elementHolder)
		if err != nil {
			logger.Warn().Err(err).Msg("catalog hot-reload watcher failed to start, continuing without it")
		} else {
			defer watcher.Close()
		}
	}

	// Block definitions carry a Go expansion function (catalog.BlockDefinition.Build)
	// and are therefore registered by the hosting binary, not loaded from YAML.
	// No production device discovery backend is wired here (spec: discovery
	// providers are an external collaborator, out of scope); NDI blocks fall
	// back to an empty static list until a real DeviceDiscovery is supplied,
	// which still leaves explicit ndi_name/url_address addressing usable.
	blockCat, err := catalog.NewBlockCatalog(blocks.Builtin(discovery.NewStatic()))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to construct block catalog")
	}
	blockHolder := catalog.NewBlockHolder(blockCat)

	eventBus := bus.New()
	defer eventBus.Close()

	// No production streaming-engine backend is wired here (spec: engine
	// element implementations are an external collaborator, out of scope);
	// the fake in-memory engine stands in until a real Factory is supplied.
	rt := runtime.New(engine.NewFakeFactory(), elementHolder, blockHolder, eventBus, *parallelism)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: *metricsAddr, Handler: mux}
	go func() {
		logger.Info().Str("addr", *metricsAddr).Msg("serving metrics")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn().Err(err).Msg("metrics server stopped")
		}
	}()

	logger.Info().Str("version", version).Msg("stromd started")
	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := rt.Shutdown(shutCtx); err != nil {
		logger.Warn().Err(err).Msg("one or more flows failed to stop cleanly")
	}
	_ = srv.Shutdown(shutCtx)
}

func loadElementCatalog(dir string) (*catalog.ElementCatalog, error) {
	if dir == "" {
		return catalog.NewElementCatalog(nil)
	}
	return catalog.LoadDir(dir)
}
