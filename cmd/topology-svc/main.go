// Command topology-svc runs the delay-constrained multicast topology
// service: it loads the overlay graph named by TOPOFILE, serves the REST
// surface of §6, and memoizes one SingleTrackSolution per track namespace.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"topology/pkg/cache"
	"topology/pkg/config"
	"topology/pkg/logger"
	"topology/pkg/metrics"
	"topology/services/topology-svc/internal/graph"
	"topology/services/topology-svc/internal/handlers"
	"topology/services/topology-svc/internal/middleware"
	"topology/services/topology-svc/internal/optimizer"
	"topology/services/topology-svc/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("error")
		logger.Fatal("failed to load config", "error", err)
	}

	logger.InitWithConfig(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})

	logger.Info("starting topology service",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
		"topology_file", cfg.Graph.TopologyFile,
	)

	g, err := graph.LoadFile(cfg.Graph.TopologyFile)
	if err != nil {
		logger.Fatal("failed to load topology file", "error", err, "path", cfg.Graph.TopologyFile)
	}
	logger.Info("loaded overlay graph", "nodes", g.NodeCount(), "edges", g.EdgeCount())

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.InitMetrics(cfg.Metrics.Namespace, cfg.Metrics.Subsystem)
		m.SetServiceInfo(cfg.App.Version, cfg.App.Environment)
	}

	var trackCache *cache.TrackCache
	if cfg.Cache.Enabled {
		backend, err := cache.New(cache.FromConfig(&cfg.Cache))
		if err != nil {
			logger.Fatal("failed to initialize cache", "error", err, "driver", cfg.Cache.Driver)
		}
		trackCache = cache.NewTrackCache(backend, cfg.Cache.DefaultTTL)
		logger.Info("solution cache enabled", "driver", cfg.Cache.Driver)
	}

	defaultOptimizer := optimizer.Kind(cfg.Graph.DefaultOptimizer)
	if _, ok := optimizer.Get(defaultOptimizer); !ok {
		logger.Fatal("unknown graph.default_optimizer", "value", cfg.Graph.DefaultOptimizer)
	}

	svc := service.New(g, defaultOptimizer, cfg.Graph.SoftDeadline, trackCache, m)
	h := handlers.New(svc)

	mw := []func(http.Handler) http.Handler{middleware.RequestID, middleware.Logging}
	if m != nil {
		mw = append(mw, middleware.Metrics(m))
	}
	if cfg.HTTP.CORS.Enabled {
		mw = append(mw, middleware.CORS(cfg.HTTP.CORS))
	}

	mux := http.NewServeMux()
	mux.Handle("/", h.Routes())
	mux.HandleFunc("/health", handleHealth)
	if m != nil {
		mux.Handle(cfg.Metrics.Path, metrics.Handler())
	}

	httpHandler := middleware.Chain(mux, mw...)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      h2c.NewHandler(httpHandler, &http2.Server{}),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		logger.Info("topology service listening", "port", cfg.HTTP.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	logger.Info("server stopped")
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
