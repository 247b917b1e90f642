package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"PointsCalc/internal/catalog"
	"PointsCalc/internal/config"
	"PointsCalc/internal/kv"
	"PointsCalc/pkg/kit"
)

const service = "pointsd"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log, err := kit.NewLogger(service, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	blob, err := kv.Open(openCtx, cfg.Storage)
	cancel()
	if err != nil {
		log.Fatal("open storage failed", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer func() { _ = blob.Close() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store, err := catalog.Open(ctx, blob, catalog.Options{
		Key:     cfg.StorageKey,
		Log:     log.Named("store"),
		Metrics: catalog.NewStoreMetrics(reg),
	})
	if err != nil {
		log.Warn("starting with an empty catalog", zap.Error(err))
	}

	h := catalog.NewHandler(&catalog.Server{Store: store, Log: log}, catalog.HTTPDeps{
		Log:              log,
		Service:          service,
		Registry:         reg,
		MetricsEnabled:   cfg.Metrics,
		MetricsToken:     cfg.MetricsAuth,
		WriteLimitPerMin: cfg.WriteLimit,
		TrustProxy:       cfg.TrustProxy,
	})

	log.Info("catalog ready",
		zap.String("driver", cfg.Storage.Driver),
		zap.String("key", cfg.StorageKey),
		zap.Strings("categories", store.ListCategories()),
	)

	if err := kit.RunHTTPServer(ctx, kit.ServerConfig{Addr: ":" + cfg.Port}, h, log); err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}
