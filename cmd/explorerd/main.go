package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/busantrip/map-explorer/internal/boundary"
	"github.com/busantrip/map-explorer/internal/config"
	"github.com/busantrip/map-explorer/internal/content"
	"github.com/busantrip/map-explorer/internal/geocode"
	"github.com/busantrip/map-explorer/internal/httpclient"
	"github.com/busantrip/map-explorer/internal/invalidation/kafkaconsumer"
	"github.com/busantrip/map-explorer/internal/logger"
	"github.com/busantrip/map-explorer/internal/model"
	"github.com/busantrip/map-explorer/internal/observability"
	"github.com/busantrip/map-explorer/internal/redisstore"
	"github.com/busantrip/map-explorer/internal/server"
	"github.com/busantrip/map-explorer/internal/surface"
	"github.com/busantrip/map-explorer/internal/trending"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		Component: "explorerd",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	observability.ExposeBuildInfo(Version)
	appLog.Info("starting explorerd",
		"addr", cfg.Addr,
		"version", Version,
		"content_api", cfg.ContentAPIURL,
		"boundary_source", cfg.BoundarySource)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpClient := httpclient.NewOutbound()

	var store *redisstore.Client
	if cfg.RedisAddr != "" {
		var err error
		store, err = redisstore.New(ctx, cfg.RedisAddr)
		if err != nil {
			appLog.Error("redis unavailable", "addr", cfg.RedisAddr, "err", err)
			return 1
		}
		defer func() { _ = store.Close() }()
	}

	geocodeClient, err := geocode.NewClient(cfg.GeocodeBaseURL, cfg.MapAPIKey, httpClient, appLog)
	if err != nil {
		appLog.Error("geocoder setup failed", "err", err)
		return 1
	}
	var resolver geocode.Resolver = geocodeClient
	var geoStore geocode.Store
	if store != nil {
		geoStore = store
	}
	resolver = geocode.NewCachedResolver(resolver, geoStore,
		cfg.GeocodeCacheRes, cfg.GeocodeCacheTTL, cfg.CacheOpTimeout, cfg.GeocodeLRUSize, appLog)

	var contentOpts []content.Option
	if store != nil {
		contentOpts = append(contentOpts, content.WithCache(store, cfg.ContentCacheTTL, cfg.CacheOpTimeout))
	}
	contentClient, err := content.NewClient(cfg.ContentAPIURL, httpClient, appLog, contentOpts...)
	if err != nil {
		appLog.Error("content client setup failed", "err", err)
		return 1
	}

	manager := surface.NewManager(surface.Config{
		APIKey: cfg.MapAPIKey,
		Center: model.LatLng{Lat: cfg.CenterLat, Lng: cfg.CenterLng},
		Zoom:   cfg.Zoom,
	}, appLog)

	trend := trending.New(cfg.TrendingHalfLife)

	srv, err := server.New(cfg, appLog, server.Deps{
		Manager:        manager,
		Resolver:       resolver,
		Fetcher:        contentClient,
		Trending:       trend,
		BoundaryLoader: boundary.NewLoader(httpClient, cfg.RegionNameProp, appLog),
	})
	if err != nil {
		appLog.Error("server setup failed", "err", err)
		return 1
	}

	if cfg.Invalidation.Enabled {
		consumer := kafkaconsumer.New(
			kafkaconsumer.NewConfig(cfg.Invalidation.Brokers, cfg.Invalidation.Topic, cfg.Invalidation.GroupID),
			appLog, contentClient)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				appLog.Error("invalidation consumer exited", "err", err)
			}
		}()
	}

	if err := srv.Run(ctx); err != nil {
		appLog.Error("server exited", "err", err)
		return 1
	}
	appLog.Info("shutdown complete")
	return 0
}
