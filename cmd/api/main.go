package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"example.com/gymfinance/internal/analytics"
	"example.com/gymfinance/internal/api"
	"example.com/gymfinance/internal/auth"
	"example.com/gymfinance/internal/cache"
	"example.com/gymfinance/internal/config"
	"example.com/gymfinance/internal/observability"
	"example.com/gymfinance/internal/persistence/memory"
	persistence "example.com/gymfinance/internal/persistence/postgres"
	httptransport "example.com/gymfinance/internal/transport/http"
)

func main() {
	cfg := config.Load()

	logger, err := observability.NewLogger(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, closeStores := openStores(ctx, cfg, logger)
	defer closeStores()

	opts := []analytics.Option{analytics.WithLogger(logger.Named("analytics"))}
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedisCacheFromURL(cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			logger.Fatal("failed to configure redis", zap.Error(err))
		}
		defer func() { _ = rc.Close() }()
		if err := rc.Ping(ctx); err != nil {
			logger.Warn("redis unreachable, results will be recomputed until it recovers", zap.Error(err))
		}
		opts = append(opts, analytics.WithCache(rc))
	}

	service := analytics.NewService(stores, analytics.Config{
		LookbackMonths: cfg.LookbackMonths,
		ForecastMonths: cfg.ForecastMonths,
		FetchTimeout:   cfg.FetchTimeout,
		DefaultCompare: cfg.CompareMode(),
	}, opts...)

	handler := api.NewHandler(service, logger.Named("api"))
	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
	router := api.NewRouter(api.RouterConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		RequestTimeout: cfg.FetchTimeout + cfg.FetchTimeout/2,
		RateLimit:      cfg.RateLimit,
	}, authMiddleware, handler, logger.Named("http"))

	server := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.HTTPAddress, cfg.FetchTimeout), router)
	if err := httptransport.Serve(ctx, server, cfg.ShutdownTimeout, logger); err != nil {
		logger.Error("server error", zap.Error(err))
	}
	logger.Info("gymfinance api stopped")
}

func openStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (analytics.Stores, func()) {
	if cfg.PostgresURL == "" {
		logger.Warn("POSTGRES_URL not set, serving from an empty in-memory ledger")
		store := memory.NewStore()
		return analytics.Stores{Ledger: store, Plans: store, Staff: store, Members: store}, func() {}
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	repo := persistence.NewRepository(pool)
	return analytics.Stores{Ledger: repo, Plans: repo, Staff: repo, Members: repo}, pool.Close
}
