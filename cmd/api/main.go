package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"gateway/internal/adapter/memory"
	"gateway/internal/adapter/repo"
	"gateway/internal/domain"
	"gateway/internal/http/handlers"
	"gateway/internal/http/httpapi"
	"gateway/internal/infra"
	"gateway/internal/infra/geoip"
	"gateway/internal/middleware"
	"gateway/internal/operations"
	"gateway/internal/providers/social"
	"gateway/internal/providers/veo"
	"gateway/internal/storage"
)

type stores struct {
	ops      domain.OperationRepository
	users    domain.UserRepository
	webhooks domain.WebhookRepository
	pinger   handlers.Pinger
	close    func()
}

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)
	metrics := infra.NewMetrics()

	ctx := context.Background()
	st, err := openStores(ctx, cfg, logger, metrics)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to open store")
	}
	defer st.close()

	uploader, staticDir, closeUploader, err := openUploader(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.StorageBackend).Msg("failed to init image storage")
	}
	defer closeUploader()

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	defer resolver.Close()

	upstreamClient := &http.Client{Timeout: cfg.UpstreamTimeout}
	generation := veo.NewClient(veo.Options{BaseURL: cfg.GenerationBaseURL, HTTPClient: upstreamClient})
	publishing := social.NewClient(social.Options{BaseURL: cfg.PublishingBaseURL, HTTPClient: upstreamClient})

	guard := operations.NewGuard(st.users)
	app := &handlers.App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics,
		Initiator: operations.NewInitiator(generation, st.ops, uploader, operations.InitiatorConfig{
			PublicBaseURL: cfg.PublicBaseURL,
			Policy:        cfg.Transitions,
		}, metrics, logger.With().Str("component", "initiator").Logger()),
		Reconciler: operations.NewReconciler(st.ops, st.webhooks, st.users, guard, generation, cfg.Transitions, metrics,
			logger.With().Str("component", "reconciler").Logger()),
		Guard:      guard,
		Operations: st.ops,
		Users:      st.users,
		Webhooks:   st.webhooks,
		Publisher:  publishing,
		Store:      st.pinger,
	}

	router := httpapi.NewRouter(app, httpapi.Options{
		JWT:             middleware.JWTConfig{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer, Audience: cfg.JWTAudience},
		WebhookSecret:   cfg.WebhookSecret,
		CORSOrigins:     cfg.CORSAllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		DefaultLocale:   cfg.DefaultLocale,
		CountryLookup:   geoip.Lookup(resolver),
		StaticDir:       staticDir,
	})

	server := infra.NewHTTPServer(cfg, router)

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("addr", server.Addr()).
		Str("store", cfg.StoreDriver).
		Str("transitions", string(cfg.Transitions)).
		Msg("API listening")
	if err := server.Run(runCtx); err != nil {
		logger.Error().Err(err).Msg("http server failed")
		return
	}
	logger.Info().Msg("server stopped")
}

func openStores(ctx context.Context, cfg *infra.Config, logger zerolog.Logger, metrics *infra.Metrics) (*stores, error) {
	if cfg.StoreDriver == infra.StoreDriverMemory {
		logger.Warn().Msg("using in-memory store; data is lost on restart")
		return &stores{
			ops:      memory.NewOperationRepository(),
			users:    memory.NewUserRepository(),
			webhooks: memory.NewWebhookRepository(),
			close:    func() {},
		}, nil
	}

	pool, err := infra.NewDBPool(ctx, cfg, logger.With().Str("component", "db").Logger())
	if err != nil {
		return nil, err
	}
	runner := infra.NewSQLRunner(pool, logger.With().Str("component", "sql").Logger(), metrics)
	return &stores{
		ops:      repo.NewOperationRepository(runner),
		users:    repo.NewUserRepository(runner),
		webhooks: repo.NewWebhookRepository(runner),
		pinger:   runner,
		close:    pool.Close,
	}, nil
}

// openUploader returns the inline image backend and, for local storage, the
// directory the router serves under /static.
func openUploader(ctx context.Context, cfg *infra.Config) (storage.Uploader, string, func(), error) {
	switch cfg.StorageBackend {
	case infra.StorageBackendLocal:
		up, err := storage.NewLocalUploader(cfg.StoragePath, cfg.StorageBaseURL)
		if err != nil {
			return nil, "", func() {}, err
		}
		return up, cfg.StoragePath, func() {}, nil
	case infra.StorageBackendGCS:
		up, err := storage.NewGCSUploader(ctx, cfg.GCSBucket)
		if err != nil {
			return nil, "", func() {}, err
		}
		return up, "", func() { _ = up.Close() }, nil
	default:
		return nil, "", func() {}, nil
	}
}
