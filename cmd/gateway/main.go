package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/picahq/pica-gateway/internal/cache"
	"github.com/picahq/pica-gateway/internal/config"
	"github.com/picahq/pica-gateway/internal/dispatch"
	"github.com/picahq/pica-gateway/internal/entities"
	"github.com/picahq/pica-gateway/internal/events"
	"github.com/picahq/pica-gateway/internal/httpapi"
	"github.com/picahq/pica-gateway/internal/metrics"
	"github.com/picahq/pica-gateway/internal/oauth"
	"github.com/picahq/pica-gateway/internal/ratelimit"
	"github.com/picahq/pica-gateway/internal/secrets"
	"github.com/picahq/pica-gateway/internal/store"
	"github.com/picahq/pica-gateway/internal/template"
	"github.com/picahq/pica-gateway/internal/tracker"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.With().Str("service", "pica-gateway").Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.IsDev() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}

	ctx := context.Background()

	db, err := store.Open(ctx, cfg.MongoURL, cfg.MongoDB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to mongodb")
	}
	defer db.Close(context.Background())

	limiter, err := ratelimit.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer limiter.Close()

	secretsClient, err := newSecretsClient(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize secrets client")
	}

	var track tracker.Tracker = tracker.LoggerTracker{}
	if cfg.PosthogWriteKey != "" {
		track = tracker.NewPosthogTracker(cfg.PosthogWriteKey, cfg.PosthogEndpoint, cfg.HTTPClientTimeout)
	}

	catalog := cache.NewCatalog(cfg, store.NewCatalog(db))

	metricsPipeline := metrics.New(db.Database.Collection(store.CollMetrics), cfg.MetricSaveChannelSize, 1, cfg.MetricSystemID, track,
		cfg.MetricTrackBufferSize, cfg.MetricTrackIdleTimeout)
	eventsPipeline := events.New(db.Database.Collection(store.CollEvents), cfg.EventSaveBufferSize, cfg.EventFlushWorkers, cfg.EventSaveTimeout)

	pipelineCtx, cancelPipelines := context.WithCancel(context.Background())
	var pipelines sync.WaitGroup
	pipelines.Add(2)
	go func() {
		defer pipelines.Done()
		if err := metricsPipeline.Run(pipelineCtx); err != nil {
			log.Error().Err(err).Msg("metrics pipeline stopped")
		}
	}()
	go func() {
		defer pipelines.Done()
		if err := eventsPipeline.Run(pipelineCtx); err != nil {
			log.Error().Err(err).Msg("events pipeline stopped")
		}
	}()

	passthroughExtractor := dispatch.NewHTTPExtractor(cfg.HTTPClientTimeout, platformBaseURLResolver(cfg.ConnectionsURL),
		cfg.AuthHeader, cfg.ConnectionKeyHeader, cfg.PassthroughActionIdHeader, cfg.ShowAllEnvironmentsHeader)
	unifiedExtractor := dispatch.NewUnifiedExtractor(passthroughExtractor)
	dispatcher := dispatch.New(catalog, secretsClient, passthroughExtractor, unifiedExtractor, metricsPipeline, eventsPipeline, cfg.PassthroughActionIdHeader)

	settingsStore := store.NewCRUDStore[entities.Settings](db, store.CollSettings)
	eventAccessStore := store.NewCRUDStore[entities.EventAccess](db, store.CollEventAccess)
	connectionStore := store.NewCRUDStore[entities.Connection](db, store.CollConnections)

	oauthHandler := oauth.New(catalog, settingsStore, eventAccessStore, connectionStore, secretsClient,
		template.New(), cfg.OAuthURL, cfg.EventAccessPassword, cfg.EngineeringAccountID, cfg.HTTPClientTimeout)

	srv := &httpapi.Server{
		Config:     cfg,
		Catalog:    catalog,
		Limiter:    limiter,
		Dispatcher: dispatcher,
		OAuth:      oauthHandler,
		Metrics:    metricsPipeline,

		EventAccessStore:        eventAccessStore,
		ConnectionStore:         connectionStore,
		ConnectionDefStore:      store.NewCRUDStore[entities.ConnectionDefinition](db, store.CollConnectionDefinitions),
		ConnectionModelDefStore: store.NewCRUDStore[entities.ConnectionModelDefinition](db, store.CollConnectionModelDefinitions),
		ConnectionOAuthDefStore: store.NewCRUDStore[entities.ConnectionOAuthDefinition](db, store.CollConnectionOAuthDefinitions),
		SettingsStore:           settingsStore,
		EventStore:              store.NewCRUDStore[entities.Event](db, store.CollEvents),
		MetricStore:             store.NewCRUDStore[entities.MetricDocument](db, store.CollMetrics),
		TaskStore:               store.NewCRUDStore[entities.Task](db, store.CollTasks),
		KnowledgeStore:          store.NewCRUDStore[entities.Knowledge](db, store.CollKnowledge),
		SecretStore:             store.NewCRUDStore[entities.Secret](db, store.CollSecrets),
		SchemaStore:             store.NewCRUDStore[entities.ConnectionModelSchema](db, store.CollConnectionModelSchemas),
	}

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	cancelPipelines()
	pipelines.Wait()

	log.Info().Msg("server stopped")
}

func newSecretsClient(ctx context.Context, cfg *config.Config) (secrets.Client, error) {
	switch cfg.KmsProvider {
	case config.KmsGoogle:
		return secrets.NewGoogleKms(ctx, cfg.GoogleKmsProjectID, cfg.GoogleKmsLocation, cfg.GoogleKmsKeyRing, cfg.GoogleKmsKeyName)
	default:
		return secrets.NewIosKms(ctx, cfg.InfisicalSiteURL, cfg.InfisicalClientID, cfg.InfisicalClientSecret, cfg.InfisicalProjectID, cfg.InfisicalEnvironment)
	}
}

// platformBaseURLResolver builds a platform->base-URL lookup. Real
// deployments carry a per-platform table (seeded from
// connection-definitions); until that lookup is wired, an explicit
// PLATFORM_BASE_URL_<platform> env var takes priority and falling back to
// fallbackURL keeps every platform routable through one configured
// upstream service.
func platformBaseURLResolver(fallbackURL string) func(platform string) string {
	return func(platform string) string {
		if url := os.Getenv("PLATFORM_BASE_URL_" + platform); url != "" {
			return url
		}
		return fallbackURL
	}
}
