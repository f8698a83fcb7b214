package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/zatekoja/medcoding/backend/internal/adapters/cache"
	"github.com/zatekoja/medcoding/backend/internal/adapters/database"
	"github.com/zatekoja/medcoding/backend/internal/adapters/events"
	"github.com/zatekoja/medcoding/backend/internal/adapters/search"
	"github.com/zatekoja/medcoding/backend/internal/api/handlers"
	"github.com/zatekoja/medcoding/backend/internal/api/routes"
	"github.com/zatekoja/medcoding/backend/internal/application/services"
	"github.com/zatekoja/medcoding/backend/internal/domain/providers"
	"github.com/zatekoja/medcoding/backend/internal/domain/repositories"
	"github.com/zatekoja/medcoding/backend/internal/infrastructure/clients/openai"
	"github.com/zatekoja/medcoding/backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/medcoding/backend/internal/infrastructure/clients/redis"
	"github.com/zatekoja/medcoding/backend/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/medcoding/backend/internal/infrastructure/observability"
	"github.com/zatekoja/medcoding/backend/pkg/config"
	"github.com/zatekoja/medcoding/backend/pkg/secrets"
)

func main() {
	vault, err := secrets.ApplyVaultSecrets(context.Background(), secrets.LoadVaultConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load secrets from Vault: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env)
	if vault.Enabled {
		log.Info().Str("path", vault.Path).Int("loaded", vault.Loaded).Int("skipped", vault.Skipped).Msg("Secrets loaded from Vault")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			log.Info().Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	// Redis is optional: without it the search cache is process-local and
	// catalog events are not shared between instances.
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, continuing with the in-process cache only")
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	instanceID := cfg.Server.InstanceID
	if instanceID == "" {
		instanceID = uuid.NewString()
	}

	codeSystemAdapter := database.NewCodeSystemAdapter(pgClient)
	medicalCodeAdapter := database.NewMedicalCodeAdapter(pgClient)
	diagnosisAdapter := database.NewDiagnosisAdapter(pgClient)
	reportingAdapter := database.NewReportingAdapter(pgClient)

	var remote providers.CacheProvider
	var eventBus providers.EventBus
	if redisClient != nil {
		remote = cache.NewRedisAdapter(redisClient)
		eventBus = events.NewRedisEventBus(redisClient)
	}
	searchCache := cache.NewTieredCache(cache.NewMemoryCache(), remote, cfg.Search.CacheTTL, metrics)

	fullText, external := buildFullTextIndex(cfg, pgClient, medicalCodeAdapter)

	var analyzer providers.SymptomAnalysisProvider
	if cfg.OpenAI.APIKey == "" {
		log.Info().Msg("OPENAI_API_KEY is not set; suggestions run without symptom analysis")
	} else {
		client, err := openai.NewClient(&cfg.OpenAI)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize OpenAI client")
		} else {
			analyzer = client
		}
	}

	searchService := services.NewCodingSearchService(medicalCodeAdapter, fullText, searchCache, analyzer, metrics)
	searchService.SetSymptomAnalysisTimeout(cfg.OpenAI.Timeout)

	catalogService := services.NewCatalogImportService(codeSystemAdapter, medicalCodeAdapter, searchCache, eventBus, instanceID)
	if external != nil {
		catalogService.SetExternalIndex(external)
	}
	diagnosisService := services.NewDiagnosisService(diagnosisAdapter, medicalCodeAdapter)
	reportingService := services.NewReportingService(medicalCodeAdapter, reportingAdapter)

	var invalidation *services.CacheInvalidationService
	if eventBus != nil {
		invalidation = services.NewCacheInvalidationService(searchCache, eventBus, instanceID)
		if err := invalidation.Start(); err != nil {
			log.Warn().Err(err).Msg("Failed to start cache invalidation service")
			invalidation = nil
		}
	}

	router := routes.NewRouter(
		handlers.NewCodingHandler(searchService, reportingService),
		handlers.NewCatalogHandler(catalogService),
		handlers.NewDiagnosisHandler(diagnosisService),
		medicalCodeAdapter,
		cfg.Server.AllowedOrigins,
		metrics,
	)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router.SetupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Str("instance_id", instanceID).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Server shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during server shutdown")
	}

	if invalidation != nil {
		invalidation.Stop()
	}
	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing event bus")
		}
	}

	log.Info().Msg("Server stopped")
}

// buildFullTextIndex selects the full-text backend. With Typesense the index
// also receives imported codes; an unreachable Typesense falls back to the
// Postgres index.
func buildFullTextIndex(cfg *config.Config, pgClient *postgres.Client, codes repositories.MedicalCodeRepository) (repositories.CodeFullTextIndex, repositories.CodeFullTextIndex) {
	if cfg.Search.FTSBackend == config.FTSBackendTypesense {
		client, err := typesense.NewClient(&cfg.Typesense)
		if err == nil {
			index := search.NewTypesenseCodeIndex(client, codes)
			return index, index
		}
		log.Warn().Err(err).Msg("Typesense unavailable, using the Postgres full-text index")
	}

	index, err := database.NewPostgresCodeIndex(pgClient, cfg.Search.FTSLanguage)
	if err != nil {
		log.Warn().Err(err).Msg("Full-text search disabled")
		return nil, nil
	}
	return index, nil
}
