package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/zatekoja/medcoding/backend/internal/adapters/cache"
	"github.com/zatekoja/medcoding/backend/internal/adapters/database"
	"github.com/zatekoja/medcoding/backend/internal/adapters/events"
	"github.com/zatekoja/medcoding/backend/internal/adapters/search"
	"github.com/zatekoja/medcoding/backend/internal/application/services"
	"github.com/zatekoja/medcoding/backend/internal/domain/entities"
	"github.com/zatekoja/medcoding/backend/internal/domain/providers"
	"github.com/zatekoja/medcoding/backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/medcoding/backend/internal/infrastructure/clients/redis"
	"github.com/zatekoja/medcoding/backend/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/medcoding/backend/internal/infrastructure/observability"
	"github.com/zatekoja/medcoding/backend/pkg/config"
	"github.com/zatekoja/medcoding/backend/pkg/secrets"
)

type options struct {
	migrate       bool
	file          string
	system        string
	version       string
	name          string
	rebuild       bool
	ensureFTS     bool
	typesenseSync bool
	interval      time.Duration
}

func main() {
	var opts options
	var intervalFlag string
	flag.BoolVar(&opts.migrate, "migrate", false, "apply pending schema migrations first")
	flag.StringVar(&opts.file, "file", "", "JSON file with the codes to import")
	flag.StringVar(&opts.system, "system", "ICD10", "code system kind")
	flag.StringVar(&opts.version, "version", "", "code system version (empty for unversioned)")
	flag.StringVar(&opts.name, "name", "", "code system name, upserted before importing")
	flag.BoolVar(&opts.rebuild, "rebuild", false, "rebuild the searchable text of the system")
	flag.BoolVar(&opts.ensureFTS, "ensure-fts", false, "create the Postgres full-text index")
	flag.BoolVar(&opts.typesenseSync, "typesense-sync", false, "push every code of the system to Typesense")
	flag.StringVar(&intervalFlag, "interval", "", "repeat the Typesense sync at this interval (e.g. 6h)")
	flag.Parse()

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
	observability.InitLogger("medical-coding-indexer", cfg.Env)
	if vault.Enabled {
		log.Info().Str("path", vault.Path).Int("loaded", vault.Loaded).Int("skipped", vault.Skipped).Msg("Secrets loaded from Vault")
	}

	if v := strings.TrimSpace(intervalFlag); v != "" {
		opts.interval, err = time.ParseDuration(v)
		if err != nil || opts.interval <= 0 {
			log.Fatal().Str("interval", v).Msg("Interval must be a positive duration")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts); err != nil {
		log.Fatal().Err(err).Msg("Indexer failed")
	}
}

func run(ctx context.Context, cfg *config.Config, opts options) error {
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return err
	}
	defer pgClient.Close()

	if opts.migrate {
		applied, err := postgres.NewMigrator(pgClient).Up(ctx)
		if err != nil {
			return err
		}
		log.Info().Int("applied", applied).Msg("Schema up to date")
	}

	systems := database.NewCodeSystemAdapter(pgClient)
	codes := database.NewMedicalCodeAdapter(pgClient)

	// Catalog events reach running API instances only through Redis.
	var remote providers.CacheProvider
	var eventBus providers.EventBus
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, API caches will expire on their own")
		} else {
			defer redisClient.Close()
			remote = cache.NewRedisAdapter(redisClient)
			eventBus = events.NewRedisEventBus(redisClient)
			defer eventBus.Close()
		}
	}

	searchCache := cache.NewTieredCache(cache.NewMemoryCache(), remote, cfg.Search.CacheTTL, nil)
	catalog := services.NewCatalogImportService(systems, codes, searchCache, eventBus, "indexer-"+uuid.NewString())

	var version *string
	if opts.version != "" {
		version = &opts.version
	}

	if opts.ensureFTS {
		index, err := database.NewPostgresCodeIndex(pgClient, cfg.Search.FTSLanguage)
		if err != nil {
			return err
		}
		if err := index.EnsureIndex(ctx); err != nil {
			return err
		}
		log.Info().Str("language", cfg.Search.FTSLanguage).Msg("Full-text index ensured")
	}

	if opts.name != "" {
		system, err := catalog.UpsertCodeSystem(ctx, entities.CodeSystemInput{Kind: opts.system, Name: opts.name, Version: version})
		if err != nil {
			return err
		}
		log.Info().Str("system_id", system.ID).Str("kind", system.Kind).Msg("Code system upserted")
	}

	if opts.file != "" {
		f, err := os.Open(opts.file)
		if err != nil {
			return err
		}
		imports, err := readCodes(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("read %s: %w", opts.file, err)
		}

		result, err := catalog.BulkImportCodes(ctx, entities.BulkImportRequest{
			SystemKind:        opts.system,
			SystemVersion:     version,
			Codes:             imports,
			RebuildSearchText: opts.rebuild,
		})
		if err != nil {
			return err
		}
		log.Info().Int("imported", result.Imported).Int("rebuilt", result.Rebuilt).Msg("Import complete")
	} else if opts.rebuild {
		system, err := systems.GetByKindAndVersion(ctx, strings.ToUpper(opts.system), version)
		if err != nil {
			return err
		}
		n, err := catalog.RebuildSearchableText(ctx, system.ID)
		if err != nil {
			return err
		}
		log.Info().Int("rebuilt", n).Msg("Searchable text rebuilt")
	}

	if !opts.typesenseSync {
		return nil
	}

	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		return err
	}
	catalog.SetExternalIndex(search.NewTypesenseCodeIndex(tsClient, codes))

	for {
		system, err := systems.GetByKindAndVersion(ctx, strings.ToUpper(opts.system), version)
		if err != nil {
			return err
		}
		n, err := catalog.SyncExternalIndex(ctx, system.ID)
		if err != nil {
			log.Error().Err(err).Msg("Typesense sync failed")
		} else {
			log.Info().Int("codes", n).Msg("Typesense sync complete")
		}

		if opts.interval <= 0 {
			return err
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("Indexer shutting down")
			return nil
		case <-time.After(opts.interval):
		}
	}
}

// readCodes accepts either a JSON array of codes or an object holding a
// "codes" array
func readCodes(r io.Reader) ([]entities.CodeImport, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, errors.New("empty input")
	}

	if strings.HasPrefix(trimmed, "[") {
		var codes []entities.CodeImport
		if err := json.Unmarshal(data, &codes); err != nil {
			return nil, err
		}
		return codes, nil
	}

	var wrapped struct {
		Codes []entities.CodeImport `json:"codes"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, err
	}
	if wrapped.Codes == nil {
		return nil, errors.New(`missing "codes" array`)
	}
	return wrapped.Codes, nil
}
