package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/medcoding/backend/internal/adapters/cache"
	"github.com/zatekoja/medcoding/backend/internal/adapters/database"
	"github.com/zatekoja/medcoding/backend/internal/adapters/search"
	"github.com/zatekoja/medcoding/backend/internal/application/services"
	"github.com/zatekoja/medcoding/backend/internal/domain/repositories"
	"github.com/zatekoja/medcoding/backend/internal/evaluation"
	"github.com/zatekoja/medcoding/backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/medcoding/backend/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/medcoding/backend/internal/infrastructure/observability"
	"github.com/zatekoja/medcoding/backend/pkg/config"
	"github.com/zatekoja/medcoding/backend/pkg/secrets"
)

func main() {
	var (
		goldenPath string
		gate       evaluation.Gate
	)
	flag.StringVar(&goldenPath, "golden", "config/golden_queries.json", "golden query set")
	flag.Float64Var(&gate.MinRecallAt10, "min-recall", 0, "fail when average recall@10 is lower")
	flag.Float64Var(&gate.MinMRRAt10, "min-mrr", 0, "fail when average mrr@10 is lower")
	flag.IntVar(&gate.MaxFailed, "max-failed", 0, "number of failing queries tolerated")
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
	observability.InitLogger("medical-coding-evaluate", cfg.Env)
	if vault.Enabled {
		log.Info().Str("path", vault.Path).Int("loaded", vault.Loaded).Int("skipped", vault.Skipped).Msg("Secrets loaded from Vault")
	}

	queries, err := evaluation.LoadGoldenQueries(goldenPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load golden queries")
	}
	if err := evaluation.ValidateGoldenQueries(queries); err != nil {
		log.Fatal().Err(err).Msg("Invalid golden queries")
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pgClient.Close()

	codes := database.NewMedicalCodeAdapter(pgClient)
	searchService := services.NewCodingSearchService(
		codes,
		fullTextIndex(cfg, pgClient, codes),
		cache.NewTieredCache(cache.NewMemoryCache(), nil, cfg.Search.CacheTTL, nil),
		nil,
		nil,
	)

	summary, err := evaluation.NewRunner(searchService).Run(context.Background(), queries)
	if err != nil {
		log.Fatal().Err(err).Msg("Evaluation failed")
	}

	out, _ := json.MarshalIndent(summary, "", "  ")
	fmt.Println(string(out))

	if err := gate.Check(summary); err != nil {
		log.Error().Err(err).Msg("Search quality below the gate")
		os.Exit(2)
	}
}

// fullTextIndex mirrors the API selection so both measure the same path
func fullTextIndex(cfg *config.Config, pgClient *postgres.Client, codes repositories.MedicalCodeRepository) repositories.CodeFullTextIndex {
	if cfg.Search.FTSBackend == config.FTSBackendTypesense {
		client, err := typesense.NewClient(&cfg.Typesense)
		if err == nil {
			return search.NewTypesenseCodeIndex(client, codes)
		}
		log.Warn().Err(err).Msg("Typesense unavailable, evaluating the Postgres full-text index")
	}

	index, err := database.NewPostgresCodeIndex(pgClient, cfg.Search.FTSLanguage)
	if err != nil {
		log.Warn().Err(err).Msg("Full-text search disabled, FTS queries use the fallback")
		return nil
	}
	return index
}
