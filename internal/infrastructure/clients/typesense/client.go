package typesense

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
	"github.com/zatekoja/medcoding/backend/pkg/config"
	"github.com/zatekoja/medcoding/backend/pkg/retry"
)

const (
	MedicalCodesCollection = "medical_codes"
)

// Client represents a Typesense client
type Client struct {
	client *typesense.Client
}

// NewClient creates a new Typesense client with exponential backoff retry
func NewClient(cfg *config.TypesenseConfig) (*Client, error) {
	client := typesense.NewClient(
		typesense.WithServer(cfg.URL),
		typesense.WithAPIKey(cfg.APIKey),
		typesense.WithConnectionTimeout(5*time.Second),
	)

	err := retry.DoWithLog(
		context.Background(),
		retry.DefaultConfig(),
		"Typesense",
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, err := client.Health(ctx, 2*time.Second)
			return err
		},
		func(attempt int, err error, nextDelay time.Duration) {
			log.Warn().Err(err).Int("attempt", attempt).Dur("next_delay", nextDelay).Msg("Typesense connection attempt failed")
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Typesense after retries: %w", err)
	}

	log.Info().Str("url", cfg.URL).Msg("Successfully connected to Typesense")
	return &Client{client: client}, nil
}

// Client returns the underlying Typesense client
func (c *Client) Client() *typesense.Client {
	return c.client
}

// MedicalCodesSchema is the collection schema mirrored from medical_codes
func MedicalCodesSchema() *api.CollectionSchema {
	return &api.CollectionSchema{
		Name: MedicalCodesCollection,
		Fields: []api.Field{
			{Name: "id", Type: "string"},
			{Name: "system_id", Type: "string", Facet: pointer.True()},
			{Name: "system_kind", Type: "string", Facet: pointer.True()},
			{Name: "code", Type: "string", Sort: pointer.True()},
			{Name: "display", Type: "string"},
			{Name: "searchable_text", Type: "string"},
			{Name: "chapter", Type: "string", Facet: pointer.True()},
			// "U" marks codes without a sex restriction so they stay filterable
			{Name: "sex_restriction", Type: "string", Facet: pointer.True()},
			{Name: "is_category", Type: "bool", Facet: pointer.True()},
			{Name: "active", Type: "bool", Facet: pointer.True()},
		},
	}
}

// InitSchema ensures the medical_codes collection exists
func (c *Client) InitSchema(ctx context.Context) error {
	collections, err := c.client.Collections().Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve collections: %w", err)
	}

	for _, col := range collections {
		if col.Name == MedicalCodesCollection {
			log.Debug().Msg("Typesense collection 'medical_codes' already exists")
			return nil
		}
	}

	if _, err := c.client.Collections().Create(ctx, MedicalCodesSchema()); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	log.Info().Msg("Created Typesense collection 'medical_codes'")
	return nil
}
