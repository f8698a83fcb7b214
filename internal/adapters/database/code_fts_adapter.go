package database

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"
	"github.com/zatekoja/medcoding/backend/internal/domain/entities"
	"github.com/zatekoja/medcoding/backend/internal/domain/repositories"
	"github.com/zatekoja/medcoding/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/medcoding/backend/pkg/errors"
)

// text search configurations accepted for the GIN index
var ftsLanguages = map[string]bool{
	"simple":     true,
	"portuguese": true,
	"english":    true,
	"spanish":    true,
}

// PostgresCodeIndex implements CodeFullTextIndex with to_tsvector over a GIN index
type PostgresCodeIndex struct {
	client   *postgres.Client
	db       *goqu.Database
	language string
}

// NewPostgresCodeIndex creates a full-text index over medical_codes.searchable_text
func NewPostgresCodeIndex(client *postgres.Client, language string) (repositories.CodeFullTextIndex, error) {
	if !ftsLanguages[language] {
		return nil, fmt.Errorf("unsupported text search configuration %q", language)
	}
	return &PostgresCodeIndex{
		client:   client,
		db:       goqu.New("postgres", client.DB()),
		language: language,
	}, nil
}

// IndexName returns the name of the GIN index for the configured language
func (p *PostgresCodeIndex) IndexName() string {
	return "idx_medical_codes_fts_" + p.language
}

// EnsureIndex creates the GIN index if it does not exist
func (p *PostgresCodeIndex) EnsureIndex(ctx context.Context) error {
	// DDL cannot be parameterized; the language is allow-listed and quoted
	ddl := fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s ON medical_codes USING GIN (to_tsvector(%s::regconfig, coalesce(searchable_text, '')))",
		pq.QuoteIdentifier(p.IndexName()),
		pq.QuoteLiteral(p.language),
	)
	if _, err := p.client.DB().ExecContext(ctx, ddl); err != nil {
		return apperrors.NewInternalError("failed to ensure full-text index", err)
	}
	return nil
}

// Search runs plainto_tsquery against the searchable text with the shared filters
func (p *PostgresCodeIndex) Search(ctx context.Context, query string, filter entities.CodeFilter, limit int) ([]*entities.MedicalCode, error) {
	match := goqu.L(
		"to_tsvector(?::regconfig, coalesce(mc.searchable_text, '')) @@ plainto_tsquery(?::regconfig, ?)",
		p.language, p.language, query,
	)

	sqlText, args, err := codesFrom(p.db).
		Where(codeFilterExpressions(filter)...).
		Where(match).
		Order(codeOrder()...).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build full-text query", err)
	}
	return queryMedicalCodes(ctx, p.client.DB(), sqlText, args, "full-text search failed")
}

// IndexCodes is a no-op: the index is maintained by Postgres on write
func (p *PostgresCodeIndex) IndexCodes(ctx context.Context, codes []*entities.MedicalCode) error {
	return nil
}
