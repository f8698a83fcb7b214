package repositories

import (
	"context"

	"github.com/zatekoja/medcoding/backend/internal/domain/entities"
)

// MedicalCodeRepository defines the interface for medical code data operations
type MedicalCodeRepository interface {
	// CodeMapForSystem returns code -> id for every code in the system
	CodeMapForSystem(ctx context.Context, systemID string) (map[string]string, error)

	// Upsert inserts the code or updates the existing (system_id, code) row and returns its id
	Upsert(ctx context.Context, code *entities.MedicalCode) (string, error)

	// ListBySystem retrieves every code of a system
	ListBySystem(ctx context.Context, systemID string) ([]*entities.MedicalCode, error)

	// UpdateSearchableTexts persists id -> searchable text in a single transaction
	UpdateSearchableTexts(ctx context.Context, texts map[string]string) (int, error)

	// GetByID retrieves a code by ID
	GetByID(ctx context.Context, id string) (*entities.MedicalCode, error)

	// GetByIDs retrieves multiple codes by their IDs
	GetByIDs(ctx context.Context, ids []string) ([]*entities.MedicalCode, error)

	// GetByCode retrieves a code by its code string, optionally within one system kind
	GetByCode(ctx context.Context, code, systemKind string) (*entities.MedicalCode, error)

	// SubstringSearch is the fallback search: case-insensitive contains on
	// code, display, short description and searchable text
	SubstringSearch(ctx context.Context, query string, filter entities.CodeFilter, limit int) ([]*entities.MedicalCode, error)

	// SearchByTokens returns active codes matching any token on code, display or searchable text
	SearchByTokens(ctx context.Context, tokens []string, systemKind string, limit int) ([]*entities.MedicalCode, error)

	// ListChapters returns distinct chapters with code counts
	ListChapters(ctx context.Context, systemKind string) ([]entities.ChapterSummary, error)

	// ListByChapter returns active codes of a chapter ordered by code
	ListByChapter(ctx context.Context, chapter, systemKind string, limit int) ([]*entities.MedicalCode, error)

	// CountCodes counts the codes of one statistics bucket
	CountCodes(ctx context.Context, kind entities.CodeCountKind, systemKind string) (int, error)
}

// CodeFullTextIndex is a full-text search backend over the code catalog
type CodeFullTextIndex interface {
	// EnsureIndex provisions the index. Must be idempotent.
	EnsureIndex(ctx context.Context) error

	// Search runs a full-text query with the same filters as the substring path, ordered by code
	Search(ctx context.Context, query string, filter entities.CodeFilter, limit int) ([]*entities.MedicalCode, error)

	// IndexCodes pushes codes into the index. Backends that index in place may no-op.
	IndexCodes(ctx context.Context, codes []*entities.MedicalCode) error
}
