package repositories

import (
	"context"

	"github.com/zatekoja/medcoding/backend/internal/domain/entities"
)

// CodeSystemRepository defines the interface for code system data operations
type CodeSystemRepository interface {
	// Upsert creates the system or updates name/description/active of the
	// existing (kind, version) row
	Upsert(ctx context.Context, input entities.CodeSystemInput) (*entities.CodeSystem, error)

	// GetByKindAndVersion retrieves a code system; a nil version selects the unversioned row
	GetByKindAndVersion(ctx context.Context, kind string, version *string) (*entities.CodeSystem, error)

	// GetByID retrieves a code system by ID
	GetByID(ctx context.Context, id string) (*entities.CodeSystem, error)

	// List retrieves all code systems ordered by kind and version
	List(ctx context.Context) ([]*entities.CodeSystem, error)
}
