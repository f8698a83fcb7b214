package repositories

import (
	"context"

	"github.com/zatekoja/medcoding/backend/internal/domain/entities"
)

// DiagnosisRepository defines the interface for diagnosis data operations
type DiagnosisRepository interface {
	// WithinTx runs fn in a single transaction. Any error returned by fn
	// rolls the transaction back.
	WithinTx(ctx context.Context, fn func(tx DiagnosisTx) error) error

	// GetByID retrieves a diagnosis with its ordered secondary codes
	GetByID(ctx context.Context, id string) (*entities.Diagnosis, error)

	// ListRevisions returns revisions newest first
	ListRevisions(ctx context.Context, diagnosisID string, limit int) ([]*entities.DiagnosisRevision, error)
}

// DiagnosisTx holds the transactional writes of the diagnosis engine
type DiagnosisTx interface {
	// Create inserts the diagnosis row
	Create(ctx context.Context, diagnosis *entities.Diagnosis) error

	// GetForUpdate reads and locks a diagnosis with its secondary codes
	GetForUpdate(ctx context.Context, id string) (*entities.Diagnosis, error)

	// Update writes the scalar fields of a diagnosis
	Update(ctx context.Context, diagnosis *entities.Diagnosis) error

	// ReplaceSecondaryCodes deletes all links of the diagnosis and recreates them in order
	ReplaceSecondaryCodes(ctx context.Context, diagnosisID string, codeIDs []string) ([]entities.DiagnosisSecondaryCode, error)

	// AddRevision appends a revision
	AddRevision(ctx context.Context, revision *entities.DiagnosisRevision) error
}
