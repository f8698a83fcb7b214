package providers

import (
	"context"

	"github.com/zatekoja/medcoding/backend/internal/domain/entities"
)

// SymptomAnalysisProvider is an optional AI capability that proposes
// possible diagnoses for a set of symptoms
type SymptomAnalysisProvider interface {
	AnalyzeSymptoms(ctx context.Context, req entities.SymptomAnalysisRequest) (*entities.SymptomAnalysis, error)
}
