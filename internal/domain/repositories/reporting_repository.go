package repositories

import (
	"context"
	"time"

	"github.com/zatekoja/medcoding/backend/internal/domain/entities"
)

// ReportingRepository defines the aggregate queries over recorded diagnoses
type ReportingRepository interface {
	// TopCodes counts diagnoses per primary code created since the given time
	TopCodes(ctx context.Context, systemKind string, since time.Time, limit int) ([]entities.CodeUsage, error)

	// PatientTimeline lists a patient's diagnoses newest first
	PatientTimeline(ctx context.Context, patientID string, limit int) ([]entities.PatientCodeEntry, error)
}
