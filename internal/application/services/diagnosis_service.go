package services

import (
	"context"
	"strings"
	"time"

	"github.com/zatekoja/medcoding/backend/internal/domain/entities"
	"github.com/zatekoja/medcoding/backend/internal/domain/repositories"
	"github.com/zatekoja/medcoding/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/medcoding/backend/pkg/errors"
)

// DiagnosisService records diagnoses and keeps their revision history.
// Every write appends exactly one revision in the same transaction.
type DiagnosisService struct {
	diagnoses repositories.DiagnosisRepository
	codes     repositories.MedicalCodeRepository
	now       func() time.Time
}

// NewDiagnosisService creates a new diagnosis service
func NewDiagnosisService(diagnoses repositories.DiagnosisRepository, codes repositories.MedicalCodeRepository) *DiagnosisService {
	return &DiagnosisService{
		diagnoses: diagnoses,
		codes:     codes,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RecordDiagnosis stores a new diagnosis with its secondary codes and the
// creation revision
func (s *DiagnosisService) RecordDiagnosis(ctx context.Context, input entities.RecordDiagnosisInput) (*entities.Diagnosis, error) {
	input.PatientID = strings.TrimSpace(input.PatientID)
	input.PrimaryCodeID = strings.TrimSpace(input.PrimaryCodeID)
	if input.PatientID == "" {
		return nil, apperrors.NewValidationError("patient_id is required")
	}
	if input.PrimaryCodeID == "" {
		return nil, apperrors.NewValidationError("primary_code_id is required")
	}
	if _, err := s.codes.GetByID(ctx, input.PrimaryCodeID); err != nil {
		return nil, err
	}

	certainty := input.Certainty
	if certainty == "" {
		certainty = entities.DiagnosisCertaintyConfirmed
	}
	reason := input.Reason
	if reason == "" {
		reason = entities.RevisionReasonCreate
	}

	now := s.now()
	diagnosis := &entities.Diagnosis{
		PatientID:      input.PatientID,
		ConsultationID: input.ConsultationID,
		PrimaryCodeID:  input.PrimaryCodeID,
		Notes:          input.Notes,
		OnsetDate:      input.OnsetDate,
		Status:         entities.DiagnosisStatusActive,
		Certainty:      certainty,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := s.diagnoses.WithinTx(ctx, func(tx repositories.DiagnosisTx) error {
		if err := tx.Create(ctx, diagnosis); err != nil {
			return err
		}
		links, err := tx.ReplaceSecondaryCodes(ctx, diagnosis.ID, input.SecondaryCodeIDs)
		if err != nil {
			return err
		}
		diagnosis.SecondaryCodes = links

		return tx.AddRevision(ctx, &entities.DiagnosisRevision{
			DiagnosisID:     diagnosis.ID,
			Previous:        nil,
			Next:            diagnosis.Snapshot(),
			ChangedByUserID: input.ChangedByUserID,
			Reason:          reason,
			CreatedAt:       now,
		})
	})
	if err != nil {
		return nil, transactionFailure("failed to record diagnosis", err)
	}

	observability.LoggerFromContext(ctx).Info().
		Str("diagnosis_id", diagnosis.ID).
		Str("primary_code_id", diagnosis.PrimaryCodeID).
		Msg("diagnosis recorded")
	return diagnosis, nil
}

// UpdateDiagnosis applies the provided fields to a locked pre-image and
// appends a revision holding both images
func (s *DiagnosisService) UpdateDiagnosis(ctx context.Context, id string, input entities.UpdateDiagnosisInput) (*entities.Diagnosis, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperrors.NewValidationError("diagnosis id is required")
	}

	reason := input.Reason
	if reason == "" {
		reason = entities.RevisionReasonUpdate
	}

	var updated *entities.Diagnosis
	err := s.diagnoses.WithinTx(ctx, func(tx repositories.DiagnosisTx) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		previous := current.Snapshot()

		if input.Status != nil {
			current.Status = *input.Status
		}
		if input.ResolvedDate != nil {
			current.ResolvedDate = input.ResolvedDate
		}
		if input.Notes != nil {
			current.Notes = *input.Notes
		}
		if input.Certainty != nil {
			current.Certainty = *input.Certainty
		}
		current.UpdatedAt = s.now()

		if err := tx.Update(ctx, current); err != nil {
			return err
		}
		if input.SecondaryCodeIDs != nil {
			links, err := tx.ReplaceSecondaryCodes(ctx, current.ID, input.SecondaryCodeIDs)
			if err != nil {
				return err
			}
			current.SecondaryCodes = links
		}

		updated = current
		return tx.AddRevision(ctx, &entities.DiagnosisRevision{
			DiagnosisID:     current.ID,
			Previous:        &previous,
			Next:            current.Snapshot(),
			ChangedByUserID: input.ChangedByUserID,
			Reason:          reason,
			CreatedAt:       current.UpdatedAt,
		})
	})
	if err != nil {
		return nil, transactionFailure("failed to update diagnosis", err)
	}
	return updated, nil
}

// GetDiagnosis returns a diagnosis with its ordered secondary codes
func (s *DiagnosisService) GetDiagnosis(ctx context.Context, id string) (*entities.Diagnosis, error) {
	return s.diagnoses.GetByID(ctx, strings.TrimSpace(id))
}

// ListDiagnosisRevisions returns the newest revisions first
func (s *DiagnosisService) ListDiagnosisRevisions(ctx context.Context, diagnosisID string) ([]*entities.DiagnosisRevision, error) {
	return s.diagnoses.ListRevisions(ctx, strings.TrimSpace(diagnosisID), entities.MaxRevisionsListed)
}

// transactionFailure keeps caller-visible errors and wraps everything else
// as a TRANSACTION error
func transactionFailure(message string, err error) error {
	switch apperrors.TypeOf(err) {
	case apperrors.ErrorTypeNotFound, apperrors.ErrorTypeValidation, apperrors.ErrorTypeTransaction:
		return err
	}
	return apperrors.NewTransactionError(message, err)
}
