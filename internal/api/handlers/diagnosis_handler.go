package handlers

import (
	"context"
	"net/http"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/zatekoja/medcoding/backend/internal/api/loaders"
	"github.com/zatekoja/medcoding/backend/internal/domain/entities"
	"github.com/zatekoja/medcoding/backend/internal/infrastructure/observability"
)

// DiagnosisService defines the diagnosis operations used by the handler
type DiagnosisService interface {
	RecordDiagnosis(ctx context.Context, input entities.RecordDiagnosisInput) (*entities.Diagnosis, error)
	UpdateDiagnosis(ctx context.Context, id string, input entities.UpdateDiagnosisInput) (*entities.Diagnosis, error)
	GetDiagnosis(ctx context.Context, id string) (*entities.Diagnosis, error)
	ListDiagnosisRevisions(ctx context.Context, diagnosisID string) ([]*entities.DiagnosisRevision, error)
}

// DiagnosisHandler handles diagnosis recording and history
type DiagnosisHandler struct {
	service DiagnosisService
}

// NewDiagnosisHandler creates a new diagnosis handler
func NewDiagnosisHandler(service DiagnosisService) *DiagnosisHandler {
	return &DiagnosisHandler{service: service}
}

// diagnosisResponse embeds the diagnosis with its codes resolved
type diagnosisResponse struct {
	*entities.Diagnosis
	PrimaryCode          *entities.MedicalCode   `json:"primary_code,omitempty"`
	SecondaryCodeDetails []*entities.MedicalCode `json:"secondary_code_details,omitempty"`
}

// RecordDiagnosis handles POST /api/diagnoses
func (h *DiagnosisHandler) RecordDiagnosis(w http.ResponseWriter, r *http.Request) {
	var input entities.RecordDiagnosisInput
	if err := decodeJSON(r, &input); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	diagnosis, err := h.service.RecordDiagnosis(r.Context(), input)
	if err != nil {
		respondWithAppError(w, r, err, "failed to record diagnosis")
		return
	}
	respondWithJSON(w, http.StatusCreated, diagnosis)
}

// UpdateDiagnosis handles PATCH /api/diagnoses/{id}
func (h *DiagnosisHandler) UpdateDiagnosis(w http.ResponseWriter, r *http.Request) {
	var input entities.UpdateDiagnosisInput
	if err := decodeJSON(r, &input); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	diagnosis, err := h.service.UpdateDiagnosis(r.Context(), r.PathValue("id"), input)
	if err != nil {
		respondWithAppError(w, r, err, "failed to update diagnosis")
		return
	}
	respondWithJSON(w, http.StatusOK, diagnosis)
}

// GetDiagnosis handles GET /api/diagnoses/{id}
func (h *DiagnosisHandler) GetDiagnosis(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "diagnosis ID is required")
		return
	}

	diagnosis, err := h.service.GetDiagnosis(r.Context(), id)
	if err != nil {
		respondWithAppError(w, r, err, "failed to load diagnosis")
		return
	}
	respondWithJSON(w, http.StatusOK, resolveDiagnosisCodes(r.Context(), diagnosis))
}

// ListDiagnosisRevisions handles GET /api/diagnoses/{id}/revisions
func (h *DiagnosisHandler) ListDiagnosisRevisions(w http.ResponseWriter, r *http.Request) {
	revisions, err := h.service.ListDiagnosisRevisions(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err, "failed to list revisions")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"revisions": revisions,
		"count":     len(revisions),
	})
}

// resolveDiagnosisCodes loads the primary and secondary codes in one batch.
// Codes that cannot be loaded are left out of the response.
func resolveDiagnosisCodes(ctx context.Context, d *entities.Diagnosis) diagnosisResponse {
	resp := diagnosisResponse{Diagnosis: d}
	l := loaders.For(ctx)
	if l == nil {
		return resp
	}

	ids := append([]string{d.PrimaryCodeID}, d.SecondaryCodeIDs()...)
	thunks := make([]dataloader.Thunk[*entities.MedicalCode], len(ids))
	for i, id := range ids {
		thunks[i] = l.CodeLoader.Load(ctx, id)
	}

	logger := observability.LoggerFromContext(ctx)
	for i, thunk := range thunks {
		code, err := thunk()
		if err != nil {
			logger.Warn().Err(err).Str("code_id", ids[i]).Msg("failed to resolve diagnosis code")
			continue
		}
		if i == 0 {
			resp.PrimaryCode = code
		} else {
			resp.SecondaryCodeDetails = append(resp.SecondaryCodeDetails, code)
		}
	}
	return resp
}
