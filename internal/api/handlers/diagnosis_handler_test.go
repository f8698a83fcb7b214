package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/medcoding/backend/internal/api/handlers"
	"github.com/zatekoja/medcoding/backend/internal/api/loaders"
	"github.com/zatekoja/medcoding/backend/internal/domain/entities"
	"github.com/zatekoja/medcoding/backend/internal/domain/repositories"
	apperrors "github.com/zatekoja/medcoding/backend/pkg/errors"
)

type stubCodes struct {
	repositories.MedicalCodeRepository
	codes map[string]*entities.MedicalCode
	calls int
}

func (s *stubCodes) GetByIDs(ctx context.Context, ids []string) ([]*entities.MedicalCode, error) {
	s.calls++
	out := []*entities.MedicalCode{}
	for _, id := range ids {
		if c, ok := s.codes[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func TestDiagnosisHandler_GetDiagnosisResolvesCodes(t *testing.T) {
	svc := new(MockDiagnosisService)
	svc.On("GetDiagnosis", mock.Anything, "d1").Return(&entities.Diagnosis{
		ID:            "d1",
		PatientID:     "patient-1",
		PrimaryCodeID: "c1",
		SecondaryCodes: []entities.DiagnosisSecondaryCode{
			{DiagnosisID: "d1", CodeID: "c2", Order: 0},
			{DiagnosisID: "d1", CodeID: "gone", Order: 1},
		},
		Status: entities.DiagnosisStatusActive,
	}, nil)
	codes := &stubCodes{codes: map[string]*entities.MedicalCode{
		"c1": {ID: "c1", Code: "J18.9", Display: "Pneumonia não especificada"},
		"c2": {ID: "c2", Code: "R50.9", Display: "Febre não especificada"},
	}}

	h := handlers.NewDiagnosisHandler(svc)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/diagnoses/{id}", h.GetDiagnosis)
	server := loaders.Middleware(codes)(mux)

	w := httptest.NewRecorder()
	server.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/diagnoses/d1", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		ID          string `json:"id"`
		PrimaryCode struct {
			Code string `json:"code"`
		} `json:"primary_code"`
		SecondaryCodeDetails []struct {
			Code string `json:"code"`
		} `json:"secondary_code_details"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "d1", body.ID)
	assert.Equal(t, "J18.9", body.PrimaryCode.Code)
	require.Len(t, body.SecondaryCodeDetails, 1)
	assert.Equal(t, "R50.9", body.SecondaryCodeDetails[0].Code)
	assert.Equal(t, 1, codes.calls, "codes are fetched in one batch")
}

func TestDiagnosisHandler_RecordDiagnosis(t *testing.T) {
	svc := new(MockDiagnosisService)
	svc.On("RecordDiagnosis", mock.Anything, mock.MatchedBy(func(in entities.RecordDiagnosisInput) bool {
		return in.PatientID == "patient-1" && in.PrimaryCodeID == "c1" && len(in.SecondaryCodeIDs) == 1
	})).Return(&entities.Diagnosis{ID: "d1", PatientID: "patient-1", PrimaryCodeID: "c1"}, nil)
	svc.On("RecordDiagnosis", mock.Anything, mock.MatchedBy(func(in entities.RecordDiagnosisInput) bool {
		return in.PatientID == ""
	})).Return(nil, apperrors.NewValidationError("patient_id is required"))
	h := handlers.NewDiagnosisHandler(svc)

	w := httptest.NewRecorder()
	h.RecordDiagnosis(w, httptest.NewRequest(http.MethodPost, "/api/diagnoses",
		strings.NewReader(`{"patient_id":"patient-1","primary_code_id":"c1","secondary_code_ids":["c2"]}`)))
	assert.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	h.RecordDiagnosis(w, httptest.NewRequest(http.MethodPost, "/api/diagnoses", strings.NewReader(`{"primary_code_id":"c1"}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"patient_id is required"}`, w.Body.String())
}

func TestDiagnosisHandler_UpdateDiagnosis(t *testing.T) {
	svc := new(MockDiagnosisService)
	svc.On("UpdateDiagnosis", mock.Anything, "d1", mock.MatchedBy(func(in entities.UpdateDiagnosisInput) bool {
		return in.Status != nil && *in.Status == entities.DiagnosisStatusResolved && in.SecondaryCodeIDs == nil
	})).Return(&entities.Diagnosis{ID: "d1", Status: entities.DiagnosisStatusResolved}, nil)
	svc.On("UpdateDiagnosis", mock.Anything, "missing", mock.Anything).
		Return(nil, apperrors.NewNotFoundError("diagnosis missing not found"))
	h := handlers.NewDiagnosisHandler(svc)

	req := httptest.NewRequest(http.MethodPatch, "/api/diagnoses/d1", strings.NewReader(`{"status":"RESOLVED"}`))
	req.SetPathValue("id", "d1")
	w := httptest.NewRecorder()
	h.UpdateDiagnosis(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodPatch, "/api/diagnoses/missing", strings.NewReader(`{}`))
	req.SetPathValue("id", "missing")
	w = httptest.NewRecorder()
	h.UpdateDiagnosis(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
	svc.AssertExpectations(t)
}
