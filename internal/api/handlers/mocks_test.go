package handlers_test

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/zatekoja/medcoding/backend/internal/domain/entities"
)

type MockCodeSearchService struct {
	mock.Mock
}

func (m *MockCodeSearchService) SearchCodes(ctx context.Context, req entities.SearchRequest) ([]*entities.MedicalCode, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.MedicalCode), args.Error(1)
}

func (m *MockCodeSearchService) SearchCodesForGender(ctx context.Context, query, gender, systemKind string, limit int) ([]*entities.MedicalCode, error) {
	args := m.Called(ctx, query, gender, systemKind, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.MedicalCode), args.Error(1)
}

func (m *MockCodeSearchService) SuggestCodes(ctx context.Context, freeText, systemKind string, limit int) ([]*entities.MedicalCode, error) {
	args := m.Called(ctx, freeText, systemKind, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.MedicalCode), args.Error(1)
}

func (m *MockCodeSearchService) GetCodeDetail(ctx context.Context, idOrCode string) (*entities.MedicalCodeDetail, error) {
	args := m.Called(ctx, idOrCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.MedicalCodeDetail), args.Error(1)
}

type MockReportingService struct {
	mock.Mock
}

func (m *MockReportingService) ListChapters(ctx context.Context, systemKind string) ([]entities.ChapterSummary, error) {
	args := m.Called(ctx, systemKind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.ChapterSummary), args.Error(1)
}

func (m *MockReportingService) GetCodesByChapter(ctx context.Context, chapter, systemKind string, limit int) ([]*entities.MedicalCode, error) {
	args := m.Called(ctx, chapter, systemKind, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.MedicalCode), args.Error(1)
}

func (m *MockReportingService) GetCodeStats(ctx context.Context, systemKind string) (*entities.CodeStats, error) {
	args := m.Called(ctx, systemKind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.CodeStats), args.Error(1)
}

func (m *MockReportingService) TopCodes(ctx context.Context, query entities.TopCodesQuery) ([]entities.CodeUsage, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.CodeUsage), args.Error(1)
}

func (m *MockReportingService) PatientCodeTimeline(ctx context.Context, patientID string, limit int) ([]entities.PatientCodeEntry, error) {
	args := m.Called(ctx, patientID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.PatientCodeEntry), args.Error(1)
}

type MockCatalogService struct {
	mock.Mock
}

func (m *MockCatalogService) UpsertCodeSystem(ctx context.Context, input entities.CodeSystemInput) (*entities.CodeSystem, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.CodeSystem), args.Error(1)
}

func (m *MockCatalogService) ListCodeSystems(ctx context.Context) ([]*entities.CodeSystem, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.CodeSystem), args.Error(1)
}

func (m *MockCatalogService) BulkImportCodes(ctx context.Context, req entities.BulkImportRequest) (*entities.ImportResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ImportResult), args.Error(1)
}

func (m *MockCatalogService) RebuildSearchableText(ctx context.Context, systemID string) (int, error) {
	args := m.Called(ctx, systemID)
	return args.Int(0), args.Error(1)
}

type MockDiagnosisService struct {
	mock.Mock
}

func (m *MockDiagnosisService) RecordDiagnosis(ctx context.Context, input entities.RecordDiagnosisInput) (*entities.Diagnosis, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Diagnosis), args.Error(1)
}

func (m *MockDiagnosisService) UpdateDiagnosis(ctx context.Context, id string, input entities.UpdateDiagnosisInput) (*entities.Diagnosis, error) {
	args := m.Called(ctx, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Diagnosis), args.Error(1)
}

func (m *MockDiagnosisService) GetDiagnosis(ctx context.Context, id string) (*entities.Diagnosis, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Diagnosis), args.Error(1)
}

func (m *MockDiagnosisService) ListDiagnosisRevisions(ctx context.Context, diagnosisID string) ([]*entities.DiagnosisRevision, error) {
	args := m.Called(ctx, diagnosisID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.DiagnosisRevision), args.Error(1)
}
