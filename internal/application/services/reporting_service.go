package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/zatekoja/medcoding/backend/internal/domain/entities"
	"github.com/zatekoja/medcoding/backend/internal/domain/repositories"
	apperrors "github.com/zatekoja/medcoding/backend/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// ReportingService answers the aggregate queries over the catalog and the
// recorded diagnoses
type ReportingService struct {
	codes     repositories.MedicalCodeRepository
	reporting repositories.ReportingRepository
	now       func() time.Time
}

// NewReportingService creates a new reporting service
func NewReportingService(codes repositories.MedicalCodeRepository, reporting repositories.ReportingRepository) *ReportingService {
	return &ReportingService{
		codes:     codes,
		reporting: reporting,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// TopCodes returns the most used primary codes within the last days
func (s *ReportingService) TopCodes(ctx context.Context, query entities.TopCodesQuery) ([]entities.CodeUsage, error) {
	days := query.Days
	if days <= 0 {
		days = entities.DefaultTopCodesDays
	}
	limit := query.Limit
	if limit <= 0 {
		limit = entities.DefaultTopCodesLimit
	}
	if limit > entities.MaxTopCodesLimit {
		limit = entities.MaxTopCodesLimit
	}

	since := s.now().AddDate(0, 0, -days)
	return s.reporting.TopCodes(ctx, entities.NormalizeSystemKind(query.SystemKind), since, limit)
}

// PatientCodeTimeline returns a patient's diagnoses newest first
func (s *ReportingService) PatientCodeTimeline(ctx context.Context, patientID string, limit int) ([]entities.PatientCodeEntry, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, apperrors.NewValidationError("patient id is required")
	}
	if limit <= 0 {
		limit = entities.DefaultTimelineLimit
	}
	if limit > entities.MaxTimelineLimit {
		limit = entities.MaxTimelineLimit
	}
	return s.reporting.PatientTimeline(ctx, patientID, limit)
}

// ListChapters returns the chapters with their display names
func (s *ReportingService) ListChapters(ctx context.Context, systemKind string) ([]entities.ChapterSummary, error) {
	chapters, err := s.codes.ListChapters(ctx, entities.NormalizeSystemKind(systemKind))
	if err != nil {
		return nil, err
	}
	for i := range chapters {
		chapters[i].Name = entities.ChapterName(chapters[i].Chapter)
	}
	sort.SliceStable(chapters, func(i, j int) bool {
		return entities.ChapterLess(chapters[i].Chapter, chapters[j].Chapter)
	})
	return chapters, nil
}

// GetCodesByChapter returns the active codes of a chapter ordered by code
func (s *ReportingService) GetCodesByChapter(ctx context.Context, chapter, systemKind string, limit int) ([]*entities.MedicalCode, error) {
	chapter = strings.TrimSpace(chapter)
	if chapter == "" {
		return nil, apperrors.NewValidationError("chapter is required")
	}
	if limit <= 0 {
		limit = entities.DefaultByChapterLimit
	}
	return s.codes.ListByChapter(ctx, chapter, entities.NormalizeSystemKind(systemKind), entities.ClampSearchLimit(limit))
}

// GetCodeStats counts the catalog buckets in parallel
func (s *ReportingService) GetCodeStats(ctx context.Context, systemKind string) (*entities.CodeStats, error) {
	systemKind = entities.NormalizeSystemKind(systemKind)
	stats := &entities.CodeStats{}

	buckets := []struct {
		kind entities.CodeCountKind
		dst  *int
	}{
		{entities.CountAllCodes, &stats.Total},
		{entities.CountCategoryCodes, &stats.Categories},
		{entities.CountSexRestrictedCodes, &stats.SexRestricted},
		{entities.CountEtiologyCodes, &stats.Etiology},
		{entities.CountManifestationCodes, &stats.Manifestation},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, b := range buckets {
		b := b
		g.Go(func() error {
			n, err := s.codes.CountCodes(gctx, b.kind, systemKind)
			if err != nil {
				return err
			}
			*b.dst = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}
