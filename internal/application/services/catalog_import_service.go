package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/zatekoja/medcoding/backend/internal/domain/entities"
	"github.com/zatekoja/medcoding/backend/internal/domain/providers"
	"github.com/zatekoja/medcoding/backend/internal/domain/repositories"
	"github.com/zatekoja/medcoding/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/medcoding/backend/pkg/errors"
	"github.com/zatekoja/medcoding/backend/pkg/textnorm"
)

// CatalogImportService maintains code systems and their codes
type CatalogImportService struct {
	systems    repositories.CodeSystemRepository
	codes      repositories.MedicalCodeRepository
	cache      SearchCache
	eventBus   providers.EventBus
	external   repositories.CodeFullTextIndex
	instanceID string
}

// NewCatalogImportService creates a new catalog import service. eventBus may
// be nil; instanceID stamps published events so the publisher can skip its own.
func NewCatalogImportService(
	systems repositories.CodeSystemRepository,
	codes repositories.MedicalCodeRepository,
	cache SearchCache,
	eventBus providers.EventBus,
	instanceID string,
) *CatalogImportService {
	return &CatalogImportService{
		systems:    systems,
		codes:      codes,
		cache:      cache,
		eventBus:   eventBus,
		instanceID: instanceID,
	}
}

// SetExternalIndex registers an index that imported codes are pushed to
func (s *CatalogImportService) SetExternalIndex(index repositories.CodeFullTextIndex) {
	s.external = index
}

// UpsertCodeSystem creates the code system or updates the existing
// (kind, version) row in place
func (s *CatalogImportService) UpsertCodeSystem(ctx context.Context, input entities.CodeSystemInput) (*entities.CodeSystem, error) {
	input.Kind = entities.NormalizeSystemKind(input.Kind)
	input.Name = strings.TrimSpace(input.Name)
	if input.Kind == "" {
		return nil, apperrors.NewValidationError("kind is required")
	}
	if input.Name == "" {
		return nil, apperrors.NewValidationError("name is required")
	}
	if input.Version != nil {
		v := strings.TrimSpace(*input.Version)
		input.Version = &v
	}
	return s.systems.Upsert(ctx, input)
}

// ListCodeSystems returns every code system
func (s *CatalogImportService) ListCodeSystems(ctx context.Context) ([]*entities.CodeSystem, error) {
	return s.systems.List(ctx)
}

// BulkImportCodes upserts codes into an existing code system. Parents are
// resolved by code through the stored codes and the codes imported earlier in
// the same call.
func (s *CatalogImportService) BulkImportCodes(ctx context.Context, req entities.BulkImportRequest) (*entities.ImportResult, error) {
	kind := entities.NormalizeSystemKind(req.SystemKind)
	if kind == "" {
		return nil, apperrors.NewValidationError("systemKind is required")
	}
	for i, in := range req.Codes {
		if strings.TrimSpace(in.Code) == "" {
			return nil, apperrors.NewValidationError(fmt.Sprintf("codes[%d]: code is required", i))
		}
		if strings.TrimSpace(in.Display) == "" {
			return nil, apperrors.NewValidationError(fmt.Sprintf("codes[%d]: display is required", i))
		}
	}

	system, err := s.systems.GetByKindAndVersion(ctx, kind, req.SystemVersion)
	if err != nil {
		return nil, err
	}

	codeIDs, err := s.codes.CodeMapForSystem(ctx, system.ID)
	if err != nil {
		return nil, err
	}

	logger := observability.LoggerFromContext(ctx)
	imported := make([]*entities.MedicalCode, 0, len(req.Codes))
	for _, in := range req.Codes {
		code := buildMedicalCode(system, in)
		if parent := strings.TrimSpace(in.ParentCode); parent != "" {
			if parentID, ok := codeIDs[parent]; ok {
				code.ParentID = &parentID
			} else {
				logger.Debug().Str("code", code.Code).Str("parent_code", parent).Msg("parent code not found, importing without parent")
			}
		}
		if existing, ok := codeIDs[code.Code]; ok {
			code.ID = existing
		}

		id, err := s.codes.Upsert(ctx, code)
		if err != nil {
			// codes written before the failure are already visible
			if len(imported) > 0 {
				s.catalogChanged(ctx, entities.CatalogEventCodesImported, system, imported)
			}
			return nil, err
		}
		code.ID = id
		codeIDs[code.Code] = id
		imported = append(imported, code)
	}

	s.catalogChanged(ctx, entities.CatalogEventCodesImported, system, imported)
	logger.Info().Str("system", system.Kind).Int("imported", len(imported)).Msg("codes imported")

	result := &entities.ImportResult{Imported: len(imported)}
	if req.RebuildSearchText {
		rebuilt, err := s.RebuildSearchableText(ctx, system.ID)
		if err != nil {
			return nil, err
		}
		result.Rebuilt = rebuilt
	}
	return result, nil
}

// RebuildSearchableText recomputes the searchable text of every code of the
// system in a single transaction
func (s *CatalogImportService) RebuildSearchableText(ctx context.Context, systemID string) (int, error) {
	system, err := s.systems.GetByID(ctx, systemID)
	if err != nil {
		return 0, err
	}

	codes, err := s.codes.ListBySystem(ctx, system.ID)
	if err != nil {
		return 0, err
	}

	texts := make(map[string]string, len(codes))
	for _, c := range codes {
		c.SearchableText = textnorm.SearchableText(c.Code, c.Display, c.Description, c.ShortDescription, c.Synonyms)
		texts[c.ID] = c.SearchableText
	}

	updated, err := s.codes.UpdateSearchableTexts(ctx, texts)
	if err != nil {
		return 0, err
	}

	s.catalogChanged(ctx, entities.CatalogEventSearchTextRebuilt, system, codes)
	observability.LoggerFromContext(ctx).Info().Str("system", system.Kind).Int("rebuilt", updated).Msg("searchable text rebuilt")
	return updated, nil
}

// SyncExternalIndex pushes every code of the system to the external index
func (s *CatalogImportService) SyncExternalIndex(ctx context.Context, systemID string) (int, error) {
	if s.external == nil {
		return 0, apperrors.NewValidationError("no external index configured")
	}
	codes, err := s.codes.ListBySystem(ctx, systemID)
	if err != nil {
		return 0, err
	}
	if err := s.external.EnsureIndex(ctx); err != nil {
		return 0, apperrors.NewExternalError("failed to ensure external index", err)
	}
	if err := s.external.IndexCodes(ctx, codes); err != nil {
		return 0, apperrors.NewExternalError("failed to index codes", err)
	}
	return len(codes), nil
}

// catalogChanged runs the best-effort follow-ups of a catalog write
func (s *CatalogImportService) catalogChanged(ctx context.Context, eventType entities.CatalogEventType, system *entities.CodeSystem, codes []*entities.MedicalCode) {
	s.cache.Invalidate(ctx, entities.SearchCachePattern)

	logger := observability.LoggerFromContext(ctx)
	if s.eventBus != nil {
		event := entities.NewCatalogEvent(eventType, system, len(codes), s.instanceID)
		if err := s.eventBus.Publish(ctx, providers.EventChannelCatalogUpdates, event); err != nil {
			logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("failed to publish catalog event")
		}
	}

	if s.external != nil && len(codes) > 0 {
		if err := s.external.IndexCodes(ctx, codes); err != nil {
			logger.Warn().Err(err).Str("system", system.Kind).Msg("failed to push codes to external index")
		}
	}
}

func buildMedicalCode(system *entities.CodeSystem, in entities.CodeImport) *entities.MedicalCode {
	active := true
	if in.Active != nil {
		active = *in.Active
	}

	synonyms := make([]string, 0, len(in.Synonyms))
	for _, syn := range in.Synonyms {
		if syn = strings.TrimSpace(syn); syn != "" {
			synonyms = append(synonyms, syn)
		}
	}

	code := &entities.MedicalCode{
		SystemID:         system.ID,
		SystemKind:       system.Kind,
		Code:             strings.TrimSpace(in.Code),
		Display:          strings.TrimSpace(in.Display),
		Description:      strings.TrimSpace(in.Description),
		ShortDescription: strings.TrimSpace(in.ShortDescription),
		Synonyms:         synonyms,
		Chapter:          strings.TrimSpace(in.Chapter),
		SexRestriction:   entities.ParseSexRestriction(in.SexRestriction),
		IsCategory:       in.IsCategory,
		CrossAsterisk:    entities.ParseCrossAsterisk(in.CrossAsterisk),
		Active:           active,
	}
	code.SearchableText = textnorm.SearchableText(code.Code, code.Display, code.Description, code.ShortDescription, code.Synonyms)
	return code
}
