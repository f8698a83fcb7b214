package services

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/zatekoja/medcoding/backend/internal/domain/entities"
	"github.com/zatekoja/medcoding/backend/internal/domain/providers"
	"github.com/zatekoja/medcoding/backend/internal/domain/repositories"
	"github.com/zatekoja/medcoding/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/medcoding/backend/pkg/errors"
	"github.com/zatekoja/medcoding/backend/pkg/textnorm"
)

// minFullTextQueryLength is the shortest query sent to the full-text path
const minFullTextQueryLength = 3

// defaultSymptomAnalysisTimeout bounds the optional AI step of suggestions
const defaultSymptomAnalysisTimeout = 5 * time.Second

// SearchCache is the two-tier cache of search results
type SearchCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
	Invalidate(ctx context.Context, pattern string)
	InvalidateLocal()
}

// CodingSearchService answers code searches, detail lookups and suggestions
type CodingSearchService struct {
	codes     repositories.MedicalCodeRepository
	fullText  repositories.CodeFullTextIndex
	cache     SearchCache
	analyzer  providers.SymptomAnalysisProvider
	metrics   *observability.Metrics
	aiTimeout time.Duration

	// indexReady is set once EnsureIndex succeeded. The DDL is idempotent,
	// so concurrent first searches may both run it.
	indexReady atomic.Bool
}

// NewCodingSearchService creates a new coding search service. fullText and
// analyzer are optional.
func NewCodingSearchService(
	codes repositories.MedicalCodeRepository,
	fullText repositories.CodeFullTextIndex,
	cache SearchCache,
	analyzer providers.SymptomAnalysisProvider,
	metrics *observability.Metrics,
) *CodingSearchService {
	return &CodingSearchService{
		codes:     codes,
		fullText:  fullText,
		cache:     cache,
		analyzer:  analyzer,
		metrics:   metrics,
		aiTimeout: defaultSymptomAnalysisTimeout,
	}
}

// SetSymptomAnalysisTimeout overrides the AI step timeout
func (s *CodingSearchService) SetSymptomAnalysisTimeout(d time.Duration) {
	s.aiTimeout = d
}

// SearchCodes runs a cached code search. The full-text path is tried first
// when requested; any failure there falls back to the substring search.
func (s *CodingSearchService) SearchCodes(ctx context.Context, req entities.SearchRequest) ([]*entities.MedicalCode, error) {
	req = req.Normalize()
	key := req.CacheKey()

	if payload, ok := s.cache.Get(ctx, key); ok {
		if cached, err := decodeCachedCodes(payload); err == nil {
			return cached, nil
		}
		observability.LoggerFromContext(ctx).Warn().Str("key", key).Msg("discarding undecodable cache entry")
	}

	codes, err := s.search(ctx, req)
	if err != nil {
		return nil, err
	}

	if payload, err := encodeCachedCodes(codes); err == nil {
		s.cache.Set(ctx, key, payload)
	}
	return codes, nil
}

// cachedCode is the cache form of a code. It keeps the searchable text that
// the API form leaves out.
type cachedCode struct {
	entities.MedicalCode
	SearchableText string `json:"searchable_text"`
}

func encodeCachedCodes(codes []*entities.MedicalCode) ([]byte, error) {
	if codes == nil {
		return json.Marshal(codes)
	}
	rows := make([]cachedCode, len(codes))
	for i, c := range codes {
		rows[i] = cachedCode{MedicalCode: *c, SearchableText: c.SearchableText}
	}
	return json.Marshal(rows)
}

func decodeCachedCodes(payload []byte) ([]*entities.MedicalCode, error) {
	var rows []cachedCode
	if err := json.Unmarshal(payload, &rows); err != nil {
		return nil, err
	}
	if rows == nil {
		return nil, nil
	}
	codes := make([]*entities.MedicalCode, len(rows))
	for i := range rows {
		code := rows[i].MedicalCode
		code.SearchableText = rows[i].SearchableText
		codes[i] = &code
	}
	return codes, nil
}

// SearchCodesForGender searches with the sex restriction derived from gender.
// Unknown genders search without a sex filter.
func (s *CodingSearchService) SearchCodesForGender(ctx context.Context, query, gender, systemKind string, limit int) ([]*entities.MedicalCode, error) {
	return s.SearchCodes(ctx, entities.SearchRequest{
		Query:      query,
		SystemKind: systemKind,
		Limit:      limit,
		Options: entities.SearchOptions{
			FTS:            true,
			SexRestriction: entities.ParseSexRestriction(gender),
		},
	})
}

func (s *CodingSearchService) search(ctx context.Context, req entities.SearchRequest) ([]*entities.MedicalCode, error) {
	filter := req.Filter()

	if req.Options.FTS && s.fullText != nil && utf8.RuneCountInString(req.Query) >= minFullTextQueryLength {
		codes, err := s.fullTextSearch(ctx, req.Query, filter, req.Limit)
		if err == nil {
			return codes, nil
		}
		observability.LogDegraded(ctx, s.metrics, "search.fulltext", err)
	}

	start := time.Now()
	codes, err := s.codes.SubstringSearch(ctx, req.Query, filter, req.Limit)
	observability.RecordDBMetric(ctx, s.metrics, "search.substring", time.Since(start))
	return codes, err
}

// fullTextSearch returns a DEGRADED error on any failure
func (s *CodingSearchService) fullTextSearch(ctx context.Context, query string, filter entities.CodeFilter, limit int) ([]*entities.MedicalCode, error) {
	s.ensureIndex(ctx)

	start := time.Now()
	codes, err := s.fullText.Search(ctx, query, filter, limit)
	observability.RecordDBMetric(ctx, s.metrics, "search.fulltext", time.Since(start))
	if err != nil {
		return nil, apperrors.NewDegradedError("full-text search unavailable", err)
	}
	return codes, nil
}

func (s *CodingSearchService) ensureIndex(ctx context.Context) {
	if s.indexReady.Load() {
		return
	}
	if err := s.fullText.EnsureIndex(ctx); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("failed to ensure full-text index")
		return
	}
	s.indexReady.Store(true)
}

// GetCodeDetail resolves a code by id or by code string and adds its
// ancestors. It returns nil when neither resolves.
func (s *CodingSearchService) GetCodeDetail(ctx context.Context, idOrCode string) (*entities.MedicalCodeDetail, error) {
	idOrCode = strings.TrimSpace(idOrCode)
	if idOrCode == "" {
		return nil, nil
	}

	code, err := s.resolveCode(ctx, idOrCode)
	if err != nil || code == nil {
		return nil, err
	}

	path, err := s.hierarchyPath(ctx, code)
	if err != nil {
		return nil, err
	}
	return &entities.MedicalCodeDetail{MedicalCode: code, HierarchyPath: path}, nil
}

func (s *CodingSearchService) resolveCode(ctx context.Context, idOrCode string) (*entities.MedicalCode, error) {
	if _, err := uuid.Parse(idOrCode); err == nil {
		code, err := s.codes.GetByID(ctx, idOrCode)
		if err == nil {
			return code, nil
		}
		if !apperrors.IsNotFound(err) {
			return nil, err
		}
	}

	candidates := []string{idOrCode}
	if upper := strings.ToUpper(idOrCode); upper != idOrCode {
		candidates = append(candidates, upper)
	}
	for _, candidate := range candidates {
		code, err := s.codes.GetByCode(ctx, candidate, "")
		if err == nil {
			return code, nil
		}
		if !apperrors.IsNotFound(err) {
			return nil, err
		}
	}
	return nil, nil
}

// hierarchyPath ascends at most MaxHierarchyDepth parents and returns them
// root-most first. A cycle or a dangling parent stops the ascent.
func (s *CodingSearchService) hierarchyPath(ctx context.Context, code *entities.MedicalCode) ([]entities.HierarchyNode, error) {
	path := []entities.HierarchyNode{}
	seen := map[string]bool{code.ID: true}

	parentID := code.ParentID
	for depth := 0; depth < entities.MaxHierarchyDepth && parentID != nil && *parentID != ""; depth++ {
		if seen[*parentID] {
			break
		}
		parent, err := s.codes.GetByID(ctx, *parentID)
		if apperrors.IsNotFound(err) {
			break
		}
		if err != nil {
			return nil, err
		}
		seen[parent.ID] = true
		path = append(path, entities.HierarchyNode{ID: parent.ID, Code: parent.Code, Display: parent.Display})
		parentID = parent.ParentID
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// SuggestCodes proposes codes for free text such as a symptom description
func (s *CodingSearchService) SuggestCodes(ctx context.Context, freeText, systemKind string, limit int) ([]*entities.MedicalCode, error) {
	if limit <= 0 {
		limit = entities.DefaultSuggestLimit
	}
	limit = entities.ClampSearchLimit(limit)

	tokens := textnorm.Tokenize(freeText)
	if len(tokens) == 0 {
		return []*entities.MedicalCode{}, nil
	}

	candidates, err := s.codes.SearchByTokens(ctx, tokens, entities.NormalizeSystemKind(systemKind), limit*entities.SuggestFanout)
	if err != nil {
		return nil, err
	}

	ranked := rankSuggestions(candidates, tokens)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	if s.analyzer == nil || len(ranked) == 0 {
		return ranked, nil
	}
	diagnoses, err := s.possibleDiagnoses(ctx, tokens)
	if err != nil {
		observability.LogDegraded(ctx, s.metrics, "suggest.symptom_analysis", err)
		return ranked, nil
	}
	return boostByDiagnoses(ranked, diagnoses), nil
}

// possibleDiagnoses returns a DEGRADED error when the provider fails
func (s *CodingSearchService) possibleDiagnoses(ctx context.Context, tokens []string) ([]entities.PossibleDiagnosis, error) {
	ctx, cancel := context.WithTimeout(ctx, s.aiTimeout)
	defer cancel()

	analysis, err := s.analyzer.AnalyzeSymptoms(ctx, entities.SymptomAnalysisRequest{Symptoms: tokens})
	if err != nil {
		return nil, apperrors.NewDegradedError("symptom analysis unavailable", err)
	}
	if analysis == nil {
		return nil, nil
	}
	return analysis.PossibleDiagnoses, nil
}
