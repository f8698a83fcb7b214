package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/medcoding/backend/internal/domain/entities"
)

// CodeSearchService defines the search operations used by the handler
type CodeSearchService interface {
	SearchCodes(ctx context.Context, req entities.SearchRequest) ([]*entities.MedicalCode, error)
	SearchCodesForGender(ctx context.Context, query, gender, systemKind string, limit int) ([]*entities.MedicalCode, error)
	SuggestCodes(ctx context.Context, freeText, systemKind string, limit int) ([]*entities.MedicalCode, error)
	GetCodeDetail(ctx context.Context, idOrCode string) (*entities.MedicalCodeDetail, error)
}

// CodeReportingService defines the aggregate queries used by the handlers
type CodeReportingService interface {
	ListChapters(ctx context.Context, systemKind string) ([]entities.ChapterSummary, error)
	GetCodesByChapter(ctx context.Context, chapter, systemKind string, limit int) ([]*entities.MedicalCode, error)
	GetCodeStats(ctx context.Context, systemKind string) (*entities.CodeStats, error)
	TopCodes(ctx context.Context, query entities.TopCodesQuery) ([]entities.CodeUsage, error)
	PatientCodeTimeline(ctx context.Context, patientID string, limit int) ([]entities.PatientCodeEntry, error)
}

// CodingHandler handles medical code lookups
type CodingHandler struct {
	search    CodeSearchService
	reporting CodeReportingService
}

// NewCodingHandler creates a new coding handler
func NewCodingHandler(search CodeSearchService, reporting CodeReportingService) *CodingHandler {
	return &CodingHandler{
		search:    search,
		reporting: reporting,
	}
}

// SearchCodes handles GET /api/codes/search
func (h *CodingHandler) SearchCodes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := entities.SearchRequest{
		Query:      q.Get("q"),
		SystemKind: q.Get("system"),
		Limit:      queryInt(r, "limit"),
		Options: entities.SearchOptions{
			FTS:            queryBool(r, "fts"),
			Chapter:        q.Get("chapter"),
			SexRestriction: entities.ParseSexRestriction(q.Get("sex")),
			CategoriesOnly: queryBool(r, "categories"),
		},
	}

	codes, err := h.search.SearchCodes(r.Context(), req)
	if err != nil {
		respondWithAppError(w, r, err, "failed to search codes")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"codes": codes,
		"count": len(codes),
	})
}

// SearchCodesForGender handles GET /api/codes/search/gender
func (h *CodingHandler) SearchCodesForGender(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	codes, err := h.search.SearchCodesForGender(r.Context(), q.Get("q"), q.Get("gender"), q.Get("system"), queryInt(r, "limit"))
	if err != nil {
		respondWithAppError(w, r, err, "failed to search codes")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"codes": codes,
		"count": len(codes),
	})
}

// SuggestCodes handles GET /api/codes/suggest
func (h *CodingHandler) SuggestCodes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	codes, err := h.search.SuggestCodes(r.Context(), q.Get("text"), q.Get("system"), queryInt(r, "limit"))
	if err != nil {
		respondWithAppError(w, r, err, "failed to suggest codes")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"suggestions": codes,
		"count":       len(codes),
	})
}

// GetCodeDetail handles GET /api/codes/{idOrCode}
func (h *CodingHandler) GetCodeDetail(w http.ResponseWriter, r *http.Request) {
	idOrCode := r.PathValue("idOrCode")
	if idOrCode == "" {
		respondWithError(w, http.StatusBadRequest, "code is required")
		return
	}

	detail, err := h.search.GetCodeDetail(r.Context(), idOrCode)
	if err != nil {
		respondWithAppError(w, r, err, "failed to load code")
		return
	}
	if detail == nil {
		respondWithError(w, http.StatusNotFound, "medical code not found")
		return
	}

	respondWithJSON(w, http.StatusOK, detail)
}

// ListChapters handles GET /api/codes/chapters
func (h *CodingHandler) ListChapters(w http.ResponseWriter, r *http.Request) {
	chapters, err := h.reporting.ListChapters(r.Context(), r.URL.Query().Get("system"))
	if err != nil {
		respondWithAppError(w, r, err, "failed to list chapters")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"chapters": chapters,
		"count":    len(chapters),
	})
}

// GetCodesByChapter handles GET /api/codes/chapters/{chapter}
func (h *CodingHandler) GetCodesByChapter(w http.ResponseWriter, r *http.Request) {
	codes, err := h.reporting.GetCodesByChapter(r.Context(), r.PathValue("chapter"), r.URL.Query().Get("system"), queryInt(r, "limit"))
	if err != nil {
		respondWithAppError(w, r, err, "failed to list chapter codes")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"codes": codes,
		"count": len(codes),
	})
}

// GetCodeStats handles GET /api/codes/stats
func (h *CodingHandler) GetCodeStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.reporting.GetCodeStats(r.Context(), r.URL.Query().Get("system"))
	if err != nil {
		respondWithAppError(w, r, err, "failed to count codes")
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}

// TopCodes handles GET /api/codes/top
func (h *CodingHandler) TopCodes(w http.ResponseWriter, r *http.Request) {
	usage, err := h.reporting.TopCodes(r.Context(), entities.TopCodesQuery{
		SystemKind: r.URL.Query().Get("system"),
		Days:       queryInt(r, "days"),
		Limit:      queryInt(r, "limit"),
	})
	if err != nil {
		respondWithAppError(w, r, err, "failed to load top codes")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"codes": usage,
		"count": len(usage),
	})
}

// PatientCodeTimeline handles GET /api/patients/{patientId}/codes
func (h *CodingHandler) PatientCodeTimeline(w http.ResponseWriter, r *http.Request) {
	entries, err := h.reporting.PatientCodeTimeline(r.Context(), r.PathValue("patientId"), queryInt(r, "limit"))
	if err != nil {
		respondWithAppError(w, r, err, "failed to load patient timeline")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}
