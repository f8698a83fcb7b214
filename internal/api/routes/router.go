package routes

import (
	"net/http"

	"github.com/zatekoja/medcoding/backend/internal/api/handlers"
	"github.com/zatekoja/medcoding/backend/internal/api/loaders"
	"github.com/zatekoja/medcoding/backend/internal/api/middleware"
	"github.com/zatekoja/medcoding/backend/internal/domain/repositories"
	"github.com/zatekoja/medcoding/backend/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	codingHandler    *handlers.CodingHandler
	catalogHandler   *handlers.CatalogHandler
	diagnosisHandler *handlers.DiagnosisHandler

	codes          repositories.MedicalCodeRepository
	allowedOrigins []string
	metrics        *observability.Metrics
}

// NewRouter creates a new router. codes backs the per-request code loaders.
func NewRouter(
	codingHandler *handlers.CodingHandler,
	catalogHandler *handlers.CatalogHandler,
	diagnosisHandler *handlers.DiagnosisHandler,
	codes repositories.MedicalCodeRepository,
	allowedOrigins []string,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:              http.NewServeMux(),
		codingHandler:    codingHandler,
		catalogHandler:   catalogHandler,
		diagnosisHandler: diagnosisHandler,
		codes:            codes,
		allowedOrigins:   allowedOrigins,
		metrics:          metrics,
	}
}

// handle registers h with tracing and metrics labelled by its pattern
func (r *Router) handle(pattern string, h http.HandlerFunc) {
	r.mux.Handle(pattern, middleware.RouteObservability(r.metrics, pattern)(h))
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.handle("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Code lookups
	r.handle("GET /api/codes/search", r.codingHandler.SearchCodes)
	r.handle("GET /api/codes/search/gender", r.codingHandler.SearchCodesForGender)
	r.handle("GET /api/codes/suggest", r.codingHandler.SuggestCodes)
	r.handle("GET /api/codes/chapters", r.codingHandler.ListChapters)
	r.handle("GET /api/codes/chapters/{chapter}", r.codingHandler.GetCodesByChapter)
	r.handle("GET /api/codes/stats", r.codingHandler.GetCodeStats)
	r.handle("GET /api/codes/top", r.codingHandler.TopCodes)
	r.handle("GET /api/codes/{idOrCode}", r.codingHandler.GetCodeDetail)

	// Catalog maintenance
	r.handle("GET /api/code-systems", r.catalogHandler.ListCodeSystems)
	r.handle("POST /api/code-systems", r.catalogHandler.UpsertCodeSystem)
	r.handle("POST /api/code-systems/import", r.catalogHandler.BulkImportCodes)
	r.handle("POST /api/code-systems/{id}/rebuild-search-text", r.catalogHandler.RebuildSearchableText)

	// Diagnoses
	r.handle("POST /api/diagnoses", r.diagnosisHandler.RecordDiagnosis)
	r.handle("GET /api/diagnoses/{id}", r.diagnosisHandler.GetDiagnosis)
	r.handle("PATCH /api/diagnoses/{id}", r.diagnosisHandler.UpdateDiagnosis)
	r.handle("GET /api/diagnoses/{id}/revisions", r.diagnosisHandler.ListDiagnosisRevisions)
	r.handle("GET /api/patients/{patientId}/codes", r.codingHandler.PatientCodeTimeline)

	// Apply middleware in reverse order (last middleware wraps first).
	// CORS is outermost so preflight and error responses carry its headers.
	var handler http.Handler = r.mux
	handler = loaders.Middleware(r.codes)(handler)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ResponseOptimization(handler)
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}
