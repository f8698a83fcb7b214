package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/medcoding/backend/internal/domain/entities"
)

// CatalogService defines the catalog maintenance operations used by the handler
type CatalogService interface {
	UpsertCodeSystem(ctx context.Context, input entities.CodeSystemInput) (*entities.CodeSystem, error)
	ListCodeSystems(ctx context.Context) ([]*entities.CodeSystem, error)
	BulkImportCodes(ctx context.Context, req entities.BulkImportRequest) (*entities.ImportResult, error)
	RebuildSearchableText(ctx context.Context, systemID string) (int, error)
}

// CatalogHandler handles code system maintenance
type CatalogHandler struct {
	service CatalogService
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(service CatalogService) *CatalogHandler {
	return &CatalogHandler{service: service}
}

// ListCodeSystems handles GET /api/code-systems
func (h *CatalogHandler) ListCodeSystems(w http.ResponseWriter, r *http.Request) {
	systems, err := h.service.ListCodeSystems(r.Context())
	if err != nil {
		respondWithAppError(w, r, err, "failed to list code systems")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"code_systems": systems,
		"count":        len(systems),
	})
}

// UpsertCodeSystem handles POST /api/code-systems
func (h *CatalogHandler) UpsertCodeSystem(w http.ResponseWriter, r *http.Request) {
	var input entities.CodeSystemInput
	if err := decodeJSON(r, &input); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	system, err := h.service.UpsertCodeSystem(r.Context(), input)
	if err != nil {
		respondWithAppError(w, r, err, "failed to save code system")
		return
	}
	respondWithJSON(w, http.StatusOK, system)
}

// BulkImportCodes handles POST /api/code-systems/import
func (h *CatalogHandler) BulkImportCodes(w http.ResponseWriter, r *http.Request) {
	var req entities.BulkImportRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	result, err := h.service.BulkImportCodes(r.Context(), req)
	if err != nil {
		respondWithAppError(w, r, err, "failed to import codes")
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// RebuildSearchableText handles POST /api/code-systems/{id}/rebuild-search-text
func (h *CatalogHandler) RebuildSearchableText(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "code system ID is required")
		return
	}

	n, err := h.service.RebuildSearchableText(r.Context(), id)
	if err != nil {
		respondWithAppError(w, r, err, "failed to rebuild searchable text")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int{"rebuilt": n})
}
