package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
	"github.com/zatekoja/medcoding/backend/internal/domain/entities"
	"github.com/zatekoja/medcoding/backend/internal/domain/repositories"
	tsclient "github.com/zatekoja/medcoding/backend/internal/infrastructure/clients/typesense"
)

// unrestrictedSex is stored for codes without a sex restriction
const unrestrictedSex = "U"

// TypesenseCodeIndex implements the full-text code search on Typesense.
// Hits are hydrated from the relational store so callers always see the
// persisted rows.
type TypesenseCodeIndex struct {
	client *tsclient.Client
	codes  repositories.MedicalCodeRepository
}

var _ repositories.CodeFullTextIndex = (*TypesenseCodeIndex)(nil)

// NewTypesenseCodeIndex creates a new Typesense code index
func NewTypesenseCodeIndex(client *tsclient.Client, codes repositories.MedicalCodeRepository) *TypesenseCodeIndex {
	return &TypesenseCodeIndex{client: client, codes: codes}
}

// EnsureIndex ensures the collection exists
func (a *TypesenseCodeIndex) EnsureIndex(ctx context.Context) error {
	return a.client.InitSchema(ctx)
}

// IndexCodes upserts every code document
func (a *TypesenseCodeIndex) IndexCodes(ctx context.Context, codes []*entities.MedicalCode) error {
	var errs []error
	for _, code := range codes {
		if code == nil {
			continue
		}
		_, err := a.client.Client().Collection(tsclient.MedicalCodesCollection).Documents().Upsert(ctx, toDocument(code))
		if err != nil {
			errs = append(errs, fmt.Errorf("index code %s: %w", code.Code, err))
		}
	}
	return errors.Join(errs...)
}

// Search runs a full-text query with the structured filters
func (a *TypesenseCodeIndex) Search(ctx context.Context, query string, filter entities.CodeFilter, limit int) ([]*entities.MedicalCode, error) {
	searchParams := &api.SearchCollectionParams{
		Q:        pointer.String(query),
		QueryBy:  pointer.String("code,display,searchable_text"),
		FilterBy: pointer.String(buildFilterBy(filter)),
		SortBy:   pointer.String("code:asc"),
		PerPage:  pointer.Int(limit),
	}

	result, err := a.client.Client().Collection(tsclient.MedicalCodesCollection).Documents().Search(ctx, searchParams)
	if err != nil {
		return nil, fmt.Errorf("failed to search medical codes: %w", err)
	}
	if result.Hits == nil {
		return []*entities.MedicalCode{}, nil
	}

	ids := make([]string, 0, len(*result.Hits))
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		if id, ok := (*hit.Document)["id"].(string); ok && id != "" {
			ids = append(ids, id)
		}
	}

	stored, err := a.codes.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	// the index may lag behind the store; re-apply the filters to the stored rows
	codes := make([]*entities.MedicalCode, 0, len(stored))
	for _, code := range stored {
		if filter.Matches(code) {
			codes = append(codes, code)
		}
	}
	sort.SliceStable(codes, func(i, j int) bool {
		if codes[i].Code != codes[j].Code {
			return codes[i].Code < codes[j].Code
		}
		return codes[i].ID < codes[j].ID
	})
	if len(codes) > limit {
		codes = codes[:limit]
	}
	return codes, nil
}

func buildFilterBy(f entities.CodeFilter) string {
	clauses := []string{"active:=true"}
	if f.SystemKind != "" {
		clauses = append(clauses, "system_kind:="+filterValue(f.SystemKind))
	}
	if f.Chapter != "" {
		clauses = append(clauses, "chapter:="+filterValue(f.Chapter))
	}
	if f.SexRestriction != entities.SexRestrictionNone {
		clauses = append(clauses, fmt.Sprintf("sex_restriction:=[%s,%s]",
			filterValue(string(f.SexRestriction)), unrestrictedSex))
	}
	if f.CategoriesOnly {
		clauses = append(clauses, "is_category:=true")
	}
	return strings.Join(clauses, " && ")
}

// filterValue wraps a value in backticks so separators inside it are literal
func filterValue(v string) string {
	return "`" + strings.ReplaceAll(v, "`", "") + "`"
}

func toDocument(code *entities.MedicalCode) map[string]interface{} {
	sex := string(code.SexRestriction)
	if sex == "" {
		sex = unrestrictedSex
	}
	return map[string]interface{}{
		"id":              code.ID,
		"system_id":       code.SystemID,
		"system_kind":     code.SystemKind,
		"code":            code.Code,
		"display":         code.Display,
		"searchable_text": code.SearchableText,
		"chapter":         code.Chapter,
		"sex_restriction": sex,
		"is_category":     code.IsCategory,
		"active":          code.Active,
	}
}
