package entities

import (
	"fmt"
	"strings"
)

// Search limits
const (
	DefaultSearchLimit  = 25
	MaxSearchLimit      = 200
	DefaultSuggestLimit = 5
	SuggestFanout       = 3
)

// SearchOptions are the optional knobs of a code search
type SearchOptions struct {
	FTS            bool           `json:"fts"`
	Chapter        string         `json:"chapter,omitempty"`
	SexRestriction SexRestriction `json:"sex_restriction,omitempty"`
	CategoriesOnly bool           `json:"categories_only"`
}

// SearchRequest is a normalized code search
type SearchRequest struct {
	Query      string
	SystemKind string
	Limit      int
	Options    SearchOptions
}

// ClampSearchLimit applies the default and the upper bound to a search limit
func ClampSearchLimit(limit int) int {
	if limit <= 0 {
		return DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		return MaxSearchLimit
	}
	return limit
}

// Normalize trims and lower-cases the query, upper-cases the system kind and
// clamps the limit
func (r SearchRequest) Normalize() SearchRequest {
	r.Query = strings.ToLower(strings.TrimSpace(r.Query))
	r.SystemKind = NormalizeSystemKind(r.SystemKind)
	r.Options.Chapter = strings.TrimSpace(r.Options.Chapter)
	r.Limit = ClampSearchLimit(r.Limit)
	return r
}

// CacheKey builds the deterministic cache key of a normalized request.
// Every parameter that changes the result set is part of the key.
func (r SearchRequest) CacheKey() string {
	return fmt.Sprintf("coding:search:%s:%s:%s:%s:%s:%d:%s",
		orStar(r.SystemKind),
		flag(r.Options.FTS),
		orStar(r.Options.Chapter),
		orStar(string(r.Options.SexRestriction)),
		flag(r.Options.CategoriesOnly),
		r.Limit,
		r.Query,
	)
}

// SearchCachePattern matches every search cache key
const SearchCachePattern = "coding:search:*"

func orStar(s string) string {
	if s == "" {
		return "*"
	}
	return s
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// CodeFilter holds the structured predicates shared by the full-text and
// substring search paths
type CodeFilter struct {
	SystemKind     string
	Chapter        string
	SexRestriction SexRestriction
	CategoriesOnly bool
}

// Filter extracts the structured predicates of the request
func (r SearchRequest) Filter() CodeFilter {
	return CodeFilter{
		SystemKind:     r.SystemKind,
		Chapter:        r.Options.Chapter,
		SexRestriction: r.Options.SexRestriction,
		CategoriesOnly: r.Options.CategoriesOnly,
	}
}

// Matches applies the filter to a code in memory. It mirrors the SQL
// predicate: active only, sex restriction equal to the requested value or unset.
func (f CodeFilter) Matches(code *MedicalCode) bool {
	if code == nil || !code.Active {
		return false
	}
	if f.SystemKind != "" && code.SystemKind != f.SystemKind {
		return false
	}
	if f.Chapter != "" && code.Chapter != f.Chapter {
		return false
	}
	if f.SexRestriction != SexRestrictionNone &&
		code.SexRestriction != SexRestrictionNone &&
		code.SexRestriction != f.SexRestriction {
		return false
	}
	if f.CategoriesOnly && !code.IsCategory {
		return false
	}
	return true
}
