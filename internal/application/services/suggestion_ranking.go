package services

import (
	"sort"
	"strings"

	"github.com/zatekoja/medcoding/backend/internal/domain/entities"
	"github.com/zatekoja/medcoding/backend/pkg/textnorm"
)

// rankSuggestions orders candidates by the number of distinct tokens found in
// their code, display and searchable text. Ties keep the store order.
func rankSuggestions(candidates []*entities.MedicalCode, tokens []string) []*entities.MedicalCode {
	type scored struct {
		code  *entities.MedicalCode
		score int
	}

	ranked := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		if c == nil {
			continue
		}
		haystack := strings.ToLower(c.Code + " " + c.Display + " " + c.SearchableText)
		ranked = append(ranked, scored{code: c, score: textnorm.CountMatches(haystack, tokens)})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	out := make([]*entities.MedicalCode, len(ranked))
	for i, r := range ranked {
		out[i] = r.code
	}
	return out
}

// boostByDiagnoses moves codes whose display names one of the diagnoses to
// the front, keeping the relative order inside both groups
func boostByDiagnoses(codes []*entities.MedicalCode, diagnoses []entities.PossibleDiagnosis) []*entities.MedicalCode {
	names := make([]string, 0, len(diagnoses))
	for _, d := range diagnoses {
		if n := strings.ToLower(strings.TrimSpace(d.Name)); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return codes
	}

	boosted := make([]*entities.MedicalCode, 0, len(codes))
	rest := make([]*entities.MedicalCode, 0, len(codes))
	for _, c := range codes {
		display := strings.ToLower(c.Display)
		matched := false
		for _, n := range names {
			if strings.Contains(display, n) {
				matched = true
				break
			}
		}
		if matched {
			boosted = append(boosted, c)
		} else {
			rest = append(rest, c)
		}
	}
	return append(boosted, rest...)
}
