package evaluation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/medcoding/backend/internal/domain/entities"
)

type stubSearcher struct {
	results  map[string][]string
	err      map[string]error
	requests []entities.SearchRequest
}

func (s *stubSearcher) SearchCodes(_ context.Context, req entities.SearchRequest) ([]*entities.MedicalCode, error) {
	s.requests = append(s.requests, req)
	if err := s.err[req.Query]; err != nil {
		return nil, err
	}
	var out []*entities.MedicalCode
	for _, code := range s.results[req.Query] {
		out = append(out, &entities.MedicalCode{Code: code})
	}
	return out, nil
}

func TestRunner_Run(t *testing.T) {
	searcher := &stubSearcher{
		results: map[string][]string{
			"cólera":   {"A00", "A00.0"},
			"diarreia": {"A09", "K52.9"},
		},
		err: map[string]error{"timeout": errors.New("statement timeout")},
	}
	queries := []GoldenQuery{
		{ID: "q1", Query: "cólera", ExpectedCodes: []string{"A00"}, Difficulty: "easy"},
		{ID: "q2", Query: "diarreia", Mode: ModeFallback, Sex: "F", ExpectedCodes: []string{"K52.9"}, Difficulty: "hard"},
		{ID: "q3", Query: "timeout", ExpectedCodes: []string{"R50.9"}, Difficulty: "hard"},
	}

	summary, err := NewRunner(searcher).Run(context.Background(), queries)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.TotalQueries)
	assert.Equal(t, 1, summary.FailedQueries)
	assert.Equal(t, 2, summary.QueriesWithHits)
	assert.InDelta(t, 2.0/3, summary.AvgRecallAt10, 1e-9)
	assert.InDelta(t, 0.5, summary.AvgMRRAt10, 1e-9)

	require.Contains(t, summary.ByDifficulty, "hard")
	assert.Equal(t, 2, summary.ByDifficulty["hard"].Count)
	assert.InDelta(t, 0.25, summary.ByDifficulty["hard"].AvgMRRAt10, 1e-9)
	assert.Equal(t, "statement timeout", summary.Results[2].Error)

	require.Len(t, searcher.requests, 3)
	assert.True(t, searcher.requests[0].Options.FTS)
	assert.False(t, searcher.requests[1].Options.FTS)
	assert.Equal(t, entities.SexRestrictionFemale, searcher.requests[1].Options.SexRestriction)
	assert.Equal(t, 10, searcher.requests[0].Limit)
}

func TestRunner_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(&stubSearcher{}).Run(ctx, []GoldenQuery{{ID: "q1", Query: "asma"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGate_Check(t *testing.T) {
	summary := &EvalSummary{AvgRecallAt10: 0.8, AvgMRRAt10: 0.6, FailedQueries: 1}

	assert.NoError(t, Gate{MaxFailed: 1}.Check(summary))
	assert.NoError(t, Gate{MinRecallAt10: 0.75, MinMRRAt10: 0.5, MaxFailed: 1}.Check(summary))
	assert.ErrorContains(t, Gate{}.Check(summary), "1 queries failed")
	assert.ErrorContains(t, Gate{MinRecallAt10: 0.9, MaxFailed: 1}.Check(summary), "recall@10")
	assert.ErrorContains(t, Gate{MinMRRAt10: 0.7, MaxFailed: 1}.Check(summary), "mrr@10")
}
