package evaluation

import (
	"context"
	"time"

	"github.com/zatekoja/medcoding/backend/internal/domain/entities"
)

const evalDepth = 10

// CodeSearcher is the part of the search service a run exercises.
type CodeSearcher interface {
	SearchCodes(ctx context.Context, req entities.SearchRequest) ([]*entities.MedicalCode, error)
}

// Runner runs golden queries against a code searcher.
type Runner struct {
	searcher CodeSearcher
	now      func() time.Time
}

func NewRunner(searcher CodeSearcher) *Runner {
	return &Runner{searcher: searcher, now: time.Now}
}

// Run evaluates every query. Search errors are recorded on the result and do
// not stop the run.
func (r *Runner) Run(ctx context.Context, queries []GoldenQuery) (*EvalSummary, error) {
	summary := &EvalSummary{
		TotalQueries: len(queries),
		ByDifficulty: make(map[string]*GroupSummary),
		Results:      make([]EvalResult, 0, len(queries)),
	}

	for _, gq := range queries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := r.now()
		codes, err := r.searcher.SearchCodes(ctx, gq.request())
		result := EvalResult{
			QueryID:    gq.ID,
			Query:      gq.Query,
			Difficulty: gq.Difficulty,
			Latency:    r.now().Sub(start),
		}

		if err != nil {
			result.Error = err.Error()
			summary.FailedQueries++
		} else {
			result.RetrievedCodes = make([]string, len(codes))
			for i, c := range codes {
				result.RetrievedCodes[i] = c.Code
			}
			result.ResultCount = len(codes)
			result.RecallAt10 = RecallAtK(gq.ExpectedCodes, result.RetrievedCodes, evalDepth)
			result.MRRAt10 = MRRAtK(gq.ExpectedCodes, result.RetrievedCodes, evalDepth)
		}

		r.updateSummary(summary, result)
	}

	r.finalizeSummary(summary)
	return summary, nil
}

func (q GoldenQuery) request() entities.SearchRequest {
	return entities.SearchRequest{
		Query:      q.Query,
		SystemKind: q.SystemKind,
		Limit:      evalDepth,
		Options: entities.SearchOptions{
			FTS:            q.Mode != ModeFallback,
			SexRestriction: entities.ParseSexRestriction(q.Sex),
		},
	}
}

func (r *Runner) updateSummary(s *EvalSummary, res EvalResult) {
	s.Results = append(s.Results, res)
	s.AvgRecallAt10 += res.RecallAt10
	s.AvgMRRAt10 += res.MRRAt10
	s.AvgLatency += res.Latency
	if res.ResultCount > 0 {
		s.QueriesWithHits++
	}

	g, ok := s.ByDifficulty[res.Difficulty]
	if !ok {
		g = &GroupSummary{}
		s.ByDifficulty[res.Difficulty] = g
	}
	g.Count++
	g.AvgRecallAt10 += res.RecallAt10
	g.AvgMRRAt10 += res.MRRAt10
}

func (r *Runner) finalizeSummary(s *EvalSummary) {
	if s.TotalQueries > 0 {
		n := float64(s.TotalQueries)
		s.AvgRecallAt10 /= n
		s.AvgMRRAt10 /= n
		s.AvgLatency /= time.Duration(s.TotalQueries)
	}

	for _, g := range s.ByDifficulty {
		if g.Count > 0 {
			n := float64(g.Count)
			g.AvgRecallAt10 /= n
			g.AvgMRRAt10 /= n
		}
	}
}
