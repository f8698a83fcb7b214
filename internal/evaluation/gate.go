package evaluation

import "fmt"

// Gate fails a run whose averages fall below the configured floors.
// A zero floor disables that check.
type Gate struct {
	MinRecallAt10 float64
	MinMRRAt10    float64
	MaxFailed     int
}

// Check returns an error describing the first floor that was missed.
func (g Gate) Check(s *EvalSummary) error {
	if s.FailedQueries > g.MaxFailed {
		return fmt.Errorf("%d queries failed (allowed %d)", s.FailedQueries, g.MaxFailed)
	}
	if g.MinRecallAt10 > 0 && s.AvgRecallAt10 < g.MinRecallAt10 {
		return fmt.Errorf("recall@10 %.3f below %.3f", s.AvgRecallAt10, g.MinRecallAt10)
	}
	if g.MinMRRAt10 > 0 && s.AvgMRRAt10 < g.MinMRRAt10 {
		return fmt.Errorf("mrr@10 %.3f below %.3f", s.AvgMRRAt10, g.MinMRRAt10)
	}
	return nil
}
