package evaluation

import "time"

// Mode selects the search path a golden query is run through.
type Mode string

const (
	ModeFTS      Mode = "fts"      // full-text index
	ModeFallback Mode = "fallback" // substring match
)

// IsValid reports whether the mode is known. Empty means fts.
func (m Mode) IsValid() bool {
	switch m {
	case "", ModeFTS, ModeFallback:
		return true
	}
	return false
}

// GoldenQuery is a labeled search with the codes a coder expects to see.
type GoldenQuery struct {
	ID            string   `json:"id"`
	Query         string   `json:"query"`
	SystemKind    string   `json:"system,omitempty"`
	Mode          Mode     `json:"mode,omitempty"`
	Sex           string   `json:"sex,omitempty"`
	ExpectedCodes []string `json:"expected_codes"`
	Difficulty    string   `json:"difficulty"` // easy, medium, hard
}

// EvalResult holds the outcome of a single golden query.
type EvalResult struct {
	QueryID        string        `json:"query_id"`
	Query          string        `json:"query"`
	Difficulty     string        `json:"difficulty"`
	RecallAt10     float64       `json:"recall_at_10"`
	MRRAt10        float64       `json:"mrr_at_10"`
	ResultCount    int           `json:"result_count"`
	RetrievedCodes []string      `json:"retrieved_codes"`
	Latency        time.Duration `json:"latency"`
	Error          string        `json:"error,omitempty"`
}

// EvalSummary aggregates a run. Failed queries count as zero recall.
type EvalSummary struct {
	TotalQueries    int                      `json:"total_queries"`
	FailedQueries   int                      `json:"failed_queries"`
	QueriesWithHits int                      `json:"queries_with_hits"`
	AvgRecallAt10   float64                  `json:"avg_recall_at_10"`
	AvgMRRAt10      float64                  `json:"avg_mrr_at_10"`
	AvgLatency      time.Duration            `json:"avg_latency"`
	ByDifficulty    map[string]*GroupSummary `json:"by_difficulty"`
	Results         []EvalResult             `json:"results"`
}

// GroupSummary holds averaged metrics for one difficulty bucket.
type GroupSummary struct {
	Count         int     `json:"count"`
	AvgRecallAt10 float64 `json:"avg_recall_at_10"`
	AvgMRRAt10    float64 `json:"avg_mrr_at_10"`
}
