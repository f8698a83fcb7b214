package evaluation

// RecallAtK is the fraction of relevant codes present in the first k retrieved.
// Returns 0 when relevant is empty.
func RecallAtK(relevant, retrieved []string, k int) float64 {
	if len(relevant) == 0 {
		return 0
	}
	want := toSet(relevant)

	found := 0
	for _, code := range topK(retrieved, k) {
		if _, ok := want[code]; ok {
			found++
			delete(want, code)
		}
	}
	return float64(found) / float64(len(relevant))
}

// MRRAtK is the reciprocal rank of the first relevant code in the first k
// retrieved, or 0 when none is there.
func MRRAtK(relevant, retrieved []string, k int) float64 {
	if len(relevant) == 0 {
		return 0
	}
	want := toSet(relevant)

	for i, code := range topK(retrieved, k) {
		if _, ok := want[code]; ok {
			return 1 / float64(i+1)
		}
	}
	return 0
}

func topK(retrieved []string, k int) []string {
	if k >= 0 && k < len(retrieved) {
		return retrieved[:k]
	}
	return retrieved
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
