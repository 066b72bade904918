package consensus

import "math"

// Vote is the outcome of an N-way plurality over one coded field.
type Vote[T comparable] struct {
	Consensus *T      // nil when no strict majority exists
	Agreement float64 // fraction of raters matching the consensus, 0 without one
}

// Plurality computes the strict-majority consensus over the given values.
// The consensus is the most common value when it is held by more than half of
// the raters; agreement is the size of that group divided by the rater count,
// rounded to two decimals (3 raters yield exactly 1.0, 0.67 or 0.0). Without
// a strict majority the consensus is nil and agreement is 0.
func Plurality[T comparable](values []T) Vote[T] {
	if len(values) == 0 {
		return Vote[T]{}
	}

	counts := make(map[T]int, len(values))
	for _, v := range values {
		counts[v]++
	}

	var winner T
	largest := 0
	for v, n := range counts {
		if n > largest {
			winner = v
			largest = n
		}
	}

	if largest*2 <= len(values) {
		return Vote[T]{}
	}

	agreement := math.Round(float64(largest)/float64(len(values))*100) / 100
	return Vote[T]{Consensus: &winner, Agreement: agreement}
}

// ScopedAverage returns the mean of the values whose category matches the
// reference category, or nil when no value qualifies. The two slices are
// parallel: categories[i] belongs to values[i].
func ScopedAverage(values []int, categories []string, reference string) *float64 {
	sum := 0
	count := 0
	for i, v := range values {
		if categories[i] == reference {
			sum += v
			count++
		}
	}
	if count == 0 {
		return nil
	}
	avg := float64(sum) / float64(count)
	return &avg
}
