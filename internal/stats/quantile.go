package stats

import (
	"fmt"
	"sort"
)

// Quartile returns the q-th quantile of values using the lower (nearest-rank)
// method: the element at index floor(q*(n-1)) of the sorted slice. No
// interpolation is performed, so heavily skewed small batches keep their
// quartiles on observed values.
func Quartile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	idx := int(q * float64(len(sorted)-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// IQR returns the interquartile range Q3-Q1 of values.
func IQR(values []float64) float64 {
	return Quartile(values, 0.75) - Quartile(values, 0.25)
}

// Mean returns the arithmetic mean of values, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// QuantileBuckets assigns each of the n input values to one of k buckets of
// near-equal population, returning bucket numbers 1..k where bucket 1 holds
// the lowest values.
//
// Equal values land in the same bucket when the distribution allows it. When
// it does not (e.g. most observations tied at a single value), ties are broken
// by stable original order before binning, so the function never produces
// fewer than k populated buckets as long as n >= k.
func QuantileBuckets(values []float64, k int) ([]int, error) {
	n := len(values)
	if k < 2 {
		return nil, fmt.Errorf("quantile buckets: k must be >= 2, got %d", k)
	}
	if n < k {
		return nil, fmt.Errorf("quantile buckets: need at least %d values, got %d", k, n)
	}

	if buckets, ok := valueBuckets(values, k); ok {
		return buckets, nil
	}
	return rankBuckets(values, k), nil
}

// valueBuckets bins by empirical quantile edges so that equal values share a
// bucket. Returns ok=false when the edges collapse and fewer than k buckets
// would be populated.
func valueBuckets(values []float64, k int) ([]int, bool) {
	edges := make([]float64, 0, k-1)
	for j := 1; j < k; j++ {
		edges = append(edges, Quartile(values, float64(j)/float64(k)))
	}

	buckets := make([]int, len(values))
	populated := make(map[int]struct{}, k)
	for i, v := range values {
		b := 1
		for _, e := range edges {
			if v > e {
				b++
			}
		}
		buckets[i] = b
		populated[b] = struct{}{}
	}

	return buckets, len(populated) == k
}

// rankBuckets bins by stable rank: values are ordered ascending with original
// position as tie-break, then cut into k runs of near-equal length.
func rankBuckets(values []float64, k int) []int {
	n := len(values)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return values[order[a]] < values[order[b]]
	})

	buckets := make([]int, n)
	for pos, idx := range order {
		buckets[idx] = pos*k/n + 1
	}
	return buckets
}
