// Package mmr implements maximal marginal relevance re-ranking: greedy
// selection that trades off query relevance against redundancy with
// already-selected candidates.
package mmr

import "math"

// Select returns up to k candidate indices in maximal-marginal-relevance
// order. At each step it picks the unselected candidate i maximizing
//
//	lambda*sim(query, i) - (1-lambda)*max_{s in selected} sim(s, i)
//
// Ties are broken by the smallest index. If there are fewer than k
// candidates, the result is padded with -1 so callers always get a
// length-k slice. A non-positive k or an empty candidates list returns an
// all -1 (or zero-length, for k<=0) slice.
func Select(query []float32, candidates [][]float32, lambda float64, k int) []int {
	outLen := k
	if outLen < 0 {
		outLen = 0
	}
	result := make([]int, outLen)
	for i := range result {
		result[i] = -1
	}

	n := len(candidates)
	if n == 0 || k <= 0 {
		return result
	}

	simToQuery := make([]float64, n)
	for i, c := range candidates {
		simToQuery[i] = cosine(query, c)
	}

	selected := make([]bool, n)
	maxSimToSelected := make([]float64, n)

	count := k
	if n < count {
		count = n
	}

	for pos := 0; pos < count; pos++ {
		best := -1
		bestScore := math.Inf(-1)
		for i := 0; i < n; i++ {
			if selected[i] {
				continue
			}
			score := lambda*simToQuery[i] - (1-lambda)*maxSimToSelected[i]
			if score > bestScore {
				bestScore = score
				best = i
			}
		}
		if best == -1 {
			break
		}
		selected[best] = true
		result[pos] = best

		for i := 0; i < n; i++ {
			if selected[i] {
				continue
			}
			if s := cosine(candidates[best], candidates[i]); s > maxSimToSelected[i] {
				maxSimToSelected[i] = s
			}
		}
	}
	return result
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
