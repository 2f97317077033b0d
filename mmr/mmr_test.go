package mmr

import "testing"

func TestSelectPrefersRelevanceWhenLambdaOne(t *testing.T) {
	query := []float32{1, 0}
	candidates := [][]float32{
		{0, 1},
		{1, 0},
		{0.9, 0.1},
	}
	got := Select(query, candidates, 1.0, 2)
	want := []int{1, 2}
	assertEqual(t, got, want)
}

func TestSelectPadsWithNegativeOneWhenFewerCandidates(t *testing.T) {
	query := []float32{1, 0}
	candidates := [][]float32{{1, 0}}
	got := Select(query, candidates, 0.5, 3)
	want := []int{0, -1, -1}
	assertEqual(t, got, want)
}

func TestSelectZeroKReturnsEmpty(t *testing.T) {
	got := Select([]float32{1, 0}, [][]float32{{1, 0}}, 0.5, 0)
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %#v", got)
	}
}

func TestSelectNoCandidates(t *testing.T) {
	got := Select([]float32{1, 0}, nil, 0.5, 2)
	want := []int{-1, -1}
	assertEqual(t, got, want)
}

func TestSelectDiversifiesWhenLambdaZero(t *testing.T) {
	query := []float32{1, 0}
	candidates := [][]float32{
		{1, 0},
		{1, 0.001},
		{0, 1},
	}
	got := Select(query, candidates, 0.0, 2)
	if got[0] != 0 {
		t.Fatalf("expected first pick to be index 0 (ties go to lowest index), got %v", got)
	}
	if got[1] != 2 {
		t.Fatalf("expected second pick to favor the dissimilar candidate, got %v", got)
	}
}

func TestSelectTiesPickLowestIndex(t *testing.T) {
	query := []float32{1, 0}
	candidates := [][]float32{
		{1, 0},
		{1, 0},
	}
	got := Select(query, candidates, 0.5, 1)
	if got[0] != 0 {
		t.Fatalf("expected tie to resolve to index 0, got %v", got)
	}
}

func assertEqual(t *testing.T, got, want []int) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %v want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("index %d: got %v want %v", i, got, want)
		}
	}
}
