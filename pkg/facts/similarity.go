package facts

import "math"

// Cosine returns a·b / (|a||b|). It is 0 when either vector has zero
// magnitude or when the dimensions differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))

	// Rounding can push identical vectors a hair past 1.
	if sim > 1 {
		return 1
	}
	if sim < -1 {
		return -1
	}
	return sim
}

// nearest scans candidates for the highest cosine similarity to query. The
// boolean is false when candidates is empty.
func nearest(query []float32, candidates []Candidate) (Candidate, float64, bool) {
	var (
		top   Candidate
		score = math.Inf(-1)
		found bool
	)

	for _, c := range candidates {
		sim := Cosine(query, c.Vector)
		if sim > score {
			top, score, found = c, sim, true
		}
	}

	return top, score, found
}
