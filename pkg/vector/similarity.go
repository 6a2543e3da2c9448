package vector

import (
	"fmt"
	"math"
)

// CosineSimilarity computes dot(a, b) / (||a|| * ||b||). A zero vector yields
// a similarity of 0.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: cosine similarity dimension mismatch: %d vs %d", ErrSchemaConflict, len(a), len(b))
	}
	var dot, na2, nb2 float64
	for i := range a {
		va := float64(a[i])
		vb := float64(b[i])
		dot += va * vb
		na2 += va * va
		nb2 += vb * vb
	}
	if na2 == 0 || nb2 == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na2) * math.Sqrt(nb2)), nil
}

// DotProduct computes the inner product of two vectors.
func DotProduct(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: dot product dimension mismatch: %d vs %d", ErrSchemaConflict, len(a), len(b))
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot, nil
}

// L2Distance computes the Euclidean distance between two vectors.
func L2Distance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: L2 distance dimension mismatch: %d vs %d", ErrSchemaConflict, len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// L2Score converts an L2 distance into a similarity score in (0, 1].
func L2Score(distance float64) float64 {
	return 1.0 / (1.0 + distance)
}

// ScoreOrZero maps a score a store could not compute, such as the NaN a
// cosine distance gives for a zero vector, to 0.
func ScoreOrZero(s float64) float64 {
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return 0
	}
	return s
}

// Score evaluates the similarity of a and b under metric m, higher meaning
// more similar.
func Score(m Metric, a, b []float32) (float64, error) {
	switch m {
	case MetricCosine:
		return CosineSimilarity(a, b)
	case MetricDotProduct:
		return DotProduct(a, b)
	case MetricL2:
		d, err := L2Distance(a, b)
		if err != nil {
			return 0, err
		}
		return L2Score(d), nil
	default:
		return 0, fmt.Errorf("%w: unknown similarity metric %q", ErrSchemaConflict, m)
	}
}

// Finite reports whether every component of v is a finite number.
func Finite(v []float32) bool {
	for _, f := range v {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return false
		}
	}
	return true
}
