package similarity

import (
	"errors"
	"fmt"
	"math"
)

// ErrDimensionMismatch is returned when two vectors have different lengths
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// epsilon guards against division by near-zero magnitudes
const epsilon = 1e-10

// DotProduct computes the sum of elementwise products.
// Callers must pass vectors of equal length; CosineSimilarity performs the check.
func DotProduct(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Magnitude computes the Euclidean norm of a vector
func Magnitude(v []float32) float64 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	return math.Sqrt(sum)
}

// CosineSimilarity computes dot(a,b) / (|a||b|) in the range [-1, 1].
// Degenerate inputs (near-zero magnitude, NaN) score 0 rather than failing.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	magA := Magnitude(a)
	magB := Magnitude(b)
	if magA < epsilon || magB < epsilon {
		return 0, nil
	}

	result := DotProduct(a, b) / (magA * magB)
	if math.IsNaN(result) {
		return 0, nil
	}
	return result, nil
}

// NormalizeVector returns a unit-length copy of v.
// A zero vector is returned as an unmodified copy.
func NormalizeVector(v []float32) []float32 {
	result := make([]float32, len(v))
	mag := Magnitude(v)
	if mag == 0 {
		copy(result, v)
		return result
	}

	for i, val := range v {
		result[i] = float32(float64(val) / mag)
	}
	return result
}
