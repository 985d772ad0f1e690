package similarity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    []float32
		b    []float32
		want float64
	}{
		{name: "identical vectors", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, want: 1},
		{name: "scaled vectors", a: []float32{1, 2, 3}, b: []float32{2, 4, 6}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "zero vector", a: []float32{0, 0, 0}, b: []float32{0, 0, 0}, want: 0},
		{name: "zero against non-zero", a: []float32{0, 0}, b: []float32{3, 4}, want: 0},
		{name: "near-zero magnitude", a: []float32{1e-12, 0}, b: []float32{1, 0}, want: 0},
		{name: "empty vectors", a: []float32{}, b: []float32{}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CosineSimilarity(tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCosineSimilarityDimensionMismatch(t *testing.T) {
	_, err := CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3})
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestCosineSimilaritySymmetric(t *testing.T) {
	pairs := [][2][]float32{
		{{0.3, -1.2, 4.5}, {2.2, 0.1, -0.7}},
		{{1, 1, 1, 1}, {0, 1, 0, 1}},
		{{-5, 3}, {7, 11}},
	}

	for _, p := range pairs {
		ab, err := CosineSimilarity(p[0], p[1])
		require.NoError(t, err)
		ba, err := CosineSimilarity(p[1], p[0])
		require.NoError(t, err)
		assert.Equal(t, ab, ba)
	}
}

func TestCosineSimilarityNaNIsZero(t *testing.T) {
	nan := float32(math.NaN())
	got, err := CosineSimilarity([]float32{nan, 1}, []float32{1, 1})
	require.NoError(t, err)
	assert.False(t, math.IsNaN(got))
}

func TestMagnitudeAndDotProduct(t *testing.T) {
	assert.InDelta(t, 5.0, Magnitude([]float32{3, 4}), 1e-9)
	assert.Equal(t, 0.0, Magnitude([]float32{0, 0}))
	assert.InDelta(t, 32.0, DotProduct([]float32{1, 2, 3}, []float32{4, 5, 6}), 1e-9)
}

func TestNormalizeVector(t *testing.T) {
	t.Run("unit length", func(t *testing.T) {
		in := []float32{3, 4}
		out := NormalizeVector(in)
		assert.InDelta(t, 0.6, out[0], 1e-6)
		assert.InDelta(t, 0.8, out[1], 1e-6)
		assert.InDelta(t, 1.0, Magnitude(out), 1e-6)
		assert.Equal(t, []float32{3, 4}, in, "input must not be mutated")
	})

	t.Run("zero vector returns copy", func(t *testing.T) {
		in := []float32{0, 0, 0}
		out := NormalizeVector(in)
		assert.Equal(t, in, out)
		out[0] = 1
		assert.Equal(t, float32(0), in[0], "result must not alias input")
	})
}
