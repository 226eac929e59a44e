package embedding

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarityIdenticalVector(t *testing.T) {
	v := []float32{0.3, -1.2, 4.5, 0.01}
	assert.InDelta(t, 1.0, CosineSimilarity(v, v), 1e-9)
}

func TestCosineSimilarityOppositeVectors(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{-1, -2, -3}
	assert.InDelta(t, -1.0, CosineSimilarity(a, b), 1e-9)
}

func TestCosineSimilarityOrthogonalVectors(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	assert.InDelta(t, 0.0, CosineSimilarity(a, b), 1e-9)
}

func TestCosineSimilarityZeroVector(t *testing.T) {
	v := []float32{1, 2, 3}
	zero := []float32{0, 0, 0}
	assert.Equal(t, 0.0, CosineSimilarity(v, zero))
	assert.Equal(t, 0.0, CosineSimilarity(zero, zero))
}

func TestCosineSimilarityLengthMismatch(t *testing.T) {
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}))
}

func TestCosineSimilarityWithinBounds(t *testing.T) {
	a := []float32{0.5, 0.1, -0.7, 2.2}
	b := []float32{-1.1, 0.4, 0.9, 0.3}
	s := CosineSimilarity(a, b)
	assert.True(t, s >= -1.0-1e-9 && s <= 1.0+1e-9)
	assert.False(t, math.IsNaN(s))
}
