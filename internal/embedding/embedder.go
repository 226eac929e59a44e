package embedding

import (
	"context"
	"errors"
	"math"
)

// ErrEncodingFailed is returned when the underlying encoder cannot produce
// vectors. The port never substitutes zero vectors for a failed batch.
var ErrEncodingFailed = errors.New("embedding: encoding failed")

// ModelInfo describes the encoder behind an Embedder.
type ModelInfo struct {
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
}

// Embedder converts text into fixed-dimensional vectors. EmbedTexts returns
// one vector per input in input order; empty input yields empty output, not
// an error.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	EmbedText(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	ModelInfo() ModelInfo
}

// CosineSimilarity returns the cosine of the angle between a and b, in
// [-1, 1]. Zero-norm input yields 0 rather than NaN.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dot, normA, normB float64
	for i := 0; i < len(a); i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0.0 || normB == 0.0 {
		return 0.0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
