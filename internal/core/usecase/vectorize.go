package usecase

import (
	"math"

	"github.com/kirillkom/prototype-classifier/internal/core/domain"
)

const (
	// DefaultTemperature scales rectified similarities before exponentiation.
	DefaultTemperature = 5.0
	// DefaultMinChunkLength marks shorter trimmed chunks as noise.
	DefaultMinChunkLength = 10
)

// meanVector averages equally sized vectors component-wise in slice order.
func meanVector(vectors [][]float32) []float64 {
	if len(vectors) == 0 {
		return nil
	}
	mean := make([]float64, len(vectors[0]))
	for _, v := range vectors {
		for i, x := range v {
			mean[i] += float64(x)
		}
	}
	n := float64(len(vectors))
	for i := range mean {
		mean[i] /= n
	}
	return mean
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// cosineSimilarity returns 0 when either vector has zero norm or the lengths differ.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// rectifiedSoftmax computes exp(max(0, s)*T) / Σ exp(max(0, s_j)*T).
// Negative similarities are floored to zero before exponentiation.
func rectifiedSoftmax(scores [domain.CategoryCount]float64, temperature float64) domain.ProbabilityVector {
	var out domain.ProbabilityVector
	var sum float64
	for i, s := range scores {
		if math.IsNaN(s) || s < 0 {
			s = 0
		}
		out[i] = math.Exp(s * temperature)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
