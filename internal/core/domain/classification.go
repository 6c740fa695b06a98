package domain

import (
	"fmt"
	"math"
)

const (
	DefaultMaxChunkSize = 512
	DefaultMinChunkSize = 100

	// ProbabilityTolerance bounds the drift of a probability vector sum from 1.
	ProbabilityTolerance = 1e-6
)

// ProbabilityVector is indexed 0..6 for category indices 1..7.
type ProbabilityVector [CategoryCount]float64

func (v ProbabilityVector) Sum() float64 {
	var sum float64
	for _, p := range v {
		sum += p
	}
	return sum
}

// Argmax returns the zero-based position of the largest entry; ties go to the lowest position.
func (v ProbabilityVector) Argmax() int {
	best := 0
	for i := 1; i < CategoryCount; i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

func (v ProbabilityVector) Validate() error {
	for i, p := range v {
		if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
			return fmt.Errorf("entry %d is not a probability: %v", i+1, p)
		}
	}
	if sum := v.Sum(); math.Abs(sum-1) > ProbabilityTolerance {
		return fmt.Errorf("entries sum to %v", sum)
	}
	return nil
}

type ClassifyOptions struct {
	MaxChunkSize int `json:"maxChunkSize,omitempty"`
	MinChunkSize int `json:"minChunkSize,omitempty"`
}

// Normalize fills unset bounds with defaults.
func (o ClassifyOptions) Normalize() ClassifyOptions {
	out := o
	if out.MaxChunkSize <= 0 {
		out.MaxChunkSize = DefaultMaxChunkSize
	}
	if out.MinChunkSize <= 0 {
		out.MinChunkSize = DefaultMinChunkSize
	}
	if out.MinChunkSize > out.MaxChunkSize {
		out.MinChunkSize = out.MaxChunkSize
	}
	return out
}

type ClassifyRequest struct {
	Text    string          `json:"text"`
	Options ClassifyOptions `json:"options,omitempty"`
}

// RankedCategory is one row of the ranked classification output.
type RankedCategory struct {
	Index       int     `json:"index"`
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
	Similarity  float64 `json:"similarity"`
}

// ClassificationResult is immutable once produced.
type ClassificationResult struct {
	DominantIndex   int               `json:"dominantIndex"`
	DominantLabel   string            `json:"dominantLabel"`
	Vector          ProbabilityVector `json:"vector"`
	Confidence      float64           `json:"confidence"`
	CoherenceFlag   int               `json:"coherenceFlag"`
	CoveringCount   int               `json:"coveringCount"`
	ChunksProcessed int               `json:"chunksProcessed"`
	ChunksSkipped   int               `json:"chunksSkipped"`
	Ranking         []RankedCategory  `json:"ranking"`
	Narrative       *Propagation      `json:"narrative,omitempty"`
	Warnings        []string          `json:"warnings,omitempty"`
	ConfigVersion   int               `json:"configVersion"`
}
