// Package hashing provides a deterministic offline embedder based on signed
// feature hashing of lowercase alphanumeric tokens.
package hashing

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const DefaultDimension = 384

var (
	ErrNoTokens = errors.New("text has no alphanumeric tokens")
	// ErrZeroVector means the signed token counts cancelled out exactly, so
	// the text has no direction to compare against.
	ErrZeroVector = errors.New("hashed tokens cancel out to a zero vector")
)

type Embedder struct {
	dimension int
}

func New(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Embedder{dimension: dimension}
}

func (e *Embedder) Dimension() int {
	return e.dimension
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vector, err := e.EmbedQuery(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, vector)
	}
	return out, nil
}

// EmbedQuery returns a unit vector. Each token adds +1 or -1 to one
// dimension, both picked from the token's FNV-64a hash. Text whose tokens
// cancel out fails with ErrZeroVector.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil, ErrNoTokens
	}

	acc := make([]float64, e.dimension)
	for _, token := range tokens {
		h := fnv.New64a()
		_, _ = h.Write([]byte(token))
		sum := h.Sum64()
		idx := int(sum % uint64(e.dimension))
		if sum>>63 == 1 {
			acc[idx]--
		} else {
			acc[idx]++
		}
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	if norm == 0 {
		return nil, ErrZeroVector
	}
	out := make([]float32, e.dimension)
	for i, v := range acc {
		out[i] = float32(v / norm)
	}
	return out, nil
}

func tokenize(s string) []string {
	out := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}
