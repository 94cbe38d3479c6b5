// Package vecindex provides an in-memory flat vector index with a parallel
// chunk-text mapping and nearest-neighbor search by squared Euclidean
// distance, with concurrent distance computation across CPU cores.
package vecindex

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
)

// ErrDimensionMismatch is returned when a vector's width disagrees with the
// index's fixed dimensionality. Appends fail before any mutation occurs.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Result represents a single nearest-neighbor match.
type Result struct {
	Position int     `json:"position"` // ordinal insertion position
	Text     string  `json:"text"`     // chunk text at that position
	Distance float64 `json:"distance"` // squared Euclidean distance
}

// FlatIndex is an append-only flat collection of embedding vectors plus a
// parallel ordered sequence of chunk texts. The two grow in lockstep: entry
// i of the text mapping always describes vector i. Appends take the write
// lock, queries the read lock.
type FlatIndex struct {
	mu      sync.RWMutex
	dim     int // fixed width; 0 until the first append when unset
	vectors [][]float32
	texts   []string
}

// NewFlatIndex creates a FlatIndex with the given dimensionality.
// A dim of 0 adopts the width of the first appended batch.
func NewFlatIndex(dim int) *FlatIndex {
	return &FlatIndex{dim: dim}
}

// Size returns the number of indexed vectors.
func (ix *FlatIndex) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.vectors)
}

// Dim returns the index dimensionality, or 0 if not yet fixed.
func (ix *FlatIndex) Dim() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.dim
}

// Append adds vectors and their chunk texts to the index in one step, so the
// ordinal invariant (size == number of texts, matching insertion order)
// cannot be broken by the caller. Every vector is validated against the
// index width before anything is appended; on failure the index is left
// unchanged.
func (ix *FlatIndex) Append(vectors [][]float32, texts []string) error {
	if len(vectors) != len(texts) {
		return fmt.Errorf("append: %d vectors but %d texts", len(vectors), len(texts))
	}
	if len(vectors) == 0 {
		return nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	dim := ix.dim
	if dim == 0 {
		dim = len(vectors[0])
		if dim == 0 {
			return fmt.Errorf("append: %w: empty vector", ErrDimensionMismatch)
		}
	}
	// Validate the whole batch before mutating anything
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("append: %w: vector %d has width %d, index width %d",
				ErrDimensionMismatch, i, len(v), dim)
		}
	}

	ix.dim = dim
	ix.vectors = append(ix.vectors, vectors...)
	ix.texts = append(ix.texts, texts...)
	return nil
}

// Query returns up to min(k, size) nearest neighbors of vector by squared
// Euclidean distance, ascending, ties broken by lower insertion position.
// The distance scan is partitioned across goroutines; each worker writes
// distances for a disjoint range of ordinals.
func (ix *FlatIndex) Query(vector []float32, k int) ([]Result, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if k <= 0 || len(ix.vectors) == 0 {
		return nil, nil
	}
	if len(vector) != ix.dim {
		return nil, fmt.Errorf("query: %w: vector has width %d, index width %d",
			ErrDimensionMismatch, len(vector), ix.dim)
	}
	if k > len(ix.vectors) {
		k = len(ix.vectors)
	}

	distances := make([]float64, len(ix.vectors))

	numWorkers := runtime.NumCPU()
	if numWorkers > len(ix.vectors) {
		numWorkers = len(ix.vectors)
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	span := (len(ix.vectors) + numWorkers - 1) / numWorkers
	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		start := w * span
		end := start + span
		if end > len(ix.vectors) {
			end = len(ix.vectors)
		}
		if start >= end {
			break
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				v := ix.vectors[i]
				var sum float64
				for j := range vector {
					d := float64(vector[j]) - float64(v[j])
					sum += d * d
				}
				distances[i] = sum
			}
		}(start, end)
	}
	wg.Wait()

	order := make([]int, len(distances))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		if distances[order[a]] != distances[order[b]] {
			return distances[order[a]] < distances[order[b]]
		}
		return order[a] < order[b]
	})

	results := make([]Result, k)
	for i := 0; i < k; i++ {
		pos := order[i]
		results[i] = Result{
			Position: pos,
			Text:     ix.texts[pos],
			Distance: distances[pos],
		}
	}
	return results, nil
}
