// Package vector provides a flat inner-product index over unit-normalized
// embeddings. Vectors are addressed by the ordinal row at which they were
// added; row assignment is append-only and stable across save/load.
package vector

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/hyperjump/mitsuke/pkg/utils"
)

// Hit is a single search result: the row of the matched vector and its
// inner-product score. Scores over unit vectors equal cosine similarity.
type Hit struct {
	Row   int
	Score float64
}

// FlatIndex is a brute-force inner product index. All vectors are
// normalized on insert, and queries are normalized on search, so scores
// are cosine similarities.
type FlatIndex struct {
	dimensions int
	vectors    [][]float32
	mu         sync.RWMutex
}

// NewFlatIndex creates an empty index for vectors of the given dimension.
func NewFlatIndex(dimensions int) (*FlatIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &FlatIndex{
		dimensions: dimensions,
		vectors:    make([][]float32, 0),
	}, nil
}

// Dimensions returns the vector dimension the index was created with.
func (f *FlatIndex) Dimensions() int {
	return f.dimensions
}

// Add normalizes and appends a copy of vec, returning the row it was
// assigned.
func (f *FlatIndex) Add(vec []float32) (int, error) {
	if len(vec) != f.dimensions {
		return 0, fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vec), f.dimensions)
	}
	cp := make([]float32, f.dimensions)
	copy(cp, vec)
	utils.NormalizeL2(cp)
	f.mu.Lock()
	defer f.mu.Unlock()
	row := len(f.vectors)
	f.vectors = append(f.vectors, cp)
	return row, nil
}

// Search returns the top-k rows by inner product against a normalized
// copy of query, in descending score order. Ties keep insertion order.
// Returns exactly k hits when the index holds at least k vectors.
func (f *FlatIndex) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), f.dimensions)
	}
	q := make([]float32, f.dimensions)
	copy(q, query)
	utils.NormalizeL2(q)

	f.mu.RLock()
	defer f.mu.RUnlock()
	if k <= 0 || len(f.vectors) == 0 {
		return nil, nil
	}
	hits := make([]Hit, len(f.vectors))
	for i, vec := range f.vectors {
		var dot float64
		for j := 0; j < f.dimensions; j++ {
			dot += float64(q[j] * vec[j])
		}
		hits[i] = Hit{Row: i, Score: dot}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// Size returns the number of vectors in the index.
func (f *FlatIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}

// Reset drops all vectors.
func (f *FlatIndex) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectors = f.vectors[:0]
}

// Save persists the index to path, creating the directory if needed.
// Format: dimensions (4), n (4), then n vectors of dimensions*4 bytes,
// all little-endian.
func (f *FlatIndex) Save(path string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer out.Close()
	if err := binary.Write(out, binary.LittleEndian, uint32(f.dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(out, binary.LittleEndian, uint32(len(f.vectors))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for _, vec := range f.vectors {
		if _, err := out.Write(float32SliceToBytes(vec)); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

// Load reads the index from path and replaces the in-memory contents.
// A missing file is an error; dimensions must match.
func (f *FlatIndex) Load(path string) error {
	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open index file: %w", err)
	}
	defer in.Close()
	var dim, n uint32
	if err := binary.Read(in, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}
	if int(dim) != f.dimensions {
		return fmt.Errorf("dimension mismatch: file has %d, index expects %d", dim, f.dimensions)
	}
	if err := binary.Read(in, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read count: %w", err)
	}
	// The count is validated against the file size before allocation, so
	// a corrupt header cannot drive a huge preallocation.
	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat index file: %w", err)
	}
	const headerSize = 8
	want := headerSize + int64(n)*int64(f.dimensions)*4
	if info.Size() < want {
		return fmt.Errorf("index file truncated: header claims %d vectors (%d bytes), file has %d", n, want, info.Size())
	}
	vectors := make([][]float32, 0, n)
	buf := make([]byte, f.dimensions*4)
	for i := uint32(0); i < n; i++ {
		if _, err := io.ReadFull(in, buf); err != nil {
			return fmt.Errorf("read vector %d: %w", i, err)
		}
		vectors = append(vectors, bytesToFloat32Slice(buf))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectors = vectors
	return nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
