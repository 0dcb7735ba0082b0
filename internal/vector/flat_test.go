package vector

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFlatIndex_AddAssignsRowsInOrder(t *testing.T) {
	idx, err := NewFlatIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		row, err := idx.Add([]float32{float32(i + 1), 0, 0})
		if err != nil {
			t.Fatal(err)
		}
		if row != i {
			t.Errorf("row = %d, want %d", row, i)
		}
	}
	if idx.Size() != 4 {
		t.Errorf("size = %d, want 4", idx.Size())
	}
}

func TestFlatIndex_AddRejectsWrongDimension(t *testing.T) {
	idx, _ := NewFlatIndex(3)
	if _, err := idx.Add([]float32{1, 0}); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestFlatIndex_SearchOrdersByScore(t *testing.T) {
	idx, _ := NewFlatIndex(2)
	// Unit vectors at increasing angles from the x axis.
	vecs := [][]float32{
		{0, 1},   // orthogonal to query
		{1, 0},   // identical to query
		{1, 1},   // 45 degrees
		{-1, 0},  // opposite
	}
	for _, v := range vecs {
		if _, err := idx.Add(v); err != nil {
			t.Fatal(err)
		}
	}
	hits, err := idx.Search([]float32{2, 0}, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 4 {
		t.Fatalf("got %d hits, want 4", len(hits))
	}
	wantRows := []int{1, 2, 0, 3}
	for i, h := range hits {
		if h.Row != wantRows[i] {
			t.Errorf("hit %d: row = %d, want %d", i, h.Row, wantRows[i])
		}
	}
	if math.Abs(hits[0].Score-1.0) > 1e-5 {
		t.Errorf("top score = %f, want 1.0", hits[0].Score)
	}
	if math.Abs(hits[1].Score-math.Sqrt2/2) > 1e-5 {
		t.Errorf("second score = %f, want %f", hits[1].Score, math.Sqrt2/2)
	}
}

func TestFlatIndex_SearchNormalizesQuery(t *testing.T) {
	idx, _ := NewFlatIndex(2)
	idx.Add([]float32{1, 0})
	// A scaled query must produce the same cosine score as the unit query.
	big, err := idx.Search([]float32{100, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	unit, err := idx.Search([]float32{1, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(big[0].Score-unit[0].Score) > 1e-6 {
		t.Errorf("scaled query score %f != unit query score %f", big[0].Score, unit[0].Score)
	}
}

func TestFlatIndex_SearchTruncatesK(t *testing.T) {
	idx, _ := NewFlatIndex(2)
	idx.Add([]float32{1, 0})
	idx.Add([]float32{0, 1})
	hits, err := idx.Search([]float32{1, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Errorf("got %d hits, want 2", len(hits))
	}
}

func TestFlatIndex_SearchEmpty(t *testing.T) {
	idx, _ := NewFlatIndex(2)
	hits, err := idx.Search([]float32{1, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if hits != nil {
		t.Errorf("expected nil hits on empty index, got %v", hits)
	}
}

func TestFlatIndex_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "products.vec")

	src, _ := NewFlatIndex(3)
	src.Add([]float32{1, 0, 0})
	src.Add([]float32{0, 2, 0})
	src.Add([]float32{0, 0, 3})
	if err := src.Save(path); err != nil {
		t.Fatal(err)
	}

	dst, _ := NewFlatIndex(3)
	if err := dst.Load(path); err != nil {
		t.Fatal(err)
	}
	if dst.Size() != 3 {
		t.Fatalf("loaded size = %d, want 3", dst.Size())
	}
	hits, err := dst.Search([]float32{0, 1, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if hits[0].Row != 1 {
		t.Errorf("top row = %d, want 1", hits[0].Row)
	}
	if math.Abs(hits[0].Score-1.0) > 1e-5 {
		t.Errorf("top score = %f, want 1.0", hits[0].Score)
	}
}

func TestFlatIndex_LoadMissingFileErrors(t *testing.T) {
	idx, _ := NewFlatIndex(3)
	if err := idx.Load(filepath.Join(t.TempDir(), "absent.vec")); err == nil {
		t.Error("expected error loading missing file")
	}
}

func TestFlatIndex_LoadRejectsOversizedCount(t *testing.T) {
	// Header claims close to 2^32 vectors over an 8-byte file. Load must
	// refuse before allocating for the claimed count.
	dir := t.TempDir()
	path := filepath.Join(dir, "products.vec")
	header := make([]byte, 8)
	binary.LittleEndian.PutUint32(header[0:4], 3)
	binary.LittleEndian.PutUint32(header[4:8], math.MaxUint32)
	if err := os.WriteFile(path, header, 0644); err != nil {
		t.Fatal(err)
	}
	idx, _ := NewFlatIndex(3)
	err := idx.Load(path)
	if err == nil {
		t.Fatal("expected error for oversized vector count")
	}
	if !strings.Contains(err.Error(), "truncated") {
		t.Errorf("error = %v, want truncation error", err)
	}
	if idx.Size() != 0 {
		t.Errorf("size = %d after failed load, want 0", idx.Size())
	}
}

func TestFlatIndex_LoadRejectsTruncatedBody(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "products.vec")
	src, _ := NewFlatIndex(3)
	src.Add([]float32{1, 0, 0})
	src.Add([]float32{0, 1, 0})
	if err := src.Save(path); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, raw[:len(raw)-4], 0644); err != nil {
		t.Fatal(err)
	}
	idx, _ := NewFlatIndex(3)
	if err := idx.Load(path); err == nil {
		t.Error("expected error loading truncated file")
	}
}

func TestFlatIndex_LoadDimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "products.vec")
	src, _ := NewFlatIndex(3)
	src.Add([]float32{1, 0, 0})
	if err := src.Save(path); err != nil {
		t.Fatal(err)
	}
	dst, _ := NewFlatIndex(4)
	if err := dst.Load(path); err == nil {
		t.Error("expected dimension mismatch error")
	}
}
