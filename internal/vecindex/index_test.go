package vecindex

import (
	"errors"
	"fmt"
	"testing"
)

func vec(vals ...float32) []float32 { return vals }

func TestAppend_GrowsSizeAndTextsInLockstep(t *testing.T) {
	ix := NewFlatIndex(2)

	if err := ix.Append([][]float32{vec(1, 0), vec(0, 1)}, []string{"a", "b"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if ix.Size() != 2 {
		t.Errorf("Size = %d, want 2", ix.Size())
	}

	if err := ix.Append([][]float32{vec(1, 1)}, []string{"c"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if ix.Size() != 3 {
		t.Errorf("Size = %d, want 3", ix.Size())
	}

	// Query for everything and verify positions map to the insertion order
	results, err := ix.Query(vec(0, 0), 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	texts := map[int]string{}
	for _, r := range results {
		texts[r.Position] = r.Text
	}
	if texts[0] != "a" || texts[1] != "b" || texts[2] != "c" {
		t.Errorf("position→text mapping broken: %v", texts)
	}
}

func TestAppend_LengthMismatch(t *testing.T) {
	ix := NewFlatIndex(2)
	err := ix.Append([][]float32{vec(1, 0)}, []string{"a", "b"})
	if err == nil {
		t.Fatal("expected error for vector/text count mismatch")
	}
	if ix.Size() != 0 {
		t.Errorf("index mutated on failed append, size = %d", ix.Size())
	}
}

func TestAppend_DimensionMismatch_NoPartialMutation(t *testing.T) {
	ix := NewFlatIndex(3)
	err := ix.Append([][]float32{vec(1, 2, 3), vec(1, 2)}, []string{"ok", "bad"})
	if err == nil {
		t.Fatal("expected dimension mismatch error")
	}
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	if ix.Size() != 0 {
		t.Errorf("index partially mutated, size = %d", ix.Size())
	}
}

func TestAppend_AdoptsWidthOfFirstBatch(t *testing.T) {
	ix := NewFlatIndex(0)
	if err := ix.Append([][]float32{vec(1, 2, 3, 4)}, []string{"a"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if ix.Dim() != 4 {
		t.Errorf("Dim = %d, want 4", ix.Dim())
	}
	// Later batches must match the adopted width
	err := ix.Append([][]float32{vec(1, 2)}, []string{"b"})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch for changed width, got %v", err)
	}
}

func TestAppend_EmptyBatch(t *testing.T) {
	ix := NewFlatIndex(2)
	if err := ix.Append(nil, nil); err != nil {
		t.Fatalf("Append empty: %v", err)
	}
	if ix.Size() != 0 {
		t.Errorf("Size = %d, want 0", ix.Size())
	}
}

func TestQuery_NearestFirst(t *testing.T) {
	ix := NewFlatIndex(2)
	must(t, ix.Append([][]float32{
		vec(10, 10),
		vec(1, 1),
		vec(5, 5),
	}, []string{"far", "near", "mid"}))

	results, err := ix.Query(vec(0, 0), 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	want := []string{"near", "mid", "far"}
	for i, w := range want {
		if results[i].Text != w {
			t.Errorf("result %d: expected %q, got %q", i, w, results[i].Text)
		}
	}
	if results[0].Distance > results[1].Distance || results[1].Distance > results[2].Distance {
		t.Error("distances not ascending")
	}
}

func TestQuery_KLargerThanSize(t *testing.T) {
	ix := NewFlatIndex(2)
	must(t, ix.Append([][]float32{vec(1, 0), vec(0, 1)}, []string{"a", "b"}))

	results, err := ix.Query(vec(0, 0), 10)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected min(k, size) = 2 results, got %d", len(results))
	}
}

func TestQuery_EmptyIndex(t *testing.T) {
	ix := NewFlatIndex(2)
	results, err := ix.Query(vec(0, 0), 5)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected 0 results on empty index, got %d", len(results))
	}
}

func TestQuery_TieBrokenByInsertionOrder(t *testing.T) {
	ix := NewFlatIndex(2)
	// Equidistant points from the origin
	must(t, ix.Append([][]float32{
		vec(1, 0),
		vec(0, 1),
		vec(-1, 0),
	}, []string{"first", "second", "third"}))

	results, err := ix.Query(vec(0, 0), 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	for i, want := range []string{"first", "second", "third"} {
		if results[i].Text != want {
			t.Errorf("result %d: expected %q (lower ordinal wins ties), got %q", i, want, results[i].Text)
		}
	}
}

func TestQuery_DimensionMismatch(t *testing.T) {
	ix := NewFlatIndex(3)
	must(t, ix.Append([][]float32{vec(1, 2, 3)}, []string{"a"}))

	_, err := ix.Query(vec(1, 2), 1)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestQuery_ZeroK(t *testing.T) {
	ix := NewFlatIndex(2)
	must(t, ix.Append([][]float32{vec(1, 0)}, []string{"a"}))
	results, err := ix.Query(vec(0, 0), 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected 0 results for k=0, got %d", len(results))
	}
}

func TestQuery_LargeIndexPartitionedScan(t *testing.T) {
	ix := NewFlatIndex(4)
	n := 1000
	vectors := make([][]float32, n)
	texts := make([]string, n)
	for i := 0; i < n; i++ {
		vectors[i] = vec(float32(i), 0, 0, 0)
		texts[i] = fmt.Sprintf("chunk-%d", i)
	}
	must(t, ix.Append(vectors, texts))

	results, err := ix.Query(vec(500, 0, 0, 0), 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if results[0].Text != "chunk-500" {
		t.Errorf("expected chunk-500 nearest, got %q", results[0].Text)
	}
	// 499 and 501 are equidistant; lower ordinal first
	if results[1].Text != "chunk-499" || results[2].Text != "chunk-501" {
		t.Errorf("unexpected neighbors: %q, %q", results[1].Text, results[2].Text)
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
