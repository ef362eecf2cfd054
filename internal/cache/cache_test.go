// File path: internal/cache/cache_test.go
package cache

import (
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func tempPair(t *testing.T) *Pair {
	t.Helper()
	dir := t.TempDir()
	return NewPair(filepath.Join(dir, "vectors.bin"), filepath.Join(dir, "texts.txt"))
}

func TestLoadAbsent(t *testing.T) {
	p := tempPair(t)
	matrix, texts, ok, err := p.Load()
	if err != nil {
		t.Fatalf("load absent cache: %v", err)
	}
	if ok || matrix != nil || texts != nil {
		t.Fatal("absent cache must report not-ok with nil matrix and texts")
	}
}

func TestLoadWithOnlyOneFile(t *testing.T) {
	p := tempPair(t)
	if err := p.Save([][]float32{{1, 0}}, []string{"a"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := os.Remove(p.textPath); err != nil {
		t.Fatal(err)
	}
	_, _, ok, err := p.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ok {
		t.Fatal("cache with a missing text file must report absent")
	}
}

func TestRoundTrip(t *testing.T) {
	p := tempPair(t)
	matrix := [][]float32{
		{0.1, 0.2, 0.3},
		{-0.4, 0.5, 0.6},
	}
	texts := []string{"alpha | first", "beta | second"}
	if err := p.Save(matrix, texts); err != nil {
		t.Fatalf("save: %v", err)
	}
	gotMatrix, gotTexts, ok, err := p.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !ok {
		t.Fatal("saved cache reported absent")
	}
	if !reflect.DeepEqual(gotTexts, texts) {
		t.Fatalf("texts = %v, want %v", gotTexts, texts)
	}
	if len(gotMatrix) != len(matrix) {
		t.Fatalf("matrix rows = %d, want %d", len(gotMatrix), len(matrix))
	}
	for i := range matrix {
		for j := range matrix[i] {
			if math.Abs(float64(gotMatrix[i][j]-matrix[i][j])) > 1e-7 {
				t.Fatalf("matrix[%d][%d] = %f, want %f", i, j, gotMatrix[i][j], matrix[i][j])
			}
		}
	}
}

func TestLoadTruncatedMatrix(t *testing.T) {
	p := tempPair(t)
	if err := p.Save([][]float32{{1, 0}, {0, 1}}, []string{"a", "b"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, err := os.ReadFile(p.vecPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p.vecPath, data[:len(data)-3], 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := p.Load(); err == nil {
		t.Fatal("truncated matrix file must fail to load")
	}
}

func TestSaveCollapsesNewlines(t *testing.T) {
	p := tempPair(t)
	if err := p.Save([][]float32{{1}}, []string{" multi\nline record "}); err != nil {
		t.Fatalf("save: %v", err)
	}
	_, texts, ok, err := p.Load()
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if texts[0] != "multi line record" {
		t.Fatalf("stored line = %q, want embedded newline collapsed", texts[0])
	}
}

func TestStale(t *testing.T) {
	cached := []string{"a", "b", "c"}
	cases := []struct {
		name    string
		current []string
		want    bool
	}{
		{"identical", []string{"a", "b", "c"}, false},
		{"reordered", []string{"a", "c", "b"}, true},
		{"appended", []string{"a", "b", "c", "d"}, true},
		{"edited", []string{"a", "b", "x"}, true},
		{"truncated", []string{"a", "b"}, true},
	}
	for _, tc := range cases {
		if got := Stale(cached, tc.current); got != tc.want {
			t.Fatalf("%s: stale = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestStaleNilEquivalence(t *testing.T) {
	if Stale(nil, nil) {
		t.Fatal("two empty lists must compare fresh")
	}
	if !Stale(nil, []string{"a"}) {
		t.Fatal("empty cache against populated corpus must be stale")
	}
}

func TestSaveRowCountMismatch(t *testing.T) {
	p := tempPair(t)
	if err := p.Save([][]float32{{1, 2}}, []string{"a", "b"}); err == nil {
		t.Fatal("mismatched matrix/text lengths must refuse to save")
	}
}
