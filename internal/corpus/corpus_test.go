// File path: internal/corpus/corpus_test.go
package corpus

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/nicodishanthj/accelmatch/internal/cache"
	"github.com/nicodishanthj/accelmatch/internal/embedding"
)

// fakeProvider hashes nothing: it returns a fixed-dimension vector whose
// first component encodes the text length, which is enough to make rows
// distinguishable and deterministic.
type fakeProvider struct {
	dim   int
	calls int
	fail  bool
}

func (p *fakeProvider) Embed(ctx context.Context, texts []string, task embedding.Task) ([][]float32, error) {
	p.calls++
	if p.fail {
		return nil, errors.New("provider down")
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		row := make([]float32, p.dim)
		row[0] = float32(len(text))
		if p.dim > 1 {
			row[1] = 1
		}
		out[i] = row
	}
	return out, nil
}

func (p *fakeProvider) Name() string { return "fake" }

func newTestIndex(t *testing.T, provider embedding.Provider, fields []string) *Index {
	t.Helper()
	dir := t.TempDir()
	pair := cache.NewPair(filepath.Join(dir, "vec.bin"), filepath.Join(dir, "text.txt"))
	return NewIndex("test", fields, pair, embedding.NewService(provider, nil))
}

func assertConsistent(t *testing.T, ix *Index) {
	t.Helper()
	texts, matrix := ix.Snapshot()
	if len(texts) != len(matrix) {
		t.Fatalf("invariant broken: %d texts, %d matrix rows", len(texts), len(matrix))
	}
}

func TestJoinFieldsSkipsEmpty(t *testing.T) {
	row := Row{"name": "Search Tuner", "description": "", "extra": "ignored"}
	got := JoinFields(row, []string{"name", "description"})
	if got != "Search Tuner" {
		t.Fatalf("joined text = %q", got)
	}
	row["description"] = "relevance tooling"
	if got := JoinFields(row, []string{"name", "description"}); got != "Search Tuner | relevance tooling" {
		t.Fatalf("joined text = %q", got)
	}
}

func TestLoadBuildsAndCaches(t *testing.T) {
	provider := &fakeProvider{dim: 4}
	ix := newTestIndex(t, provider, []string{"name"})
	rows := []Row{{"name": "alpha"}, {"name": "beta"}}
	if err := ix.Load(context.Background(), rows); err != nil {
		t.Fatalf("load: %v", err)
	}
	assertConsistent(t, ix)
	if ix.Len() != 2 || ix.Dim() != 4 {
		t.Fatalf("len=%d dim=%d, want 2/4", ix.Len(), ix.Dim())
	}
	firstCalls := provider.calls

	// Same rows again: the cache must satisfy the load without embedding.
	if err := ix.Load(context.Background(), rows); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if provider.calls != firstCalls {
		t.Fatalf("fresh cache still re-embedded (calls %d -> %d)", firstCalls, provider.calls)
	}
}

func TestLoadDetectsStaleCache(t *testing.T) {
	provider := &fakeProvider{dim: 4}
	ix := newTestIndex(t, provider, []string{"name"})
	if err := ix.Load(context.Background(), []Row{{"name": "alpha"}, {"name": "beta"}}); err != nil {
		t.Fatal(err)
	}
	calls := provider.calls
	// Reordered rows must be treated as stale and fully re-embedded.
	if err := ix.Load(context.Background(), []Row{{"name": "beta"}, {"name": "alpha"}}); err != nil {
		t.Fatal(err)
	}
	if provider.calls == calls {
		t.Fatal("reordered corpus did not trigger a rebuild")
	}
	assertConsistent(t, ix)
}

func TestAppendFastPath(t *testing.T) {
	provider := &fakeProvider{dim: 4}
	ix := newTestIndex(t, provider, []string{"description"})
	if err := ix.Load(context.Background(), []Row{{"description": "first"}}); err != nil {
		t.Fatal(err)
	}
	persisted := 0
	err := ix.Append(context.Background(), Row{"description": "second"}, func(Row) error {
		persisted++
		return nil
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if persisted != 1 {
		t.Fatalf("persist hook ran %d times, want 1", persisted)
	}
	if ix.Len() != 2 {
		t.Fatalf("len = %d, want 2", ix.Len())
	}
	assertConsistent(t, ix)
}

func TestAppendDuplicate(t *testing.T) {
	provider := &fakeProvider{dim: 4}
	ix := newTestIndex(t, provider, []string{"description"})
	if err := ix.Load(context.Background(), []Row{{"description": "Voice Notes"}}); err != nil {
		t.Fatal(err)
	}
	// Case and spacing differ; normalized comparison must still match.
	err := ix.Append(context.Background(), Row{"description": "  voice   notes "}, nil)
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
	if ix.Len() != 1 {
		t.Fatalf("duplicate mutated the corpus: len=%d", ix.Len())
	}
	assertConsistent(t, ix)
}

func TestAppendEmpty(t *testing.T) {
	ix := newTestIndex(t, &fakeProvider{dim: 4}, []string{"description"})
	if err := ix.Append(context.Background(), Row{"description": "   "}, nil); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("err = %v, want ErrEmptyText", err)
	}
}

func TestAppendModelChangeRebuildsWholeCorpus(t *testing.T) {
	provider := &fakeProvider{dim: 4}
	ix := newTestIndex(t, provider, []string{"description"})
	if err := ix.Load(context.Background(), []Row{{"description": "first"}, {"description": "second"}}); err != nil {
		t.Fatal(err)
	}
	// Simulate a model change: new vectors come back with another width.
	provider.dim = 8
	if err := ix.Append(context.Background(), Row{"description": "third"}, nil); err != nil {
		t.Fatalf("append after model change: %v", err)
	}
	if ix.Len() != 3 {
		t.Fatalf("len = %d, want 3", ix.Len())
	}
	if ix.Dim() != 8 {
		t.Fatalf("dim = %d, want 8 after full re-embed", ix.Dim())
	}
	_, matrix := ix.Snapshot()
	for i, row := range matrix {
		if len(row) != 8 {
			t.Fatalf("row %d has dim %d after re-embed", i, len(row))
		}
	}
	assertConsistent(t, ix)
}

func TestAppendEmbedFailureLeavesCorpusUntouched(t *testing.T) {
	provider := &fakeProvider{dim: 4}
	ix := newTestIndex(t, provider, []string{"description"})
	if err := ix.Load(context.Background(), []Row{{"description": "first"}}); err != nil {
		t.Fatal(err)
	}
	provider.fail = true
	if err := ix.Append(context.Background(), Row{"description": "second"}, nil); err == nil {
		t.Fatal("append with failing provider must error")
	}
	if ix.Len() != 1 {
		t.Fatalf("failed append mutated the corpus: len=%d", ix.Len())
	}
	assertConsistent(t, ix)
}

func TestAppendPersistFailureAborts(t *testing.T) {
	provider := &fakeProvider{dim: 4}
	ix := newTestIndex(t, provider, []string{"description"})
	if err := ix.Load(context.Background(), []Row{{"description": "first"}}); err != nil {
		t.Fatal(err)
	}
	err := ix.Append(context.Background(), Row{"description": "second"}, func(Row) error {
		return errors.New("disk full")
	})
	if err == nil {
		t.Fatal("persist failure must abort the append")
	}
	if ix.Len() != 1 {
		t.Fatalf("aborted append mutated the corpus: len=%d", ix.Len())
	}
	assertConsistent(t, ix)
}

func TestEnsureDimRebuilds(t *testing.T) {
	provider := &fakeProvider{dim: 4}
	ix := newTestIndex(t, provider, []string{"description"})
	if err := ix.Load(context.Background(), []Row{{"description": "first"}}); err != nil {
		t.Fatal(err)
	}
	provider.dim = 16
	if err := ix.EnsureDim(context.Background(), 16); err != nil {
		t.Fatalf("ensure dim: %v", err)
	}
	if ix.Dim() != 16 {
		t.Fatalf("dim = %d after EnsureDim, want 16", ix.Dim())
	}
	// Matching dimensionality is a no-op.
	calls := provider.calls
	if err := ix.EnsureDim(context.Background(), 16); err != nil {
		t.Fatal(err)
	}
	if provider.calls != calls {
		t.Fatal("EnsureDim re-embedded a matching corpus")
	}
}

func TestConsistencyUnderMixedOperations(t *testing.T) {
	provider := &fakeProvider{dim: 4}
	ix := newTestIndex(t, provider, []string{"description"})
	if err := ix.Load(context.Background(), []Row{{"description": "seed"}}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 20; i++ {
		switch i % 4 {
		case 0, 1:
			err := ix.Append(context.Background(), Row{"description": fmt.Sprintf("record %d", i)}, nil)
			if err != nil && !errors.Is(err, ErrDuplicate) {
				t.Fatal(err)
			}
		case 2:
			if err := ix.Rebuild(context.Background()); err != nil {
				t.Fatal(err)
			}
		case 3:
			provider.dim += 2
			err := ix.Append(context.Background(), Row{"description": fmt.Sprintf("wide record %d", i)}, nil)
			if err != nil {
				t.Fatal(err)
			}
		}
		assertConsistent(t, ix)
	}
}

func TestLoadCSVWithCp1252Fallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "accelerators.csv")
	// 0x92 is a Windows-1252 right single quote, invalid as UTF-8.
	data := append([]byte("name,description\n"), []byte{'c', 'l', 'i', 'e', 'n', 't', 0x92, 's', ',', 'o', 'k', '\n'}...)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	rows, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("load csv: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0]["name"] != "client’s" {
		t.Fatalf("name = %q, want windows-1252 decoded text", rows[0]["name"])
	}
}

func TestLoadCSVIfPresentMissing(t *testing.T) {
	rows, err := LoadCSVIfPresent(filepath.Join(t.TempDir(), "absent.csv"))
	if err != nil || rows != nil {
		t.Fatalf("missing optional csv: rows=%v err=%v", rows, err)
	}
}
