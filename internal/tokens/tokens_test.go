// File path: internal/tokens/tokens_test.go
package tokens

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	got := Tokenize("Improve my catalog-form UX, v2!")
	want := []string{"improve", "my", "catalog", "form", "ux", "v2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("tokenize = %v, want %v", got, want)
	}
	if toks := Tokenize("   "); len(toks) != 0 {
		t.Fatalf("whitespace-only input produced tokens %v", toks)
	}
}

func TestLoadVocabulary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.txt")
	if err := os.WriteFile(path, []byte("search\nDashboards\n\n  ux \n"), 0o644); err != nil {
		t.Fatal(err)
	}
	vocab, err := LoadVocabulary(path)
	if err != nil {
		t.Fatalf("load vocabulary: %v", err)
	}
	for _, tok := range []string{"search", "dashboards", "ux"} {
		if !vocab.Contains(tok) {
			t.Fatalf("vocabulary missing %q", tok)
		}
	}
	if len(vocab) != 3 {
		t.Fatalf("vocabulary size = %d, want 3", len(vocab))
	}
}

func TestLoadVocabularyMissingFile(t *testing.T) {
	vocab, err := LoadVocabulary(filepath.Join(t.TempDir(), "absent.txt"))
	if err != nil {
		t.Fatalf("missing token list should not error, got %v", err)
	}
	if len(vocab) != 0 {
		t.Fatalf("missing token list produced %d tokens", len(vocab))
	}
}

func TestGapTrackerRebuildAndTop(t *testing.T) {
	catalog := NewVocabulary("search", "dashboards")
	requests := NewVocabulary("search", "voice")
	g := NewGapTracker(catalog, requests)
	g.Rebuild([]string{
		"voice transcription for calls",
		"voice notes",
		"search tuning",
	})
	top := g.Top(2)
	if len(top) != 2 {
		t.Fatalf("top returned %d entries, want 2", len(top))
	}
	if top[0].Token != "voice" || top[0].Count != 2 {
		t.Fatalf("top[0] = %+v, want voice x2", top[0])
	}
	// "search" is catalog vocabulary, never a gap.
	for _, tc := range g.Top(-1) {
		if tc.Token == "search" {
			t.Fatalf("catalog token %q counted as gap", tc.Token)
		}
	}
}

func TestGapTrackerObserveGrowsRequestVocabulary(t *testing.T) {
	g := NewGapTracker(NewVocabulary("search"), NewVocabulary())
	g.Observe("realtime captioning")
	_, requests := g.Vocabularies()
	if !requests.Contains("captioning") {
		t.Fatal("observe did not grow the request vocabulary")
	}
	g.Observe("realtime captioning")
	top := g.Top(1)
	if top[0].Count != 2 {
		t.Fatalf("count = %d after two observations, want 2", top[0].Count)
	}
}

func TestGapTrackerTieOrder(t *testing.T) {
	g := NewGapTracker(NewVocabulary(), NewVocabulary())
	g.Observe("zebra apple")
	top := g.Top(2)
	if top[0].Token != "apple" || top[1].Token != "zebra" {
		t.Fatalf("equal counts must order alphabetically, got %+v", top)
	}
}
