// File path: internal/embedding/embedding_test.go
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
)

type scriptedProvider struct {
	name  string
	dim   int
	err   error
	calls int
}

func (p *scriptedProvider) Embed(ctx context.Context, texts []string, task Task) ([][]float32, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		row := make([]float32, p.dim)
		row[0] = 1
		out[i] = row
	}
	return out, nil
}

func (p *scriptedProvider) Name() string { return p.name }

func TestServiceEmptyInput(t *testing.T) {
	primary := &scriptedProvider{name: "primary", dim: 4}
	svc := NewService(primary, nil)
	vectors, err := svc.Embed(context.Background(), nil, TaskQuery)
	if err != nil || vectors != nil {
		t.Fatalf("empty input: vectors=%v err=%v, want nil/nil", vectors, err)
	}
	if primary.calls != 0 {
		t.Fatal("empty input must not reach the provider")
	}
}

func TestServiceLatchesFallback(t *testing.T) {
	primary := &scriptedProvider{name: "primary", err: fmt.Errorf("embed: %w", ErrQuota)}
	fallback := &scriptedProvider{name: "fallback", dim: 8}
	svc := NewService(primary, fallback)

	vectors, err := svc.Embed(context.Background(), []string{"a"}, TaskDocument)
	if err != nil {
		t.Fatalf("first call should succeed via fallback: %v", err)
	}
	if len(vectors) != 1 || len(vectors[0]) != 8 {
		t.Fatalf("fallback vectors not returned: %v", vectors)
	}
	if !svc.Degraded() {
		t.Fatal("service did not latch after primary failure")
	}

	if _, err := svc.Embed(context.Background(), []string{"b"}, TaskDocument); err != nil {
		t.Fatalf("latched call failed: %v", err)
	}
	if primary.calls != 1 {
		t.Fatalf("primary called %d times after latching, want 1", primary.calls)
	}
	if fallback.calls != 2 {
		t.Fatalf("fallback called %d times, want 2", fallback.calls)
	}
}

func TestServiceLatchesOnAnyProviderError(t *testing.T) {
	primary := &scriptedProvider{name: "primary", err: errors.New("connection refused")}
	fallback := &scriptedProvider{name: "fallback", dim: 4}
	svc := NewService(primary, fallback)
	if _, err := svc.Embed(context.Background(), []string{"a"}, TaskQuery); err != nil {
		t.Fatalf("fallback should absorb a non-quota primary failure: %v", err)
	}
	if !svc.Degraded() {
		t.Fatal("non-quota provider failure must still latch")
	}
}

func TestServiceNoFallbackPropagates(t *testing.T) {
	primary := &scriptedProvider{name: "primary", err: fmt.Errorf("embed: %w", ErrQuota)}
	svc := NewService(primary, nil)
	_, err := svc.Embed(context.Background(), []string{"a"}, TaskQuery)
	if err == nil {
		t.Fatal("primary failure without fallback must propagate")
	}
	if !errors.Is(err, ErrQuota) {
		t.Fatalf("quota classification lost: %v", err)
	}
	if svc.Degraded() {
		t.Fatal("service without a fallback must not latch")
	}
}

func TestServiceContextErrorDoesNotLatch(t *testing.T) {
	primary := &scriptedProvider{name: "primary", err: context.Canceled}
	fallback := &scriptedProvider{name: "fallback", dim: 4}
	svc := NewService(primary, fallback)
	if _, err := svc.Embed(context.Background(), []string{"a"}, TaskQuery); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancellation must propagate, got %v", err)
	}
	if svc.Degraded() {
		t.Fatal("cancellation must not latch the fallback")
	}
}

func TestServiceReset(t *testing.T) {
	primary := &scriptedProvider{name: "primary", err: errors.New("boom")}
	fallback := &scriptedProvider{name: "fallback", dim: 4}
	svc := NewService(primary, fallback)
	if _, err := svc.Embed(context.Background(), []string{"a"}, TaskQuery); err != nil {
		t.Fatal(err)
	}
	if svc.Name() != "fallback" {
		t.Fatalf("active provider = %s, want fallback", svc.Name())
	}
	primary.err = nil
	primary.dim = 4
	svc.Reset()
	if svc.Degraded() {
		t.Fatal("reset did not clear the latch")
	}
	if _, err := svc.Embed(context.Background(), []string{"a"}, TaskQuery); err != nil {
		t.Fatal(err)
	}
	if primary.calls != 2 {
		t.Fatalf("primary not retried after reset: calls=%d", primary.calls)
	}
}

func TestLocalProviderDeterministicAndNormalized(t *testing.T) {
	local := NewLocalProvider(64)
	a, err := local.Embed(context.Background(), []string{"voice transcription demo"}, TaskDocument)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := local.Embed(context.Background(), []string{"voice transcription demo"}, TaskQuery)
	var norm, diff float64
	for i := range a[0] {
		norm += float64(a[0][i]) * float64(a[0][i])
		diff += math.Abs(float64(a[0][i] - b[0][i]))
	}
	if diff != 0 {
		t.Fatal("local embedder is not deterministic")
	}
	if math.Abs(math.Sqrt(norm)-1) > 1e-5 {
		t.Fatalf("local vector norm = %f, want 1", math.Sqrt(norm))
	}
	if local.Dim() != 64 {
		t.Fatalf("dim = %d, want 64", local.Dim())
	}
}

func TestLocalProviderSimilarityTracksOverlap(t *testing.T) {
	local := NewLocalProvider(256)
	vecs, err := local.Embed(context.Background(), []string{
		"voice transcription service",
		"voice transcription pipeline",
		"quarterly revenue forecast",
	}, TaskDocument)
	if err != nil {
		t.Fatal(err)
	}
	dot := func(a, b []float32) float64 {
		var s float64
		for i := range a {
			s += float64(a[i]) * float64(b[i])
		}
		return s
	}
	if dot(vecs[0], vecs[1]) <= dot(vecs[0], vecs[2]) {
		t.Fatal("overlapping texts should score higher than disjoint ones")
	}
}
