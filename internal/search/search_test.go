package search

import (
	"context"
	"errors"
	"testing"
)

type scriptedSource struct {
	name    string
	results []Result
	err     error
}

func (s *scriptedSource) Name() string { return s.name }

func (s *scriptedSource) Search(ctx context.Context, query string, max int) ([]Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&scriptedSource{name: "docs"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(&scriptedSource{name: "docs"}); err == nil {
		t.Error("expected error for duplicate source name")
	}
	if r.Count() != 1 {
		t.Errorf("expected 1 source, got %d", r.Count())
	}
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&scriptedSource{name: "docs"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	r.Unregister("docs")
	if _, ok := r.Get("docs"); ok {
		t.Error("source should be gone after Unregister")
	}
	if r.Count() != 0 {
		t.Errorf("expected empty registry, got %d", r.Count())
	}
}

func TestRegistry_ListSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := r.Register(&scriptedSource{name: name}); err != nil {
			t.Fatalf("Register %s failed: %v", name, err)
		}
	}
	got := r.List()
	want := []string{"alpha", "mid", "zeta"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("List[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRegistry_SearchAll(t *testing.T) {
	r := NewRegistry()
	must := func(err error) {
		if err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}
	must(r.Register(&scriptedSource{name: "beta", results: []Result{{Source: "beta", Content: "b"}}}))
	must(r.Register(&scriptedSource{name: "alpha", results: []Result{{Source: "alpha", Content: "a"}}}))
	must(r.Register(&scriptedSource{name: "broken", err: errors.New("down")}))

	results, errs := r.SearchAll(context.Background(), "q", 10)
	if len(errs) != 1 {
		t.Fatalf("expected one source error, got %v", errs)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	// Concatenation follows source name order, not completion order.
	if results[0].Source != "alpha" || results[1].Source != "beta" {
		t.Errorf("results not in source order: %+v", results)
	}
}

func TestSortResults(t *testing.T) {
	results := []Result{
		{Source: "web", Content: "w1", Score: 0.5},
		{Source: "context", Content: "c1", Score: 0.5},
		{Source: "plug", Content: "p1", Score: 2.0},
		{Source: "context", Content: "c2", Score: 1.0},
	}
	sortResults(results)

	wantOrder := []string{"p1", "c2", "c1", "w1"}
	for i, want := range wantOrder {
		if results[i].Content != want {
			t.Errorf("position %d: got %q, want %q", i, results[i].Content, want)
		}
	}
}
