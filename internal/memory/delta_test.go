package memory

import (
	"errors"
	"testing"
	"time"
)

func ts(sec int) time.Time {
	return time.Date(2025, 6, 1, 12, 0, sec, 0, time.UTC)
}

func TestApplyDelta_Additions(t *testing.T) {
	s := NewState()
	d := Delta{
		Additions: []Bullet{
			NewBullet("b1", "first", []string{"a"}, ts(0)),
			NewBullet("b2", "second", []string{"b"}, ts(1)),
		},
	}

	next, err := ApplyDelta(s, d, DefaultPolicy)
	if err != nil {
		t.Fatalf("ApplyDelta failed: %v", err)
	}
	if next.Version() != 1 {
		t.Errorf("expected version 1, got %d", next.Version())
	}
	if next.Len() != 2 {
		t.Errorf("expected 2 bullets, got %d", next.Len())
	}
	// insertion order preserved
	got := next.Bullets()
	if got[0].ID != "b1" || got[1].ID != "b2" {
		t.Errorf("expected insertion order b1,b2, got %s,%s", got[0].ID, got[1].ID)
	}
	// input untouched
	if s.Len() != 0 || s.Version() != 0 {
		t.Error("input state mutated")
	}
}

func TestApplyDelta_DuplicateAgainstState(t *testing.T) {
	s := Restore([]Bullet{NewBullet("b1", "existing", nil, ts(0))}, 1)
	d := Delta{Additions: []Bullet{NewBullet("b1", "conflict", nil, ts(1))}}

	next, err := ApplyDelta(s, d, DefaultPolicy)
	if next != nil {
		t.Fatal("expected nil state on error")
	}
	var dup *DuplicateIDError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateIDError, got %v", err)
	}
	if dup.ID != "b1" {
		t.Errorf("expected offending id b1, got %q", dup.ID)
	}
	if s.Version() != 1 || s.Len() != 1 {
		t.Error("input state mutated on rejected delta")
	}
}

func TestApplyDelta_DuplicateWithinAdditions(t *testing.T) {
	s := NewState()
	d := Delta{Additions: []Bullet{
		NewBullet("b1", "one", nil, ts(0)),
		NewBullet("b1", "two", nil, ts(1)),
	}}

	if _, err := ApplyDelta(s, d, DefaultPolicy); err == nil {
		t.Fatal("expected error for duplicate ids within additions")
	}
}

func TestApplyDelta_Updates(t *testing.T) {
	s := Restore([]Bullet{
		{ID: "b1", Content: "c", Helpful: 2, Harmful: 1, CreatedAt: ts(0)},
	}, 1)
	d := Delta{Updates: map[string]Adjustment{
		"b1":      {Helpful: 1, Harmful: 2},
		"unknown": {Helpful: 5},
	}}

	next, err := ApplyDelta(s, d, DefaultPolicy)
	if err != nil {
		t.Fatalf("ApplyDelta failed: %v", err)
	}
	b, _ := next.Lookup("b1")
	if b.Helpful != 3 || b.Harmful != 3 {
		t.Errorf("expected counters 3/3, got %d/%d", b.Helpful, b.Harmful)
	}
	if next.Len() != 1 {
		t.Errorf("unknown-id update should be ignored, got %d bullets", next.Len())
	}
}

func TestApplyDelta_DecayFloorsAtZero(t *testing.T) {
	s := Restore([]Bullet{
		{ID: "b1", Content: "c", Helpful: 1, Harmful: 2, CreatedAt: ts(0)},
	}, 1)
	d := Delta{Updates: map[string]Adjustment{
		"b1": {Helpful: -5, Harmful: -5},
	}}

	next, err := ApplyDelta(s, d, DefaultPolicy)
	if err != nil {
		t.Fatalf("ApplyDelta failed: %v", err)
	}
	b, _ := next.Lookup("b1")
	if b.Helpful != 0 || b.Harmful != 0 {
		t.Errorf("expected counters floored to 0/0, got %d/%d", b.Helpful, b.Harmful)
	}
}

func TestApplyDelta_Removals(t *testing.T) {
	s := Restore([]Bullet{
		NewBullet("b1", "keep", nil, ts(0)),
		NewBullet("b2", "drop", nil, ts(1)),
	}, 3)
	d := Delta{Removals: []string{"b2", "never-existed"}}

	next, err := ApplyDelta(s, d, DefaultPolicy)
	if err != nil {
		t.Fatalf("ApplyDelta failed: %v", err)
	}
	if next.Len() != 1 {
		t.Fatalf("expected 1 bullet, got %d", next.Len())
	}
	if next.Contains("b2") {
		t.Error("b2 should have been removed")
	}
	if next.Version() != 4 {
		t.Errorf("expected version 4, got %d", next.Version())
	}
}

func TestApplyDelta_PruneEvictsLowestNetThenOldest(t *testing.T) {
	s := Restore([]Bullet{
		{ID: "b1", Content: "strong", Helpful: 5, CreatedAt: ts(0)},
		{ID: "b2", Content: "weak old", Helpful: 0, Harmful: 2, CreatedAt: ts(1)},
		{ID: "b3", Content: "weak new", Helpful: 0, Harmful: 2, CreatedAt: ts(2)},
	}, 1)
	d := Delta{Additions: []Bullet{NewBullet("b4", "incoming", nil, ts(3))}}

	next, err := ApplyDelta(s, d, Policy{MaxBullets: 3})
	if err != nil {
		t.Fatalf("ApplyDelta failed: %v", err)
	}
	if next.Len() != 3 {
		t.Fatalf("expected 3 bullets after prune, got %d", next.Len())
	}
	// b2 and b3 tie on net -2; b2 is older so it goes first.
	if next.Contains("b2") {
		t.Error("expected b2 (lowest net, oldest) evicted")
	}
	for _, id := range []string{"b1", "b3", "b4"} {
		if !next.Contains(id) {
			t.Errorf("expected %s to survive prune", id)
		}
	}
}

func TestApplyDelta_PruneTieBreaksByID(t *testing.T) {
	s := Restore([]Bullet{
		{ID: "bb", Content: "x", CreatedAt: ts(0)},
		{ID: "aa", Content: "y", CreatedAt: ts(0)},
	}, 1)
	d := Delta{Additions: []Bullet{{ID: "cc", Content: "z", Helpful: 1, CreatedAt: ts(1)}}}

	next, err := ApplyDelta(s, d, Policy{MaxBullets: 2})
	if err != nil {
		t.Fatalf("ApplyDelta failed: %v", err)
	}
	if next.Contains("aa") {
		t.Error("expected aa (equal net, equal created, smallest id) evicted")
	}
	if !next.Contains("bb") || !next.Contains("cc") {
		t.Error("expected bb and cc to survive")
	}
}

func TestApplyDelta_EmptyDeltaStillBumpsVersion(t *testing.T) {
	s := Restore([]Bullet{NewBullet("b1", "c", nil, ts(0))}, 2)

	next, err := ApplyDelta(s, Delta{}, DefaultPolicy)
	if err != nil {
		t.Fatalf("ApplyDelta failed: %v", err)
	}
	if next.Version() != 3 {
		t.Errorf("expected version 3, got %d", next.Version())
	}
	if next.Len() != 1 {
		t.Errorf("expected bullets untouched, got %d", next.Len())
	}
}

func TestDelta_Empty(t *testing.T) {
	if !(Delta{}).Empty() {
		t.Error("zero delta should be empty")
	}
	if (Delta{Removals: []string{"x"}}).Empty() {
		t.Error("delta with removals is not empty")
	}
}

func TestApplyDelta_ZeroPolicyUsesDefault(t *testing.T) {
	s := NewState()
	adds := make([]Bullet, 0, DefaultPolicy.MaxBullets)
	for i := 0; i < DefaultPolicy.MaxBullets; i++ {
		adds = append(adds, Bullet{ID: idN(i), Content: "c", CreatedAt: ts(i)})
	}
	next, err := ApplyDelta(s, Delta{Additions: adds}, Policy{})
	if err != nil {
		t.Fatalf("ApplyDelta failed: %v", err)
	}
	if next.Len() != DefaultPolicy.MaxBullets {
		t.Errorf("expected %d bullets, got %d", DefaultPolicy.MaxBullets, next.Len())
	}
}

func idN(i int) string {
	return string(rune('a'+i/26)) + string(rune('a'+i%26))
}
