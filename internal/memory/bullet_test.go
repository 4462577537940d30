package memory

import (
	"testing"
	"time"
)

func TestNewBullet_NormalizesTags(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b := NewBullet("b1", "binary search needs sorted input", []string{"Algo", " search ", "algo"}, at)

	if len(b.Tags) != 2 {
		t.Fatalf("expected 2 tags, got %v", b.Tags)
	}
	if b.Tags[0] != "algo" || b.Tags[1] != "search" {
		t.Errorf("expected sorted lowercase tags, got %v", b.Tags)
	}
	if b.Helpful != 0 || b.Harmful != 0 {
		t.Errorf("expected zero counters, got helpful=%d harmful=%d", b.Helpful, b.Harmful)
	}
	if !b.CreatedAt.Equal(at) {
		t.Errorf("expected CreatedAt %v, got %v", at, b.CreatedAt)
	}
}

func TestNewBullet_ConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("X", 3600)
	at := time.Date(2025, 6, 1, 13, 0, 0, 0, loc)
	b := NewBullet("b1", "content", nil, at)

	if b.CreatedAt.Location() != time.UTC {
		t.Errorf("expected UTC CreatedAt, got %v", b.CreatedAt.Location())
	}
	if !b.CreatedAt.Equal(at) {
		t.Errorf("UTC conversion changed the instant: %v vs %v", b.CreatedAt, at)
	}
}

func TestBullet_Net(t *testing.T) {
	b := Bullet{Helpful: 5, Harmful: 2}
	if b.Net() != 3 {
		t.Errorf("expected net 3, got %d", b.Net())
	}

	b = Bullet{Helpful: 1, Harmful: 4}
	if b.Net() != -3 {
		t.Errorf("expected net -3, got %d", b.Net())
	}
}

func TestBullet_HasTag(t *testing.T) {
	b := NewBullet("b1", "content", []string{"algo", "search"}, time.Now())

	if !b.HasTag("algo") {
		t.Error("expected HasTag(algo) = true")
	}
	if !b.HasTag(" ALGO ") {
		t.Error("HasTag should normalize its argument")
	}
	if b.HasTag("missing") {
		t.Error("expected HasTag(missing) = false")
	}
}

func TestNormalizeTags_Empty(t *testing.T) {
	if got := NormalizeTags(nil); got != nil {
		t.Errorf("expected nil for nil input, got %v", got)
	}
	if got := NormalizeTags([]string{" ", ""}); got != nil {
		t.Errorf("expected nil for blank input, got %v", got)
	}
}
