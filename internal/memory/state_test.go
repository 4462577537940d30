package memory

import (
	"testing"
	"time"
)

func TestNewState_Empty(t *testing.T) {
	s := NewState()
	if s.Version() != 0 {
		t.Errorf("expected version 0, got %d", s.Version())
	}
	if s.Len() != 0 {
		t.Errorf("expected empty state, got %d bullets", s.Len())
	}
}

func TestRestore_CopiesInput(t *testing.T) {
	bullets := []Bullet{
		NewBullet("b1", "first", nil, time.Now()),
		NewBullet("b2", "second", nil, time.Now()),
	}
	s := Restore(bullets, 7)

	bullets[0].Content = "mutated"

	got, ok := s.Lookup("b1")
	if !ok {
		t.Fatal("expected b1 present")
	}
	if got.Content != "first" {
		t.Error("Restore should copy the input slice")
	}
	if s.Version() != 7 {
		t.Errorf("expected version 7, got %d", s.Version())
	}
}

func TestContextState_BulletsReturnsACopy(t *testing.T) {
	s := Restore([]Bullet{NewBullet("b1", "original", nil, time.Now())}, 1)

	got := s.Bullets()
	got[0].Content = "mutated"

	again, _ := s.Lookup("b1")
	if again.Content != "original" {
		t.Error("Bullets should return a copy, not the backing slice")
	}
}

func TestContextState_Lookup(t *testing.T) {
	s := Restore([]Bullet{
		NewBullet("b1", "first", nil, time.Now()),
		NewBullet("b2", "second", nil, time.Now()),
	}, 1)

	b, ok := s.Lookup("b2")
	if !ok {
		t.Fatal("expected b2 present")
	}
	if b.Content != "second" {
		t.Errorf("expected content 'second', got %q", b.Content)
	}

	if _, ok := s.Lookup("nope"); ok {
		t.Error("expected lookup miss for unknown id")
	}
	if s.Contains("nope") {
		t.Error("expected Contains false for unknown id")
	}
}
