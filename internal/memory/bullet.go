// Package memory holds the context store: bullets, immutable state
// snapshots, and the delta-application rules that evolve them.
package memory

import (
	"sort"
	"strings"
	"time"
)

// Bullet is one knowledge fragment in the context store.
type Bullet struct {
	ID        string
	Content   string
	Tags      []string
	Helpful   int
	Harmful   int
	CreatedAt time.Time
}

// NewBullet builds a bullet with normalized tags and a UTC creation time.
// Counters start at zero; they only move through delta application.
func NewBullet(id, content string, tags []string, at time.Time) Bullet {
	return Bullet{
		ID:        id,
		Content:   content,
		Tags:      NormalizeTags(tags),
		CreatedAt: at.UTC(),
	}
}

// Net is the feedback margin: helpful minus harmful.
func (b Bullet) Net() int {
	return b.Helpful - b.Harmful
}

// HasTag reports whether the bullet carries the given tag (normalized form).
func (b Bullet) HasTag(tag string) bool {
	tag = strings.ToLower(strings.TrimSpace(tag))
	for _, t := range b.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// NormalizeTags lowercases, trims, deduplicates and sorts tag sets so that
// two bullets with the same tags compare equal regardless of input order.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}
