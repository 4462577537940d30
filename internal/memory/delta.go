package memory

import (
	"fmt"
	"sort"
	"time"
)

// Adjustment shifts a bullet's feedback counters. Negative values express
// decay; counters floor at zero when applied.
type Adjustment struct {
	Helpful int
	Harmful int
}

// Delta is one curation step against a ContextState: new bullets, counter
// adjustments for existing ones, and removals. A cycle produces exactly one
// delta and applies it exactly once.
type Delta struct {
	Additions    []Bullet
	Updates      map[string]Adjustment
	Removals     []string
	TrajectoryID string
	CreatedAt    time.Time
}

// Empty reports whether applying the delta would change nothing but the
// version counter.
func (d Delta) Empty() bool {
	return len(d.Additions) == 0 && len(d.Updates) == 0 && len(d.Removals) == 0
}

// Policy bounds the store during delta application.
type Policy struct {
	// MaxBullets is the store size ceiling enforced by pruning.
	MaxBullets int
}

// DefaultPolicy matches the stock store budget.
var DefaultPolicy = Policy{MaxBullets: 100}

// DuplicateIDError rejects a delta whose additions collide with existing
// bullet IDs or with each other.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("delta addition duplicates bullet id %q", e.ID)
}

// ApplyDelta produces the successor snapshot. Order of operations:
// validate additions, apply counter updates (unknown IDs ignored), apply
// removals (unknown IDs ignored), append additions, prune to the policy
// ceiling, increment the version. On error the input state is untouched
// and the returned state is nil.
//
// Replaying a delta is not idempotent: additions collide and updates
// double-count. Callers keep the one-delta-per-cycle rule.
func ApplyDelta(s *ContextState, d Delta, p Policy) (*ContextState, error) {
	if p.MaxBullets <= 0 {
		p.MaxBullets = DefaultPolicy.MaxBullets
	}

	seen := make(map[string]struct{}, s.Len()+len(d.Additions))
	for _, b := range s.bullets {
		seen[b.ID] = struct{}{}
	}
	for _, b := range d.Additions {
		if _, dup := seen[b.ID]; dup {
			return nil, &DuplicateIDError{ID: b.ID}
		}
		seen[b.ID] = struct{}{}
	}

	removed := make(map[string]struct{}, len(d.Removals))
	for _, id := range d.Removals {
		removed[id] = struct{}{}
	}

	next := make([]Bullet, 0, s.Len()+len(d.Additions))
	for _, b := range s.bullets {
		if adj, ok := d.Updates[b.ID]; ok {
			b.Helpful = floorZero(b.Helpful + adj.Helpful)
			b.Harmful = floorZero(b.Harmful + adj.Harmful)
		}
		if _, gone := removed[b.ID]; gone {
			continue
		}
		next = append(next, b)
	}
	next = append(next, d.Additions...)

	next = prune(next, p.MaxBullets)

	return &ContextState{bullets: next, version: s.version + 1}, nil
}

func floorZero(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// prune evicts bullets until the store fits the ceiling. Eviction order is
// deterministic: lowest net feedback first, then oldest CreatedAt, then
// smallest ID. Survivors keep their insertion order.
func prune(bullets []Bullet, max int) []Bullet {
	if len(bullets) <= max {
		return bullets
	}

	idx := make([]int, len(bullets))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool {
		a, b := bullets[idx[i]], bullets[idx[j]]
		if a.Net() != b.Net() {
			return a.Net() < b.Net()
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	drop := make(map[int]struct{}, len(bullets)-max)
	for _, i := range idx[:len(bullets)-max] {
		drop[i] = struct{}{}
	}

	kept := make([]Bullet, 0, max)
	for i, b := range bullets {
		if _, gone := drop[i]; gone {
			continue
		}
		kept = append(kept, b)
	}
	return kept
}
