// Package rank scores context bullets against a query. Scoring is pure
// lexical overlap shaped by accumulated feedback; identical inputs always
// produce identical rankings.
package rank

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/felixgeelhaar/ace/internal/memory"
)

// Scored pairs a bullet with its relevance for one query.
type Scored struct {
	Bullet memory.Bullet
	Score  float64
}

// Tokenize lowercases the input, splits on any rune that is neither letter
// nor digit, and deduplicates preserving first occurrence.
func Tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// Score rates a bullet against pre-tokenized query terms: the number of
// distinct query tokens present in the bullet's content or tags, scaled by
// a feedback weight. The weight is monotonic in the net feedback margin,
// bounded in (0, 2), and equals 1 when the margin is zero, so a score is
// never negative and zero overlap always scores zero.
func Score(b memory.Bullet, queryTokens []string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	have := make(map[string]struct{})
	for _, tok := range Tokenize(b.Content) {
		have[tok] = struct{}{}
	}
	for _, tag := range b.Tags {
		for _, tok := range Tokenize(tag) {
			have[tok] = struct{}{}
		}
	}

	overlap := 0
	for _, tok := range queryTokens {
		if _, ok := have[tok]; ok {
			overlap++
		}
	}
	if overlap == 0 {
		return 0
	}
	return float64(overlap) * weight(b.Net())
}

// weight maps the net feedback margin onto (0, 2): 1 at zero margin,
// approaching 0 for strongly negative margins and 2 for strongly positive
// ones. tanh keeps it smooth and monotonic.
func weight(net int) float64 {
	return 1 + math.Tanh(float64(net)/10)
}

// Top returns the k best-scoring bullets for the query, positive scores
// only, ordered by score descending; ties break on earlier CreatedAt, then
// smaller ID. k <= 0 returns nil.
func Top(bullets []memory.Bullet, query string, k int) []Scored {
	if k <= 0 {
		return nil
	}
	tokens := Tokenize(query)

	scored := make([]Scored, 0, len(bullets))
	for _, b := range bullets {
		if s := Score(b, tokens); s > 0 {
			scored = append(scored, Scored{Bullet: b, Score: s})
		}
	}

	sort.Slice(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Bullet.CreatedAt.Equal(b.Bullet.CreatedAt) {
			return a.Bullet.CreatedAt.Before(b.Bullet.CreatedAt)
		}
		return a.Bullet.ID < b.Bullet.ID
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}
