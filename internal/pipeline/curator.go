package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/felixgeelhaar/ace/internal/memory"
)

// bulletID derives a deterministic ID for a proposed bullet. The same
// trajectory proposing the same content always yields the same ID.
func bulletID(trajectoryID, content string) string {
	sum := sha256.Sum256([]byte(trajectoryID + "\x00" + content))
	return hex.EncodeToString(sum[:])[:16]
}

// normalizeContent collapses whitespace and case for exact-match
// deduplication.
func normalizeContent(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func typeTag(t string) string {
	t = strings.TrimSpace(strings.ToLower(t))
	if t == "" {
		return "general"
	}
	return t
}

// resolveID maps a model-reported bullet ID onto a state bullet. The
// context block shows eight character prefixes, so an exact match is
// tried first and then a unique prefix match. Ambiguous or unknown IDs
// resolve to nothing and are dropped.
func resolveID(st *memory.ContextState, id string) (string, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", false
	}
	if st.Contains(id) {
		return id, true
	}
	if len(id) < 4 {
		return "", false
	}
	var found string
	for _, b := range st.Bullets() {
		if strings.HasPrefix(b.ID, id) {
			if found != "" {
				return "", false
			}
			found = b.ID
		}
	}
	return found, found != ""
}

// ComputeDelta folds an insight into a single delta against the given
// state. It is pure: identical inputs yield identical deltas, and the
// state is only read. Proposals below minConfidence are dropped; a
// proposal whose normalized content and tag set exactly match an
// existing bullet becomes a helpful vote on that bullet instead of a
// duplicate addition. Feedback on IDs the state does not hold is
// silently dropped.
func ComputeDelta(st *memory.ContextState, insight Insight, trajectoryID string,
	at time.Time, minConfidence float64) memory.Delta {
	delta := memory.Delta{
		Updates:      make(map[string]memory.Adjustment),
		TrajectoryID: trajectoryID,
		CreatedAt:    at,
	}

	type contentKey struct {
		content string
		tags    string
	}
	existing := make(map[contentKey]string, st.Len())
	for _, b := range st.Bullets() {
		existing[contentKey{normalizeContent(b.Content), strings.Join(b.Tags, ",")}] = b.ID
	}

	vote := func(id string, helpful, harmful int) {
		adj := delta.Updates[id]
		adj.Helpful += helpful
		adj.Harmful += harmful
		delta.Updates[id] = adj
	}

	added := make(map[string]bool)
	for _, prop := range insight.Proposals {
		if prop.Confidence < minConfidence {
			continue
		}
		content := strings.TrimSpace(prop.Content)
		if content == "" {
			continue
		}
		tags := memory.NormalizeTags([]string{typeTag(prop.Type)})
		key := contentKey{normalizeContent(content), strings.Join(tags, ",")}
		if id, ok := existing[key]; ok {
			vote(id, 1, 0)
			continue
		}
		id := bulletID(trajectoryID, content)
		if added[id] || st.Contains(id) {
			continue
		}
		added[id] = true
		delta.Additions = append(delta.Additions, memory.NewBullet(id, content, tags, at))
	}

	for _, raw := range insight.Helpful {
		if id, ok := resolveID(st, raw); ok {
			vote(id, 1, 0)
		}
	}
	for _, raw := range insight.Harmful {
		if id, ok := resolveID(st, raw); ok {
			vote(id, 0, 1)
		}
	}

	removed := make(map[string]bool)
	for _, raw := range insight.Obsolete {
		id, ok := resolveID(st, raw)
		if !ok || removed[id] {
			continue
		}
		removed[id] = true
		delta.Removals = append(delta.Removals, id)
	}

	return delta
}
