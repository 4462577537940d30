// Package pipeline runs the generate, reflect, curate, apply cycle that
// grows the context store. One cycle takes an immutable state snapshot,
// asks the generator to solve the query with the top ranked bullets,
// asks the reflector to grade those bullets and propose new knowledge,
// folds the review into a single delta, and applies it.
package pipeline

import (
	"time"

	"github.com/felixgeelhaar/ace/internal/memory"
	"github.com/felixgeelhaar/ace/internal/stream"
)

// Trajectory is the recorded outcome of one generation pass.
type Trajectory struct {
	ID          string
	Query       string
	Steps       []string
	Outcome     string
	Success     bool
	Answer      string   // answer segments, concatenated
	Thinking    string   // thinking segments, concatenated
	UsedBullets []string // IDs of the bullets shown to the generator
	CreatedAt   time.Time
}

// Proposal is one candidate bullet from the reflector.
type Proposal struct {
	Content    string
	Type       string // strategy, domain_knowledge, pitfall, general
	Confidence float64
}

// Insight is the reflector's structured review of a trajectory.
type Insight struct {
	Helpful   []string
	Harmful   []string
	Obsolete  []string
	Proposals []Proposal
}

// CycleResult carries everything one successful cycle produced.
type CycleResult struct {
	Trajectory Trajectory
	Insight    Insight
	Delta      memory.Delta
	State      *memory.ContextState // post-apply
	Segments   []stream.Segment     // ordered thinking and answer segments
}
