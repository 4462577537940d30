package prompt

import (
	"errors"
	"strings"
	"testing"
)

func TestParseTrajectory_FullStructure(t *testing.T) {
	reply := `I worked through it.
STEPS: [read the input; sort it; binary search]
OUTCOME: found the target at index 3
SUCCESS: true`

	parts := ParseTrajectory(reply)
	if len(parts.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %v", parts.Steps)
	}
	if parts.Steps[1] != "sort it" {
		t.Errorf("expected step 'sort it', got %q", parts.Steps[1])
	}
	if parts.Outcome != "found the target at index 3" {
		t.Errorf("unexpected outcome: %q", parts.Outcome)
	}
	if !parts.Success {
		t.Error("expected success true")
	}
}

func TestParseTrajectory_Failure(t *testing.T) {
	reply := "STEPS: [tried]\nOUTCOME: could not solve\nSUCCESS: false"

	parts := ParseTrajectory(reply)
	if parts.Success {
		t.Error("expected success false")
	}
}

func TestParseTrajectory_FreeformFallback(t *testing.T) {
	long := strings.Repeat("x", 300)
	parts := ParseTrajectory(long)

	if len(parts.Steps) != 0 {
		t.Errorf("expected no steps, got %v", parts.Steps)
	}
	if len(parts.Outcome) != 200 {
		t.Errorf("expected outcome capped at 200 chars, got %d", len(parts.Outcome))
	}
	if !parts.Success {
		t.Error("freeform replies default to success")
	}
}

func TestParseTrajectory_ShortFreeform(t *testing.T) {
	parts := ParseTrajectory("  just an answer  ")
	if parts.Outcome != "just an answer" {
		t.Errorf("expected trimmed answer as outcome, got %q", parts.Outcome)
	}
}

func TestParseInsight_Full(t *testing.T) {
	reply := `HELPFUL: [aaa; bbb]
HARMFUL: [ccc]
OBSOLETE: []
INSIGHT: [Content: always validate input bounds; Type: Strategy; Confidence: 0.8]
INSIGHT: [Content: maps are unordered; Type: domain_knowledge; Confidence: 0.6]`

	parts, err := ParseInsight(reply)
	if err != nil {
		t.Fatalf("ParseInsight failed: %v", err)
	}
	if len(parts.Helpful) != 2 || parts.Helpful[0] != "aaa" || parts.Helpful[1] != "bbb" {
		t.Errorf("unexpected helpful ids: %v", parts.Helpful)
	}
	if len(parts.Harmful) != 1 || parts.Harmful[0] != "ccc" {
		t.Errorf("unexpected harmful ids: %v", parts.Harmful)
	}
	if len(parts.Obsolete) != 0 {
		t.Errorf("expected no obsolete ids, got %v", parts.Obsolete)
	}
	if len(parts.Proposals) != 2 {
		t.Fatalf("expected 2 proposals, got %d", len(parts.Proposals))
	}
	p := parts.Proposals[0]
	if p.Content != "always validate input bounds" || p.Kind != "strategy" || p.Confidence != 0.8 {
		t.Errorf("unexpected proposal: %+v", p)
	}
}

func TestParseInsight_EmptyBracketsAreStructure(t *testing.T) {
	parts, err := ParseInsight("HELPFUL: []\nHARMFUL: []\nOBSOLETE: []")
	if err != nil {
		t.Fatalf("empty lists are valid structure: %v", err)
	}
	if len(parts.Proposals) != 0 {
		t.Errorf("expected no proposals, got %v", parts.Proposals)
	}
}

func TestParseInsight_Malformed(t *testing.T) {
	_, err := ParseInsight("the model rambled and produced nothing structured")
	if !errors.Is(err, ErrMalformedOutput) {
		t.Fatalf("expected ErrMalformedOutput, got %v", err)
	}
}

func TestParseInsight_ConfidenceClamped(t *testing.T) {
	parts, err := ParseInsight("INSIGHT: [Content: c; Type: strategy; Confidence: 1.7]")
	if err != nil {
		t.Fatalf("ParseInsight failed: %v", err)
	}
	if parts.Proposals[0].Confidence != 1 {
		t.Errorf("expected confidence clamped to 1, got %f", parts.Proposals[0].Confidence)
	}
}

func TestParseInsight_SkipsUnparsableConfidence(t *testing.T) {
	reply := `INSIGHT: [Content: bad; Type: strategy; Confidence: ...]
INSIGHT: [Content: good; Type: strategy; Confidence: 0.9]`

	parts, err := ParseInsight(reply)
	if err != nil {
		t.Fatalf("ParseInsight failed: %v", err)
	}
	if len(parts.Proposals) != 1 || parts.Proposals[0].Content != "good" {
		t.Errorf("expected only the parsable proposal, got %v", parts.Proposals)
	}
}
