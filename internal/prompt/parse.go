package prompt

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// ErrMalformedOutput signals that a model reply carried none of the
// structure the reflection contract requires. Cycles abort on it; the
// store stays untouched.
var ErrMalformedOutput = errors.New("model output carries no parsable structure")

// TrajectoryParts is the structured tail of a generation reply. Parsing is
// lenient: a freeform answer still yields usable parts.
type TrajectoryParts struct {
	Steps   []string
	Outcome string
	Success bool
}

// Proposal is a candidate context bullet extracted from a reflection.
type Proposal struct {
	Content    string
	Kind       string
	Confidence float64
}

// InsightParts is the parsed reflection reply: feedback on the bullets the
// solver saw, plus proposed new knowledge.
type InsightParts struct {
	Helpful   []string
	Harmful   []string
	Obsolete  []string
	Proposals []Proposal
}

var (
	stepsRe   = regexp.MustCompile(`(?m)^\s*STEPS:\s*\[(.*?)\]`)
	outcomeRe = regexp.MustCompile(`(?m)^\s*OUTCOME:\s*(.+)$`)
	successRe = regexp.MustCompile(`(?mi)^\s*SUCCESS:\s*(true|false)`)

	insightRe  = regexp.MustCompile(`\[Content:\s*(.+?);\s*Type:\s*(.+?);\s*Confidence:\s*([0-9.]+)\]`)
	helpfulRe  = regexp.MustCompile(`(?m)^\s*HELPFUL:\s*\[(.*?)\]`)
	harmfulRe  = regexp.MustCompile(`(?m)^\s*HARMFUL:\s*\[(.*?)\]`)
	obsoleteRe = regexp.MustCompile(`(?m)^\s*OBSOLETE:\s*\[(.*?)\]`)
)

// ParseTrajectory extracts STEPS/OUTCOME/SUCCESS from a generation reply.
// Missing pieces fall back: no steps, outcome from the reply's opening
// text (capped at 200 characters), success true.
func ParseTrajectory(answer string) TrajectoryParts {
	parts := TrajectoryParts{Success: true}

	if m := stepsRe.FindStringSubmatch(answer); m != nil {
		parts.Steps = splitList(m[1])
	}
	if m := outcomeRe.FindStringSubmatch(answer); m != nil {
		parts.Outcome = strings.TrimSpace(m[1])
	} else {
		parts.Outcome = truncate(strings.TrimSpace(answer), 200)
	}
	if m := successRe.FindStringSubmatch(answer); m != nil {
		parts.Success = strings.EqualFold(m[1], "true")
	}
	return parts
}

// ParseInsight extracts the reflection structure. Empty bracket lists are
// structure; a reply with neither a feedback line nor an INSIGHT line is
// malformed and returns ErrMalformedOutput.
func ParseInsight(response string) (InsightParts, error) {
	var parts InsightParts
	structured := false

	if m := helpfulRe.FindStringSubmatch(response); m != nil {
		structured = true
		parts.Helpful = splitList(m[1])
	}
	if m := harmfulRe.FindStringSubmatch(response); m != nil {
		structured = true
		parts.Harmful = splitList(m[1])
	}
	if m := obsoleteRe.FindStringSubmatch(response); m != nil {
		structured = true
		parts.Obsolete = splitList(m[1])
	}

	for _, m := range insightRe.FindAllStringSubmatch(response, -1) {
		structured = true
		conf, err := strconv.ParseFloat(m[3], 64)
		if err != nil {
			continue
		}
		parts.Proposals = append(parts.Proposals, Proposal{
			Content:    strings.TrimSpace(m[1]),
			Kind:       strings.ToLower(strings.TrimSpace(m[2])),
			Confidence: clamp01(conf),
		})
	}

	if !structured {
		return InsightParts{}, ErrMalformedOutput
	}
	return parts, nil
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	raw := strings.Split(s, ";")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
