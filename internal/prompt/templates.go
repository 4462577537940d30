// Package prompt owns the textual contract with the model: the templates
// sent out and the parsers for the structured replies that come back.
package prompt

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/ace/internal/memory"
)

// Set holds the prompt templates. Placeholders use {{name}} form and are
// replaced literally; unknown placeholders pass through untouched.
type Set struct {
	Generation string `yaml:"generation"`
	Reflection string `yaml:"reflection"`
	Answer     string `yaml:"answer"`
	Synthesis  string `yaml:"synthesis"`
}

const defaultGeneration = `You are a task-solving assistant. Use the context bullets when they apply.

Context:
{{context}}

Task: {{query}}

Work the task, then finish your reply with exactly these lines:
STEPS: [first step; second step; ...]
OUTCOME: <one-line result>
SUCCESS: true|false`

const defaultReflection = `You review a completed task and extract reusable insights.

Task: {{query}}
Steps: {{steps}}
Outcome: {{outcome}}
Success: {{success}}

Context bullets that were shown to the solver:
{{context}}

Reply with exactly these lines, using empty brackets when nothing applies:
HELPFUL: [id; id]
HARMFUL: [id]
OBSOLETE: [id]
INSIGHT: [Content: <one reusable fact or strategy>; Type: <strategy|domain_knowledge|pitfall>; Confidence: <0.0-1.0>]

Repeat the INSIGHT line for each distinct insight.`

const defaultAnswer = `Answer the question using the numbered sources. Cite them like [1].

Sources:
{{sources}}

Question: {{question}}

Answer concisely.`

const defaultSynthesis = `Write a research report on "{{topic}}" from the material below.

Sources:
{{sources}}

Findings per question:
{{answers}}

Structure the report with exactly these markdown sections:
## Executive summary
## Key findings
## Detailed analysis
## Conclusion`

// Default returns the built-in template set.
func Default() Set {
	return Set{
		Generation: defaultGeneration,
		Reflection: defaultReflection,
		Answer:     defaultAnswer,
		Synthesis:  defaultSynthesis,
	}
}

// Load reads template overrides from a YAML file and merges them over the
// defaults; fields absent from the file keep their default text. A missing
// file is not an error and yields the defaults.
func Load(path string) (Set, error) {
	set := Default()
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		if os.IsNotExist(err) {
			return set, nil
		}
		return set, fmt.Errorf("failed to read prompt file: %w", err)
	}

	var override Set
	if err := yaml.Unmarshal(data, &override); err != nil {
		return set, fmt.Errorf("failed to unmarshal prompt file: %w", err)
	}
	if override.Generation != "" {
		set.Generation = override.Generation
	}
	if override.Reflection != "" {
		set.Reflection = override.Reflection
	}
	if override.Answer != "" {
		set.Answer = override.Answer
	}
	if override.Synthesis != "" {
		set.Synthesis = override.Synthesis
	}
	return set, nil
}

// render substitutes {{name}} placeholders.
func render(tmpl string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// ContextBlock renders bullets the way the model sees them: one line per
// bullet, ID truncated to eight characters, feedback counters visible.
func ContextBlock(bullets []memory.Bullet) string {
	if len(bullets) == 0 {
		return "No prior context available."
	}
	var sb strings.Builder
	for i, b := range bullets {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "[%s] %s (helpful: %d, harmful: %d)",
			shortID(b.ID), b.Content, b.Helpful, b.Harmful)
	}
	return sb.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// BuildGeneration builds the task prompt from the selected context bullets.
func (s Set) BuildGeneration(query string, bullets []memory.Bullet) string {
	return render(s.Generation, map[string]string{
		"context": ContextBlock(bullets),
		"query":   query,
	})
}

// BuildReflection builds the review prompt from a finished trajectory.
func (s Set) BuildReflection(query string, steps []string, outcome string,
	success bool, used []memory.Bullet) string {
	return render(s.Reflection, map[string]string{
		"query":   query,
		"steps":   strings.Join(steps, "; "),
		"outcome": outcome,
		"success": fmt.Sprintf("%t", success),
		"context": ContextBlock(used),
	})
}

// BuildAnswer builds the per-question prompt for research stage three.
func (s Set) BuildAnswer(question, sources string) string {
	return render(s.Answer, map[string]string{
		"question": question,
		"sources":  sources,
	})
}

// BuildSynthesis builds the final report prompt for research stage four.
func (s Set) BuildSynthesis(topic, sources, answers string) string {
	return render(s.Synthesis, map[string]string{
		"topic":   topic,
		"sources": sources,
		"answers": answers,
	})
}
