package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/ace/internal/memory"
)

func TestContextBlock_Format(t *testing.T) {
	bullets := []memory.Bullet{
		{ID: "0123456789abcdef", Content: "binary search needs sorted input", Helpful: 3, Harmful: 1},
		{ID: "short", Content: "check edge cases", Helpful: 0, Harmful: 0},
	}

	got := ContextBlock(bullets)
	lines := strings.Split(got, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d:\n%s", len(lines), got)
	}
	if lines[0] != "[01234567] binary search needs sorted input (helpful: 3, harmful: 1)" {
		t.Errorf("unexpected first line: %q", lines[0])
	}
	if lines[1] != "[short] check edge cases (helpful: 0, harmful: 0)" {
		t.Errorf("unexpected second line: %q", lines[1])
	}
}

func TestContextBlock_Empty(t *testing.T) {
	got := ContextBlock(nil)
	if got != "No prior context available." {
		t.Errorf("unexpected empty-context text: %q", got)
	}
}

func TestBuildGeneration_SubstitutesPlaceholders(t *testing.T) {
	set := Default()
	got := set.BuildGeneration("reverse a list", []memory.Bullet{
		memory.NewBullet("b1", "slices reverse in place", nil, time.Now()),
	})

	if !strings.Contains(got, "Task: reverse a list") {
		t.Error("query not substituted")
	}
	if !strings.Contains(got, "slices reverse in place") {
		t.Error("context not substituted")
	}
	if strings.Contains(got, "{{") {
		t.Errorf("unresolved placeholder remains:\n%s", got)
	}
}

func TestBuildReflection_CarriesTrajectory(t *testing.T) {
	set := Default()
	got := set.BuildReflection("task", []string{"a", "b"}, "done", false, nil)

	if !strings.Contains(got, "Steps: a; b") {
		t.Error("steps not substituted")
	}
	if !strings.Contains(got, "Outcome: done") {
		t.Error("outcome not substituted")
	}
	if !strings.Contains(got, "Success: false") {
		t.Error("success flag not substituted")
	}
}

func TestBuildAnswerAndSynthesis(t *testing.T) {
	set := Default()

	ans := set.BuildAnswer("what is X?", "[1] source text")
	if !strings.Contains(ans, "Question: what is X?") || !strings.Contains(ans, "[1] source text") {
		t.Errorf("answer prompt missing pieces:\n%s", ans)
	}

	syn := set.BuildSynthesis("topic T", "[1] s", "Q1: A1")
	if !strings.Contains(syn, `"topic T"`) || !strings.Contains(syn, "Q1: A1") {
		t.Errorf("synthesis prompt missing pieces:\n%s", syn)
	}
	if !strings.Contains(syn, "## Executive summary") {
		t.Error("synthesis prompt lost its section contract")
	}
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	set, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if set.Generation != Default().Generation {
		t.Error("expected default generation template")
	}
}

func TestLoad_PartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	os.WriteFile(path, []byte("generation: |\n  Custom {{query}} with {{context}}\n"), 0600)

	set, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !strings.Contains(set.Generation, "Custom {{query}}") {
		t.Errorf("override not applied: %q", set.Generation)
	}
	if set.Reflection != Default().Reflection {
		t.Error("untouched fields should keep defaults")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	os.WriteFile(path, []byte(":\tnot yaml"), 0600)

	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}
