package ui

import (
	"strings"
	"testing"
)

func TestSilentUI(t *testing.T) {
	var u UI = SilentUI{}
	// Should not panic
	u.UpdateStatus("generating")
	u.Segment("thinking", "weighing options")
	u.Segment("answer", "use a pool")
	u.Log("context updated")
	u.Done()
}

// MockUI records calls for driver tests.
type MockUI struct {
	Statuses []string
	Segments []string
	Notices  []string
	Dones    int
}

func (m *MockUI) UpdateStatus(stage string) { m.Statuses = append(m.Statuses, stage) }
func (m *MockUI) Segment(kind, text string) { m.Segments = append(m.Segments, kind+":"+text) }
func (m *MockUI) Log(msg string)            { m.Notices = append(m.Notices, msg) }
func (m *MockUI) Done()                     { m.Dones++ }

func TestMockUI_Records(t *testing.T) {
	var u UI = &MockUI{}

	u.UpdateStatus("generating")
	u.UpdateStatus("reflecting")
	u.Segment("answer", "batched")
	u.Log("applied")
	u.Done()

	m := u.(*MockUI)
	if len(m.Statuses) != 2 || m.Statuses[1] != "reflecting" {
		t.Errorf("expected 2 statuses ending in reflecting, got %v", m.Statuses)
	}
	if len(m.Segments) != 1 || m.Segments[0] != "answer:batched" {
		t.Errorf("unexpected segments %v", m.Segments)
	}
	if len(m.Notices) != 1 || m.Dones != 1 {
		t.Errorf("notices %v dones %d", m.Notices, m.Dones)
	}
}

func TestConsoleUI_StreamsSegments(t *testing.T) {
	var buf strings.Builder
	c := NewConsoleUI(&buf, false)

	c.Segment("answer", "The answer")
	c.Segment("answer", " streams")
	c.Done()

	if buf.String() != "The answer streams\n" {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestConsoleUI_BreaksLineBeforeNotice(t *testing.T) {
	var buf strings.Builder
	c := NewConsoleUI(&buf, false)

	c.Segment("answer", "partial")
	c.Log("context updated")

	if buf.String() != "partial\ncontext updated\n" {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestConsoleUI_StatusLine(t *testing.T) {
	var buf strings.Builder
	c := NewConsoleUI(&buf, false)

	c.UpdateStatus("reflecting")

	if buf.String() != "· reflecting\n" {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestConsoleUI_NoEscapesWithoutColor(t *testing.T) {
	var buf strings.Builder
	c := NewConsoleUI(&buf, false)

	c.UpdateStatus("generating")
	c.Segment("thinking", "weighing tradeoffs\n")
	c.Segment("answer", "use a worker pool\n")
	c.Log("applied +1")
	c.Done()

	if strings.Contains(buf.String(), "\x1b") {
		t.Errorf("color disabled but output has escapes: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "weighing tradeoffs") {
		t.Errorf("thinking text lost: %q", buf.String())
	}
}

func TestConsoleUI_DoneIdempotent(t *testing.T) {
	var buf strings.Builder
	c := NewConsoleUI(&buf, false)

	c.Segment("answer", "done already\n")
	c.Done()
	c.Done()

	if buf.String() != "done already\n" {
		t.Errorf("Done added stray newlines: %q", buf.String())
	}
}
