// Package ui is the rendering seam between engine events and the
// terminal front ends.
package ui

// UI renders engine activity. The plain REPL and one-shot commands
// print through ConsoleUI, the bubbletea front end forwards into its
// program, and SilentUI drops everything for scripted runs.
type UI interface {
	// UpdateStatus reports a pipeline stage or research stage change.
	UpdateStatus(stage string)
	// Segment renders one streamed chunk; kind is "thinking" or "answer".
	Segment(kind, text string)
	// Log prints a notice line: applied deltas, prune counts, warnings.
	Log(msg string)
	// Done marks the end of one request so the front end can re-arm input.
	Done()
}

type SilentUI struct{}

func (s SilentUI) UpdateStatus(stage string) {}
func (s SilentUI) Segment(kind, text string) {}
func (s SilentUI) Log(msg string)            {}
func (s SilentUI) Done()                     {}
