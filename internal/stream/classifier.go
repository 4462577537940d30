// Package stream splits a chunked model response into thinking and answer
// segments. Models that expose reasoning wrap it in <think>...</think>;
// chunk boundaries may fall anywhere, including inside a delimiter.
package stream

import (
	"context"
	"strings"
)

// SegmentKind labels classified text.
type SegmentKind int

const (
	Answer SegmentKind = iota
	Thinking
)

func (k SegmentKind) String() string {
	if k == Thinking {
		return "thinking"
	}
	return "answer"
}

// Segment is one run of classified text, in stream order.
type Segment struct {
	Kind SegmentKind
	Text string
}

const (
	openDelim  = "<think>"
	closeDelim = "</think>"
)

// Classifier is a stateful transform over text chunks. The zero state is
// answer mode; <think> switches to thinking, </think> back. Delimiters are
// consumed, never emitted. A delimiter split across chunks is recognized:
// the classifier holds back any trailing text that could still become one.
type Classifier struct {
	thinking bool
	pending  string
}

// NewClassifier returns a classifier in answer mode.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Feed appends a chunk and returns the segments that are safe to emit.
// Text held back as a possible delimiter prefix is released by the next
// Feed or by Flush.
func (c *Classifier) Feed(chunk string) []Segment {
	if chunk == "" {
		return nil
	}
	c.pending += chunk

	var segs []Segment
	for {
		i := strings.Index(c.pending, c.delim())
		if i < 0 {
			break
		}
		if i > 0 {
			segs = append(segs, Segment{Kind: c.kind(), Text: c.pending[:i]})
		}
		c.pending = c.pending[i+len(c.delim()):]
		c.thinking = !c.thinking
	}

	hold := holdback(c.pending, c.delim())
	if emit := c.pending[:len(c.pending)-hold]; emit != "" {
		segs = append(segs, Segment{Kind: c.kind(), Text: emit})
	}
	c.pending = c.pending[len(c.pending)-hold:]
	return segs
}

// Flush drains held-back text at end of stream. An unclosed thinking block
// flushes as thinking.
func (c *Classifier) Flush() []Segment {
	if c.pending == "" {
		return nil
	}
	seg := Segment{Kind: c.kind(), Text: c.pending}
	c.pending = ""
	return []Segment{seg}
}

func (c *Classifier) kind() SegmentKind {
	if c.thinking {
		return Thinking
	}
	return Answer
}

// delim is the only delimiter meaningful in the current state; the other
// one passes through as literal text.
func (c *Classifier) delim() string {
	if c.thinking {
		return closeDelim
	}
	return openDelim
}

// holdback returns the length of the longest proper prefix of delim that
// is a suffix of s.
func holdback(s, delim string) int {
	max := len(delim) - 1
	if max > len(s) {
		max = len(s)
	}
	for n := max; n > 0; n-- {
		if s[len(s)-n:] == delim[:n] {
			return n
		}
	}
	return 0
}

// Pipe runs the classifier as a channel transform: text chunks in, ordered
// segments out. The output closes when the input closes (after flushing)
// or when ctx is cancelled. The sequence is consumed lazily; an abandoned
// consumer cancels via ctx and the goroutine exits.
func Pipe(ctx context.Context, in <-chan string) <-chan Segment {
	out := make(chan Segment)
	go func() {
		defer close(out)
		c := NewClassifier()
		emit := func(segs []Segment) bool {
			for _, seg := range segs {
				select {
				case out <- seg:
				case <-ctx.Done():
					return false
				}
			}
			return true
		}
		for {
			select {
			case <-ctx.Done():
				return
			case chunk, ok := <-in:
				if !ok {
					emit(c.Flush())
					return
				}
				if !emit(c.Feed(chunk)) {
					return
				}
			}
		}
	}()
	return out
}

// Text concatenates the text of all segments of one kind, in order.
func Text(segs []Segment, kind SegmentKind) string {
	var sb strings.Builder
	for _, seg := range segs {
		if seg.Kind == kind {
			sb.WriteString(seg.Text)
		}
	}
	return sb.String()
}
