package frame

import "sync/atomic"

// Latest is a single-slot overwrite cell holding the most recent frame for
// live display. There is exactly one writer (the capture scheduler) and any
// number of readers; neither direction ever blocks. Intermediate frames
// between two reads are dropped, which is the intended live-view semantics.
//
// The frame and its generation are published together behind one atomic
// pointer swap, so a reader observes either the pre-write or the post-write
// pair, never a torn mix.
type Latest struct {
	cell atomic.Pointer[latestCell]
}

type latestCell struct {
	frame      *Frame
	generation uint64
}

// Write replaces the held frame and increments the generation counter.
func (l *Latest) Write(f *Frame) {
	gen := uint64(1)
	if prev := l.cell.Load(); prev != nil {
		gen = prev.generation + 1
	}
	l.cell.Store(&latestCell{frame: f, generation: gen})
}

// Read returns the current frame and its generation without mutating state.
// Before the first Write it returns (nil, 0).
func (l *Latest) Read() (*Frame, uint64) {
	c := l.cell.Load()
	if c == nil {
		return nil, 0
	}
	return c.frame, c.generation
}

// Generation returns the current generation without loading the frame,
// letting consumers detect staleness cheaply.
func (l *Latest) Generation() uint64 {
	c := l.cell.Load()
	if c == nil {
		return 0
	}
	return c.generation
}
