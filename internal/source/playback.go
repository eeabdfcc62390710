package source

import (
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/framescope/framescope/internal/frame"
	"github.com/framescope/framescope/internal/store"
)

// Playback replays a recorded frame sequence from disk. Next yields frames
// in stored order and ErrEndOfStream once exhausted; Seek supports random
// access for scrubbing.
type Playback struct {
	reader *store.Reader
	pos    int
	closed bool
}

// OpenPlayback opens the recording at path for replay.
func OpenPlayback(path string) (*Playback, error) {
	r, err := store.OpenFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "open playback source")
	}
	return &Playback{reader: r}, nil
}

// Next returns the frame at the current position and advances it.
func (p *Playback) Next() (*frame.Frame, error) {
	if p.closed {
		return nil, Fatal(errors.New("playback source is closed"))
	}
	if p.pos >= p.reader.Len() {
		return nil, ErrEndOfStream
	}
	fr, err := p.reader.ReadFrame(p.pos)
	if err != nil {
		// A failed read does not advance the position, so the caller can
		// retry the same frame.
		return nil, Transient(err)
	}
	p.pos++
	return fr, nil
}

// Seek moves the playback position to frame index i.
func (p *Playback) Seek(i int) error {
	if i < 0 || i > p.reader.Len() {
		return errors.Errorf("seek index %d out of range [0, %d]", i, p.reader.Len())
	}
	p.pos = i
	return nil
}

// Pos returns the current playback position.
func (p *Playback) Pos() int {
	return p.pos
}

// Len returns the number of frames in the recording.
func (p *Playback) Len() int {
	return p.reader.Len()
}

// Height returns the frame height.
func (p *Playback) Height() int {
	return p.reader.Height()
}

// Width returns the frame width.
func (p *Playback) Width() int {
	return p.reader.Width()
}

// Name identifies the source for logging and status reporting.
func (p *Playback) Name() string {
	return "playback:" + filepath.Base(p.reader.Path())
}

// Close releases the backing file. Idempotent.
func (p *Playback) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return p.reader.Close()
}
