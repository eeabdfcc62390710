package store

import (
	"encoding/binary"
	"math"
	"os"

	"github.com/pkg/errors"

	"github.com/framescope/framescope/internal/frame"
)

// Reader provides random access into an existing recording file. Multiple
// readers may be open on the same file; none of them interfere with a live
// writer since reads never touch indexes past the written length.
type Reader struct {
	path   string
	f      *os.File
	hdr    header
	closed bool
}

// OpenFile opens path for read-only access.
func OpenFile(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, storageErr(OpOpen, err)
	}
	hdr, err := readHeader(f)
	if err != nil {
		f.Close()
		return nil, storageErr(OpOpen, err)
	}
	return &Reader{path: path, f: f, hdr: *hdr}, nil
}

// ReadFrame reads the frame at logical index i.
func (r *Reader) ReadFrame(i int) (*frame.Frame, error) {
	if r.closed {
		return nil, storageErr(OpRead, errors.New("reader is closed"))
	}
	if i < 0 || i >= int(r.hdr.length) {
		return nil, errors.Errorf("frame index %d out of range [0, %d)", i, r.hdr.length)
	}

	buf := make([]byte, r.hdr.planeBytes())
	if _, err := r.f.ReadAt(buf, r.hdr.frameOffset(int64(i))); err != nil {
		return nil, storageErr(OpRead, err)
	}

	fr := frame.New(int(r.hdr.height), int(r.hdr.width))
	for j := range fr.Pix {
		fr.Pix[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[j*4:]))
	}
	return fr, nil
}

// Len returns the number of frames in the recording.
func (r *Reader) Len() int {
	return int(r.hdr.length)
}

// Height returns the frame height.
func (r *Reader) Height() int {
	return int(r.hdr.height)
}

// Width returns the frame width.
func (r *Reader) Width() int {
	return int(r.hdr.width)
}

// Path returns the backing file path.
func (r *Reader) Path() string {
	return r.path
}

// Close releases the file handle. Idempotent.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.f.Close()
}
