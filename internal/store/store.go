// Package store implements the growable on-disk frame archive. Frames are
// appended in capture order into a preallocated region that grows in fixed
// chunks when exhausted, so the steady-state append is a single positioned
// write and the resize cost is amortized to one truncate per chunk.
package store

import (
	"encoding/binary"
	"math"
	"os"

	"github.com/pkg/errors"

	"github.com/framescope/framescope/internal/frame"
	"github.com/framescope/framescope/internal/logger"
)

const (
	// DefaultInitialCapacity is the number of frame planes preallocated
	// when a store is created.
	DefaultInitialCapacity = 2000

	// DefaultChunkSize is the growth increment applied whenever the
	// preallocated capacity is exhausted.
	DefaultChunkSize = 1000
)

// Store is an append-only recording of frames backed by a single file. It is
// exclusively owned by the scheduler that opened it; no locking is done here.
type Store struct {
	path     string
	f        *os.File
	hdr      header
	closed   bool
	planeBuf []byte
}

// Open creates the recording file at path, or resumes an existing one if the
// file already holds a recording with matching dimensions. initialCapacity
// and chunkSize fall back to the package defaults when zero or negative.
func Open(path string, height, width, initialCapacity, chunkSize int) (*Store, error) {
	if height <= 0 || width <= 0 {
		return nil, storageErr(OpOpen, errors.Errorf("invalid frame dimensions %dx%d", height, width))
	}
	if initialCapacity <= 0 {
		initialCapacity = DefaultInitialCapacity
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, storageErr(OpOpen, err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, storageErr(OpOpen, err)
	}

	s := &Store{path: path, f: f}

	if fi.Size() == 0 {
		s.hdr = header{
			height:    uint32(height),
			width:     uint32(width),
			chunkSize: uint32(chunkSize),
			capacity:  uint64(initialCapacity),
			length:    0,
		}
		if err := writeHeader(f, &s.hdr); err != nil {
			f.Close()
			return nil, storageErr(OpOpen, err)
		}
		if err := f.Truncate(s.hdr.frameOffset(int64(s.hdr.capacity))); err != nil {
			f.Close()
			return nil, storageErr(OpOpen, err)
		}
	} else {
		hdr, err := readHeader(f)
		if err != nil {
			f.Close()
			return nil, storageErr(OpOpen, err)
		}
		if hdr.height != uint32(height) || hdr.width != uint32(width) {
			f.Close()
			return nil, errors.Wrapf(ErrDimensionMismatch,
				"existing store is %dx%d, want %dx%d", hdr.height, hdr.width, height, width)
		}
		s.hdr = *hdr
		logger.WithComponent("store").Info().
			Str("path", path).
			Uint64("length", hdr.length).
			Uint64("capacity", hdr.capacity).
			Msg("Resuming existing recording")
	}

	s.planeBuf = make([]byte, s.hdr.planeBytes())

	logger.WithComponent("store").Info().
		Str("path", path).
		Int("height", height).
		Int("width", width).
		Uint64("capacity", s.hdr.capacity).
		Uint32("chunk", s.hdr.chunkSize).
		Msg("Recording store open")

	return s, nil
}

// Append writes fr at the next logical index, growing the backing file by one
// chunk first when capacity is exhausted. On failure length and capacity keep
// their pre-call values.
func (s *Store) Append(fr *frame.Frame) error {
	if s.closed {
		return storageErr(OpWrite, errors.New("store is closed"))
	}
	if fr.Height != int(s.hdr.height) || fr.Width != int(s.hdr.width) {
		return errors.Wrapf(ErrDimensionMismatch,
			"frame is %dx%d, store is %dx%d", fr.Height, fr.Width, s.hdr.height, s.hdr.width)
	}

	if s.hdr.length == s.hdr.capacity {
		newCap := s.hdr.capacity + uint64(s.hdr.chunkSize)
		if err := s.f.Truncate(s.hdr.frameOffset(int64(newCap))); err != nil {
			return storageErr(OpGrow, err)
		}
		// Commit the new capacity only once it is on disk, so a failed
		// header write leaves the in-memory bookkeeping at its pre-call
		// values.
		grown := s.hdr
		grown.capacity = newCap
		if err := writeHeader(s.f, &grown); err != nil {
			return storageErr(OpGrow, err)
		}
		s.hdr.capacity = newCap
		logger.WithComponent("store").Debug().
			Str("path", s.path).
			Uint64("capacity", newCap).
			Msg("Grew recording store")
	}

	for i, v := range fr.Pix {
		binary.LittleEndian.PutUint32(s.planeBuf[i*4:], math.Float32bits(v))
	}
	if _, err := s.f.WriteAt(s.planeBuf, s.hdr.frameOffset(int64(s.hdr.length))); err != nil {
		return storageErr(OpWrite, err)
	}
	s.hdr.length++
	return nil
}

// Length returns the number of frames written so far.
func (s *Store) Length() int {
	return int(s.hdr.length)
}

// Capacity returns the number of allocated frame planes.
func (s *Store) Capacity() int {
	return int(s.hdr.capacity)
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Close truncates the backing file to exactly the written length, rewrites
// the header, and releases the file handle. Calling Close again is a no-op.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	s.hdr.capacity = s.hdr.length
	if err := writeHeader(s.f, &s.hdr); err != nil {
		s.f.Close()
		return storageErr(OpWrite, err)
	}
	if err := s.f.Truncate(s.hdr.frameOffset(int64(s.hdr.length))); err != nil {
		s.f.Close()
		return storageErr(OpWrite, err)
	}
	if err := s.f.Sync(); err != nil {
		s.f.Close()
		return storageErr(OpWrite, err)
	}
	if err := s.f.Close(); err != nil {
		return storageErr(OpWrite, err)
	}

	logger.WithComponent("store").Info().
		Str("path", s.path).
		Uint64("frames", s.hdr.length).
		Msg("Recording store closed")
	return nil
}
