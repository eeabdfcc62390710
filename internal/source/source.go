// Package source defines the frame source abstraction: one Next call yields
// one frame, an end-of-stream sentinel, or a capture error classified as
// transient or fatal. The scheduler treats transient errors as a dropped
// tick and fatal errors as a reason to stop capturing.
package source

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/framescope/framescope/internal/frame"
)

// Source produces frames one at a time. Height and Width are fixed for the
// lifetime of the source and known as soon as it is open. Close releases the
// underlying device or file; calling Close twice is a no-op.
type Source interface {
	Next() (*frame.Frame, error)
	Height() int
	Width() int
	Name() string
	Close() error
}

// ErrEndOfStream is returned by playback sources once all stored frames have
// been yielded. Live sources never return it.
var ErrEndOfStream = errors.New("end of stream")

// CaptureError wraps a frame acquisition failure. Transient failures (device
// busy, decode glitch) leave the pipeline running; fatal failures (device
// disconnected) stop capture.
type CaptureError struct {
	Fatal bool
	Err   error
}

func (e *CaptureError) Error() string {
	kind := "transient"
	if e.Fatal {
		kind = "fatal"
	}
	return fmt.Sprintf("%s capture error: %v", kind, e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a recoverable capture error.
func Transient(err error) error {
	return &CaptureError{Fatal: false, Err: err}
}

// Fatal wraps err as an unrecoverable capture error.
func Fatal(err error) error {
	return &CaptureError{Fatal: true, Err: err}
}

// IsFatal reports whether err is a fatal capture error. End-of-stream is not
// a capture error and reports false.
func IsFatal(err error) bool {
	var cerr *CaptureError
	return errors.As(err, &cerr) && cerr.Fatal
}

// IsTransient reports whether err is a transient capture error.
func IsTransient(err error) bool {
	var cerr *CaptureError
	return errors.As(err, &cerr) && !cerr.Fatal
}
